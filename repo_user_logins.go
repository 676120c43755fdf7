package cloudscribe

import (
	"context"
	"database/sql"
	"errors"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type userLogins struct {
	db *bun.DB
}

var _ UserLogins = (*userLogins)(nil)

// NewUserLoginsRepository creates the bun-backed external login link store.
func NewUserLoginsRepository(db *bun.DB) UserLogins {
	return &userLogins{db: db}
}

func (r *userLogins) Find(ctx context.Context, siteID uuid.UUID, provider, providerKey string) (*UserLogin, error) {
	record := &UserLogin{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.site_id = ?", siteID).
		Where("?TableAlias.login_provider = ?", provider).
		Where("?TableAlias.provider_key = ?", providerKey).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"site_id":  siteID.String(),
					"provider": provider,
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *userLogins) Add(ctx context.Context, login *UserLogin) error {
	if login.ID == uuid.Nil {
		login.ID = uuid.New()
	}

	_, err := r.db.NewInsert().
		Model(login).
		Exec(ctx)

	return err
}

func (r *userLogins) Remove(ctx context.Context, siteID, userID uuid.UUID, provider, providerKey string) error {
	_, err := r.db.NewDelete().
		Model((*UserLogin)(nil)).
		Where("site_id = ?", siteID).
		Where("user_id = ?", userID).
		Where("login_provider = ?", provider).
		Where("provider_key = ?", providerKey).
		Exec(ctx)

	return err
}

func (r *userLogins) ListForUser(ctx context.Context, siteID, userID uuid.UUID) ([]*UserLogin, error) {
	var records []*UserLogin
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.site_id = ?", siteID).
		Where("?TableAlias.user_id = ?", userID).
		Order("login_provider ASC").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*UserLogin{}, nil
		}
		return nil, err
	}

	return records, nil
}
