package cloudscribe

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type siteUsers struct {
	repository.Repository[*SiteUser]
	db *bun.DB
}

var _ Users = (*siteUsers)(nil)

// NewUsersRepository creates the bun-backed Users store.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*SiteUser](db, repository.ModelHandlers[*SiteUser]{
		NewRecord: func() *SiteUser { return &SiteUser{} },
		GetID: func(u *SiteUser) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *SiteUser, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &siteUsers{
		Repository: repo,
		db:         db,
	}
}

func (r *siteUsers) FindByID(ctx context.Context, siteID, id uuid.UUID) (*SiteUser, error) {
	return r.findOne(ctx, siteID, "id", id.String())
}

func (r *siteUsers) FindByLoginName(ctx context.Context, siteID uuid.UUID, name string) (*SiteUser, error) {
	return r.findOne(ctx, siteID, "user_name", normalizeIdentifier(name))
}

func (r *siteUsers) FindByEmail(ctx context.Context, siteID uuid.UUID, email string) (*SiteUser, error) {
	return r.findOne(ctx, siteID, "email", normalizeIdentifier(email))
}

func (r *siteUsers) findOne(ctx context.Context, siteID uuid.UUID, column, value string) (*SiteUser, error) {
	record := &SiteUser{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.site_id = ?", siteID).
		Where("lower(?TableAlias."+column+") = lower(?)", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"site_id": siteID.String(),
					column:    value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *siteUsers) Create(ctx context.Context, user *SiteUser) (*SiteUser, error) {
	if user != nil && user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return r.Repository.Create(ctx, user)
}

func (r *siteUsers) Update(ctx context.Context, user *SiteUser) (*SiteUser, error) {
	return r.Repository.Update(ctx, user, repository.UpdateByID(user.ID.String()))
}

func (r *siteUsers) LoginNameAvailable(ctx context.Context, siteID uuid.UUID, name string, excludeID uuid.UUID) (bool, error) {
	q := r.db.NewSelect().
		Model((*SiteUser)(nil)).
		Where("?TableAlias.site_id = ?", siteID).
		Where("lower(?TableAlias.user_name) = lower(?)", normalizeIdentifier(name))

	if excludeID != uuid.Nil {
		q = q.Where("?TableAlias.id != ?", excludeID)
	}

	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}

	return count == 0, nil
}

func (r *siteUsers) TrackAttemptedLogin(ctx context.Context, user *SiteUser) error {
	// A failure after the cooldown window has lapsed starts a fresh count
	// rather than resurrecting the forgiven one.
	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*SiteUser)(nil)).
		Set("login_attempts = CASE WHEN login_attempt_at > ? THEN login_attempts + 1 ELSE 1 END", now.Add(-LoginCoolDown)).
		Set("login_attempt_at = ?", now).
		Where("id = ?", user.ID).
		Where("deleted_at IS NULL").
		Exec(ctx)

	return err
}

func (r *siteUsers) TrackSuccessfulLogin(ctx context.Context, user *SiteUser) error {
	// NOTE: reset the attempt counters in the same statement so a
	// concurrent failed attempt cannot resurrect a stale count.
	lastLogin := time.Now()
	if user.LastLoginUtc != nil {
		lastLogin = *user.LastLoginUtc
	}

	_, err := r.db.NewUpdate().
		Model((*SiteUser)(nil)).
		Set("last_login_utc = ?", lastLogin).
		Set("login_attempt_at = NULL").
		Set("login_attempts = 0").
		Where("id = ?", user.ID).
		Where("deleted_at IS NULL").
		Exec(ctx)

	return err
}

func normalizeIdentifier(value string) string {
	return strings.TrimSpace(value)
}
