package cloudscribe_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	cloudscribe "github.com/weedkiller/cloudscribe"
)

const (
	sqliteCreateSiteUsers = `CREATE TABLE site_users (
    id TEXT NOT NULL PRIMARY KEY,
    site_id TEXT NOT NULL,
    user_name TEXT NOT NULL,
    email TEXT NOT NULL,
    display_name TEXT,
    first_name TEXT,
    last_name TEXT,
    phone_number TEXT,
    password_hash TEXT,
    two_factor_enabled BOOLEAN NOT NULL DEFAULT 0,
    two_factor_secret TEXT,
    recovery_codes TEXT,
    account_approved BOOLEAN NOT NULL DEFAULT 0,
    email_confirmed BOOLEAN NOT NULL DEFAULT 0,
    phone_confirmed BOOLEAN NOT NULL DEFAULT 0,
    agreement_accepted_utc TIMESTAMP NULL,
    roles_changed BOOLEAN NOT NULL DEFAULT 0,
    login_attempts INTEGER NOT NULL DEFAULT 0,
    login_attempt_at TIMESTAMP NULL,
    last_login_utc TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP NULL,
    CONSTRAINT uq_site_users_name UNIQUE (site_id, user_name),
    CONSTRAINT uq_site_users_email UNIQUE (site_id, email)
);`

	sqliteCreateUserLogins = `CREATE TABLE user_logins (
    id TEXT NOT NULL PRIMARY KEY,
    site_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    login_provider TEXT NOT NULL,
    provider_key TEXT NOT NULL,
    provider_display_name TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    CONSTRAINT uq_user_logins_provider_key UNIQUE (site_id, login_provider, provider_key)
);`
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec(sqliteCreateSiteUsers)
	require.NoError(t, err)
	_, err = db.Exec(sqliteCreateUserLogins)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})

	return db
}

func seedUser(t *testing.T, users cloudscribe.Users, siteID uuid.UUID, name, email string) *cloudscribe.SiteUser {
	t.Helper()
	created, err := users.Create(context.Background(), &cloudscribe.SiteUser{
		SiteID:   siteID,
		UserName: name,
		Email:    email,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	return created
}

func TestUsersRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		db := setupTestDB(t)
		users := cloudscribe.NewUsersRepository(db)
		siteID := uuid.New()

		created := seedUser(t, users, siteID, "alice", "alice@example.com")

		byID, err := users.FindByID(ctx, siteID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.UserName)

		byName, err := users.FindByLoginName(ctx, siteID, "alice")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byName.ID)

		byEmail, err := users.FindByEmail(ctx, siteID, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
	})

	t.Run("lookups are case-insensitive", func(t *testing.T) {
		db := setupTestDB(t)
		users := cloudscribe.NewUsersRepository(db)
		siteID := uuid.New()

		created := seedUser(t, users, siteID, "Alice", "Alice@Example.com")

		byEmail, err := users.FindByEmail(ctx, siteID, "alice@example.COM")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)

		byName, err := users.FindByLoginName(ctx, siteID, "ALICE")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byName.ID)
	})

	t.Run("lookups are scoped to the site", func(t *testing.T) {
		db := setupTestDB(t)
		users := cloudscribe.NewUsersRepository(db)
		siteA := uuid.New()
		siteB := uuid.New()

		seedUser(t, users, siteA, "alice", "alice@example.com")

		_, err := users.FindByEmail(ctx, siteB, "alice@example.com")
		assert.True(t, goerrors.IsNotFound(err))
	})

	t.Run("missing user maps to not found", func(t *testing.T) {
		db := setupTestDB(t)
		users := cloudscribe.NewUsersRepository(db)

		_, err := users.FindByEmail(ctx, uuid.New(), "ghost@example.com")
		assert.True(t, goerrors.IsNotFound(err))
	})

	t.Run("duplicate email is a duplicate record", func(t *testing.T) {
		db := setupTestDB(t)
		users := cloudscribe.NewUsersRepository(db)
		siteID := uuid.New()

		seedUser(t, users, siteID, "alice", "alice@example.com")

		_, err := users.Create(ctx, &cloudscribe.SiteUser{
			SiteID:   siteID,
			UserName: "alice2",
			Email:    "alice@example.com",
		})
		require.Error(t, err)
		assert.True(t, cloudscribe.IsDuplicateRecord(err))
	})

	t.Run("same email on another site is fine", func(t *testing.T) {
		db := setupTestDB(t)
		users := cloudscribe.NewUsersRepository(db)

		seedUser(t, users, uuid.New(), "alice", "alice@example.com")
		seedUser(t, users, uuid.New(), "alice", "alice@example.com")
	})

	t.Run("login name availability honors the exclusion", func(t *testing.T) {
		db := setupTestDB(t)
		users := cloudscribe.NewUsersRepository(db)
		siteID := uuid.New()

		created := seedUser(t, users, siteID, "alice", "alice@example.com")

		available, err := users.LoginNameAvailable(ctx, siteID, "alice", uuid.Nil)
		require.NoError(t, err)
		assert.False(t, available)

		// the owner renaming to their own name is fine
		available, err = users.LoginNameAvailable(ctx, siteID, "ALICE", created.ID)
		require.NoError(t, err)
		assert.True(t, available)

		available, err = users.LoginNameAvailable(ctx, siteID, "bob", uuid.Nil)
		require.NoError(t, err)
		assert.True(t, available)
	})

	t.Run("attempt tracking increments and success resets", func(t *testing.T) {
		db := setupTestDB(t)
		users := cloudscribe.NewUsersRepository(db)
		siteID := uuid.New()

		created := seedUser(t, users, siteID, "alice", "alice@example.com")

		require.NoError(t, users.TrackAttemptedLogin(ctx, created))
		require.NoError(t, users.TrackAttemptedLogin(ctx, created))

		reloaded, err := users.FindByID(ctx, siteID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.LoginAttempts)
		assert.NotNil(t, reloaded.LoginAttemptAt)

		now := time.Now().UTC()
		reloaded.LastLoginUtc = &now
		require.NoError(t, users.TrackSuccessfulLogin(ctx, reloaded))

		reloaded, err = users.FindByID(ctx, siteID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, reloaded.LoginAttempts)
		assert.Nil(t, reloaded.LoginAttemptAt)
		assert.NotNil(t, reloaded.LastLoginUtc)
	})

	t.Run("update persists changed fields", func(t *testing.T) {
		db := setupTestDB(t)
		users := cloudscribe.NewUsersRepository(db)
		siteID := uuid.New()

		created := seedUser(t, users, siteID, "alice", "alice@example.com")
		created.EmailConfirmed = true
		created.DisplayName = "Alice A."

		_, err := users.Update(ctx, created)
		require.NoError(t, err)

		reloaded, err := users.FindByID(ctx, siteID, created.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.EmailConfirmed)
		assert.Equal(t, "Alice A.", reloaded.DisplayName)
	})
}

func TestRepositoryManager(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	manager := cloudscribe.NewRepositoryManager(db)
	require.NoError(t, manager.Validate())
	require.NotNil(t, manager.Users())
	require.NotNil(t, manager.UserLogins())

	siteID := uuid.New()
	err := manager.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := manager.Users().Create(ctx, &cloudscribe.SiteUser{
			SiteID:   siteID,
			UserName: "alice",
			Email:    "alice@example.com",
		})
		return err
	})
	require.NoError(t, err)

	found, err := manager.Users().FindByEmail(ctx, siteID, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", found.UserName)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = manager.RunInTx(cancelled, nil, func(ctx context.Context, tx bun.Tx) error { return nil })
	assert.Error(t, err)
}

func TestUserLoginsRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("add, find, list and remove", func(t *testing.T) {
		db := setupTestDB(t)
		logins := cloudscribe.NewUserLoginsRepository(db)
		siteID := uuid.New()
		userID := uuid.New()

		require.NoError(t, logins.Add(ctx, &cloudscribe.UserLogin{
			SiteID:        siteID,
			UserID:        userID,
			LoginProvider: "Google",
			ProviderKey:   "g-123",
		}))
		require.NoError(t, logins.Add(ctx, &cloudscribe.UserLogin{
			SiteID:        siteID,
			UserID:        userID,
			LoginProvider: "Facebook",
			ProviderKey:   "f-456",
		}))

		found, err := logins.Find(ctx, siteID, "Google", "g-123")
		require.NoError(t, err)
		assert.Equal(t, userID, found.UserID)

		list, err := logins.ListForUser(ctx, siteID, userID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Facebook", list[0].LoginProvider)
		assert.Equal(t, "Google", list[1].LoginProvider)

		require.NoError(t, logins.Remove(ctx, siteID, userID, "Google", "g-123"))

		_, err = logins.Find(ctx, siteID, "Google", "g-123")
		assert.True(t, goerrors.IsNotFound(err))
	})

	t.Run("links are scoped to the site", func(t *testing.T) {
		db := setupTestDB(t)
		logins := cloudscribe.NewUserLoginsRepository(db)
		siteA := uuid.New()

		require.NoError(t, logins.Add(ctx, &cloudscribe.UserLogin{
			SiteID:        siteA,
			UserID:        uuid.New(),
			LoginProvider: "Google",
			ProviderKey:   "g-123",
		}))

		_, err := logins.Find(ctx, uuid.New(), "Google", "g-123")
		assert.True(t, goerrors.IsNotFound(err))
	})

	t.Run("duplicate link is a duplicate record", func(t *testing.T) {
		db := setupTestDB(t)
		logins := cloudscribe.NewUserLoginsRepository(db)
		siteID := uuid.New()

		link := &cloudscribe.UserLogin{
			SiteID:        siteID,
			UserID:        uuid.New(),
			LoginProvider: "Google",
			ProviderKey:   "g-123",
		}
		require.NoError(t, logins.Add(ctx, link))

		err := logins.Add(ctx, &cloudscribe.UserLogin{
			SiteID:        siteID,
			UserID:        uuid.New(),
			LoginProvider: "Google",
			ProviderKey:   "g-123",
		})
		require.Error(t, err)
		assert.True(t, cloudscribe.IsDuplicateRecord(err))
	})
}
