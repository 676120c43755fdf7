package cloudscribe

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TwoFactorSession holds the pending first-factor account between the
// password step and the two-factor completion. Web deployments back this
// with their session store; MemoryTwoFactorSession serves tests and single
// process setups.
type TwoFactorSession interface {
	Set(ctx context.Context, siteID, userID uuid.UUID) error
	Get(ctx context.Context, siteID uuid.UUID) (uuid.UUID, error)
	Clear(ctx context.Context) error
}

// MemoryTwoFactorSession is an in-process TwoFactorSession.
type MemoryTwoFactorSession struct {
	mu      sync.Mutex
	pending map[uuid.UUID]uuid.UUID
}

// NewMemoryTwoFactorSession creates an empty session store.
func NewMemoryTwoFactorSession() *MemoryTwoFactorSession {
	return &MemoryTwoFactorSession{pending: map[uuid.UUID]uuid.UUID{}}
}

func (m *MemoryTwoFactorSession) Set(ctx context.Context, siteID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[siteID] = userID
	return nil
}

func (m *MemoryTwoFactorSession) Get(ctx context.Context, siteID uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.pending[siteID]
	if !ok {
		return uuid.Nil, ErrNoPendingTwoFactor
	}
	return id, nil
}

func (m *MemoryTwoFactorSession) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = map[uuid.UUID]uuid.UUID{}
	return nil
}

// Login attempt throttling defaults.
var (
	// MaxLoginAttempts is how many failures an account gets before the
	// cooldown applies.
	MaxLoginAttempts = 5
	// LoginCoolDown is how long the account stays locked once the
	// attempt budget is spent.
	LoginCoolDown = 24 * time.Hour
)

// DefaultSignInManager verifies credentials against the stored account
// records: bcrypt for passwords, the stored link for external assertions,
// TOTP and single-use recovery codes for two-factor. Wrong credentials map
// to an outcome; only infrastructure failures return errors.
type DefaultSignInManager struct {
	users   Users
	logins  UserLogins
	session TwoFactorSession
	logger  Logger
	now     func() time.Time
}

// SignInManagerOption configures the manager.
type SignInManagerOption func(*DefaultSignInManager)

// WithSignInLogger overrides the logger.
func WithSignInLogger(logger Logger) SignInManagerOption {
	return func(m *DefaultSignInManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSignInSession overrides the pending two-factor session store.
func WithSignInSession(session TwoFactorSession) SignInManagerOption {
	return func(m *DefaultSignInManager) {
		if session != nil {
			m.session = session
		}
	}
}

// WithSignInClock injects a clock, useful in tests.
func WithSignInClock(now func() time.Time) SignInManagerOption {
	return func(m *DefaultSignInManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSignInManager creates the default manager.
func NewSignInManager(users Users, logins UserLogins, opts ...SignInManagerOption) *DefaultSignInManager {
	m := &DefaultSignInManager{
		users:   users,
		logins:  logins,
		session: NewMemoryTwoFactorSession(),
		logger:  defLogger{},
		now:     time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

var _ SignInManager = (*DefaultSignInManager)(nil)

// PasswordSignIn verifies the password. Accounts past the attempt budget
// are locked out until the cooldown expires. The persistent flag is
// recorded for the session layer; the manager itself owns no cookies.
func (m *DefaultSignInManager) PasswordSignIn(ctx context.Context, user *SiteUser, password string, persistent bool) (SignInOutcome, error) {
	if user == nil || !user.HasPassword() {
		return OutcomeFailed, nil
	}

	if m.attemptsExhausted(user) {
		return OutcomeLockedOut, nil
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if !goerrors.Is(err, ErrMismatchedHashAndPassword) {
			return OutcomeFailed, goerrors.Wrap(err, goerrors.CategoryInternal, "password comparison failed")
		}
		if err := m.users.TrackAttemptedLogin(ctx, user); err != nil {
			return OutcomeFailed, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login attempt")
		}
		return OutcomeFailed, nil
	}

	if user.TwoFactorEnabled {
		if err := m.session.Set(ctx, user.SiteID, user.ID); err != nil {
			return OutcomeFailed, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store pending two-factor sign-in")
		}
		return OutcomeTwoFactorRequired, nil
	}

	m.logger.Debug("password sign-in succeeded", "user", user.ID, "persistent", persistent)
	return OutcomeSuccess, nil
}

// attemptsExhausted reports whether the account has spent its attempt
// budget. Attempts older than the cooldown no longer count.
func (m *DefaultSignInManager) attemptsExhausted(user *SiteUser) bool {
	attempts := user.LoginAttempts
	if user.LoginAttemptAt != nil && m.now().Sub(*user.LoginAttemptAt) > LoginCoolDown {
		attempts = 0
	}
	return attempts >= MaxLoginAttempts
}

// ExternalLoginSignIn trusts the provider assertion, but only for the
// account's own link: the (provider, key) pair must resolve to this very
// account or the sign-in fails.
func (m *DefaultSignInManager) ExternalLoginSignIn(ctx context.Context, user *SiteUser, provider, providerKey string) (SignInOutcome, error) {
	if user == nil {
		return OutcomeFailed, nil
	}

	link, err := m.logins.Find(ctx, user.SiteID, provider, providerKey)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return OutcomeFailed, nil
		}
		return OutcomeFailed, err
	}

	if link.UserID != user.ID {
		m.logger.Warn("external login link belongs to a different account", "provider", provider, "user", user.ID)
		return OutcomeFailed, nil
	}

	if user.TwoFactorEnabled {
		if err := m.session.Set(ctx, user.SiteID, user.ID); err != nil {
			return OutcomeFailed, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store pending two-factor sign-in")
		}
		return OutcomeTwoFactorRequired, nil
	}

	return OutcomeSuccess, nil
}

// TwoFactorAuthenticatorSignIn validates a TOTP code for the pending
// account. Failed codes count toward the same attempt budget as passwords.
// The remember flags are recorded for the session layer, which owns the
// remembered-device cookie.
func (m *DefaultSignInManager) TwoFactorAuthenticatorSignIn(ctx context.Context, user *SiteUser, code string, rememberMe, rememberDevice bool) (SignInOutcome, error) {
	if user == nil || !user.TwoFactorEnabled {
		return OutcomeFailed, nil
	}

	if m.attemptsExhausted(user) {
		return OutcomeLockedOut, nil
	}

	if !ValidateTOTP(user.TwoFactorSecret, code, m.now()) {
		if err := m.users.TrackAttemptedLogin(ctx, user); err != nil {
			return OutcomeFailed, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login attempt")
		}
		return OutcomeFailed, nil
	}

	if err := m.session.Clear(ctx); err != nil {
		return OutcomeFailed, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear pending two-factor sign-in")
	}

	m.logger.Debug("two-factor sign-in succeeded",
		"user", user.ID, "rememberMe", rememberMe, "rememberDevice", rememberDevice)
	return OutcomeSuccess, nil
}

// TwoFactorRecoveryCodeSignIn redeems a single-use recovery code. The used
// code is removed from the account before the outcome is returned, so a
// replay of the same code fails. Unrecognized codes count toward the same
// attempt budget as passwords.
func (m *DefaultSignInManager) TwoFactorRecoveryCodeSignIn(ctx context.Context, user *SiteUser, code string) (SignInOutcome, error) {
	if user == nil || !user.TwoFactorEnabled {
		return OutcomeFailed, nil
	}

	if m.attemptsExhausted(user) {
		return OutcomeLockedOut, nil
	}

	remaining, ok := ConsumeRecoveryCode(user.RecoveryCodes, code)
	if !ok {
		if err := m.users.TrackAttemptedLogin(ctx, user); err != nil {
			return OutcomeFailed, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login attempt")
		}
		return OutcomeFailed, nil
	}

	user.RecoveryCodes = remaining
	if _, err := m.users.Update(ctx, user); err != nil {
		return OutcomeFailed, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume recovery code")
	}

	if err := m.session.Clear(ctx); err != nil {
		return OutcomeFailed, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear pending two-factor sign-in")
	}

	return OutcomeSuccess, nil
}

// GetTwoFactorAuthenticationUser resolves the account waiting on its
// second factor.
func (m *DefaultSignInManager) GetTwoFactorAuthenticationUser(ctx context.Context, siteID uuid.UUID) (*SiteUser, error) {
	userID, err := m.session.Get(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return m.users.FindByID(ctx, siteID, userID)
}

// SignOut clears any session state the manager holds.
func (m *DefaultSignInManager) SignOut(ctx context.Context) error {
	return m.session.Clear(ctx)
}
