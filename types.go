package cloudscribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Logger is the minimal logging surface the account components need.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type defLogger struct{}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNT "+newline(format), args...)
}

func newline(format string) string {
	if strings.HasSuffix(format, "\n") {
		return format
	}
	return format + "\n"
}

// Users is the persistence contract for site-scoped accounts. All lookups
// are scoped to a single site; callers must never mix identifiers across
// sites.
type Users interface {
	FindByID(ctx context.Context, siteID, id uuid.UUID) (*SiteUser, error)
	FindByLoginName(ctx context.Context, siteID uuid.UUID, name string) (*SiteUser, error)
	FindByEmail(ctx context.Context, siteID uuid.UUID, email string) (*SiteUser, error)
	Create(ctx context.Context, user *SiteUser) (*SiteUser, error)
	Update(ctx context.Context, user *SiteUser) (*SiteUser, error)
	LoginNameAvailable(ctx context.Context, siteID uuid.UUID, name string, excludeID uuid.UUID) (bool, error)
	TrackAttemptedLogin(ctx context.Context, user *SiteUser) error
	TrackSuccessfulLogin(ctx context.Context, user *SiteUser) error
}

// UserLogins is the persistence contract for external provider links.
type UserLogins interface {
	Find(ctx context.Context, siteID uuid.UUID, provider, providerKey string) (*UserLogin, error)
	Add(ctx context.Context, login *UserLogin) error
	Remove(ctx context.Context, siteID, userID uuid.UUID, provider, providerKey string) error
	ListForUser(ctx context.Context, siteID, userID uuid.UUID) ([]*UserLogin, error)
}

// SignInManager verifies presented credentials and owns the ambient web
// session (pending two-factor user, external session teardown). It returns
// an outcome for wrong credentials and an error only for infrastructure
// failure.
type SignInManager interface {
	PasswordSignIn(ctx context.Context, user *SiteUser, password string, persistent bool) (SignInOutcome, error)
	ExternalLoginSignIn(ctx context.Context, user *SiteUser, provider, providerKey string) (SignInOutcome, error)
	TwoFactorAuthenticatorSignIn(ctx context.Context, user *SiteUser, code string, rememberMe, rememberDevice bool) (SignInOutcome, error)
	TwoFactorRecoveryCodeSignIn(ctx context.Context, user *SiteUser, code string) (SignInOutcome, error)
	GetTwoFactorAuthenticationUser(ctx context.Context, siteID uuid.UUID) (*SiteUser, error)
	SignOut(ctx context.Context) error
}

// SecurityTokens issues and validates the purpose-scoped tokens the account
// flows hand back to callers (email confirmation, password reset,
// two-factor).
type SecurityTokens interface {
	GenerateEmailConfirmationToken(user *SiteUser) (string, error)
	ValidateEmailConfirmationToken(user *SiteUser, token string) error
	GeneratePasswordResetToken(user *SiteUser) (string, error)
	ValidatePasswordResetToken(user *SiteUser, token string) error
	GenerateTwoFactorToken(user *SiteUser, provider string) (string, error)
}

// DisplayNameResolver derives the display name for accounts synthesized
// from external assertions. Deployments may override the default formula.
type DisplayNameResolver interface {
	ResolveDisplayName(user *SiteUser) string
}

// DisplayNameResolverFunc adapts a plain function to DisplayNameResolver.
type DisplayNameResolverFunc func(user *SiteUser) string

func (f DisplayNameResolverFunc) ResolveDisplayName(user *SiteUser) string {
	return f(user)
}

// EmailVerificationPolicy decides whether an external provider's email
// claim can be trusted as confirmed.
type EmailVerificationPolicy interface {
	HasVerifiedEmail(info *ExternalLoginInfo) bool
}

// EmailVerificationPolicyFunc adapts a plain function to
// EmailVerificationPolicy.
type EmailVerificationPolicyFunc func(info *ExternalLoginInfo) bool

func (f EmailVerificationPolicyFunc) HasVerifiedEmail(info *ExternalLoginInfo) bool {
	return f(info)
}

// UserContext is the user-facing identity snapshot exposed in login
// results.
type UserContext struct {
	ID             uuid.UUID
	SiteID         uuid.UUID
	UserName       string
	Email          string
	DisplayName    string
	EmailConfirmed bool
	RolesChanged   bool
}

// NewUserContext captures the caller-visible fields of an account.
func NewUserContext(user *SiteUser) *UserContext {
	if user == nil {
		return nil
	}
	return &UserContext{
		ID:             user.ID,
		SiteID:         user.SiteID,
		UserName:       user.UserName,
		Email:          user.Email,
		DisplayName:    user.DisplayName,
		EmailConfirmed: user.EmailConfirmed,
		RolesChanged:   user.RolesChanged,
	}
}
