package cloudscribe

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SiteUser is the per-site account model. Accounts are always scoped to a
// site; the same email may exist on two different sites as two unrelated
// accounts.
type SiteUser struct {
	bun.BaseModel `bun:"table:site_users,alias:usr"`

	ID          uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	SiteID      uuid.UUID `bun:"site_id,notnull,type:uuid" json:"site_id,omitempty"`
	UserName    string    `bun:"user_name,notnull" json:"user_name,omitempty"`
	Email       string    `bun:"email,notnull" json:"email,omitempty"`
	DisplayName string    `bun:"display_name" json:"display_name,omitempty"`
	FirstName   string    `bun:"first_name" json:"first_name,omitempty"`
	LastName    string    `bun:"last_name" json:"last_name,omitempty"`
	PhoneNumber string    `bun:"phone_number" json:"phone_number,omitempty"`

	PasswordHash     string   `bun:"password_hash" json:"-"`
	TwoFactorEnabled bool     `bun:"two_factor_enabled" json:"two_factor_enabled,omitempty"`
	TwoFactorSecret  string   `bun:"two_factor_secret" json:"-"`
	RecoveryCodes    []string `bun:"recovery_codes,type:jsonb" json:"-"`

	AccountApproved      bool       `bun:"account_approved" json:"account_approved,omitempty"`
	EmailConfirmed       bool       `bun:"email_confirmed" json:"email_confirmed,omitempty"`
	PhoneConfirmed       bool       `bun:"phone_confirmed" json:"phone_confirmed,omitempty"`
	AgreementAcceptedUtc *time.Time `bun:"agreement_accepted_utc,nullzero" json:"agreement_accepted_utc,omitempty"`
	RolesChanged         bool       `bun:"roles_changed" json:"roles_changed,omitempty"`

	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	LastLoginUtc   *time.Time `bun:"last_login_utc,nullzero" json:"last_login_utc,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasPassword reports whether the account carries a local password
// credential. External-login-only accounts do not.
func (u *SiteUser) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// SiteSettings is the per-site policy snapshot. The login pipeline only
// reads it; resolving the current site belongs to the caller.
type SiteSettings struct {
	bun.BaseModel `bun:"table:sites,alias:site"`

	ID       uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	SiteName string    `bun:"site_name,notnull" json:"site_name,omitempty"`

	UseEmailForLogin           bool   `bun:"use_email_for_login" json:"use_email_for_login,omitempty"`
	AllowPersistentLogin       bool   `bun:"allow_persistent_login" json:"allow_persistent_login,omitempty"`
	RequireApprovalBeforeLogin bool   `bun:"require_approval_before_login" json:"require_approval_before_login,omitempty"`
	RequireConfirmedEmail      bool   `bun:"require_confirmed_email" json:"require_confirmed_email,omitempty"`
	RequireConfirmedPhone      bool   `bun:"require_confirmed_phone" json:"require_confirmed_phone,omitempty"`
	RegistrationAgreement      string `bun:"registration_agreement" json:"registration_agreement,omitempty"`

	GoogleClientID        string `bun:"google_client_id" json:"google_client_id,omitempty"`
	GoogleClientSecret    string `bun:"google_client_secret" json:"-"`
	MicrosoftClientID     string `bun:"microsoft_client_id" json:"microsoft_client_id,omitempty"`
	MicrosoftClientSecret string `bun:"microsoft_client_secret" json:"-"`
	FacebookAppID         string `bun:"facebook_app_id" json:"facebook_app_id,omitempty"`
	FacebookAppSecret     string `bun:"facebook_app_secret" json:"-"`
	TwitterConsumerKey    string `bun:"twitter_consumer_key" json:"twitter_consumer_key,omitempty"`
	TwitterConsumerSecret string `bun:"twitter_consumer_secret" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasRegistrationAgreement reports whether new members must accept terms.
func (s *SiteSettings) HasRegistrationAgreement() bool {
	return s != nil && s.RegistrationAgreement != ""
}

// EnabledExternalProviders lists the OAuth providers this site offers.
// Presence of client credentials implies the provider is enabled.
func (s *SiteSettings) EnabledExternalProviders() []string {
	if s == nil {
		return nil
	}

	var providers []string
	if s.GoogleClientID != "" {
		providers = append(providers, "Google")
	}
	if s.MicrosoftClientID != "" {
		providers = append(providers, "Microsoft")
	}
	if s.FacebookAppID != "" {
		providers = append(providers, "Facebook")
	}
	if s.TwitterConsumerKey != "" {
		providers = append(providers, "Twitter")
	}
	return providers
}

// UserLogin links a local account to an external provider identity.
// Uniqueness of (site_id, login_provider, provider_key) is enforced by the
// storage layer.
type UserLogin struct {
	bun.BaseModel `bun:"table:user_logins,alias:ulg"`

	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	SiteID              uuid.UUID  `bun:"site_id,notnull,type:uuid" json:"site_id,omitempty"`
	UserID              uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	LoginProvider       string     `bun:"login_provider,notnull" json:"login_provider,omitempty"`
	ProviderKey         string     `bun:"provider_key,notnull" json:"provider_key,omitempty"`
	ProviderDisplayName string     `bun:"provider_display_name" json:"provider_display_name,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ExternalLoginInfo is the normalized assertion produced by an external
// provider handshake. It is consumed once per callback and never stored.
type ExternalLoginInfo struct {
	Provider      string
	ProviderKey   string
	Email         string
	EmailVerified bool
	GivenName     string
	Surname       string
	DisplayName   string
	Raw           map[string]any
}
