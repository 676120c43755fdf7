package cloudscribe

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// Token purposes. A token minted for one purpose never validates for
// another.
const (
	purposeEmailConfirmation = "email_confirmation"
	purposePasswordReset     = "password_reset"
	purposeTwoFactor         = "two_factor"
)

type securityTokenClaims struct {
	jwt.RegisteredClaims
	Purpose  string `json:"purpose"`
	SiteID   string `json:"site_id"`
	Provider string `json:"provider,omitempty"`
	// Stamp binds the token to the credential state it was minted
	// against, so a password reset invalidates outstanding reset tokens.
	Stamp string `json:"stamp,omitempty"`
}

// JWTSecurityTokens implements SecurityTokens with purpose-scoped HS256
// tokens.
type JWTSecurityTokens struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
	logger     Logger
}

// SecurityTokensOption configures the token service.
type SecurityTokensOption func(*JWTSecurityTokens)

// WithTokenTTL overrides the default token lifetime.
func WithTokenTTL(ttl time.Duration) SecurityTokensOption {
	return func(s *JWTSecurityTokens) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithTokenClock injects a clock, useful in tests.
func WithTokenClock(now func() time.Time) SecurityTokensOption {
	return func(s *JWTSecurityTokens) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenLogger overrides the logger.
func WithTokenLogger(logger Logger) SecurityTokensOption {
	return func(s *JWTSecurityTokens) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSecurityTokens creates the default token service.
func NewSecurityTokens(signingKey []byte, issuer string, opts ...SecurityTokensOption) *JWTSecurityTokens {
	s := &JWTSecurityTokens{
		signingKey: signingKey,
		issuer:     issuer,
		ttl:        24 * time.Hour,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

var _ SecurityTokens = (*JWTSecurityTokens)(nil)

// GenerateEmailConfirmationToken mints a confirmation token bound to the
// user's current email.
func (s *JWTSecurityTokens) GenerateEmailConfirmationToken(user *SiteUser) (string, error) {
	return s.generate(user, purposeEmailConfirmation, "", user.Email)
}

// ValidateEmailConfirmationToken checks a confirmation token against the
// user it was minted for.
func (s *JWTSecurityTokens) ValidateEmailConfirmationToken(user *SiteUser, token string) error {
	return s.validate(user, token, purposeEmailConfirmation, user.Email)
}

// GeneratePasswordResetToken mints a reset token bound to the current
// password hash, so it dies with the first successful reset.
func (s *JWTSecurityTokens) GeneratePasswordResetToken(user *SiteUser) (string, error) {
	return s.generate(user, purposePasswordReset, "", user.PasswordHash)
}

// ValidatePasswordResetToken checks a reset token against the user.
func (s *JWTSecurityTokens) ValidatePasswordResetToken(user *SiteUser, token string) error {
	return s.validate(user, token, purposePasswordReset, user.PasswordHash)
}

// GenerateTwoFactorToken mints a short-lived token for the named two-factor
// provider.
func (s *JWTSecurityTokens) GenerateTwoFactorToken(user *SiteUser, provider string) (string, error) {
	return s.generate(user, purposeTwoFactor, provider, "")
}

func (s *JWTSecurityTokens) generate(user *SiteUser, purpose, provider, stamp string) (string, error) {
	if user == nil {
		return "", ErrUserNotFound
	}

	now := s.now()
	claims := &securityTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Purpose:  purpose,
		SiteID:   user.SiteID.String(),
		Provider: provider,
		Stamp:    stamp,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign security token")
	}

	return signed, nil
}

func (s *JWTSecurityTokens) validate(user *SiteUser, raw, purpose, stamp string) error {
	if user == nil {
		return ErrUserNotFound
	}

	parsed, err := jwt.ParseWithClaims(raw, &securityTokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Error("security token with unexpected signing method", "alg", t.Header["alg"])
			return nil, ErrInvalidSecurityToken
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil || !parsed.Valid {
		return ErrInvalidSecurityToken
	}

	claims, ok := parsed.Claims.(*securityTokenClaims)
	if !ok {
		return ErrInvalidSecurityToken
	}

	if claims.Purpose != purpose ||
		claims.Subject != user.ID.String() ||
		claims.SiteID != user.SiteID.String() ||
		claims.Stamp != stamp {
		return ErrInvalidSecurityToken
	}

	return nil
}
