package cloudscribe

import (
	"context"
	"fmt"
	"net/url"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AuthenticatorSetup carries what the user needs to enroll an authenticator
// app: the shared key and the otpauth URI most apps accept as a QR code.
type AuthenticatorSetup struct {
	SharedKey  string
	OtpauthURI string
}

// GetAuthenticatorSetup provisions (or returns the existing) authenticator
// secret for the account. The secret is persisted immediately but two-factor
// stays off until EnableTwoFactor verifies a code against it.
func (s *AccountService) GetAuthenticatorSetup(ctx context.Context, site *SiteSettings, userID uuid.UUID) (*AuthenticatorSetup, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}

	user, err := s.users.FindByID(ctx, site.ID, userID)
	if err != nil {
		return nil, err
	}

	if user.TwoFactorSecret == "" {
		secret, err := GenerateTwoFactorSecret()
		if err != nil {
			return nil, err
		}
		user.TwoFactorSecret = secret
		if _, err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	return &AuthenticatorSetup{
		SharedKey:  user.TwoFactorSecret,
		OtpauthURI: otpauthURI(site.SiteName, user.Email, user.TwoFactorSecret),
	}, nil
}

// EnableTwoFactor turns two-factor on once the user proves they enrolled the
// secret by submitting a valid authenticator code. It returns a fresh batch
// of recovery codes; only their hashes stay on the account.
func (s *AccountService) EnableTwoFactor(ctx context.Context, site *SiteSettings, userID uuid.UUID, code string) ([]string, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}

	user, err := s.users.FindByID(ctx, site.ID, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorSecret == "" {
		return nil, goerrors.New("authenticator has not been provisioned", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if !ValidateTOTP(user.TwoFactorSecret, code, s.now()) {
		return nil, ErrInvalidSecurityToken
	}

	codes, hashes, err := GenerateRecoveryCodes()
	if err != nil {
		return nil, err
	}

	user.TwoFactorEnabled = true
	user.RecoveryCodes = hashes
	if _, err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("two-factor enabled", "user", user.ID)
	return codes, nil
}

// DisableTwoFactor turns two-factor off and discards the secret and any
// unredeemed recovery codes.
func (s *AccountService) DisableTwoFactor(ctx context.Context, site *SiteSettings, userID uuid.UUID) error {
	if site == nil {
		return ErrSiteRequired
	}

	user, err := s.users.FindByID(ctx, site.ID, userID)
	if err != nil {
		return err
	}

	user.TwoFactorEnabled = false
	user.TwoFactorSecret = ""
	user.RecoveryCodes = nil
	_, err = s.users.Update(ctx, user)
	return err
}

// GenerateNewRecoveryCodes replaces the account's recovery codes with a
// fresh batch, invalidating every outstanding one.
func (s *AccountService) GenerateNewRecoveryCodes(ctx context.Context, site *SiteSettings, userID uuid.UUID) ([]string, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}

	user, err := s.users.FindByID(ctx, site.ID, userID)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, goerrors.New("two-factor is not enabled", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	codes, hashes, err := GenerateRecoveryCodes()
	if err != nil {
		return nil, err
	}

	user.RecoveryCodes = hashes
	if _, err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	return codes, nil
}

func otpauthURI(issuer, account, secret string) string {
	if issuer == "" {
		issuer = "cloudscribe"
	}
	label := url.PathEscape(issuer) + ":" + url.PathEscape(account)
	q := url.Values{}
	q.Set("secret", secret)
	q.Set("issuer", issuer)
	q.Set("digits", fmt.Sprintf("%d", totpDigits))
	return "otpauth://totp/" + label + "?" + q.Encode()
}
