package cloudscribe

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeUserNotFound      = "account_user_not_found"
	TextCodeMismatchedHash    = "account_password_mismatch"
	TextCodeTooManyAttempts   = "account_too_many_login_attempts"
	TextCodeLoginNameTaken    = "account_login_name_taken"
	TextCodeNoPendingTwoFa    = "account_no_pending_two_factor"
	TextCodeInvalidToken      = "account_invalid_security_token"
	TextCodeEmptyPassword     = "account_empty_password"
	TextCodeReconcileFailed   = "account_reconciliation_failed"
	TextCodeProviderMismatch  = "account_provider_mismatch"
	TextCodeSiteRequired      = "account_site_required"
	TextCodeLoginNameConflict = "account_login_name_conflict"
)

// ErrUserNotFound is returned when no account matches the lookup.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned for a wrong password. The sign-in
// manager maps it to OutcomeFailed; it never reaches API callers.
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithTextCode(TextCodeMismatchedHash).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while an account cools down after
// repeated failures.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryAuth).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(errors.CodeForbidden)

// ErrNoPendingTwoFactor is returned when a two-factor completion arrives
// without a pending first-factor sign-in.
var ErrNoPendingTwoFactor = errors.New("no pending two-factor sign-in", errors.CategoryAuth).
	WithTextCode(TextCodeNoPendingTwoFa).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidSecurityToken is returned for expired or tampered confirmation,
// reset and two-factor tokens.
var ErrInvalidSecurityToken = errors.New("invalid or expired security token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyPassword is returned when hashing an empty password.
var ErrNoEmptyPassword = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrLoginNameTaken is returned when a login name is already in use on the
// site and no alternate could be found.
var ErrLoginNameTaken = errors.New("login name is not available", errors.CategoryConflict).
	WithTextCode(TextCodeLoginNameTaken).
	WithCode(errors.CodeConflict)

// ErrProviderMismatch guards the external flow: a sign-in must only be
// attempted for the matched account's own provider/key pair.
var ErrProviderMismatch = errors.New("external login does not belong to account", errors.CategoryAuth).
	WithTextCode(TextCodeProviderMismatch).
	WithCode(errors.CodeForbidden)

// ErrSiteRequired is returned when an operation is invoked without a site
// policy snapshot.
var ErrSiteRequired = errors.New("site settings are required", errors.CategoryBadInput).
	WithTextCode(TextCodeSiteRequired).
	WithCode(errors.CodeBadRequest)

// IsDuplicateRecord reports whether err is a uniqueness violation surfaced
// by the storage driver. Both postgres and sqlite spellings are matched so
// repositories behave the same under test and production drivers.
func IsDuplicateRecord(err error) bool {
	if err == nil {
		return false
	}
	var rich *errors.Error
	if errors.As(err, &rich) && rich.Category == errors.CategoryConflict {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
