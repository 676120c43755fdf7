package cloudscribe

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ExternalUserReconciler matches an external login assertion to a local
// account, or synthesizes one from the provider claims. Match order, first
// match wins: (provider, key) link, then email, then create.
type ExternalUserReconciler struct {
	users       Users
	logins      UserLogins
	emailPolicy EmailVerificationPolicy
	displayName DisplayNameResolver
	logger      Logger
	now         func() time.Time
}

// ReconcilerOption configures the reconciler.
type ReconcilerOption func(*ExternalUserReconciler)

// WithReconcilerEmailPolicy overrides the provider email trust policy.
func WithReconcilerEmailPolicy(policy EmailVerificationPolicy) ReconcilerOption {
	return func(r *ExternalUserReconciler) {
		if policy != nil {
			r.emailPolicy = policy
		}
	}
}

// WithReconcilerDisplayNameResolver overrides how display names for new
// accounts are derived.
func WithReconcilerDisplayNameResolver(resolver DisplayNameResolver) ReconcilerOption {
	return func(r *ExternalUserReconciler) {
		if resolver != nil {
			r.displayName = resolver
		}
	}
}

// WithReconcilerLogger overrides the logger.
func WithReconcilerLogger(logger Logger) ReconcilerOption {
	return func(r *ExternalUserReconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReconcilerClock injects a clock, useful in tests.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *ExternalUserReconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewExternalUserReconciler builds a reconciler with the default trust
// policy (believe the provider's email-verified claim) and display name
// formula.
func NewExternalUserReconciler(users Users, logins UserLogins, opts ...ReconcilerOption) *ExternalUserReconciler {
	r := &ExternalUserReconciler{
		users:       users,
		logins:      logins,
		emailPolicy: EmailVerificationPolicyFunc(defaultEmailPolicy),
		displayName: DisplayNameResolverFunc(defaultDisplayName),
		logger:      defLogger{},
		now:         time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Reconcile resolves the assertion to an account. It returns the account
// and whether it was just created. A nil account with a nil error means the
// assertion could not be matched or turned into an account; the caller must
// surface that as a failed login, never proceed silently.
func (r *ExternalUserReconciler) Reconcile(
	ctx context.Context,
	site *SiteSettings,
	info *ExternalLoginInfo,
	providedEmail string,
	didAcceptTerms bool,
) (*SiteUser, bool, error) {
	if site == nil {
		return nil, false, ErrSiteRequired
	}
	if info == nil || info.Provider == "" || info.ProviderKey == "" {
		return nil, false, nil
	}

	link, err := r.logins.Find(ctx, site.ID, info.Provider, info.ProviderKey)
	if err != nil && !goerrors.IsNotFound(err) {
		return nil, false, err
	}
	if link != nil {
		user, err := r.users.FindByID(ctx, site.ID, link.UserID)
		if err != nil {
			return nil, false, goerrors.Wrap(err, goerrors.CategoryInternal, "linked account lookup failed")
		}
		return user, false, nil
	}

	email := usableEmail(providedEmail, info)

	if email != "" {
		user, err := r.users.FindByEmail(ctx, site.ID, email)
		if err != nil && !goerrors.IsNotFound(err) {
			return nil, false, err
		}
		if user != nil {
			// Existing account, no link yet. The caller gets the
			// assertion back so the user can link explicitly after
			// proving ownership; we never auto-attach here.
			return user, false, nil
		}
	}

	if email == "" {
		r.logger.Debug("external assertion carries no usable email", "provider", info.Provider)
		return nil, false, nil
	}

	user, err := r.createFromAssertion(ctx, site, info, email, didAcceptTerms)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, nil
	}

	return user, true, nil
}

func (r *ExternalUserReconciler) createFromAssertion(
	ctx context.Context,
	site *SiteSettings,
	info *ExternalLoginInfo,
	email string,
	didAcceptTerms bool,
) (*SiteUser, error) {
	var agreementAccepted *time.Time
	if didAcceptTerms && site.HasRegistrationAgreement() {
		accepted := r.now().UTC()
		agreementAccepted = &accepted
	}

	lastLogin := r.now().UTC()

	var created *SiteUser
	for attempt := 0; attempt < maxLoginNameAttempts; attempt++ {
		name, err := ResolveAvailableLoginName(ctx, r.users, site.ID, email, noExcludedUser)
		if err != nil {
			if goerrors.Is(err, ErrLoginNameTaken) {
				return nil, nil
			}
			return nil, err
		}

		user := &SiteUser{
			SiteID:               site.ID,
			UserName:             name,
			Email:                email,
			FirstName:            info.GivenName,
			LastName:             info.Surname,
			AccountApproved:      !site.RequireApprovalBeforeLogin,
			EmailConfirmed:       r.emailPolicy.HasVerifiedEmail(info),
			AgreementAcceptedUtc: agreementAccepted,
			LastLoginUtc:         &lastLogin,
		}
		user.DisplayName = r.displayName.ResolveDisplayName(user)

		created, err = r.users.Create(ctx, user)
		if err == nil {
			break
		}
		if !IsDuplicateRecord(err) {
			return nil, err
		}
		// lost a race on the login name, regenerate and retry
		created = nil
	}

	if created == nil {
		r.logger.Warn("could not create account from external assertion", "provider", info.Provider, "email", email)
		return nil, nil
	}

	err := r.logins.Add(ctx, &UserLogin{
		SiteID:              site.ID,
		UserID:              created.ID,
		LoginProvider:       info.Provider,
		ProviderKey:         info.ProviderKey,
		ProviderDisplayName: info.Provider,
	})
	if err != nil {
		if IsDuplicateRecord(err) {
			// another request linked this assertion first; treat as
			// reconciliation failure rather than adopting their account
			r.logger.Warn("external login link already exists", "provider", info.Provider)
			return nil, nil
		}
		return nil, err
	}

	return created, nil
}

// usableEmail picks the override else the claim, and treats anything
// without "@" as absent.
func usableEmail(providedEmail string, info *ExternalLoginInfo) string {
	email := strings.TrimSpace(providedEmail)
	if email == "" {
		email = strings.TrimSpace(info.Email)
	}
	if !strings.Contains(email, "@") {
		return ""
	}
	return email
}

func defaultEmailPolicy(info *ExternalLoginInfo) bool {
	return info != nil && info.EmailVerified
}

func defaultDisplayName(user *SiteUser) string {
	if user == nil {
		return ""
	}
	if user.DisplayName != "" {
		return user.DisplayName
	}

	name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	if name != "" {
		return name
	}

	return SuggestLoginNameFromEmail(user.Email)
}
