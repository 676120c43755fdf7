package cloudscribe

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AccountService coordinates the login and registration flows for one
// request: resolve or create the account, verify the credential, run the
// site's login rules, apply side effects, and return a uniform result.
type AccountService struct {
	users      Users
	logins     UserLogins
	signIn     SignInManager
	tokens     SecurityTokens
	rules      *LoginRulesProcessor
	reconciler *ExternalUserReconciler
	logger     Logger
	now        func() time.Time
}

// AccountServiceOption configures the service.
type AccountServiceOption func(*AccountService)

// WithAccountLogger overrides the logger.
func WithAccountLogger(logger Logger) AccountServiceOption {
	return func(s *AccountService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAccountRules replaces the login rules processor.
func WithAccountRules(rules *LoginRulesProcessor) AccountServiceOption {
	return func(s *AccountService) {
		if rules != nil {
			s.rules = rules
		}
	}
}

// WithAccountReconciler replaces the external identity reconciler.
func WithAccountReconciler(reconciler *ExternalUserReconciler) AccountServiceOption {
	return func(s *AccountService) {
		if reconciler != nil {
			s.reconciler = reconciler
		}
	}
}

// WithAccountClock injects a clock, useful in tests.
func WithAccountClock(now func() time.Time) AccountServiceOption {
	return func(s *AccountService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAccountService wires the service with default rules and reconciler.
func NewAccountService(
	users Users,
	logins UserLogins,
	signIn SignInManager,
	tokens SecurityTokens,
	opts ...AccountServiceOption,
) *AccountService {
	s := &AccountService{
		users:  users,
		logins: logins,
		signIn: signIn,
		tokens: tokens,
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.rules == nil {
		s.rules = NewLoginRulesProcessor(tokens, WithRulesLogger(s.logger))
	}
	if s.reconciler == nil {
		s.reconciler = NewExternalUserReconciler(users, logins, WithReconcilerLogger(s.logger))
	}

	return s
}

// LoginRequest is the password login payload. Which identifier field is
// consulted depends on the site's UseEmailForLogin setting.
type LoginRequest struct {
	Email      string `json:"email"`
	UserName   string `json:"user_name"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// Validate checks the payload against the site's login identifier policy.
func (r LoginRequest) Validate(site *SiteSettings) error {
	if site != nil && site.UseEmailForLogin {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Password, validation.Required),
		)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserName, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// TwoFactorLoginRequest completes a pending two-factor sign-in with an
// authenticator code.
type TwoFactorLoginRequest struct {
	TwoFactorCode  string `json:"two_factor_code"`
	RememberMe     bool   `json:"remember_me"`
	RememberDevice bool   `json:"remember_device"`
}

// Validate checks the payload.
func (r TwoFactorLoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TwoFactorCode, validation.Required, validation.Length(6, 8)),
	)
}

// RegisterRequest is the self-registration payload.
type RegisterRequest struct {
	Email        string `json:"email"`
	UserName     string `json:"user_name"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	DisplayName  string `json:"display_name"`
	AgreeToTerms bool   `json:"agree_to_terms"`
}

// Validate checks the payload.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&r.UserName, validation.Length(2, 50)),
	)
}

// TryLogin attempts a password sign-in for the site. Policy rejections and
// wrong credentials come back in the result; only infrastructure failures
// return an error.
func (s *AccountService) TryLogin(ctx context.Context, site *SiteSettings, req LoginRequest) (*UserLoginResult, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}
	if err := req.Validate(site); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid login payload")
	}

	template := &LoginResultTemplate{}

	var user *SiteUser
	var err error
	if site.UseEmailForLogin {
		user, err = s.users.FindByEmail(ctx, site.ID, req.Email)
	} else {
		user, err = s.users.FindByLoginName(ctx, site.ID, req.UserName)
	}
	if err != nil && !goerrors.IsNotFound(err) {
		return nil, err
	}
	template.User = user

	if template.User != nil {
		if err := s.rules.Process(ctx, site, template); err != nil {
			return nil, err
		}
	}

	if template.User != nil && template.SignInResult == OutcomeNotAttempted && !template.Rejected() {
		persistent := site.AllowPersistentLogin && req.RememberMe

		outcome, err := s.signIn.PasswordSignIn(ctx, template.User, req.Password, persistent)
		if err != nil {
			return nil, err
		}
		template.SignInResult = outcome

		if outcome == OutcomeSuccess {
			if err := s.stampLastLogin(ctx, template.User); err != nil {
				return nil, err
			}
		}
	}

	return newUserLoginResult(template), nil
}

// Try2FALogin completes a pending two-factor sign-in with an authenticator
// code. The pending account comes from the session collaborator.
func (s *AccountService) Try2FALogin(ctx context.Context, site *SiteSettings, req TwoFactorLoginRequest) (*UserLoginResult, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}
	if err := req.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid two-factor payload")
	}

	return s.completeTwoFactor(ctx, site, func(ctx context.Context, user *SiteUser) (SignInOutcome, error) {
		code := NormalizeAuthenticatorCode(req.TwoFactorCode)
		return s.signIn.TwoFactorAuthenticatorSignIn(ctx, user, code, req.RememberMe, req.RememberDevice)
	})
}

// TryLoginWithRecoveryCode completes a pending two-factor sign-in with a
// single-use recovery code.
func (s *AccountService) TryLoginWithRecoveryCode(ctx context.Context, site *SiteSettings, recoveryCode string) (*UserLoginResult, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}

	return s.completeTwoFactor(ctx, site, func(ctx context.Context, user *SiteUser) (SignInOutcome, error) {
		return s.signIn.TwoFactorRecoveryCodeSignIn(ctx, user, recoveryCode)
	})
}

func (s *AccountService) completeTwoFactor(
	ctx context.Context,
	site *SiteSettings,
	verify func(ctx context.Context, user *SiteUser) (SignInOutcome, error),
) (*UserLoginResult, error) {
	template := &LoginResultTemplate{}

	user, err := s.signIn.GetTwoFactorAuthenticationUser(ctx, site.ID)
	if err != nil && !goerrors.IsNotFound(err) && !goerrors.Is(err, ErrNoPendingTwoFactor) {
		return nil, err
	}
	template.User = user

	if template.User != nil {
		if err := s.rules.Process(ctx, site, template); err != nil {
			return nil, err
		}
	}

	if template.User != nil && template.SignInResult == OutcomeNotAttempted && !template.Rejected() {
		outcome, err := verify(ctx, template.User)
		if err != nil {
			return nil, err
		}
		template.SignInResult = outcome

		if outcome == OutcomeSuccess {
			if err := s.stampLastLogin(ctx, template.User); err != nil {
				return nil, err
			}
		}
	}

	return newUserLoginResult(template), nil
}

// TryExternalLogin handles an external provider callback: reconcile the
// assertion to an account, run the rules, and sign in only against the
// matched account's own provider/key pair. When the final outcome is not
// Success or TwoFactorRequired any partial external session is torn down
// before returning.
func (s *AccountService) TryExternalLogin(
	ctx context.Context,
	site *SiteSettings,
	info *ExternalLoginInfo,
	providedEmail string,
	didAcceptTerms bool,
) (*UserLoginResult, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}

	template := &LoginResultTemplate{ExternalLoginInfo: info}

	if info == nil {
		template.AddRejectReason(ReasonNoExternalAssertion)
	} else {
		user, isNew, err := s.reconciler.Reconcile(ctx, site, info, providedEmail, didAcceptTerms)
		if err != nil {
			return nil, err
		}
		if user == nil {
			template.AddRejectReason(ReasonReconciliationError)
		}
		template.User = user
		template.IsNewUserRegistration = isNew
	}

	if template.User != nil {
		if err := s.rules.Process(ctx, site, template); err != nil {
			return nil, err
		}
	}

	if template.User != nil && template.SignInResult == OutcomeNotAttempted && !template.Rejected() {
		outcome, err := s.signIn.ExternalLoginSignIn(ctx, template.User, info.Provider, info.ProviderKey)
		if err != nil {
			return nil, err
		}
		template.SignInResult = outcome

		if outcome == OutcomeSuccess && !template.IsNewUserRegistration {
			// creation already stamped the first login
			if err := s.stampLastLogin(ctx, template.User); err != nil {
				return nil, err
			}
		}
	}

	if template.User != nil &&
		template.SignInResult != OutcomeSuccess &&
		template.SignInResult != OutcomeTwoFactorRequired {
		if err := s.signIn.SignOut(ctx); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear partial external session")
		}
	}

	return newUserLoginResult(template), nil
}

// TryRegister creates a local account with a password and immediately runs
// it through the login rules, so the caller learns in one round trip
// whether the new member may sign in or has outstanding requirements.
func (s *AccountService) TryRegister(ctx context.Context, site *SiteSettings, req RegisterRequest) (*UserLoginResult, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}
	if err := req.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	template := &LoginResultTemplate{}

	userName := req.UserName
	if userName != "" {
		available, err := s.users.LoginNameAvailable(ctx, site.ID, userName, noExcludedUser)
		if err != nil {
			return nil, err
		}
		if !available {
			userName = ""
		}
	}
	if userName == "" {
		name, err := ResolveAvailableLoginName(ctx, s.users, site.ID, req.Email, noExcludedUser)
		if err != nil {
			if goerrors.Is(err, ErrLoginNameTaken) {
				template.AddRejectReason(ReasonRegistrationFailed)
				return newUserLoginResult(template), nil
			}
			return nil, err
		}
		userName = name
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	now := s.now().UTC()
	user := &SiteUser{
		SiteID:          site.ID,
		UserName:        userName,
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		DisplayName:     req.DisplayName,
		PasswordHash:    hash,
		AccountApproved: !site.RequireApprovalBeforeLogin,
		LastLoginUtc:    &now,
	}
	if site.HasRegistrationAgreement() && req.AgreeToTerms {
		accepted := now
		user.AgreementAcceptedUtc = &accepted
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if IsDuplicateRecord(err) {
			template.AddRejectReason(ReasonRegistrationFailed)
			return newUserLoginResult(template), nil
		}
		return nil, err
	}

	template.User = created
	template.IsNewUserRegistration = true

	if err := s.rules.Process(ctx, site, template); err != nil {
		return nil, err
	}

	if !template.Rejected() && template.SignInResult == OutcomeNotAttempted {
		template.SignInResult = OutcomeSuccess
	}

	return newUserLoginResult(template), nil
}

// PasswordResetInfo carries the token a caller needs to send the reset
// notification. A nil User means no account matched; callers should not
// leak that to the requester.
type PasswordResetInfo struct {
	User  *UserContext
	Token string
}

// GetPasswordResetToken issues a reset token for the account registered
// under the email, if any.
func (s *AccountService) GetPasswordResetToken(ctx context.Context, site *SiteSettings, email string) (*PasswordResetInfo, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}

	user, err := s.users.FindByEmail(ctx, site.ID, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return &PasswordResetInfo{}, nil
		}
		return nil, err
	}

	token, err := s.tokens.GeneratePasswordResetToken(user)
	if err != nil {
		return nil, err
	}

	return &PasswordResetInfo{User: NewUserContext(user), Token: token}, nil
}

// ResetPassword sets a new password after validating the reset token. A
// successful reset also confirms the email: the user proved control of the
// mailbox by completing the flow.
func (s *AccountService) ResetPassword(ctx context.Context, site *SiteSettings, email, code, newPassword string) (*UserContext, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}

	user, err := s.users.FindByEmail(ctx, site.ID, email)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.ValidatePasswordResetToken(user, code); err != nil {
		return nil, err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	user.PasswordHash = hash
	user.EmailConfirmed = true

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return nil, err
	}

	return NewUserContext(updated), nil
}

// ConfirmEmail marks the account's email confirmed after validating the
// confirmation token.
func (s *AccountService) ConfirmEmail(ctx context.Context, site *SiteSettings, userID uuid.UUID, code string) (*UserContext, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}

	user, err := s.users.FindByID(ctx, site.ID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.ValidateEmailConfirmationToken(user, code); err != nil {
		return nil, err
	}

	user.EmailConfirmed = true
	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return nil, err
	}

	return NewUserContext(updated), nil
}

// TwoFactorInfo describes the pending two-factor sign-in, the factors the
// account can use and, when a provider was requested, a fresh token.
type TwoFactorInfo struct {
	User    *UserContext
	Factors []string
	Token   string
}

// GetTwoFactorInfo reports the pending two-factor state for the session.
func (s *AccountService) GetTwoFactorInfo(ctx context.Context, site *SiteSettings, provider string) (*TwoFactorInfo, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}

	user, err := s.signIn.GetTwoFactorAuthenticationUser(ctx, site.ID)
	if err != nil {
		if goerrors.IsNotFound(err) || goerrors.Is(err, ErrNoPendingTwoFactor) {
			return &TwoFactorInfo{}, nil
		}
		return nil, err
	}

	info := &TwoFactorInfo{User: NewUserContext(user)}
	if user.TwoFactorEnabled {
		info.Factors = append(info.Factors, "authenticator")
		if len(user.RecoveryCodes) > 0 {
			info.Factors = append(info.Factors, "recovery-code")
		}
	}

	if provider != "" {
		token, err := s.tokens.GenerateTwoFactorToken(user, provider)
		if err != nil {
			return nil, err
		}
		info.Token = token
	}

	return info, nil
}

// HandleUserRolesChanged clears the roles-changed dirty flag and cycles the
// session so the next sign-in picks up the new claims.
func (s *AccountService) HandleUserRolesChanged(ctx context.Context, site *SiteSettings, userID uuid.UUID) error {
	if site == nil {
		return ErrSiteRequired
	}

	user, err := s.users.FindByID(ctx, site.ID, userID)
	if err != nil {
		return err
	}

	if err := s.signIn.SignOut(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to cycle session")
	}

	user.RolesChanged = false
	_, err = s.users.Update(ctx, user)
	return err
}

// AcceptRegistrationAgreement stamps the terms acceptance for the account.
func (s *AccountService) AcceptRegistrationAgreement(ctx context.Context, site *SiteSettings, userID uuid.UUID) error {
	if site == nil {
		return ErrSiteRequired
	}

	user, err := s.users.FindByID(ctx, site.ID, userID)
	if err != nil {
		return err
	}

	accepted := s.now().UTC()
	user.AgreementAcceptedUtc = &accepted
	_, err = s.users.Update(ctx, user)
	return err
}

// LoginNameIsAvailable checks login name availability for the site.
func (s *AccountService) LoginNameIsAvailable(ctx context.Context, site *SiteSettings, name string, excludeID uuid.UUID) (bool, error) {
	if site == nil {
		return false, ErrSiteRequired
	}
	return s.users.LoginNameAvailable(ctx, site.ID, name, excludeID)
}

// SignOut clears the current session.
func (s *AccountService) SignOut(ctx context.Context) error {
	return s.signIn.SignOut(ctx)
}

// stampLastLogin records a successful sign-in. It refuses to apply the
// side effect once the request is cancelled: a cancelled credential check
// must not leave a login timestamp behind.
func (s *AccountService) stampLastLogin(ctx context.Context, user *SiteUser) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "sign-in cancelled before recording login")
	}

	now := s.now().UTC()
	user.LastLoginUtc = &now

	if err := s.users.TrackSuccessfulLogin(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record successful login")
	}
	return nil
}
