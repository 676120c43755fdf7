package cloudscribe

// SignInOutcome is the running result of a credential check. It starts at
// OutcomeNotAttempted so "not yet tried" is never confused with "tried and
// failed"; the orchestrator only advances it once the rules processor has
// recorded no reject reasons.
type SignInOutcome int

const (
	// OutcomeNotAttempted is the sentinel initial state.
	OutcomeNotAttempted SignInOutcome = iota
	// OutcomeFailed means the credential check ran and did not match.
	OutcomeFailed
	// OutcomeLockedOut means the account is cooling down after repeated
	// failures.
	OutcomeLockedOut
	// OutcomeTwoFactorRequired means the first factor succeeded and a
	// second factor must complete the sign-in.
	OutcomeTwoFactorRequired
	// OutcomeSuccess means the sign-in is fully established.
	OutcomeSuccess
)

func (o SignInOutcome) String() string {
	switch o {
	case OutcomeNotAttempted:
		return "not-attempted"
	case OutcomeFailed:
		return "failed"
	case OutcomeLockedOut:
		return "locked-out"
	case OutcomeTwoFactorRequired:
		return "two-factor-required"
	case OutcomeSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Succeeded reports whether the outcome established a session.
func (o SignInOutcome) Succeeded() bool {
	return o == OutcomeSuccess
}

// LoginResultTemplate is the request-local decision record threaded through
// the rules pipeline. It is created fresh per attempt and discarded once
// the UserLoginResult is built.
type LoginResultTemplate struct {
	User         *SiteUser
	SignInResult SignInOutcome

	RejectReasons []string

	IsNewUserRegistration  bool
	MustAcceptTerms        bool
	NeedsAccountApproval   bool
	NeedsEmailConfirmation bool
	NeedsPhoneConfirmation bool

	EmailConfirmationToken string
	ExternalLoginInfo      *ExternalLoginInfo
}

// AddRejectReason appends a reason unless it is already recorded, keeping
// the rules pipeline idempotent across re-invocation.
func (t *LoginResultTemplate) AddRejectReason(reason string) {
	if reason == "" {
		return
	}
	for _, existing := range t.RejectReasons {
		if existing == reason {
			return
		}
	}
	t.RejectReasons = append(t.RejectReasons, reason)
}

// Rejected reports whether any policy recorded a reject reason.
func (t *LoginResultTemplate) Rejected() bool {
	return len(t.RejectReasons) > 0
}

// UserLoginResult is the uniform, immutable snapshot every login flow
// returns. All flows build it through newUserLoginResult so no flow can
// ship a result missing a flag the others populate.
type UserLoginResult struct {
	Outcome       SignInOutcome
	RejectReasons []string
	User          *UserContext

	IsNewUserRegistration  bool
	MustAcceptTerms        bool
	NeedsAccountApproval   bool
	NeedsEmailConfirmation bool
	NeedsPhoneConfirmation bool

	EmailConfirmationToken string
	ExternalLoginInfo      *ExternalLoginInfo
}

// Succeeded reports whether the sign-in is fully established.
func (r *UserLoginResult) Succeeded() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}

func newUserLoginResult(template *LoginResultTemplate) *UserLoginResult {
	outcome := template.SignInResult
	if outcome == OutcomeNotAttempted {
		// callers never see the sentinel
		outcome = OutcomeFailed
	}

	reasons := make([]string, len(template.RejectReasons))
	copy(reasons, template.RejectReasons)

	return &UserLoginResult{
		Outcome:                outcome,
		RejectReasons:          reasons,
		User:                   NewUserContext(template.User),
		IsNewUserRegistration:  template.IsNewUserRegistration,
		MustAcceptTerms:        template.MustAcceptTerms,
		NeedsAccountApproval:   template.NeedsAccountApproval,
		NeedsEmailConfirmation: template.NeedsEmailConfirmation,
		NeedsPhoneConfirmation: template.NeedsPhoneConfirmation,
		EmailConfirmationToken: template.EmailConfirmationToken,
		ExternalLoginInfo:      template.ExternalLoginInfo,
	}
}
