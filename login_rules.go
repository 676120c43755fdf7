package cloudscribe

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// Reject reasons surfaced to the web layer, in the order the rules run.
const (
	ReasonAccountNotApproved  = "account requires approval by an administrator"
	ReasonEmailNotConfirmed   = "email address is not confirmed"
	ReasonTermsNotAccepted    = "registration agreement has not been accepted"
	ReasonPhoneNotConfirmed   = "phone number is not confirmed"
	ReasonReconciliationError = "could not create an account for the external login"
	ReasonNoExternalAssertion = "no external login assertion was available"
	ReasonRegistrationFailed  = "could not create the account; the email or login name may already be registered"
)

// LoginRule is one post-credential policy check. Rules mutate the shared
// template and must be idempotent: evaluating twice on unchanged state may
// not duplicate reasons or toggle flags back.
type LoginRule interface {
	Evaluate(ctx context.Context, site *SiteSettings, template *LoginResultTemplate) error
}

// LoginRulesProcessor runs the ordered rule set. The full set always runs;
// a later rule never short-circuits an earlier one, so the web layer can
// surface every outstanding requirement at once.
type LoginRulesProcessor struct {
	rules  []LoginRule
	logger Logger
}

// RulesOption configures the processor.
type RulesOption func(*LoginRulesProcessor)

// WithRules replaces the default ordered rule set.
func WithRules(rules ...LoginRule) RulesOption {
	return func(p *LoginRulesProcessor) {
		p.rules = rules
	}
}

// WithRulesLogger overrides the processor logger.
func WithRulesLogger(logger Logger) RulesOption {
	return func(p *LoginRulesProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewLoginRulesProcessor builds the processor with the default rule order:
// approval, confirmed email, terms agreement, confirmed phone. Order is
// part of the contract; the UI renders reasons in this order.
func NewLoginRulesProcessor(tokens SecurityTokens, opts ...RulesOption) *LoginRulesProcessor {
	p := &LoginRulesProcessor{
		rules: []LoginRule{
			&approvalRule{},
			&confirmedEmailRule{tokens: tokens},
			&termsAgreementRule{},
			&confirmedPhoneRule{},
		},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Process evaluates every rule against the template. It must only be called
// with a resolved user on the template. Rule I/O failures propagate as the
// collaborator's own error.
func (p *LoginRulesProcessor) Process(ctx context.Context, site *SiteSettings, template *LoginResultTemplate) error {
	if template == nil || template.User == nil {
		return goerrors.New("rules processor requires a resolved user", goerrors.CategoryInternal)
	}
	if site == nil {
		return ErrSiteRequired
	}

	for _, rule := range p.rules {
		if err := ctx.Err(); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "login rules interrupted")
		}
		if err := rule.Evaluate(ctx, site, template); err != nil {
			return err
		}
	}

	if template.Rejected() {
		p.logger.Debug("login rules rejected sign-in", "user", template.User.ID, "reasons", len(template.RejectReasons))
	}

	return nil
}

type approvalRule struct{}

func (r *approvalRule) Evaluate(ctx context.Context, site *SiteSettings, template *LoginResultTemplate) error {
	if !site.RequireApprovalBeforeLogin {
		return nil
	}
	if template.User.AccountApproved {
		return nil
	}

	template.AddRejectReason(ReasonAccountNotApproved)
	template.NeedsAccountApproval = true
	return nil
}

type confirmedEmailRule struct {
	tokens SecurityTokens
}

func (r *confirmedEmailRule) Evaluate(ctx context.Context, site *SiteSettings, template *LoginResultTemplate) error {
	if !site.RequireConfirmedEmail {
		return nil
	}
	if template.User.EmailConfirmed {
		return nil
	}

	template.AddRejectReason(ReasonEmailNotConfirmed)
	template.NeedsEmailConfirmation = true

	if template.EmailConfirmationToken == "" && r.tokens != nil {
		token, err := r.tokens.GenerateEmailConfirmationToken(template.User)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate email confirmation token")
		}
		template.EmailConfirmationToken = token
	}

	return nil
}

type termsAgreementRule struct{}

func (r *termsAgreementRule) Evaluate(ctx context.Context, site *SiteSettings, template *LoginResultTemplate) error {
	if !site.HasRegistrationAgreement() {
		return nil
	}
	if template.User.AgreementAcceptedUtc != nil {
		return nil
	}

	template.AddRejectReason(ReasonTermsNotAccepted)
	template.MustAcceptTerms = true
	return nil
}

type confirmedPhoneRule struct{}

func (r *confirmedPhoneRule) Evaluate(ctx context.Context, site *SiteSettings, template *LoginResultTemplate) error {
	if !site.RequireConfirmedPhone {
		return nil
	}
	if template.User.PhoneConfirmed && hasPlausiblePhone(template.User.PhoneNumber) {
		return nil
	}

	template.AddRejectReason(ReasonPhoneNotConfirmed)
	template.NeedsPhoneConfirmation = true
	return nil
}

// hasPlausiblePhone accepts only numbers phonenumbers can parse as valid.
// A confirmed flag on garbage digits still forces re-confirmation.
func hasPlausiblePhone(number string) bool {
	if number == "" {
		return false
	}
	parsed, err := phonenumbers.Parse(number, "US")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(parsed)
}
