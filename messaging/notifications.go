package messaging

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	goerrors "github.com/goliatone/go-errors"
)

// AccountNotifier formats and sends the account lifecycle mail: email
// confirmation, password reset, and approval notices. Bodies are plain text
// so they render the same everywhere; sites wanting branded HTML supply
// their own templates.
type AccountNotifier struct {
	sender    Sender
	templates map[string]*template.Template
}

// NotifierOption configures the notifier.
type NotifierOption func(*AccountNotifier)

// WithTemplate overrides one of the named body templates. Known names are
// "confirm_email", "password_reset", "pending_approval" and
// "account_approved".
func WithTemplate(name string, tpl *template.Template) NotifierOption {
	return func(n *AccountNotifier) {
		if tpl != nil {
			n.templates[name] = tpl
		}
	}
}

// NewAccountNotifier creates a notifier with the default plain-text bodies.
func NewAccountNotifier(sender Sender, opts ...NotifierOption) *AccountNotifier {
	n := &AccountNotifier{
		sender: sender,
		templates: map[string]*template.Template{
			"confirm_email":    defaultTemplate("confirm_email", confirmEmailBody),
			"password_reset":   defaultTemplate("password_reset", passwordResetBody),
			"pending_approval": defaultTemplate("pending_approval", pendingApprovalBody),
			"account_approved": defaultTemplate("account_approved", accountApprovedBody),
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}

	return n
}

// NotificationData is the template input for account mail.
type NotificationData struct {
	SiteName    string
	DisplayName string
	Link        string
}

// SendEmailConfirmation mails the confirmation link to the address being
// confirmed.
func (n *AccountNotifier) SendEmailConfirmation(ctx context.Context, to string, data NotificationData) error {
	subject := fmt.Sprintf("Confirm your email for %s", data.SiteName)
	return n.send(ctx, to, subject, "confirm_email", data)
}

// SendPasswordReset mails the reset link.
func (n *AccountNotifier) SendPasswordReset(ctx context.Context, to string, data NotificationData) error {
	subject := fmt.Sprintf("Reset your password for %s", data.SiteName)
	return n.send(ctx, to, subject, "password_reset", data)
}

// SendPendingApproval tells a new member their account awaits approval.
func (n *AccountNotifier) SendPendingApproval(ctx context.Context, to string, data NotificationData) error {
	subject := fmt.Sprintf("Your %s account is pending approval", data.SiteName)
	return n.send(ctx, to, subject, "pending_approval", data)
}

// SendAccountApproved tells a member their account was approved.
func (n *AccountNotifier) SendAccountApproved(ctx context.Context, to string, data NotificationData) error {
	subject := fmt.Sprintf("Your %s account was approved", data.SiteName)
	return n.send(ctx, to, subject, "account_approved", data)
}

func (n *AccountNotifier) send(ctx context.Context, to, subject, name string, data NotificationData) error {
	tpl, ok := n.templates[name]
	if !ok {
		return goerrors.New(fmt.Sprintf("unknown mail template %q", name), goerrors.CategoryInternal)
	}

	var body bytes.Buffer
	if err := tpl.Execute(&body, data); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail body")
	}

	return n.sender.Send(ctx, Email{
		To:      []string{to},
		Subject: subject,
		Body:    body.String(),
	})
}

func defaultTemplate(name, body string) *template.Template {
	return template.Must(template.New(name).Parse(body))
}

const confirmEmailBody = `Hello {{.DisplayName}},

Please confirm your email address for {{.SiteName}} by following this link:

{{.Link}}

If you did not create this account you can ignore this message.
`

const passwordResetBody = `Hello {{.DisplayName}},

A password reset was requested for your {{.SiteName}} account. Follow this
link to choose a new password:

{{.Link}}

If you did not request a reset you can ignore this message; your password
has not changed.
`

const pendingApprovalBody = `Hello {{.DisplayName}},

Thank you for registering at {{.SiteName}}. An administrator must approve
your account before you can sign in. You will receive another message once
that happens.
`

const accountApprovedBody = `Hello {{.DisplayName}},

Your {{.SiteName}} account has been approved. You can sign in here:

{{.Link}}
`
