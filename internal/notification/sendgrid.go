package notification

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridNotifier delivers messages through the SendGrid v3 mail API.
type SendGridNotifier struct {
	client   *sendgrid.Client
	fromName string
	from     string
	sandbox  bool
}

// NewSendGridNotifier wraps a SendGrid client. In sandbox mode SendGrid validates
// the request but does not deliver it.
func NewSendGridNotifier(client *sendgrid.Client, fromName, from string, sandbox bool) *SendGridNotifier {
	return &SendGridNotifier{client: client, fromName: fromName, from: from, sandbox: sandbox}
}

// Send builds a single-recipient email and posts it.
func (n *SendGridNotifier) Send(ctx context.Context, message Message) error {
	from := mail.NewEmail(n.fromName, n.from)
	to := mail.NewEmail("", message.Destination)
	msg := mail.NewSingleEmail(from, message.Subject, to, message.Body, message.HTML)
	if n.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}

	resp, err := n.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("send email via sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected email: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
