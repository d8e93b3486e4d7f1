package mailer

import (
	"context"
	"fmt"

	mailgun "github.com/mailgun/mailgun-go/v5"
)

// MailgunMailer sends messages through the Mailgun API. This is the default
// provider for the hosted product.
type MailgunMailer struct {
	mg     mailgun.Mailgun
	domain string
	from   string
}

var _ Mailer = (*MailgunMailer)(nil)

// NewMailgun constructs a MailgunMailer. When mg is nil a default client is
// created from the API key.
func NewMailgun(apiKey, domain, from string, mg mailgun.Mailgun) *MailgunMailer {
	if mg == nil {
		mg = mailgun.NewMailgun(apiKey)
	}
	return &MailgunMailer{mg: mg, domain: domain, from: from}
}

func (m *MailgunMailer) Send(ctx context.Context, msg Message) error {
	message := mailgun.NewMessage(m.domain, m.from, msg.Subject, msg.Text)
	if err := message.AddRecipient(msg.To); err != nil {
		return fmt.Errorf("add recipient: %w", err)
	}

	if _, err := m.mg.Send(ctx, message); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}

	return nil
}
