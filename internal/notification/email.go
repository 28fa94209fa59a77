package notification

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// Dialer is the part of *gomail.Dialer the SMTP notifier needs.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier delivers messages as HTML email.
type SMTPNotifier struct {
	dialer Dialer
	from   string
}

// NewSMTPNotifier dials host:port with the given credentials for every message.
func NewSMTPNotifier(host string, port int, username, password, from string) *SMTPNotifier {
	return NewSMTPNotifierWithDialer(gomail.NewDialer(host, port, username, password), from)
}

// NewSMTPNotifierWithDialer is NewSMTPNotifier with an explicit dialer.
func NewSMTPNotifierWithDialer(d Dialer, from string) *SMTPNotifier {
	return &SMTPNotifier{dialer: d, from: from}
}

// Send builds and sends the email. gomail has no context support, so cancellation
// is only honoured before dialing.
func (n *SMTPNotifier) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", message.Destination)
	m.SetHeader("Subject", message.Subject)
	m.SetBody("text/html", message.Body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send %s email: %w", message.Kind, err)
	}
	return nil
}

// VerificationCodeMessage renders the signup verification email.
func VerificationCodeMessage(to, code string, ttl time.Duration) Message {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
			<h2 style="color: #2563eb;">MarocDeals - Vérification de compte</h2>
			<p>Bonjour,</p>
			<p>Votre code de vérification est :</p>
			<div style="background: #f3f4f6; padding: 20px; text-align: center; margin: 20px 0; border-radius: 8px;">
				<h1 style="color: #2563eb; font-size: 32px; margin: 0; letter-spacing: 5px;">%s</h1>
			</div>
			<p>Ce code expire dans %d minutes.</p>
			<p>Si vous n'avez pas demandé ce code, ignorez cet email.</p>
			<hr style="margin: 30px 0; border: none; border-top: 1px solid #e5e7eb;">
			<p style="color: #6b7280; font-size: 12px;">MarocDeals - Votre plateforme de comparaison de prix</p>
		</div>
	`, code, int(ttl.Minutes()))

	return Message{
		Kind:        KindVerificationCode,
		Destination: to,
		Subject:     "MarocDeals - Code de vérification",
		Body:        body,
	}
}
