package notification

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/gomail.v2"
)

type recordingDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *recordingDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestVerificationCodeMessage(t *testing.T) {
	msg := VerificationCodeMessage("a@x.com", "482913", 10*time.Minute)
	if msg.Kind != KindVerificationCode {
		t.Fatalf("unexpected kind %s", msg.Kind)
	}
	if !strings.Contains(msg.Body, "482913") {
		t.Fatalf("body missing code")
	}
	if !strings.Contains(msg.Body, "expire dans 10 minutes") {
		t.Fatalf("body missing ttl notice")
	}
}

func TestSMTPNotifierSend(t *testing.T) {
	d := &recordingDialer{}
	n := NewSMTPNotifierWithDialer(d, "noreply@marocdeals.ma")

	if err := n.Send(context.Background(), VerificationCodeMessage("a@x.com", "482913", 10*time.Minute)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(d.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(d.sent))
	}
	m := d.sent[0]
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "a@x.com" {
		t.Fatalf("unexpected To header %v", got)
	}
	if got := m.GetHeader("From"); len(got) != 1 || got[0] != "noreply@marocdeals.ma" {
		t.Fatalf("unexpected From header %v", got)
	}

	var raw bytes.Buffer
	if _, err := m.WriteTo(&raw); err != nil {
		t.Fatalf("render message: %v", err)
	}
	if !strings.Contains(raw.String(), "text/html") {
		t.Fatalf("expected html body")
	}
}

func TestSMTPNotifierSendFailure(t *testing.T) {
	boom := errors.New("connection refused")
	n := NewSMTPNotifierWithDialer(&recordingDialer{err: boom}, "noreply@marocdeals.ma")

	err := n.Send(context.Background(), Message{Kind: KindVerificationCode, Destination: "a@x.com"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped dialer error, got %v", err)
	}
}

func TestSMTPNotifierHonoursCancelledContext(t *testing.T) {
	d := &recordingDialer{}
	n := NewSMTPNotifierWithDialer(d, "noreply@marocdeals.ma")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.Send(ctx, Message{Destination: "a@x.com"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if len(d.sent) != 0 {
		t.Fatalf("nothing should be sent")
	}
}
