package notifier

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"

	"quizdigest/internal/digest"
)

type mockMailer struct {
	sent   []Message
	status int
	err    error
}

func (m *mockMailer) Send(ctx context.Context, msg Message) (int, error) {
	m.sent = append(m.sent, msg)
	return m.status, m.err
}

func TestSendUsesFixedAddresses(t *testing.T) {
	mailer := &mockMailer{status: 202}
	n := New(mailer, DefaultSender, DefaultRecipients, zaptest.NewLogger(t))

	status, err := n.Send(context.Background(), digest.Digest{Subject: "s", HTML: "<p>b</p>"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if status != 202 {
		t.Errorf("status = %d, want 202", status)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(mailer.sent))
	}

	msg := mailer.sent[0]
	if msg.From != "cetltech@calstatela.edu" {
		t.Errorf("from = %s", msg.From)
	}
	if !reflect.DeepEqual(msg.To, []string{"international@calstatela.edu", "jhenlin2@calstatela.edu"}) {
		t.Errorf("to = %v", msg.To)
	}
	if msg.Subject != "s" || msg.HTML != "<p>b</p>" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestSendReturnsFailure(t *testing.T) {
	apiErr := &StatusError{StatusCode: 401, Body: "unauthorized"}
	mailer := &mockMailer{status: 401, err: apiErr}
	n := New(mailer, "from@example.edu", []string{"to@example.edu"}, zaptest.NewLogger(t))

	status, err := n.Send(context.Background(), digest.Digest{Subject: "s"})
	if !errors.Is(err, apiErr) {
		t.Fatalf("err = %v, want %v", err, apiErr)
	}
	if status != 401 {
		t.Errorf("status = %d", status)
	}
}
