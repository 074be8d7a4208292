package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"leadflow_backend/internal/events"
	"leadflow_backend/platform/logger"
)

type recordingSender struct {
	notices   []string
	summaries int
	alerts    []string
}

func (r *recordingSender) SendDeliveryNotice(_ context.Context, toEmail, _ string, _ int, _ string) error {
	r.notices = append(r.notices, toEmail)
	return nil
}

func (r *recordingSender) SendRunSummary(context.Context, string, int, int, int, int) error {
	r.summaries++
	return nil
}

func (r *recordingSender) SendQuotaAlert(_ context.Context, _, clientName string, _, _ int) error {
	r.alerts = append(r.alerts, clientName)
	return nil
}

type emailCfg struct{ admin string }

func (c emailCfg) GetEmailEnabled() bool       { return true }
func (c emailCfg) GetSMTPHost() string         { return "smtp.test" }
func (c emailCfg) GetSMTPPort() int            { return 587 }
func (c emailCfg) GetSMTPUsername() string     { return "" }
func (c emailCfg) GetSMTPPassword() string     { return "" }
func (c emailCfg) GetEmailFromName() string    { return "Leadflow" }
func (c emailCfg) GetEmailFromAddress() string { return "noreply@leadflow.test" }
func (c emailCfg) GetAdminEmail() string       { return c.admin }

func TestHandleDeliveryCommittedSendsNotice(t *testing.T) {
	sender := &recordingSender{}
	mod := New(sender, emailCfg{admin: "admin@leadflow.test"}, logger.New("test"))

	err := mod.Handle(context.Background(), events.DeliveryCommitted{
		BaseEvent:   events.NewBaseEvent(),
		DeliveryID:  uuid.New(),
		ClientID:    uuid.New(),
		ClientName:  "Acme",
		ClientEmail: "ops@acme.test",
		LeadCount:   50,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.notices) != 1 || sender.notices[0] != "ops@acme.test" {
		t.Errorf("notices = %v, want one to ops@acme.test", sender.notices)
	}
}

func TestHandleDeliveryCommittedSkipsWithoutEmail(t *testing.T) {
	sender := &recordingSender{}
	mod := New(sender, emailCfg{}, logger.New("test"))

	err := mod.Handle(context.Background(), events.DeliveryCommitted{
		BaseEvent: events.NewBaseEvent(), ClientName: "Acme",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.notices) != 0 {
		t.Error("notice sent despite missing client email")
	}
}

func TestHandleRunCompletedNeedsAdminEmail(t *testing.T) {
	sender := &recordingSender{}
	mod := New(sender, emailCfg{}, logger.New("test"))

	if err := mod.Handle(context.Background(), events.DeliveryRunCompleted{BaseEvent: events.NewBaseEvent()}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sender.summaries != 0 {
		t.Error("summary sent despite missing admin email")
	}

	mod = New(sender, emailCfg{admin: "admin@leadflow.test"}, logger.New("test"))
	if err := mod.Handle(context.Background(), events.DeliveryRunCompleted{BaseEvent: events.NewBaseEvent()}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sender.summaries != 1 {
		t.Errorf("summaries = %d, want 1", sender.summaries)
	}
}

func TestHandleQuotaAlert(t *testing.T) {
	sender := &recordingSender{}
	mod := New(sender, emailCfg{admin: "admin@leadflow.test"}, logger.New("test"))

	err := mod.Handle(context.Background(), events.QuotaAlert{
		BaseEvent:      events.NewBaseEvent(),
		ClientID:       uuid.New(),
		ClientName:     "Acme",
		RemainingQuota: 12,
		BatchesLeft:    1,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.alerts) != 1 || sender.alerts[0] != "Acme" {
		t.Errorf("alerts = %v, want one for Acme", sender.alerts)
	}
}

func TestNewSenderFallsBackToNoop(t *testing.T) {
	sender := NewSender(disabledSMTP{})
	if _, ok := sender.(NoopSender); !ok {
		t.Errorf("sender = %T, want NoopSender", sender)
	}
}

type disabledSMTP struct{}

func (disabledSMTP) GetEmailEnabled() bool       { return false }
func (disabledSMTP) GetSMTPHost() string         { return "" }
func (disabledSMTP) GetSMTPPort() int            { return 0 }
func (disabledSMTP) GetSMTPUsername() string     { return "" }
func (disabledSMTP) GetSMTPPassword() string     { return "" }
func (disabledSMTP) GetEmailFromName() string    { return "" }
func (disabledSMTP) GetEmailFromAddress() string { return "" }
func (disabledSMTP) GetAdminEmail() string       { return "" }
