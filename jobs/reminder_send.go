package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ledgerline/ledgerline/internal/invoices"
	"github.com/ledgerline/ledgerline/internal/reminders"
)

// InvoiceReader loads the invoice a reminder refers to.
type InvoiceReader interface {
	Get(ctx context.Context, id string) (*invoices.Invoice, error)
}

// ReminderMarker records delivery outcomes on scheduled reminders.
type ReminderMarker interface {
	MarkSent(ctx context.Context, id, emailID string) error
	MarkFailed(ctx context.Context, id string) error
}

// Mailer delivers a reminder email and returns the provider message ID.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// Sender delivers one reminder email per task.
type Sender struct {
	invoices InvoiceReader
	store    ReminderMarker
	mailer   Mailer
	logger   *slog.Logger
	printer  *message.Printer
}

// NewSender constructs a Sender.
func NewSender(invoiceReader InvoiceReader, store ReminderMarker, mailer Mailer, logger *slog.Logger) *Sender {
	return &Sender{
		invoices: invoiceReader,
		store:    store,
		mailer:   mailer,
		logger:   logger,
		printer:  message.NewPrinter(language.English),
	}
}

// Handle processes TaskTypeReminderSend tasks.
func (s *Sender) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReminderSendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	inv, err := s.invoices.Get(ctx, payload.InvoiceID)
	if errors.Is(err, invoices.ErrNotFound) {
		return asynq.SkipRetry
	}
	if err != nil {
		return err
	}
	// The schedule may have been purged between dispatch and delivery.
	if inv.Status != reminders.InvoiceStatusSent {
		return nil
	}

	subject := subjectFor(reminders.Kind(payload.Kind), inv.Number)
	body := s.composeBody(*inv)

	emailID, err := s.mailer.Send(ctx, inv.CustomerEmail, subject, body)
	if err != nil {
		if markErr := s.store.MarkFailed(ctx, payload.ReminderID); markErr != nil {
			s.logger.Error("mark reminder failed",
				slog.String("reminder_id", payload.ReminderID),
				slog.Any("error", markErr))
		}
		return err
	}

	if err := s.store.MarkSent(ctx, payload.ReminderID, emailID); err != nil {
		return err
	}

	s.logger.Info("reminder sent",
		slog.String("reminder_id", payload.ReminderID),
		slog.String("invoice_id", inv.ID),
		slog.String("kind", payload.Kind))
	return nil
}

func subjectFor(kind reminders.Kind, number string) string {
	switch kind {
	case reminders.KindFriendly:
		return "Upcoming payment for invoice " + number
	case reminders.KindPolite:
		return "Reminder: invoice " + number + " is due"
	case reminders.KindFirm:
		return "Invoice " + number + " is overdue"
	case reminders.KindUrgent:
		return "Urgent: invoice " + number + " requires payment"
	default:
		return "Payment reminder for invoice " + number
	}
}

func (s *Sender) composeBody(inv invoices.Invoice) string {
	today := time.Now().UTC()
	charges := reminders.ComputeCharges(inv.Snapshot(), today)

	body := "Hello " + inv.CustomerName + ",\n\n"
	body += s.printer.Sprintf("Invoice %s for %s %.2f is due on %s.\n",
		inv.Number, inv.Currency, inv.Total,
		reminders.EffectiveDueDate(inv.Snapshot(), false).Format("January 2, 2006"))
	if charges.HasLateFee {
		body += s.printer.Sprintf("A late fee of %s %.2f has been applied. Total payable: %s %.2f.\n",
			inv.Currency, charges.LateFeeAmount, inv.Currency, charges.TotalPayable)
	}
	body += "\nThank you,\nAccounts Receivable"
	return body
}

// LogMailer is the development mailer. It logs the message instead of
// delivering it.
// TODO: replace with the SMTP relay once provider credentials land.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the email and returns a synthetic message ID.
func (m *LogMailer) Send(_ context.Context, to, subject, _ string) (string, error) {
	id := uuid.NewString()
	m.logger.Info("email delivered",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("email_id", id))
	return id, nil
}
