package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/ledgerline/internal/reminders"
)

const (
	dispatchBatchSize   = 500
	dispatchConcurrency = 8
)

// DueLister returns scheduled reminders whose delivery date has arrived.
type DueLister interface {
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]reminders.ScheduledReminder, error)
}

// Enqueuer submits reminder delivery tasks to the queue.
type Enqueuer interface {
	EnqueueReminderSend(ctx context.Context, payload ReminderSendPayload) (*asynq.TaskInfo, error)
}

// Dispatcher fans due reminders out into individual send tasks. It runs from
// the cron schedule once a day.
type Dispatcher struct {
	store  DueLister
	queue  Enqueuer
	logger *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store DueLister, queue Enqueuer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, queue: queue, logger: logger}
}

// Handle processes TaskTypeReminderDispatch tasks.
func (d *Dispatcher) Handle(ctx context.Context, _ *asynq.Task) error {
	due, err := d.store.ListDue(ctx, time.Now().UTC(), dispatchBatchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(dispatchConcurrency)
	for _, rem := range due {
		g.Go(func() error {
			payload := ReminderSendPayload{
				ReminderID:  rem.ID,
				InvoiceID:   rem.InvoiceID,
				Kind:        string(rem.Kind),
				OverdueDays: rem.OverdueDays,
			}
			if _, err := d.queue.EnqueueReminderSend(ctx, payload); err != nil {
				// A failed enqueue retries on the next dispatch run.
				d.logger.Warn("enqueue reminder send",
					slog.String("reminder_id", rem.ID),
					slog.Any("error", err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	d.logger.Info("reminder dispatch complete", slog.Int("count", len(due)))
	return nil
}
