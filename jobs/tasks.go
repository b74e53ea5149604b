package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeReminderDispatch is the cron task that scans for due reminders.
	TaskTypeReminderDispatch = "reminders:dispatch"
	// TaskTypeReminderSend is the task type for delivering one reminder email.
	TaskTypeReminderSend = "reminders:send"
)

// ReminderSendPayload carries everything the sender needs so it never has to
// re-read the reminder row before composing the email.
type ReminderSendPayload struct {
	ReminderID  string `json:"reminder_id"`
	InvoiceID   string `json:"invoice_id"`
	Kind        string `json:"kind"`
	OverdueDays int    `json:"overdue_days"`
}

// NewReminderDispatchTask constructs the dispatch task enqueued by cron.
func NewReminderDispatchTask() *asynq.Task {
	return asynq.NewTask(TaskTypeReminderDispatch, nil)
}

// NewReminderSendTask constructs a send task for one scheduled reminder.
func NewReminderSendTask(payload ReminderSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReminderSend, data), nil
}
