package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeDenialAudit is the task type recording authorization denials
	// for offline review.
	TaskTypeDenialAudit = "authz:denial_audit"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// SendEmailJob processes TaskTypeSendEmail tasks. Delivery is logged
// until the SMTP relay is wired up.
type SendEmailJob struct {
	Logger *slog.Logger
}

// Handle processes one send-email task.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if j.Logger != nil {
		j.Logger.Info("send email",
			slog.String("to", payload.To),
			slog.String("subject", payload.Subject))
	}
	return nil
}

// DenialAuditPayload captures one denied request for the audit trail.
type DenialAuditPayload struct {
	UserID     int64     `json:"user_id"`
	Path       string    `json:"path"`
	Reason     string    `json:"reason"`
	Status     int       `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewDenialAuditTask constructs an Asynq task.
func NewDenialAuditTask(payload DenialAuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDenialAudit, data), nil
}

// DenialAuditJob persists denial audit records.
type DenialAuditJob struct {
	Store  DenialStore
	Logger *slog.Logger
}

// DenialStore abstracts the audit sink.
type DenialStore interface {
	RecordDenial(ctx context.Context, userID int64, path, reason string, status int, occurredAt time.Time) error
}

// Handle processes TaskTypeDenialAudit tasks.
func (j *DenialAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DenialAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if j.Store == nil {
		if j.Logger != nil {
			j.Logger.Warn("denial audit store not configured",
				slog.String("path", payload.Path),
				slog.String("reason", payload.Reason))
		}
		return nil
	}
	return j.Store.RecordDenial(ctx, payload.UserID, payload.Path, payload.Reason, payload.Status, payload.OccurredAt)
}
