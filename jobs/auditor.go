package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/favum/favum/internal/authz"
)

// DenialAuditor forwards guard denials onto the job queue. Enqueue
// failures are logged and dropped, never surfaced to the request.
type DenialAuditor struct {
	Client *Client
	Logger *slog.Logger
}

// AuditDenial enqueues a denial audit task.
func (a *DenialAuditor) AuditDenial(ctx context.Context, userID int64, path string, reason authz.Reason, status int) {
	if a == nil || a.Client == nil {
		return
	}
	_, err := a.Client.EnqueueDenialAudit(ctx, DenialAuditPayload{
		UserID:     userID,
		Path:       path,
		Reason:     string(reason),
		Status:     status,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil && a.Logger != nil {
		a.Logger.Warn("enqueue denial audit", slog.Any("error", err))
	}
}

var _ authz.DenialAuditor = (*DenialAuditor)(nil)
