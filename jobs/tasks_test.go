package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
)

type recordedDenial struct {
	userID int64
	path   string
	reason string
	status int
}

type stubDenialStore struct {
	records []recordedDenial
	err     error
}

func (s *stubDenialStore) RecordDenial(_ context.Context, userID int64, path, reason string, status int, _ time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, recordedDenial{userID: userID, path: path, reason: reason, status: status})
	return nil
}

func TestSendEmailJobLogsDelivery(t *testing.T) {
	var buf bytes.Buffer
	job := &SendEmailJob{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	task, err := NewSendEmailTask(SendEmailPayload{To: "alice@favum.local", Subject: "New login"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(buf.String(), "alice@favum.local") {
		t.Fatalf("expected recipient in log output, got %q", buf.String())
	}
}

func TestSendEmailJobSkipsMalformedPayload(t *testing.T) {
	job := &SendEmailJob{}
	task := asynq.NewTask(TaskTypeSendEmail, []byte("not json"))

	if err := job.Handle(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestDenialAuditJobPersists(t *testing.T) {
	store := &stubDenialStore{}
	job := &DenialAuditJob{Store: store}

	task, err := NewDenialAuditTask(DenialAuditPayload{
		UserID:     7,
		Path:       "/posts/1",
		Reason:     "not_owner",
		Status:     403,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected one stored denial, got %d", len(store.records))
	}
	got := store.records[0]
	if got.userID != 7 || got.path != "/posts/1" || got.reason != "not_owner" || got.status != 403 {
		t.Fatalf("stored denial mismatch: %+v", got)
	}
}

func TestDenialAuditJobStoreFailureRetries(t *testing.T) {
	store := &stubDenialStore{err: errors.New("insert failed")}
	job := &DenialAuditJob{Store: store}

	payload, _ := json.Marshal(DenialAuditPayload{UserID: 1, Path: "/x", Reason: "not_owner", Status: 403})
	task := asynq.NewTask(TaskTypeDenialAudit, payload)

	err := job.Handle(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("store failure must surface as a retryable error, got %v", err)
	}
}

func TestDenialAuditJobWithoutStore(t *testing.T) {
	var buf bytes.Buffer
	job := &DenialAuditJob{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	payload, _ := json.Marshal(DenialAuditPayload{Path: "/x", Reason: "not_owner", Status: 403})
	task := asynq.NewTask(TaskTypeDenialAudit, payload)

	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("missing store must not fail the task, got %v", err)
	}
	if !strings.Contains(buf.String(), "not configured") {
		t.Fatalf("expected warning about missing store, got %q", buf.String())
	}
}
