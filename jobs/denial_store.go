package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGDenialStore persists denial audit records in PostgreSQL.
type PGDenialStore struct {
	pool *pgxpool.Pool
}

// NewPGDenialStore constructs a PGDenialStore.
func NewPGDenialStore(pool *pgxpool.Pool) *PGDenialStore {
	return &PGDenialStore{pool: pool}
}

// RecordDenial inserts one audit row.
func (s *PGDenialStore) RecordDenial(ctx context.Context, userID int64, path, reason string, status int, occurredAt time.Time) error {
	const query = `
		INSERT INTO authz_denials (user_id, path, reason, status, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, query, userID, path, reason, status, occurredAt.UTC())
	return err
}

var _ DenialStore = (*PGDenialStore)(nil)
