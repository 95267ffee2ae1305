package deletion

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PendingCleanup records profile data left behind after its account was deleted.
type PendingCleanup struct {
	ID            string
	AccountID     string
	Email         string
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	NextAttemptAt time.Time
}

// CleanupQueue holds cleanups awaiting the reconciler.
type CleanupQueue interface {
	// Enqueue stores c. A zero NextAttemptAt makes it due at CreatedAt.
	Enqueue(ctx context.Context, c PendingCleanup) error
	// Pending returns up to limit cleanups due at now with fewer than
	// maxAttempts attempts, earliest NextAttemptAt first.
	Pending(ctx context.Context, now time.Time, maxAttempts, limit int) ([]PendingCleanup, error)
	Resolve(ctx context.Context, id string) error
	// RecordFailure bumps the attempt counter and defers the cleanup to next.
	RecordFailure(ctx context.Context, id string, cause error, next time.Time) error
}

var errCleanupNotFound = errors.New("pending cleanup not found")

type memoryCleanupQueue struct {
	mu    sync.Mutex
	items map[string]PendingCleanup
}

// NewMemoryCleanupQueue builds an in-memory cleanup queue.
func NewMemoryCleanupQueue() CleanupQueue {
	return &memoryCleanupQueue{items: make(map[string]PendingCleanup)}
}

func (q *memoryCleanupQueue) Enqueue(_ context.Context, c PendingCleanup) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.NextAttemptAt.IsZero() {
		c.NextAttemptAt = c.CreatedAt
	}
	q.items[c.ID] = c
	return nil
}

func (q *memoryCleanupQueue) Pending(_ context.Context, now time.Time, maxAttempts, limit int) ([]PendingCleanup, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingCleanup, 0, len(q.items))
	for _, c := range q.items {
		if c.NextAttemptAt.After(now) || (maxAttempts > 0 && c.Attempts >= maxAttempts) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextAttemptAt.Equal(out[j].NextAttemptAt) {
			return out[i].NextAttemptAt.Before(out[j].NextAttemptAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *memoryCleanupQueue) Resolve(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[id]; !ok {
		return errCleanupNotFound
	}
	delete(q.items, id)
	return nil
}

func (q *memoryCleanupQueue) RecordFailure(_ context.Context, id string, cause error, next time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.items[id]
	if !ok {
		return errCleanupNotFound
	}
	c.Attempts++
	c.LastError = cause.Error()
	c.NextAttemptAt = next
	q.items[id] = c
	return nil
}

// PostgresCleanupQueue stores pending cleanups in the pending_cleanups table.
type PostgresCleanupQueue struct {
	db *pgxpool.Pool
}

// NewPostgresCleanupQueue builds a Postgres-backed cleanup queue.
func NewPostgresCleanupQueue(db *pgxpool.Pool) *PostgresCleanupQueue {
	return &PostgresCleanupQueue{db: db}
}

// Enqueue inserts a cleanup record.
func (q *PostgresCleanupQueue) Enqueue(ctx context.Context, c PendingCleanup) error {
	id := uuid.New()
	if c.ID != "" {
		parsed, err := uuid.Parse(c.ID)
		if err != nil {
			return err
		}
		id = parsed
	}
	accountID, err := uuid.Parse(c.AccountID)
	if err != nil {
		return err
	}
	next := c.NextAttemptAt
	if next.IsZero() {
		next = c.CreatedAt
	}
	_, err = q.db.Exec(ctx, `INSERT INTO pending_cleanups (id, account_id, email, attempts, last_error, created_at, next_attempt_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`, id, accountID, c.Email, c.Attempts, c.LastError, c.CreatedAt.UTC(), next.UTC())
	return err
}

// Pending lists due cleanups, earliest retry first.
func (q *PostgresCleanupQueue) Pending(ctx context.Context, now time.Time, maxAttempts, limit int) ([]PendingCleanup, error) {
	rows, err := q.db.Query(ctx, `SELECT id, account_id, email, attempts, last_error, created_at, next_attempt_at
        FROM pending_cleanups
        WHERE next_attempt_at <= $1 AND ($2::int <= 0 OR attempts < $2::int)
        ORDER BY next_attempt_at, created_at LIMIT $3`, now.UTC(), maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingCleanup
	for rows.Next() {
		var (
			id, accountID uuid.UUID
			c             PendingCleanup
		)
		if err := rows.Scan(&id, &accountID, &c.Email, &c.Attempts, &c.LastError, &c.CreatedAt, &c.NextAttemptAt); err != nil {
			return nil, err
		}
		c.ID = id.String()
		c.AccountID = accountID.String()
		c.CreatedAt = c.CreatedAt.UTC()
		c.NextAttemptAt = c.NextAttemptAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// Resolve removes a finished cleanup.
func (q *PostgresCleanupQueue) Resolve(ctx context.Context, id string) error {
	cleanupID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	cmd, err := q.db.Exec(ctx, `DELETE FROM pending_cleanups WHERE id = $1`, cleanupID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errCleanupNotFound
	}
	return nil
}

// RecordFailure bumps the attempt counter and reschedules the row.
func (q *PostgresCleanupQueue) RecordFailure(ctx context.Context, id string, cause error, next time.Time) error {
	cleanupID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	cmd, err := q.db.Exec(ctx, `UPDATE pending_cleanups
        SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3 WHERE id = $1`,
		cleanupID, cause.Error(), next.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errCleanupNotFound
	}
	return nil
}
