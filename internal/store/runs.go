package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one finished orchestrator invocation.
type Run struct {
	ID         uuid.UUID     `json:"id"`
	Kind       string        `json:"kind"`
	Status     string        `json:"status"`
	InputSize  int           `json:"input_size"`
	OutputSize int           `json:"output_size"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

const maxRecentRuns = 200

// RecordRun inserts r. A zero ID or CreatedAt is filled in.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO lumen_runs (id, kind, status, input_size, output_size, duration_ms, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.Kind, r.Status, r.InputSize, r.OutputSize, r.Duration.Milliseconds(), r.Error, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > maxRecentRuns {
		limit = maxRecentRuns
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, status, input_size, output_size, duration_ms, error, created_at
		FROM lumen_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.Status, &r.InputSize, &r.OutputSize, &r.DurationMS, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = time.Duration(r.DurationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
