package store

import (
	"context"
	"fmt"
	"time"
)

// Delivery is one journal row. Message content is never stored.
type Delivery struct {
	ID        int64
	Kind      string
	Receiver  string
	Outcome   string // "sent" | "failed"
	Failure   string
	Segments  int
	Duration  time.Duration
	Error     string
	CreatedAt time.Time
}

// Journal records the outcome of every delivery attempt.
type Journal struct {
	db *DB
}

func NewJournal(db *DB) *Journal {
	return &Journal{db: db}
}

// Record appends d. CreatedAt defaults to now.
func (j *Journal) Record(ctx context.Context, d Delivery) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.Failure == "" {
		d.Failure = "none"
	}
	_, err := j.db.sql.ExecContext(ctx,
		`INSERT INTO deliveries (kind, receiver, outcome, failure, segments, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Kind, d.Receiver, d.Outcome, d.Failure, d.Segments, d.Duration.Milliseconds(), d.Error,
		d.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording delivery: %w", err)
	}
	return nil
}

// Recent returns up to limit rows, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.sql.QueryContext(ctx,
		`SELECT id, kind, receiver, outcome, failure, segments, duration_ms, error, created_at
		 FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var ms int64
		var created string
		if err := rows.Scan(&d.ID, &d.Kind, &d.Receiver, &d.Outcome, &d.Failure, &d.Segments, &ms, &d.Error, &created); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		d.Duration = time.Duration(ms) * time.Millisecond
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Counts summarizes journal rows by outcome.
func (j *Journal) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.sql.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM deliveries GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("counting deliveries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
