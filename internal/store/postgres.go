package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/zeventbooks/eventpulse/internal/model"
)

// Postgres is the durable event store backed by PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed event store on an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Append bulk-inserts events with idempotency via ON CONFLICT DO NOTHING
// on the dedup key. Returns the number of rows actually inserted.
func (s *Postgres) Append(ctx context.Context, events []*model.AnalyticsEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO analytics_events (
			id, dedup_key, event_id, surface, metric, value,
			sponsor_id, token, session_id, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (dedup_key) DO NOTHING
	`

	for _, event := range events {
		if event.ID == "" {
			event.ID = newRecordID(event.Timestamp)
		}
		batch.Queue(query,
			event.ID,
			event.DedupKey,
			event.EventID,
			string(event.Surface),
			string(event.Metric),
			event.Value,
			nullableString(event.SponsorID),
			nullableString(event.Token),
			event.SessionID,
			event.Timestamp,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for i := 0; i < len(events); i++ {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("batch insert event %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

// Query returns events matching the filter ordered by timestamp.
func (s *Postgres) Query(ctx context.Context, filter Filter) ([]*model.AnalyticsEvent, error) {
	query := `
		SELECT id, dedup_key, event_id, surface, metric, value,
		       COALESCE(sponsor_id, ''), COALESCE(token, ''), session_id, occurred_at
		FROM analytics_events
		WHERE ($1 = '' OR event_id = $1)
		  AND ($2 = '' OR sponsor_id = $2)
		  AND ($3 = '' OR surface = $3)
		  AND ($4 = '' OR metric = $4)
		  AND ($5::timestamptz IS NULL OR occurred_at >= $5)
		  AND ($6::timestamptz IS NULL OR occurred_at < $6)
		ORDER BY occurred_at, id
	`

	rows, err := s.pool.Query(ctx, query,
		filter.EventID,
		filter.SponsorID,
		string(filter.Surface),
		string(filter.Metric),
		nullableTime(filter.From),
		nullableTime(filter.To),
	)
	if err != nil {
		return nil, fmt.Errorf("query analytics events: %w", err)
	}
	defer rows.Close()

	var events []*model.AnalyticsEvent
	for rows.Next() {
		var event model.AnalyticsEvent
		var surface, metric string
		if err := rows.Scan(
			&event.ID,
			&event.DedupKey,
			&event.EventID,
			&surface,
			&metric,
			&event.Value,
			&event.SponsorID,
			&event.Token,
			&event.SessionID,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan analytics event: %w", err)
		}
		event.Surface = model.Surface(surface)
		event.Metric = model.Metric(metric)
		events = append(events, &event)
	}

	return events, rows.Err()
}

// newRecordID generates a ULID seeded with the event timestamp so that
// record IDs sort with the log.
func newRecordID(ts time.Time) string {
	if ts.IsZero() {
		ts = time.Now()
	}
	return ulid.MustNew(ulid.Timestamp(ts.UTC()), rand.Reader).String()
}

// nullableString returns nil for empty strings (stored as NULL).
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableTime returns nil for zero times (stored as NULL filter arg).
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
