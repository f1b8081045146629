package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zeventbooks/eventpulse/internal/model"
)

// Common errors for shortlink repository operations.
var (
	ErrShortlinkNotFound = errors.New("shortlink not found")
	ErrTokenExists       = errors.New("token already exists")
)

// CreateShortlink inserts a new shortlink into the database.
func (r *Repository) CreateShortlink(ctx context.Context, link *model.Shortlink) error {
	query := `
		INSERT INTO shortlinks (token, target_url, event_id, surface, sponsor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		link.Token,
		link.TargetURL,
		link.EventID,
		link.Surface,
		nullableText(link.SponsorID),
		link.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrTokenExists
		}
		return fmt.Errorf("failed to create shortlink: %w", err)
	}

	return nil
}

// GetShortlinkByToken retrieves a shortlink by its token.
func (r *Repository) GetShortlinkByToken(ctx context.Context, token string) (*model.Shortlink, error) {
	query := `
		SELECT token, target_url, event_id, surface, COALESCE(sponsor_id, ''), created_at
		FROM shortlinks
		WHERE token = $1
	`

	var link model.Shortlink
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&link.Token,
		&link.TargetURL,
		&link.EventID,
		&link.Surface,
		&link.SponsorID,
		&link.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShortlinkNotFound
		}
		return nil, fmt.Errorf("failed to get shortlink: %w", err)
	}

	return &link, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
