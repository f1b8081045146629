package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Common errors for registry lookups.
var (
	ErrSponsorNotFound = errors.New("sponsor not found")
	ErrEventNotFound   = errors.New("event not found")
)

// GetSponsorName looks up a sponsor's display name in the registry.
// The registry tables are maintained by the event management system;
// this service only reads them.
func (r *Repository) GetSponsorName(ctx context.Context, sponsorID string) (string, error) {
	query := `SELECT display_name FROM sponsors WHERE id = $1`

	var name string
	err := r.pool.QueryRow(ctx, query, sponsorID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSponsorNotFound
		}
		return "", fmt.Errorf("failed to get sponsor name: %w", err)
	}

	return name, nil
}

// GetEventName looks up an event's display name in the registry.
func (r *Repository) GetEventName(ctx context.Context, eventID string) (string, error) {
	query := `SELECT display_name FROM events WHERE id = $1`

	var name string
	err := r.pool.QueryRow(ctx, query, eventID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrEventNotFound
		}
		return "", fmt.Errorf("failed to get event name: %w", err)
	}

	return name, nil
}
