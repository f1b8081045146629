package report

import (
	"context"
	"errors"
	"log/slog"

	"github.com/zeventbooks/eventpulse/internal/cache"
	"github.com/zeventbooks/eventpulse/internal/repository"
)

// NameRegistry looks up display names for sponsors and events.
// Implemented by the repository against the registry tables.
type NameRegistry interface {
	GetSponsorName(ctx context.Context, sponsorID string) (string, error)
	GetEventName(ctx context.Context, eventID string) (string, error)
}

// NameCache caches resolved display names.
type NameCache interface {
	GetSponsorName(ctx context.Context, sponsorID string) (string, error)
	SetSponsorName(ctx context.Context, sponsorID, name string) error
	GetEventName(ctx context.Context, eventID string) (string, error)
	SetEventName(ctx context.Context, eventID, name string) error
}

// NameResolver resolves sponsor and event IDs to display names with a
// cache in front of the registry. Every lookup returns a usable name:
// when the registry has no entry, or the lookup fails, the raw ID is
// returned so reports never block or drop rows over a missing name.
type NameResolver struct {
	registry NameRegistry
	cache    NameCache
	logger   *slog.Logger
}

// NewNameResolver creates a name resolver. cache may be nil, in which
// case every lookup goes to the registry.
func NewNameResolver(registry NameRegistry, nameCache NameCache, logger *slog.Logger) *NameResolver {
	return &NameResolver{
		registry: registry,
		cache:    nameCache,
		logger:   logger.With("component", "name_resolver"),
	}
}

// SponsorName resolves a sponsor ID to its display name.
func (r *NameResolver) SponsorName(ctx context.Context, sponsorID string) string {
	return r.resolve(ctx, sponsorID,
		func() (string, error) { return r.cache.GetSponsorName(ctx, sponsorID) },
		func(name string) error { return r.cache.SetSponsorName(ctx, sponsorID, name) },
		func() (string, error) { return r.registry.GetSponsorName(ctx, sponsorID) },
		repository.ErrSponsorNotFound,
	)
}

// EventName resolves an event ID to its display name.
func (r *NameResolver) EventName(ctx context.Context, eventID string) string {
	return r.resolve(ctx, eventID,
		func() (string, error) { return r.cache.GetEventName(ctx, eventID) },
		func(name string) error { return r.cache.SetEventName(ctx, eventID, name) },
		func() (string, error) { return r.registry.GetEventName(ctx, eventID) },
		repository.ErrEventNotFound,
	)
}

func (r *NameResolver) resolve(
	ctx context.Context,
	id string,
	cacheGet func() (string, error),
	cacheSet func(string) error,
	registryGet func() (string, error),
	notFound error,
) string {
	if id == "" {
		return id
	}

	if r.cache != nil {
		if name, err := cacheGet(); err == nil {
			return name
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("name cache lookup failed", "id", id, "error", err)
		}
	}

	name, err := registryGet()
	if err != nil {
		if !errors.Is(err, notFound) {
			r.logger.Warn("registry lookup failed", "id", id, "error", err)
		}
		return id
	}
	if name == "" {
		return id
	}

	if r.cache != nil {
		if err := cacheSet(name); err != nil {
			r.logger.Warn("name cache store failed", "id", id, "error", err)
		}
	}

	return name
}
