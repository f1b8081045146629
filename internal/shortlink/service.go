// Package shortlink provides creation and resolution of tracked
// redirect links.
package shortlink

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/zeventbooks/eventpulse/internal/cache"
	"github.com/zeventbooks/eventpulse/internal/metrics"
	"github.com/zeventbooks/eventpulse/internal/model"
	"github.com/zeventbooks/eventpulse/internal/repository"
)

// Service errors.
var (
	ErrInvalidTarget  = errors.New("invalid target URL")
	ErrInvalidEventID = errors.New("event_id is required")
	ErrURLTooLong     = errors.New("target URL too long")
	ErrNotFound       = errors.New("shortlink not found")
)

const (
	maxTargetLength = 2048
	tokenLength     = 8
	tokenAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxTokenRetries = 3
)

// Service handles shortlink business logic.
type Service struct {
	repo    *repository.Repository
	cache   *cache.Cache
	baseURL string
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewService creates a shortlink service.
func NewService(repo *repository.Repository, c *cache.Cache, baseURL string, logger *slog.Logger, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Service{
		repo:    repo,
		cache:   c,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With("component", "shortlink"),
		metrics: recorder,
	}
}

// CreateInput defines input for creating a shortlink.
type CreateInput struct {
	TargetURL string
	EventID   string
	Surface   model.Surface
	SponsorID string
}

// Create creates a new shortlink with a generated token.
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Shortlink, error) {
	if err := s.validateTarget(input.TargetURL); err != nil {
		return nil, err
	}
	if input.EventID == "" {
		return nil, ErrInvalidEventID
	}

	surface := input.Surface
	if surface == "" {
		surface = model.SurfacePublic
	}
	if !surface.IsValid() {
		return nil, fmt.Errorf("%w: unknown surface %q", ErrInvalidTarget, input.Surface)
	}

	link := &model.Shortlink{
		TargetURL: input.TargetURL,
		EventID:   input.EventID,
		Surface:   surface,
		SponsorID: input.SponsorID,
		CreatedAt: time.Now().UTC(),
	}

	// Tokens are random, so a collision is possible. Retry with a
	// fresh token instead of surfacing the conflict to the caller.
	for i := 0; i < maxTokenRetries; i++ {
		link.Token = generateToken()

		err := s.repo.CreateShortlink(ctx, link)
		if err == nil {
			if cacheErr := s.cache.SetShortlink(ctx, link); cacheErr != nil {
				s.logger.Warn("failed to cache shortlink", "token", link.Token, "error", cacheErr)
			}
			return link, nil
		}
		if !errors.Is(err, repository.ErrTokenExists) {
			return nil, fmt.Errorf("failed to create shortlink: %w", err)
		}
	}

	return nil, errors.New("failed to generate unique token after retries")
}

// Resolve resolves a token to its shortlink. This is the hot path for
// redirects: cache-first with negative caching for unknown tokens.
func (s *Service) Resolve(ctx context.Context, token string) (*model.Shortlink, error) {
	cached, err := s.cache.GetShortlink(ctx, token)
	if err == nil {
		return cached.ToShortlink(token), nil
	}
	if errors.Is(err, cache.ErrNegativeHit) {
		return nil, ErrNotFound
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// Redis trouble. Fall through to the database.
		s.logger.Warn("shortlink cache lookup failed", "token", token, "error", err)
	}

	link, err := s.repo.GetShortlinkByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrShortlinkNotFound) {
			_ = s.cache.SetShortlinkNegative(ctx, token)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve shortlink: %w", err)
	}

	if cacheErr := s.cache.SetShortlink(ctx, link); cacheErr != nil {
		s.logger.Warn("failed to backfill shortlink cache", "token", token, "error", cacheErr)
	}

	return link, nil
}

// ShortURL returns the full public URL for a token.
func (s *Service) ShortURL(token string) string {
	return s.baseURL + "/r/" + token
}

// validateTarget validates a redirect target URL. Only http and https
// are allowed, which rejects javascript:, data: and similar schemes.
func (s *Service) validateTarget(target string) error {
	if target == "" {
		return ErrInvalidTarget
	}

	if len(target) > maxTargetLength {
		return ErrURLTooLong
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return ErrInvalidTarget
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidTarget
	}

	if parsed.Host == "" {
		return ErrInvalidTarget
	}

	return nil
}

// generateToken generates a random URL-safe token using crypto/rand.
func generateToken() string {
	b := make([]byte, tokenLength)
	for i := range b {
		idx, err := cryptoRandInt(len(tokenAlphabet))
		if err != nil {
			idx = 0
		}
		b[i] = tokenAlphabet[idx]
	}
	return string(b)
}

// cryptoRandInt returns a cryptographically secure random integer in [0, max).
func cryptoRandInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
