// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"time"
)

// Shortlink maps an opaque token to a destination URL with attribution
// context baked in at creation. Shortlinks are immutable once created.
type Shortlink struct {
	Token     string    `json:"token"`
	TargetURL string    `json:"target_url"`
	EventID   string    `json:"event_id"`
	Surface   Surface   `json:"surface"`
	SponsorID string    `json:"sponsor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CachedShortlink represents shortlink data stored in Redis cache.
// Uses string types for Redis hash compatibility.
type CachedShortlink struct {
	TargetURL string `redis:"target_url"`
	EventID   string `redis:"event_id"`
	Surface   string `redis:"surface"`
	SponsorID string `redis:"sponsor_id"`
	CreatedAt string `redis:"created_at"` // Unix timestamp
}

// ToShortlink converts CachedShortlink to the Shortlink domain model.
func (c *CachedShortlink) ToShortlink(token string) *Shortlink {
	link := &Shortlink{
		Token:     token,
		TargetURL: c.TargetURL,
		EventID:   c.EventID,
		Surface:   Surface(c.Surface),
		SponsorID: c.SponsorID,
	}

	if c.CreatedAt != "" {
		if ts, err := strconv.ParseInt(c.CreatedAt, 10, 64); err == nil {
			link.CreatedAt = time.Unix(ts, 0).UTC()
		}
	}

	return link
}

// ToCachedShortlink converts the domain model to its cache shape.
func (s *Shortlink) ToCachedShortlink() *CachedShortlink {
	return &CachedShortlink{
		TargetURL: s.TargetURL,
		EventID:   s.EventID,
		Surface:   string(s.Surface),
		SponsorID: s.SponsorID,
		CreatedAt: strconv.FormatInt(s.CreatedAt.Unix(), 10),
	}
}
