// Package middleware provides HTTP middleware for the Eventpulse API.
package middleware

import (
	"errors"
	"regexp"
	"strings"
)

// Validation limits.
const (
	// MaxTokenLength is the maximum length for a shortlink token.
	MaxTokenLength = 32

	// MinTokenLength is the minimum length for a shortlink token.
	MinTokenLength = 3

	// MaxTargetURLLength is the maximum length for redirect targets.
	MaxTargetURLLength = 2048

	// MaxIdentifierLength bounds event, sponsor and session identifiers.
	MaxIdentifierLength = 128
)

// Validation errors.
var (
	ErrTokenTooLong      = errors.New("token exceeds maximum length")
	ErrTokenTooShort     = errors.New("token is too short")
	ErrTokenInvalid      = errors.New("token contains invalid characters")
	ErrTokenReserved     = errors.New("token is reserved")
	ErrTargetTooLong     = errors.New("target URL exceeds maximum length")
	ErrTargetInvalid     = errors.New("target URL is invalid")
	ErrTargetUnsafe      = errors.New("target URL uses unsafe scheme")
	ErrIdentifierTooLong = errors.New("identifier exceeds maximum length")
	ErrIdentifierInvalid = errors.New("identifier contains invalid characters")
)

// ReservedTokens contains tokens that collide with system routes and
// must never resolve as shortlinks.
var ReservedTokens = map[string]bool{
	// System routes
	"api":     true,
	"admin":   true,
	"healthz": true,
	"readyz":  true,
	"metrics": true,
	"static":  true,
	"assets":  true,

	// Common paths attackers might try
	"login":    true,
	"logout":   true,
	"auth":     true,
	"oauth":    true,
	"callback": true,
	"ingest":   true,
	"reports":  true,

	// Brand protection
	"eventpulse": true,

	// Common file paths
	"robots":     true,
	"sitemap":    true,
	"favicon":    true,
	"well-known": true,
}

// validTokenPattern matches valid token characters.
// Allowed: a-z, A-Z, 0-9, hyphen, underscore
var validTokenPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validIdentifierPattern matches event, sponsor and session IDs.
var validIdentifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// ValidateToken validates a shortlink token from the request path
// before it reaches the resolver.
func ValidateToken(token string) error {
	if token == "" {
		return ErrTokenTooShort
	}

	if len(token) > MaxTokenLength {
		return ErrTokenTooLong
	}

	if len(token) < MinTokenLength {
		return ErrTokenTooShort
	}

	if !validTokenPattern.MatchString(token) {
		return ErrTokenInvalid
	}

	// Check reserved tokens (case-insensitive)
	if ReservedTokens[strings.ToLower(token)] {
		return ErrTokenReserved
	}

	return nil
}

// ValidateTargetURL validates a redirect target for shortlink creation.
func ValidateTargetURL(url string) error {
	if len(url) > MaxTargetURLLength {
		return ErrTargetTooLong
	}

	// Basic scheme validation
	lowerURL := strings.ToLower(url)
	if !strings.HasPrefix(lowerURL, "http://") && !strings.HasPrefix(lowerURL, "https://") {
		return ErrTargetInvalid
	}

	// Block dangerous schemes (in case of URL encoding tricks)
	forbiddenSchemes := []string{"javascript:", "data:", "vbscript:", "file:"}
	for _, scheme := range forbiddenSchemes {
		if strings.Contains(lowerURL, scheme) {
			return ErrTargetUnsafe
		}
	}

	return nil
}

// ValidateIdentifier validates an event, sponsor or session identifier.
// Empty identifiers are valid; presence requirements are enforced by
// the ingestion service per field.
func ValidateIdentifier(id string) error {
	if id == "" {
		return nil
	}

	if len(id) > MaxIdentifierLength {
		return ErrIdentifierTooLong
	}

	if !validIdentifierPattern.MatchString(id) {
		return ErrIdentifierInvalid
	}

	return nil
}
