package export

import (
	"errors"
	"testing"
)

func TestValidateTargetURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"valid https", "https://example.com/hooks/report", nil},
		{"http rejected", "http://example.com/hooks", ErrInvalidScheme},
		{"ftp rejected", "ftp://example.com", ErrInvalidScheme},
		{"empty host", "https://", ErrEmptyHost},
		{"localhost", "https://localhost/hook", ErrLocalhostBlocked},
		{"localhost subdomain", "https://foo.localhost/hook", ErrLocalhostBlocked},
		{"dot local", "https://printer.local/hook", ErrLocalhostBlocked},
		{"loopback ip", "https://127.0.0.1/hook", ErrLocalhostBlocked},
		{"non-standard port", "https://example.com:8443/hook", ErrInvalidPort},
		// Must be caught without DNS: the hostname never resolves.
		{"non-standard port on unresolvable host", "https://no-such-host.invalid:8443/hook", ErrInvalidPort},
		{"garbage", "://not a url", ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTargetURL(tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTargetURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestExtractHost(t *testing.T) {
	if got := ExtractHost("https://example.com/secret-path?token=abc"); got != "example.com" {
		t.Errorf("ExtractHost() = %q, want example.com", got)
	}
	if got := ExtractHost("://bad"); got != "(invalid)" {
		t.Errorf("ExtractHost() = %q, want (invalid)", got)
	}
}
