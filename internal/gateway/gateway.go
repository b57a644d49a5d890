// Package gateway proxies plugin requests to the upstream providers,
// adding key fallback, response caching, and audit logging.
package gateway

import (
	"context"
	"regexp"
	"time"

	"ipv-vendor-gateway/internal/database"
)

// KeyProvider supplies API keys for an upstream provider in fallback
// order
type KeyProvider interface {
	GetProviderKeys(ctx context.Context, provider string) ([]string, error)
}

// Cache is the response cache surface the clients need
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// AuditLogger records upstream requests. Implementations must not
// block the request path.
type AuditLogger interface {
	Log(entry *database.APILogEntry)
}

// NopAudit discards audit entries
type NopAudit struct{}

func (NopAudit) Log(*database.APILogEntry) {}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var videoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtu\.be/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/embed/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/shorts/)([A-Za-z0-9_-]{11})`),
}

// ExtractVideoID resolves a YouTube video ID from a raw ID or any of
// the common URL forms. Returns empty when nothing matches.
func ExtractVideoID(input string) string {
	if videoIDPattern.MatchString(input) {
		return input
	}
	for _, p := range videoURLPatterns {
		if m := p.FindStringSubmatch(input); m != nil {
			return m[1]
		}
	}
	return ""
}
