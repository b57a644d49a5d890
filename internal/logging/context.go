package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// GenerateTraceID creates a new unique trace ID
func GenerateTraceID() string {
	return uuid.New().String()
}

// NewContext returns a context with the trace ID attached
func NewContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext extracts the trace ID from the context
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// FromContext returns the default logger enriched with the context's
// trace ID when one is present
func FromContext(ctx context.Context) *Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return Default().WithTraceID(traceID)
	}
	return Default()
}

// LicenseContext returns a logger annotated with license request fields
func LicenseContext(ctx context.Context, licenseKey, domain string) *Logger {
	return FromContext(ctx).WithFields(map[string]interface{}{
		"license_key": MaskLicenseKey(licenseKey),
		"domain":      domain,
	})
}

// RequestContext returns a logger annotated with HTTP request fields
func RequestContext(ctx context.Context, method, path, clientIP string) *Logger {
	return FromContext(ctx).WithFields(map[string]interface{}{
		"method":    method,
		"path":      path,
		"client_ip": clientIP,
	})
}

// MaskLicenseKey hides all but the last segment of a license key so it
// can appear in logs without being usable.
func MaskLicenseKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****-****-****-" + key[len(key)-4:]
}
