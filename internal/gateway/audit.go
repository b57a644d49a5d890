package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ipv-vendor-gateway/internal/database"
)

// DBAudit writes audit entries to the ipv_api_logs table. Writes run
// in a goroutine and failures are logged and swallowed so audit
// problems never fail a request.
type DBAudit struct {
	repo    *database.Repository
	logger  zerolog.Logger
	timeout time.Duration
}

// NewDBAudit creates a database-backed audit logger
func NewDBAudit(repo *database.Repository, logger zerolog.Logger) *DBAudit {
	return &DBAudit{
		repo:    repo,
		logger:  logger.With().Str("component", "audit").Logger(),
		timeout: 5 * time.Second,
	}
}

// Log records the entry without blocking the caller
func (a *DBAudit) Log(entry *database.APILogEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.repo.InsertAPILog(ctx, entry); err != nil {
			a.logger.Warn().Err(err).
				Str("endpoint", entry.Endpoint).
				Msg("failed to write audit log entry")
		}
	}()
}
