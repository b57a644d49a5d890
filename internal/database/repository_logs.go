package database

import (
	"context"
	"fmt"
	"time"
)

// InsertAPILog records one gateway request in the audit log
func (r *Repository) InsertAPILog(ctx context.Context, entry *APILogEntry) error {
	var licenseID interface{}
	if entry.LicenseID != "" {
		licenseID = entry.LicenseID
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO ipv_api_logs (license_id, endpoint, video_id, provider, status_code, success, error_code, duration_ms, cached, client_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		licenseID,
		entry.Endpoint,
		entry.VideoID,
		entry.Provider,
		entry.StatusCode,
		entry.Success,
		entry.ErrorCode,
		entry.DurationMs,
		entry.Cached,
		entry.ClientIP,
	)
	return err
}

// InsertSecurityLog records a blocked request
func (r *Repository) InsertSecurityLog(ctx context.Context, entry *SecurityLogEntry) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO ipv_security_log (client_ip, user_agent, path, reason, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ClientIP,
		entry.UserAgent,
		entry.Path,
		entry.Reason,
		entry.Detail,
	)
	return err
}

// GetAPIStats aggregates gateway traffic since the given time
func (r *Repository) GetAPIStats(ctx context.Context, since time.Time) (*APIStats, error) {
	var stats APIStats

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE success),
			COUNT(*) FILTER (WHERE NOT success),
			COUNT(*) FILTER (WHERE cached),
			COALESCE(AVG(duration_ms), 0),
			COUNT(DISTINCT license_id)
		FROM ipv_api_logs
		WHERE created_at >= $1`, since).Scan(
		&stats.TotalRequests,
		&stats.SuccessCount,
		&stats.ErrorCount,
		&stats.CacheHits,
		&stats.AvgDurationMs,
		&stats.UniqueLicenses,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get api stats: %w", err)
	}
	return &stats, nil
}

// ListAPILogs returns recent gateway requests for a license
func (r *Repository) ListAPILogs(ctx context.Context, licenseID string, limit int) ([]*APILogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, COALESCE(license_id::text, ''), endpoint, COALESCE(video_id, ''), COALESCE(provider, ''),
		       COALESCE(status_code, 0), success, COALESCE(error_code, ''), COALESCE(duration_ms, 0),
		       cached, COALESCE(client_ip, ''), created_at
		FROM ipv_api_logs
		WHERE license_id = $1
		ORDER BY id DESC
		LIMIT $2`, licenseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list api logs: %w", err)
	}
	defer rows.Close()

	var entries []*APILogEntry
	for rows.Next() {
		var e APILogEntry
		if err := rows.Scan(&e.ID, &e.LicenseID, &e.Endpoint, &e.VideoID, &e.Provider,
			&e.StatusCode, &e.Success, &e.ErrorCode, &e.DurationMs, &e.Cached, &e.ClientIP, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
