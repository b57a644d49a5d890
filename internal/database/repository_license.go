package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const licenseColumns = `
	id, license_key, status, plan, COALESCE(customer_email, ''), COALESCE(customer_name, ''),
	credits_monthly, credits_extra, credits_used_month, credits_remaining, credits_reset_date,
	activation_limit, activation_count, site_unlock_at, expires_at, COALESCE(notes, ''),
	created_at, updated_at`

func scanLicense(row pgx.Row) (*License, error) {
	var l License
	err := row.Scan(
		&l.ID,
		&l.Key,
		&l.Status,
		&l.Plan,
		&l.CustomerEmail,
		&l.CustomerName,
		&l.CreditsMonthly,
		&l.CreditsExtra,
		&l.CreditsUsedMonth,
		&l.CreditsRemaining,
		&l.CreditsResetDate,
		&l.ActivationLimit,
		&l.ActivationCount,
		&l.SiteUnlockAt,
		&l.ExpiresAt,
		&l.Notes,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLicense inserts a new license
func (r *Repository) CreateLicense(ctx context.Context, license *License) error {
	if license.ID == "" {
		license.ID = uuid.New().String()
	}
	license.CreatedAt = time.Now()
	license.UpdatedAt = license.CreatedAt

	query := `
	INSERT INTO ipv_licenses (
		id, license_key, status, plan, customer_email, customer_name,
		credits_monthly, credits_extra, credits_used_month, credits_remaining, credits_reset_date,
		activation_limit, activation_count, site_unlock_at, expires_at, notes, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		license.ID,
		license.Key,
		license.Status,
		license.Plan,
		license.CustomerEmail,
		license.CustomerName,
		license.CreditsMonthly,
		license.CreditsExtra,
		license.CreditsUsedMonth,
		license.CreditsRemaining,
		license.CreditsResetDate,
		license.ActivationLimit,
		license.ActivationCount,
		license.SiteUnlockAt,
		license.ExpiresAt,
		license.Notes,
		license.CreatedAt,
		license.UpdatedAt,
	)

	return err
}

// GetLicenseByKey retrieves a license by its key, or nil when not found
func (r *Repository) GetLicenseByKey(ctx context.Context, key string) (*License, error) {
	query := `SELECT ` + licenseColumns + ` FROM ipv_licenses WHERE license_key = $1`

	license, err := scanLicense(r.db.Pool.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license by key: %w", err)
	}
	return license, nil
}

// GetLicenseByID retrieves a license by ID, or nil when not found
func (r *Repository) GetLicenseByID(ctx context.Context, id string) (*License, error) {
	query := `SELECT ` + licenseColumns + ` FROM ipv_licenses WHERE id = $1`

	license, err := scanLicense(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license by id: %w", err)
	}
	return license, nil
}

// ListLicenses returns licenses ordered by creation time, newest first
func (r *Repository) ListLicenses(ctx context.Context, limit, offset int) ([]*License, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + licenseColumns + ` FROM ipv_licenses ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []*License
	for rows.Next() {
		license, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, license)
	}
	return licenses, rows.Err()
}

// UpdateLicenseStatus sets the license status
func (r *Repository) UpdateLicenseStatus(ctx context.Context, id, status string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE ipv_licenses SET status = $1 WHERE id = $2`, status, id)
	return err
}

// UpdateLicensePlan moves a license onto a new plan. The caller sets
// the remaining balance and usage counter explicitly so the balance
// identity (credits_remaining = credits_monthly + credits_extra -
// credits_used_month) survives the allowance change. A downgrade clamp
// ledger entry, when given, commits in the same transaction as the
// plan update.
func (r *Repository) UpdateLicensePlan(ctx context.Context, id, plan string, creditsMonthly, activationLimit, creditsRemaining, creditsUsedMonth int, clamp *LedgerEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin plan change tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE ipv_licenses
		SET plan = $1, credits_monthly = $2, activation_limit = $3,
		    credits_remaining = $4, credits_used_month = $5
		WHERE id = $6`,
		plan, creditsMonthly, activationLimit, creditsRemaining, creditsUsedMonth, id)
	if err != nil {
		return fmt.Errorf("failed to change plan: %w", err)
	}

	if clamp != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO ipv_credit_ledger (license_id, entry_type, amount, balance_after, ref_type, ref_id, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			clamp.LicenseID, clamp.EntryType, clamp.Amount, clamp.BalanceAfter,
			clamp.RefType, clamp.RefID, clamp.Note)
		if err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// UpdateLicenseExpiry sets the license expiry timestamp
func (r *Repository) UpdateLicenseExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE ipv_licenses SET expires_at = $1 WHERE id = $2`, expiresAt, id)
	return err
}

// GetActivation returns the activation row for a license and domain,
// or nil when none exists
func (r *Repository) GetActivation(ctx context.Context, licenseID, domain string) (*Activation, error) {
	query := `
	SELECT id, license_id, domain, COALESCE(site_url, ''), status, activated_at, deactivated_at
	FROM ipv_activations
	WHERE license_id = $1 AND domain = $2
	`

	var a Activation
	err := r.db.Pool.QueryRow(ctx, query, licenseID, domain).Scan(
		&a.ID, &a.LicenseID, &a.Domain, &a.SiteURL, &a.Status, &a.ActivatedAt, &a.DeactivatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activation: %w", err)
	}
	return &a, nil
}

// ListActivations returns all activations for a license
func (r *Repository) ListActivations(ctx context.Context, licenseID string) ([]*Activation, error) {
	query := `
	SELECT id, license_id, domain, COALESCE(site_url, ''), status, activated_at, deactivated_at
	FROM ipv_activations
	WHERE license_id = $1
	ORDER BY activated_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, licenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}
	defer rows.Close()

	var activations []*Activation
	for rows.Next() {
		var a Activation
		if err := rows.Scan(&a.ID, &a.LicenseID, &a.Domain, &a.SiteURL, &a.Status, &a.ActivatedAt, &a.DeactivatedAt); err != nil {
			return nil, err
		}
		activations = append(activations, &a)
	}
	return activations, rows.Err()
}

// ActivateDomain records a domain activation and bumps the denormalized
// activation_count in the same transaction. Re-activating a previously
// deactivated domain reuses its row and does not count again.
func (r *Repository) ActivateDomain(ctx context.Context, licenseID, domain, siteURL string) (*Activation, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin activation tx: %w", err)
	}
	defer tx.Rollback(ctx)

	existing := &Activation{}
	err = tx.QueryRow(ctx, `
		SELECT id, status FROM ipv_activations
		WHERE license_id = $1 AND domain = $2
		FOR UPDATE`,
		licenseID, domain).Scan(&existing.ID, &existing.Status)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		id := uuid.New().String()
		now := time.Now()
		_, err = tx.Exec(ctx, `
			INSERT INTO ipv_activations (id, license_id, domain, site_url, status, activated_at)
			VALUES ($1, $2, $3, $4, 'active', $5)`,
			id, licenseID, domain, siteURL, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert activation: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE ipv_licenses SET activation_count = activation_count + 1 WHERE id = $1`,
			licenseID)
		if err != nil {
			return nil, fmt.Errorf("failed to bump activation count: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return &Activation{ID: id, LicenseID: licenseID, Domain: domain, SiteURL: siteURL, Status: "active", ActivatedAt: now}, nil

	case err != nil:
		return nil, fmt.Errorf("failed to check activation: %w", err)

	default:
		if existing.Status != "active" {
			_, err = tx.Exec(ctx, `
				UPDATE ipv_activations
				SET status = 'active', activated_at = NOW(), deactivated_at = NULL, site_url = $1
				WHERE id = $2`,
				siteURL, existing.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reactivate domain: %w", err)
			}
			_, err = tx.Exec(ctx, `
				UPDATE ipv_licenses SET activation_count = activation_count + 1 WHERE id = $1`,
				licenseID)
			if err != nil {
				return nil, fmt.Errorf("failed to bump activation count: %w", err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return r.GetActivation(ctx, licenseID, domain)
	}
}

// DeactivateDomain marks an activation inactive and decrements the
// denormalized activation_count
func (r *Repository) DeactivateDomain(ctx context.Context, licenseID, domain string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin deactivation tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE ipv_activations
		SET status = 'inactive', deactivated_at = NOW()
		WHERE license_id = $1 AND domain = $2 AND status = 'active'`,
		licenseID, domain)
	if err != nil {
		return fmt.Errorf("failed to deactivate domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	_, err = tx.Exec(ctx, `
		UPDATE ipv_licenses
		SET activation_count = GREATEST(activation_count - 1, 0)
		WHERE id = $1`,
		licenseID)
	if err != nil {
		return fmt.Errorf("failed to decrement activation count: %w", err)
	}

	return tx.Commit(ctx)
}

// GetLicenseStats returns aggregate counts for the admin dashboard
func (r *Repository) GetLicenseStats(ctx context.Context) (*LicenseStats, error) {
	var stats LicenseStats

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'expired'),
			COALESCE(SUM(activation_count), 0),
			COALESCE(SUM(credits_used_month), 0)
		FROM ipv_licenses`).Scan(
		&stats.TotalLicenses,
		&stats.ActiveLicenses,
		&stats.ExpiredLicenses,
		&stats.TotalActivations,
		&stats.CreditsConsumed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get license stats: %w", err)
	}
	return &stats, nil
}
