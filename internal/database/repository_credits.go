package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrInsufficientCredits is returned when a deduction would take the
// balance below zero
var ErrInsufficientCredits = errors.New("insufficient credits")

// DeductCredits atomically deducts credits and appends a ledger row in
// one transaction. The conditional UPDATE only matches when the balance
// covers the amount, so concurrent deductions cannot overspend.
// Returns the remaining balance after the deduction.
func (r *Repository) DeductCredits(ctx context.Context, licenseID string, amount int, refType, refID, note string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("deduction amount must be positive, got %d", amount)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin deduction tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var remaining int
	err = tx.QueryRow(ctx, `
		UPDATE ipv_licenses
		SET credits_remaining = credits_remaining - $1,
		    credits_used_month = credits_used_month + $1
		WHERE id = $2 AND credits_remaining >= $1
		RETURNING credits_remaining`,
		amount, licenseID).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("failed to deduct credits: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ipv_credit_ledger (license_id, entry_type, amount, balance_after, ref_type, ref_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		licenseID, LedgerConsume, -amount, remaining, refType, refID, note)
	if err != nil {
		return 0, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}

// AddExtraCredits grants non-expiring extra credits
func (r *Repository) AddExtraCredits(ctx context.Context, licenseID string, amount int, refID, note string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin grant tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var remaining int
	err = tx.QueryRow(ctx, `
		UPDATE ipv_licenses
		SET credits_extra = credits_extra + $1,
		    credits_remaining = credits_remaining + $1
		WHERE id = $2
		RETURNING credits_remaining`,
		amount, licenseID).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, pgx.ErrNoRows
	}
	if err != nil {
		return 0, fmt.Errorf("failed to grant credits: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ipv_credit_ledger (license_id, entry_type, amount, balance_after, ref_type, ref_id, note)
		VALUES ($1, $2, $3, $4, 'purchase', $5, $6)`,
		licenseID, LedgerGrantExtra, amount, remaining, refID, note)
	if err != nil {
		return 0, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}

// AdjustCredits applies a signed manual adjustment in one transaction.
// A positive amount is booked as extra credits and a negative one as
// usage, so the balance identity (credits_remaining = credits_monthly +
// credits_extra - credits_used_month) holds either way. Negative
// adjustments clamp at a zero balance.
func (r *Repository) AdjustCredits(ctx context.Context, licenseID string, amount int, note string) (int, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin adjust tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current int
	err = tx.QueryRow(ctx, `
		SELECT credits_remaining FROM ipv_licenses WHERE id = $1 FOR UPDATE`,
		licenseID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, pgx.ErrNoRows
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock license row: %w", err)
	}

	effective := amount
	if effective < -current {
		effective = -current
	}

	if effective >= 0 {
		_, err = tx.Exec(ctx, `
			UPDATE ipv_licenses
			SET credits_extra = credits_extra + $1,
			    credits_remaining = credits_remaining + $1
			WHERE id = $2`,
			effective, licenseID)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE ipv_licenses
			SET credits_used_month = credits_used_month - $1,
			    credits_remaining = credits_remaining + $1
			WHERE id = $2`,
			effective, licenseID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust credits: %w", err)
	}

	remaining := current + effective
	_, err = tx.Exec(ctx, `
		INSERT INTO ipv_credit_ledger (license_id, entry_type, amount, balance_after, ref_type, note)
		VALUES ($1, $2, $3, $4, 'manual', $5)`,
		licenseID, LedgerAdjust, effective, remaining, note)
	if err != nil {
		return 0, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}

// ResetMonthlyCredits restores the monthly allowance, keeps extra
// credits, zeroes the monthly usage counter, and schedules the next
// reset date
func (r *Repository) ResetMonthlyCredits(ctx context.Context, licenseID string, nextReset time.Time) (int, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin reset tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var remaining, monthly int
	err = tx.QueryRow(ctx, `
		UPDATE ipv_licenses
		SET credits_remaining = credits_monthly + credits_extra,
		    credits_used_month = 0,
		    credits_reset_date = $1
		WHERE id = $2
		RETURNING credits_remaining, credits_monthly`,
		nextReset, licenseID).Scan(&remaining, &monthly)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, pgx.ErrNoRows
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reset credits: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ipv_credit_ledger (license_id, entry_type, amount, balance_after, ref_type, note)
		VALUES ($1, $2, $3, $4, 'scheduler', 'monthly credit reset')`,
		licenseID, LedgerGrantMonthly, monthly, remaining)
	if err != nil {
		return 0, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}

// ListLicensesDueForReset returns active licenses whose reset date has
// passed
func (r *Repository) ListLicensesDueForReset(ctx context.Context, now time.Time) ([]*License, error) {
	query := `SELECT ` + licenseColumns + `
	FROM ipv_licenses
	WHERE status = 'active' AND credits_reset_date IS NOT NULL AND credits_reset_date <= $1
	ORDER BY credits_reset_date`

	rows, err := r.db.Pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses due for reset: %w", err)
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

// GetLedger returns ledger entries for a license, newest first
func (r *Repository) GetLedger(ctx context.Context, licenseID string, limit, offset int) ([]*LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
	SELECT id, license_id, entry_type, amount, balance_after,
	       COALESCE(ref_type, ''), COALESCE(ref_id, ''), COALESCE(note, ''), created_at
	FROM ipv_credit_ledger
	WHERE license_id = $1
	ORDER BY id DESC
	LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, licenseID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.LicenseID, &e.EntryType, &e.Amount, &e.BalanceAfter,
			&e.RefType, &e.RefID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
