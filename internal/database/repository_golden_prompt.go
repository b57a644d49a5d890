package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetGoldenPromptForLicense returns the prompt stored for a license,
// falling back to nil when none exists
func (r *Repository) GetGoldenPromptForLicense(ctx context.Context, licenseID string) (*GoldenPrompt, error) {
	query := `
	SELECT id, COALESCE(license_id::text, ''), COALESCE(domain, ''), version, checksum, encrypted_prompt, is_master, created_at, updated_at
	FROM ipv_golden_prompts
	WHERE license_id = $1
	`

	var p GoldenPrompt
	err := r.db.Pool.QueryRow(ctx, query, licenseID).Scan(
		&p.ID, &p.LicenseID, &p.Domain, &p.Version, &p.Checksum, &p.EncryptedPrompt, &p.IsMaster, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get golden prompt: %w", err)
	}
	return &p, nil
}

// GetMasterPrompt returns the master prompt template, or nil when none
// has been pushed yet
func (r *Repository) GetMasterPrompt(ctx context.Context) (*GoldenPrompt, error) {
	query := `
	SELECT id, COALESCE(license_id::text, ''), COALESCE(domain, ''), version, checksum, encrypted_prompt, is_master, created_at, updated_at
	FROM ipv_golden_prompts
	WHERE is_master = TRUE
	`

	var p GoldenPrompt
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&p.ID, &p.LicenseID, &p.Domain, &p.Version, &p.Checksum, &p.EncryptedPrompt, &p.IsMaster, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get master prompt: %w", err)
	}
	return &p, nil
}

// UpsertGoldenPrompt saves a prompt for a license, bumping the version
// when the row already exists
func (r *Repository) UpsertGoldenPrompt(ctx context.Context, licenseID, domain, checksum, encryptedPrompt string) (*GoldenPrompt, error) {
	existing, err := r.GetGoldenPromptForLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		id := uuid.New().String()
		_, err = r.db.Pool.Exec(ctx, `
			INSERT INTO ipv_golden_prompts (id, license_id, domain, version, checksum, encrypted_prompt, is_master)
			VALUES ($1, $2, $3, 1, $4, $5, FALSE)`,
			id, licenseID, domain, checksum, encryptedPrompt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert golden prompt: %w", err)
		}
	} else {
		_, err = r.db.Pool.Exec(ctx, `
			UPDATE ipv_golden_prompts
			SET domain = $1, version = version + 1, checksum = $2, encrypted_prompt = $3
			WHERE license_id = $4`,
			domain, checksum, encryptedPrompt, licenseID)
		if err != nil {
			return nil, fmt.Errorf("failed to update golden prompt: %w", err)
		}
	}

	return r.GetGoldenPromptForLicense(ctx, licenseID)
}

// UpsertMasterPrompt replaces the master prompt template
func (r *Repository) UpsertMasterPrompt(ctx context.Context, checksum, encryptedPrompt string) (*GoldenPrompt, error) {
	existing, err := r.GetMasterPrompt(ctx)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		id := uuid.New().String()
		_, err = r.db.Pool.Exec(ctx, `
			INSERT INTO ipv_golden_prompts (id, license_id, version, checksum, encrypted_prompt, is_master)
			VALUES ($1, NULL, 1, $2, $3, TRUE)`,
			id, checksum, encryptedPrompt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert master prompt: %w", err)
		}
	} else {
		_, err = r.db.Pool.Exec(ctx, `
			UPDATE ipv_golden_prompts
			SET version = version + 1, checksum = $1, encrypted_prompt = $2
			WHERE is_master = TRUE`,
			checksum, encryptedPrompt)
		if err != nil {
			return nil, fmt.Errorf("failed to update master prompt: %w", err)
		}
	}

	return r.GetMasterPrompt(ctx)
}
