package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Licenses table. credits_remaining is denormalized from the
		// ledger so the deduction path is a single conditional UPDATE.
		`CREATE TABLE IF NOT EXISTS ipv_licenses (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			license_key VARCHAR(19) UNIQUE NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			plan VARCHAR(30) NOT NULL,
			customer_email VARCHAR(255),
			customer_name VARCHAR(255),
			credits_monthly INTEGER NOT NULL DEFAULT 0,
			credits_extra INTEGER NOT NULL DEFAULT 0,
			credits_used_month INTEGER NOT NULL DEFAULT 0,
			credits_remaining INTEGER NOT NULL DEFAULT 0,
			credits_reset_date DATE,
			activation_limit INTEGER NOT NULL DEFAULT 1,
			activation_count INTEGER NOT NULL DEFAULT 0,
			site_unlock_at TIMESTAMP,
			expires_at TIMESTAMP,
			notes TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_licenses_key ON ipv_licenses(license_key)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_licenses_status ON ipv_licenses(status)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_licenses_email ON ipv_licenses(customer_email)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_licenses_reset ON ipv_licenses(credits_reset_date)`,

		// Domain activations per license
		`CREATE TABLE IF NOT EXISTS ipv_activations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			license_id UUID NOT NULL REFERENCES ipv_licenses(id) ON DELETE CASCADE,
			domain VARCHAR(255) NOT NULL,
			site_url TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			activated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			deactivated_at TIMESTAMP,
			UNIQUE (license_id, domain)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_activations_license ON ipv_activations(license_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_activations_domain ON ipv_activations(domain)`,

		// Append-only credit ledger
		`CREATE TABLE IF NOT EXISTS ipv_credit_ledger (
			id BIGSERIAL PRIMARY KEY,
			license_id UUID NOT NULL REFERENCES ipv_licenses(id) ON DELETE CASCADE,
			entry_type VARCHAR(20) NOT NULL,
			amount INTEGER NOT NULL,
			balance_after INTEGER NOT NULL,
			ref_type VARCHAR(30),
			ref_id VARCHAR(100),
			note TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_ledger_license ON ipv_credit_ledger(license_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_ledger_created ON ipv_credit_ledger(created_at)`,

		// Upstream call audit log
		`CREATE TABLE IF NOT EXISTS ipv_api_logs (
			id BIGSERIAL PRIMARY KEY,
			license_id UUID REFERENCES ipv_licenses(id) ON DELETE SET NULL,
			endpoint VARCHAR(100) NOT NULL,
			video_id VARCHAR(20),
			provider VARCHAR(30),
			status_code INTEGER,
			success BOOLEAN NOT NULL DEFAULT FALSE,
			error_code VARCHAR(50),
			duration_ms INTEGER,
			cached BOOLEAN NOT NULL DEFAULT FALSE,
			client_ip VARCHAR(45),
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_api_logs_license ON ipv_api_logs(license_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_api_logs_created ON ipv_api_logs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_api_logs_endpoint ON ipv_api_logs(endpoint)`,

		// Blocked request log
		`CREATE TABLE IF NOT EXISTS ipv_security_log (
			id BIGSERIAL PRIMARY KEY,
			client_ip VARCHAR(45),
			user_agent TEXT,
			path VARCHAR(255),
			reason VARCHAR(50) NOT NULL,
			detail TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_security_log_created ON ipv_security_log(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_security_log_ip ON ipv_security_log(client_ip)`,

		// Golden prompts, encrypted at rest. The master template has a
		// NULL license_id and is_master = TRUE.
		`CREATE TABLE IF NOT EXISTS ipv_golden_prompts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			license_id UUID REFERENCES ipv_licenses(id) ON DELETE CASCADE,
			domain VARCHAR(255),
			version INTEGER NOT NULL DEFAULT 1,
			checksum VARCHAR(64) NOT NULL,
			encrypted_prompt TEXT NOT NULL,
			is_master BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ipv_prompts_license ON ipv_golden_prompts(license_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_ipv_prompts_master ON ipv_golden_prompts(is_master) WHERE is_master = TRUE`,

		// Admin users for the management API
		`CREATE TABLE IF NOT EXISTS ipv_admin_users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username VARCHAR(100) UNIQUE NOT NULL,
			password_hash VARCHAR(100) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'admin',
			last_login_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Create updated_at trigger function
		`CREATE OR REPLACE FUNCTION update_updated_at_column()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = CURRENT_TIMESTAMP;
			RETURN NEW;
		END;
		$$ language 'plpgsql'`,

		`DROP TRIGGER IF EXISTS update_ipv_licenses_updated_at ON ipv_licenses`,
		`CREATE TRIGGER update_ipv_licenses_updated_at BEFORE UPDATE ON ipv_licenses
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,

		`DROP TRIGGER IF EXISTS update_ipv_golden_prompts_updated_at ON ipv_golden_prompts`,
		`CREATE TRIGGER update_ipv_golden_prompts_updated_at BEFORE UPDATE ON ipv_golden_prompts
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
