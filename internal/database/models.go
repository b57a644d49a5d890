package database

import "time"

// License statuses
const (
	LicenseStatusActive   = "active"
	LicenseStatusInactive = "inactive"
	LicenseStatusExpired  = "expired"
	LicenseStatusRevoked  = "revoked"
)

// Ledger entry types
const (
	LedgerGrantMonthly = "grant_monthly"
	LedgerGrantExtra   = "grant_extra"
	LedgerConsume      = "consume"
	LedgerAdjust       = "adjust"
	LedgerDowngrade    = "downgrade"
)

// License represents a customer license row
type License struct {
	ID               string     `json:"id"`
	Key              string     `json:"license_key"`
	Status           string     `json:"status"`
	Plan             string     `json:"plan"`
	CustomerEmail    string     `json:"customer_email,omitempty"`
	CustomerName     string     `json:"customer_name,omitempty"`
	CreditsMonthly   int        `json:"credits_monthly"`
	CreditsExtra     int        `json:"credits_extra"`
	CreditsUsedMonth int        `json:"credits_used_month"`
	CreditsRemaining int        `json:"credits_remaining"`
	CreditsResetDate *time.Time `json:"credits_reset_date,omitempty"`
	ActivationLimit  int        `json:"activation_limit"`
	ActivationCount  int        `json:"activation_count"`
	SiteUnlockAt     *time.Time `json:"site_unlock_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsExpired reports whether the license passed its expiry timestamp
func (l *License) IsExpired() bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(time.Now())
}

// Activation represents a domain activation for a license
type Activation struct {
	ID            string     `json:"id"`
	LicenseID     string     `json:"license_id"`
	Domain        string     `json:"domain"`
	SiteURL       string     `json:"site_url,omitempty"`
	Status        string     `json:"status"`
	ActivatedAt   time.Time  `json:"activated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// LedgerEntry is a single append-only credit ledger row
type LedgerEntry struct {
	ID           int64     `json:"id"`
	LicenseID    string    `json:"license_id"`
	EntryType    string    `json:"entry_type"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	RefType      string    `json:"ref_type,omitempty"`
	RefID        string    `json:"ref_id,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// APILogEntry records one upstream gateway request
type APILogEntry struct {
	ID         int64     `json:"id"`
	LicenseID  string    `json:"license_id,omitempty"`
	Endpoint   string    `json:"endpoint"`
	VideoID    string    `json:"video_id,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Success    bool      `json:"success"`
	ErrorCode  string    `json:"error_code,omitempty"`
	DurationMs int       `json:"duration_ms"`
	Cached     bool      `json:"cached"`
	ClientIP   string    `json:"client_ip,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SecurityLogEntry records a blocked request
type SecurityLogEntry struct {
	ID        int64     `json:"id"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Path      string    `json:"path,omitempty"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GoldenPrompt is an encrypted prompt row. The prompt body is stored
// AES-GCM encrypted; Checksum is the SHA-256 of the plaintext.
type GoldenPrompt struct {
	ID              string    `json:"id"`
	LicenseID       string    `json:"license_id,omitempty"`
	Domain          string    `json:"domain,omitempty"`
	Version         int       `json:"version"`
	Checksum        string    `json:"checksum"`
	EncryptedPrompt string    `json:"-"`
	IsMaster        bool      `json:"is_master"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AdminUser is an operator account for the management API
type AdminUser struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// LicenseStats is an aggregate snapshot for the admin dashboard
type LicenseStats struct {
	TotalLicenses    int `json:"total_licenses"`
	ActiveLicenses   int `json:"active_licenses"`
	ExpiredLicenses  int `json:"expired_licenses"`
	TotalActivations int `json:"total_activations"`
	CreditsConsumed  int `json:"credits_consumed"`
}

// APIStats aggregates gateway traffic for a time range
type APIStats struct {
	TotalRequests  int     `json:"total_requests"`
	SuccessCount   int     `json:"success_count"`
	ErrorCount     int     `json:"error_count"`
	CacheHits      int     `json:"cache_hits"`
	AvgDurationMs  float64 `json:"avg_duration_ms"`
	UniqueLicenses int     `json:"unique_licenses"`
}
