package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/events"
	"ipv-vendor-gateway/internal/logging"
)

// Validation errors
var (
	ErrNotFound        = errors.New("license not found")
	ErrInactive        = errors.New("license is not active")
	ErrDomainMismatch  = errors.New("domain is not activated for this license")
	ErrActivationLimit = errors.New("activation limit reached")
	ErrSiteLocked      = errors.New("site changes are locked for this license")
	ErrUnknownPlan     = errors.New("unknown plan")
)

// Repository is the data access surface the manager needs
type Repository interface {
	CreateLicense(ctx context.Context, license *database.License) error
	GetLicenseByKey(ctx context.Context, key string) (*database.License, error)
	GetLicenseByID(ctx context.Context, id string) (*database.License, error)
	ListLicenses(ctx context.Context, limit, offset int) ([]*database.License, error)
	UpdateLicenseStatus(ctx context.Context, id, status string) error
	UpdateLicensePlan(ctx context.Context, id, plan string, creditsMonthly, activationLimit, creditsRemaining, creditsUsedMonth int, clamp *database.LedgerEntry) error
	GetActivation(ctx context.Context, licenseID, domain string) (*database.Activation, error)
	ListActivations(ctx context.Context, licenseID string) ([]*database.Activation, error)
	ActivateDomain(ctx context.Context, licenseID, domain, siteURL string) (*database.Activation, error)
	DeactivateDomain(ctx context.Context, licenseID, domain string) error
	ResetMonthlyCredits(ctx context.Context, licenseID string, nextReset time.Time) (int, error)
}

// Manager implements license lifecycle and validation
type Manager struct {
	repo   Repository
	bus    *events.Bus
	logger *logging.Logger
}

// NewManager creates a license manager
func NewManager(repo Repository, bus *events.Bus, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		repo:   repo,
		bus:    bus,
		logger: logger.WithComponent("license"),
	}
}

// CreateParams holds inputs for license provisioning
type CreateParams struct {
	Plan          string
	CustomerEmail string
	CustomerName  string
	Notes         string
	SiteLockDays  int // Days before the license may move to a new domain, 0 disables the lock
}

// Create provisions a new license on the given plan. The initial
// monthly allowance is granted through the ledger so the first balance
// has an audit trail.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*database.License, error) {
	plan, ok := GetPlan(params.Plan)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, params.Plan)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	license := &database.License{
		Key:             key,
		Status:          database.LicenseStatusActive,
		Plan:            plan.Name,
		CustomerEmail:   params.CustomerEmail,
		CustomerName:    params.CustomerName,
		CreditsMonthly:  plan.CreditsMonthly,
		ActivationLimit: plan.ActivationLimit,
		Notes:           params.Notes,
	}
	if plan.TrialDays > 0 {
		expires := now.AddDate(0, 0, plan.TrialDays)
		license.ExpiresAt = &expires
	}
	if params.SiteLockDays > 0 {
		unlock := now.AddDate(0, 0, params.SiteLockDays)
		license.SiteUnlockAt = &unlock
	}

	if err := m.repo.CreateLicense(ctx, license); err != nil {
		return nil, fmt.Errorf("failed to create license: %w", err)
	}

	// Grant the first monthly allowance and schedule the next reset
	nextReset := now.AddDate(0, 1, 0)
	if _, err := m.repo.ResetMonthlyCredits(ctx, license.ID, nextReset); err != nil {
		return nil, fmt.Errorf("failed to grant initial credits: %w", err)
	}

	m.logger.Info("license created",
		"license_key", logging.MaskLicenseKey(key),
		"plan", plan.Name)

	// The key and customer email ride on the event so the email
	// subscriber can deliver the key without a repository lookup
	if m.bus != nil {
		m.bus.Publish(events.Event{
			Type: events.LicenseCreated,
			Data: map[string]interface{}{
				"license_id":     license.ID,
				"license_key":    key,
				"plan":           plan.Name,
				"customer_email": params.CustomerEmail,
			},
		})
	}

	return m.repo.GetLicenseByID(ctx, license.ID)
}

// Validate checks a license key against its status, expiry, and the
// requesting domain. An empty domain skips the activation check so
// server-side callers without a site context can still validate.
// The license is returned alongside the error when one was found.
func (m *Manager) Validate(ctx context.Context, key, domain string) (*database.License, error) {
	key = NormalizeKey(key)

	license, err := m.repo.GetLicenseByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if license == nil {
		return nil, ErrNotFound
	}

	// Expiry transitions status before the status check so expired
	// licenses report license_inactive consistently
	if license.Status == database.LicenseStatusActive && license.IsExpired() {
		if err := m.repo.UpdateLicenseStatus(ctx, license.ID, database.LicenseStatusExpired); err != nil {
			m.logger.Error("failed to mark license expired", "error", err)
		}
		license.Status = database.LicenseStatusExpired
	}

	if license.Status != database.LicenseStatusActive {
		return license, ErrInactive
	}

	if domain == "" {
		return license, nil
	}

	activation, err := m.repo.GetActivation(ctx, license.ID, domain)
	if err != nil {
		return license, err
	}
	if activation == nil || activation.Status != "active" {
		return license, ErrDomainMismatch
	}

	return license, nil
}

// Activate binds a domain to a license. Activating an already active
// domain is idempotent. A new domain is rejected when the activation
// limit is reached, or when the site lock is still in effect and the
// license already has an active domain elsewhere.
func (m *Manager) Activate(ctx context.Context, key, domain, siteURL string) (*database.License, *database.Activation, error) {
	license, err := m.Validate(ctx, key, "")
	if err != nil {
		return license, nil, err
	}

	existing, err := m.repo.GetActivation(ctx, license.ID, domain)
	if err != nil {
		return license, nil, err
	}
	if existing != nil && existing.Status == "active" {
		return license, existing, nil
	}

	if license.ActivationCount >= license.ActivationLimit {
		return license, nil, ErrActivationLimit
	}

	if license.SiteUnlockAt != nil && license.SiteUnlockAt.After(time.Now()) {
		active, err := m.hasOtherActiveDomain(ctx, license.ID, domain)
		if err != nil {
			return license, nil, err
		}
		if active {
			return license, nil, ErrSiteLocked
		}
	}

	activation, err := m.repo.ActivateDomain(ctx, license.ID, domain, siteURL)
	if err != nil {
		return license, nil, fmt.Errorf("failed to activate domain: %w", err)
	}

	m.logger.Info("domain activated",
		"license_key", logging.MaskLicenseKey(key),
		"domain", domain)

	if m.bus != nil {
		m.bus.Publish(events.Event{
			Type: events.DomainActivated,
			Data: map[string]interface{}{"license_id": license.ID, "domain": domain},
		})
	}

	return license, activation, nil
}

// Deactivate releases a domain from a license
func (m *Manager) Deactivate(ctx context.Context, key, domain string) error {
	license, err := m.repo.GetLicenseByKey(ctx, NormalizeKey(key))
	if err != nil {
		return err
	}
	if license == nil {
		return ErrNotFound
	}

	if err := m.repo.DeactivateDomain(ctx, license.ID, domain); err != nil {
		return ErrDomainMismatch
	}

	m.logger.Info("domain deactivated",
		"license_key", logging.MaskLicenseKey(key),
		"domain", domain)
	return nil
}

// ChangePlan moves a license to a new plan. On a downgrade the
// remaining balance is clamped to the new allowance plus extra credits
// and the clamp is recorded in the ledger, in the same transaction as
// the plan update.
func (m *Manager) ChangePlan(ctx context.Context, licenseID, planName string) (*database.License, error) {
	plan, ok := GetPlan(planName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, planName)
	}

	license, err := m.repo.GetLicenseByID(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if license == nil {
		return nil, ErrNotFound
	}

	remaining := license.CreditsRemaining
	cap := plan.CreditsMonthly + license.CreditsExtra
	var clamp *database.LedgerEntry
	if remaining > cap {
		clamp = &database.LedgerEntry{
			LicenseID:    license.ID,
			EntryType:    database.LedgerDowngrade,
			Amount:       cap - remaining,
			BalanceAfter: cap,
			RefType:      "plan_change",
			RefID:        plan.Name,
			Note:         fmt.Sprintf("downgrade from %s to %s", license.Plan, plan.Name),
		}
		remaining = cap
	}

	// Usage is re-derived from the new allowance so the balance
	// identity holds after the change. The new allowance is not
	// retroactive: the balance carries over until the next reset.
	used := plan.CreditsMonthly + license.CreditsExtra - remaining

	if err := m.repo.UpdateLicensePlan(ctx, license.ID, plan.Name, plan.CreditsMonthly, plan.ActivationLimit, remaining, used, clamp); err != nil {
		return nil, fmt.Errorf("failed to change plan: %w", err)
	}

	m.logger.Info("plan changed",
		"license_id", license.ID,
		"from", license.Plan,
		"to", plan.Name)

	return m.repo.GetLicenseByID(ctx, licenseID)
}

// SetStatus updates the license status from the admin API
func (m *Manager) SetStatus(ctx context.Context, licenseID, status string) error {
	switch status {
	case database.LicenseStatusActive, database.LicenseStatusInactive, database.LicenseStatusRevoked:
	default:
		return fmt.Errorf("invalid status: %s", status)
	}
	return m.repo.UpdateLicenseStatus(ctx, licenseID, status)
}

func (m *Manager) hasOtherActiveDomain(ctx context.Context, licenseID, domain string) (bool, error) {
	activations, err := m.repo.ListActivations(ctx, licenseID)
	if err != nil {
		return false, err
	}
	for _, a := range activations {
		if a.Status == "active" && a.Domain != domain {
			return true, nil
		}
	}
	return false, nil
}
