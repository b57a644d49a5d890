package credits

import (
	"context"
	"errors"
	"time"

	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/events"
	"ipv-vendor-gateway/internal/logging"
)

// ErrInsufficientCredits mirrors the repository sentinel so callers
// only import this package
var ErrInsufficientCredits = database.ErrInsufficientCredits

// Repository is the data access surface the manager needs
type Repository interface {
	GetLicenseByID(ctx context.Context, id string) (*database.License, error)
	DeductCredits(ctx context.Context, licenseID string, amount int, refType, refID, note string) (int, error)
	AddExtraCredits(ctx context.Context, licenseID string, amount int, refID, note string) (int, error)
	AdjustCredits(ctx context.Context, licenseID string, amount int, note string) (int, error)
	ResetMonthlyCredits(ctx context.Context, licenseID string, nextReset time.Time) (int, error)
	ListLicensesDueForReset(ctx context.Context, now time.Time) ([]*database.License, error)
	GetLedger(ctx context.Context, licenseID string, limit, offset int) ([]*database.LedgerEntry, error)
}

// Manager meters credit consumption against license balances
type Manager struct {
	repo         Repository
	bus          *events.Bus
	logger       *logging.Logger
	lowThreshold int
}

// NewManager creates a credits manager
func NewManager(repo Repository, bus *events.Bus, logger *logging.Logger, lowThreshold int) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		repo:         repo,
		bus:          bus,
		logger:       logger.WithComponent("credits"),
		lowThreshold: lowThreshold,
	}
}

// Has reports whether the license balance covers the amount
func (m *Manager) Has(ctx context.Context, licenseID string, amount int) (bool, error) {
	license, err := m.repo.GetLicenseByID(ctx, licenseID)
	if err != nil {
		return false, err
	}
	if license == nil {
		return false, errors.New("license not found")
	}
	return license.CreditsRemaining >= amount, nil
}

// Deduct atomically consumes credits and appends the ledger entry.
// Emits low and depleted events after a successful deduction.
func (m *Manager) Deduct(ctx context.Context, licenseID string, amount int, refType, refID, note string) (int, error) {
	remaining, err := m.repo.DeductCredits(ctx, licenseID, amount, refType, refID, note)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			m.logger.Warn("deduction rejected, insufficient credits",
				"license_id", licenseID,
				"amount", amount)
		}
		return 0, err
	}

	m.logger.Debug("credits deducted",
		"license_id", licenseID,
		"amount", amount,
		"remaining", remaining)

	if m.bus != nil {
		switch {
		case remaining == 0:
			m.notify(ctx, licenseID, remaining, true)
		case remaining <= m.lowThreshold:
			m.notify(ctx, licenseID, remaining, false)
		}
	}

	return remaining, nil
}

// AddExtra grants purchased extra credits that survive monthly resets
func (m *Manager) AddExtra(ctx context.Context, licenseID string, amount int, refID, note string) (int, error) {
	remaining, err := m.repo.AddExtraCredits(ctx, licenseID, amount, refID, note)
	if err != nil {
		return 0, err
	}
	m.logger.Info("extra credits granted",
		"license_id", licenseID,
		"amount", amount,
		"remaining", remaining)
	return remaining, nil
}

// Adjust applies a signed manual correction from the admin API
func (m *Manager) Adjust(ctx context.Context, licenseID string, amount int, note string) (int, error) {
	remaining, err := m.repo.AdjustCredits(ctx, licenseID, amount, note)
	if err != nil {
		return 0, err
	}
	m.logger.Info("credits adjusted",
		"license_id", licenseID,
		"amount", amount,
		"remaining", remaining)
	return remaining, nil
}

// Ledger returns the audit trail for a license
func (m *Manager) Ledger(ctx context.Context, licenseID string, limit, offset int) ([]*database.LedgerEntry, error) {
	return m.repo.GetLedger(ctx, licenseID, limit, offset)
}

func (m *Manager) notify(ctx context.Context, licenseID string, remaining int, depleted bool) {
	license, err := m.repo.GetLicenseByID(ctx, licenseID)
	if err != nil || license == nil {
		return
	}
	if depleted {
		m.bus.PublishCreditsDepleted(license.ID, license.CustomerEmail)
	} else {
		m.bus.PublishCreditsLow(license.ID, license.CustomerEmail, remaining)
	}
}
