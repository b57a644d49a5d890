package credits

import (
	"context"
	"errors"
	"testing"
	"time"

	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/events"
)

// fakeRepo is an in-memory Repository for manager tests
type fakeRepo struct {
	licenses map[string]*database.License
	ledger   []*database.LedgerEntry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{licenses: make(map[string]*database.License)}
}

func (r *fakeRepo) GetLicenseByID(ctx context.Context, id string) (*database.License, error) {
	l, ok := r.licenses[id]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (r *fakeRepo) DeductCredits(ctx context.Context, licenseID string, amount int, refType, refID, note string) (int, error) {
	l, ok := r.licenses[licenseID]
	if !ok {
		return 0, errors.New("not found")
	}
	if l.CreditsRemaining < amount {
		return 0, database.ErrInsufficientCredits
	}
	l.CreditsRemaining -= amount
	l.CreditsUsedMonth += amount
	r.ledger = append(r.ledger, &database.LedgerEntry{
		LicenseID:    licenseID,
		EntryType:    database.LedgerConsume,
		Amount:       -amount,
		BalanceAfter: l.CreditsRemaining,
		RefType:      refType,
		RefID:        refID,
		Note:         note,
	})
	return l.CreditsRemaining, nil
}

func (r *fakeRepo) AddExtraCredits(ctx context.Context, licenseID string, amount int, refID, note string) (int, error) {
	l, ok := r.licenses[licenseID]
	if !ok {
		return 0, errors.New("not found")
	}
	l.CreditsExtra += amount
	l.CreditsRemaining += amount
	r.ledger = append(r.ledger, &database.LedgerEntry{
		LicenseID:    licenseID,
		EntryType:    database.LedgerGrantExtra,
		Amount:       amount,
		BalanceAfter: l.CreditsRemaining,
	})
	return l.CreditsRemaining, nil
}

func (r *fakeRepo) AdjustCredits(ctx context.Context, licenseID string, amount int, note string) (int, error) {
	l, ok := r.licenses[licenseID]
	if !ok {
		return 0, errors.New("not found")
	}
	effective := amount
	if effective < -l.CreditsRemaining {
		effective = -l.CreditsRemaining
	}
	if effective >= 0 {
		l.CreditsExtra += effective
	} else {
		l.CreditsUsedMonth -= effective
	}
	l.CreditsRemaining += effective
	r.ledger = append(r.ledger, &database.LedgerEntry{
		LicenseID:    licenseID,
		EntryType:    database.LedgerAdjust,
		Amount:       effective,
		BalanceAfter: l.CreditsRemaining,
		Note:         note,
	})
	return l.CreditsRemaining, nil
}

func (r *fakeRepo) ResetMonthlyCredits(ctx context.Context, licenseID string, nextReset time.Time) (int, error) {
	l, ok := r.licenses[licenseID]
	if !ok {
		return 0, errors.New("not found")
	}
	l.CreditsRemaining = l.CreditsMonthly + l.CreditsExtra
	l.CreditsUsedMonth = 0
	l.CreditsResetDate = &nextReset
	return l.CreditsRemaining, nil
}

func (r *fakeRepo) ListLicensesDueForReset(ctx context.Context, now time.Time) ([]*database.License, error) {
	out := []*database.License{}
	for _, l := range r.licenses {
		if l.Status == database.LicenseStatusActive && l.CreditsResetDate != nil && !l.CreditsResetDate.After(now) {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetLedger(ctx context.Context, licenseID string, limit, offset int) ([]*database.LedgerEntry, error) {
	out := []*database.LedgerEntry{}
	for _, e := range r.ledger {
		if e.LicenseID == licenseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func seedLicense(repo *fakeRepo, id string, remaining int) *database.License {
	l := &database.License{
		ID:               id,
		Status:           database.LicenseStatusActive,
		CustomerEmail:    "owner@example.com",
		CreditsMonthly:   100,
		CreditsRemaining: remaining,
	}
	repo.licenses[id] = l
	return l
}

func waitForEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
		return events.Event{}
	}
}

func TestDeductSuccess(t *testing.T) {
	repo := newFakeRepo()
	seedLicense(repo, "lic-1", 50)
	manager := NewManager(repo, nil, nil, 10)

	remaining, err := manager.Deduct(context.Background(), "lic-1", 1, "transcript", "vid", "")
	if err != nil {
		t.Fatalf("Deduct failed: %v", err)
	}
	if remaining != 49 {
		t.Errorf("Expected 49 remaining, got %d", remaining)
	}
	if len(repo.ledger) != 1 {
		t.Fatalf("Expected one ledger entry, got %d", len(repo.ledger))
	}
	if repo.ledger[0].Amount != -1 || repo.ledger[0].EntryType != database.LedgerConsume {
		t.Errorf("Unexpected ledger entry %+v", repo.ledger[0])
	}
}

func TestDeductInsufficient(t *testing.T) {
	repo := newFakeRepo()
	seedLicense(repo, "lic-1", 0)
	manager := NewManager(repo, nil, nil, 10)

	_, err := manager.Deduct(context.Background(), "lic-1", 1, "transcript", "vid", "")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Errorf("Expected ErrInsufficientCredits, got %v", err)
	}
	if len(repo.ledger) != 0 {
		t.Errorf("Expected no ledger entry on rejected deduction, got %d", len(repo.ledger))
	}
}

func TestDeductEmitsLowCreditsEvent(t *testing.T) {
	repo := newFakeRepo()
	seedLicense(repo, "lic-1", 11)
	bus := events.NewBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(events.CreditsLow, func(e events.Event) { received <- e })
	manager := NewManager(repo, bus, nil, 10)

	if _, err := manager.Deduct(context.Background(), "lic-1", 1, "transcript", "vid", ""); err != nil {
		t.Fatalf("Deduct failed: %v", err)
	}

	e := waitForEvent(t, received)
	if e.Data["license_id"] != "lic-1" {
		t.Errorf("Unexpected event payload %+v", e.Data)
	}
	if e.Data["remaining"] != 10 {
		t.Errorf("Expected remaining 10 in event, got %v", e.Data["remaining"])
	}
}

func TestDeductEmitsDepletedEvent(t *testing.T) {
	repo := newFakeRepo()
	seedLicense(repo, "lic-1", 1)
	bus := events.NewBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(events.CreditsDepleted, func(e events.Event) { received <- e })
	manager := NewManager(repo, bus, nil, 10)

	if _, err := manager.Deduct(context.Background(), "lic-1", 1, "transcript", "vid", ""); err != nil {
		t.Fatalf("Deduct failed: %v", err)
	}

	e := waitForEvent(t, received)
	if e.Data["customer_email"] != "owner@example.com" {
		t.Errorf("Expected customer email in event, got %+v", e.Data)
	}
}

func TestAdjustAndExtra(t *testing.T) {
	repo := newFakeRepo()
	seedLicense(repo, "lic-1", 10)
	manager := NewManager(repo, nil, nil, 5)
	ctx := context.Background()

	remaining, err := manager.AddExtra(ctx, "lic-1", 25, "order-42", "purchase")
	if err != nil {
		t.Fatalf("AddExtra failed: %v", err)
	}
	if remaining != 35 {
		t.Errorf("Expected 35 remaining after extra grant, got %d", remaining)
	}

	remaining, err = manager.Adjust(ctx, "lic-1", -100, "correction")
	if err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected adjustment clamped at 0, got %d", remaining)
	}

	entries, err := manager.Ledger(ctx, "lic-1", 10, 0)
	if err != nil {
		t.Fatalf("Ledger failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 ledger entries, got %d", len(entries))
	}
}

// Adjustments book against extra credits or usage so the balance
// identity (remaining = monthly + extra - used) survives them
func TestAdjustKeepsBalanceIdentity(t *testing.T) {
	repo := newFakeRepo()
	l := seedLicense(repo, "lic-1", 60)
	l.CreditsUsedMonth = 40
	manager := NewManager(repo, nil, nil, 5)
	ctx := context.Background()

	if _, err := manager.Adjust(ctx, "lic-1", 15, "goodwill"); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	if l.CreditsExtra != 15 || l.CreditsRemaining != 75 {
		t.Errorf("Expected positive adjustment booked as extra credits, got %+v", l)
	}

	if _, err := manager.Adjust(ctx, "lic-1", -100, "correction"); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	if l.CreditsRemaining != 0 {
		t.Errorf("Expected balance clamped at 0, got %d", l.CreditsRemaining)
	}
	if l.CreditsRemaining != l.CreditsMonthly+l.CreditsExtra-l.CreditsUsedMonth {
		t.Errorf("Balance identity broken: %+v", l)
	}
	// Clamping limits the booked amount to the available balance
	if last := repo.ledger[len(repo.ledger)-1]; last.Amount != -75 {
		t.Errorf("Expected clamped ledger amount -75, got %d", last.Amount)
	}
}

func TestHas(t *testing.T) {
	repo := newFakeRepo()
	seedLicense(repo, "lic-1", 3)
	manager := NewManager(repo, nil, nil, 5)
	ctx := context.Background()

	ok, err := manager.Has(ctx, "lic-1", 3)
	if err != nil || !ok {
		t.Errorf("Expected Has to pass with exact balance, got %v %v", ok, err)
	}
	ok, err = manager.Has(ctx, "lic-1", 4)
	if err != nil || ok {
		t.Errorf("Expected Has to fail above balance, got %v %v", ok, err)
	}
}
