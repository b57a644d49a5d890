package goldenprompt

import (
	"context"
	"errors"
	"testing"

	"ipv-vendor-gateway/internal/database"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeRepo is an in-memory Repository for manager tests
type fakeRepo struct {
	byLicense map[string]*database.GoldenPrompt
	master    *database.GoldenPrompt
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byLicense: make(map[string]*database.GoldenPrompt)}
}

func (r *fakeRepo) GetGoldenPromptForLicense(ctx context.Context, licenseID string) (*database.GoldenPrompt, error) {
	if p, ok := r.byLicense[licenseID]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeRepo) GetMasterPrompt(ctx context.Context) (*database.GoldenPrompt, error) {
	if r.master == nil {
		return nil, nil
	}
	copied := *r.master
	return &copied, nil
}

func (r *fakeRepo) UpsertGoldenPrompt(ctx context.Context, licenseID, domain, checksum, encryptedPrompt string) (*database.GoldenPrompt, error) {
	p, ok := r.byLicense[licenseID]
	if !ok {
		p = &database.GoldenPrompt{LicenseID: licenseID, Version: 0}
		r.byLicense[licenseID] = p
	}
	p.Domain = domain
	p.Checksum = checksum
	p.EncryptedPrompt = encryptedPrompt
	p.Version++
	copied := *p
	return &copied, nil
}

func (r *fakeRepo) UpsertMasterPrompt(ctx context.Context, checksum, encryptedPrompt string) (*database.GoldenPrompt, error) {
	if r.master == nil {
		r.master = &database.GoldenPrompt{IsMaster: true, Version: 0}
	}
	r.master.Checksum = checksum
	r.master.EncryptedPrompt = encryptedPrompt
	r.master.Version++
	copied := *r.master
	return &copied, nil
}

func newTestManager(t *testing.T, repo Repository) *Manager {
	t.Helper()
	m, err := NewManager(repo, testSecret, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestNewManagerRejectsBadKeySize(t *testing.T) {
	if _, err := NewManager(newFakeRepo(), "short", nil); !errors.Is(err, ErrBadKeySize) {
		t.Errorf("Expected ErrBadKeySize, got %v", err)
	}
}

func TestSaveAndFetchRoundtrip(t *testing.T) {
	repo := newFakeRepo()
	manager := newTestManager(t, repo)
	ctx := context.Background()

	body := "Write an engaging description with chapters and hashtags."
	row, err := manager.Save(ctx, "lic-1", "site.example.com", body)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if row.Version != 1 {
		t.Errorf("Expected version 1 on first save, got %d", row.Version)
	}
	if row.Checksum != Checksum(body) {
		t.Error("Stored checksum does not match plaintext checksum")
	}
	if repo.byLicense["lic-1"].EncryptedPrompt == body {
		t.Fatal("Prompt must not be stored in plaintext")
	}

	prompt, err := manager.Fetch(ctx, "lic-1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if prompt.Body != body {
		t.Errorf("Roundtrip mismatch: got %q", prompt.Body)
	}
	if prompt.IsMaster {
		t.Error("License prompt should not be flagged as master")
	}
}

func TestSaveBumpsVersion(t *testing.T) {
	repo := newFakeRepo()
	manager := newTestManager(t, repo)
	ctx := context.Background()

	if _, err := manager.Save(ctx, "lic-1", "", "first"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	row, err := manager.Save(ctx, "lic-1", "", "second")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if row.Version != 2 {
		t.Errorf("Expected version 2 after update, got %d", row.Version)
	}
}

func TestFetchFallsBackToMaster(t *testing.T) {
	repo := newFakeRepo()
	manager := newTestManager(t, repo)
	ctx := context.Background()

	if _, err := manager.PushMaster(ctx, "master template"); err != nil {
		t.Fatalf("PushMaster failed: %v", err)
	}

	prompt, err := manager.Fetch(ctx, "lic-without-own-prompt")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if prompt.Body != "master template" {
		t.Errorf("Expected master body, got %q", prompt.Body)
	}
	if !prompt.IsMaster {
		t.Error("Expected master flag set")
	}
}

func TestFetchNotFound(t *testing.T) {
	manager := newTestManager(t, newFakeRepo())

	if _, err := manager.Fetch(context.Background(), "lic-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	repo := newFakeRepo()
	manager := newTestManager(t, repo)
	ctx := context.Background()

	body := "the one true prompt"
	if _, err := manager.Save(ctx, "lic-1", "", body); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	match, version, err := manager.Verify(ctx, "lic-1", Checksum(body))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !match || version != 1 {
		t.Errorf("Expected match at version 1, got match=%v version=%d", match, version)
	}

	match, _, err = manager.Verify(ctx, "lic-1", Checksum("tampered copy"))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if match {
		t.Error("Tampered checksum must not match")
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	repo := newFakeRepo()
	manager := newTestManager(t, repo)
	ctx := context.Background()

	if _, err := manager.Save(ctx, "lic-1", "", "secret prompt"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	other, err := NewManager(repo, "ffffffffffffffffffffffffffffffff", nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := other.Fetch(ctx, "lic-1"); err == nil {
		t.Error("Expected decryption with the wrong key to fail")
	}
}

func TestChecksumStable(t *testing.T) {
	a := Checksum("same input")
	b := Checksum("same input")
	if a != b {
		t.Error("Checksum must be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(a))
	}
	if a == Checksum("different input") {
		t.Error("Different inputs must not collide")
	}
}
