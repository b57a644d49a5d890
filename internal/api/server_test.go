package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ipv-vendor-gateway/config"
	"ipv-vendor-gateway/internal/auth"
	"ipv-vendor-gateway/internal/credits"
	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/gateway"
	"ipv-vendor-gateway/internal/goldenprompt"
	"ipv-vendor-gateway/internal/license"
	"ipv-vendor-gateway/internal/ratelimit"
)

// testStore is an in-memory backing store implementing the repository
// interfaces the managers depend on
type testStore struct {
	licenses    map[string]*database.License
	activations map[string]*database.Activation
	prompts     map[string]*database.GoldenPrompt
	master      *database.GoldenPrompt
	admins      map[string]*database.AdminUser
	ledger      []*database.LedgerEntry
	nextID      int
}

func newTestStore() *testStore {
	return &testStore{
		licenses:    make(map[string]*database.License),
		activations: make(map[string]*database.Activation),
		prompts:     make(map[string]*database.GoldenPrompt),
		admins:      make(map[string]*database.AdminUser),
	}
}

func (s *testStore) CreateLicense(ctx context.Context, l *database.License) error {
	s.nextID++
	l.ID = fmt.Sprintf("lic-%d", s.nextID)
	s.licenses[l.ID] = l
	return nil
}

func (s *testStore) GetLicenseByKey(ctx context.Context, key string) (*database.License, error) {
	for _, l := range s.licenses {
		if l.Key == key {
			copied := *l
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *testStore) GetLicenseByID(ctx context.Context, id string) (*database.License, error) {
	l, ok := s.licenses[id]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (s *testStore) ListLicenses(ctx context.Context, limit, offset int) ([]*database.License, error) {
	out := []*database.License{}
	for _, l := range s.licenses {
		out = append(out, l)
	}
	return out, nil
}

func (s *testStore) UpdateLicenseStatus(ctx context.Context, id, status string) error {
	if l, ok := s.licenses[id]; ok {
		l.Status = status
		return nil
	}
	return errors.New("not found")
}

func (s *testStore) UpdateLicensePlan(ctx context.Context, id, plan string, creditsMonthly, activationLimit, creditsRemaining, creditsUsedMonth int, clamp *database.LedgerEntry) error {
	l, ok := s.licenses[id]
	if !ok {
		return errors.New("not found")
	}
	l.Plan = plan
	l.CreditsMonthly = creditsMonthly
	l.ActivationLimit = activationLimit
	l.CreditsRemaining = creditsRemaining
	l.CreditsUsedMonth = creditsUsedMonth
	if clamp != nil {
		s.ledger = append(s.ledger, clamp)
	}
	return nil
}

func (s *testStore) GetActivation(ctx context.Context, licenseID, domain string) (*database.Activation, error) {
	a, ok := s.activations[licenseID+"|"+domain]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (s *testStore) ListActivations(ctx context.Context, licenseID string) ([]*database.Activation, error) {
	out := []*database.Activation{}
	for _, a := range s.activations {
		if a.LicenseID == licenseID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *testStore) ActivateDomain(ctx context.Context, licenseID, domain, siteURL string) (*database.Activation, error) {
	a := &database.Activation{LicenseID: licenseID, Domain: domain, SiteURL: siteURL, Status: "active"}
	s.activations[licenseID+"|"+domain] = a
	if l, ok := s.licenses[licenseID]; ok {
		l.ActivationCount++
	}
	return a, nil
}

func (s *testStore) DeactivateDomain(ctx context.Context, licenseID, domain string) error {
	a, ok := s.activations[licenseID+"|"+domain]
	if !ok || a.Status != "active" {
		return errors.New("no active activation")
	}
	a.Status = "inactive"
	return nil
}

func (s *testStore) ResetMonthlyCredits(ctx context.Context, licenseID string, nextReset time.Time) (int, error) {
	l, ok := s.licenses[licenseID]
	if !ok {
		return 0, errors.New("not found")
	}
	l.CreditsRemaining = l.CreditsMonthly + l.CreditsExtra
	l.CreditsUsedMonth = 0
	l.CreditsResetDate = &nextReset
	return l.CreditsRemaining, nil
}

func (s *testStore) DeductCredits(ctx context.Context, licenseID string, amount int, refType, refID, note string) (int, error) {
	l, ok := s.licenses[licenseID]
	if !ok {
		return 0, errors.New("not found")
	}
	if l.CreditsRemaining < amount {
		return 0, database.ErrInsufficientCredits
	}
	l.CreditsRemaining -= amount
	l.CreditsUsedMonth += amount
	s.ledger = append(s.ledger, &database.LedgerEntry{
		LicenseID: licenseID, EntryType: database.LedgerConsume,
		Amount: -amount, BalanceAfter: l.CreditsRemaining, RefType: refType, RefID: refID,
	})
	return l.CreditsRemaining, nil
}

func (s *testStore) AddExtraCredits(ctx context.Context, licenseID string, amount int, refID, note string) (int, error) {
	l, ok := s.licenses[licenseID]
	if !ok {
		return 0, errors.New("not found")
	}
	l.CreditsExtra += amount
	l.CreditsRemaining += amount
	return l.CreditsRemaining, nil
}

func (s *testStore) AdjustCredits(ctx context.Context, licenseID string, amount int, note string) (int, error) {
	l, ok := s.licenses[licenseID]
	if !ok {
		return 0, errors.New("not found")
	}
	if amount < -l.CreditsRemaining {
		amount = -l.CreditsRemaining
	}
	if amount >= 0 {
		l.CreditsExtra += amount
	} else {
		l.CreditsUsedMonth -= amount
	}
	l.CreditsRemaining += amount
	return l.CreditsRemaining, nil
}

func (s *testStore) ListLicensesDueForReset(ctx context.Context, now time.Time) ([]*database.License, error) {
	return nil, nil
}

func (s *testStore) GetLedger(ctx context.Context, licenseID string, limit, offset int) ([]*database.LedgerEntry, error) {
	out := []*database.LedgerEntry{}
	for _, e := range s.ledger {
		if e.LicenseID == licenseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *testStore) GetGoldenPromptForLicense(ctx context.Context, licenseID string) (*database.GoldenPrompt, error) {
	if p, ok := s.prompts[licenseID]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (s *testStore) GetMasterPrompt(ctx context.Context) (*database.GoldenPrompt, error) {
	if s.master == nil {
		return nil, nil
	}
	copied := *s.master
	return &copied, nil
}

func (s *testStore) UpsertGoldenPrompt(ctx context.Context, licenseID, domain, checksum, encryptedPrompt string) (*database.GoldenPrompt, error) {
	p, ok := s.prompts[licenseID]
	if !ok {
		p = &database.GoldenPrompt{LicenseID: licenseID}
		s.prompts[licenseID] = p
	}
	p.Domain = domain
	p.Checksum = checksum
	p.EncryptedPrompt = encryptedPrompt
	p.Version++
	copied := *p
	return &copied, nil
}

func (s *testStore) UpsertMasterPrompt(ctx context.Context, checksum, encryptedPrompt string) (*database.GoldenPrompt, error) {
	if s.master == nil {
		s.master = &database.GoldenPrompt{IsMaster: true}
	}
	s.master.Checksum = checksum
	s.master.EncryptedPrompt = encryptedPrompt
	s.master.Version++
	copied := *s.master
	return &copied, nil
}

func (s *testStore) GetAdminByUsername(ctx context.Context, username string) (*database.AdminUser, error) {
	if u, ok := s.admins[username]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (s *testStore) CreateAdminUser(ctx context.Context, username, passwordHash, role string) (*database.AdminUser, error) {
	u := &database.AdminUser{ID: "admin-" + username, Username: username, PasswordHash: passwordHash, Role: role}
	s.admins[username] = u
	return u, nil
}

func (s *testStore) TouchAdminLogin(ctx context.Context, id string) error { return nil }

type testKeys struct{ keys []string }

func (k testKeys) GetProviderKeys(ctx context.Context, provider string) ([]string, error) {
	return k.keys, nil
}

// testEnv bundles a wired server and its collaborators
type testEnv struct {
	store    *testStore
	server   *Server
	upstream *httptest.Server
}

var testTranscript = strings.Repeat("a perfectly ordinary transcript sentence goes here. ", 3)

func newTestEnv(t *testing.T, maxRequests int) *testEnv {
	t.Helper()

	store := newTestStore()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"content": testTranscript, "lang": "en"})
	}))
	t.Cleanup(upstream.Close)

	transcripts := gateway.NewTranscriptClient(upstream.URL, 5*time.Second, time.Hour,
		testKeys{keys: []string{"key-1"}}, nil, nil, zerolog.Nop())
	transcripts.BackoffBase = time.Millisecond

	prompts, err := goldenprompt.NewManager(store, "0123456789abcdef0123456789abcdef", nil)
	if err != nil {
		t.Fatalf("Failed to build prompt manager: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	passwordManager := auth.NewPasswordManager(4, 8)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), maxRequests, 3600, nil)

	server := NewServer(config.ServerConfig{
		ProductionMode:  true,
		MaxRequestBytes: 1 << 20,
		BlockBots:       true,
	}, Deps{
		Licenses:    license.NewManager(store, nil, nil),
		Credits:     credits.NewManager(store, nil, nil, 10),
		Limiter:     limiter,
		Transcripts: transcripts,
		Prompts:     prompts,
		AuthService: auth.NewService(store, jwtManager, passwordManager, nil),
		JWTManager:  jwtManager,
	})

	return &testEnv{store: store, server: server, upstream: upstream}
}

func (e *testEnv) seedLicense(key string, remaining int) *database.License {
	l := &database.License{
		Key:              key,
		Status:           database.LicenseStatusActive,
		Plan:             "starter",
		CreditsMonthly:   100,
		CreditsRemaining: remaining,
		ActivationLimit:  1,
	}
	e.store.CreateLicense(context.Background(), l)
	return l
}

func (e *testEnv) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestTranscriptEndToEnd(t *testing.T) {
	env := newTestEnv(t, 100)
	env.seedLicense("AAAA-BBBB-CCCC-DDDD", 5)

	w := env.do(http.MethodPost, "/ipv-vendor/v1/transcript",
		map[string]string{"video_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		map[string]string{"X-License-Key": "AAAA-BBBB-CCCC-DDDD"})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["video_id"] != "dQw4w9WgXcQ" {
		t.Errorf("Unexpected video_id %v", body["video_id"])
	}
	if body["text"] != testTranscript {
		t.Error("Unexpected transcript body")
	}
	if body["cached"] != false {
		t.Errorf("Expected cached false, got %v", body["cached"])
	}
	if body["credits_remaining"] != float64(4) {
		t.Errorf("Expected 4 credits remaining, got %v", body["credits_remaining"])
	}
	if w.Header().Get("X-RateLimit-Remaining") == "" {
		t.Error("Expected rate limit headers on gateway responses")
	}
}

func TestTranscriptRequiresLicenseKey(t *testing.T) {
	env := newTestEnv(t, 100)

	w := env.do(http.MethodPost, "/ipv-vendor/v1/transcript",
		map[string]string{"video_id": "dQw4w9WgXcQ"}, nil)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
	if decodeBody(t, w)["error"] != "missing_license" {
		t.Errorf("Unexpected error body %s", w.Body.String())
	}
}

func TestTranscriptRejectsInactiveLicense(t *testing.T) {
	env := newTestEnv(t, 100)
	l := env.seedLicense("AAAA-BBBB-CCCC-DDDD", 5)
	l.Status = database.LicenseStatusRevoked

	w := env.do(http.MethodPost, "/ipv-vendor/v1/transcript",
		map[string]string{"video_id": "dQw4w9WgXcQ"},
		map[string]string{"X-License-Key": "AAAA-BBBB-CCCC-DDDD"})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["error"] != "license_inactive" {
		t.Errorf("Unexpected error body %s", w.Body.String())
	}
}

func TestTranscriptInsufficientCredits(t *testing.T) {
	env := newTestEnv(t, 100)
	env.seedLicense("AAAA-BBBB-CCCC-DDDD", 0)

	w := env.do(http.MethodPost, "/ipv-vendor/v1/transcript",
		map[string]string{"video_id": "dQw4w9WgXcQ"},
		map[string]string{"X-License-Key": "AAAA-BBBB-CCCC-DDDD"})

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected 402, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != "insufficient_credits" {
		t.Errorf("Unexpected error body %s", w.Body.String())
	}
	if body["retry"] != false {
		t.Error("Insufficient credits must not be retryable")
	}
}

func TestTranscriptInvalidVideoURL(t *testing.T) {
	env := newTestEnv(t, 100)
	env.seedLicense("AAAA-BBBB-CCCC-DDDD", 5)

	w := env.do(http.MethodPost, "/ipv-vendor/v1/transcript",
		map[string]string{"video_url": "https://example.com/not-a-video"},
		map[string]string{"X-License-Key": "AAAA-BBBB-CCCC-DDDD"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if decodeBody(t, w)["error"] != "invalid_video_url" {
		t.Errorf("Unexpected error body %s", w.Body.String())
	}
}

func TestDescriptionRequiresTranscript(t *testing.T) {
	env := newTestEnv(t, 100)
	env.seedLicense("AAAA-BBBB-CCCC-DDDD", 5)

	w := env.do(http.MethodPost, "/ipv-vendor/v1/ai/description",
		map[string]string{"video_id": "dQw4w9WgXcQ"},
		map[string]string{"X-License-Key": "AAAA-BBBB-CCCC-DDDD"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without a transcript, got %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["error"] != "missing_transcript" {
		t.Errorf("Unexpected error body %s", w.Body.String())
	}
}

func TestRateLimitExceeded(t *testing.T) {
	env := newTestEnv(t, 1)
	env.seedLicense("AAAA-BBBB-CCCC-DDDD", 5)
	headers := map[string]string{"X-License-Key": "AAAA-BBBB-CCCC-DDDD"}
	payload := map[string]string{"video_id": "dQw4w9WgXcQ"}

	if w := env.do(http.MethodPost, "/ipv-vendor/v1/transcript", payload, headers); w.Code != http.StatusOK {
		t.Fatalf("First request should pass, got %d", w.Code)
	}

	w := env.do(http.MethodPost, "/ipv-vendor/v1/transcript", payload, headers)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "rate_limit_exceeded" || body["retry"] != true {
		t.Errorf("Unexpected error body %s", w.Body.String())
	}
}

func TestValidateLicenseWithBodyCredentials(t *testing.T) {
	env := newTestEnv(t, 100)
	l := env.seedLicense("AAAA-BBBB-CCCC-DDDD", 42)
	env.store.ActivateDomain(context.Background(), l.ID, "site.example.com", "")

	w := env.do(http.MethodPost, "/ipv-vendor/v1/license/validate",
		map[string]string{"license_key": "AAAA-BBBB-CCCC-DDDD", "domain": "site.example.com"}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["valid"] != true {
		t.Errorf("Expected valid true, got %v", body["valid"])
	}
	lic := body["license"].(map[string]interface{})
	if lic["credits_remaining"] != float64(42) {
		t.Errorf("Unexpected license view %v", lic)
	}
}

// Missing parameters on the lifecycle endpoints are a 400, not a 401.
// Only a key that fails validation earns a 401.
func TestLifecycleEndpointsRejectMissingParams(t *testing.T) {
	env := newTestEnv(t, 100)
	env.seedLicense("AAAA-BBBB-CCCC-DDDD", 5)

	w := env.do(http.MethodPost, "/ipv-vendor/v1/license/validate",
		map[string]string{"domain": "site.example.com"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for missing key, got %d", w.Code)
	}
	if decodeBody(t, w)["error"] != "missing_license" {
		t.Errorf("Unexpected error body %s", w.Body.String())
	}

	w = env.do(http.MethodPost, "/ipv-vendor/v1/license/validate",
		map[string]string{"license_key": "AAAA-BBBB-CCCC-DDDD"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for missing domain, got %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["error"] != "missing_domain" {
		t.Errorf("Unexpected error body %s", w.Body.String())
	}

	w = env.do(http.MethodPost, "/ipv-vendor/v1/license/deactivate",
		map[string]string{"domain": "site.example.com"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for missing key on deactivate, got %d", w.Code)
	}
	if decodeBody(t, w)["error"] != "missing_license" {
		t.Errorf("Unexpected error body %s", w.Body.String())
	}
}

func TestActivateThenValidateWithSiteHeader(t *testing.T) {
	env := newTestEnv(t, 100)
	env.seedLicense("AAAA-BBBB-CCCC-DDDD", 5)

	w := env.do(http.MethodPost, "/ipv-vendor/v1/license/activate",
		map[string]string{"license_key": "AAAA-BBBB-CCCC-DDDD", "domain": "site.example.com"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Activation failed: %d %s", w.Code, w.Body.String())
	}

	// The site URL header's hostname is the domain used for validation
	w = env.do(http.MethodPost, "/ipv-vendor/v1/license/validate", nil, map[string]string{
		"X-License-Key": "AAAA-BBBB-CCCC-DDDD",
		"X-Site-URL":    "https://site.example.com/wp-admin",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected validation for activated domain to pass, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/ipv-vendor/v1/license/validate", nil, map[string]string{
		"X-License-Key": "AAAA-BBBB-CCCC-DDDD",
		"X-Site-URL":    "https://other.example.com",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for foreign domain, got %d", w.Code)
	}
	if decodeBody(t, w)["error"] != "domain_mismatch" {
		t.Errorf("Unexpected error body %s", w.Body.String())
	}
}

func TestBlockedUserAgent(t *testing.T) {
	env := newTestEnv(t, 100)

	w := env.do(http.MethodPost, "/ipv-vendor/v1/license/validate", nil,
		map[string]string{"User-Agent": "curl/8.4.0"})

	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for blocked agent, got %d", w.Code)
	}
	if decodeBody(t, w)["error"] != "request_blocked" {
		t.Errorf("Unexpected error body %s", w.Body.String())
	}
}

func TestSQLInjectionProbeBlocked(t *testing.T) {
	env := newTestEnv(t, 100)

	w := env.do(http.MethodGet, "/ipv-vendor/v1/health?q=1+union+select+password", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for injection probe, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, 100)

	w := env.do(http.MethodGet, "/ipv-vendor/v1/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if decodeBody(t, w)["status"] != "ok" {
		t.Errorf("Unexpected health body %s", w.Body.String())
	}
	if w.Header().Get("X-Trace-ID") == "" {
		t.Error("Expected a trace ID on every response")
	}
}

func TestGoldenPromptVerifyAndFetch(t *testing.T) {
	env := newTestEnv(t, 100)
	lic := env.seedLicense("AAAA-BBBB-CCCC-DDDD", 5)
	headers := map[string]string{"X-License-Key": "AAAA-BBBB-CCCC-DDDD"}

	prompts, _ := goldenprompt.NewManager(env.store, "0123456789abcdef0123456789abcdef", nil)
	if _, err := prompts.Save(context.Background(), lic.ID, "", "the golden prompt"); err != nil {
		t.Fatalf("Failed to seed prompt: %v", err)
	}

	w := env.do(http.MethodPost, "/ipv-vendor/v1/golden-prompt/verify",
		map[string]string{"checksum": goldenprompt.Checksum("the golden prompt")}, headers)
	if w.Code != http.StatusOK {
		t.Fatalf("Verify failed: %d %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["match"] != true || body["version"] != float64(1) {
		t.Errorf("Unexpected verify response %s", w.Body.String())
	}

	w = env.do(http.MethodPost, "/ipv-vendor/v1/golden-prompt/fetch", nil, headers)
	if w.Code != http.StatusOK {
		t.Fatalf("Fetch failed: %d %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["prompt"] != "the golden prompt" {
		t.Errorf("Unexpected fetch response %s", w.Body.String())
	}
}

func TestAdminFlow(t *testing.T) {
	env := newTestEnv(t, 100)

	// Admin routes reject anonymous requests
	w := env.do(http.MethodGet, "/ipv-vendor/v1/admin/licenses", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}

	pm := auth.NewPasswordManager(4, 8)
	hash, _ := pm.HashPassword("Sup3rSecret!")
	env.store.admins["ops"] = &database.AdminUser{ID: "admin-ops", Username: "ops", PasswordHash: hash, Role: "admin"}

	w = env.do(http.MethodPost, "/ipv-vendor/v1/admin/login",
		map[string]string{"username": "ops", "password": "Sup3rSecret!"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Login failed: %d %s", w.Code, w.Body.String())
	}
	token, _ := decodeBody(t, w)["access_token"].(string)
	if token == "" {
		t.Fatal("Expected an access token")
	}
	authed := map[string]string{"Authorization": "Bearer " + token}

	// Create a license through the admin API
	w = env.do(http.MethodPost, "/ipv-vendor/v1/admin/licenses",
		map[string]string{"plan": "professional"}, authed)
	if w.Code != http.StatusCreated {
		t.Fatalf("Create license failed: %d %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	if created["credits_remaining"] != float64(500) {
		t.Errorf("Expected 500 credits on professional plan, got %v", created["credits_remaining"])
	}
	licenseID, _ := created["id"].(string)
	if licenseID == "" {
		t.Fatal("Expected created license to carry an id")
	}

	w = env.do(http.MethodPatch, "/ipv-vendor/v1/admin/licenses/"+licenseID+"/status",
		map[string]string{"status": "inactive"}, authed)
	if w.Code != http.StatusOK {
		t.Fatalf("Status change failed: %d %s", w.Code, w.Body.String())
	}
	if env.store.licenses[licenseID].Status != "inactive" {
		t.Errorf("Expected status persisted, got %s", env.store.licenses[licenseID].Status)
	}

	// Bad login is rejected
	w = env.do(http.MethodPost, "/ipv-vendor/v1/admin/login",
		map[string]string{"username": "ops", "password": "wrong"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for bad login, got %d", w.Code)
	}
}
