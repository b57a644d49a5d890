package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"ipv-vendor-gateway/internal/database"
)

func TestPasswordHashAndVerify(t *testing.T) {
	// Min cost keeps the test fast
	pm := NewPasswordManager(4, 8)

	hash, err := pm.HashPassword("Sup3rSecret!")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "Sup3rSecret!" {
		t.Fatal("Hash must not equal the plaintext")
	}
	if !pm.VerifyPassword("Sup3rSecret!", hash) {
		t.Error("Correct password should verify")
	}
	if pm.VerifyPassword("WrongPassword1!", hash) {
		t.Error("Wrong password must not verify")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	pm := NewPasswordManager(4, 8)

	testCases := []struct {
		name     string
		password string
		valid    bool
	}{
		{"three classes", "Abcdefg1", true},
		{"all four classes", "Abcdef1!", true},
		{"lower and digits only", "abcdefg1", false},
		{"too short", "Ab1!", false},
		{"lower and special", "abcdefg!", false},
		{"upper lower special", "Abcdefg!", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := pm.ValidatePasswordStrength(tc.password)
			if tc.valid && err != nil {
				t.Errorf("Expected %q to be accepted, got %v", tc.password, err)
			}
			if !tc.valid && err == nil {
				t.Errorf("Expected %q to be rejected", tc.password)
			}
		})
	}
}

func TestJWTRoundtrip(t *testing.T) {
	jm := NewJWTManager("test-secret", time.Hour)

	token, err := jm.GenerateAccessToken(AdminClaims{AdminID: "admin-1", Username: "ops", Role: "admin"})
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := jm.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.AdminID != "admin-1" || claims.Username != "ops" || claims.Role != "admin" {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	jm := NewJWTManager("secret-a", time.Hour)
	other := NewJWTManager("secret-b", time.Hour)

	token, err := jm.GenerateAccessToken(AdminClaims{AdminID: "admin-1"})
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if _, err := other.ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	jm := NewJWTManager("test-secret", -time.Minute)

	token, err := jm.GenerateAccessToken(AdminClaims{AdminID: "admin-1"})
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if _, err := jm.ValidateAccessToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTRejectsGarbage(t *testing.T) {
	jm := NewJWTManager("test-secret", time.Hour)
	if _, err := jm.ValidateAccessToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

// fakeAdminRepo is an in-memory Repository for service tests
type fakeAdminRepo struct {
	users   map[string]*database.AdminUser
	touched []string
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{users: make(map[string]*database.AdminUser)}
}

func (r *fakeAdminRepo) GetAdminByUsername(ctx context.Context, username string) (*database.AdminUser, error) {
	if u, ok := r.users[username]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeAdminRepo) CreateAdminUser(ctx context.Context, username, passwordHash, role string) (*database.AdminUser, error) {
	u := &database.AdminUser{
		ID:           "admin-" + username,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
	}
	r.users[username] = u
	return u, nil
}

func (r *fakeAdminRepo) TouchAdminLogin(ctx context.Context, id string) error {
	r.touched = append(r.touched, id)
	return nil
}

func TestLogin(t *testing.T) {
	repo := newFakeAdminRepo()
	jm := NewJWTManager("test-secret", time.Hour)
	pm := NewPasswordManager(4, 8)
	service := NewService(repo, jm, pm, nil)
	ctx := context.Background()

	if _, err := service.CreateAdmin(ctx, "ops", "Sup3rSecret!", "admin"); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	pair, err := service.Login(ctx, "ops", "Sup3rSecret!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if pair.TokenType != "Bearer" || pair.AccessToken == "" {
		t.Errorf("Unexpected token pair %+v", pair)
	}
	if len(repo.touched) != 1 {
		t.Errorf("Expected last login recorded, got %v", repo.touched)
	}

	claims, err := jm.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("Issued token failed validation: %v", err)
	}
	if claims.Username != "ops" {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := newFakeAdminRepo()
	service := NewService(repo, NewJWTManager("test-secret", time.Hour), NewPasswordManager(4, 8), nil)
	ctx := context.Background()

	if _, err := service.Login(ctx, "ghost", "whatever1A!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	if _, err := service.CreateAdmin(ctx, "ops", "Sup3rSecret!", "admin"); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}
	if _, err := service.Login(ctx, "ops", "WrongPassword1!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for wrong password, got %v", err)
	}
}

func TestCreateAdminEnforcesStrength(t *testing.T) {
	service := NewService(newFakeAdminRepo(), NewJWTManager("test-secret", time.Hour), NewPasswordManager(4, 8), nil)

	if _, err := service.CreateAdmin(context.Background(), "ops", "weakpass", "admin"); err == nil {
		t.Error("Expected weak password to be rejected")
	}
}
