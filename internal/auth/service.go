package auth

import (
	"context"

	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/logging"
)

// Repository is the data access surface the service needs
type Repository interface {
	GetAdminByUsername(ctx context.Context, username string) (*database.AdminUser, error)
	CreateAdminUser(ctx context.Context, username, passwordHash, role string) (*database.AdminUser, error)
	TouchAdminLogin(ctx context.Context, id string) error
}

// Service handles admin authentication
type Service struct {
	repo      Repository
	jwt       *JWTManager
	passwords *PasswordManager
	logger    *logging.Logger
}

// NewService creates an auth service
func NewService(repo Repository, jwt *JWTManager, passwords *PasswordManager, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:      repo,
		jwt:       jwt,
		passwords: passwords,
		logger:    logger.WithComponent("auth"),
	}
}

// Login verifies credentials and issues a token
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.repo.GetAdminByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.passwords.VerifyPassword(password, user.PasswordHash) {
		s.logger.Warn("failed admin login attempt", "username", username)
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.TouchAdminLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to record login time", "error", err)
	}

	return s.jwt.GenerateTokenPair(AdminClaims{
		AdminID:  user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
}

// CreateAdmin provisions an admin account with a hashed password
func (s *Service) CreateAdmin(ctx context.Context, username, password, role string) (*database.AdminUser, error) {
	if err := s.passwords.ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.HashPassword(password)
	if err != nil {
		return nil, err
	}

	return s.repo.CreateAdminUser(ctx, username, hash, role)
}
