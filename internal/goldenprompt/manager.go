// Package goldenprompt stores per-license AI prompt templates
// encrypted at rest and verifies plugin copies by checksum.
package goldenprompt

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/logging"
)

var (
	ErrNotFound   = errors.New("no golden prompt stored")
	ErrBadKeySize = errors.New("prompt secret key must be 32 bytes")
)

// Repository is the data access surface the manager needs
type Repository interface {
	GetGoldenPromptForLicense(ctx context.Context, licenseID string) (*database.GoldenPrompt, error)
	GetMasterPrompt(ctx context.Context) (*database.GoldenPrompt, error)
	UpsertGoldenPrompt(ctx context.Context, licenseID, domain, checksum, encryptedPrompt string) (*database.GoldenPrompt, error)
	UpsertMasterPrompt(ctx context.Context, checksum, encryptedPrompt string) (*database.GoldenPrompt, error)
}

// Manager encrypts, stores, and verifies golden prompts
type Manager struct {
	repo   Repository
	key    []byte
	logger *logging.Logger
}

// NewManager creates a golden prompt manager. The secret must be a
// 32-byte key for AES-256.
func NewManager(repo Repository, secret string, logger *logging.Logger) (*Manager, error) {
	if len(secret) != 32 {
		return nil, ErrBadKeySize
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		repo:   repo,
		key:    []byte(secret),
		logger: logger.WithComponent("goldenprompt"),
	}, nil
}

// Checksum returns the SHA-256 hex digest of a prompt body
func Checksum(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Prompt is a decrypted prompt with its metadata
type Prompt struct {
	Body     string `json:"prompt"`
	Version  int    `json:"version"`
	Checksum string `json:"checksum"`
	IsMaster bool   `json:"is_master"`
}

// Fetch returns the prompt for a license, falling back to the master
// template when the license has none
func (m *Manager) Fetch(ctx context.Context, licenseID string) (*Prompt, error) {
	row, err := m.repo.GetGoldenPromptForLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row, err = m.repo.GetMasterPrompt(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, ErrNotFound
		}
	}

	body, err := m.decrypt(row.EncryptedPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt prompt: %w", err)
	}

	return &Prompt{
		Body:     body,
		Version:  row.Version,
		Checksum: row.Checksum,
		IsMaster: row.IsMaster,
	}, nil
}

// Verify reports whether the submitted checksum matches the stored
// prompt for the license. The plugin calls this before each generation
// to detect local tampering.
func (m *Manager) Verify(ctx context.Context, licenseID, checksum string) (bool, int, error) {
	row, err := m.repo.GetGoldenPromptForLicense(ctx, licenseID)
	if err != nil {
		return false, 0, err
	}
	if row == nil {
		row, err = m.repo.GetMasterPrompt(ctx)
		if err != nil {
			return false, 0, err
		}
		if row == nil {
			return false, 0, ErrNotFound
		}
	}
	return row.Checksum == checksum, row.Version, nil
}

// Save encrypts and stores a prompt for a license
func (m *Manager) Save(ctx context.Context, licenseID, domain, prompt string) (*database.GoldenPrompt, error) {
	encrypted, err := m.encrypt(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt prompt: %w", err)
	}

	row, err := m.repo.UpsertGoldenPrompt(ctx, licenseID, domain, Checksum(prompt), encrypted)
	if err != nil {
		return nil, err
	}

	m.logger.Info("golden prompt saved",
		"license_id", licenseID,
		"version", row.Version)
	return row, nil
}

// PushMaster replaces the master template served to licenses without
// their own prompt
func (m *Manager) PushMaster(ctx context.Context, prompt string) (*database.GoldenPrompt, error) {
	encrypted, err := m.encrypt(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt prompt: %w", err)
	}

	row, err := m.repo.UpsertMasterPrompt(ctx, Checksum(prompt), encrypted)
	if err != nil {
		return nil, err
	}

	m.logger.Info("master prompt pushed", "version", row.Version)
	return row, nil
}

// encrypt seals a prompt with AES-256-GCM, nonce prepended, base64
// encoded for storage
func (m *Manager) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(m.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (m *Manager) decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(m.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(sealed) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
