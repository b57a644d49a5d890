package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig    ServerConfig    `json:"server"`
	DatabaseConfig  DatabaseConfig  `json:"database"`
	RedisConfig     RedisConfig     `json:"redis"`
	VaultConfig     VaultConfig     `json:"vault"`
	AuthConfig      AuthConfig      `json:"auth"`
	GatewayConfig   GatewayConfig   `json:"gateway"`
	RateLimitConfig RateLimitConfig `json:"rate_limit"`
	CreditsConfig   CreditsConfig   `json:"credits"`
	SMTPConfig      SMTPConfig      `json:"smtp"`
	LoggingConfig   LoggingConfig   `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ProductionMode  bool   `json:"production_mode"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
	MaxRequestBytes int64  `json:"max_request_bytes"`
	BlockBots       bool   `json:"block_bots"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for caching and rate limiting
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path prefix for provider credentials
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// AuthConfig holds admin authentication configuration
type AuthConfig struct {
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	MinPasswordLength   int           `json:"min_password_length"`
}

// GatewayConfig holds upstream provider configuration
type GatewayConfig struct {
	SupadataBaseURL  string `json:"supadata_base_url"`
	SupadataTimeout  int    `json:"supadata_timeout"` // Seconds
	SupadataKey1     string `json:"supadata_key_1"`
	SupadataKey2     string `json:"supadata_key_2"`
	SupadataKey3     string `json:"supadata_key_3"`
	OpenAIBaseURL    string `json:"openai_base_url"`
	OpenAITimeout    int    `json:"openai_timeout"` // Seconds
	OpenAIKey        string `json:"openai_key"`
	OpenAIModel      string `json:"openai_model"`
	YouTubeBaseURL   string `json:"youtube_base_url"`
	YouTubeTimeout   int    `json:"youtube_timeout"` // Seconds
	YouTubeKey       string `json:"youtube_key"`
	PromptSecretKey  string `json:"prompt_secret_key"` // 32-byte key for golden prompt encryption at rest
	CacheEnabled     bool   `json:"cache_enabled"`
	AuditLogEnabled  bool   `json:"audit_log_enabled"`
	DefaultAIPrompt  string `json:"default_ai_prompt"`
	TranscriptTTL    int    `json:"transcript_ttl"` // Seconds
	YouTubeDataTTL   int    `json:"youtube_data_ttl"`
}

// RateLimitConfig holds per-license rate limiting configuration
type RateLimitConfig struct {
	Enabled     bool `json:"enabled"`
	MaxRequests int  `json:"max_requests"` // Max requests per window per license
	WindowSecs  int  `json:"window_secs"`  // Fixed window length
}

// CreditsConfig holds credit metering configuration
type CreditsConfig struct {
	LowCreditsThreshold int `json:"low_credits_threshold"` // Remaining credits that trigger a low-credits notice
	ResetCheckMins      int `json:"reset_check_mins"`      // Minutes between scheduler passes
}

// SMTPConfig holds outbound email configuration
type SMTPConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	FromName string `json:"from_name"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout or stderr
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Provider API keys may come from the environment only as a fallback when
// Vault is disabled; with Vault enabled the keys live in the KV store.
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", "false") == "true"
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 200)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)
	cfg.ServerConfig.MaxRequestBytes = int64(getEnvIntOrDefault("SERVER_MAX_REQUEST_BYTES", 1048576))
	cfg.ServerConfig.BlockBots = getEnvOrDefault("SERVER_BLOCK_BOTS", "true") == "true"

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", "ipv_vendor")
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", "ipv_vendor_password")
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", "ipv_vendor")
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "true") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "ipv-vendor/provider-keys")
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"

	// Auth config
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", 1*time.Hour)
	cfg.AuthConfig.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", 8)

	// Gateway config
	cfg.GatewayConfig.SupadataBaseURL = getEnvOrDefault("SUPADATA_BASE_URL", "https://api.supadata.ai")
	cfg.GatewayConfig.SupadataTimeout = getEnvIntOrDefault("SUPADATA_TIMEOUT", 180)
	cfg.GatewayConfig.SupadataKey1 = getEnvOrDefault("SUPADATA_API_KEY_1", cfg.GatewayConfig.SupadataKey1)
	cfg.GatewayConfig.SupadataKey2 = getEnvOrDefault("SUPADATA_API_KEY_2", cfg.GatewayConfig.SupadataKey2)
	cfg.GatewayConfig.SupadataKey3 = getEnvOrDefault("SUPADATA_API_KEY_3", cfg.GatewayConfig.SupadataKey3)
	cfg.GatewayConfig.OpenAIBaseURL = getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com")
	cfg.GatewayConfig.OpenAITimeout = getEnvIntOrDefault("OPENAI_TIMEOUT", 120)
	cfg.GatewayConfig.OpenAIKey = getEnvOrDefault("OPENAI_API_KEY", cfg.GatewayConfig.OpenAIKey)
	cfg.GatewayConfig.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini")
	cfg.GatewayConfig.YouTubeBaseURL = getEnvOrDefault("YOUTUBE_BASE_URL", "https://www.googleapis.com")
	cfg.GatewayConfig.YouTubeTimeout = getEnvIntOrDefault("YOUTUBE_TIMEOUT", 30)
	cfg.GatewayConfig.YouTubeKey = getEnvOrDefault("YOUTUBE_API_KEY", cfg.GatewayConfig.YouTubeKey)
	cfg.GatewayConfig.PromptSecretKey = getEnvOrDefault("PROMPT_SECRET_KEY", cfg.GatewayConfig.PromptSecretKey)
	cfg.GatewayConfig.CacheEnabled = getEnvOrDefault("GATEWAY_CACHE_ENABLED", "true") == "true"
	cfg.GatewayConfig.AuditLogEnabled = getEnvOrDefault("GATEWAY_AUDIT_LOG_ENABLED", "true") == "true"
	cfg.GatewayConfig.DefaultAIPrompt = getEnvOrDefault("GATEWAY_DEFAULT_AI_PROMPT",
		"You are an assistant that writes descriptions for YouTube videos.")
	cfg.GatewayConfig.TranscriptTTL = getEnvIntOrDefault("GATEWAY_TRANSCRIPT_TTL", 7*24*3600)
	cfg.GatewayConfig.YouTubeDataTTL = getEnvIntOrDefault("GATEWAY_YOUTUBE_DATA_TTL", 3600)

	// Rate limit config
	cfg.RateLimitConfig.Enabled = getEnvOrDefault("RATE_LIMIT_ENABLED", "true") == "true"
	cfg.RateLimitConfig.MaxRequests = getEnvIntOrDefault("RATE_LIMIT_MAX_REQUESTS", 100)
	cfg.RateLimitConfig.WindowSecs = getEnvIntOrDefault("RATE_LIMIT_WINDOW", 3600)

	// Credits config
	cfg.CreditsConfig.LowCreditsThreshold = getEnvIntOrDefault("CREDITS_LOW_THRESHOLD", 10)
	cfg.CreditsConfig.ResetCheckMins = getEnvIntOrDefault("CREDITS_RESET_CHECK_MINS", 60)

	// SMTP config
	cfg.SMTPConfig.Enabled = getEnvOrDefault("SMTP_ENABLED", "false") == "true"
	cfg.SMTPConfig.Host = getEnvOrDefault("SMTP_HOST", cfg.SMTPConfig.Host)
	cfg.SMTPConfig.Port = getEnvOrDefault("SMTP_PORT", "587")
	cfg.SMTPConfig.Username = getEnvOrDefault("SMTP_USERNAME", cfg.SMTPConfig.Username)
	cfg.SMTPConfig.Password = getEnvOrDefault("SMTP_PASSWORD", cfg.SMTPConfig.Password)
	cfg.SMTPConfig.From = getEnvOrDefault("SMTP_FROM", cfg.SMTPConfig.From)
	cfg.SMTPConfig.FromName = getEnvOrDefault("SMTP_FROM_NAME", "IPV Production System")

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"
}

// SupadataKeys returns the configured SupaData keys in fallback order,
// skipping empty slots.
func (g *GatewayConfig) SupadataKeys() []string {
	keys := make([]string, 0, 3)
	for _, k := range []string{g.SupadataKey1, g.SupadataKey2, g.SupadataKey3} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
