package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strconv"
	"strings"

	"phonepe-service/internal/models"
)

// Per-environment PhonePe endpoints. Overridable via env for testing.
const (
	uatBaseURL  = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	uatAuthURL  = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	prodBaseURL = "https://api.phonepe.com/apis/pg"
	prodAuthURL = "https://api.phonepe.com/apis/identity-manager"
)

// Config holds all configuration for the service. Immutable after Load.
type Config struct {
	// Server
	Port        string
	Environment string // uat or prod

	// Database
	DatabaseURL string

	// PhonePe credentials and endpoints
	ClientID      string
	ClientVersion string
	ClientSecret  string
	BaseURL       string
	AuthURL       string
	MerchantID    string // optional, sent as X-MERCHANT-ID on refunds
	RedirectURL   string

	// Webhook authentication
	WebhookSaltKey   string
	WebhookSaltIndex int

	// Token cache
	TokenCachePath string
	TokenCacheKey  []byte // 32 bytes, derived from the client secret

	// Optional NATS host-notification publishing
	NATSURL string
}

// Load reads configuration from environment variables and validates it
// eagerly. Missing credentials or an insecure redirect URL in prod fail here,
// not at first use.
func Load() (*Config, error) {
	env := getEnv("PHONEPE_ENV", "uat")
	if env != "uat" && env != "prod" {
		return nil, &models.ConfigError{Field: "PHONEPE_ENV", Reason: `must be "uat" or "prod"`}
	}

	baseURL, authURL := uatBaseURL, uatAuthURL
	if env == "prod" {
		baseURL, authURL = prodBaseURL, prodAuthURL
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8092"),
		Environment: env,
		DatabaseURL: buildDatabaseURL(),

		ClientID:      os.Getenv("PHONEPE_CLIENT_ID"),
		ClientVersion: os.Getenv("PHONEPE_CLIENT_VERSION"),
		ClientSecret:  os.Getenv("PHONEPE_CLIENT_SECRET"),
		BaseURL:       strings.TrimRight(getEnv("PHONEPE_BASE_URL", baseURL), "/"),
		AuthURL:       strings.TrimRight(getEnv("PHONEPE_AUTH_URL", authURL), "/"),
		MerchantID:    os.Getenv("PHONEPE_MERCHANT_ID"),
		RedirectURL:   os.Getenv("PHONEPE_REDIRECT_URL"),

		WebhookSaltKey: os.Getenv("PHONEPE_WEBHOOK_SALT_KEY"),

		TokenCachePath: getEnv("PHONEPE_TOKEN_CACHE_PATH", fmt.Sprintf("storage/phonepe/token_%s.enc", env)),

		NATSURL: os.Getenv("NATS_URL"),
	}

	saltIndex := getEnv("PHONEPE_WEBHOOK_SALT_INDEX", "1")
	idx, err := strconv.Atoi(saltIndex)
	if err != nil || idx < 1 {
		return nil, &models.ConfigError{Field: "PHONEPE_WEBHOOK_SALT_INDEX", Reason: "must be a positive integer"}
	}
	cfg.WebhookSaltIndex = idx

	required := []struct {
		field, value string
	}{
		{"PHONEPE_CLIENT_ID", cfg.ClientID},
		{"PHONEPE_CLIENT_VERSION", cfg.ClientVersion},
		{"PHONEPE_CLIENT_SECRET", cfg.ClientSecret},
		{"PHONEPE_REDIRECT_URL", cfg.RedirectURL},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &models.ConfigError{Field: r.field, Reason: "is required"}
		}
	}

	if env == "prod" && !strings.HasPrefix(cfg.RedirectURL, "https://") {
		return nil, &models.ConfigError{Field: "PHONEPE_REDIRECT_URL", Reason: "must be HTTPS in production"}
	}

	// The cache key never leaves the process; deriving it from the client
	// secret keeps the cache unreadable without the same credentials.
	key := sha256.Sum256([]byte(cfg.ClientSecret))
	cfg.TokenCacheKey = key[:]

	return cfg, nil
}

// buildDatabaseURL constructs the database URL from individual components
func buildDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "password")
	dbname := getEnv("DB_NAME", "phonepe")
	sslmode := getEnv("DB_SSLMODE", "disable")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, dbname, sslmode)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
