package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port          int
	JWTSecret     string
	DatabaseURL   string
	EncryptionKey string
	CORSOrigins   []string
	AdminEmail    string
	AdminPassword string

	LogLevel  string
	LogFormat string

	CourseCountsFile string
	FreeLimit        int
	PremiumLimit     int

	Apple  AppleConfig
	Google GoogleConfig

	ClaimTokenTTL time.Duration
	VerifyTimeout time.Duration
	WebhookSecret string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	RateLimitRPS   float64
	RateLimitBurst int
}

// AppleConfig holds App Store receipt validation settings.
type AppleConfig struct {
	SharedSecret      string
	Environment       string
	ProductionURL     string
	SandboxURL        string
	ProductIDs        []string
	AllowMockReceipts bool
}

// GoogleConfig holds Play Developer API settings.
type GoogleConfig struct {
	PackageName       string
	ServiceAccountKey string
}

// LoadDotEnv reads .env files if present. Variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, err := getInt("PORT", 4000)
	if err != nil {
		return nil, err
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	encKey := getEnv("ENCRYPTION_KEY", "")
	if len(encKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(encKey))
	}

	freeLimit, err := getInt("FREE_MONTHLY_COURSE_LIMIT", 2)
	if err != nil {
		return nil, err
	}
	premiumLimit, err := getInt("PREMIUM_MONTHLY_COURSE_LIMIT", 50)
	if err != nil {
		return nil, err
	}
	if freeLimit < 0 || premiumLimit < 0 {
		return nil, fmt.Errorf("course limits must not be negative")
	}

	claimTTL, err := getDuration("CLAIM_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	verifyTimeout, err := getDuration("VERIFY_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}
	burst, err := getInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, err
	}

	appleEnv := strings.ToLower(getEnv("APPLE_ENVIRONMENT", "sandbox"))
	if appleEnv != "sandbox" && appleEnv != "production" {
		return nil, fmt.Errorf("APPLE_ENVIRONMENT must be sandbox or production, got %q", appleEnv)
	}

	return &Config{
		Port:          port,
		JWTSecret:     jwtSecret,
		DatabaseURL:   dbURL,
		EncryptionKey: encKey,
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:8081,http://localhost:19006")),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@learnai.app"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		CourseCountsFile: getEnv("COURSE_COUNTS_FILE", "data/courseCounts.json"),
		FreeLimit:        freeLimit,
		PremiumLimit:     premiumLimit,

		Apple: AppleConfig{
			SharedSecret:      getEnv("APPLE_SHARED_SECRET", ""),
			Environment:       appleEnv,
			ProductionURL:     getEnv("APPLE_RECEIPT_VALIDATION_URL_PRODUCTION", "https://buy.itunes.apple.com/verifyReceipt"),
			SandboxURL:        getEnv("APPLE_RECEIPT_VALIDATION_URL_SANDBOX", "https://sandbox.itunes.apple.com/verifyReceipt"),
			ProductIDs:        splitList(getEnv("APPLE_PRODUCT_IDS", "")),
			AllowMockReceipts: getBool("ALLOW_MOCK_RECEIPTS", false),
		},
		Google: GoogleConfig{
			PackageName:       getEnv("GOOGLE_PLAY_PACKAGE_NAME", ""),
			ServiceAccountKey: getEnv("GOOGLE_SERVICE_ACCOUNT_KEY", ""),
		},

		ClaimTokenTTL: claimTTL,
		VerifyTimeout: verifyTimeout,
		WebhookSecret: getEnv("SUBSCRIPTION_WEBHOOK_SECRET", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		RateLimitRPS:   rps,
		RateLimitBurst: burst,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
