// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything main needs to wire the service.
type Config struct {
	Port           string
	LogMode        string
	DatabaseURL    string
	ServiceToken   string
	AllowedOrigins []string

	// Identity provider (token validation + subscription changes)
	IdentityServiceURL string
	SyncServiceURL     string
	SyncInterval       time.Duration

	// Fallback timezone for users that never sent X-User-Timezone
	DefaultTimezone string

	// Optional R2 archive for weekly league standings
	R2AccountID     string
	R2AccessKeyID   string
	R2AccessSecret  string
	R2Bucket        string
	ArchiveDisabled bool
}

// Load reads .env (if present) and the process environment.
// The bool reports whether a .env file was found.
func Load() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil

	cfg := &Config{
		Port:               getEnv("PORT", "5300"),
		LogMode:            getEnv("LOG_MODE", "development"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		ServiceToken:       os.Getenv("CHALLENGE_SERVICE_TOKEN"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		IdentityServiceURL: os.Getenv("IDENTITY_SERVICE_URL"),
		SyncServiceURL:     os.Getenv("SYNC_SERVICE_URL"),
		SyncInterval:       getDuration("SYNC_INTERVAL", time.Minute),
		DefaultTimezone:    getEnv("DEFAULT_TIMEZONE", "UTC"),
		R2AccountID:        os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:      os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessSecret:     os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:           os.Getenv("R2_BUCKET_NAME"),
	}
	cfg.ArchiveDisabled = cfg.R2Bucket == "" || getBool("ARCHIVE_DISABLED", false)

	if err := cfg.Validate(); err != nil {
		return nil, dotenv, err
	}
	return cfg, dotenv, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.ServiceToken == "" {
		missing = append(missing, "CHALLENGE_SERVICE_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// splitList turns "a, b,c" into ["a","b","c"].
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
