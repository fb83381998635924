package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
// We use a struct (not globals) so it's testable and explicit.
type Config struct {
	// Server
	ServerAddr string
	Env        string // "development" or "production"

	// Auth. An empty JWTSecret disables authentication entirely:
	// every principal is implicitly authorized and invites cannot
	// be issued.
	JWTSecret   string
	JWTAudience string
	JWTIssuer   string

	// Invites
	InviteTTLSeconds int
	InviteRatePerMin int

	// Role policy, lowercased. An empty HostRoles list means any
	// authenticated principal may create rooms.
	HostRoles   []string
	InviteRoles []string
}

// Load reads configuration from environment variables.
// In production, these come from the host. In dev, from .env via godotenv.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr:  getEnvOrDefault("SERVER_ADDR", "0.0.0.0:8999"),
		Env:         getEnvOrDefault("APP_ENV", "development"),
		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAudience: strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
		JWTIssuer:   strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		HostRoles:   splitRoles("HOST_ROLES"),
		InviteRoles: splitRoles("INVITE_ROLES"),
	}

	var err error
	cfg.InviteTTLSeconds, err = intEnvOrDefault("INVITE_TTL_SECONDS", 3600)
	if err != nil {
		return nil, err
	}
	cfg.InviteRatePerMin, err = intEnvOrDefault("INVITE_RATE_PER_MIN", 30)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.InviteTTLSeconds <= 0 {
		return fmt.Errorf("INVITE_TTL_SECONDS must be positive, got %d", c.InviteTTLSeconds)
	}
	if c.InviteRatePerMin <= 0 {
		return fmt.Errorf("INVITE_RATE_PER_MIN must be positive, got %d", c.InviteRatePerMin)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// AuthEnabled reports whether a signing secret is configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func intEnvOrDefault(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

// splitRoles splits a comma-separated env var into lowercase role names.
func splitRoles(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
