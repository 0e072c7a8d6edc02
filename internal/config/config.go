// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// Lead is the default delay between opening a round and firing it,
	// from BREW_LEAD_TIME (number) and BREW_LEAD_UNIT (minutes|hours|seconds).
	// Defaults to 10 minutes.
	Lead time.Duration

	// SMTP delivery settings. Mail is disabled (log-only gateway) when
	// SMTP_HOST is unset.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	// SMTPDomain is the mail domain brewer short ids belong to.
	SMTPDomain string
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or any
// values that fail to parse.
func Load() (Config, error) {
	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		CORSOrigins:  splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnv("SMTP_FROM", "brewbot@localhost"),
		SMTPDomain:   os.Getenv("SMTP_DOMAIN"),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	lead, err := parseLead(getEnv("BREW_LEAD_TIME", "10"), getEnv("BREW_LEAD_UNIT", "minutes"))
	if err != nil {
		return Config{}, err
	}
	cfg.Lead = lead

	cfg.SMTPPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	return cfg, nil
}

// parseLead combines BREW_LEAD_TIME and BREW_LEAD_UNIT into a duration.
func parseLead(amount, unit string) (time.Duration, error) {
	n, err := strconv.Atoi(amount)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid BREW_LEAD_TIME %q: must be a positive integer", amount)
	}

	var d time.Duration
	switch strings.ToLower(unit) {
	case "seconds", "second":
		d = time.Second
	case "minutes", "minute":
		d = time.Minute
	case "hours", "hour":
		d = time.Hour
	default:
		return 0, fmt.Errorf("invalid BREW_LEAD_UNIT %q: want seconds, minutes, or hours", unit)
	}

	return time.Duration(n) * d, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
