// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without zoneinfo.

	"github.com/joho/godotenv"

	"github.com/pkordes/patient-transport/internal/domain"
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
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// Location is the time zone trip dates and departure times are expressed
	// in. Read from TIMEZONE, defaults to America/Sao_Paulo.
	Location *time.Location

	// OverCapacityPolicy decides what a vehicle change does when the new
	// vehicle seats fewer patients than are assigned: "allow" (default) or "reject".
	OverCapacityPolicy domain.OverCapacityPolicy
}

// Load reads configuration from environment variables and returns a Config.
// A .env file in the working directory is merged first; variables already
// set in the environment take precedence over it.
// Returns an error listing every required variable that is not set and
// every value that cannot be parsed.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("reading .env: %w", err)
	}

	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}

	var missing, invalid []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	maxBody, err := strconv.ParseInt(getEnv("MAX_BODY_BYTES", "1048576"), 10, 64)
	if err != nil || maxBody < 1 {
		invalid = append(invalid, "MAX_BODY_BYTES must be a positive integer")
	}
	cfg.MaxBodyBytes = maxBody

	tz := getEnv("TIMEZONE", "America/Sao_Paulo")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		invalid = append(invalid, fmt.Sprintf("TIMEZONE %q is not a known time zone", tz))
	}

	switch policy := domain.OverCapacityPolicy(strings.ToLower(getEnv("OVER_CAPACITY_POLICY", string(domain.PolicyAllow)))); policy {
	case domain.PolicyAllow, domain.PolicyReject:
		cfg.OverCapacityPolicy = policy
	default:
		invalid = append(invalid, fmt.Sprintf("OVER_CAPACITY_POLICY %q must be allow or reject", policy))
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "required environment variables not set: "+strings.Join(missing, ", "))
	}
	problems = append(problems, invalid...)
	if len(problems) > 0 {
		return Config{}, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
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
