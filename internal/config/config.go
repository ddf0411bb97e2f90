// Package config provides client configuration management with support for
// environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the client configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Backend BackendConfig
	Cache   CacheConfig
	Session SessionConfig
	Dev     DevConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// BackendConfig holds Perpetua backend connection configuration.
type BackendConfig struct {
	URL            string        // Base URL of the backend RPC endpoint
	RequestTimeout time.Duration // Per-request timeout (default: 30s)
	RateRPS        float64       // Outbound requests per second per operation (default: 10)
	RateBurst      int           // Outbound burst size per operation (default: 20)
}

// CacheConfig holds TTL cache configuration.
type CacheConfig struct {
	TTL           time.Duration // Entry time-to-live (default: 30s)
	SweepInterval time.Duration // Background sweep period (default: 60s)
}

// SessionConfig identifies the current user session.
type SessionConfig struct {
	Principal string // Principal string of the signed-in user; empty for anonymous browsing
}

// DevConfig controls the embedded backend double used for local development.
type DevConfig struct {
	Enabled bool   // Serve the in-process backend before connecting
	Addr    string // Listen address for the embedded backend (default: 127.0.0.1:4943)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return LoadConfigFromArgs(os.Args[1:])
}

// LoadConfigFromArgs is LoadConfig with an explicit argument list, for tests.
func LoadConfigFromArgs(args []string) (*Config, error) {
	fs := flag.NewFlagSet("perpetua", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	backendURL := fs.String("backend-url", "", "Perpetua backend base URL")
	requestTimeout := fs.String("request-timeout", "", "Per-request timeout (default: 30s)")
	rateRPS := fs.String("rate-rps", "", "Outbound requests per second per operation (default: 10)")
	rateBurst := fs.String("rate-burst", "", "Outbound burst per operation (default: 20)")
	cacheTTL := fs.String("cache-ttl", "", "Cache entry TTL (default: 30s)")
	cacheSweep := fs.String("cache-sweep-interval", "", "Cache sweep period (default: 60s)")
	principal := fs.String("principal", "", "Principal of the signed-in user")
	envFile := fs.String("env-file", ".env", "Path to .env file")
	dev := fs.Bool("dev", false, "Serve an embedded backend double before connecting")
	devAddr := fs.String("dev-addr", "", "Listen address for the embedded backend (default: 127.0.0.1:4943)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Backend: BackendConfig{
			URL: getConfigValue(*backendURL, "PERPETUA_BACKEND_URL", "http://localhost:4943"),
		},
		Session: SessionConfig{
			Principal: getConfigValue(*principal, "PERPETUA_PRINCIPAL", ""),
		},
		Dev: DevConfig{
			Enabled: *dev || getBoolConfigValue("", "PERPETUA_DEV", false),
			Addr:    getConfigValue(*devAddr, "PERPETUA_DEV_ADDR", "127.0.0.1:4943"),
		},
	}

	var err error
	if cfg.Backend.RequestTimeout, err = getDurationConfigValue(*requestTimeout, "PERPETUA_REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Cache.TTL, err = getDurationConfigValue(*cacheTTL, "PERPETUA_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Cache.SweepInterval, err = getDurationConfigValue(*cacheSweep, "PERPETUA_CACHE_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	rpsStr := getConfigValue(*rateRPS, "PERPETUA_RATE_RPS", "10")
	if cfg.Backend.RateRPS, err = strconv.ParseFloat(rpsStr, 64); err != nil {
		return nil, fmt.Errorf("invalid rate rps %q: %w", rpsStr, err)
	}
	burstStr := getConfigValue(*rateBurst, "PERPETUA_RATE_BURST", "20")
	if cfg.Backend.RateBurst, err = strconv.Atoi(burstStr); err != nil {
		return nil, fmt.Errorf("invalid rate burst %q: %w", burstStr, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Backend.URL == "" {
		return errors.New("backend URL is required")
	}
	if c.Backend.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("cache TTL must be positive")
	}
	if c.Cache.SweepInterval <= 0 {
		return errors.New("cache sweep interval must be positive")
	}
	if c.Backend.RateRPS <= 0 || c.Backend.RateBurst <= 0 {
		return errors.New("rate limit rps and burst must be positive")
	}

	return nil
}

// loadEnvFile loads KEY=VALUE pairs from a file into the process
// environment. Existing environment variables are not overwritten.
func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getDurationConfigValue returns a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q for %s: %w", strValue, envKey, err)
	}
	return d, nil
}
