// Package config reads the application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all settings of the backend.
type Config struct {
	APIURL              *url.URL
	Port                string
	GinMode             string
	LogFormat           string // human or json, empty picks by gin mode
	LogLevel            string
	CORSAllowOrigins    []string
	EnablePprof         bool
	DBDriver            string
	DBDSN               string
	PlaidClientID       string
	PlaidSecret         string
	PlaidEnv            string
	PlaidProducts       []string
	PlaidCountryCodes   []string
	PlaidWebhookURL     string
	PlaidTimeout        time.Duration
	PlaidRateLimit      float64
	VerifyWebhooks      bool
	SyncPageSize        int
	DispatchTimeout     time.Duration
	CategoryCacheTTL    time.Duration
	FirebaseCredentials string
	OTLPEndpoint        string
	ServiceName         string
}

// Load reads the .env file in the working directory if there is one and
// then the environment. Variables already set in the environment take
// precedence over the .env file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("reading .env file: %w", err)
		}
		log.Debug().Msg("no .env file found, using the environment only")
	}

	apiURL, err := url.Parse(get("API_URL", "http://localhost:8080"))
	if err != nil {
		return Config{}, fmt.Errorf("API_URL is not a valid URL: %w", err)
	}

	cfg := Config{
		APIURL:              apiURL,
		Port:                get("PORT", "8080"),
		GinMode:             get("GIN_MODE", "release"),
		LogFormat:           get("LOG_FORMAT", ""),
		LogLevel:            get("LOG_LEVEL", ""),
		CORSAllowOrigins:    strings.Fields(get("CORS_ALLOW_ORIGINS", "")),
		DBDriver:            get("DB_DRIVER", "sqlite"),
		DBDSN:               get("DB_DSN", "data/budget-tracker.db"),
		PlaidClientID:       get("PLAID_CLIENT_ID", ""),
		PlaidSecret:         get("PLAID_SECRET", ""),
		PlaidEnv:            get("PLAID_ENV", "sandbox"),
		PlaidProducts:       list(get("PLAID_PRODUCTS", "transactions")),
		PlaidCountryCodes:   list(get("PLAID_COUNTRY_CODES", "US")),
		PlaidWebhookURL:     get("PLAID_WEBHOOK_URL", ""),
		FirebaseCredentials: get("FIREBASE_CREDENTIALS_FILE", ""),
		OTLPEndpoint:        get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:         get("OTEL_SERVICE_NAME", "budget-tracker"),
	}

	// Collect all parse errors to report them at once
	var errs []error
	parse := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg.EnablePprof, err = getBool("ENABLE_PPROF", false)
	parse(err)
	cfg.VerifyWebhooks, err = getBool("PLAID_VERIFY_WEBHOOKS", false)
	parse(err)
	cfg.PlaidTimeout, err = getDuration("PLAID_TIMEOUT", 30*time.Second)
	parse(err)
	cfg.DispatchTimeout, err = getDuration("WEBHOOK_DISPATCH_TIMEOUT", 5*time.Minute)
	parse(err)
	cfg.CategoryCacheTTL, err = getDuration("CATEGORY_CACHE_TTL", 10*time.Minute)
	parse(err)
	cfg.SyncPageSize, err = getInt("SYNC_PAGE_SIZE", 100)
	parse(err)
	cfg.PlaidRateLimit, err = getFloat("PLAID_RATE_LIMIT", 10)
	parse(err)

	if cfg.SyncPageSize < 1 || cfg.SyncPageSize > 500 {
		errs = append(errs, fmt.Errorf("SYNC_PAGE_SIZE must be between 1 and 500, is %d", cfg.SyncPageSize))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func get(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

// list splits comma or whitespace separated values.
func list(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a duration: %w", key, err)
	}

	if d < 0 {
		return fallback, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return i, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
