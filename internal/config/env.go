package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

func applyEnv(cfg *Config) error {
	cfg.Monitor.BaseURL = support.GetEnv("MONITOR_BASE_URL", cfg.Monitor.BaseURL)
	cfg.Monitor.Token = support.GetEnv("MONITOR_TOKEN", cfg.Monitor.Token)
	cfg.Monitor.InsecureTLS = support.GetEnvBool("MONITOR_INSECURE_TLS", cfg.Monitor.InsecureTLS)
	cfg.Monitor.EventPath = support.GetEnv("MONITOR_EVENT_PATH", cfg.Monitor.EventPath)

	cfg.Investigate.BaseURL = support.GetEnv("INVESTIGATE_BASE_URL", cfg.Investigate.BaseURL)
	cfg.Investigate.Token = support.GetEnv("INVESTIGATE_TOKEN", cfg.Investigate.Token)

	if raw, ok := lookup("PERIOD"); ok {
		period, err := parsePeriod(raw)
		if err != nil {
			return err
		}
		cfg.Period = period
	}
	if raw, ok := lookup("TIME_BETWEEN_QUERIES"); ok {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: TIME_BETWEEN_QUERIES must be an integer number of days, got %q", ErrInvalid, raw)
		}
		cfg.TimeBetweenQueries = days
	}
	if raw, ok := lookup("HTTP_TIMEOUT"); ok {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: HTTP_TIMEOUT must be an integer number of seconds, got %q", ErrInvalid, raw)
		}
		cfg.HTTPTimeoutSeconds = seconds
	}

	cfg.History.Backend = strings.ToLower(support.GetEnv("HISTORY_BACKEND", cfg.History.Backend))
	cfg.History.File = support.GetEnv("HISTORY_FILE", cfg.History.File)
	cfg.History.Postgres.Host = support.GetEnv("DB_HOST", cfg.History.Postgres.Host)
	cfg.History.Postgres.Port = support.GetEnv("DB_PORT", cfg.History.Postgres.Port)
	cfg.History.Postgres.Name = support.GetEnv("DB_NAME", cfg.History.Postgres.Name)
	cfg.History.Postgres.User = support.GetEnv("DB_USERNAME", cfg.History.Postgres.User)
	cfg.History.Postgres.Password = support.GetEnv("DB_PASSWORD", cfg.History.Postgres.Password)
	cfg.History.AutoMigrate = support.GetEnvBool("HISTORY_AUTO_MIGRATE", cfg.History.AutoMigrate)

	cfg.GeoLite.CountryDB = support.GetEnv("GEOLITE_COUNTRY_DB", cfg.GeoLite.CountryDB)
	cfg.GeoLite.ASNDB = support.GetEnv("GEOLITE_ASN_DB", cfg.GeoLite.ASNDB)

	cfg.RedisURL = support.GetEnv("REDIS_URL", cfg.RedisURL)
	cfg.PushgatewayURL = support.GetEnv("PUSHGATEWAY_URL", cfg.PushgatewayURL)
	cfg.LogLevel = strings.ToLower(support.GetEnv("LOG_LEVEL", cfg.LogLevel))
	return nil
}

// lookup returns the trimmed value of key; a blank value counts as unset.
func lookup(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// parsePeriod accepts a non-negative integer number of days. Zero means no
// lookback restriction.
func parsePeriod(raw string) (int, error) {
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		return 0, fmt.Errorf("%w: PERIOD must be a whole number of days, got %q", ErrInvalid, raw)
	}
	return days, nil
}
