// Package config loads the threatsync and vendorgroup settings. Values come
// from built-in defaults, then an optional YAML file, then the environment
// (a .env file is loaded by the commands before Load runs).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/history"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/monitor"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/reputation"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

// ErrInvalid wraps every configuration problem. Runs abort on it rather than
// guessing a default.
var ErrInvalid = errors.New("invalid configuration")

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"

	defaultHistoryFile = "domains_DB.json"
	defaultHTTPTimeout = 30
)

type Monitor struct {
	BaseURL     string `yaml:"base_url" validate:"required,url"`
	Token       string `yaml:"token" validate:"required"`
	InsecureTLS bool   `yaml:"insecure_tls"`
	EventPath   string `yaml:"event_path" validate:"required"`
}

type Investigate struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Token   string `yaml:"token" validate:"required"`
}

type History struct {
	Backend  string                   `yaml:"backend"`
	File     string                   `yaml:"file"`
	Postgres history.PostgresSettings `yaml:"postgres"`
	// AutoMigrate creates the postgres tables on start. Turn it off when the
	// schema is managed elsewhere.
	AutoMigrate bool `yaml:"auto_migrate"`
}

type GeoLite struct {
	CountryDB string `yaml:"country_db"`
	ASNDB     string `yaml:"asn_db"`
}

type Config struct {
	Monitor     Monitor     `yaml:"monitor"`
	Investigate Investigate `yaml:"investigate"`

	// Period is the lookback in days; zero means unrestricted.
	Period int `yaml:"period"`
	// TimeBetweenQueries is the alert cooldown in days.
	TimeBetweenQueries int `yaml:"time_between_queries"`
	// HTTPTimeoutSeconds bounds every outbound API call.
	HTTPTimeoutSeconds int `yaml:"http_timeout"`

	History History `yaml:"history"`
	GeoLite GeoLite `yaml:"geolite"`

	RedisURL       string `yaml:"redis_url"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	LogLevel       string `yaml:"log_level"`

	// Schedule is the pause between scheduled runs in -interval mode.
	Schedule Timer `yaml:"schedule"`
}

func Default() Config {
	return Config{
		Monitor: Monitor{
			EventPath: monitor.DefaultEventPath,
		},
		Investigate: Investigate{
			BaseURL: reputation.DefaultBaseURL,
		},
		HTTPTimeoutSeconds: defaultHTTPTimeout,
		History: History{
			Backend: BackendFile,
			File:    defaultHistoryFile,
			Postgres: history.PostgresSettings{
				Host: "localhost",
				Port: "5432",
				Name: "threatsync",
				User: "threatsync",
			},
			AutoMigrate: true,
		},
		LogLevel: "info",
		Schedule: Timer{Hours: 1},
	}
}

// loadChecks are the settings Load validates. Credentials are checked per
// command because vendorgroup never calls Umbrella.
type loadChecks struct {
	Period             int    `validate:"min=0"`
	HTTPTimeoutSeconds int    `validate:"gt=0"`
	HistoryBackend     string `validate:"oneof=file postgres"`
	PushgatewayURL     string `validate:"omitempty,url"`
	LogLevel           string `validate:"omitempty,oneof=debug info warn error fatal"`
}

// Load builds the configuration. path may be empty; a named file that does not
// exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := support.ValidateStruct(loadChecks{
		Period:             cfg.Period,
		HTTPTimeoutSeconds: cfg.HTTPTimeoutSeconds,
		HistoryBackend:     cfg.History.Backend,
		PushgatewayURL:     cfg.PushgatewayURL,
		LogLevel:           cfg.LogLevel,
	}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// ValidateMonitor checks the settings every command needs to reach the center.
func (c Config) ValidateMonitor() error {
	if err := support.ValidateStruct(c.Monitor); err != nil {
		return fmt.Errorf("%w: monitor: %v", ErrInvalid, err)
	}
	return nil
}

// ValidateThreatSync checks the settings of a threatsync run reading source.
func (c Config) ValidateThreatSync(source string) error {
	if err := c.ValidateMonitor(); err != nil {
		return err
	}
	if err := support.ValidateStruct(c.Investigate); err != nil {
		return fmt.Errorf("%w: investigate: %v", ErrInvalid, err)
	}
	if c.TimeBetweenQueries <= 0 {
		return fmt.Errorf("%w: TIME_BETWEEN_QUERIES must be a positive number of days, got %d", ErrInvalid, c.TimeBetweenQueries)
	}
	if source == "flows" && c.Period <= 0 {
		return fmt.Errorf("%w: the flows source needs PERIOD set to a positive number of days", ErrInvalid)
	}
	switch c.History.Backend {
	case BackendFile:
		if c.History.File == "" {
			return fmt.Errorf("%w: HISTORY_FILE is empty", ErrInvalid)
		}
	case BackendPostgres:
		if c.History.Postgres.Host == "" || c.History.Postgres.Name == "" {
			return fmt.Errorf("%w: postgres history needs DB_HOST and DB_NAME", ErrInvalid)
		}
	}
	return nil
}
