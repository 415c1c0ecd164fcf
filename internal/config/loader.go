// Package config loads the housing service configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HOUSING_"

// Config captures the service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Planner  PlannerConfig  `yaml:"planner"`
	Roster   RosterConfig   `yaml:"roster"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path         string        `yaml:"path"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LedgerConfig tunes the assignment ledger.
type LedgerConfig struct {
	LockWait time.Duration `yaml:"lock_wait"`
}

// PlannerConfig tunes auto-assign runs.
type PlannerConfig struct {
	CommitFanOut int           `yaml:"commit_fan_out"`
	JobTTL       time.Duration `yaml:"job_ttl"`
	MaxJobs      int           `yaml:"max_jobs"`
}

// RosterConfig points at the roster feed. An empty file means the roster is
// read from the database.
type RosterConfig struct {
	File string `yaml:"file"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:         "housing.db",
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Ledger: LedgerConfig{
			LockWait: 2 * time.Second,
		},
		Planner: PlannerConfig{
			CommitFanOut: 4,
			JobTTL:       time.Hour,
			MaxJobs:      128,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "housing",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and HOUSING_* environment overrides, in that order. Every invalid value is
// reported in one error.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	invalid := applyEnv(&cfg, os.LookupEnv)
	invalid = append(invalid, cfg.validate()...)
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("config: invalid values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides cfg from the environment and returns the keys whose
// values could not be parsed.
func applyEnv(cfg *Config, lookup lookupFunc) []string {
	var invalid []string
	env := func(name string) (string, string, bool) {
		key := EnvPrefix + name
		value, ok := lookup(key)
		value = strings.TrimSpace(value)
		return key, value, ok && value != ""
	}
	str := func(name string, dst *string) {
		if _, value, ok := env(name); ok {
			*dst = value
		}
	}
	integer := func(name string, dst *int) {
		if key, value, ok := env(name); ok {
			n, err := strconv.Atoi(value)
			if err != nil {
				invalid = append(invalid, key)
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if key, value, ok := env(name); ok {
			d, err := time.ParseDuration(value)
			if err != nil {
				invalid = append(invalid, key)
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if key, value, ok := env(name); ok {
			b, err := strconv.ParseBool(value)
			if err != nil {
				invalid = append(invalid, key)
				return
			}
			*dst = b
		}
	}

	str("HTTP_ADDR", &cfg.HTTP.Addr)
	duration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	duration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	duration("HTTP_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)
	str("DB_PATH", &cfg.Database.Path)
	duration("DB_BUSY_TIMEOUT", &cfg.Database.BusyTimeout)
	integer("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	duration("LOCK_WAIT", &cfg.Ledger.LockWait)
	integer("COMMIT_FAN_OUT", &cfg.Planner.CommitFanOut)
	duration("JOB_TTL", &cfg.Planner.JobTTL)
	integer("MAX_JOBS", &cfg.Planner.MaxJobs)
	str("ROSTER_FILE", &cfg.Roster.File)
	boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	str("METRICS_NAMESPACE", &cfg.Metrics.Namespace)

	return invalid
}

// validate returns the settings that hold unusable values.
func (c Config) validate() []string {
	var invalid []string
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		invalid = append(invalid, "http.addr")
	}
	if c.HTTP.ReadTimeout < 0 || c.HTTP.WriteTimeout < 0 || c.HTTP.ShutdownTimeout < 0 {
		invalid = append(invalid, "http timeouts")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		invalid = append(invalid, "database.path")
	}
	if c.Database.BusyTimeout < 0 {
		invalid = append(invalid, "database.busy_timeout")
	}
	if c.Database.MaxOpenConns < 0 {
		invalid = append(invalid, "database.max_open_conns")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "log.level")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		invalid = append(invalid, "log.format")
	}
	if c.Ledger.LockWait <= 0 {
		invalid = append(invalid, "ledger.lock_wait")
	}
	if c.Planner.CommitFanOut <= 0 {
		invalid = append(invalid, "planner.commit_fan_out")
	}
	if c.Planner.JobTTL <= 0 {
		invalid = append(invalid, "planner.job_ttl")
	}
	if c.Planner.MaxJobs <= 0 {
		invalid = append(invalid, "planner.max_jobs")
	}
	return invalid
}
