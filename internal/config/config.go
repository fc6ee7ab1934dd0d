// Package config loads service configuration from a YAML file, a .env file
// and MM_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/evcraddock/matchmaker/internal/email"
	"github.com/evcraddock/matchmaker/internal/events"
	"github.com/evcraddock/matchmaker/internal/ledger"
	"github.com/evcraddock/matchmaker/internal/notify"
	"github.com/evcraddock/matchmaker/internal/scheduler"
	"github.com/evcraddock/matchmaker/internal/scoring"
)

// Ledger backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the full service configuration.
type Config struct {
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`
	DevMode   bool   `yaml:"dev_mode"`
	ServerURL string `yaml:"server_url"`

	HTTP      HTTPConfig       `yaml:"http"`
	Scoring   ScoringConfig    `yaml:"scoring"`
	Match     MatchConfig      `yaml:"match"`
	Ledger    LedgerConfig     `yaml:"ledger"`
	Notify    NotifyConfig     `yaml:"notify"`
	SMTP      email.SMTPConfig `yaml:"smtp"`
	Kafka     events.Config    `yaml:"kafka"`
	Scheduler SchedulerConfig  `yaml:"scheduler"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// ScoringConfig holds the aggregate weights and label thresholds.
type ScoringConfig struct {
	Weights    scoring.Weights    `yaml:"weights"`
	Thresholds scoring.Thresholds `yaml:"thresholds"`
}

// MatchConfig tunes the match engine.
type MatchConfig struct {
	Workers int `yaml:"workers"`
}

// LedgerConfig selects and tunes the notification ledger.
type LedgerConfig struct {
	Backend            string        `yaml:"backend"`
	RedisAddr          string        `yaml:"redis_addr"`
	RedisPassword      string        `yaml:"redis_password"`
	RedisDB            int           `yaml:"redis_db"`
	ClaimTTL           time.Duration `yaml:"claim_ttl"`
	RenotifyScoreDelta int           `yaml:"renotify_score_delta"`
	RenotifyAfter      time.Duration `yaml:"renotify_after"`
}

// Policy returns the re-notify policy.
func (c LedgerConfig) Policy() ledger.Policy {
	return ledger.Policy{ScoreDelta: c.RenotifyScoreDelta, MaxAge: c.RenotifyAfter}
}

// NotifyConfig controls which matches are notified.
type NotifyConfig struct {
	MinOverall int `yaml:"min_overall"`
}

// SchedulerConfig controls the periodic sweep. An empty Sweep disables it.
type SchedulerConfig struct {
	Sweep string `yaml:"sweep"`
}

// Default returns the built-in configuration.
func Default() *Config {
	policy := ledger.DefaultPolicy()
	return &Config{
		LogLevel:  "info",
		ServerURL: "http://localhost:8080",
		HTTP:      HTTPConfig{Port: 8080},
		Scoring: ScoringConfig{
			Weights:    scoring.DefaultWeights(),
			Thresholds: scoring.DefaultThresholds(),
		},
		Match: MatchConfig{Workers: 4},
		Ledger: LedgerConfig{
			Backend:            BackendSQLite,
			ClaimTTL:           notify.DefaultClaimTTL,
			RenotifyScoreDelta: policy.ScoreDelta,
			RenotifyAfter:      policy.MaxAge,
		},
		SMTP:      email.SMTPConfig{Port: "587"},
		Kafka:     events.Config{Group: "matchmaker"},
		Scheduler: SchedulerConfig{Sweep: scheduler.DefaultSweep},
	}
}

// DefaultPath returns ~/.config/mm/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mm", "config.yaml"), nil
}

// Load reads configuration. An empty path uses DefaultPath and tolerates a
// missing file; an explicit path must exist. A .env file in the working
// directory is loaded into the environment without overriding variables
// that are already set, then MM_* variables override the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.DBPath, "MM_DB_PATH")
	setString(&c.LogLevel, "MM_LOG_LEVEL")
	setString(&c.ServerURL, "MM_SERVER_URL")
	setString(&c.Ledger.Backend, "MM_LEDGER_BACKEND")
	setString(&c.Ledger.RedisAddr, "MM_REDIS_ADDR")
	setString(&c.Ledger.RedisPassword, "MM_REDIS_PASSWORD")
	setString(&c.SMTP.Host, "MM_SMTP_HOST")
	setString(&c.SMTP.Port, "MM_SMTP_PORT")
	setString(&c.SMTP.User, "MM_SMTP_USER")
	setString(&c.SMTP.Pass, "MM_SMTP_PASS")
	setString(&c.SMTP.From, "MM_SMTP_FROM")
	setString(&c.Kafka.Topic, "MM_KAFKA_TOPIC")
	setString(&c.Kafka.Group, "MM_KAFKA_GROUP")
	setString(&c.Scheduler.Sweep, "MM_SWEEP")

	if v := os.Getenv("MM_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	if v := os.Getenv("MM_DEV_MODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MM_DEV_MODE: %w", err)
		}
		c.DevMode = b
	}

	for _, e := range []struct {
		key string
		dst *int
	}{
		{"MM_HTTP_PORT", &c.HTTP.Port},
		{"MM_MATCH_WORKERS", &c.Match.Workers},
		{"MM_REDIS_DB", &c.Ledger.RedisDB},
		{"MM_NOTIFY_MIN_OVERALL", &c.Notify.MinOverall},
	} {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = n
		}
	}

	if v := os.Getenv("MM_CLAIM_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MM_CLAIM_TTL: %w", err)
		}
		c.Ledger.ClaimTTL = d
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Scoring.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring.weights: %w", err))
	}
	if err := c.Scoring.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring.thresholds: %w", err))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port: %d out of range", c.HTTP.Port))
	}
	if c.Match.Workers < 0 {
		errs = append(errs, fmt.Errorf("match.workers: must not be negative"))
	}

	switch c.Ledger.Backend {
	case BackendSQLite:
	case BackendRedis:
		if c.Ledger.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("ledger.redis_addr: required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.backend: unknown backend %q", c.Ledger.Backend))
	}
	if c.Ledger.ClaimTTL <= 0 {
		errs = append(errs, fmt.Errorf("ledger.claim_ttl: must be positive"))
	}
	if c.Ledger.RenotifyScoreDelta <= 0 {
		errs = append(errs, fmt.Errorf("ledger.renotify_score_delta: must be positive"))
	}
	if c.Ledger.RenotifyAfter < 0 {
		errs = append(errs, fmt.Errorf("ledger.renotify_after: must not be negative"))
	}
	if c.Notify.MinOverall < 0 || c.Notify.MinOverall > scoring.MaxScore {
		errs = append(errs, fmt.Errorf("notify.min_overall: %d out of range", c.Notify.MinOverall))
	}

	return errors.Join(errs...)
}
