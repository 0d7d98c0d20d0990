package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides, e.g. REVIEWER_REDIS__ADDR.
const EnvPrefix = "REVIEWER_"

type Config struct {
	Redis      RedisConfig      `koanf:"redis"`
	Store      StoreConfig      `koanf:"store"`
	Capture    CaptureConfig    `koanf:"capture"`
	Fetcher    FetcherConfig    `koanf:"fetcher"`
	Analyzer   AnalyzerConfig   `koanf:"analyzer"`
	Frontend   FrontendConfig   `koanf:"frontend"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Events     EventsConfig     `koanf:"events"`
}

type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	// PopWindow bounds each blocking pop round trip so cancellation is noticed.
	PopWindow time.Duration `koanf:"pop_window"`
}

type StoreConfig struct {
	Type string `koanf:"type"` // redis, memory
}

type CaptureConfig struct {
	Port    int           `koanf:"port"`
	Logging LoggingConfig `koanf:"logging"`
}

type FetcherConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	PollAttempts int           `koanf:"poll_attempts"`
	// Accounts are pushed as fetcher initializers by the frontend at startup.
	Accounts []string      `koanf:"accounts"`
	Driver   DriverConfig  `koanf:"driver"`
	Logging  LoggingConfig `koanf:"logging"`
}

type DriverConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type AnalyzerConfig struct {
	// DropFailed discards unreviewable raw records instead of parking
	// them on the dead-letter queue.
	DropFailed bool          `koanf:"drop_failed"`
	Archive    ArchiveConfig `koanf:"archive"`
	Logging    LoggingConfig `koanf:"logging"`
}

type ArchiveConfig struct {
	Path string `koanf:"path"` // empty disables the archive
}

type FrontendConfig struct {
	Port          int           `koanf:"port"`
	LookupTimeout time.Duration `koanf:"lookup_timeout"`
	PollInterval  time.Duration `koanf:"poll_interval"`
	Logging       LoggingConfig `koanf:"logging"`
}

// LoggingConfig is shared by every role.
type LoggingConfig struct {
	Level  string            `koanf:"level"`  // debug, info, warn, error
	Format string            `koanf:"format"` // json, text
	File   FileLoggingConfig `koanf:"file"`
	Store  StoreLogConfig    `koanf:"store"`
}

// FileLoggingConfig enables a rotating log file. Path may contain "{rank}".
type FileLoggingConfig struct {
	Path        string `koanf:"path"`
	MaxBytes    int    `koanf:"max_bytes"`
	BackupCount int    `koanf:"backup_count"`
}

// StoreLogConfig mirrors log records into a capped list in the shared store.
type StoreLogConfig struct {
	Key        string `koanf:"key"`
	MaxEntries int64  `koanf:"max_entries"`
}

type SupervisorConfig struct {
	Restart     string        `koanf:"restart"` // always, on-failure, never
	Backoff     time.Duration `koanf:"backoff"`
	MaxBackoff  time.Duration `koanf:"max_backoff"`
	MaxRestarts int           `koanf:"max_restarts"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

type EventsConfig struct {
	Type  string      `koanf:"type"` // log, kafka
	Kafka KafkaConfig `koanf:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML file at path (a missing file is fine), applies
// environment overrides and defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Redis.Password = substituteEnvVars(cfg.Redis.Password)
	cfg.Fetcher.Driver.BaseURL = substituteEnvVars(cfg.Fetcher.Driver.BaseURL)

	setDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with every default applied and nothing loaded.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

func setDefaults(cfg *Config) {
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "redis:6379"
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.PopWindow == 0 {
		cfg.Redis.PopWindow = 5 * time.Second
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "redis"
	}

	if cfg.Capture.Port == 0 {
		cfg.Capture.Port = 8081
	}

	if cfg.Fetcher.PollInterval == 0 {
		cfg.Fetcher.PollInterval = time.Second
	}
	if cfg.Fetcher.PollAttempts == 0 {
		cfg.Fetcher.PollAttempts = 60
	}
	if cfg.Fetcher.Driver.Timeout == 0 {
		cfg.Fetcher.Driver.Timeout = 30 * time.Second
	}

	if cfg.Frontend.Port == 0 {
		cfg.Frontend.Port = 8080
	}
	if cfg.Frontend.LookupTimeout == 0 {
		cfg.Frontend.LookupTimeout = 60 * time.Second
	}
	if cfg.Frontend.PollInterval == 0 {
		cfg.Frontend.PollInterval = time.Second
	}

	for _, l := range []*LoggingConfig{&cfg.Capture.Logging, &cfg.Fetcher.Logging, &cfg.Analyzer.Logging, &cfg.Frontend.Logging} {
		if l.Level == "" {
			l.Level = "info"
		}
		if l.Format == "" {
			l.Format = "json"
		}
		if l.File.Path != "" {
			if l.File.MaxBytes == 0 {
				l.File.MaxBytes = 10 << 20
			}
			if l.File.BackupCount == 0 {
				l.File.BackupCount = 10
			}
		}
		if l.Store.Key != "" && l.Store.MaxEntries == 0 {
			l.Store.MaxEntries = 1024
		}
	}

	if cfg.Supervisor.Restart == "" {
		cfg.Supervisor.Restart = "always"
	}
	if cfg.Supervisor.Backoff == 0 {
		cfg.Supervisor.Backoff = time.Second
	}
	if cfg.Supervisor.MaxBackoff == 0 {
		cfg.Supervisor.MaxBackoff = 30 * time.Second
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "record-review-gateway"
	}

	if cfg.Events.Type == "" {
		cfg.Events.Type = "log"
	}
	if cfg.Events.Kafka.Topic == "" {
		cfg.Events.Kafka.Topic = "record-review.lifecycle"
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Type {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Sprintf("store.type %q must be redis or memory", c.Store.Type))
	}
	for name, port := range map[string]int{"capture.port": c.Capture.Port, "frontend.port": c.Frontend.Port} {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("%s %d out of range", name, port))
		}
	}
	if c.Fetcher.PollAttempts < 0 {
		errs = append(errs, "fetcher.poll_attempts must not be negative")
	}
	seen := make(map[string]bool)
	for _, a := range c.Fetcher.Accounts {
		if seen[a] {
			errs = append(errs, fmt.Sprintf("fetcher.accounts has duplicate %q", a))
		}
		seen[a] = true
	}
	for name, l := range map[string]LoggingConfig{
		"capture": c.Capture.Logging, "fetcher": c.Fetcher.Logging,
		"analyzer": c.Analyzer.Logging, "frontend": c.Frontend.Logging,
	} {
		switch strings.ToLower(l.Level) {
		case "debug", "info", "warn", "warning", "error":
		default:
			errs = append(errs, fmt.Sprintf("%s.logging.level %q is invalid", name, l.Level))
		}
		if l.Format != "json" && l.Format != "text" {
			errs = append(errs, fmt.Sprintf("%s.logging.format %q must be json or text", name, l.Format))
		}
		if l.File.MaxBytes < 0 || l.File.BackupCount < 0 || l.Store.MaxEntries < 0 {
			errs = append(errs, fmt.Sprintf("%s.logging limits must not be negative", name))
		}
	}
	switch c.Supervisor.Restart {
	case "always", "on-failure", "never":
	default:
		errs = append(errs, fmt.Sprintf("supervisor.restart %q must be always, on-failure or never", c.Supervisor.Restart))
	}
	switch c.Events.Type {
	case "log":
	case "kafka":
		if len(c.Events.Kafka.Brokers) == 0 {
			errs = append(errs, "events.kafka.brokers must not be empty")
		}
	default:
		errs = append(errs, fmt.Sprintf("events.type %q must be log or kafka", c.Events.Type))
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LoggingFor returns the logging section of a role.
func (c *Config) LoggingFor(role string) LoggingConfig {
	switch role {
	case "capture":
		return c.Capture.Logging
	case "fetcher":
		return c.Fetcher.Logging
	case "analyzer":
		return c.Analyzer.Logging
	case "frontend":
		return c.Frontend.Logging
	}
	return LoggingConfig{Level: "info", Format: "json"}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
