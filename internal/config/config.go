package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/psantana5/botkeeper/internal/supervisor"
)

// Config is the complete daemon configuration
type Config struct {
	// Child process: fixed interpreter, fixed script, fixed workdir
	Child ChildConfig `yaml:"child"`

	// Log files and daemon log level
	Logging LoggingConfig `yaml:"logging"`

	// Restart behavior
	Restart RestartConfig `yaml:"restart"`

	// Status API
	Server ServerConfig `yaml:"server"`

	// Cycle history persistence
	History HistoryConfig `yaml:"history"`

	// Passive child sampling
	Observe ObserveConfig `yaml:"observe"`

	// OpenTelemetry export
	Tracing TracingConfig `yaml:"tracing"`

	// Singleton guard
	PidFile string `yaml:"pid_file"`
}

// ChildConfig identifies the bot process
type ChildConfig struct {
	Interpreter string `yaml:"interpreter"` // e.g. /usr/bin/python3
	Script      string `yaml:"script"`      // sole argument to the interpreter
	WorkDir     string `yaml:"workdir"`     // defaults to the script's directory
}

// LoggingConfig locates the two append-only logs
type LoggingConfig struct {
	Dir        string `yaml:"dir"`
	StartupLog string `yaml:"startup_log"`
	ChildLog   string `yaml:"child_log"`
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
}

// RestartConfig holds the fixed cooldown
type RestartConfig struct {
	Cooldown string `yaml:"cooldown"` // e.g. "10s"; constant, no backoff
}

// ServerConfig configures the status API
type ServerConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Listen     string  `yaml:"listen"`
	APIKeyHash string  `yaml:"api_key_hash"` // bcrypt hash from `botkeeper keygen`
	RateLimit  float64 `yaml:"rate_limit"`   // requests/second per client IP
	RateBurst  int     `yaml:"rate_burst"`
	TLSCert    string  `yaml:"tls_cert"`
	TLSKey     string  `yaml:"tls_key"`
}

// HistoryConfig selects and tunes the cycle store
type HistoryConfig struct {
	Backend         string `yaml:"backend"` // memory | sqlite | postgres
	Path            string `yaml:"path"`    // sqlite file
	DSN             string `yaml:"dsn"`     // postgres connection string
	Keep            int    `yaml:"keep"`    // memory ring size
	RetentionDays   int    `yaml:"retention_days"`
	CleanupInterval string `yaml:"cleanup_interval"`
	VacuumInterval  string `yaml:"vacuum_interval"`
}

// ObserveConfig tunes the passive child sampler
type ObserveConfig struct {
	SampleInterval string `yaml:"sample_interval"`
}

// TracingConfig configures the OTLP exporter
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"` // e.g. "localhost:4318"
	Environment string `yaml:"environment"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// Default returns the built-in configuration
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Child.Interpreter == "" {
		c.Child.Interpreter = "python3"
	}
	if c.Child.WorkDir == "" && c.Child.Script != "" {
		c.Child.WorkDir = filepath.Dir(c.Child.Script)
	}

	if c.Logging.Dir == "" {
		c.Logging.Dir = "./logs"
	}
	if c.Logging.StartupLog == "" {
		c.Logging.StartupLog = "startup.log"
	}
	if c.Logging.ChildLog == "" {
		c.Logging.ChildLog = "bot.log"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Restart.Cooldown == "" {
		c.Restart.Cooldown = "10s"
	}

	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8780"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 10
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 20
	}

	if c.History.Backend == "" {
		c.History.Backend = "memory"
	}
	if c.History.Keep == 0 {
		c.History.Keep = 200
	}
	if c.History.RetentionDays == 0 {
		c.History.RetentionDays = 7
	}
	if c.History.CleanupInterval == "" {
		c.History.CleanupInterval = "24h"
	}
	if c.History.VacuumInterval == "" {
		c.History.VacuumInterval = "168h"
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.Logging.Dir, "history.db")
	}

	if c.Observe.SampleInterval == "" {
		c.Observe.SampleInterval = "5s"
	}

	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4318"
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = "production"
	}

	if c.PidFile == "" {
		c.PidFile = filepath.Join(c.Logging.Dir, "botkeeper.pid")
	}
}

// Validate checks required fields and duration syntax
func (c *Config) Validate() error {
	if c.Child.Script == "" {
		return fmt.Errorf("child.script is required")
	}
	if c.Child.Interpreter == "" {
		return fmt.Errorf("child.interpreter is required")
	}

	cooldown, err := time.ParseDuration(c.Restart.Cooldown)
	if err != nil {
		return fmt.Errorf("invalid restart.cooldown: %w", err)
	}
	if cooldown < time.Second {
		return fmt.Errorf("restart.cooldown must be at least 1s, got %s", cooldown)
	}

	switch c.History.Backend {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown history.backend: %s", c.History.Backend)
	}
	if c.History.Backend == "postgres" && c.History.DSN == "" {
		return fmt.Errorf("history.dsn is required for the postgres backend")
	}

	if _, err := time.ParseDuration(c.History.CleanupInterval); err != nil {
		return fmt.Errorf("invalid history.cleanup_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.History.VacuumInterval); err != nil {
		return fmt.Errorf("invalid history.vacuum_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Observe.SampleInterval); err != nil {
		return fmt.Errorf("invalid observe.sample_interval: %w", err)
	}

	return nil
}

// ToSupervisorConfig converts the file config into the supervisor's runtime config
func (c *Config) ToSupervisorConfig() (supervisor.Config, error) {
	cooldown, err := time.ParseDuration(c.Restart.Cooldown)
	if err != nil {
		return supervisor.Config{}, fmt.Errorf("invalid restart.cooldown: %w", err)
	}

	workDir := c.Child.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(c.Child.Script)
	}

	return supervisor.Config{
		Interpreter: c.Child.Interpreter,
		Script:      c.Child.Script,
		WorkDir:     workDir,
		LogDir:      c.Logging.Dir,
		ChildLog:    filepath.Join(c.Logging.Dir, c.Logging.ChildLog),
		Cooldown:    cooldown,
	}, nil
}

// SampleInterval returns the parsed observer interval
func (c *Config) SampleInterval() time.Duration {
	d, err := time.ParseDuration(c.Observe.SampleInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// StartupLogPath returns the full path of the startup log
func (c *Config) StartupLogPath() string {
	return filepath.Join(c.Logging.Dir, c.Logging.StartupLog)
}

// Example configuration as a string
const ExampleConfig = `# botkeeper configuration

# The bot process under supervision. The supervisor launches
# <interpreter> <script> in <workdir> and restarts it whenever it exits.
child:
  interpreter: python3
  script: /opt/tgbot/telegram_bot_cloud.py
  workdir: /opt/tgbot

# Both logs are append-only; botkeeper never truncates or rotates them.
logging:
  dir: ./logs
  startup_log: startup.log   # timestamped supervisor events
  child_log: bot.log         # raw combined stdout+stderr of the bot
  level: info
  json: false

# Fixed delay between an exit and the next launch. Constant on purpose:
# no jitter, no exponential backoff, no retry cutoff.
restart:
  cooldown: "10s"

# Local status API (status, history, events, metrics, restart)
server:
  enabled: true
  listen: 127.0.0.1:8780
  api_key_hash: ""    # from: botkeeper keygen
  rate_limit: 10      # requests/second per client IP
  rate_burst: 20
  tls_cert: ""
  tls_key: ""

# Where finished cycles are kept
history:
  backend: memory     # memory | sqlite | postgres
  path: ./logs/history.db
  dsn: ""             # postgres only
  keep: 200           # memory ring size
  retention_days: 7
  cleanup_interval: "24h"
  vacuum_interval: "168h"

# Passive CPU/RSS sampling of the running bot
observe:
  sample_interval: "5s"

# OTLP trace export (disabled by default)
tracing:
  enabled: false
  endpoint: localhost:4318
  environment: production

pid_file: ./logs/botkeeper.pid
`
