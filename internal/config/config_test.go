package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
child:
  script: /opt/tgbot/telegram_bot_cloud.py
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Child.Interpreter != "python3" {
		t.Errorf("interpreter = %q, want python3", cfg.Child.Interpreter)
	}
	if cfg.Child.WorkDir != "/opt/tgbot" {
		t.Errorf("workdir = %q, want script dir", cfg.Child.WorkDir)
	}
	if cfg.Restart.Cooldown != "10s" {
		t.Errorf("cooldown = %q, want 10s", cfg.Restart.Cooldown)
	}
	if cfg.Logging.Dir != "./logs" {
		t.Errorf("log dir = %q, want ./logs", cfg.Logging.Dir)
	}
	if cfg.History.Backend != "memory" {
		t.Errorf("history backend = %q, want memory", cfg.History.Backend)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadConfig on missing file = nil, want error")
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfig(t, "child: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig on broken yaml = nil, want error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing script",
			mutate:  func(c *Config) { c.Child.Script = "" },
			wantErr: true,
		},
		{
			name:    "bad cooldown syntax",
			mutate:  func(c *Config) { c.Restart.Cooldown = "ten seconds" },
			wantErr: true,
		},
		{
			name:    "sub-second cooldown",
			mutate:  func(c *Config) { c.Restart.Cooldown = "100ms" },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.History.Backend = "redis" },
			wantErr: true,
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.History.Backend = "postgres" },
			wantErr: true,
		},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.History.Backend = "postgres"
				c.History.DSN = "postgres://localhost/botkeeper?sslmode=disable"
			},
			wantErr: false,
		},
		{
			name:    "bad cleanup interval",
			mutate:  func(c *Config) { c.History.CleanupInterval = "daily" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Child.Script = "/opt/tgbot/bot.py"
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToSupervisorConfig(t *testing.T) {
	cfg := Default()
	cfg.Child.Script = "/opt/tgbot/bot.py"
	cfg.Child.Interpreter = "/usr/bin/python3"
	cfg.Restart.Cooldown = "15s"
	cfg.Logging.Dir = "/var/log/botkeeper"

	sc, err := cfg.ToSupervisorConfig()
	if err != nil {
		t.Fatalf("ToSupervisorConfig: %v", err)
	}

	if sc.Cooldown != 15*time.Second {
		t.Errorf("cooldown = %v, want 15s", sc.Cooldown)
	}
	if sc.WorkDir != "/opt/tgbot" {
		t.Errorf("workdir = %q, want /opt/tgbot", sc.WorkDir)
	}
	if sc.ChildLog != "/var/log/botkeeper/bot.log" {
		t.Errorf("child log = %q, want /var/log/botkeeper/bot.log", sc.ChildLog)
	}
	if sc.Interpreter != "/usr/bin/python3" {
		t.Errorf("interpreter = %q", sc.Interpreter)
	}
}

func TestExampleConfigParses(t *testing.T) {
	path := writeConfig(t, ExampleConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("ExampleConfig does not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("ExampleConfig does not validate: %v", err)
	}
	if cfg.Child.Script != "/opt/tgbot/telegram_bot_cloud.py" {
		t.Errorf("script = %q", cfg.Child.Script)
	}
}
