package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// Load reads config from a YAML file, falling back to the legacy JSON5
// list-of-sessions format when the file doesn't parse as the current
// shape, then overlays environment variables. A missing file yields
// Default() with environment overrides applied, rather than an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if yamlErr := yaml.Unmarshal(data, cfg); yamlErr != nil {
		legacy := &legacyConfig{}
		if json5Err := json5.Unmarshal(data, legacy); json5Err != nil {
			return nil, fmt.Errorf("parse config: %w", yamlErr)
		}
		cfg = migrateLegacy(legacy)
	}

	fillDefaults(cfg)
	cfg.applyEnvOverrides()
	return cfg, nil
}

// fillDefaults replaces zero-valued Index/Search/Database sections with
// Default()'s values, covering both a file that omits a section entirely
// and a legacy document whose migrated struct left one untouched.
func fillDefaults(cfg *Config) {
	d := Default()
	if cfg.Sessions == nil {
		cfg.Sessions = map[string]SessionSpec{}
	}
	if cfg.Index.RefreshInterval == 0 {
		cfg.Index.RefreshInterval = d.Index.RefreshInterval
	}
	if cfg.Search == (SearchConfig{}) {
		cfg.Search = d.Search
	}
	if cfg.Database.StateDir == "" {
		cfg.Database = d.Database
	}
}

// applyEnvOverrides overlays the environment variables the external
// interfaces table names: index paths, refresh interval, state dir,
// checkpoint interval, and the Telegram webhook URL.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SESSIONSCOPE_INDEX_PATHS"); v != "" {
		c.Index.Paths = strings.Split(v, ",")
	}
	if v := os.Getenv("SESSIONSCOPE_REFRESH_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.RefreshInterval = n
		}
	}
	if v := os.Getenv("SESSIONSCOPE_STATE_DIR"); v != "" {
		c.Database.StateDir = v
	}
	if v := os.Getenv("SESSIONSCOPE_CHECKPOINT_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Database.CheckpointInterval = n
		}
	}
	if v := os.Getenv("SESSIONSCOPE_TELEGRAM_WEBHOOK_URL"); v != "" {
		c.Bots.Telegram.WebhookURL = v
	}
	if v := os.Getenv("SESSIONSCOPE_TELEGRAM_TOKEN"); v != "" {
		c.Bots.Telegram.Token = v
	}
	if v := os.Getenv("SESSIONSCOPE_SLACK_TOKEN"); v != "" {
		c.Bots.Slack.Token = v
	}
	if v := os.Getenv("SESSIONSCOPE_DISCORD_TOKEN"); v != "" {
		c.Bots.Discord.Token = v
	}
}

// Save writes cfg to path in the current YAML format.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}
