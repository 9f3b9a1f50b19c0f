// Package config loads and migrates the YAML-shaped configuration for
// bots, watched sessions, the search index, and the state database.
package config

// Config is the root configuration tree, persisted as YAML. The same
// struct tags double as the legacy JSON5 reader's field mapping.
type Config struct {
	Bots     BotsConfig             `yaml:"bots" json:"bots"`
	Sessions map[string]SessionSpec `yaml:"sessions" json:"sessions"`
	Index    IndexConfig            `yaml:"index" json:"index"`
	Search   SearchConfig           `yaml:"search" json:"search"`
	Database DatabaseConfig         `yaml:"database" json:"database"`
}

// BotsConfig holds per-platform bot credentials. A zero-value entry means
// that bot is not configured; the orchestrator initializes only the bots
// with a non-empty token.
type BotsConfig struct {
	Telegram TelegramBotConfig `yaml:"telegram,omitempty" json:"telegram,omitempty"`
	Slack    SlackBotConfig    `yaml:"slack,omitempty" json:"slack,omitempty"`
	Discord  DiscordBotConfig  `yaml:"discord,omitempty" json:"discord,omitempty"`
}

type TelegramBotConfig struct {
	Token      string `yaml:"token,omitempty" json:"token,omitempty"`
	Mode       string `yaml:"mode,omitempty" json:"mode,omitempty"` // "polling" (default) or "webhook"
	WebhookURL string `yaml:"webhook_url,omitempty" json:"webhook_url,omitempty"`
}

type SlackBotConfig struct {
	Token         string `yaml:"token,omitempty" json:"token,omitempty"`
	SigningSecret string `yaml:"signing_secret,omitempty" json:"signing_secret,omitempty"`
}

type DiscordBotConfig struct {
	Token string `yaml:"token,omitempty" json:"token,omitempty"`
}

// SessionSpec is one watched session: the transcript file and the
// destinations it fans out to.
type SessionSpec struct {
	Path         string             `yaml:"path" json:"path"`
	Destinations DestinationsConfig `yaml:"destinations" json:"destinations"`
}

type DestinationsConfig struct {
	Telegram []TelegramDestination `yaml:"telegram,omitempty" json:"telegram,omitempty"`
	Slack    []SlackDestination    `yaml:"slack,omitempty" json:"slack,omitempty"`
	Discord  []DiscordDestination  `yaml:"discord,omitempty" json:"discord,omitempty"`
}

type TelegramDestination struct {
	ChatID   string `yaml:"chat_id" json:"chat_id"`
	ThreadID *int   `yaml:"thread_id,omitempty" json:"thread_id,omitempty"`
}

type SlackDestination struct {
	Channel string `yaml:"channel" json:"channel"`
}

type DiscordDestination struct {
	ChannelID string `yaml:"channel_id" json:"channel_id"`
}

// IndexConfig drives the search index's incremental scan.
type IndexConfig struct {
	Paths              []string `yaml:"paths" json:"paths"`
	RefreshInterval    int      `yaml:"refresh_interval" json:"refresh_interval"` // seconds
	RefreshCron        string   `yaml:"refresh_cron,omitempty" json:"refresh_cron,omitempty"`
	MaxSessionsPerProj int      `yaml:"max_sessions_per_project" json:"max_sessions_per_project"`
	IncludeSubagents   bool     `yaml:"include_subagents" json:"include_subagents"`
	Persist            bool     `yaml:"persist" json:"persist"`
}

// SearchConfig bounds /search behavior.
type SearchConfig struct {
	DefaultLimit    int    `yaml:"default_limit" json:"default_limit"`
	MaxLimit        int    `yaml:"max_limit" json:"max_limit"`
	DefaultSort     string `yaml:"default_sort" json:"default_sort"` // "relevance" or "recent"
	StateTTLSeconds int    `yaml:"state_ttl_seconds" json:"state_ttl_seconds"`
}

// DatabaseConfig configures the state store and search index database.
type DatabaseConfig struct {
	StateDir           string       `yaml:"state_dir" json:"state_dir"`
	CheckpointInterval int          `yaml:"checkpoint_interval" json:"checkpoint_interval"` // seconds
	VacuumOnStartup    bool         `yaml:"vacuum_on_startup" json:"vacuum_on_startup"`
	Backup             BackupConfig `yaml:"backup" json:"backup"`
}

type BackupConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Path      string `yaml:"path,omitempty" json:"path,omitempty"`
	KeepCount int    `yaml:"keep_count,omitempty" json:"keep_count,omitempty"`
}

// Default returns a Config with the defaults named in the external
// interfaces table, before any file or environment overrides are applied.
func Default() *Config {
	return &Config{
		Sessions: map[string]SessionSpec{},
		Index: IndexConfig{
			RefreshInterval:    300,
			MaxSessionsPerProj: 0,
			IncludeSubagents:   false,
			Persist:            true,
		},
		Search: SearchConfig{
			DefaultLimit:    20,
			MaxLimit:        100,
			DefaultSort:     "relevance",
			StateTTLSeconds: 3600,
		},
		Database: DatabaseConfig{
			StateDir:           "./state",
			CheckpointInterval: 300,
			VacuumOnStartup:    false,
			Backup: BackupConfig{
				KeepCount: 5,
			},
		},
	}
}
