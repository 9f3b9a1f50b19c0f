package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Index.RefreshInterval != 300 {
		t.Fatalf("refresh interval = %d, want default 300", cfg.Index.RefreshInterval)
	}
	if cfg.Search.DefaultSort != "relevance" {
		t.Fatalf("default sort = %q", cfg.Search.DefaultSort)
	}
}

func TestLoadCurrentYAMLFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.yaml", `
bots:
  telegram:
    token: "abc123"
sessions:
  sess1:
    path: /tmp/sess1.jsonl
    destinations:
      telegram:
        - chat_id: "-100200"
index:
  paths:
    - /data/sessions
  refresh_interval: 60
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bots.Telegram.Token != "abc123" {
		t.Fatalf("token = %q", cfg.Bots.Telegram.Token)
	}
	sess, ok := cfg.Sessions["sess1"]
	if !ok {
		t.Fatalf("expected sess1 in sessions, got %+v", cfg.Sessions)
	}
	if sess.Path != "/tmp/sess1.jsonl" {
		t.Fatalf("path = %q", sess.Path)
	}
	if len(sess.Destinations.Telegram) != 1 || sess.Destinations.Telegram[0].ChatID != "-100200" {
		t.Fatalf("destinations = %+v", sess.Destinations)
	}
	if cfg.Index.RefreshInterval != 60 {
		t.Fatalf("refresh interval = %d, want 60 (file value preserved)", cfg.Index.RefreshInterval)
	}
	// search/database sections absent from the file fall back to defaults.
	if cfg.Search.DefaultLimit != 20 {
		t.Fatalf("default limit = %d, want default 20", cfg.Search.DefaultLimit)
	}
	if cfg.Database.StateDir != "./state" {
		t.Fatalf("state dir = %q, want default", cfg.Database.StateDir)
	}
}

func TestLoadLegacyListOfSessionsMigrates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "legacy.json5", `{
		bots: { telegram: { token: "legacy-token" } },
		sessions: [
			{ id: "sessA", path: "/tmp/a.jsonl", destinations: { slack: [{ channel: "C123" }] } },
			{ id: "sessB", path: "/tmp/b.jsonl" },
		],
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sessions) != 2 {
		t.Fatalf("expected 2 migrated sessions, got %d: %+v", len(cfg.Sessions), cfg.Sessions)
	}
	a, ok := cfg.Sessions["sessA"]
	if !ok || a.Path != "/tmp/a.jsonl" {
		t.Fatalf("sessA missing or wrong: %+v", cfg.Sessions)
	}
	if len(a.Destinations.Slack) != 1 || a.Destinations.Slack[0].Channel != "C123" {
		t.Fatalf("sessA destinations = %+v", a.Destinations)
	}
	if cfg.Bots.Telegram.Token != "legacy-token" {
		t.Fatalf("token = %q", cfg.Bots.Telegram.Token)
	}
	// missing sections still default after legacy migration.
	if cfg.Index.RefreshInterval != 300 {
		t.Fatalf("refresh interval = %d, want default 300", cfg.Index.RefreshInterval)
	}
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("SESSIONSCOPE_STATE_DIR", "/env/state")
	t.Setenv("SESSIONSCOPE_REFRESH_INTERVAL", "45")
	t.Setenv("SESSIONSCOPE_TELEGRAM_WEBHOOK_URL", "https://example.com/hook")

	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.yaml", `
index:
  refresh_interval: 60
database:
  state_dir: /file/state
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.StateDir != "/env/state" {
		t.Fatalf("state dir = %q, want env override", cfg.Database.StateDir)
	}
	if cfg.Index.RefreshInterval != 45 {
		t.Fatalf("refresh interval = %d, want env override 45", cfg.Index.RefreshInterval)
	}
	if cfg.Bots.Telegram.WebhookURL != "https://example.com/hook" {
		t.Fatalf("webhook url = %q", cfg.Bots.Telegram.WebhookURL)
	}
}

func TestSaveWritesReadableYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")
	cfg := Default()
	cfg.Sessions["s1"] = SessionSpec{Path: "/tmp/s1.jsonl"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := reloaded.Sessions["s1"]; !ok {
		t.Fatalf("expected s1 after round-trip, got %+v", reloaded.Sessions)
	}
}
