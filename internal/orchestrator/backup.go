package orchestrator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// rotatingBackupPath derives a timestamped backup file name under dir so
// successive backups don't overwrite one another.
func rotatingBackupPath(dir string, at time.Time) string {
	name := fmt.Sprintf("search-%s.db", at.UTC().Format("20060102T150405Z"))
	return filepath.Join(dir, name)
}

// pruneOldBackups deletes the oldest backup files under dir beyond keep,
// ordered by name (which sorts chronologically given rotatingBackupPath's
// timestamp prefix).
func pruneOldBackups(dir string, keep int, logger *slog.Logger) {
	if keep <= 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".db" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) <= keep {
		return
	}
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			logger.Warn("failed to prune old backup", "file", name, "error", err)
		}
	}
}
