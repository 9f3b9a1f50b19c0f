package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/sessionscope/internal/search"
)

// checkpointMargin schedules the WAL checkpoint slightly out of phase with
// refresh so the two maintenance passes don't compete for the same lock.
const checkpointMargin = 5 * time.Second

// startBackgroundTasks launches the index refresh, checkpoint, and backup
// loops. Each loop exits when ctx is cancelled; Stop waits on bgWG for
// every one to return.
func (s *Service) startBackgroundTasks(ctx context.Context) {
	s.bgWG.Add(1)
	go s.runRefreshLoop(ctx)

	if s.cfg.Database.CheckpointInterval > 0 {
		s.bgWG.Add(1)
		go s.runCheckpointLoop(ctx)
	}

	if s.cfg.Database.Backup.Enabled {
		s.bgWG.Add(1)
		go s.runBackupLoop(ctx)
	}
}

func (s *Service) runRefreshLoop(ctx context.Context) {
	defer s.bgWG.Done()

	if s.cfg.Index.RefreshCron != "" {
		s.runCronLoop(ctx, s.cfg.Index.RefreshCron, s.refreshIndex)
		return
	}

	interval := time.Duration(s.cfg.Index.RefreshInterval) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshIndex(ctx)
		}
	}
}

func (s *Service) runCheckpointLoop(ctx context.Context) {
	defer s.bgWG.Done()
	interval := time.Duration(s.cfg.Database.CheckpointInterval)*time.Second + checkpointMargin
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.index.Checkpoint(ctx); err != nil {
				s.logger.Warn("index checkpoint failed", "error", err)
			}
		}
	}
}

func (s *Service) runBackupLoop(ctx context.Context) {
	defer s.bgWG.Done()
	// Backups run on the same cadence as the refresh interval, since a
	// backup is only worth taking after the index has changed.
	interval := time.Duration(s.cfg.Index.RefreshInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runBackup(ctx)
		}
	}
}

func (s *Service) runBackup(ctx context.Context) {
	dest := s.cfg.Database.Backup.Path
	if dest == "" {
		return
	}
	target := rotatingBackupPath(dest, time.Now())
	if err := s.index.Backup(ctx, target); err != nil {
		s.logger.Warn("index backup failed", "error", err, "target", target)
		return
	}
	pruneOldBackups(dest, s.cfg.Database.Backup.KeepCount, s.logger)
}

func (s *Service) refreshIndex(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "search.refresh")
	defer span.End()

	result, err := s.index.Refresh(ctx, s.refreshOptions())
	if err != nil {
		if errors.Is(err, search.ErrCorrupt) {
			s.logger.Error("index corruption detected during refresh", "error", err)
			s.recoverAndRebuildIndex(ctx)
			return
		}
		s.logger.Warn("index refresh failed", "error", err)
		return
	}
	s.logger.Info("index refreshed", "scanned", result.Scanned, "updated", result.Updated, "skipped", result.Skipped)
}

// recoverAndRebuildIndex rebuilds the index database in place after
// refreshIndex sees a corruption-classified error, then runs a full Refresh
// pass against the freshly recreated (empty) database.
func (s *Service) recoverAndRebuildIndex(ctx context.Context) {
	if err := s.index.Recover(ctx); err != nil {
		s.logger.Error("index recovery failed", "error", err)
		return
	}
	result, err := s.index.Refresh(ctx, s.refreshOptions())
	if err != nil {
		s.logger.Warn("index rebuild after recovery failed", "error", err)
		return
	}
	s.logger.Info("index rebuilt after corruption recovery", "scanned", result.Scanned, "updated", result.Updated, "skipped", result.Skipped)
}

// runCronLoop wakes once a minute (gronx's cron expressions have
// minute-level granularity) and runs fn whenever expr is due.
func (s *Service) runCronLoop(ctx context.Context, expr string, fn func(context.Context)) {
	g := gronx.New()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := g.IsDue(expr)
			if err != nil {
				s.logger.Warn("invalid refresh cron expression", "expr", expr, "error", err)
				continue
			}
			if due {
				fn(ctx)
			}
		}
	}
}
