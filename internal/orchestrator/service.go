// Package orchestrator wires ingest, processing, fan-out, search, and
// persistence into the running service: startup/shutdown sequencing, the
// per-session event pipeline, and the destination lifecycle.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/nextlevelbuilder/sessionscope/internal/buffer"
	"github.com/nextlevelbuilder/sessionscope/internal/config"
	"github.com/nextlevelbuilder/sessionscope/internal/destination"
	"github.com/nextlevelbuilder/sessionscope/internal/ingest"
	"github.com/nextlevelbuilder/sessionscope/internal/message"
	"github.com/nextlevelbuilder/sessionscope/internal/process"
	"github.com/nextlevelbuilder/sessionscope/internal/publish"
	"github.com/nextlevelbuilder/sessionscope/internal/search"
	"github.com/nextlevelbuilder/sessionscope/internal/sse"
	"github.com/nextlevelbuilder/sessionscope/internal/statestore"
	"github.com/nextlevelbuilder/sessionscope/internal/telemetry"
)

// sessionState is the orchestrator's live per-session bookkeeping: the
// watched path, the processing context, and the message tracker routing
// sends/edits to each attached destination.
type sessionState struct {
	mu      sync.Mutex
	path    string
	procCtx process.Context
	tracker *message.Tracker
	lineNum int

	// watchCorrelationID is fresh per attach cycle — it ties together every
	// log line for one watch lifetime even when the same session_id is
	// reattached later after a detach/keep-alive teardown.
	watchCorrelationID string
}

// Service is the running sessionscope process: every long-lived component
// plus the config file it was loaded from, for attach/detach persistence.
type Service struct {
	cfgPath string
	cfg     *config.Config

	logger    *slog.Logger
	logCloser io.Closer
	tracer    *telemetry.Tracer

	watcher    *ingest.Watcher
	buffers    *buffer.Manager
	broker     *sse.Broker
	destMgr    *destination.Manager
	states     *statestore.Store
	index      *search.Store
	publishers map[destination.Kind]publish.Publisher
	debouncer  *message.Debouncer

	mu       sync.Mutex
	sessions map[string]*sessionState

	startedAt time.Time
	cancelBg  context.CancelFunc
	bgWG      sync.WaitGroup
}

// New builds every long-lived component from the config at cfgPath. Besides
// loading the config, it creates the log file under the state directory and
// opens (creating if absent) the search index database there; it starts no
// background work and watches no files. Call Start to bring the service up.
func New(cfgPath string) (*Service, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := telemetry.NewLogger(cfg.Database.StateDir, "info", false)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	tracer, err := telemetry.NewTracer(context.Background())
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	publishers, err := buildPublishers(cfg.Bots)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("init bot publishers: %w", err)
	}

	indexPath := filepath.Join(cfg.Database.StateDir, "search.db")
	idx, err := search.Open(context.Background(), indexPath)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("open search index: %w", err)
	}

	svc := &Service{
		cfgPath:    cfgPath,
		cfg:        cfg,
		logger:     logger,
		logCloser:  closer,
		tracer:     tracer,
		buffers:    buffer.NewManager(),
		states:     statestore.New(cfg.Database.StateDir),
		index:      idx,
		publishers: publishers,
		sessions:   make(map[string]*sessionState),
	}
	svc.broker = sse.NewBroker(svc.buffers)
	svc.debouncer = message.NewDebouncer(func(key string, err error) {
		svc.logger.Warn("debounced publish failed", "key", key, "error", err)
	})
	svc.destMgr = destination.NewManager(svc.onSessionStart, svc.onSessionStop)

	watcher, err := ingest.New(svc.handleWatcherChange, svc.handleWatcherDelete)
	if err != nil {
		idx.Close()
		closer.Close()
		return nil, fmt.Errorf("init file watcher: %w", err)
	}
	svc.watcher = watcher

	return svc, nil
}

// Start brings the service fully up: it opens the index (already done by
// New), builds it if empty, starts background refresh/checkpoint/backup
// tasks, resumes every session with persisted destinations, and starts the
// file watcher.
func (s *Service) Start(ctx context.Context) error {
	s.startedAt = time.Now()

	if s.cfg.Database.VacuumOnStartup {
		if err := s.index.Vacuum(ctx); err != nil {
			s.logger.Warn("startup vacuum failed", "error", err)
		}
	}

	stats, err := s.index.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read index stats: %w", err)
	}
	if stats.Sessions == 0 && len(s.cfg.Index.Paths) > 0 {
		if _, err := s.index.Refresh(ctx, s.refreshOptions()); err != nil {
			s.logger.Warn("initial index build failed", "error", err)
		}
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	s.cancelBg = cancel
	s.startBackgroundTasks(bgCtx)

	sessions := make(map[string][]destination.Destination, len(s.cfg.Sessions))
	for id, spec := range s.cfg.Sessions {
		sessions[id] = destinationsFromSpec(spec.Destinations)
	}
	s.destMgr.RestoreFromConfig(sessions)

	go s.watcher.Start()

	s.logger.Info("sessionscope started", "sessions", len(sessions), "bots", len(s.publishers))
	return nil
}

// Stop shuts the service down within a bounded grace period: it stops
// accepting new work, flushes pending debounced sends, tells every
// connected SSE client the session ended, persists every session's state,
// and releases every held resource.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancelBg != nil {
		s.cancelBg()
	}
	s.watcher.Stop()

	s.debouncer.Flush()

	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.broker.CloseSession(id, "shutdown")
		s.persistState(id)
	}

	done := make(chan struct{})
	go func() {
		s.bgWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.logger.Warn("background tasks did not stop within grace period")
	case <-ctx.Done():
	}

	s.destMgr.Shutdown()

	for kind, p := range s.publishers {
		if err := p.Close(); err != nil {
			s.logger.Warn("publisher close failed", "platform", kind, "error", err)
		}
	}

	if err := s.index.Close(); err != nil {
		s.logger.Warn("search index close failed", "error", err)
	}

	if err := s.tracer.Shutdown(ctx); err != nil {
		s.logger.Warn("tracer shutdown failed", "error", err)
	}

	if s.logCloser != nil {
		s.logCloser.Close()
	}
	return nil
}

func (s *Service) refreshOptions() search.RefreshOptions {
	return search.RefreshOptions{
		Paths:              s.cfg.Index.Paths,
		IncludeSubagents:   s.cfg.Index.IncludeSubagents,
		MaxSessionsPerProj: s.cfg.Index.MaxSessionsPerProj,
	}
}

func destinationsFromSpec(d config.DestinationsConfig) []destination.Destination {
	var out []destination.Destination
	for _, t := range d.Telegram {
		out = append(out, destination.Destination{Kind: destination.KindTelegram, Identifier: t.ChatID, ThreadID: t.ThreadID})
	}
	for _, sl := range d.Slack {
		out = append(out, destination.Destination{Kind: destination.KindSlack, Identifier: sl.Channel})
	}
	for _, dc := range d.Discord {
		out = append(out, destination.Destination{Kind: destination.KindDiscord, Identifier: dc.ChannelID})
	}
	return out
}
