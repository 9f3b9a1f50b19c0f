package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
	"github.com/nextlevelbuilder/sessionscope/internal/buffer"
	"github.com/nextlevelbuilder/sessionscope/internal/config"
	"github.com/nextlevelbuilder/sessionscope/internal/destination"
	"github.com/nextlevelbuilder/sessionscope/internal/publish"
	"github.com/nextlevelbuilder/sessionscope/internal/render"
	"github.com/nextlevelbuilder/sessionscope/internal/search"
	"github.com/nextlevelbuilder/sessionscope/internal/sse"
)

// ErrNoBotToken is returned by Attach when the requested destination's
// platform has no bot token configured at all.
var ErrNoBotToken = errors.New("orchestrator: no bot token configured for platform")

// ErrBadCredentials is returned by Attach when the configured bot token
// fails the platform's identity check.
var ErrBadCredentials = errors.New("orchestrator: bot credential validation failed")

// ErrFileMissing is returned by Attach for a brand-new session whose
// transcript path does not exist.
var ErrFileMissing = errors.New("orchestrator: session file does not exist")

// AttachRequest describes one /attach call.
type AttachRequest struct {
	SessionID   string
	Path        string // required only for a session with no prior path
	Destination destination.Destination
	ReplayCount int
}

// AttachResult reports what Attach did.
type AttachResult struct {
	Attached       bool
	ReplayedEvents int
}

// Attach validates the destination's bot credentials, resolves the
// session's transcript path, and registers the destination — starting the
// session's pipeline if this is its first destination. If replayCount is
// positive, the destination's most recently buffered content is sent
// immediately as a single catch-up message.
func (s *Service) Attach(ctx context.Context, req AttachRequest) (AttachResult, error) {
	publisher, ok := s.publishers[req.Destination.Kind]
	if !ok {
		return AttachResult{}, ErrNoBotToken
	}
	if err := publisher.Validate(ctx); err != nil {
		return AttachResult{}, fmt.Errorf("%w: %v", ErrBadCredentials, err)
	}

	path, hadPath := s.pathFor(req.SessionID)
	if !hadPath {
		if req.Path == "" {
			return AttachResult{}, ErrFileMissing
		}
		if _, err := os.Stat(req.Path); err != nil {
			return AttachResult{}, fmt.Errorf("%w: %v", ErrFileMissing, err)
		}
		path = req.Path
	}

	s.mu.Lock()
	spec := s.cfg.Sessions[req.SessionID]
	spec.Path = path
	spec.Destinations = addDestination(spec.Destinations, req.Destination)
	s.cfg.Sessions[req.SessionID] = spec
	s.mu.Unlock()
	if err := config.Save(s.cfgPath, s.cfg); err != nil {
		s.logger.Warn("failed to persist config after attach", "session_id", req.SessionID, "error", err)
	}

	if err := s.destMgr.Attach(req.SessionID, req.Destination); err != nil {
		return AttachResult{}, err
	}

	replayed := 0
	if req.ReplayCount > 0 {
		replayed = s.replayCatchUp(ctx, req.SessionID, req.Destination, publisher, req.ReplayCount)
	}

	return AttachResult{Attached: true, ReplayedEvents: replayed}, nil
}

// Detach removes dest from sessionID. If this was the session's last
// destination, the keep-alive countdown begins before the pipeline tears
// down.
func (s *Service) Detach(sessionID string, dest destination.Destination) error {
	if err := s.destMgr.Detach(sessionID, dest); err != nil {
		return err
	}

	s.mu.Lock()
	spec, ok := s.cfg.Sessions[sessionID]
	if ok {
		spec.Destinations = removeDestination(spec.Destinations, dest)
		s.cfg.Sessions[sessionID] = spec
	}
	s.mu.Unlock()
	if err := config.Save(s.cfgPath, s.cfg); err != nil {
		s.logger.Warn("failed to persist config after detach", "session_id", sessionID, "error", err)
	}
	return nil
}

// replayCatchUp sends the destination's most recently buffered blocks as
// one standalone message, outside the tracker's send/edit bookkeeping — a
// newly attached destination has no prior message of its own to edit.
func (s *Service) replayCatchUp(ctx context.Context, sessionID string, dest destination.Destination, publisher publish.Publisher, replayCount int) int {
	entries := s.buffers.For(sessionID).GetSince("")
	if len(entries) > replayCount {
		entries = entries[len(entries)-replayCount:]
	}
	blocks := applyEntries(entries)
	if len(blocks) == 0 {
		return 0
	}

	content, err := renderFor(dest.Kind, blocks)
	if err != nil {
		return 0
	}
	if _, err := publisher.Send(ctx, publisherIdentifier(dest), content); err != nil {
		s.logger.Warn("catch-up send failed", "platform", dest.Kind, "session_id", sessionID, "error", err)
		return 0
	}
	return len(entries)
}

// ListedSession is one row of a /sessions listing.
type ListedSession struct {
	SessionID    string
	Destinations []destination.Destination
}

// ListSessions reports every session with at least one live destination.
func (s *Service) ListSessions() []ListedSession {
	s.mu.Lock()
	ids := make([]string, 0, len(s.cfg.Sessions))
	for id := range s.cfg.Sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	out := make([]ListedSession, 0, len(ids))
	for _, id := range ids {
		attached := s.destMgr.Destinations(id)
		if len(attached) == 0 {
			continue
		}
		row := ListedSession{SessionID: id}
		for _, a := range attached {
			row.Destinations = append(row.Destinations, a.Destination)
		}
		out = append(out, row)
	}
	return out
}

// Preview renders the blocks described by the last limit buffered events
// for sessionID (all buffered events when limit is 0) as plain text, for
// the REST preview endpoint.
func (s *Service) Preview(sessionID string, limit int) string {
	entries := s.buffers.For(sessionID).GetSince("")
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return render.Render(applyEntries(entries))
}

// Search proxies to the underlying index, for the REST /search endpoint.
func (s *Service) Search(ctx context.Context, q search.Query) (search.Results, error) {
	return s.index.Search(ctx, q)
}

// Projects proxies to the underlying index, for the REST /projects endpoint.
func (s *Service) Projects(ctx context.Context) ([]search.ProjectSummary, error) {
	return s.index.Projects(ctx)
}

// RefreshIndex runs one on-demand index refresh, for the REST
// /index/refresh endpoint.
func (s *Service) RefreshIndex(ctx context.Context) (search.RefreshResult, error) {
	return s.index.Refresh(ctx, s.refreshOptions())
}

// Broker exposes the SSE broker for the REST /sessions/{id}/events handler.
func (s *Service) Broker() *sse.Broker { return s.broker }

// Logger exposes the service's structured logger, for the owning command to
// log its own lifecycle events through the same sink.
func (s *Service) Logger() *slog.Logger { return s.logger }

// ConfiguredBots reports which platforms have a live publisher, for the
// /health endpoint's bot status block.
func (s *Service) ConfiguredBots() map[string]bool {
	out := make(map[string]bool, 3)
	for _, kind := range []destination.Kind{destination.KindTelegram, destination.KindSlack, destination.KindDiscord} {
		_, ok := s.publishers[kind]
		out[string(kind)] = ok
	}
	return out
}

// IndexStats exposes aggregate index counts for the /health endpoint.
func (s *Service) IndexStats(ctx context.Context) (search.Stats, error) {
	return s.index.Stats(ctx)
}

// Uptime reports how long the service has been running, for /health.
func (s *Service) Uptime() (started bool, seconds float64) {
	if s.startedAt.IsZero() {
		return false, 0
	}
	return true, time.Since(s.startedAt).Seconds()
}

// applyEntries replays a run of buffered events against a fresh Consumer,
// reconstructing the ordered block list they describe.
func applyEntries(entries []buffer.Entry) []block.Block {
	c := render.NewConsumer()
	for _, e := range entries {
		c.Apply(e.Event)
	}
	return c.Blocks()
}

func addDestination(d config.DestinationsConfig, dest destination.Destination) config.DestinationsConfig {
	switch dest.Kind {
	case destination.KindTelegram:
		for _, t := range d.Telegram {
			if t.ChatID == dest.Identifier && threadEqual(t.ThreadID, dest.ThreadID) {
				return d
			}
		}
		d.Telegram = append(d.Telegram, config.TelegramDestination{ChatID: dest.Identifier, ThreadID: dest.ThreadID})
	case destination.KindSlack:
		for _, c := range d.Slack {
			if c.Channel == dest.Identifier {
				return d
			}
		}
		d.Slack = append(d.Slack, config.SlackDestination{Channel: dest.Identifier})
	case destination.KindDiscord:
		for _, c := range d.Discord {
			if c.ChannelID == dest.Identifier {
				return d
			}
		}
		d.Discord = append(d.Discord, config.DiscordDestination{ChannelID: dest.Identifier})
	}
	return d
}

func removeDestination(d config.DestinationsConfig, dest destination.Destination) config.DestinationsConfig {
	switch dest.Kind {
	case destination.KindTelegram:
		out := d.Telegram[:0]
		for _, t := range d.Telegram {
			if !(t.ChatID == dest.Identifier && threadEqual(t.ThreadID, dest.ThreadID)) {
				out = append(out, t)
			}
		}
		d.Telegram = out
	case destination.KindSlack:
		out := d.Slack[:0]
		for _, c := range d.Slack {
			if c.Channel != dest.Identifier {
				out = append(out, c)
			}
		}
		d.Slack = out
	case destination.KindDiscord:
		out := d.Discord[:0]
		for _, c := range d.Discord {
			if c.ChannelID != dest.Identifier {
				out = append(out, c)
			}
		}
		d.Discord = out
	}
	return d
}

func threadEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
