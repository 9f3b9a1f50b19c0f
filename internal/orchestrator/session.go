package orchestrator

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
	"github.com/nextlevelbuilder/sessionscope/internal/classify"
	"github.com/nextlevelbuilder/sessionscope/internal/destination"
	"github.com/nextlevelbuilder/sessionscope/internal/ingest"
	"github.com/nextlevelbuilder/sessionscope/internal/message"
	"github.com/nextlevelbuilder/sessionscope/internal/process"
	"github.com/nextlevelbuilder/sessionscope/internal/publish"
	"github.com/nextlevelbuilder/sessionscope/internal/render"
	"github.com/nextlevelbuilder/sessionscope/internal/statestore"
)

// onSessionStart resumes processing for sessionID: it loads any persisted
// offset and context, replays the backlog between that offset and the
// file's current end, then registers the file with the watcher so future
// appends continue the same pipeline.
func (s *Service) onSessionStart(sessionID string) {
	path, ok := s.pathFor(sessionID)
	if !ok {
		s.logger.Warn("session start with no known path", "session_id", sessionID)
		return
	}

	st := &sessionState{
		path:               path,
		procCtx:            process.NewContext(),
		tracker:            message.NewTracker(),
		watchCorrelationID: uuid.NewString(),
	}
	s.logger.Info("session watch starting", "session_id", sessionID, "watch_id", st.watchCorrelationID, "path", path)

	saved, err := s.states.Load(sessionID)
	if err != nil {
		s.logger.Warn("failed to load persisted session state", "session_id", sessionID, "watch_id", st.watchCorrelationID, "error", err)
	}
	offset := int64(0)
	if saved != nil {
		offset = saved.FileOffset
		st.procCtx = process.FromDict(saved.Context)
		st.lineNum = saved.LineNumber
	}

	s.mu.Lock()
	s.sessions[sessionID] = st
	s.mu.Unlock()

	res, err := ingest.ReadNewLines(path, offset)
	if err != nil {
		s.logger.Warn("failed to read session backlog", "session_id", sessionID, "path", path, "error", err)
	} else {
		if len(res.Lines) > 0 {
			s.processBatch(sessionID, st, res.Lines)
		}
		offset = res.NewOffset
	}

	if err := s.watcher.Add(sessionID, path, offset); err != nil {
		s.logger.Warn("failed to watch session file", "session_id", sessionID, "path", path, "error", err)
		return
	}

	st.mu.Lock()
	postCatchUp := statestore.FromContext(st.procCtx, offset, st.lineNum)
	st.mu.Unlock()
	if err := s.states.Save(sessionID, postCatchUp); err != nil {
		s.logger.Error("failed to persist session state after backlog catch-up", "session_id", sessionID, "error", err)
	}
}

// onSessionStop tears a session's in-memory state down after the keep-alive
// grace period following its last detach.
func (s *Service) onSessionStop(sessionID string) {
	path, ok := s.pathFor(sessionID)
	if ok {
		s.watcher.Remove(path)
	}
	s.broker.CloseSession(sessionID, "detached")
	s.buffers.Drop(sessionID)

	st := s.sessionFor(sessionID)

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if st != nil {
		s.logger.Info("session watch stopped", "session_id", sessionID, "watch_id", st.watchCorrelationID)
	}
}

func (s *Service) handleWatcherChange(sessionID string, lines [][]byte) {
	st := s.sessionFor(sessionID)
	if st == nil {
		return
	}
	s.processBatch(sessionID, st, lines)
}

// handleWatcherDelete implements the file-deletion policy: tell every
// subscriber the session ended, but keep the destinations configured in
// case the file reappears (e.g. log rotation) — that's an operator
// decision, not this pipeline's to make.
func (s *Service) handleWatcherDelete(sessionID string) {
	s.logger.Info("session file removed", "session_id", sessionID)
	s.broker.CloseSession(sessionID, "file_deleted")
	if path, ok := s.pathFor(sessionID); ok {
		s.watcher.Remove(path)
	}
}

func (s *Service) sessionFor(sessionID string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}

func (s *Service) pathFor(sessionID string) (string, bool) {
	spec, ok := s.cfg.Sessions[sessionID]
	if !ok || spec.Path == "" {
		return "", false
	}
	return spec.Path, true
}

// processBatch classifies, processes, broadcasts, and dispatches every line
// in a batch, then persists the session's new offset and context.
func (s *Service) processBatch(sessionID string, st *sessionState, lines [][]byte) {
	st.mu.Lock()
	defer st.mu.Unlock()

	_, span := s.tracer.Start(context.Background(), "ingest.batch")
	defer span.End()

	for _, line := range lines {
		rec, err := classify.Parse(line)
		if err != nil {
			s.logger.Warn("malformed session line", "session_id", sessionID, "error", err)
			st.lineNum++
			continue
		}

		events, next := process.Process(st.procCtx, rec)
		st.procCtx = next
		st.lineNum++

		for _, evt := range events {
			s.broker.Broadcast(sessionID, evt)

			if evt.Kind == block.EventClearAll {
				st.tracker = message.NewTracker()
				continue
			}

			if action := st.tracker.HandleEvent(evt); action != nil {
				s.dispatch(sessionID, st, *action)
			}
		}
	}

	offset, ok := s.watcher.Position(st.path)
	if !ok {
		return
	}
	saved := statestore.FromContext(st.procCtx, offset, st.lineNum)
	if err := s.states.Save(sessionID, saved); err != nil {
		s.logger.Error("failed to persist session state", "session_id", sessionID, "error", err)
	}
}

func (s *Service) persistState(sessionID string) {
	st := s.sessionFor(sessionID)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	offset, ok := s.watcher.Position(st.path)
	if !ok {
		return
	}
	if err := s.states.Save(sessionID, statestore.FromContext(st.procCtx, offset, st.lineNum)); err != nil {
		s.logger.Error("failed to persist session state on shutdown", "session_id", sessionID, "error", err)
	}
}

// compactionNoticeBlock synthesizes display content for the one
// MessageAction kind that carries no blocks of its own.
func compactionNoticeBlock() block.Block {
	return block.Block{
		ID:   block.NewID(),
		Type: block.TypeSystem,
		Content: block.Content{
			System: &block.SystemContent{Text: "context compacted"},
		},
	}
}

// dispatch renders action once per destination kind and schedules a
// debounced send or edit for every destination currently attached to
// sessionID.
func (s *Service) dispatch(sessionID string, st *sessionState, action message.MessageAction) {
	if action.Action == message.ActionNone {
		return
	}

	blocks := action.Blocks
	if len(blocks) == 0 {
		blocks = []block.Block{compactionNoticeBlock()}
	}

	for _, attached := range s.destMgr.Destinations(sessionID) {
		dest := attached.Destination
		publisher, ok := s.publishers[dest.Kind]
		if !ok {
			continue
		}

		content, err := renderFor(dest.Kind, blocks)
		if err != nil {
			continue
		}

		debounceKey := sessionID + "|" + dest.Key() + "|" + action.Key
		s.debouncer.Schedule(debounceKey, delayFor(dest.Kind), func(latest any) error {
			return s.sendOrEdit(sessionID, st, publisher, dest, action.Key, latest)
		}, content)
	}
}

func (s *Service) sendOrEdit(sessionID string, st *sessionState, publisher publish.Publisher, dest destination.Destination, key string, content any) error {
	destKey := dest.Key()
	existing := st.tracker.MessageID(key, destKey)

	identifier := publisherIdentifier(dest)

	if existing == "" {
		platformID, err := publisher.Send(context.Background(), identifier, content)
		if err != nil {
			s.logger.Warn("publisher send failed", "platform", dest.Kind, "session_id", sessionID, "error", err)
			return err
		}
		st.tracker.RecordMessageID(key, destKey, platformID)
		return nil
	}

	err := publisher.Edit(context.Background(), identifier, existing, content)
	if err != nil {
		var nf publish.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		s.logger.Warn("publisher edit failed", "platform", dest.Kind, "session_id", sessionID, "error", err)
		return err
	}
	return nil
}

func publisherIdentifier(dest destination.Destination) string {
	if dest.Kind == destination.KindTelegram && dest.ThreadID != nil {
		return dest.Identifier + ":" + strconv.Itoa(*dest.ThreadID)
	}
	return dest.Identifier
}

func renderFor(kind destination.Kind, blocks []block.Block) (any, error) {
	switch kind {
	case destination.KindTelegram:
		return render.RenderTelegramBlocks(blocks), nil
	case destination.KindSlack:
		return render.RenderSlackBlocks(blocks), nil
	case destination.KindDiscord:
		return render.RenderDiscordBlocks(blocks), nil
	default:
		return nil, errors.New("orchestrator: unknown destination kind")
	}
}

func delayFor(kind destination.Kind) time.Duration {
	switch kind {
	case destination.KindTelegram:
		return message.TelegramDelay
	case destination.KindSlack:
		return message.SlackDelay
	case destination.KindDiscord:
		return message.DiscordDelay
	default:
		return message.TelegramDelay
	}
}
