package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nextlevelbuilder/sessionscope/internal/destination"
	"github.com/nextlevelbuilder/sessionscope/internal/orchestrator"
	"github.com/nextlevelbuilder/sessionscope/internal/search"
)

type attachBody struct {
	SessionID   string `json:"session_id"`
	Path        string `json:"path,omitempty"`
	Platform    string `json:"platform"`
	Identifier  string `json:"identifier"`
	ThreadID    *int   `json:"thread_id,omitempty"`
	ReplayCount int    `json:"replay_count,omitempty"`
}

type detachBody struct {
	SessionID  string `json:"session_id"`
	Platform   string `json:"platform"`
	Identifier string `json:"identifier"`
	ThreadID   *int   `json:"thread_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func parseKind(platform string) (destination.Kind, bool) {
	switch destination.Kind(platform) {
	case destination.KindTelegram, destination.KindSlack, destination.KindDiscord:
		return destination.Kind(platform), true
	default:
		return "", false
	}
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	var body attachBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, ok := parseKind(body.Platform)
	if !ok || body.SessionID == "" || body.Identifier == "" {
		writeError(w, http.StatusBadRequest, "session_id, platform, and identifier are required")
		return
	}

	req := orchestrator.AttachRequest{
		SessionID:   body.SessionID,
		Path:        body.Path,
		ReplayCount: body.ReplayCount,
		Destination: destination.Destination{Kind: kind, Identifier: body.Identifier, ThreadID: body.ThreadID},
	}

	result, err := s.svc.Attach(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrNoBotToken):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, orchestrator.ErrBadCredentials):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, orchestrator.ErrFileMissing):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"attached":        result.Attached,
		"replayed_events": result.ReplayedEvents,
	})
}

func (s *Server) handleDetach(w http.ResponseWriter, r *http.Request) {
	var body detachBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, ok := parseKind(body.Platform)
	if !ok || body.SessionID == "" || body.Identifier == "" {
		writeError(w, http.StatusBadRequest, "session_id, platform, and identifier are required")
		return
	}

	dest := destination.Destination{Kind: kind, Identifier: body.Identifier, ThreadID: body.ThreadID}
	if err := s.svc.Detach(body.SessionID, dest); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.svc.ListSessions()
	out := make([]map[string]any, 0, len(sessions))
	for _, row := range sessions {
		dests := make([]map[string]any, 0, len(row.Destinations))
		for _, d := range row.Destinations {
			dests = append(dests, map[string]any{
				"platform":   string(d.Kind),
				"identifier": d.Identifier,
				"thread_id":  d.ThreadID,
			})
		}
		out = append(out, map[string]any{
			"session_id":   row.SessionID,
			"destinations": dests,
			"subscribers":  s.svc.Broker().SubscriberCount(row.SessionID),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lastEventID := r.Header.Get("Last-Event-ID")
	sub := s.svc.Broker().Subscribe(sessionID, w, lastEventID, flusher.Flush)

	select {
	case <-sub.Done():
	case <-r.Context().Done():
		sub.Close()
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if !s.previewLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	sessionID := r.PathValue("id")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	text := s.svc.Preview(sessionID, limit)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "preview": text})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.searchLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	q := search.Query{
		Text:    r.URL.Query().Get("q"),
		Project: r.URL.Query().Get("project"),
		Sort:    r.URL.Query().Get("sort"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		q.Offset = n
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		q.Since = &t
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC3339")
			return
		}
		q.Until = &t
	}

	results, err := s.svc.Search(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "search unavailable")
		return
	}

	hits := make([]map[string]any, 0, len(results.Hits))
	for _, hit := range results.Hits {
		hits = append(hits, map[string]any{
			"session_id":  hit.Session.SessionID,
			"project":     hit.Session.ProjectDisplayName,
			"summary":     hit.Session.Summary,
			"file_path":   hit.Session.FilePath,
			"modified_at": hit.Session.FileModifiedAt,
			"score":       hit.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits, "total": results.Total})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.Projects(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "index unavailable")
		return
	}
	out := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		out = append(out, map[string]any{
			"project":       p.ProjectEncoded,
			"display_name":  p.ProjectDisplayName,
			"session_count": p.SessionCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": out})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.refreshLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	result, err := s.svc.RefreshIndex(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "refresh failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"scanned": result.Scanned,
		"updated": result.Updated,
		"skipped": result.Skipped,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, uptime := s.svc.Uptime()
	sessions := s.svc.ListSessions()

	stats, err := s.svc.IndexStats(r.Context())
	indexInfo := map[string]any{
		"sessions":    stats.Sessions,
		"projects":    stats.Projects,
		"fts_enabled": stats.FTSEnabled,
		"last_refresh": stats.LastRefresh,
	}
	if err != nil {
		indexInfo = map[string]any{"error": "unavailable"}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"sessions_watched": len(sessions),
		"uptime_seconds":   uptime,
		"bots":             s.svc.ConfiguredBots(),
		"index":            indexInfo,
	})
}
