// Package destination implements the attach/detach lifecycle for messaging
// destinations and the keep-alive grace period after the last detach.
package destination

import (
	"fmt"
	"sync"
	"time"
)

// Kind identifies a destination's messaging platform. Telegram, Slack,
// and Discord all share the identical attach/detach/keep-alive contract.
type Kind string

const (
	KindTelegram Kind = "telegram"
	KindSlack    Kind = "slack"
	KindDiscord  Kind = "discord"
)

// rejectedTelegramThreadID is the reserved thread id for Telegram's
// "General" forum topic, addressed via a null thread id instead.
const rejectedTelegramThreadID = 1

// Destination identifies one attached subscriber for a session.
type Destination struct {
	Kind       Kind
	Identifier string // chat_id[:thread_id] for Telegram, channel for Slack/Discord
	ThreadID   *int   // Telegram forum topic, nil for the general chat
}

// Key returns a stable comparison key distinguishing destinations that
// differ only by thread, so attach/detach can match exactly.
func (d Destination) Key() string {
	if d.ThreadID != nil {
		return fmt.Sprintf("%s:%s:%d", d.Kind, d.Identifier, *d.ThreadID)
	}
	return fmt.Sprintf("%s:%s", d.Kind, d.Identifier)
}

// Attached pairs a Destination with its attach timestamp.
type Attached struct {
	Destination Destination
	AttachedAt  time.Time
}

// keepAliveDelay is how long a session is kept warm after its last
// destination detaches, in case another destination reattaches promptly.
const keepAliveDelay = 5 * time.Minute

// Manager tracks session_id -> []AttachedDestination and the keep-alive
// timers that fire on_session_stop after the delay.
type Manager struct {
	mu        sync.Mutex
	bySession map[string][]Attached
	keepAlive map[string]*time.Timer

	OnSessionStart func(sessionID string)
	OnSessionStop  func(sessionID string)

	keepAliveDelay time.Duration
}

// NewManager returns a Manager with the default 5-minute keep-alive delay.
func NewManager(onStart, onStop func(sessionID string)) *Manager {
	return &Manager{
		bySession:      make(map[string][]Attached),
		keepAlive:      make(map[string]*time.Timer),
		OnSessionStart: onStart,
		OnSessionStop:  onStop,
		keepAliveDelay: keepAliveDelay,
	}
}

// ErrRejectedThreadID is returned by Attach/Detach for a Telegram
// destination naming the reserved general-topic thread id.
type ErrRejectedThreadID struct{}

func (ErrRejectedThreadID) Error() string {
	return fmt.Sprintf("telegram thread_id=%d is reserved for the General topic; use a null thread id", rejectedTelegramThreadID)
}

func validateDestination(d Destination) error {
	if d.Kind == KindTelegram && d.ThreadID != nil && *d.ThreadID == rejectedTelegramThreadID {
		return ErrRejectedThreadID{}
	}
	return nil
}

// Attach adds dest to sessionID's destinations. Idempotent: attaching an
// already-present destination is a no-op success. If the session had no
// destinations, OnSessionStart fires; if a keep-alive timer was pending
// for this session, it is cancelled without re-invoking OnSessionStart.
func (m *Manager) Attach(sessionID string, dest Destination) error {
	if err := validateDestination(dest); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	resumed := false
	if t, ok := m.keepAlive[sessionID]; ok {
		t.Stop()
		delete(m.keepAlive, sessionID)
		resumed = true
	}

	existing := m.bySession[sessionID]
	for _, a := range existing {
		if a.Destination.Key() == dest.Key() {
			return nil
		}
	}

	wasEmpty := len(existing) == 0
	m.bySession[sessionID] = append(existing, Attached{Destination: dest, AttachedAt: time.Now()})

	if wasEmpty && !resumed && m.OnSessionStart != nil {
		m.OnSessionStart(sessionID)
	}
	return nil
}

// Detach removes dest from sessionID's destinations, matching the full
// identifier including thread. If this was the last destination, a
// keep-alive timer starts; on expiry OnSessionStop fires.
func (m *Manager) Detach(sessionID string, dest Destination) error {
	if err := validateDestination(dest); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.bySession[sessionID]
	out := existing[:0]
	for _, a := range existing {
		if a.Destination.Key() != dest.Key() {
			out = append(out, a)
		}
	}
	m.bySession[sessionID] = out

	if len(out) == 0 {
		delete(m.bySession, sessionID)
		m.startKeepAliveLocked(sessionID)
	}
	return nil
}

func (m *Manager) startKeepAliveLocked(sessionID string) {
	if t, ok := m.keepAlive[sessionID]; ok {
		t.Stop()
	}
	m.keepAlive[sessionID] = time.AfterFunc(m.keepAliveDelay, func() {
		m.mu.Lock()
		delete(m.keepAlive, sessionID)
		m.mu.Unlock()
		if m.OnSessionStop != nil {
			m.OnSessionStop(sessionID)
		}
	})
}

// Destinations returns a copy of the current destinations for sessionID.
func (m *Manager) Destinations(sessionID string) []Attached {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Attached, len(m.bySession[sessionID]))
	copy(out, m.bySession[sessionID])
	return out
}

// RestoreFromConfig populates runtime state from persisted destinations at
// startup, invoking OnSessionStart for each non-empty session. sessions
// maps session id to its persisted destinations.
func (m *Manager) RestoreFromConfig(sessions map[string][]Destination) {
	m.mu.Lock()
	starts := make([]string, 0, len(sessions))
	for sessionID, dests := range sessions {
		if len(dests) == 0 {
			continue
		}
		attached := make([]Attached, len(dests))
		now := time.Now()
		for i, d := range dests {
			attached[i] = Attached{Destination: d, AttachedAt: now}
		}
		m.bySession[sessionID] = attached
		starts = append(starts, sessionID)
	}
	m.mu.Unlock()

	if m.OnSessionStart != nil {
		for _, sessionID := range starts {
			m.OnSessionStart(sessionID)
		}
	}
}

// Shutdown cancels all pending keep-alive timers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.keepAlive {
		t.Stop()
		delete(m.keepAlive, id)
	}
}
