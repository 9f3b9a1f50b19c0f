// Package sse implements the per-session Server-Sent Events fan-out:
// subscriber sets, Last-Event-ID replay against the event buffer,
// keep-alives, and session-ended teardown.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
	"github.com/nextlevelbuilder/sessionscope/internal/buffer"
)

// keepAliveInterval is how often a ": keepalive\n\n" comment is written to
// each live subscriber to keep intermediaries from closing idle connections.
const keepAliveInterval = 15 * time.Second

// Subscriber is one live SSE connection for a session.
type Subscriber struct {
	w       io.Writer
	flusher func()
	done    chan struct{}
	once    sync.Once
}

// Write frames one event with the standard id/event/data lines and flushes.
func (s *Subscriber) writeFrame(id string, eventName string, data []byte) error {
	if _, err := fmt.Fprintf(s.w, "id: %s\nevent: %s\ndata: %s\n\n", id, eventName, data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher()
	}
	return nil
}

func (s *Subscriber) writeKeepAlive() error {
	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher()
	}
	return nil
}

// Close marks the subscriber done; safe to call multiple times.
func (s *Subscriber) Close() {
	s.once.Do(func() { close(s.done) })
}

// Done reports when the subscriber has been closed, so the HTTP handler
// holding the connection open can return.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

type sessionSubs struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// Broker fans out buffered events to per-session SSE subscribers.
type Broker struct {
	buffers *buffer.Manager

	mu       sync.Mutex
	sessions map[string]*sessionSubs
}

// NewBroker returns a Broker backed by the given event buffer manager.
func NewBroker(buffers *buffer.Manager) *Broker {
	return &Broker{buffers: buffers, sessions: make(map[string]*sessionSubs)}
}

func (b *Broker) subsFor(sessionID string) *sessionSubs {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		s = &sessionSubs{subs: make(map[*Subscriber]struct{})}
		b.sessions[sessionID] = s
	}
	return s
}

// Subscribe registers w as a subscriber for sessionID, immediately replaying
// buffered events since lastEventID (per buffer.GetSince semantics — an
// empty, unknown, or evicted id replays the full current buffer), then
// keeps writing keep-alive comments until the returned Subscriber is closed
// or a write fails. flush, if non-nil, is called after each write (e.g.
// http.Flusher.Flush) so frames are pushed to the client promptly.
func (b *Broker) Subscribe(sessionID string, w io.Writer, lastEventID string, flush func()) *Subscriber {
	sub := &Subscriber{w: w, flusher: flush, done: make(chan struct{})}

	buf := b.buffers.For(sessionID)
	for _, entry := range buf.GetSince(lastEventID) {
		if err := b.writeEvent(sub, entry.ID, entry.Event); err != nil {
			sub.Close()
			return sub
		}
	}

	subs := b.subsFor(sessionID)
	subs.mu.Lock()
	subs.subs[sub] = struct{}{}
	subs.mu.Unlock()

	go b.keepAliveLoop(sessionID, sub)
	return sub
}

func (b *Broker) keepAliveLoop(sessionID string, sub *Subscriber) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sub.done:
			b.unsubscribe(sessionID, sub)
			return
		case <-ticker.C:
			if err := sub.writeKeepAlive(); err != nil {
				sub.Close()
				b.unsubscribe(sessionID, sub)
				return
			}
		}
	}
}

func (b *Broker) unsubscribe(sessionID string, sub *Subscriber) {
	subs := b.subsFor(sessionID)
	subs.mu.Lock()
	delete(subs.subs, sub)
	subs.mu.Unlock()
}

// Broadcast records evt in the session's buffer, assigns it an id, and
// writes it to every live subscriber. Subscribers whose write fails are
// closed and dropped.
func (b *Broker) Broadcast(sessionID string, evt block.Event) string {
	buf := b.buffers.For(sessionID)
	id := buf.Add(evt)

	subs := b.subsFor(sessionID)
	subs.mu.Lock()
	dead := make([]*Subscriber, 0)
	for sub := range subs.subs {
		if err := b.writeEvent(sub, id, evt); err != nil {
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		delete(subs.subs, sub)
	}
	subs.mu.Unlock()

	for _, sub := range dead {
		sub.Close()
	}
	return id
}

// CloseSession delivers a synthetic session_ended event to every subscriber
// and closes them all.
func (b *Broker) CloseSession(sessionID string, reason string) {
	subs := b.subsFor(sessionID)
	subs.mu.Lock()
	all := make([]*Subscriber, 0, len(subs.subs))
	for sub := range subs.subs {
		all = append(all, sub)
	}
	subs.subs = make(map[*Subscriber]struct{})
	subs.mu.Unlock()

	data, _ := json.Marshal(map[string]string{"reason": reason})
	for _, sub := range all {
		_ = sub.writeFrame("", "session_ended", data)
		sub.Close()
	}
}

// SubscriberCount reports how many live SSE connections sessionID currently
// has, for the REST session listing.
func (b *Broker) SubscriberCount(sessionID string) int {
	subs := b.subsFor(sessionID)
	subs.mu.Lock()
	defer subs.mu.Unlock()
	return len(subs.subs)
}

func (b *Broker) writeEvent(sub *Subscriber, id string, evt block.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return sub.writeFrame(id, string(evt.Kind), data)
}
