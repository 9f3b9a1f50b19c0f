// Package buffer holds a bounded per-session ring buffer of events for SSE
// replay on reconnect.
package buffer

import (
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
)

// Capacity is the fixed ring buffer size per session.
const Capacity = 20

// Entry pairs a buffer-assigned id with the event it wraps.
type Entry struct {
	ID    string
	Event block.Event
}

// Buffer is a capacity-20 ring buffer with monotonically increasing,
// zero-padded ids (evt_000001, evt_000002, ...). The counter resets on
// Clear. Safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry // oldest first, len <= Capacity
	nextSeq uint64
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{nextSeq: 1}
}

// Add appends event, evicting the oldest entry if the buffer is full, and
// returns the id assigned to it.
func (b *Buffer) Add(evt block.Event) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := formatID(b.nextSeq)
	b.nextSeq++
	b.entries = append(b.entries, Entry{ID: id, Event: evt})
	if len(b.entries) > Capacity {
		b.entries = b.entries[len(b.entries)-Capacity:]
	}
	return id
}

// GetSince returns every entry strictly after id, in order. If id is empty,
// unknown, or no longer held (evicted), it returns the full current
// contents as a reconnection fallback.
func (b *Buffer) GetSince(id string) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id == "" {
		return b.snapshot()
	}
	for i, e := range b.entries {
		if e.ID == id {
			return b.snapshot1(i + 1)
		}
	}
	return b.snapshot()
}

// Clear empties the buffer and resets the id counter.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	b.nextSeq = 1
}

// Len reports the current number of held entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Buffer) snapshot() []Entry {
	return b.snapshot1(0)
}

func (b *Buffer) snapshot1(from int) []Entry {
	out := make([]Entry, len(b.entries)-from)
	copy(out, b.entries[from:])
	return out
}

func formatID(seq uint64) string {
	return fmt.Sprintf("evt_%06d", seq)
}
