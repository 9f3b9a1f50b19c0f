package message

import (
	"sync"
	"time"
)

// Default per-platform coalescing delays: roughly half of
// each platform's published per-chat rate budget.
const (
	TelegramDelay = 500 * time.Millisecond
	SlackDelay    = 2000 * time.Millisecond
	DiscordDelay  = 500 * time.Millisecond
)

// UpdateFunc applies the latest content for a debounced key. Its error, if
// any, is logged by the caller — Debouncer never propagates it.
type UpdateFunc func(latest any) error

// OnUpdateError is invoked (if set) whenever a fired UpdateFunc returns an
// error, so the caller can log it; Debouncer itself has no logger.
type OnUpdateError func(key string, err error)

type pending struct {
	timer    *time.Timer
	latest   any
	updateFn UpdateFunc
}

// Debouncer keeps at most one pending update per key, coalescing rapid
// calls to Schedule into a single UpdateFunc invocation after delay.
type Debouncer struct {
	mu      sync.Mutex
	entries map[string]*pending
	onError OnUpdateError
}

// NewDebouncer returns an empty Debouncer.
func NewDebouncer(onError OnUpdateError) *Debouncer {
	return &Debouncer{entries: make(map[string]*pending), onError: onError}
}

// Schedule cancels any existing timer for key and installs a new one that
// fires updateFn(latest) after delay.
func (d *Debouncer) Schedule(key string, delay time.Duration, updateFn UpdateFunc, latest any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.entries[key]; ok {
		p.timer.Stop()
	}

	p := &pending{updateFn: updateFn, latest: latest}
	p.timer = time.AfterFunc(delay, func() { d.fire(key) })
	d.entries[key] = p
}

func (d *Debouncer) fire(key string) {
	d.mu.Lock()
	p, ok := d.entries[key]
	if ok {
		delete(d.entries, key)
	}
	d.mu.Unlock()

	if !ok {
		return
	}
	if err := p.updateFn(p.latest); err != nil && d.onError != nil {
		d.onError(key, err)
	}
}

// Flush fires every pending update immediately, synchronously, in
// unspecified order. Called before session stop or service shutdown so no
// coalesced update is silently dropped.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.entries))
	for k, p := range d.entries {
		p.timer.Stop()
		keys = append(keys, k)
	}
	d.mu.Unlock()

	for _, k := range keys {
		d.mu.Lock()
		p, ok := d.entries[k]
		if ok {
			delete(d.entries, k)
		}
		d.mu.Unlock()
		if !ok {
			continue
		}
		if err := p.updateFn(p.latest); err != nil && d.onError != nil {
			d.onError(k, err)
		}
	}
}

// CancelAll drops every pending update without executing it.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, p := range d.entries {
		p.timer.Stop()
		delete(d.entries, k)
	}
}
