package httpapi

import (
	"strconv"
	"testing"
	"time"
)

func TestKeyedLimiterAllowsUpToBurstThenBlocks(t *testing.T) {
	l := newKeyedLimiter(3)
	for i := 0; i < 3; i++ {
		if !l.Allow("k1") {
			t.Fatalf("call %d: expected allow within burst", i)
		}
	}
	if l.Allow("k1") {
		t.Fatal("expected the 4th call to be rate limited")
	}
}

func TestKeyedLimiterTracksKeysIndependently(t *testing.T) {
	l := newKeyedLimiter(1)
	if !l.Allow("a") {
		t.Fatal("expected first call for key a to be allowed")
	}
	if !l.Allow("b") {
		t.Fatal("expected first call for key b to be allowed regardless of key a's state")
	}
	if l.Allow("a") {
		t.Fatal("expected second call for key a to be rate limited")
	}
}

func TestKeyedLimiterEvictsUnderPressure(t *testing.T) {
	l := newKeyedLimiter(1)
	for i := 0; i < maxTrackedKeys+10; i++ {
		l.Allow(strconv.Itoa(i))
	}
	l.mu.Lock()
	n := len(l.entries)
	l.mu.Unlock()
	if n > maxTrackedKeys {
		t.Fatalf("expected tracked key count bounded at %d, got %d", maxTrackedKeys, n)
	}
}

func TestGlobalLimiterAllowsOnceThenBlocks(t *testing.T) {
	g := newGlobalLimiter(time.Hour)
	if !g.Allow() {
		t.Fatal("expected first call to be allowed")
	}
	if g.Allow() {
		t.Fatal("expected second immediate call to be rate limited")
	}
}
