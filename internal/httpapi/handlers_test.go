package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nextlevelbuilder/sessionscope/internal/destination"
)

func TestParseKindAcceptsKnownPlatforms(t *testing.T) {
	cases := map[string]destination.Kind{
		"telegram": destination.KindTelegram,
		"slack":    destination.KindSlack,
		"discord":  destination.KindDiscord,
	}
	for platform, want := range cases {
		got, ok := parseKind(platform)
		if !ok || got != want {
			t.Errorf("parseKind(%q) = %q, %v; want %q, true", platform, got, ok, want)
		}
	}
}

func TestParseKindRejectsUnknownPlatform(t *testing.T) {
	if _, ok := parseKind("whatsapp"); ok {
		t.Fatal("expected unknown platform to be rejected")
	}
	if _, ok := parseKind(""); ok {
		t.Fatal("expected empty platform to be rejected")
	}
}

func TestClientKeyPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	if got := clientKey(req); got != "203.0.113.7" {
		t.Fatalf("clientKey() = %q, want forwarded address", got)
	}
}

func TestClientKeyFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	if got := clientKey(req); got != "10.0.0.1:1234" {
		t.Fatalf("clientKey() = %q, want RemoteAddr", got)
	}
}
