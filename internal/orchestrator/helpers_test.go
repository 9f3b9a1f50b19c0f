package orchestrator

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/sessionscope/internal/config"
	"github.com/nextlevelbuilder/sessionscope/internal/destination"
	"github.com/nextlevelbuilder/sessionscope/internal/message"
)

func intp(i int) *int { return &i }

func TestDestinationsFromSpec(t *testing.T) {
	d := config.DestinationsConfig{
		Telegram: []config.TelegramDestination{{ChatID: "-100", ThreadID: intp(5)}},
		Slack:    []config.SlackDestination{{Channel: "C123"}},
		Discord:  []config.DiscordDestination{{ChannelID: "D456"}},
	}
	out := destinationsFromSpec(d)
	if len(out) != 3 {
		t.Fatalf("expected 3 destinations, got %d", len(out))
	}

	var sawTelegram, sawSlack, sawDiscord bool
	for _, dest := range out {
		switch dest.Kind {
		case destination.KindTelegram:
			sawTelegram = true
			if dest.Identifier != "-100" || dest.ThreadID == nil || *dest.ThreadID != 5 {
				t.Errorf("telegram destination malformed: %+v", dest)
			}
		case destination.KindSlack:
			sawSlack = true
			if dest.Identifier != "C123" {
				t.Errorf("slack destination malformed: %+v", dest)
			}
		case destination.KindDiscord:
			sawDiscord = true
			if dest.Identifier != "D456" {
				t.Errorf("discord destination malformed: %+v", dest)
			}
		}
	}
	if !sawTelegram || !sawSlack || !sawDiscord {
		t.Fatalf("expected all three kinds present, got %+v", out)
	}
}

func TestAddDestinationIsIdempotent(t *testing.T) {
	var d config.DestinationsConfig
	dest := destination.Destination{Kind: destination.KindSlack, Identifier: "C1"}
	d = addDestination(d, dest)
	d = addDestination(d, dest)
	if len(d.Slack) != 1 {
		t.Fatalf("expected exactly 1 slack destination after duplicate add, got %d", len(d.Slack))
	}
}

func TestAddDestinationDistinguishesTelegramThreads(t *testing.T) {
	var d config.DestinationsConfig
	d = addDestination(d, destination.Destination{Kind: destination.KindTelegram, Identifier: "-100", ThreadID: intp(2)})
	d = addDestination(d, destination.Destination{Kind: destination.KindTelegram, Identifier: "-100", ThreadID: intp(3)})
	if len(d.Telegram) != 2 {
		t.Fatalf("expected 2 distinct telegram threads, got %d", len(d.Telegram))
	}
}

func TestRemoveDestination(t *testing.T) {
	d := config.DestinationsConfig{Slack: []config.SlackDestination{{Channel: "C1"}, {Channel: "C2"}}}
	d = removeDestination(d, destination.Destination{Kind: destination.KindSlack, Identifier: "C1"})
	if len(d.Slack) != 1 || d.Slack[0].Channel != "C2" {
		t.Fatalf("expected only C2 to remain, got %+v", d.Slack)
	}
}

func TestThreadEqual(t *testing.T) {
	if !threadEqual(nil, nil) {
		t.Error("expected two nil thread ids to compare equal")
	}
	if threadEqual(nil, intp(1)) {
		t.Error("expected nil and non-nil thread ids to compare unequal")
	}
	if !threadEqual(intp(4), intp(4)) {
		t.Error("expected equal thread ids to compare equal")
	}
	if threadEqual(intp(4), intp(5)) {
		t.Error("expected different thread ids to compare unequal")
	}
}

func TestDelayForMatchesPlatformDebounce(t *testing.T) {
	cases := []struct {
		kind destination.Kind
		want time.Duration
	}{
		{destination.KindTelegram, message.TelegramDelay},
		{destination.KindSlack, message.SlackDelay},
		{destination.KindDiscord, message.DiscordDelay},
	}
	for _, c := range cases {
		if got := delayFor(c.kind); got != c.want {
			t.Errorf("delayFor(%v) = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestPublisherIdentifierAppendsTelegramThread(t *testing.T) {
	got := publisherIdentifier(destination.Destination{Kind: destination.KindTelegram, Identifier: "-100", ThreadID: intp(7)})
	if got != "-100:7" {
		t.Fatalf("publisherIdentifier() = %q, want -100:7", got)
	}
}

func TestPublisherIdentifierPlainForNoThread(t *testing.T) {
	got := publisherIdentifier(destination.Destination{Kind: destination.KindTelegram, Identifier: "-100"})
	if got != "-100" {
		t.Fatalf("publisherIdentifier() = %q, want -100", got)
	}
}

func TestPublisherIdentifierIgnoresThreadForOtherPlatforms(t *testing.T) {
	got := publisherIdentifier(destination.Destination{Kind: destination.KindSlack, Identifier: "C1", ThreadID: intp(9)})
	if got != "C1" {
		t.Fatalf("publisherIdentifier() = %q, want C1 (slack has no thread concept)", got)
	}
}

func TestRenderForRejectsUnknownKind(t *testing.T) {
	_, err := renderFor(destination.Kind("carrier-pigeon"), nil)
	if err == nil {
		t.Fatal("expected an error for an unknown destination kind")
	}
}
