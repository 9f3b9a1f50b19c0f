package render

import (
	"strings"
	"testing"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
)

func TestEscapeTelegramMarkdown(t *testing.T) {
	got := escapeTelegramMarkdown("a.b_c (d)")
	want := `a\.b\_c \(d\)`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderTelegramTruncatesToCharLimit(t *testing.T) {
	long := strings.Repeat("x", telegramMaxChars+500)
	b := block.Block{Type: block.TypeAssistant, Content: block.Content{Assistant: &block.AssistantContent{Text: long}}}
	msg := RenderTelegram(b)
	if len([]rune(msg.Text)) > telegramMaxChars {
		t.Fatalf("text exceeds telegram char limit: %d", len([]rune(msg.Text)))
	}
}

func TestRenderTelegramQuestionButtonOverflow(t *testing.T) {
	var opts []block.QuestionOption
	for i := 0; i < 8; i++ {
		opts = append(opts, block.QuestionOption{Label: "opt"})
	}
	q := block.QuestionContent{
		ToolUseID: "tu1",
		Questions: []block.QuestionItem{{Header: "Pick one", Options: opts}},
	}
	msg := renderTelegramQuestion(q)
	if len(msg.Keyboard) != 1 {
		t.Fatalf("expected 1 keyboard row, got %d", len(msg.Keyboard))
	}
	row := msg.Keyboard[0]
	if len(row) != telegramMaxButtons+1 {
		t.Fatalf("expected %d buttons (5 + overflow), got %d", telegramMaxButtons+1, len(row))
	}
	last := row[len(row)-1]
	if !strings.Contains(last.Text, "more in CLI") {
		t.Fatalf("expected overflow button, got %q", last.Text)
	}
}

func TestRenderTelegramQuestionAnswered(t *testing.T) {
	q := block.QuestionContent{
		Questions: []block.QuestionItem{{Header: "Proceed?", Options: []block.QuestionOption{{Label: "Yes"}}}},
		Answers:   map[string]string{"Proceed?": "Yes"},
	}
	msg := renderTelegramQuestion(q)
	if len(msg.Keyboard) != 0 {
		t.Fatalf("answered question should have no keyboard rows, got %d", len(msg.Keyboard))
	}
	if !strings.Contains(msg.Text, "✓") {
		t.Fatalf("expected answered marker in text, got %q", msg.Text)
	}
}
