package render

import (
	"strings"
	"testing"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
)

func TestEscapeSlackMrkdwn(t *testing.T) {
	got := escapeSlackMrkdwn("a < b & c > d")
	want := "a &lt; b &amp; c &gt; d"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderSlackSectionBlock(t *testing.T) {
	result := "done"
	b := block.Block{
		Type: block.TypeToolCall,
		Content: block.Content{
			ToolCall: &block.ToolCallContent{ToolName: "Bash", Label: "x", Result: &result, ResultIsFinal: true},
		},
	}
	blocks := RenderSlack(b)
	if len(blocks) != 1 || blocks[0].Type != "section" {
		t.Fatalf("expected one section block, got %+v", blocks)
	}
}

func TestRenderSlackQuestionButtonOverflow(t *testing.T) {
	var opts []block.QuestionOption
	for i := 0; i < 7; i++ {
		opts = append(opts, block.QuestionOption{Label: "opt"})
	}
	q := block.QuestionContent{
		ToolUseID: "tu1",
		Questions: []block.QuestionItem{{Header: "Pick one", Options: opts}},
	}
	blocks := renderSlackQuestion(q)
	// one section (header) + one actions block
	var actions *SlackBlock
	for i := range blocks {
		if blocks[i].Type == "actions" {
			actions = &blocks[i]
		}
	}
	if actions == nil {
		t.Fatalf("expected an actions block")
	}
	if len(actions.Elements) != slackMaxButtons+1 {
		t.Fatalf("expected %d elements (5 + overflow), got %d", slackMaxButtons+1, len(actions.Elements))
	}
	last := actions.Elements[len(actions.Elements)-1]
	if !strings.Contains(last.Text.Text, "more in CLI") {
		t.Fatalf("expected overflow button, got %q", last.Text.Text)
	}
}

func TestRenderSlackQuestionAnswered(t *testing.T) {
	q := block.QuestionContent{
		Questions: []block.QuestionItem{{Header: "Proceed?", Options: []block.QuestionOption{{Label: "Yes"}}}},
		Answers:   map[string]string{"Proceed?": "Yes"},
	}
	blocks := renderSlackQuestion(q)
	for _, blk := range blocks {
		if blk.Type == "actions" {
			t.Fatalf("answered question should not emit an actions block")
		}
	}
}
