package process

import (
	"testing"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
	"github.com/nextlevelbuilder/sessionscope/internal/classify"
)

func mustParse(t *testing.T, s string) classify.Record {
	t.Helper()
	rec, err := classify.Parse([]byte(s))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return rec
}

// TestToolCallProgressResult covers a Bash tool call, a progress update,
// and a final result, asserting that progress received after the result
// is a no-op.
func TestToolCallProgressResult(t *testing.T) {
	ctx := NewContext()

	use := mustParse(t, `{"type":"assistant","message":{"role":"assistant","content":[
		{"type":"tool_use","id":"T","name":"Bash","input":{"description":"run tests"}}
	]}}`)
	events, ctx := Process(ctx, use)
	if len(events) != 1 || events[0].Kind != block.EventAddBlock {
		t.Fatalf("expected single AddBlock, got %+v", events)
	}
	toolBlockID := events[0].BlockID
	if got := events[0].Block.Content.ToolCall.Label; got != "run tests" {
		t.Fatalf("label = %q", got)
	}

	progress := mustParse(t, `{"type":"progress","subtype":"bash_progress","parentToolUseID":"T","fullOutput":"running 10 cases"}`)
	events, ctx = Process(ctx, progress)
	if len(events) != 1 || events[0].Kind != block.EventUpdateBlock {
		t.Fatalf("expected UpdateBlock, got %+v", events)
	}
	if got := *events[0].Content.ToolCall.ProgressText; got != "running 10 cases" {
		t.Fatalf("progress text = %q", got)
	}

	result := mustParse(t, `{"type":"user","message":{"role":"user","content":[
		{"type":"tool_result","tool_use_id":"T","content":"ok: 10 passed","is_error":false}
	]}}`)
	events, ctx = Process(ctx, result)
	if len(events) != 1 || events[0].Kind != block.EventUpdateBlock {
		t.Fatalf("expected UpdateBlock, got %+v", events)
	}
	tc := events[0].Content.ToolCall
	if !tc.ResultIsFinal || tc.Result == nil || *tc.Result != "ok: 10 passed" {
		t.Fatalf("unexpected tool call content: %+v", tc)
	}
	if events[0].BlockID != toolBlockID {
		t.Fatalf("result update targeted wrong block id")
	}

	// A post-result hook_progress for the same parent must be a no-op.
	postHook := mustParse(t, `{"type":"progress","subtype":"hook_progress","parentToolUseID":"T","hookName":"PostToolUse"}`)
	events, _ = Process(ctx, postHook)
	if len(events) != 0 {
		t.Fatalf("expected no-op after final result, got %+v", events)
	}
}

// TestLongResultTruncation covers a tool result long enough to require
// truncation.
func TestLongResultTruncation(t *testing.T) {
	ctx := NewContext()
	use := mustParse(t, `{"type":"assistant","message":{"role":"assistant","content":[
		{"type":"tool_use","id":"T","name":"Bash","input":{"command":"cat f"}}
	]}}`)
	_, ctx = Process(ctx, use)

	result := mustParse(t, `{"type":"user","message":{"role":"user","content":[
		{"type":"tool_result","tool_use_id":"T","content":"l1\nl2\nl3\nl4\nl5\nl6","is_error":false}
	]}}`)
	events, _ := Process(ctx, result)
	got := *events[0].Content.ToolCall.Result
	want := "l1\nl2\nl3\nl4\n…"
	if got != want {
		t.Fatalf("truncated result = %q, want %q", got, want)
	}
}

// TestCompactionOrphan covers a tool_result arriving for a
// pre-compaction tool_use_id after ClearAll; it renders as a System block.
func TestCompactionOrphan(t *testing.T) {
	ctx := NewContext()
	use := mustParse(t, `{"type":"assistant","message":{"role":"assistant","content":[
		{"type":"tool_use","id":"T","name":"Bash","input":{"command":"ls"}}
	]}}`)
	_, ctx = Process(ctx, use)

	compact := mustParse(t, `{"type":"system","subtype":"compact_boundary"}`)
	events, ctx := Process(ctx, compact)
	if len(events) != 1 || events[0].Kind != block.EventClearAll {
		t.Fatalf("expected ClearAll, got %+v", events)
	}

	orphan := mustParse(t, `{"type":"user","message":{"role":"user","content":[
		{"type":"tool_result","tool_use_id":"T","content":"stale","is_error":false}
	]}}`)
	events, _ = Process(ctx, orphan)
	if len(events) != 1 || events[0].Kind != block.EventAddBlock || events[0].Block.Type != block.TypeSystem {
		t.Fatalf("expected orphan System block, got %+v", events)
	}
}

// TestRequestGrouping covers consecutive assistant/tool blocks sharing a
// request_id setting the grouping field; a following user input clears it.
func TestRequestGrouping(t *testing.T) {
	ctx := NewContext()

	a1 := mustParse(t, `{"type":"assistant","requestId":"R","message":{"role":"assistant","content":[{"type":"text","text":"first"}]}}`)
	events, ctx := Process(ctx, a1)
	if events[0].RequestID == nil || *events[0].RequestID != "R" {
		t.Fatalf("expected request id R, got %+v", events[0].RequestID)
	}

	tu := mustParse(t, `{"type":"assistant","requestId":"R","message":{"role":"assistant","content":[{"type":"tool_use","id":"T","name":"Bash","input":{}}]}}`)
	events, ctx = Process(ctx, tu)
	if events[0].RequestID == nil || *events[0].RequestID != "R" {
		t.Fatalf("expected request id R on tool call, got %+v", events[0].RequestID)
	}

	user := mustParse(t, `{"type":"user","message":{"role":"user","content":"go"}}`)
	_, ctx = Process(ctx, user)
	if ctx.CurrentRequestID != nil {
		t.Fatalf("expected request id cleared after user input")
	}
}

// TestContextNotMutated asserts testable property #1: the caller's ctx
// argument is never observably mutated by Process.
func TestContextNotMutated(t *testing.T) {
	ctx := NewContext()
	use := mustParse(t, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"T","name":"Bash","input":{}}]}}`)
	before := len(ctx.ToolBlockID)
	_, _ = Process(ctx, use)
	if len(ctx.ToolBlockID) != before {
		t.Fatalf("Process mutated the caller's context")
	}
}

func TestQuestionAnswerFlow(t *testing.T) {
	ctx := NewContext()
	ask := mustParse(t, `{"type":"assistant","message":{"role":"assistant","content":[
		{"type":"tool_use","id":"Q1","name":"AskUserQuestion","input":{"questions":[
			{"header":"Proceed?","question":"Continue with deploy?","multiSelect":false,"options":[{"label":"Yes"},{"label":"No"}]}
		]}}
	]}}`)
	events, ctx := Process(ctx, ask)
	if events[0].Block.Type != block.TypeQuestion {
		t.Fatalf("expected Question block")
	}

	answer := mustParse(t, `{"type":"user","message":{"role":"user","content":[
		{"type":"tool_result","tool_use_id":"Q1","content":"answered"}
	]},"toolUseResult":{"answers":{"Proceed?":"Yes"}}}`)
	events, _ = Process(ctx, answer)
	if events[0].Kind != block.EventUpdateBlock {
		t.Fatalf("expected UpdateBlock for answer")
	}
	if got := events[0].Content.Question.Answers["Proceed?"]; got != "Yes" {
		t.Fatalf("answer = %q", got)
	}
}
