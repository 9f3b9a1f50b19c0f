package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		json string
		want LineType
	}{
		{
			name: "user text",
			json: `{"type":"user","message":{"role":"user","content":"hello"}}`,
			want: UserInput,
		},
		{
			name: "sidechain is invisible",
			json: `{"type":"user","isSidechain":true,"message":{"role":"user","content":"hello"}}`,
			want: Invisible,
		},
		{
			name: "meta is invisible",
			json: `{"type":"assistant","isMeta":true,"message":{"role":"assistant","content":[{"type":"text","text":"x"}]}}`,
			want: Invisible,
		},
		{
			name: "local command stdout",
			json: `{"type":"user","message":{"role":"user","content":[{"type":"text","text":"<local-command-stdout>ok</local-command-stdout>"}]}}`,
			want: LocalCommandOutput,
		},
		{
			name: "tool result",
			json: `{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}`,
			want: ToolResult,
		},
		{
			name: "assistant text",
			json: `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hi"}]}}`,
			want: AssistantText,
		},
		{
			name: "assistant empty content is invisible",
			json: `{"type":"assistant","message":{"role":"assistant","content":[]}}`,
			want: Invisible,
		},
		{
			name: "assistant no-content placeholder is invisible",
			json: `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"(no content)"}]}}`,
			want: Invisible,
		},
		{
			name: "assistant tool use",
			json: `{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"ls"}}]}}`,
			want: ToolUse,
		},
		{
			name: "assistant thinking",
			json: `{"type":"assistant","message":{"role":"assistant","content":[{"type":"thinking","text":"hmm"}]}}`,
			want: Thinking,
		},
		{
			name: "compact boundary",
			json: `{"type":"system","subtype":"compact_boundary"}`,
			want: CompactBoundary,
		},
		{
			name: "turn duration",
			json: `{"type":"system","subtype":"turn_duration","durationMs":1500}`,
			want: TurnDuration,
		},
		{
			name: "unknown system subtype is invisible",
			json: `{"type":"system","subtype":"something_else"}`,
			want: Invisible,
		},
		{
			name: "bash progress",
			json: `{"type":"progress","subtype":"bash_progress","parentToolUseID":"t1","fullOutput":"running"}`,
			want: BashProgress,
		},
		{
			name: "waiting for task",
			json: `{"type":"progress","subtype":"waiting_for_task","taskDescription":"build"}`,
			want: WaitingForTask,
		},
		{
			name: "summary lines carry no block",
			json: `{"type":"summary","summary":"fix auth bug"}`,
			want: Invisible,
		},
		{
			name: "unknown top-level type is invisible",
			json: `{"type":"queue-operation"}`,
			want: Invisible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse([]byte(tt.json))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := Classify(rec); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseMalformedJSON(t *testing.T) {
	if _, err := Parse([]byte("{not json")); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
