// Package classify maps a raw JSONL transcript record to one of the
// 15 semantic LineTypes. Classification is table-driven and
// defensive: duck-typed fields, unknown shapes, and missing data all
// resolve to Invisible rather than erroring.
package classify

import "encoding/json"

// LineType is one of the 15 semantic record classes a transcript line
// classifies into.
type LineType string

const (
	UserInput           LineType = "user_input"
	ToolResult           LineType = "tool_result"
	LocalCommandOutput   LineType = "local_command_output"
	AssistantText        LineType = "assistant_text"
	ToolUse              LineType = "tool_use"
	Thinking             LineType = "thinking"
	TurnDuration         LineType = "turn_duration"
	CompactBoundary      LineType = "compact_boundary"
	BashProgress         LineType = "bash_progress"
	HookProgress         LineType = "hook_progress"
	AgentProgress        LineType = "agent_progress"
	QueryUpdate          LineType = "query_update"
	SearchResults        LineType = "search_results"
	WaitingForTask       LineType = "waiting_for_task"
	Invisible            LineType = "invisible"
)

// ContentBlock is one element of message.content when it is a list rather
// than a bare string.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// ResultText flattens Content (which may be a bare string or a list of
// {type:text} blocks) into plain text for display.
func (b ContentBlock) ResultText() string {
	if len(b.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Content, &s); err == nil {
		return s
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(b.Content, &blocks); err == nil {
		var sb []byte
		for i, inner := range blocks {
			if inner.Type != "text" {
				continue
			}
			if i > 0 && len(sb) > 0 {
				sb = append(sb, '\n')
			}
			sb = append(sb, inner.Text...)
		}
		return string(sb)
	}
	return ""
}

// Message is the record's "message" field; Content may unmarshal as either
// a bare string or a list of ContentBlock — see ContentBlocks.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ContentBlocks returns the message content as a list, synthesizing a
// single text block when content was a bare string. Malformed content
// yields an empty (not nil) slice so callers treat it as "no content".
func (m Message) ContentBlocks() []ContentBlock {
	if len(m.Content) == 0 {
		return []ContentBlock{}
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		if s == "" {
			return []ContentBlock{}
		}
		return []ContentBlock{{Type: "text", Text: s}}
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(m.Content, &blocks); err == nil {
		return blocks
	}
	return []ContentBlock{}
}

// ToolUseResult is the record's "toolUseResult" field, which upstream may
// send as a string, null, or an object — all three must be accepted.
type ToolUseResult struct {
	raw json.RawMessage
}

func (t *ToolUseResult) UnmarshalJSON(data []byte) error {
	t.raw = append([]byte(nil), data...)
	return nil
}

// IsNull reports whether the field was absent or JSON null.
func (t *ToolUseResult) IsNull() bool {
	return len(t.raw) == 0 || string(t.raw) == "null"
}

// AsString returns the value when toolUseResult was a bare string.
func (t *ToolUseResult) AsString() (string, bool) {
	if t == nil || len(t.raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(t.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// ToolUseResultObject is the shape of toolUseResult when it is an object.
type ToolUseResultObject struct {
	Content json.RawMessage `json:"content"`
	Answers json.RawMessage `json:"answers"`
}

// AsObject returns the value when toolUseResult was an object.
func (t *ToolUseResult) AsObject() (ToolUseResultObject, bool) {
	var obj ToolUseResultObject
	if t == nil || len(t.raw) == 0 {
		return obj, false
	}
	if err := json.Unmarshal(t.raw, &obj); err != nil {
		return obj, false
	}
	// An object unmarshal also "succeeds" against a JSON string or number in
	// some encodings; guard by checking the first non-space byte is '{'.
	for _, c := range t.raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return obj, true
		default:
			return obj, false
		}
	}
	return obj, false
}

// Record is the duck-typed shape of one JSONL transcript line. Unknown or
// absent fields are zero values; classify() must treat that as Invisible
// rather than erroring.
type Record struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`

	IsMeta      bool `json:"isMeta,omitempty"`
	IsSidechain bool `json:"isSidechain,omitempty"`

	ParentToolUseID         string `json:"parentToolUseID,omitempty"`
	ToolUseID               string `json:"toolUseID,omitempty"`
	SourceToolAssistantUUID string `json:"sourceToolAssistantUUID,omitempty"`
	RequestID               string `json:"requestId,omitempty"`

	Message Message `json:"message"`

	ToolUseResult ToolUseResult `json:"toolUseResult,omitempty"`

	// progress-record fields (type == "progress"); shape varies by subtype.
	FullOutput      string `json:"fullOutput,omitempty"`
	HookName        string `json:"hookName,omitempty"`
	Query           string `json:"query,omitempty"`
	ResultCount     int    `json:"resultCount,omitempty"`
	TaskDescription string `json:"taskDescription,omitempty"`

	DurationMs int `json:"durationMs,omitempty"`

	Summary string `json:"summary,omitempty"`
}

// Parse decodes one JSONL line into a Record. Malformed JSON is the only
// error this returns; every other shape mismatch is absorbed by Record's
// zero values and surfaced as Invisible by Classify.
func Parse(line []byte) (Record, error) {
	var r Record
	err := json.Unmarshal(line, &r)
	return r, err
}
