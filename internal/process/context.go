// Package process implements the stateless event processor:
// (context, line) -> (events, context'), turning classified records into
// the block.Event stream.
package process

import (
	"encoding/json"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
)

// Context is the per-session ProcessingContext. It must be
// treated as an immutable value by callers of Process: the returned
// Context may share no memory with the input, so mutating one never
// observably mutates the other. Implementations that want a single
// mutable context per session loop should treat Process's input as a
// borrow and replace it wholesale with the result.
type Context struct {
	// ToolBlockID maps a tool_use_id to the block id that owns it.
	ToolBlockID map[string]block.ID
	// ToolContent caches the last-known ToolCallContent per tool_use_id so
	// progress/result updates can rebuild a complete payload.
	ToolContent map[string]block.ToolCallContent
	// QuestionContent caches the last-known QuestionContent per tool_use_id.
	QuestionContent map[string]block.QuestionContent
	// CurrentRequestID is the grouping key for consecutive same-turn blocks;
	// nil when no turn is open.
	CurrentRequestID *string
}

// NewContext returns a fresh, empty Context (post-ClearAll state).
func NewContext() Context {
	return Context{
		ToolBlockID:     map[string]block.ID{},
		ToolContent:     map[string]block.ToolCallContent{},
		QuestionContent: map[string]block.QuestionContent{},
	}
}

// Clone returns a deep copy so the caller's Context is never observably
// mutated by Process.
func (c Context) Clone() Context {
	out := Context{
		ToolBlockID:     make(map[string]block.ID, len(c.ToolBlockID)),
		ToolContent:     make(map[string]block.ToolCallContent, len(c.ToolContent)),
		QuestionContent: make(map[string]block.QuestionContent, len(c.QuestionContent)),
	}
	for k, v := range c.ToolBlockID {
		out.ToolBlockID[k] = v
	}
	for k, v := range c.ToolContent {
		out.ToolContent[k] = v
	}
	for k, v := range c.QuestionContent {
		q := v
		q.Questions = append([]block.QuestionItem(nil), v.Questions...)
		if v.Answers != nil {
			q.Answers = make(map[string]string, len(v.Answers))
			for ak, av := range v.Answers {
				q.Answers[ak] = av
			}
		}
		out.QuestionContent[k] = q
	}
	if c.CurrentRequestID != nil {
		id := *c.CurrentRequestID
		out.CurrentRequestID = &id
	}
	return out
}

// ToDict serializes the context to a plain map for state-store persistence.
func (c Context) ToDict() map[string]any {
	toolBlockID := make(map[string]string, len(c.ToolBlockID))
	for k, v := range c.ToolBlockID {
		toolBlockID[k] = string(v)
	}
	d := map[string]any{
		"tool_block_id":    toolBlockID,
		"tool_content":     c.ToolContent,
		"question_content": c.QuestionContent,
	}
	if c.CurrentRequestID != nil {
		d["current_request_id"] = *c.CurrentRequestID
	}
	return d
}

// FromDict rebuilds a Context from a map produced by ToDict (round-tripped
// through JSON by the state store). A malformed dict yields a fresh,
// empty Context rather than an error — state-store corruption is non-fatal.
func FromDict(d map[string]any) Context {
	ctx := NewContext()
	if d == nil {
		return ctx
	}

	// Re-marshal and unmarshal through the concrete field types: d's values
	// came from a json.Unmarshal into map[string]any (or from ToDict's own
	// any-typed map in the same-process case), so this normalizes both.
	raw, err := json.Marshal(d)
	if err != nil {
		return ctx
	}

	var shadow struct {
		ToolBlockID      map[string]string                `json:"tool_block_id"`
		ToolContent      map[string]block.ToolCallContent `json:"tool_content"`
		QuestionContent  map[string]block.QuestionContent `json:"question_content"`
		CurrentRequestID *string                           `json:"current_request_id"`
	}
	if err := json.Unmarshal(raw, &shadow); err != nil {
		return NewContext()
	}

	for k, v := range shadow.ToolBlockID {
		ctx.ToolBlockID[k] = block.ID(v)
	}
	if shadow.ToolContent != nil {
		ctx.ToolContent = shadow.ToolContent
	}
	if shadow.QuestionContent != nil {
		ctx.QuestionContent = shadow.QuestionContent
	}
	ctx.CurrentRequestID = shadow.CurrentRequestID
	return ctx
}
