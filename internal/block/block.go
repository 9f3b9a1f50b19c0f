// Package block defines the UI block algebra: the typed, identity-bearing
// units that a session's transcript is rendered into, and the event union
// a session emits as new lines are processed.
package block

import (
	"crypto/rand"
	"encoding/hex"
)

// ID is an opaque, globally-unique block identifier. Callers must not rely
// on its internal structure.
type ID string

// NewID returns a fresh random 128-bit block id.
func NewID() ID {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("block: failed to read random bytes: " + err.Error())
	}
	return ID(hex.EncodeToString(buf[:]))
}

// Type enumerates the seven block kinds. The union is closed; consumers
// should type-switch on Content, not extend it.
type Type string

const (
	TypeUser      Type = "user"
	TypeAssistant Type = "assistant"
	TypeToolCall  Type = "tool_call"
	TypeQuestion  Type = "question"
	TypeThinking  Type = "thinking"
	TypeDuration  Type = "duration"
	TypeSystem    Type = "system"
)

// Content is the closed set of block payload variants. Exactly one of the
// fields is populated, matching Type.
type Content struct {
	User      *UserContent      `json:"user,omitempty"`
	Assistant *AssistantContent `json:"assistant,omitempty"`
	ToolCall  *ToolCallContent  `json:"tool_call,omitempty"`
	Question  *QuestionContent  `json:"question,omitempty"`
	Thinking  *ThinkingContent  `json:"thinking,omitempty"`
	Duration  *DurationContent  `json:"duration,omitempty"`
	System    *SystemContent    `json:"system,omitempty"`
}

type UserContent struct {
	Text string `json:"text"`
}

type AssistantContent struct {
	Text      string  `json:"text"`
	RequestID *string `json:"request_id,omitempty"`
}

// ToolCallContent is the ToolCall block's evolving state. Result, once set
// with ResultIsFinal=true, must never be overwritten by later progress.
type ToolCallContent struct {
	ToolName       string  `json:"tool_name"`
	ToolUseID      string  `json:"tool_use_id"`
	Label          string  `json:"label"`
	Result         *string `json:"result,omitempty"`
	IsError        bool    `json:"is_error"`
	ProgressText   *string `json:"progress_text,omitempty"`
	RequestID      *string `json:"request_id,omitempty"`
	ResultIsFinal  bool    `json:"result_is_final"`
}

type ThinkingContent struct {
	RequestID *string `json:"request_id,omitempty"`
}

type DurationContent struct {
	DurationMs int `json:"duration_ms"`
}

type SystemContent struct {
	Text string `json:"text"`
}

// QuestionOption is one selectable answer to a Question.
type QuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// QuestionItem is one question within an AskUserQuestion tool call; a single
// tool call may ask several.
type QuestionItem struct {
	Header      string           `json:"header"`
	Question    string           `json:"question"`
	Options     []QuestionOption `json:"options"`
	MultiSelect bool             `json:"multi_select"`
}

// QuestionContent holds the questions and, once answered, the selection.
// Answers maps a question header to the selected label(s) (space-joined for
// multi-select, matching how the renderer formats them).
type QuestionContent struct {
	ToolUseID string            `json:"tool_use_id"`
	Questions []QuestionItem    `json:"questions"`
	Answers   map[string]string `json:"answers,omitempty"`
}

// Block is an ordered, identity-bearing unit of UI.
type Block struct {
	ID        ID      `json:"id"`
	Type      Type    `json:"type"`
	Content   Content `json:"content"`
	RequestID *string `json:"request_id,omitempty"`
}

// Clone returns a deep-enough copy of Content so that mutating the copy
// never observably mutates the original.
func (c Content) Clone() Content {
	out := c
	if c.User != nil {
		v := *c.User
		out.User = &v
	}
	if c.Assistant != nil {
		v := *c.Assistant
		out.Assistant = &v
	}
	if c.ToolCall != nil {
		v := *c.ToolCall
		out.ToolCall = &v
	}
	if c.Question != nil {
		v := *c.Question
		v.Questions = append([]QuestionItem(nil), c.Question.Questions...)
		if c.Question.Answers != nil {
			v.Answers = make(map[string]string, len(c.Question.Answers))
			for k, val := range c.Question.Answers {
				v.Answers[k] = val
			}
		}
		out.Question = &v
	}
	if c.Thinking != nil {
		v := *c.Thinking
		out.Thinking = &v
	}
	if c.Duration != nil {
		v := *c.Duration
		out.Duration = &v
	}
	if c.System != nil {
		v := *c.System
		out.System = &v
	}
	return out
}
