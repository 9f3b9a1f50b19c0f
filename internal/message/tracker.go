// Package message implements the message-state tracker: it
// groups the block event stream into destination-facing "messages" (turns,
// standalone user echoes, system lines, questions, compaction notices) and
// decides whether a destination needs a brand-new message or an edit of one
// already sent.
package message

import (
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
)

// Kind classifies the message being sent or updated.
type Kind string

const (
	KindUser             Kind = "user"
	KindTurn             Kind = "turn"
	KindSystem           Kind = "system"
	KindQuestion         Kind = "question"
	KindCompactionNotice Kind = "compaction_notice"
)

// ActionType distinguishes a fresh send from an edit of a prior message.
type ActionType string

const (
	ActionSendNew         ActionType = "send_new"
	ActionUpdateExisting  ActionType = "update_existing"
	ActionNone            ActionType = "none" // not returned by HandleEvent, which reports "nothing to message" (e.g. Thinking) as nil
)

// MessageAction is the tracker's verdict for one event: what to do, and
// the message key (turn id or question tool_use_id) routing future updates
// and debounce keys to the same logical message.
type MessageAction struct {
	Action         ActionType
	Kind           Kind
	Key            string        // turn id, or tool_use_id for questions
	Blocks         []block.Block // ordered blocks composing the message body
	RemoveKeyboard bool          // question answered: publisher should drop its keyboard
}

type turnState struct {
	id         string
	blocks     []block.Block // assistant text block (optional) + tool-call blocks + duration block, in arrival order
	toolIndex  map[string]int
	sent       bool
	messageIDs map[string]string // destination identifier -> platform message id
}

type questionState struct {
	toolUseID  string
	b          block.Block
	sent       bool
	messageIDs map[string]string
}

// Tracker holds the per-session turn/question state. Safe for concurrent
// use from a single session's processing goroutine plus publisher
// callbacks recording message ids.
type Tracker struct {
	mu sync.Mutex

	turn *turnState
	seq  int

	blockOwner map[block.ID]string // tool-call block id -> tool_use_id (within current turn)
	questions  map[string]*questionState
	questionID map[block.ID]string // question block id -> tool_use_id
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		blockOwner: make(map[block.ID]string),
		questions:  make(map[string]*questionState),
		questionID: make(map[block.ID]string),
	}
}

// HandleEvent advances the tracker's state for evt and returns the
// resulting MessageAction, or nil if the event produces no messaging
// action (e.g. a Thinking block, or an UpdateBlock the tracker cannot
// route to any open turn or question).
func (t *Tracker) HandleEvent(evt block.Event) *MessageAction {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch evt.Kind {
	case block.EventAddBlock:
		return t.handleAdd(*evt.Block)
	case block.EventUpdateBlock:
		return t.handleUpdate(evt.BlockID, *evt.Content)
	case block.EventClearAll:
		return t.handleClearAll()
	default:
		return nil
	}
}

func (t *Tracker) handleAdd(b block.Block) *MessageAction {
	switch b.Type {
	case block.TypeUser:
		t.finalizeTurn()
		t.seq++
		turnID := standaloneTurnID(t.seq)
		return &MessageAction{Action: ActionSendNew, Kind: KindUser, Key: turnID, Blocks: []block.Block{b}}

	case block.TypeAssistant:
		if t.turn == nil {
			t.openTurn()
			t.turn.blocks = append(t.turn.blocks, b)
			return &MessageAction{Action: ActionSendNew, Kind: KindTurn, Key: t.turn.id, Blocks: t.turnBlocks()}
		}
		t.turn.blocks = append(t.turn.blocks, b)
		return t.turnAction()

	case block.TypeToolCall:
		if t.turn == nil {
			t.openTurn()
		}
		t.turn.blocks = append(t.turn.blocks, b)
		idx := len(t.turn.blocks) - 1
		t.turn.toolIndex[b.Content.ToolCall.ToolUseID] = idx
		t.blockOwner[b.ID] = b.Content.ToolCall.ToolUseID
		return t.turnAction()

	case block.TypeDuration:
		if t.turn == nil {
			t.openTurn()
		}
		t.turn.blocks = append(t.turn.blocks, b)
		return t.turnAction()

	case block.TypeSystem:
		t.seq++
		return &MessageAction{Action: ActionSendNew, Kind: KindSystem, Key: standaloneTurnID(t.seq), Blocks: []block.Block{b}}

	case block.TypeQuestion:
		q := b.Content.Question
		qs := &questionState{toolUseID: q.ToolUseID, b: b, messageIDs: make(map[string]string)}
		t.questions[q.ToolUseID] = qs
		t.questionID[b.ID] = q.ToolUseID
		return &MessageAction{Action: ActionSendNew, Kind: KindQuestion, Key: q.ToolUseID, Blocks: []block.Block{b}}

	case block.TypeThinking:
		return nil

	default:
		return nil
	}
}

func (t *Tracker) handleUpdate(id block.ID, content block.Content) *MessageAction {
	if toolUseID, ok := t.blockOwner[id]; ok && t.turn != nil {
		if idx, ok := t.turn.toolIndex[toolUseID]; ok {
			t.turn.blocks[idx].Content = content
			return t.turnAction()
		}
	}

	if toolUseID, ok := t.questionID[id]; ok {
		qs, ok := t.questions[toolUseID]
		if !ok {
			return nil
		}
		qs.b.Content = content
		action := ActionSendNew
		if qs.sent {
			action = ActionUpdateExisting
		}
		return &MessageAction{
			Action:         action,
			Kind:           KindQuestion,
			Key:            toolUseID,
			Blocks:         []block.Block{qs.b},
			RemoveKeyboard: content.Question != nil && len(content.Question.Answers) > 0,
		}
	}

	// Unroutable update: no open turn or question owns this id.
	return nil
}

func (t *Tracker) handleClearAll() *MessageAction {
	t.turn = nil
	t.blockOwner = make(map[block.ID]string)
	t.questions = make(map[string]*questionState)
	t.questionID = make(map[block.ID]string)
	t.seq++
	return &MessageAction{Action: ActionSendNew, Kind: KindCompactionNotice, Key: standaloneTurnID(t.seq)}
}

func (t *Tracker) finalizeTurn() {
	t.turn = nil
	t.blockOwner = make(map[block.ID]string)
}

func (t *Tracker) openTurn() {
	t.seq++
	t.turn = &turnState{
		id:         turnID(t.seq),
		toolIndex:  make(map[string]int),
		messageIDs: make(map[string]string),
	}
}

func (t *Tracker) turnBlocks() []block.Block {
	out := make([]block.Block, len(t.turn.blocks))
	copy(out, t.turn.blocks)
	return out
}

func (t *Tracker) turnAction() *MessageAction {
	action := ActionSendNew
	if t.turn.sent {
		action = ActionUpdateExisting
	}
	return &MessageAction{Action: action, Kind: KindTurn, Key: t.turn.id, Blocks: t.turnBlocks()}
}

// RecordMessageID records the platform message id assigned to a send, so
// later updates to the same turn/question route as edits.
func (t *Tracker) RecordMessageID(key, destination, platformID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.turn != nil && t.turn.id == key {
		t.turn.sent = true
		t.turn.messageIDs[destination] = platformID
		return
	}
	if qs, ok := t.questions[key]; ok {
		qs.sent = true
		qs.messageIDs[destination] = platformID
	}
}

// MessageID returns the previously recorded platform message id for key on
// destination, or "" if none has been sent yet.
func (t *Tracker) MessageID(key, destination string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.turn != nil && t.turn.id == key {
		return t.turn.messageIDs[destination]
	}
	if qs, ok := t.questions[key]; ok {
		return qs.messageIDs[destination]
	}
	return ""
}

func turnID(seq int) string {
	return fmt.Sprintf("turn_%06d", seq)
}

func standaloneTurnID(seq int) string {
	return fmt.Sprintf("msg_%06d", seq)
}
