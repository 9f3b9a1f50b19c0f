package message

import (
	"testing"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
)

func TestUserBlockFinalizesTurnAndSendsStandalone(t *testing.T) {
	tr := NewTracker()
	a1 := tr.HandleEvent(block.AddBlock(block.Block{ID: block.NewID(), Type: block.TypeAssistant, Content: block.Content{Assistant: &block.AssistantContent{Text: "hi"}}}))
	if a1.Action != ActionSendNew || a1.Kind != KindTurn {
		t.Fatalf("unexpected first action: %+v", a1)
	}
	tr.RecordMessageID(a1.Key, "slack:chan1", "m1")

	u := tr.HandleEvent(block.AddBlock(block.Block{ID: block.NewID(), Type: block.TypeUser, Content: block.Content{User: &block.UserContent{Text: "go"}}}))
	if u.Action != ActionSendNew || u.Kind != KindUser {
		t.Fatalf("unexpected user action: %+v", u)
	}

	// A subsequent assistant block must open a new turn, not resume the old one.
	a2 := tr.HandleEvent(block.AddBlock(block.Block{ID: block.NewID(), Type: block.TypeAssistant, Content: block.Content{Assistant: &block.AssistantContent{Text: "next"}}}))
	if a2.Action != ActionSendNew || a2.Key == a1.Key {
		t.Fatalf("expected a fresh turn after User finalized the previous one: %+v", a2)
	}
}

func TestToolCallAppendsToOpenTurnAndUpdatesAfterSend(t *testing.T) {
	tr := NewTracker()
	toolBlock := block.Block{
		ID:   block.NewID(),
		Type: block.TypeToolCall,
		Content: block.Content{ToolCall: &block.ToolCallContent{ToolName: "Bash", ToolUseID: "tu1", Label: "run"}},
	}
	first := tr.HandleEvent(block.AddBlock(toolBlock))
	if first.Action != ActionSendNew {
		t.Fatalf("expected send_new for first tool call, got %+v", first)
	}
	tr.RecordMessageID(first.Key, "telegram:123", "plat-1")

	updated := toolBlock.Content.Clone()
	updated.ToolCall.ProgressText = strp2("working…")
	upd := tr.HandleEvent(block.UpdateBlock(toolBlock.ID, updated, nil))
	if upd == nil || upd.Action != ActionUpdateExisting {
		t.Fatalf("expected update_existing after a message id was recorded, got %+v", upd)
	}
	if upd.Key != first.Key {
		t.Fatalf("expected update to route to the same turn key")
	}
}

func strp2(s string) *string { return &s }

func TestQuestionSendThenAnswerTriggersRemoveKeyboard(t *testing.T) {
	tr := NewTracker()
	qBlock := block.Block{
		ID:   block.NewID(),
		Type: block.TypeQuestion,
		Content: block.Content{Question: &block.QuestionContent{
			ToolUseID: "tu-q1",
			Questions: []block.QuestionItem{{Header: "Proceed?", Options: []block.QuestionOption{{Label: "Yes"}}}},
		}},
	}
	sent := tr.HandleEvent(block.AddBlock(qBlock))
	if sent.Action != ActionSendNew || sent.Kind != KindQuestion {
		t.Fatalf("unexpected question send action: %+v", sent)
	}
	tr.RecordMessageID(sent.Key, "slack:chan1", "q-msg-1")

	answered := qBlock.Content.Clone()
	answered.Question.Answers = map[string]string{"Proceed?": "Yes"}
	upd := tr.HandleEvent(block.UpdateBlock(qBlock.ID, answered, nil))
	if upd == nil || upd.Action != ActionUpdateExisting || !upd.RemoveKeyboard {
		t.Fatalf("expected update_existing with remove_keyboard, got %+v", upd)
	}
}

func TestThinkingProducesNoAction(t *testing.T) {
	tr := NewTracker()
	a := tr.HandleEvent(block.AddBlock(block.Block{ID: block.NewID(), Type: block.TypeThinking, Content: block.Content{Thinking: &block.ThinkingContent{}}}))
	if a != nil {
		t.Fatalf("expected nil action for Thinking, got %+v", a)
	}
}

func TestClearAllSendsCompactionNoticeAndResetsState(t *testing.T) {
	tr := NewTracker()
	tr.HandleEvent(block.AddBlock(block.Block{ID: block.NewID(), Type: block.TypeAssistant, Content: block.Content{Assistant: &block.AssistantContent{Text: "hi"}}}))

	a := tr.HandleEvent(block.ClearAllEvent())
	if a.Action != ActionSendNew || a.Kind != KindCompactionNotice {
		t.Fatalf("unexpected clear-all action: %+v", a)
	}

	// After ClearAll, a fresh assistant block opens a brand-new turn.
	next := tr.HandleEvent(block.AddBlock(block.Block{ID: block.NewID(), Type: block.TypeAssistant, Content: block.Content{Assistant: &block.AssistantContent{Text: "again"}}}))
	if next.Action != ActionSendNew || next.Kind != KindTurn {
		t.Fatalf("expected a fresh turn after ClearAll, got %+v", next)
	}
}

func TestUnroutableUpdateIsIgnored(t *testing.T) {
	tr := NewTracker()
	a := tr.HandleEvent(block.UpdateBlock(block.NewID(), block.Content{System: &block.SystemContent{Text: "x"}}, nil))
	if a != nil {
		t.Fatalf("expected nil for an update with no known owner, got %+v", a)
	}
}
