package orchestrator

import (
	"testing"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
	"github.com/nextlevelbuilder/sessionscope/internal/buffer"
)

func TestApplyEntriesAppliesUpdatesInOrder(t *testing.T) {
	id := block.NewID()
	entries := []buffer.Entry{
		{ID: "evt_000001", Event: block.AddBlock(block.Block{ID: id, Type: block.TypeAssistant, Content: block.Content{Assistant: &block.AssistantContent{Text: "first"}}})},
		{ID: "evt_000002", Event: block.UpdateBlock(id, block.Content{Assistant: &block.AssistantContent{Text: "second"}}, nil)},
	}

	blocks := applyEntries(entries)
	if len(blocks) != 1 {
		t.Fatalf("expected exactly 1 reconstructed block, got %d", len(blocks))
	}
	if blocks[0].Content.Assistant == nil || blocks[0].Content.Assistant.Text != "second" {
		t.Fatalf("expected the update to win, got %+v", blocks[0].Content.Assistant)
	}
}

func TestApplyEntriesClearAllEmptiesState(t *testing.T) {
	id := block.NewID()
	entries := []buffer.Entry{
		{ID: "evt_000001", Event: block.AddBlock(block.Block{ID: id, Type: block.TypeUser, Content: block.Content{User: &block.UserContent{Text: "hi"}}})},
		{ID: "evt_000002", Event: block.ClearAllEvent()},
	}

	blocks := applyEntries(entries)
	if len(blocks) != 0 {
		t.Fatalf("expected clear_all to empty reconstructed state, got %d blocks", len(blocks))
	}
}

func TestApplyEntriesPreservesInsertionOrder(t *testing.T) {
	first := block.NewID()
	second := block.NewID()
	entries := []buffer.Entry{
		{ID: "evt_000001", Event: block.AddBlock(block.Block{ID: first, Type: block.TypeUser, Content: block.Content{User: &block.UserContent{Text: "a"}}})},
		{ID: "evt_000002", Event: block.AddBlock(block.Block{ID: second, Type: block.TypeUser, Content: block.Content{User: &block.UserContent{Text: "b"}}})},
	}

	blocks := applyEntries(entries)
	if len(blocks) != 2 || blocks[0].ID != first || blocks[1].ID != second {
		t.Fatalf("expected blocks in insertion order [%s, %s], got %+v", first, second, blocks)
	}
}
