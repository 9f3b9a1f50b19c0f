// Package render maintains the ordered block list a session's events are
// applied to, and formats it to markdown, Telegram, and Slack payloads.
package render

import "github.com/nextlevelbuilder/sessionscope/internal/block"

// Consumer applies AddBlock/UpdateBlock/ClearAll events to an ordered
// block list. It is per-session and single-writer.
type Consumer struct {
	blocks []block.Block
	index  map[block.ID]int
}

// NewConsumer returns an empty Consumer.
func NewConsumer() *Consumer {
	return &Consumer{index: make(map[block.ID]int)}
}

// Apply applies one event, mutating the consumer's block list in place.
func (c *Consumer) Apply(ev block.Event) {
	switch ev.Kind {
	case block.EventAddBlock:
		if ev.Block == nil {
			return
		}
		c.index[ev.Block.ID] = len(c.blocks)
		c.blocks = append(c.blocks, *ev.Block)
	case block.EventUpdateBlock:
		i, ok := c.index[ev.BlockID]
		if !ok || ev.Content == nil {
			return
		}
		c.blocks[i].Content = *ev.Content
		c.blocks[i].RequestID = ev.RequestID
	case block.EventClearAll:
		c.blocks = nil
		c.index = make(map[block.ID]int)
	}
}

// ApplyAll applies a batch of events in order.
func (c *Consumer) ApplyAll(events []block.Event) {
	for _, ev := range events {
		c.Apply(ev)
	}
}

// Blocks returns the current ordered block list. The returned slice must
// not be mutated by the caller.
func (c *Consumer) Blocks() []block.Block {
	return c.blocks
}

// Len returns the number of live blocks.
func (c *Consumer) Len() int {
	return len(c.blocks)
}
