package render

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
)

// Render concatenates the rendering of every block with a blank-line
// separator, except between consecutive blocks sharing a non-null
// RequestID.
func Render(blocks []block.Block) string {
	var sb strings.Builder
	var prevReqID *string
	for _, b := range blocks {
		text := RenderBlock(b)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			if !sameGroup(prevReqID, b.RequestID) {
				sb.WriteString("\n\n")
			} else {
				sb.WriteString("\n")
			}
		}
		sb.WriteString(text)
		prevReqID = b.RequestID
	}
	return sb.String()
}

func sameGroup(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

// RenderBlock renders a single block to its markdown text form per the
// per-block rendering contract.
func RenderBlock(b block.Block) string {
	switch b.Type {
	case block.TypeUser:
		return renderLeading(b.Content.User.Text, "❯ ")
	case block.TypeAssistant:
		return renderLeading(b.Content.Assistant.Text, "● ")
	case block.TypeToolCall:
		return renderToolCall(*b.Content.ToolCall)
	case block.TypeThinking:
		return "✱ Thinking…"
	case block.TypeDuration:
		return "✱ Crunched for " + formatDuration(b.Content.Duration.DurationMs)
	case block.TypeSystem:
		return b.Content.System.Text
	case block.TypeQuestion:
		return renderQuestion(*b.Content.Question)
	default:
		return ""
	}
}

// renderLeading renders multi-line text with a marker on the first line
// and two-space indentation on continuation lines.
func renderLeading(text, marker string) string {
	lines := strings.Split(text, "\n")
	var sb strings.Builder
	sb.WriteString(marker)
	sb.WriteString(lines[0])
	for _, l := range lines[1:] {
		sb.WriteString("\n  ")
		sb.WriteString(l)
	}
	return sb.String()
}

func renderToolCall(tc block.ToolCallContent) string {
	header := fmt.Sprintf("● %s(%s)", tc.ToolName, tc.Label)
	switch {
	case tc.Result != nil:
		lines := strings.Split(*tc.Result, "\n")
		prefix := "  └ "
		if tc.IsError {
			prefix = "  ✗ "
		}
		var sb strings.Builder
		sb.WriteString(header)
		sb.WriteString("\n")
		sb.WriteString(prefix)
		sb.WriteString(lines[0])
		for _, l := range lines[1:] {
			sb.WriteString("\n    ")
			sb.WriteString(l)
		}
		return sb.String()
	case tc.ProgressText != nil:
		return header + "\n  └ " + *tc.ProgressText
	default:
		return header
	}
}

func formatDuration(ms int) string {
	totalSeconds := ms / 1000
	if totalSeconds >= 60 {
		m := totalSeconds / 60
		s := totalSeconds % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", totalSeconds)
}

func renderQuestion(q block.QuestionContent) string {
	var sb strings.Builder
	for i, item := range q.Questions {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(item.Header)
		if answer, answered := q.Answers[item.Header]; answered {
			sb.WriteString("\n✓ ")
			sb.WriteString(answer)
			continue
		}
		for _, opt := range item.Options {
			sb.WriteString("\n○ ")
			sb.WriteString(opt.Label)
		}
		sb.WriteString("\n(awaiting response)")
	}
	return sb.String()
}
