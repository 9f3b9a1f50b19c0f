package process

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// truncate shortens s to maxLen runes, appending a single-character
// ellipsis if it was cut.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "…"
}

// toolInput decodes a tool_use block's input into a generic string map;
// missing or malformed input yields an empty map rather than an error.
func toolInput(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func inputString(input map[string]any, key string) (string, bool) {
	v, ok := input[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// abbreviateLabel implements the tool-label abbreviation table.
func abbreviateLabel(toolName string, input map[string]any) string {
	switch toolName {
	case "Bash":
		if s, ok := inputString(input, "description"); ok {
			return truncate(s, 60)
		}
		if s, ok := inputString(input, "command"); ok {
			return truncate(s, 60)
		}
		return "…"
	case "Read", "Write", "Edit", "NotebookEdit":
		if s, ok := inputString(input, "file_path"); ok {
			return filepath.Base(s)
		}
		return "…"
	case "Glob", "Grep":
		if s, ok := inputString(input, "pattern"); ok {
			return truncate(s, 60)
		}
		return "…"
	case "Task":
		if s, ok := inputString(input, "description"); ok {
			return truncate(s, 60)
		}
		return "…"
	case "WebSearch":
		if s, ok := inputString(input, "query"); ok {
			return truncate(s, 60)
		}
		return "…"
	case "WebFetch":
		if s, ok := inputString(input, "url"); ok {
			return truncate(s, 60)
		}
		return "…"
	case "TodoWrite":
		return "todos"
	default:
		return "…"
	}
}

// lastNonEmptyLine returns the last non-blank line of s, or "" if none.
func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimRight(lines[i], " \t\r")
		if line != "" {
			return line
		}
	}
	return ""
}

// bashProgressText derives the progress text for a bash_progress record.
func bashProgressText(fullOutput string) string {
	line := lastNonEmptyLine(fullOutput)
	if line == "" {
		return "running…"
	}
	return truncate(line, 76)
}

func hookProgressText(hookName string) string {
	return fmt.Sprintf("Hook: %s", hookName)
}

const agentProgressText = "Agent: working…"

func queryUpdateText(query string) string {
	return fmt.Sprintf("Searching: %s", query)
}

func searchResultsText(count int) string {
	noun := "results"
	if count == 1 {
		noun = "result"
	}
	return fmt.Sprintf("%d %s", count, noun)
}

func waitingForTaskText(description string) string {
	return fmt.Sprintf("Waiting: %s", description)
}

// truncateResult implements the "Result truncation for display" rule
//: empty -> "(no output)"; <=5 lines unchanged; else first 4
// lines + "…".
func truncateResult(content string) string {
	if strings.TrimSpace(content) == "" {
		return "(no output)"
	}
	lines := strings.Split(content, "\n")
	if len(lines) <= 5 {
		return content
	}
	return strings.Join(lines[:4], "\n") + "\n…"
}
