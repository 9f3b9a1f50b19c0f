package classify

import "strings"

// localCommandStdoutMarker is the block tag the host wraps around local
// `!`-prefixed shell command output embedded in a user record.
const localCommandStdoutMarker = "<local-command-stdout>"

const noContentPlaceholder = "(no content)"

// Classify maps a parsed Record to its LineType. It never errors: an
// unrecognized type/subtype, missing fields, or malformed substructure all
// resolve to Invisible.
func Classify(r Record) LineType {
	if r.IsSidechain {
		return Invisible
	}
	if r.IsMeta {
		return Invisible
	}

	switch r.Type {
	case "user":
		return classifyUser(r)
	case "assistant":
		return classifyAssistant(r)
	case "system":
		return classifySystem(r)
	case "progress":
		return classifyProgress(r)
	default:
		// "summary", "file-history-snapshot", "queue-operation", "pr-link",
		// and anything unrecognized carry no renderable block.
		return Invisible
	}
}

func classifyUser(r Record) LineType {
	blocks := r.Message.ContentBlocks()
	for _, b := range blocks {
		if b.Type == "tool_result" {
			return ToolResult
		}
	}
	for _, b := range blocks {
		if b.Type == "text" && strings.Contains(b.Text, localCommandStdoutMarker) {
			return LocalCommandOutput
		}
	}
	return UserInput
}

func classifyAssistant(r Record) LineType {
	blocks := r.Message.ContentBlocks()
	if len(blocks) == 0 {
		return Invisible
	}
	b := blocks[0]
	switch b.Type {
	case "thinking":
		return Thinking
	case "tool_use":
		return ToolUse
	case "text":
		if strings.TrimSpace(b.Text) == "" || strings.TrimSpace(b.Text) == noContentPlaceholder {
			return Invisible
		}
		return AssistantText
	default:
		return Invisible
	}
}

func classifySystem(r Record) LineType {
	switch r.Subtype {
	case "compact_boundary":
		return CompactBoundary
	case "turn_duration":
		return TurnDuration
	default:
		return Invisible
	}
}

func classifyProgress(r Record) LineType {
	switch r.Subtype {
	case "bash_progress":
		return BashProgress
	case "hook_progress":
		return HookProgress
	case "agent_progress":
		return AgentProgress
	case "query_update":
		return QueryUpdate
	case "search_results_received", "search_results":
		return SearchResults
	case "waiting_for_task":
		return WaitingForTask
	default:
		return Invisible
	}
}
