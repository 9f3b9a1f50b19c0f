package process

import (
	"encoding/json"
	"strings"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
	"github.com/nextlevelbuilder/sessionscope/internal/classify"
)

const askUserQuestionTool = "AskUserQuestion"

// Process maps one classified record to the events it produces, returning
// a new Context; ctx is never mutated.
func Process(ctx Context, rec classify.Record) ([]block.Event, Context) {
	next := ctx.Clone()
	lt := classify.Classify(rec)

	switch lt {
	case classify.UserInput:
		return processUserInput(rec, next)
	case classify.LocalCommandOutput:
		return processLocalCommandOutput(rec, next)
	case classify.AssistantText:
		return processAssistantText(rec, next)
	case classify.ToolUse:
		return processToolUse(rec, next)
	case classify.Thinking:
		return processThinking(rec, next)
	case classify.TurnDuration:
		return processTurnDuration(rec, next)
	case classify.ToolResult:
		return processToolResult(rec, next)
	case classify.BashProgress, classify.HookProgress, classify.AgentProgress,
		classify.QueryUpdate, classify.SearchResults:
		return processProgress(lt, rec, next)
	case classify.WaitingForTask:
		return processWaitingForTask(rec, next)
	case classify.CompactBoundary:
		return []block.Event{block.ClearAllEvent()}, NewContext()
	default: // Invisible
		return nil, next
	}
}

func firstText(rec classify.Record) string {
	for _, b := range rec.Message.ContentBlocks() {
		if b.Type == "text" {
			return b.Text
		}
	}
	return ""
}

func processUserInput(rec classify.Record, ctx Context) ([]block.Event, Context) {
	ctx.CurrentRequestID = nil
	b := block.Block{
		ID:   block.NewID(),
		Type: block.TypeUser,
		Content: block.Content{
			User: &block.UserContent{Text: firstText(rec)},
		},
	}
	return []block.Event{block.AddBlock(b)}, ctx
}

func processLocalCommandOutput(rec classify.Record, ctx Context) ([]block.Event, Context) {
	text := firstText(rec)
	const openTag, closeTag = "<local-command-stdout>", "</local-command-stdout>"
	if i := strings.Index(text, openTag); i >= 0 {
		text = text[i+len(openTag):]
		if j := strings.Index(text, closeTag); j >= 0 {
			text = text[:j]
		}
	}
	b := block.Block{
		ID:   block.NewID(),
		Type: block.TypeSystem,
		Content: block.Content{
			System: &block.SystemContent{Text: strings.TrimSpace(text)},
		},
	}
	return []block.Event{block.AddBlock(b)}, ctx
}

func processAssistantText(rec classify.Record, ctx Context) ([]block.Event, Context) {
	var reqID *string
	if rec.RequestID != "" {
		id := rec.RequestID
		reqID = &id
		ctx.CurrentRequestID = &id
	}
	b := block.Block{
		ID:        block.NewID(),
		Type:      block.TypeAssistant,
		RequestID: reqID,
		Content: block.Content{
			Assistant: &block.AssistantContent{Text: firstText(rec), RequestID: reqID},
		},
	}
	return []block.Event{block.AddBlock(b)}, ctx
}

func firstToolUseBlock(rec classify.Record) (classify.ContentBlock, bool) {
	for _, b := range rec.Message.ContentBlocks() {
		if b.Type == "tool_use" {
			return b, true
		}
	}
	return classify.ContentBlock{}, false
}

func processToolUse(rec classify.Record, ctx Context) ([]block.Event, Context) {
	tb, ok := firstToolUseBlock(rec)
	if !ok {
		return nil, ctx
	}
	toolUseID := tb.ID
	if toolUseID == "" {
		toolUseID = rec.ToolUseID
	}

	var reqID *string
	if rec.RequestID != "" {
		id := rec.RequestID
		reqID = &id
	}

	if tb.Name == askUserQuestionTool {
		q := block.QuestionContent{
			ToolUseID: toolUseID,
			Questions: parseQuestions(tb.Input),
		}
		ctx.QuestionContent[toolUseID] = q
		b := block.Block{
			ID:   block.NewID(),
			Type: block.TypeQuestion,
			Content: block.Content{
				Question: cloneQuestion(q),
			},
		}
		ctx.ToolBlockID[toolUseID] = b.ID
		return []block.Event{block.AddBlock(b)}, ctx
	}

	input := toolInput(tb.Input)
	tc := block.ToolCallContent{
		ToolName:  tb.Name,
		ToolUseID: toolUseID,
		Label:     abbreviateLabel(tb.Name, input),
		RequestID: reqID,
	}
	ctx.ToolContent[toolUseID] = tc
	b := block.Block{
		ID:        block.NewID(),
		Type:      block.TypeToolCall,
		RequestID: reqID,
		Content: block.Content{
			ToolCall: cloneToolCall(tc),
		},
	}
	ctx.ToolBlockID[toolUseID] = b.ID
	return []block.Event{block.AddBlock(b)}, ctx
}

type questionInput struct {
	Questions []struct {
		Header      string `json:"header"`
		Question    string `json:"question"`
		MultiSelect bool   `json:"multiSelect"`
		Options     []struct {
			Label       string `json:"label"`
			Description string `json:"description"`
		} `json:"options"`
	} `json:"questions"`
}

func parseQuestions(raw json.RawMessage) []block.QuestionItem {
	var qi questionInput
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &qi); err != nil {
		return nil
	}
	out := make([]block.QuestionItem, 0, len(qi.Questions))
	for _, q := range qi.Questions {
		opts := make([]block.QuestionOption, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, block.QuestionOption{Label: o.Label, Description: o.Description})
		}
		out = append(out, block.QuestionItem{
			Header:      q.Header,
			Question:    q.Question,
			Options:     opts,
			MultiSelect: q.MultiSelect,
		})
	}
	return out
}

func processThinking(rec classify.Record, ctx Context) ([]block.Event, Context) {
	var reqID *string
	if rec.RequestID != "" {
		id := rec.RequestID
		reqID = &id
	}
	b := block.Block{
		ID:        block.NewID(),
		Type:      block.TypeThinking,
		RequestID: reqID,
		Content: block.Content{
			Thinking: &block.ThinkingContent{RequestID: reqID},
		},
	}
	return []block.Event{block.AddBlock(b)}, ctx
}

func processTurnDuration(rec classify.Record, ctx Context) ([]block.Event, Context) {
	ctx.CurrentRequestID = nil
	b := block.Block{
		ID:   block.NewID(),
		Type: block.TypeDuration,
		Content: block.Content{
			Duration: &block.DurationContent{DurationMs: rec.DurationMs},
		},
	}
	return []block.Event{block.AddBlock(b)}, ctx
}

func processWaitingForTask(rec classify.Record, ctx Context) ([]block.Event, Context) {
	if rec.ParentToolUseID != "" {
		if _, ok := ctx.ToolBlockID[rec.ParentToolUseID]; ok {
			// Has a parent tool call: treated as a progress update, not a
			// standalone System block.
			return processProgress(classify.WaitingForTask, rec, ctx)
		}
	}
	b := block.Block{
		ID:   block.NewID(),
		Type: block.TypeSystem,
		Content: block.Content{
			System: &block.SystemContent{Text: waitingForTaskText(rec.TaskDescription)},
		},
	}
	return []block.Event{block.AddBlock(b)}, ctx
}

func processProgress(lt classify.LineType, rec classify.Record, ctx Context) ([]block.Event, Context) {
	parentID := rec.ParentToolUseID
	blockID, ok := ctx.ToolBlockID[parentID]
	if !ok {
		return nil, ctx
	}
	tc, ok := ctx.ToolContent[parentID]
	if !ok {
		return nil, ctx
	}
	if tc.ResultIsFinal {
		// Post-result progress noise: no-op.
		return nil, ctx
	}

	var text string
	switch lt {
	case classify.BashProgress:
		text = bashProgressText(rec.FullOutput)
	case classify.HookProgress:
		text = hookProgressText(rec.HookName)
	case classify.AgentProgress:
		text = agentProgressText
	case classify.QueryUpdate:
		text = queryUpdateText(rec.Query)
	case classify.SearchResults:
		text = searchResultsText(rec.ResultCount)
	case classify.WaitingForTask:
		text = waitingForTaskText(rec.TaskDescription)
	}

	tc.ProgressText = &text
	ctx.ToolContent[parentID] = tc

	return []block.Event{block.UpdateBlock(blockID, block.Content{ToolCall: cloneToolCall(tc)}, tc.RequestID)}, ctx
}

func processToolResult(rec classify.Record, ctx Context) ([]block.Event, Context) {
	var trb classify.ContentBlock
	for _, b := range rec.Message.ContentBlocks() {
		if b.Type == "tool_result" {
			trb = b
			break
		}
	}
	toolUseID := trb.ToolUseID
	if toolUseID == "" {
		toolUseID = rec.ToolUseID
	}

	if q, ok := ctx.QuestionContent[toolUseID]; ok {
		answers := extractAnswers(rec)
		q.Answers = answers
		ctx.QuestionContent[toolUseID] = q
		blockID := ctx.ToolBlockID[toolUseID]
		return []block.Event{block.UpdateBlock(blockID, block.Content{Question: cloneQuestion(q)}, nil)}, ctx
	}

	if tc, ok := ctx.ToolContent[toolUseID]; ok {
		blockID := ctx.ToolBlockID[toolUseID]
		resultText := resolveResultText(rec, trb, tc.ToolName)
		isError := trb.IsError
		displayed := truncateResult(resultText)
		tc.Result = &displayed
		tc.IsError = isError
		tc.ResultIsFinal = true
		tc.ProgressText = nil
		ctx.ToolContent[toolUseID] = tc
		return []block.Event{block.UpdateBlock(blockID, block.Content{ToolCall: cloneToolCall(tc)}, tc.RequestID)}, ctx
	}

	// Orphan tool_result: no matching ToolCall (e.g. post-compaction).
	text := resolveResultText(rec, trb, "")
	b := block.Block{
		ID:   block.NewID(),
		Type: block.TypeSystem,
		Content: block.Content{
			System: &block.SystemContent{Text: truncateResult(text)},
		},
	}
	return []block.Event{block.AddBlock(b)}, ctx
}

// resolveResultText implements the Task-tool special case:
// for Task, the result comes from toolUseResult.content[0].text truncated
// to 80 chars rather than the content-block text.
func resolveResultText(rec classify.Record, trb classify.ContentBlock, toolName string) string {
	if toolName == "Task" {
		if obj, ok := rec.ToolUseResult.AsObject(); ok {
			var items []classify.ContentBlock
			if err := json.Unmarshal(obj.Content, &items); err == nil && len(items) > 0 {
				return truncate(items[0].Text, 80)
			}
		}
	}
	if s, ok := rec.ToolUseResult.AsString(); ok {
		return s
	}
	return trb.ResultText()
}

// extractAnswers decodes the toolUseResult.answers object for a Question
// tool_result into a header->selected-label(s) map.
func extractAnswers(rec classify.Record) map[string]string {
	obj, ok := rec.ToolUseResult.AsObject()
	if !ok || len(obj.Answers) == 0 {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(obj.Answers, &raw); err != nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for header, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[header] = s
			continue
		}
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			out[header] = strings.Join(list, ", ")
		}
	}
	return out
}

func cloneToolCall(tc block.ToolCallContent) *block.ToolCallContent {
	v := tc
	return &v
}

func cloneQuestion(q block.QuestionContent) *block.QuestionContent {
	v := q
	v.Questions = append([]block.QuestionItem(nil), q.Questions...)
	if q.Answers != nil {
		v.Answers = make(map[string]string, len(q.Answers))
		for k, val := range q.Answers {
			v.Answers[k] = val
		}
	}
	return &v
}
