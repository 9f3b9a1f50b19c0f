package render

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
)

// slackMaxBlocks is the platform's per-message Block Kit ceiling.
const slackMaxBlocks = 50

const slackButtonLabelMax = 30
const slackMaxButtons = 5

// SlackBlock is a minimal Block Kit element — only the "section" and
// "actions" types the renderer emits.
type SlackBlock struct {
	Type     string            `json:"type"`
	Text     *SlackText        `json:"text,omitempty"`
	Elements []SlackActionElem `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type SlackActionElem struct {
	Type     string     `json:"type"`
	Text     *SlackText `json:"text"`
	ActionID string     `json:"action_id"`
	Value    string     `json:"value"`
}

// escapeSlackMrkdwn escapes Slack's mrkdwn special characters.
func escapeSlackMrkdwn(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// RenderSlack renders a single block to Block Kit blocks, capped to the
// platform's 50-block ceiling by the caller composing a full message.
func RenderSlack(b block.Block) []SlackBlock {
	if b.Type == block.TypeQuestion {
		return renderSlackQuestion(*b.Content.Question)
	}
	text := RenderBlock(b)
	if text == "" {
		return nil
	}
	blocks := []SlackBlock{{
		Type: "section",
		Text: &SlackText{Type: "mrkdwn", Text: escapeSlackMrkdwn(text)},
	}}
	if len(blocks) > slackMaxBlocks {
		return blocks[:slackMaxBlocks]
	}
	return blocks
}

func renderSlackQuestion(q block.QuestionContent) []SlackBlock {
	var out []SlackBlock
	for _, item := range q.Questions {
		section := SlackBlock{Type: "section", Text: &SlackText{Type: "mrkdwn", Text: escapeSlackMrkdwn(item.Header)}}
		out = append(out, section)

		if answer, answered := q.Answers[item.Header]; answered {
			out = append(out, SlackBlock{Type: "section", Text: &SlackText{Type: "mrkdwn", Text: "✓ " + escapeSlackMrkdwn(answer)}})
			continue
		}

		visible := item.Options
		overflow := 0
		if len(visible) > slackMaxButtons {
			overflow = len(visible) - slackMaxButtons
			visible = visible[:slackMaxButtons]
		}
		var elems []SlackActionElem
		for i, opt := range visible {
			label := opt.Label
			if len(label) > slackButtonLabelMax {
				label = label[:slackButtonLabelMax]
			}
			elems = append(elems, SlackActionElem{
				Type:     "button",
				Text:     &SlackText{Type: "plain_text", Text: label},
				ActionID: fmt.Sprintf("answer_%d", i),
				Value:    fmt.Sprintf("q:%s:%s", q.ToolUseID, opt.Label),
			})
		}
		if overflow > 0 {
			elems = append(elems, SlackActionElem{
				Type:     "button",
				Text:     &SlackText{Type: "plain_text", Text: fmt.Sprintf("%d more in CLI", overflow)},
				ActionID: "answer_overflow",
				Value:    "noop",
			})
		}
		out = append(out, SlackBlock{Type: "actions", Elements: elems})
	}
	if len(out) > slackMaxBlocks {
		return out[:slackMaxBlocks]
	}
	return out
}
