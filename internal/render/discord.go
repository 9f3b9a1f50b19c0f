package render

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
)

// discordMaxChars is the platform's per-message length ceiling; the
// tracker holds one message id per tracked message, so overflow is
// truncated rather than chunked into follow-up messages.
const discordMaxChars = 2000

// RenderDiscord renders a single block to a Discord message body. Discord's
// native markdown covers the same bold/strikethrough surface the rest of
// the renderer already emits, so no escaping pass is needed beyond length
// truncation.
func RenderDiscord(b block.Block) string {
	if b.Type == block.TypeQuestion {
		return renderDiscordQuestion(*b.Content.Question)
	}
	return truncateChars(RenderBlock(b), discordMaxChars)
}

func renderDiscordQuestion(q block.QuestionContent) string {
	var sb strings.Builder
	for i, item := range q.Questions {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("**")
		sb.WriteString(item.Header)
		sb.WriteString("**")
		if answer, answered := q.Answers[item.Header]; answered {
			sb.WriteString("\n✓ ")
			sb.WriteString(answer)
			continue
		}
		for i, opt := range item.Options {
			sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, opt.Label))
		}
		sb.WriteString("\n(reply with the option number)")
	}
	return truncateChars(sb.String(), discordMaxChars)
}
