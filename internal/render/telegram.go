package render

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/sessionscope/internal/block"
)

// telegramMaxChars is the platform's message length ceiling.
const telegramMaxChars = 4096

// telegramMaxButtons is the number of question options shown as inline
// keyboard buttons before an overflow notice is appended.
const telegramMaxButtons = 5

const telegramButtonLabelMax = 30

// TelegramKeyboardButton is one inline keyboard button; CallbackData
// identifies the tool_use_id/option so a tap can be acknowledged.
type TelegramKeyboardButton struct {
	Text         string
	CallbackData string
}

// TelegramMessage is the payload a Telegram publisher sends/edits.
type TelegramMessage struct {
	Text     string
	Keyboard [][]TelegramKeyboardButton // rows of buttons, nil when none
}

// escapeTelegramMarkdown escapes MarkdownV2 special characters in
// user/assistant-provided text.
func escapeTelegramMarkdown(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// RenderTelegram renders a single block to a Telegram message payload.
func RenderTelegram(b block.Block) TelegramMessage {
	if b.Type == block.TypeQuestion {
		return renderTelegramQuestion(*b.Content.Question)
	}
	text := RenderBlock(b)
	return TelegramMessage{Text: truncateChars(text, telegramMaxChars)}
}

func renderTelegramQuestion(q block.QuestionContent) TelegramMessage {
	var sb strings.Builder
	var rows [][]TelegramKeyboardButton
	for i, item := range q.Questions {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(escapeTelegramMarkdown(item.Header))
		if answer, answered := q.Answers[item.Header]; answered {
			sb.WriteString("\n✓ ")
			sb.WriteString(escapeTelegramMarkdown(answer))
			continue
		}
		sb.WriteString("\n(awaiting response)")
		var row []TelegramKeyboardButton
		visible := item.Options
		overflow := 0
		if len(visible) > telegramMaxButtons {
			overflow = len(visible) - telegramMaxButtons
			visible = visible[:telegramMaxButtons]
		}
		for _, opt := range visible {
			row = append(row, TelegramKeyboardButton{
				Text:         truncateChars(opt.Label, telegramButtonLabelMax),
				CallbackData: fmt.Sprintf("q:%s:%s", q.ToolUseID, opt.Label),
			})
		}
		if overflow > 0 {
			row = append(row, TelegramKeyboardButton{
				Text:         fmt.Sprintf("%d more in CLI", overflow),
				CallbackData: "q:noop",
			})
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return TelegramMessage{Text: sb.String(), Keyboard: rows}
}

func truncateChars(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
