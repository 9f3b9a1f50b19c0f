// Package telegram adapts the render package's TelegramMessage payloads to
// the Telegram Bot API via telego, using a long-polling bot and per-topic
// thread-id addressing.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/sessionscope/internal/publish"
	"github.com/nextlevelbuilder/sessionscope/internal/render"
)

// generalTopicID is Telegram's reserved "General" forum topic id; sends
// addressing it must omit MessageThreadID entirely (destinations with this
// thread id are already rejected at attach time).
const generalTopicID = 1

// Publisher sends/edits messages through a long-polling telego.Bot.
type Publisher struct {
	bot *telego.Bot
}

// New wraps an already-constructed bot. Bot construction (token, proxy
// options) is the caller's concern, matching config layering elsewhere.
func New(bot *telego.Bot) *Publisher {
	return &Publisher{bot: bot}
}

// Validate calls getMe to confirm the bot token is live.
func (p *Publisher) Validate(ctx context.Context) error {
	if _, err := p.bot.GetMe(ctx); err != nil {
		return publish.AuthError{Platform: "telegram", Cause: err}
	}
	return nil
}

// Send posts content (a render.TelegramMessage) to identifier
// ("chat_id" or "chat_id:thread_id") and returns the new message id.
func (p *Publisher) Send(ctx context.Context, identifier string, content any) (string, error) {
	msg, ok := content.(render.TelegramMessage)
	if !ok {
		return "", fmt.Errorf("telegram publisher: unexpected content type %T", content)
	}

	chatID, threadID, err := parseIdentifier(identifier)
	if err != nil {
		return "", err
	}

	var platformID string
	err = publish.WithRetry(func() error {
		params := tu.Message(tu.ID(chatID), msg.Text).WithParseMode(telego.ModeMarkdownV2)
		if threadID != nil && *threadID != generalTopicID {
			params = params.WithMessageThreadID(*threadID)
		}
		if kb := buildKeyboard(msg.Keyboard); kb != nil {
			params = params.WithReplyMarkup(kb)
		}

		sent, sendErr := p.bot.SendMessage(ctx, params)
		if sendErr != nil {
			return sendErr
		}
		platformID = strconv.Itoa(sent.MessageID)
		return nil
	})
	return platformID, err
}

// Edit updates platformID's text/keyboard on identifier.
func (p *Publisher) Edit(ctx context.Context, identifier, platformID string, content any) error {
	msg, ok := content.(render.TelegramMessage)
	if !ok {
		return fmt.Errorf("telegram publisher: unexpected content type %T", content)
	}

	chatID, _, err := parseIdentifier(identifier)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(platformID)
	if err != nil {
		return fmt.Errorf("telegram publisher: invalid message id %q: %w", platformID, err)
	}

	return publish.WithRetry(func() error {
		params := tu.EditMessageText(tu.ID(chatID), msgID, msg.Text).WithParseMode(telego.ModeMarkdownV2)
		if kb := buildKeyboard(msg.Keyboard); kb != nil {
			params = params.WithReplyMarkup(kb)
		}

		_, editErr := p.bot.EditMessageText(ctx, params)
		if editErr == nil {
			return nil
		}
		if isNotModified(editErr) {
			return nil
		}
		if isMessageNotFound(editErr) {
			return publish.NotFoundError{Platform: "telegram", ID: platformID}
		}
		return editErr
	})
}

// Close stops the bot's long polling, if started; the bot itself holds no
// other resources to release.
func (p *Publisher) Close() error {
	p.bot.StopLongPolling()
	return nil
}

func buildKeyboard(rows [][]render.TelegramKeyboardButton) *telego.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	var kbRows [][]telego.InlineKeyboardButton
	for _, row := range rows {
		var btns []telego.InlineKeyboardButton
		for _, b := range row {
			btns = append(btns, tu.InlineKeyboardButton(b.Text).WithCallbackData(b.CallbackData))
		}
		kbRows = append(kbRows, btns)
	}
	kb := tu.InlineKeyboard(kbRows...)
	return kb
}

func parseIdentifier(identifier string) (chatID int64, threadID *int, err error) {
	parts := strings.SplitN(identifier, ":", 2)
	chatID, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("telegram publisher: invalid chat id %q: %w", parts[0], err)
	}
	if len(parts) == 2 {
		t, convErr := strconv.Atoi(parts[1])
		if convErr != nil {
			return 0, nil, fmt.Errorf("telegram publisher: invalid thread id %q: %w", parts[1], convErr)
		}
		threadID = &t
	}
	return chatID, threadID, nil
}

func isNotModified(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

func isMessageNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "message to edit not found") || strings.Contains(msg, "message can't be edited")
}
