package render

import "github.com/nextlevelbuilder/sessionscope/internal/block"

// composeText joins each block's single-block render with the same
// blank-line/same-turn grouping Render uses, for platforms that render a
// whole message body as one string.
func composeText(blocks []block.Block) string {
	return Render(blocks)
}

// RenderTelegramBlocks renders an ordered set of blocks composing one
// message (e.g. a turn's assistant text, tool calls, and duration) to a
// single Telegram payload. A lone Question block keeps its keyboard;
// anything else is joined as plain text.
func RenderTelegramBlocks(blocks []block.Block) TelegramMessage {
	if len(blocks) == 1 {
		return RenderTelegram(blocks[0])
	}
	return TelegramMessage{Text: truncateChars(composeText(blocks), telegramMaxChars)}
}

// RenderSlackBlocks renders an ordered set of blocks to Block Kit blocks,
// concatenating each block's own Block Kit elements and capping at the
// platform's per-message ceiling.
func RenderSlackBlocks(blocks []block.Block) []SlackBlock {
	var out []SlackBlock
	for _, b := range blocks {
		out = append(out, RenderSlack(b)...)
	}
	if len(out) > slackMaxBlocks {
		return out[:slackMaxBlocks]
	}
	return out
}

// RenderDiscordBlocks renders an ordered set of blocks to a single Discord
// message body.
func RenderDiscordBlocks(blocks []block.Block) string {
	if len(blocks) == 1 {
		return RenderDiscord(blocks[0])
	}
	return truncateChars(composeText(blocks), discordMaxChars)
}
