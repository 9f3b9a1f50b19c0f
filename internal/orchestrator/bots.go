package orchestrator

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/mymmrac/telego"
	"github.com/slack-go/slack"

	"github.com/nextlevelbuilder/sessionscope/internal/config"
	"github.com/nextlevelbuilder/sessionscope/internal/destination"
	"github.com/nextlevelbuilder/sessionscope/internal/publish"
	discordpub "github.com/nextlevelbuilder/sessionscope/internal/publish/discord"
	slackpub "github.com/nextlevelbuilder/sessionscope/internal/publish/slack"
	telegrampub "github.com/nextlevelbuilder/sessionscope/internal/publish/telegram"
)

// buildPublishers initializes a Publisher for each bot with a non-empty
// token. A bot with no token is simply absent — graceful degradation, not
// an error.
func buildPublishers(cfg config.BotsConfig) (map[destination.Kind]publish.Publisher, error) {
	out := make(map[destination.Kind]publish.Publisher)

	if cfg.Telegram.Token != "" {
		bot, err := telego.NewBot(cfg.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
		out[destination.KindTelegram] = telegrampub.New(bot)
	}

	if cfg.Slack.Token != "" {
		api := slack.New(cfg.Slack.Token)
		out[destination.KindSlack] = slackpub.New(api)
	}

	if cfg.Discord.Token != "" {
		session, err := discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			return nil, fmt.Errorf("create discord session: %w", err)
		}
		session.Identify.Intents = discordgo.IntentsGuildMessages
		if err := session.Open(); err != nil {
			return nil, fmt.Errorf("open discord gateway: %w", err)
		}
		out[destination.KindDiscord] = discordpub.New(session)
	}

	return out, nil
}
