// Package discord adapts rendered block text to the Discord Bot API via
// discordgo: a bot session with ChannelMessageSend/ChannelMessageEdit and
// an @me identity fetch for credential validation.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/sessionscope/internal/publish"
)

// Publisher sends/edits messages through an already-opened discordgo
// gateway session.
type Publisher struct {
	session *discordgo.Session
}

// New wraps an already-connected session; opening/closing the gateway
// connection is the caller's concern (orchestrator lifecycle).
func New(session *discordgo.Session) *Publisher {
	return &Publisher{session: session}
}

// Validate confirms the session can resolve its own bot identity.
func (p *Publisher) Validate(_ context.Context) error {
	if _, err := p.session.User("@me"); err != nil {
		return publish.AuthError{Platform: "discord", Cause: err}
	}
	return nil
}

// Send posts content (a string, per render.RenderDiscord) to identifier (a
// channel id) and returns the new message id.
func (p *Publisher) Send(_ context.Context, identifier string, content any) (string, error) {
	text, ok := content.(string)
	if !ok {
		return "", fmt.Errorf("discord publisher: unexpected content type %T", content)
	}

	var platformID string
	err := publish.WithRetry(func() error {
		msg, sendErr := p.session.ChannelMessageSend(identifier, text)
		if sendErr != nil {
			return sendErr
		}
		platformID = msg.ID
		return nil
	})
	return platformID, err
}

// Edit updates platformID's text on identifier.
func (p *Publisher) Edit(_ context.Context, identifier, platformID string, content any) error {
	text, ok := content.(string)
	if !ok {
		return fmt.Errorf("discord publisher: unexpected content type %T", content)
	}

	return publish.WithRetry(func() error {
		_, editErr := p.session.ChannelMessageEdit(identifier, platformID, text)
		if editErr == nil {
			return nil
		}
		if isMessageNotFound(editErr) {
			return publish.NotFoundError{Platform: "discord", ID: platformID}
		}
		return editErr
	})
}

// Close closes the gateway connection.
func (p *Publisher) Close() error {
	return p.session.Close()
}

func isMessageNotFound(err error) bool {
	return strings.Contains(err.Error(), "Unknown Message")
}
