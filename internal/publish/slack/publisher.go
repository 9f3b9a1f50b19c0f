// Package slack adapts the render package's Block Kit payloads to the
// Slack Web API via slack-go/slack, using a Socket Mode bot's
// PostMessageContext/UpdateMessageContext calls.
package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/nextlevelbuilder/sessionscope/internal/publish"
	"github.com/nextlevelbuilder/sessionscope/internal/render"
)

// Publisher sends/edits Block Kit messages through a slack.Client.
type Publisher struct {
	api *slack.Client
}

// New wraps an already-constructed Slack API client.
func New(api *slack.Client) *Publisher {
	return &Publisher{api: api}
}

// Validate calls auth.test to confirm the bot token is live.
func (p *Publisher) Validate(ctx context.Context) error {
	if _, err := p.api.AuthTestContext(ctx); err != nil {
		return publish.AuthError{Platform: "slack", Cause: err}
	}
	return nil
}

// Send posts content (a []render.SlackBlock) to identifier (a channel id)
// and returns the message timestamp, Slack's de facto message id.
func (p *Publisher) Send(ctx context.Context, identifier string, content any) (string, error) {
	blocks, err := toSlackBlocks(content)
	if err != nil {
		return "", err
	}

	var ts string
	err = publish.WithRetry(func() error {
		_, sentTS, postErr := p.api.PostMessageContext(ctx, identifier, slack.MsgOptionBlocks(blocks...))
		if postErr != nil {
			return postErr
		}
		ts = sentTS
		return nil
	})
	return ts, err
}

// Edit updates platformID (the message timestamp) on identifier.
func (p *Publisher) Edit(ctx context.Context, identifier, platformID string, content any) error {
	blocks, err := toSlackBlocks(content)
	if err != nil {
		return err
	}

	return publish.WithRetry(func() error {
		_, _, _, updateErr := p.api.UpdateMessageContext(ctx, identifier, platformID, slack.MsgOptionBlocks(blocks...))
		if updateErr == nil {
			return nil
		}
		if isNotModified(updateErr) {
			return nil
		}
		if isMessageNotFound(updateErr) {
			return publish.NotFoundError{Platform: "slack", ID: platformID}
		}
		return updateErr
	})
}

// Close releases no held resources; the Slack Web API client is stateless
// per call.
func (p *Publisher) Close() error {
	return nil
}

func toSlackBlocks(content any) ([]slack.Block, error) {
	raw, ok := content.([]render.SlackBlock)
	if !ok {
		return nil, fmt.Errorf("slack publisher: unexpected content type %T", content)
	}

	out := make([]slack.Block, 0, len(raw))
	for _, b := range raw {
		switch b.Type {
		case "section":
			out = append(out, slack.NewSectionBlock(
				slack.NewTextBlockObject(b.Text.Type, b.Text.Text, false, false),
				nil, nil,
			))
		case "actions":
			elems := make([]slack.BlockElement, 0, len(b.Elements))
			for _, e := range b.Elements {
				elems = append(elems, slack.NewButtonBlockElement(
					e.ActionID,
					e.Value,
					slack.NewTextBlockObject(e.Text.Type, e.Text.Text, false, false),
				))
			}
			out = append(out, slack.NewActionBlock("", elems...))
		}
	}
	return out, nil
}

func isNotModified(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "not modified")
}

func isMessageNotFound(err error) bool {
	return strings.Contains(err.Error(), "message_not_found")
}
