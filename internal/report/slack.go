package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/slack-go/slack"
)

// slackPoster is the subset of the Slack API the notifier uses.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts notifications to a Slack channel.
type SlackNotifier struct {
	api     slackPoster
	channel string
}

// NewSlackNotifier creates a Slack sink for the given bot token and channel.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{api: slack.New(token), channel: channel}
}

func (s *SlackNotifier) Notify(ctx context.Context, summary string, details map[string]any) error {
	detailJSON, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal slack details")
	}

	text := fmt.Sprintf(":rotating_light: %s\n```%s```", summary, detailJSON)
	_, _, err = s.api.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	return eris.Wrap(err, "report: post slack message")
}
