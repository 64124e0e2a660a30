package modelrouting

import (
	"github.com/slack-go/slack"
)

// SlackNotifier posts fallback notifications to a configured Slack channel.
// It is the optional notify_suggest delivery channel: when no token or
// channel is configured, NewSlackNotifier returns nil and callers fall back to
// log-only notification (the Executor tolerates a nil Notifier).
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier builds a SlackNotifier posting to channel using token.
// Returns nil if token or channel is empty.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	if token == "" || channel == "" {
		return nil
	}
	return &SlackNotifier{client: slack.New(token), channel: channel}
}

// Notify posts message to the configured channel.
func (n *SlackNotifier) Notify(message string) error {
	_, _, err := n.client.PostMessage(n.channel, slack.MsgOptionText(message, false))
	return err
}
