// Package notify alerts operators when an escalation signal is produced.
// Delivery is fire-and-forget: the ingestion pipeline never fails or
// blocks on a notification.
package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/lineview/ftq-engine/internal/models"
)

// Notifier is informed of every escalation signal.
type Notifier interface {
	EscalationRaised(lineID string, signal *models.EscalationSignal)
}

// NopNotifier is used when no notification channel is configured.
type NopNotifier struct{}

func (NopNotifier) EscalationRaised(string, *models.EscalationSignal) {}

// SlackNotifier posts escalation alerts to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{client: slack.New(token), channel: channel}
}

// EscalationRaised posts the alert in a goroutine and only logs on
// failure.
func (n *SlackNotifier) EscalationRaised(lineID string, signal *models.EscalationSignal) {
	text := fmt.Sprintf(":rotating_light: *%s* quality escalation on line %s: %s", signal.Severity, lineID, signal.DefectLabel)
	if signal.CoilNumber != "" {
		text += fmt.Sprintf(" (coil %s)", signal.CoilNumber)
	}

	go func() {
		_, _, err := n.client.PostMessage(n.channel,
			slack.MsgOptionText(text, false),
		)
		if err != nil {
			log.Printf("WARN: failed to post escalation alert to Slack: %v", err)
		}
	}()
}
