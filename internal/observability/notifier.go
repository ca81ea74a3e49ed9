package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Notifier sends alert notifications to external channels.
type Notifier interface {
	Notify(alerts []Alert) error
}

// slackNotifier posts alerts to a Slack incoming webhook as color-coded
// attachments, most severe first.
type slackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Notifier that sends alerts to the given Slack webhook URL.
func NewSlackNotifier(webhookURL string) Notifier {
	return &slackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string `json:"color"`
	Text   string `json:"text"`
	Footer string `json:"footer"`
	TS     int64  `json:"ts"`
}

// Notify sends the given alerts to the configured Slack webhook.
// It returns nil without making a request if the alerts slice is empty.
func (s *slackNotifier) Notify(alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(buildPayload(alerts))
	if err != nil {
		return fmt.Errorf("marshaling slack payload: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func buildPayload(alerts []Alert) slackPayload {
	ranked := make([]Alert, len(alerts))
	copy(ranked, alerts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return severityRank(ranked[i].Severity) < severityRank(ranked[j].Severity)
	})

	headline := fmt.Sprintf("%d triage alerts", len(ranked))
	if len(ranked) == 1 {
		headline = "1 triage alert"
	}

	payload := slackPayload{Text: headline}
	for _, alert := range ranked {
		payload.Attachments = append(payload.Attachments, slackAttachment{
			Color:  severityColor(alert.Severity),
			Text:   fmt.Sprintf("*%s* %s", alert.Condition, alert.Message),
			Footer: "cte",
			TS:     alert.TriggeredAt.Unix(),
		})
	}
	return payload
}

func severityRank(severity AlertSeverity) int {
	switch severity {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

func severityColor(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return "danger"
	case SeverityMedium:
		return "warning"
	case SeverityLow:
		return "#439fe0"
	default:
		return "#cccccc"
	}
}
