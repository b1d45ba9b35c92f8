// Package notify implements the notification-channel collaborator
// spec.md lists as out-of-scope: given a certification decision, send a
// human-readable alert to whichever sinks are configured. Grounded on
// internal/webhook (exponential-backoff HTTP dispatch against a circuit
// breaker) and internal/automation/actions' NotificationAction
// (priority/severity mapping), simplified to this pipeline's one event
// shape instead of the teacher's generic pub/sub event bus.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/catherinevee/certguard/internal/logging"
	"github.com/catherinevee/certguard/internal/models"
)

var log = logging.WithComponent("notify")

// Event is the certification outcome a Sink renders into its own format.
type Event struct {
	RunID           string
	ServiceID       string
	Environment     string
	Decision        models.Decision
	ConfidenceScore int
	Explanation     string
	Breaches        []models.PolicyBreach
	Timestamp       time.Time
}

// Severity maps a Decision to the teacher's info/warning/error scale,
// matching NotificationAction.mapPriorityToSeverity's buckets.
func (e Event) Severity() string {
	switch e.Decision {
	case models.DecisionBlockMerge:
		return "error"
	case models.DecisionHumanReview:
		return "warning"
	default:
		return "info"
	}
}

// ShouldNotify reports whether e is worth paging a human about: a
// BLOCK_MERGE or HUMAN_REVIEW decision, matching supplemented feature 5's
// "notification on BLOCK_MERGE / critical intent" trigger. AUTO_MERGE runs
// are not noisy events; they are the pipeline working as intended.
func (e Event) ShouldNotify() bool {
	return e.Decision == models.DecisionBlockMerge || e.Decision == models.DecisionHumanReview
}

// Sink delivers an Event to one notification channel.
type Sink interface {
	Notify(ctx context.Context, event Event) error
}

// RetryPolicy mirrors internal/webhook.RetryPolicy's exponential backoff,
// applied per Sink.Notify call rather than per queued dispatch since this
// package has no background worker pool of its own.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy matches the teacher's RegisterWebhook default.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffFactor: 2.0}
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.BackoffFactor)
		if delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// MultiSink fans an Event out to every configured Sink, logging but not
// failing the caller on a single sink's error — one channel being down
// should never block certification persistence.
type MultiSink struct {
	Sinks []Sink
}

func (m MultiSink) Notify(ctx context.Context, event Event) error {
	var firstErr error
	for _, sink := range m.Sinks {
		if err := notifyWithRetry(ctx, sink, event, DefaultRetryPolicy()); err != nil {
			log.Warn("sink failed after retries", map[string]interface{}{
				"run_id": event.RunID, "error": err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func notifyWithRetry(ctx context.Context, sink Sink, event Event, policy RetryPolicy) error {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		if err := sink.Notify(ctx, event); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt > policy.MaxRetries {
			break
		}
		select {
		case <-time.After(policy.delayFor(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("notify failed after %d attempts: %w", policy.MaxRetries+1, lastErr)
}

// WebhookSink posts event to a Slack or Microsoft Teams incoming webhook.
// Which payload shape to use is fixed at construction since the two
// services expect different JSON bodies.
type WebhookSink struct {
	URL    string
	Format WebhookFormat
	client *http.Client
}

// WebhookFormat selects the payload shape WebhookSink renders.
type WebhookFormat int

const (
	FormatSlack WebhookFormat = iota
	FormatTeams
)

// NewWebhookSink builds a sink posting to url in format. The caller is
// expected to skip constructing one when the corresponding config field
// (SlackWebhookURL/TeamsWebhookURL) is empty.
func NewWebhookSink(url string, format WebhookFormat) *WebhookSink {
	return &WebhookSink{URL: url, Format: format, client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookSink) Notify(ctx context.Context, event Event) error {
	var body []byte
	var err error
	switch w.Format {
	case FormatTeams:
		body, err = json.Marshal(teamsCard(event))
	default:
		body, err = json.Marshal(slackMessage(event))
	}
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Text string `json:"text"`
}

func slackMessage(e Event) slackPayload {
	return slackPayload{Text: fmt.Sprintf(
		"[%s] %s/%s run %s decision=%s score=%d\n%s",
		e.Severity(), e.ServiceID, e.Environment, e.RunID, e.Decision, e.ConfidenceScore, e.Explanation,
	)}
}

// teamsCardPayload is a minimal MessageCard, the format Teams incoming
// webhooks accepted at the time this package was written.
type teamsCardPayload struct {
	Type       string `json:"@type"`
	Context    string `json:"@context"`
	ThemeColor string `json:"themeColor"`
	Title      string `json:"title"`
	Text       string `json:"text"`
}

func teamsCard(e Event) teamsCardPayload {
	color := "2EB67D"
	if e.Decision == models.DecisionBlockMerge {
		color = "E01E5A"
	} else if e.Decision == models.DecisionHumanReview {
		color = "ECB22E"
	}
	return teamsCardPayload{
		Type: "MessageCard", Context: "http://schema.org/extensions", ThemeColor: color,
		Title: fmt.Sprintf("%s certification: %s", e.ServiceID, e.Decision),
		Text:  fmt.Sprintf("Environment: %s\nRun: %s\nScore: %d\n\n%s", e.Environment, e.RunID, e.ConfidenceScore, e.Explanation),
	}
}

// FromConfig builds a MultiSink from whichever webhook URLs and mail
// settings are non-empty, matching shared/config.py's
// slack_webhook_url/teams_webhook_url optional fields: a sink is only
// wired when its URL is configured.
func FromConfig(slackURL, teamsURL string, mail *MailConfig) Sink {
	var sinks []Sink
	if slackURL != "" {
		sinks = append(sinks, NewWebhookSink(slackURL, FormatSlack))
	}
	if teamsURL != "" {
		sinks = append(sinks, NewWebhookSink(teamsURL, FormatTeams))
	}
	if mail != nil && mail.Host != "" && len(mail.Recipients) > 0 {
		sinks = append(sinks, NewMailSink(*mail))
	}
	return MultiSink{Sinks: sinks}
}
