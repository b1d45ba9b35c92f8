package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/certguard/internal/models"
)

func TestEventShouldNotify(t *testing.T) {
	assert.True(t, Event{Decision: models.DecisionBlockMerge}.ShouldNotify())
	assert.True(t, Event{Decision: models.DecisionHumanReview}.ShouldNotify())
	assert.False(t, Event{Decision: models.DecisionAutoMerge}.ShouldNotify())
}

func TestEventSeverity(t *testing.T) {
	assert.Equal(t, "error", Event{Decision: models.DecisionBlockMerge}.Severity())
	assert.Equal(t, "warning", Event{Decision: models.DecisionHumanReview}.Severity())
	assert.Equal(t, "info", Event{Decision: models.DecisionAutoMerge}.Severity())
}

func TestWebhookSinkSlackPostsText(t *testing.T) {
	var received slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, FormatSlack)
	err := sink.Notify(context.Background(), Event{
		ServiceID: "platform_api", Environment: "production", RunID: "run-1",
		Decision: models.DecisionBlockMerge, ConfidenceScore: 10, Explanation: "invariant breach",
	})
	require.NoError(t, err)
	assert.Contains(t, received.Text, "platform_api")
	assert.Contains(t, received.Text, "BLOCK_MERGE")
}

func TestWebhookSinkTeamsPostsCard(t *testing.T) {
	var received teamsCardPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, FormatTeams)
	err := sink.Notify(context.Background(), Event{
		ServiceID: "platform_api", Decision: models.DecisionHumanReview,
	})
	require.NoError(t, err)
	assert.Equal(t, "MessageCard", received.Type)
	assert.Equal(t, "ECB22E", received.ThemeColor)
}

func TestWebhookSinkReturnsErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, FormatSlack)
	err := sink.Notify(context.Background(), Event{ServiceID: "x"})
	assert.Error(t, err)
}

func TestNotifyWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	failing := stubSink{fn: func(ctx context.Context, e Event) error {
		calls++
		return assertErr
	}}

	err := notifyWithRetry(context.Background(), failing, Event{}, RetryPolicy{
		MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1,
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestNotifyWithRetrySucceedsEventually(t *testing.T) {
	calls := 0
	flaky := stubSink{fn: func(ctx context.Context, e Event) error {
		calls++
		if calls < 2 {
			return assertErr
		}
		return nil
	}}

	err := notifyWithRetry(context.Background(), flaky, Event{}, RetryPolicy{
		MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1,
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFromConfigOmitsUnconfiguredSinks(t *testing.T) {
	sink := FromConfig("", "", nil)
	multi, ok := sink.(MultiSink)
	require.True(t, ok)
	assert.Empty(t, multi.Sinks)

	sink = FromConfig("https://hooks.slack.test/x", "", nil)
	multi, ok = sink.(MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 1)
}

type stubSink struct {
	fn func(ctx context.Context, e Event) error
}

func (s stubSink) Notify(ctx context.Context, e Event) error { return s.fn(ctx, e) }

var assertErr = assertError("stub failure")

type assertError string

func (e assertError) Error() string { return string(e) }
