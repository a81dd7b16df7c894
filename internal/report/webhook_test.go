package report

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Notify(context.Background(), "monthly window 2025-03 FAILED: 1 violation(s)", map[string]any{
		"period": "2025-03",
	})

	require.NoError(t, err)
	assert.Equal(t, "monthly window 2025-03 FAILED: 1 violation(s)", received["summary"])
	assert.NotEmpty(t, received["sent_at"])
}

func TestWebhookNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Notify(context.Background(), "summary", nil)
	assert.Error(t, err)
}

type fakeSlack struct {
	channel string
	text    string
}

func (f *fakeSlack) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.channel = channelID
	return "", "", nil
}

func TestSlackNotifier(t *testing.T) {
	api := &fakeSlack{}
	n := &SlackNotifier{api: api, channel: "#risk-alerts"}

	err := n.Notify(context.Background(), "quarterly window 2025-Q1 FAILED: 2 violation(s)", map[string]any{
		"period": "2025-Q1",
	})

	require.NoError(t, err)
	assert.Equal(t, "#risk-alerts", api.channel)
}
