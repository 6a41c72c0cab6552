package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/config"
	"github.com/spec-kit/issue-tracker/internal/events"
)

func TestNotificationDeliverPostsWebhook(t *testing.T) {
	var got events.Event
	var eventHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		eventHeader = r.Header.Get("X-Event-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	svc := NewNotificationService(nil, config.NotificationConfig{WebhookURL: server.URL}, server.Client())
	err := svc.Deliver(context.Background(), events.Event{
		ID:             "evt-1",
		Type:           events.EventIssueResolved,
		OrganizationID: "org-1",
		IssueID:        "issue-1",
	})
	require.NoError(t, err)
	assert.Equal(t, string(events.EventIssueResolved), eventHeader)
	assert.Equal(t, "evt-1", got.ID)
	assert.Equal(t, "issue-1", got.IssueID)
}

func TestNotificationDeliverReportsRejectedWebhook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewNotificationService(nil, config.NotificationConfig{WebhookURL: server.URL}, nil)
	err := svc.Deliver(context.Background(), events.Event{Type: events.EventIssueCreated})
	assert.ErrorContains(t, err, "502")
}

func TestNotificationWithoutWebhookOnlyLogs(t *testing.T) {
	svc := NewNotificationService(nil, config.NotificationConfig{}, nil)
	assert.NoError(t, svc.Deliver(context.Background(), events.Event{Type: events.EventCommentAdded}))
}
