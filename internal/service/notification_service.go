package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/config"
	"github.com/spec-kit/issue-tracker/internal/events"
)

// NotificationService logs domain events and forwards them to a webhook.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
	http   *http.Client
}

// NewNotificationService creates the service. A nil client uses http.DefaultClient.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig, client *http.Client) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &NotificationService{
		logger: logger,
		cfg:    cfg,
		http:   client,
	}
}

// Deliver logs event and posts it to the configured webhook, if any.
func (n *NotificationService) Deliver(ctx context.Context, event events.Event) error {
	n.logger.Info("domain event",
		zap.String("event_type", string(event.Type)),
		zap.String("organization_id", event.OrganizationID),
		zap.String("issue_id", event.IssueID),
		zap.String("actor_id", event.Actor.UserID),
	)
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(event.Type))

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	n.logger.Debug("webhook delivered",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)
	return nil
}
