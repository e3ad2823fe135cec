// Package notify alerts the user when a live human has been detected on
// their delegated call.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Notifier is the collaborator that tells the user a human answered and
// the call is ready to be handed back.
type Notifier interface {
	HumanDetected(ctx context.Context, callID, userPhone string) error
}

// Webhook posts a JSON notification to a configured URL.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhook creates a webhook notifier. The default client timeout keeps
// a slow notification endpoint from stalling the pipeline.
func NewWebhook(url string, logger *slog.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

type humanDetectedPayload struct {
	Event     string `json:"event"`
	CallID    string `json:"call_id"`
	UserPhone string `json:"user_phone"`
}

// HumanDetected posts the notification.
func (w *Webhook) HumanDetected(ctx context.Context, callID, userPhone string) error {
	body, err := json.Marshal(humanDetectedPayload{
		Event:     "human_detected",
		CallID:    callID,
		UserPhone: userPhone,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification rejected: %s", resp.Status)
	}

	w.logger.Info("notified user of human pickup",
		slog.String("call_id", callID))
	return nil
}

// Nop is a notifier that only logs. Used when no notification endpoint is
// configured.
type Nop struct {
	logger *slog.Logger
}

// NewNop creates a logging-only notifier.
func NewNop(logger *slog.Logger) *Nop {
	return &Nop{logger: logger}
}

// HumanDetected logs the event and succeeds.
func (n *Nop) HumanDetected(ctx context.Context, callID, userPhone string) error {
	n.logger.Info("human available for call",
		slog.String("call_id", callID),
		slog.String("user_phone", userPhone))
	return nil
}
