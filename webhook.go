package ap2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentpay/ap2/signature"
)

// WebhookEventType enumerates the supported order webhook events.
type WebhookEventType string

const (
	WebhookEventTypeOrderCreated WebhookEventType = "order_created"
	WebhookEventTypeOrderUpdated WebhookEventType = "order_updated"
)

// OrderStatus defines model for webhook data status.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusFulfilled OrderStatus = "fulfilled"
)

// EventData is implemented by webhook payloads.
type EventData interface {
	eventType() WebhookEventType
}

// OrderCreated is emitted after a checkout session completes into an order.
type OrderCreated struct {
	CheckoutSessionID string      `json:"checkout_session_id"`
	OrderID           string      `json:"order_id"`
	Status            OrderStatus `json:"status"`
}

func (OrderCreated) eventType() WebhookEventType { return WebhookEventTypeOrderCreated }

// OrderUpdated is emitted whenever the order status changes.
type OrderUpdated struct {
	CheckoutSessionID string      `json:"checkout_session_id"`
	OrderID           string      `json:"order_id"`
	Status            OrderStatus `json:"status"`
}

func (OrderUpdated) eventType() WebhookEventType { return WebhookEventTypeOrderUpdated }

type webhookEvent struct {
	Type WebhookEventType `json:"type"`
	Data any              `json:"data"`
}

// WebhookOptions configures outbound order notifications.
type WebhookOptions struct {
	Endpoint   string
	HeaderName string
	SecretKey  []byte
	Client     *http.Client
}

type webhookConfig struct {
	endpoint string
	header   string
	secret   []byte
	client   *http.Client
}

// WithWebhookOptions enables [CheckoutHandler.SendWebhook].
func WithWebhookOptions(opts WebhookOptions) Option {
	return func(cfg *config) {
		client := opts.Client
		if client == nil {
			client = http.DefaultClient
		}
		header := opts.HeaderName
		if header == "" {
			header = "Webhook-Signature"
		}
		cfg.webhook = &webhookConfig{
			endpoint: opts.Endpoint,
			header:   header,
			secret:   opts.SecretKey,
			client:   client,
		}
	}
}

// SendWebhook posts an order event to the configured platform endpoint,
// signed with the canonical-JSON HMAC scheme of package signature.
func (h *CheckoutHandler) SendWebhook(ctx context.Context, data EventData) error {
	if h.cfg.webhook == nil {
		return errors.New("checkout: webhook options must be configured")
	}
	body, err := json.Marshal(webhookEvent{
		Type: data.eventType(),
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("checkout: marshal webhook payload: %w", err)
	}
	canonical, err := signature.CanonicalizeJSONBody(body)
	if err != nil {
		return fmt.Errorf("checkout: canonicalize webhook payload: %w", err)
	}
	ts := h.cfg.clock().UTC()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.webhook.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("checkout: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-Version", APIVersion)
	req.Header.Set("Timestamp", ts.Format(time.RFC3339Nano))
	req.Header.Set(h.cfg.webhook.header, signature.Sign(h.cfg.webhook.secret, ts, canonical))

	resp, err := h.cfg.webhook.client.Do(req)
	if err != nil {
		return fmt.Errorf("checkout: send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("checkout: webhook endpoint %s returned %s: %s", h.cfg.webhook.endpoint, resp.Status, strings.TrimSpace(string(snippet)))
	}
	return nil
}
