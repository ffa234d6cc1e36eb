package slack

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
)

// webhookMessage is the only payload an incoming webhook accepts from us.
type webhookMessage struct {
	Text string `json:"text"`
}

// Webhook posts messages to a pre-authorized incoming webhook URL. The URL
// itself is the credential; no token is attached.
type Webhook struct {
	url        string
	httpClient *http.Client
}

type WebhookOption func(*Webhook)

func WithWebhookHTTPClient(httpClient *http.Client) WebhookOption {
	return func(w *Webhook) {
		w.httpClient = httpClient
	}
}

func NewWebhook(url string, opts ...WebhookOption) (*Webhook, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("slack: webhook URL must not be empty")
	}
	w := &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Send posts text to the webhook. Incoming webhooks answer with a plain-text
// body rather than the API envelope, so only transport-level success is
// checked here.
func (w *Webhook) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(webhookMessage{Text: text})
	if err != nil {
		return fmt.Errorf("slack: marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := w.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack: webhook request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        w.url,
			Body:       string(buf),
		}
	}
	return nil
}
