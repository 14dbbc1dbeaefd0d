package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookAction delivers an invocation payload by POSTing it to an external
// endpoint. The base URL is injected from config so tests can point to a
// local mock server.
type WebhookAction struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebhookAction(baseURL string, timeout time.Duration) *WebhookAction {
	return &WebhookAction{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// maxResponseBytes caps the stored action result.
const maxResponseBytes = 1 << 20

// Handle posts the payload to the configured webhook URL and returns the
// response body as the invocation result. Any non-2xx status is a rejection.
func (a *WebhookAction) Handle(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected webhook status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) == 0 || !json.Valid(body) {
		// Non-JSON upstream bodies are wrapped so the stored result stays JSON.
		wrapped, _ := json.Marshal(map[string]string{"body": string(body)})
		return wrapped, nil
	}
	return body, nil
}

// Echo returns the payload unchanged. Registered as a diagnostic action so the
// full dispatch path can be exercised without external dependencies.
func Echo(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return payload, nil
}
