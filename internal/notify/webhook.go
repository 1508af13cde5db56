package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/parimutuel/internal/crypto"
)

const senderTimeout = 10 * time.Second

// postJSON sends payload to url and treats any non-2xx reply as an error.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	return postSigned(ctx, client, url, payload, nil)
}

// postSigned is postJSON with signature headers computed over the encoded
// body. A nil signer sends the request unsigned.
func postSigned(ctx context.Context, client *http.Client, url string, payload any, signer *crypto.Signer) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signer != nil {
		for k, v := range signer.Headers(req.Method, req.URL.Path, body) {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

// WebhookSender posts alerts as {"title","message","sent_at"} JSON to an
// arbitrary endpoint, signed when a secret is configured.
type WebhookSender struct {
	url    string
	signer *crypto.Signer
	client *http.Client
	now    func() time.Time
}

// NewWebhookSender creates a WebhookSender. An empty secret disables signing.
func NewWebhookSender(url, secret string) *WebhookSender {
	w := &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: senderTimeout},
		now:    time.Now,
	}
	if secret != "" {
		w.signer = crypto.NewSigner(secret)
	}
	return w
}

// Send posts the alert.
func (w *WebhookSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{
		"title":   title,
		"message": message,
		"sent_at": w.now().UTC().Format(time.RFC3339),
	}
	if err := postSigned(ctx, w.client, w.url, payload, w.signer); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

// Name returns "webhook".
func (w *WebhookSender) Name() string { return "webhook" }
