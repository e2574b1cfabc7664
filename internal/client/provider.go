// Package client talks to the messaging provider's HTTP API on behalf of
// the engine: sending messages for an instance and deleting sent messages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/example/dispatch-engine/internal/model"
)

// conversationSuffix is the provider's conversation-address namespace for
// individual chats.
const conversationSuffix = "@c.us"

// Receipt carries the provider-assigned identifiers for a sent message.
// ConversationID is the provider's canonical conversation address, which
// may differ from the locally computed one.
type Receipt struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type ProviderClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewProviderClient builds a client for the provider API. ratePerSecond
// caps outgoing calls across all dispatches; zero disables the cap.
func NewProviderClient(baseURL, apiKey string, ratePerSecond float64) *ProviderClient {
	c := &ProviderClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	if ratePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return c
}

// ConversationAddress maps a normalized phone number to the provider's
// conversation-address format, keeping digits only.
func (c *ProviderClient) ConversationAddress(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String() + conversationSuffix
}

func (c *ProviderClient) SendText(ctx context.Context, instanceID, target, text string) (Receipt, error) {
	return c.send(ctx, instanceID, "text", map[string]any{
		"to":   target,
		"text": text,
	})
}

func (c *ProviderClient) SendImage(ctx context.Context, instanceID, target string, m model.Content) (Receipt, error) {
	return c.sendMedia(ctx, instanceID, "image", target, m)
}

func (c *ProviderClient) SendVideo(ctx context.Context, instanceID, target string, m model.Content) (Receipt, error) {
	return c.sendMedia(ctx, instanceID, "video", target, m)
}

func (c *ProviderClient) SendAudio(ctx context.Context, instanceID, target string, m model.Content) (Receipt, error) {
	return c.sendMedia(ctx, instanceID, "audio", target, m)
}

func (c *ProviderClient) SendFile(ctx context.Context, instanceID, target string, m model.Content) (Receipt, error) {
	return c.sendMedia(ctx, instanceID, "file", target, m)
}

func (c *ProviderClient) sendMedia(ctx context.Context, instanceID, kind, target string, m model.Content) (Receipt, error) {
	return c.send(ctx, instanceID, kind, map[string]any{
		"to":       target,
		"url":      m.URL,
		"caption":  m.Caption,
		"fileName": m.FileName,
		"mimeType": m.MimeType,
	})
}

// DeleteMessage asks the provider to delete a sent message for everyone.
func (c *ProviderClient) DeleteMessage(ctx context.Context, instanceID, conversationID, messageID string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/instances/%s/conversations/%s/messages/%s", c.baseURL, instanceID, conversationID, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}
	return nil
}

func (c *ProviderClient) send(ctx context.Context, instanceID, kind string, payload map[string]any) (Receipt, error) {
	if err := c.wait(ctx); err != nil {
		return Receipt{}, err
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, err
	}

	url := fmt.Sprintf("%s/instances/%s/messages/%s", c.baseURL, instanceID, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return Receipt{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Receipt{}, fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var r Receipt
	if err := json.Unmarshal(body, &r); err != nil {
		return Receipt{}, fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if r.MessageID == "" {
		return Receipt{}, fmt.Errorf("missing messageId in response body=%q", string(body))
	}
	return r, nil
}

func (c *ProviderClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	// Lets the provider deduplicate a retried transport-level request.
	req.Header.Set("X-Request-ID", uuid.NewString())
}

func (c *ProviderClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
