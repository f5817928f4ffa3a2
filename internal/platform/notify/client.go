package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Client posts escalation notifications to a configured webhook (an
// on-call channel, a clinic inbox bridge, etc.).
type Client struct {
	webhookURL string
	httpClient *http.Client
}

func NewClient(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type messagePayload struct {
	Text string `json:"text"`
}

type documentPayload struct {
	FileName      string `json:"file_name"`
	ContentBase64 string `json:"content_base64"`
}

func (c *Client) SendMessage(ctx context.Context, text string) error {
	return c.post(ctx, messagePayload{Text: text})
}

func (c *Client) SendDocument(ctx context.Context, fileName string, data []byte) error {
	return c.post(ctx, documentPayload{
		FileName:      fileName,
		ContentBase64: base64.StdEncoding.EncodeToString(data),
	})
}

func (c *Client) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send webhook notification")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var bodyBytes []byte
		if resp.Body != nil {
			bodyBytes, _ = io.ReadAll(resp.Body)
		}
		return errors.Errorf("webhook returned status %s, body: %s", resp.Status, string(bodyBytes))
	}
	return nil
}
