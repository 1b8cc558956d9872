package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the Expo batch send endpoint.
const DefaultURL = "https://exp.host/--/api/v2/push/send"

// Message is one entry of an Expo push batch.
type Message struct {
	To         string         `json:"to"`
	Title      string         `json:"title"`
	Body       string         `json:"body,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Sound      string         `json:"sound,omitempty"`
	CategoryID string         `json:"categoryId,omitempty"`
}

// Ticket is the per-message receipt returned by Expo. Status is "ok" or
// "error"; on error Message and Details say why.
type Ticket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// OK reports whether Expo accepted the message.
func (t Ticket) OK() bool {
	return t.Status == "ok"
}

type sendResponse struct {
	Data   []Ticket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Client sends batches to the Expo push service.
type Client struct {
	url         string
	accessToken string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithURL(url string) Option {
	return func(cl *Client) {
		if url != "" {
			cl.url = url
		}
	}
}

// WithAccessToken enables Expo's enhanced push security.
func WithAccessToken(token string) Option {
	return func(cl *Client) {
		cl.accessToken = token
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		url:        DefaultURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts all messages in a single request and returns one ticket per
// message. A non-2xx response is an error; individual ticket failures are not.
func (c *Client) Send(ctx context.Context, msgs []Message) ([]Ticket, error) {
	body, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("marshal push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("expo push API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("expo push API error: %s", out.Errors[0].Message)
	}
	return out.Data, nil
}
