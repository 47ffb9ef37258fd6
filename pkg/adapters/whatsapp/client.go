// Package whatsapp implements the WhatsApp Cloud API messenger and webhook helpers.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"

	// MaxButtons is the number of reply buttons an interactive message can carry.
	MaxButtons = 3
	// MaxButtonTitle is the length limit of a reply button title, in characters.
	MaxButtonTitle = 20
)

// APIError is returned for non-2xx responses of the Graph API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error: %d - %s", e.StatusCode, e.Message)
}

// Client implements ports.Messenger over the Graph API.
type Client struct {
	phoneNumberID string
	accessToken   string
	baseURL       string
	apiVersion    string
	httpClient    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Graph API host (tests, proxies).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithAPIVersion selects the Graph API version.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client sending from phoneNumberID.
func NewClient(phoneNumberID, accessToken string, opts ...Option) *Client {
	c := &Client{
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		baseURL:       DefaultBaseURL,
		apiVersion:    DefaultAPIVersion,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type textBody struct {
	Body string `json:"body"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type interactive struct {
	Type   string   `json:"type"`
	Body   textBody `json:"body"`
	Action struct {
		Buttons []replyButton `json:"buttons"`
	} `json:"action"`
}

type outgoing struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, recipient, text string) error {
	return c.send(ctx, outgoing{
		To:   recipient,
		Type: "text",
		Text: &textBody{Body: text},
	})
}

// SendQuickReplies sends an interactive message with up to three reply buttons.
// Titles are cut to the API limit; the option key travels as button id.
func (c *Client) SendQuickReplies(ctx context.Context, recipient, text string, options []domain.Option) error {
	if len(options) > MaxButtons {
		return fmt.Errorf("whatsapp supports at most %d reply buttons, got %d", MaxButtons, len(options))
	}
	in := &interactive{Type: "button", Body: textBody{Body: text}}
	for _, opt := range options {
		b := replyButton{Type: "reply"}
		b.Reply.ID = opt.Key()
		title := opt.Label
		if title == "" {
			title = opt.Key()
		}
		b.Reply.Title = truncate(title, MaxButtonTitle)
		in.Action.Buttons = append(in.Action.Buttons, b)
	}
	return c.send(ctx, outgoing{To: recipient, Type: "interactive", Interactive: in})
}

func (c *Client) send(ctx context.Context, msg outgoing) error {
	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func errorMessage(resp *http.Response) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &payload) == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return http.StatusText(resp.StatusCode)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
