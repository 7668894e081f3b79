// Package mailer delivers email through an HTTP email API.
package mailer

import (
	"context"
	"fmt"
	"html"
	"net/mail"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// Message is one outgoing email.
type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Receipt is the provider's acknowledgement of a send.
type Receipt struct {
	MessageID string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) (*Receipt, error)
}

// DeliveryError is a send the provider refused or could not complete.
type DeliveryError struct {
	StatusCode int
	Message    string
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return "delivery failed: " + e.Message
	}
	return fmt.Sprintf("delivery failed (%d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure is worth retrying later.
func (e *DeliveryError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// Config configures the HTTP client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client posts messages as JSON to {BaseURL}/emails with a bearer key.
type Client struct {
	http *resty.Client
}

// NewClient creates an API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mail API URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mail API key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	return &Client{http: c}, nil
}

// Send implements Sender.
func (c *Client) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return nil, &DeliveryError{Message: fmt.Sprintf("invalid recipient %q", msg.To)}
	}
	body := map[string]any{
		"from":    msg.From,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if msg.Text != "" {
		body["text"] = msg.Text
	}
	if msg.ReplyTo != "" {
		body["reply_to"] = msg.ReplyTo
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/emails")
	if err != nil {
		return nil, &DeliveryError{Message: err.Error()}
	}
	if resp.IsError() {
		msg := gjson.GetBytes(resp.Body(), "message").String()
		if msg == "" {
			msg = gjson.GetBytes(resp.Body(), "error").String()
		}
		if msg == "" {
			msg = resp.Status()
		}
		return nil, &DeliveryError{StatusCode: resp.StatusCode(), Message: msg}
	}

	id := gjson.GetBytes(resp.Body(), "id").String()
	if id == "" {
		id = gjson.GetBytes(resp.Body(), "messageId").String()
	}
	if id == "" {
		id = gjson.GetBytes(resp.Body(), "message_id").String()
	}
	return &Receipt{MessageID: id}, nil
}

// FormatAddress renders "Name <addr>", or the bare address without a name.
func FormatAddress(name, addr string) string {
	if strings.TrimSpace(name) == "" {
		return addr
	}
	return (&mail.Address{Name: name, Address: addr}).String()
}

// TextToHTML turns plain paragraphs into escaped HTML paragraphs.
func TextToHTML(text string) string {
	var sb strings.Builder
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(lines[i]))
		}
		sb.WriteString("<p>")
		sb.WriteString(strings.Join(lines, "<br>"))
		sb.WriteString("</p>\n")
	}
	return sb.String()
}
