package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "msg_123"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "secret"})
	require.NoError(t, err)

	receipt, err := c.Send(context.Background(), Message{
		From:    "Jane Doe <jane@example.com>",
		To:      "jobs@acme.test",
		ReplyTo: "jane@example.com",
		Subject: "Application",
		HTML:    "<p>Hello</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_123", receipt.MessageID)
	assert.Equal(t, []any{"jobs@acme.test"}, got["to"])
	assert.Equal(t, "Application", got["subject"])
	assert.Equal(t, "jane@example.com", got["reply_to"])
	assert.NotContains(t, got, "text")
}

func TestClient_SendErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantMessage   string
		wantRetryable bool
	}{
		{name: "validation", status: 422, body: `{"message": "domain not verified"}`, wantMessage: "domain not verified"},
		{name: "rate limited", status: 429, body: `{"error": "slow down"}`, wantMessage: "slow down", wantRetryable: true},
		{name: "server error", status: 502, body: `<html>bad gateway</html>`, wantMessage: "502", wantRetryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
			require.NoError(t, err)
			_, err = c.Send(context.Background(), Message{To: "a@b.test", Subject: "s", HTML: "h"})

			var de *DeliveryError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.status, de.StatusCode)
			assert.Contains(t, de.Message, tt.wantMessage)
			assert.Equal(t, tt.wantRetryable, de.Retryable())
		})
	}
}

func TestClient_InvalidRecipient(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", APIKey: "k"})
	require.NoError(t, err)
	_, err = c.Send(context.Background(), Message{To: "not an address"})
	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, de.Message, "invalid recipient")
}

func TestNewClient_RequiresConfig(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = NewClient(Config{BaseURL: "http://x"})
	assert.Error(t, err)
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "jane@example.com", FormatAddress("", "jane@example.com"))
	assert.Equal(t, `"Jane Doe" <jane@example.com>`, FormatAddress("Jane Doe", "jane@example.com"))
}

func TestTextToHTML(t *testing.T) {
	got := TextToHTML("Hello <team>,\r\n\r\nLine one\nLine two\n\n\n")
	assert.Equal(t, "<p>Hello &lt;team&gt;,</p>\n<p>Line one<br>Line two</p>\n", got)
}
