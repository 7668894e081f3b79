package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-autopilot/internal/sending"
)

func webhookRequest(body string, sign bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if sign {
		req.Header.Set(SignatureHeader, SignWebhook(testWebhookSecret, []byte(body)))
	}
	return req
}

func TestEmailWebhook_Bounce(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"event":"bounce","email":"Jobs@Acme.test","reason":"mailbox full","messageId":"msg-1"}`

	w := env.do(webhookRequest(body, true))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	require.Len(t, env.apps.bounces, 1)
	assert.Equal(t, sending.BounceEvent{Event: "bounce", Email: "jobs@acme.test", Reason: "mailbox full", MessageID: "msg-1"}, env.apps.bounces[0])
}

func TestEmailWebhook_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		sign bool
		want int
	}{
		{"unsigned", `{"event":"bounce","message_id":"m1"}`, false, http.StatusUnauthorized},
		{"not json", `event=bounce`, true, http.StatusBadRequest},
		{"no event", `{"message_id":"m1"}`, true, http.StatusBadRequest},
		{"no target", `{"event":"bounce","reason":"x"}`, true, http.StatusBadRequest},
		{"bad email", `{"event":"bounce","email":"nope"}`, true, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			w := env.do(webhookRequest(tt.body, tt.sign))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Empty(t, env.apps.bounces)
		})
	}
}

func TestEmailWebhook_TamperedBody(t *testing.T) {
	env := newTestEnv(t, nil)
	req := webhookRequest(`{"event":"bounce","message_id":"m2"}`, false)
	req.Header.Set(SignatureHeader, SignWebhook(testWebhookSecret, []byte(`{"event":"bounce","message_id":"m1"}`)))

	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)
}

func TestEmailWebhook_NoSecretSkipsSignature(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.cfg.WebhookSecret = ""

	w := env.do(webhookRequest(`{"event":"delivered","message_id":"m1"}`, false))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), sending.BounceIgnored)
}

func TestValidSignature(t *testing.T) {
	body := []byte(`{}`)
	assert.True(t, validSignature("s", body, SignWebhook("s", body)))
	assert.False(t, validSignature("s", body, "sha256=zz"))
	assert.False(t, validSignature("s", body, "md5=abc"))
	assert.False(t, validSignature("s", body, ""))
}
