package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jonathan/job-autopilot/internal/schemas"
	"github.com/jonathan/job-autopilot/internal/sending"
	"github.com/jonathan/job-autopilot/internal/types"
)

// maxWebhookBytes caps a provider event body.
const maxWebhookBytes = 1 << 20

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Webhook-Signature"

// SignWebhook returns the header value a provider sends for body.
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// handleEmailWebhook receives delivery events from the email provider.
// Non-bounce events are acknowledged and ignored.
func (s *Server) handleEmailWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		s.fail(w, &ErrValidation{Field: "body", Message: "unreadable or too large"})
		return
	}

	if s.cfg.WebhookSecret != "" && !validSignature(s.cfg.WebhookSecret, body, r.Header.Get(SignatureHeader)) {
		log.Printf("[webhook] rejected event with bad signature from %s", s.extractClientID(r))
		s.jsonResponse(w, http.StatusUnauthorized, types.APIResponse{Error: "invalid signature", Code: "unauthorized"})
		return
	}

	if !gjson.ValidBytes(body) {
		s.fail(w, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}
	if err := schemas.Validate(schemas.BounceEvent, string(body)); err != nil {
		var verr *schemas.ValidationError
		if errors.As(err, &verr) {
			s.fail(w, &ErrValidation{Field: "body", Message: verr.Summary()})
			return
		}
		s.fail(w, err)
		return
	}

	parsed := gjson.ParseBytes(body)
	event := types.BounceWebhook{
		Event:     parsed.Get("event").String(),
		Email:     strings.TrimSpace(parsed.Get("email").String()),
		Reason:    parsed.Get("reason").String(),
		MessageID: firstString(parsed, "message_id", "messageId"),
	}
	if err := event.Validate(); err != nil {
		s.fail(w, &ErrValidation{Field: "body", Message: types.DescribeValidation(err)})
		return
	}

	result, err := s.deps.Applications.HandleBounce(r.Context(), sending.BounceEvent{
		Event:     event.Event,
		Email:     strings.ToLower(event.Email),
		Reason:    event.Reason,
		MessageID: event.MessageID,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, http.StatusOK, result)
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
