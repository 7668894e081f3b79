package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/drafting"
	"github.com/jonathan/job-autopilot/internal/lock"
	"github.com/jonathan/job-autopilot/internal/pipeline/steps"
	"github.com/jonathan/job-autopilot/internal/resumes"
	"github.com/jonathan/job-autopilot/internal/sending"
	"github.com/jonathan/job-autopilot/internal/server/ratelimit"
)

func TestHTTPStatus(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &ErrValidation{Field: "limit", Message: "bad"}, http.StatusBadRequest, "validation_failed"},
		{"user not found", &db.ErrUserNotFound{UserID: id}, http.StatusNotFound, "user_not_found"},
		{"not found", &db.ErrNotFound{Entity: "application", ID: id}, http.StatusNotFound, "not_found"},
		{"unknown task", &steps.UnknownTaskError{Name: "nope"}, http.StatusNotFound, "unknown_task"},
		{"rate limited", &ratelimit.ErrRateLimited{Action: ratelimit.ActionGenerate, RetryAfter: time.Minute}, http.StatusTooManyRequests, "rate_limited"},
		{"invalid transition", &sending.ErrInvalidTransition{ID: id, From: db.StatusSent, To: db.StatusReady}, http.StatusConflict, "invalid_transition"},
		{"lock held", &lock.ErrLockHeld{Name: "send"}, http.StatusConflict, "lock_held"},
		{"no resume", &drafting.ErrNoResume{UserID: id}, http.StatusUnprocessableEntity, "no_resume"},
		{"empty resume", &resumes.ErrEmptyResume{Filename: "cv.pdf"}, http.StatusUnprocessableEntity, "empty_resume"},
		{"wrapped", fmt.Errorf("approve: %w", &db.ErrNotFound{Entity: "application", ID: id}), http.StatusNotFound, "not_found"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, ErrorCode(tt.err))
		})
	}
}

func TestRetryAfter(t *testing.T) {
	d, ok := retryAfter(fmt.Errorf("x: %w", &ratelimit.ErrRateLimited{RetryAfter: 90 * time.Second}))
	assert.True(t, ok)
	assert.Equal(t, 90*time.Second, d)

	_, ok = retryAfter(errors.New("x"))
	assert.False(t, ok)

	assert.Equal(t, 1, retrySeconds(0))
	assert.Equal(t, 2, retrySeconds(1500*time.Millisecond))
}
