package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/drafting"
	"github.com/jonathan/job-autopilot/internal/lock"
	"github.com/jonathan/job-autopilot/internal/pipeline/steps"
	"github.com/jonathan/job-autopilot/internal/resumes"
	"github.com/jonathan/job-autopilot/internal/sending"
	"github.com/jonathan/job-autopilot/internal/server/ratelimit"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// errorClass maps an error type to its status code and machine-readable code.
type errorClass struct {
	match  func(error) bool
	status int
	code   string
}

func is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

var errorClasses = []errorClass{
	{is[*ErrValidation], http.StatusBadRequest, "validation_failed"},
	{is[*db.ErrUserNotFound], http.StatusNotFound, "user_not_found"},
	{is[*db.ErrNotFound], http.StatusNotFound, "not_found"},
	{is[*steps.UnknownTaskError], http.StatusNotFound, "unknown_task"},
	{is[*ratelimit.ErrRateLimited], http.StatusTooManyRequests, "rate_limited"},
	{is[*sending.ErrInvalidTransition], http.StatusConflict, "invalid_transition"},
	{is[*drafting.ErrNotDraft], http.StatusConflict, "not_draft"},
	{is[*lock.ErrLockHeld], http.StatusConflict, "lock_held"},
	{is[*sending.ErrRetryLimit], http.StatusUnprocessableEntity, "retry_limit"},
	{is[*sending.ErrMissingRecipient], http.StatusUnprocessableEntity, "missing_recipient"},
	{is[*drafting.ErrNoResume], http.StatusUnprocessableEntity, "no_resume"},
	{is[*drafting.ErrNoRecipient], http.StatusUnprocessableEntity, "no_recipient"},
	{is[*resumes.ErrEmptyResume], http.StatusUnprocessableEntity, "empty_resume"},
	{is[*resumes.ErrUnsupportedFormat], http.StatusUnsupportedMediaType, "unsupported_format"},
	{is[*drafting.ErrDraftTimeout], http.StatusGatewayTimeout, "draft_timeout"},
	{is[*drafting.MalformedDraftError], http.StatusBadGateway, "malformed_draft"},
	{is[*drafting.APICallError], http.StatusBadGateway, "ai_unavailable"},
}

func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if c.match(err) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	status, _ := classify(err)
	return status
}

// ErrorCode returns a stable, machine-readable code for an error.
func ErrorCode(err error) string {
	_, code := classify(err)
	return code
}

func retryAfter(err error) (time.Duration, bool) {
	var rl *ratelimit.ErrRateLimited
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

var errTaskRunnerMissing = errors.New("task runner is not configured")
