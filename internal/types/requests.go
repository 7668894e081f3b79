//nolint:revive // types is a standard Go package name pattern
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DraftRequest is the optional body of a draft action.
type DraftRequest struct {
	TemplateHint string `json:"template_hint,omitempty" validate:"max=2000"`
}

// ResumeUploadRequest holds the form fields that accompany a résumé file.
type ResumeUploadRequest struct {
	Name       string   `json:"name" validate:"required,max=120"`
	Language   string   `json:"language,omitempty" validate:"omitempty,alpha,min=2,max=8"`
	Categories []string `json:"categories,omitempty" validate:"max=10,dive,required,max=40"`
	IsDefault  bool     `json:"is_default"`
}

// ListUserJobsRequest holds the query parameters of a user-job listing.
type ListUserJobsRequest struct {
	Limit int `json:"limit,omitempty" validate:"omitempty,min=1,max=200"`
}

// BounceWebhook is the normalized body of an email-provider event.
type BounceWebhook struct {
	Event     string `json:"event" validate:"required"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Reason    string `json:"reason,omitempty" validate:"max=1000"`
	MessageID string `json:"message_id,omitempty" validate:"required_without=Email"`
}

// APIResponse is the envelope of every mutating endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Validate validates the DraftRequest using the validator.
func (r *DraftRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the ResumeUploadRequest using the validator.
func (r *ResumeUploadRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the ListUserJobsRequest using the validator.
func (r *ListUserJobsRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the BounceWebhook using the validator.
func (r *BounceWebhook) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// DescribeValidation turns validator output into a short client message.
// Other errors are returned as-is.
func DescribeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
