// Package readiness reports whether a user's settings allow applications to
// be sent in their automation mode.
package readiness

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
)

// Check names.
const (
	CheckFullName          = "full_name"
	CheckResume            = "resume"
	CheckSenderConfigured  = "sender_configured"
	CheckSenderVerified    = "sender_verified"
	CheckKeywords          = "keywords"
	CheckCategories        = "categories"
	CheckAutoApplyEnabled  = "auto_apply_enabled"
	CheckMinAutoApplyScore = "min_auto_apply_score"
)

// Mode is an automation mode with the checks it requires.
type Mode struct {
	Name     string
	Requires []string
}

// Modes lists the automation modes; each requires everything the previous
// one does.
var Modes = []Mode{
	{Name: db.ModeManual, Requires: []string{CheckFullName, CheckSenderConfigured}},
	{Name: db.ModeSemiAuto, Requires: []string{CheckFullName, CheckSenderConfigured, CheckSenderVerified, CheckResume}},
	{Name: db.ModeFullAuto, Requires: []string{
		CheckFullName, CheckSenderConfigured, CheckSenderVerified, CheckResume,
		CheckKeywords, CheckCategories, CheckAutoApplyEnabled, CheckMinAutoApplyScore,
	}},
}

// ModeFor returns the named mode, falling back to manual for unknown names.
func ModeFor(name string) Mode {
	for _, m := range Modes {
		if m.Name == name {
			return m
		}
	}
	return Modes[0]
}

// IsKnownMode reports whether name is one of Modes.
func IsKnownMode(name string) bool {
	for _, m := range Modes {
		if m.Name == name {
			return true
		}
	}
	return false
}

// Check is one evaluated requirement.
type Check struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Required bool   `json:"required"`
	Hint     string `json:"hint,omitempty"`
}

// Report is the full readiness evaluation for a user.
type Report struct {
	UserID uuid.UUID `json:"user_id"`
	Mode   string    `json:"mode"`
	Ready  bool      `json:"ready"`
	Checks []Check   `json:"checks"`
}

// Failing returns the names of required checks that did not pass.
func (r *Report) Failing() []string {
	var out []string
	for _, c := range r.Checks {
		if c.Required && !c.Passed {
			out = append(out, c.Name)
		}
	}
	return out
}

// Reason summarizes why the user is not ready, or "" when ready.
func (r *Report) Reason() string {
	if r.Ready {
		return ""
	}
	return "not ready for " + r.Mode + ": missing " + strings.Join(r.Failing(), ", ")
}

type rule struct {
	name string
	pass func(u *db.User, resumes int) bool
	hint string
}

// rules fixes the order checks are reported in.
var rules = []rule{
	{CheckFullName, func(u *db.User, _ int) bool { return strings.TrimSpace(u.Name) != "" },
		"Add your full name to your profile."},
	{CheckResume, func(_ *db.User, n int) bool { return n > 0 },
		"Upload at least one résumé."},
	{CheckSenderConfigured, func(u *db.User, _ int) bool { return strings.TrimSpace(u.SenderEmail) != "" },
		"Set the email address applications are sent from."},
	{CheckSenderVerified, func(u *db.User, _ int) bool { return u.SenderEmail != "" && u.SenderVerified },
		"Verify your sender address using the link we emailed you."},
	{CheckKeywords, func(u *db.User, _ int) bool { return hasAny(u.Keywords) },
		"Add at least one job search keyword."},
	{CheckCategories, func(u *db.User, _ int) bool { return hasAny(u.PreferredCategories) },
		"Pick the job categories you want to apply to."},
	{CheckAutoApplyEnabled, func(u *db.User, _ int) bool { return u.AutoApplyEnabled },
		"Turn on auto-apply in your automation settings."},
	{CheckMinAutoApplyScore, func(u *db.User, _ int) bool { return u.MinAutoApplyScore > 0 },
		"Set the minimum match score for automatic applications."},
}

// Evaluate runs every check against a user and their live résumé count.
// Only the checks the user's mode requires decide Ready.
func Evaluate(u *db.User, resumes int) *Report {
	mode := ModeFor(u.AutomationMode)
	required := make(map[string]bool, len(mode.Requires))
	for _, name := range mode.Requires {
		required[name] = true
	}

	report := &Report{UserID: u.ID, Mode: mode.Name, Ready: true}
	for _, r := range rules {
		c := Check{Name: r.name, Passed: r.pass(u, resumes), Required: required[r.name]}
		if !c.Passed {
			c.Hint = r.hint
			if c.Required {
				report.Ready = false
			}
		}
		report.Checks = append(report.Checks, c)
	}
	return report
}

// Store is the read access the checker needs.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	CountResumesByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// Checker loads a user's current settings and evaluates them. It holds no
// cache so every call sees the latest settings.
type Checker struct {
	store Store
}

// NewChecker creates a checker.
func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

// Check evaluates the user's readiness.
func (c *Checker) Check(ctx context.Context, userID uuid.UUID) (*Report, error) {
	u, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, &db.ErrUserNotFound{UserID: userID}
	}
	n, err := c.store.CountResumesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count resumes: %w", err)
	}
	return Evaluate(u, n), nil
}

func hasAny(list []string) bool {
	for _, s := range list {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}
