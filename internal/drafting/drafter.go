// Package drafting generates application emails and stores them as DRAFT
// applications.
package drafting

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/llm"
	"github.com/jonathan/job-autopilot/internal/prompts"
	"github.com/jonathan/job-autopilot/internal/schemas"
)

// Style controls the voice of a drafted email.
type Style struct {
	Tone     string
	Language string
}

// DefaultStyle is used when the caller leaves Style empty.
var DefaultStyle = Style{Tone: "professional and warm", Language: "en"}

// Input is everything a drafter needs for one application.
type Input struct {
	User         *db.User
	Job          *db.GlobalJob
	Resume       *db.Resume
	Style        Style
	TemplateHint string
}

// Draft is the generated email content.
type Draft struct {
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	CoverLetter string `json:"cover_letter"`
}

// Drafter generates application emails. Calls are slow and may fail; callers
// apply their own timeout.
type Drafter interface {
	GenerateEmail(ctx context.Context, in Input) (*Draft, error)
}

// Prompt inputs are truncated to keep requests small.
const (
	maxResumeRunes      = 6000
	maxDescriptionRunes = 4000
)

// LLMDrafter drafts emails with a language model.
type LLMDrafter struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewLLMDrafter creates a drafter on the standard model tier.
func NewLLMDrafter(client llm.Client) *LLMDrafter {
	return &LLMDrafter{client: client, tier: llm.TierStandard}
}

// GenerateEmail implements Drafter. A reply that fails schema validation is
// retried once with the problem described to the model.
func (d *LLMDrafter) GenerateEmail(ctx context.Context, in Input) (*Draft, error) {
	prompt, err := buildPrompt(in)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.GenerateJSON(ctx, prompt, d.tier)
	if err != nil {
		return nil, &APICallError{Message: "failed to generate draft", Cause: err}
	}
	draft, problem := parseDraft(resp)
	if problem == "" {
		return draft, nil
	}
	log.Printf("[drafting] draft for job %s rejected (%s), retrying once", in.Job.ID, problem)

	retry, err := prompts.Render("drafting.json", "application-email-retry", map[string]string{
		"Problem":  problem,
		"Original": prompt,
	})
	if err != nil {
		return nil, err
	}
	resp, err = d.client.GenerateJSON(ctx, retry, d.tier)
	if err != nil {
		return nil, &APICallError{Message: "failed to regenerate draft", Cause: err}
	}
	draft, problem = parseDraft(resp)
	if problem != "" {
		return nil, &MalformedDraftError{Problem: problem}
	}
	return draft, nil
}

func buildPrompt(in Input) (string, error) {
	style := in.Style
	if style.Tone == "" {
		style.Tone = DefaultStyle.Tone
	}
	if style.Language == "" {
		style.Language = DefaultStyle.Language
		if in.Resume != nil && in.Resume.Language != "" {
			style.Language = in.Resume.Language
		}
	}

	location := strings.TrimSpace(strings.Join(nonEmpty(in.User.City, in.User.Country), ", "))
	hint := ""
	if h := strings.TrimSpace(in.TemplateHint); h != "" {
		hint = "Follow this guidance from the candidate: " + h
	}
	jobLocation := in.Job.Location
	if in.Job.IsRemote && jobLocation == "" {
		jobLocation = "Remote"
	}

	return prompts.Render("drafting.json", "application-email", map[string]string{
		"CandidateName":     in.User.Name,
		"CandidateLocation": location,
		"ResumeName":        in.Resume.Name,
		"ResumeText":        truncate(in.Resume.Content, maxResumeRunes),
		"JobTitle":          in.Job.Title,
		"Company":           in.Job.Company,
		"JobLocation":       jobLocation,
		"JobDescription":    truncate(in.Job.Description, maxDescriptionRunes),
		"Tone":              style.Tone,
		"Language":          style.Language,
		"TemplateHint":      hint,
	})
}

// parseDraft returns the draft or a short description of what is wrong with
// the reply.
func parseDraft(resp string) (*Draft, string) {
	text := llm.ExtractJSONObject(resp)
	if err := schemas.Validate(schemas.DraftEmail, text); err != nil {
		var ve *schemas.ValidationError
		if errors.As(err, &ve) {
			return nil, ve.Summary()
		}
		return nil, err.Error()
	}

	var d Draft
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, "reply is not a JSON object: " + err.Error()
	}
	d.Subject = strings.TrimSpace(d.Subject)
	d.Body = strings.TrimSpace(d.Body)
	d.CoverLetter = strings.TrimSpace(d.CoverLetter)
	return &d, ""
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
