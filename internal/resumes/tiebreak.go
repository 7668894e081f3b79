package resumes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/llm"
	"github.com/jonathan/job-autopilot/internal/prompts"
)

// summaryRunes bounds each résumé excerpt sent to the model.
const summaryRunes = 400

// LLMTiebreaker asks a model to pick between tied résumés.
type LLMTiebreaker struct {
	client llm.Client
}

// NewLLMTiebreaker creates a tiebreaker backed by client.
func NewLLMTiebreaker(client llm.Client) *LLMTiebreaker {
	return &LLMTiebreaker{client: client}
}

// Pick implements Tiebreaker. The returned index is not range-checked.
func (t *LLMTiebreaker) Pick(ctx context.Context, job *db.GlobalJob, candidates []db.Resume) (int, error) {
	var sb strings.Builder
	for i := range candidates {
		sb.WriteString(summarize(i, &candidates[i]))
		sb.WriteString("\n")
	}

	prompt, err := prompts.Render("resumes.json", "resume-tiebreak", map[string]string{
		"JobTitle":       job.Title,
		"JobCategory":    job.Category,
		"JobDescription": truncate(job.Description, 1500),
		"Resumes":        sb.String(),
	})
	if err != nil {
		return 0, err
	}

	resp, err := t.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return 0, fmt.Errorf("LLM generation failed: %w", err)
	}
	return ParseIndex(resp)
}

// ParseIndex reads the chosen index from a model reply. It accepts
// {"index": n}, a bare integer, or either wrapped in prose or a code fence.
func ParseIndex(resp string) (int, error) {
	text := llm.CleanJSONBlock(resp)
	if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
		return n, nil
	}

	for _, candidate := range []string{text, llm.ExtractJSONObject(text)} {
		if !gjson.Valid(candidate) {
			continue
		}
		v := gjson.Get(candidate, "index")
		if v.Type == gjson.Number && v.Num == float64(int(v.Num)) {
			return int(v.Num), nil
		}
		if v.Type == gjson.String {
			if n, err := strconv.Atoi(strings.TrimSpace(v.Str)); err == nil {
				return n, nil
			}
		}
	}
	return 0, fmt.Errorf("no index in tiebreak reply: %q", truncate(resp, 80))
}

func summarize(i int, r *db.Resume) string {
	parts := []string{fmt.Sprintf("[%d] %s", i, r.Name)}
	if len(r.Categories) > 0 {
		parts = append(parts, "targets: "+strings.Join(r.Categories, ", "))
	}
	if s := ResumeSkills(r); len(s) > 0 {
		parts = append(parts, "skills: "+strings.Join(dedupe(s), ", "))
	}
	if r.Content != "" {
		parts = append(parts, "excerpt: "+truncate(strings.Join(strings.Fields(r.Content), " "), summaryRunes))
	}
	return strings.Join(parts, "\n    ")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := strings.ToLower(s)
		if !seen[k] {
			seen[k] = true
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
