// Package resumes picks the résumé that best fits a job and handles résumé
// uploads.
package resumes

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/skills"
)

// Tier names the selection stage that produced a choice.
type Tier string

// Selection tiers in evaluation order.
const (
	TierLocale     Tier = "locale"
	TierCategory   Tier = "category"
	TierSkill      Tier = "skill"
	TierAITiebreak Tier = "ai_tiebreak"
	TierFallback   Tier = "fallback"
)

// Tiebreak bounds: only small ties are worth a model call.
const (
	minTiebreak = 2
	maxTiebreak = 4
)

// Selection is the chosen résumé with the tier and reason that chose it.
type Selection struct {
	Resume *db.Resume `json:"resume"`
	Tier   Tier       `json:"tier"`
	Reason string     `json:"reason"`
}

// Tiebreaker resolves a tie between a few résumés. It returns the index of
// the chosen candidate. Implementations may fail; the selector then falls
// back to its deterministic choice.
type Tiebreaker interface {
	Pick(ctx context.Context, job *db.GlobalJob, candidates []db.Resume) (int, error)
}

// Selector chooses résumés for jobs.
type Selector struct {
	tiebreaker Tiebreaker
	timeout    time.Duration
}

// NewSelector creates a selector. tiebreaker may be nil.
func NewSelector(tiebreaker Tiebreaker, timeout time.Duration) *Selector {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Selector{tiebreaker: tiebreaker, timeout: timeout}
}

// Select picks the best résumé for job, or returns nil when the user has no
// live résumés. It never fails: tiebreaker errors fall through to the
// fallback tier.
func (s *Selector) Select(ctx context.Context, job *db.GlobalJob, all []db.Resume) *Selection {
	live := order(all)
	switch len(live) {
	case 0:
		return nil
	case 1:
		return &Selection{Resume: &live[0], Tier: TierFallback, Reason: "only résumé on file"}
	}

	if lang := LocaleFor(job.Location); lang != "" && lang != "en" {
		for i := range live {
			if strings.EqualFold(live[i].Language, lang) {
				return &Selection{Resume: &live[i], Tier: TierLocale, Reason: "dedicated " + lang + " résumé for " + job.Location}
			}
		}
	}

	candidates := live
	if job.Category != "" && job.Category != db.CategoryOther {
		var inCategory []db.Resume
		for _, r := range live {
			if containsFold(r.Categories, job.Category) {
				inCategory = append(inCategory, r)
			}
		}
		switch {
		case len(inCategory) == 1:
			return &Selection{Resume: &inCategory[0], Tier: TierCategory, Reason: "only résumé targeting " + job.Category}
		case len(inCategory) > 1:
			candidates = inCategory
		}
	}

	jobSkills := job.Skills
	if len(jobSkills) == 0 {
		jobSkills = skills.Extract(job.Title + "\n" + job.Description)
	}
	tied, top := topBySkills(candidates, jobSkills)
	if len(tied) == 1 {
		return &Selection{Resume: &tied[0], Tier: TierSkill, Reason: skillReason(top)}
	}

	if s.tiebreaker != nil && len(tied) >= minTiebreak && len(tied) <= maxTiebreak {
		if idx, ok := s.tiebreak(ctx, job, tied); ok {
			return &Selection{Resume: &tied[idx], Tier: TierAITiebreak, Reason: "picked from a tie of " + strconv.Itoa(len(tied))}
		}
	}

	chosen := tied[0]
	reason := "most recently updated résumé"
	if chosen.IsDefault {
		reason = "default résumé"
	}
	return &Selection{Resume: &chosen, Tier: TierFallback, Reason: reason}
}

func (s *Selector) tiebreak(ctx context.Context, job *db.GlobalJob, tied []db.Resume) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	idx, err := s.tiebreaker.Pick(ctx, job, tied)
	if err != nil {
		log.Printf("[resumes] tiebreak failed, using fallback: %v", err)
		return 0, false
	}
	if idx < 0 || idx >= len(tied) {
		log.Printf("[resumes] tiebreak answered %d for %d candidates, using fallback", idx, len(tied))
		return 0, false
	}
	return idx, true
}

// order drops deleted résumés and sorts the rest default-first, then most
// recently updated, then by ID for a stable result.
func order(all []db.Resume) []db.Resume {
	live := make([]db.Resume, 0, len(all))
	for _, r := range all {
		if r.DeletedAt == nil {
			live = append(live, r)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].IsDefault != live[j].IsDefault {
			return live[i].IsDefault
		}
		if !live[i].UpdatedAt.Equal(live[j].UpdatedAt) {
			return live[i].UpdatedAt.After(live[j].UpdatedAt)
		}
		return live[i].ID.String() < live[j].ID.String()
	})
	return live
}

// topBySkills returns the candidates sharing the highest overlap count, in
// their original order, and that count.
func topBySkills(candidates []db.Resume, jobSkills []string) ([]db.Resume, int) {
	best := -1
	var tied []db.Resume
	for _, r := range candidates {
		n := SkillOverlap(jobSkills, ResumeSkills(&r))
		switch {
		case n > best:
			best = n
			tied = []db.Resume{r}
		case n == best:
			tied = append(tied, r)
		}
	}
	return tied, best
}

// ResumeSkills returns the declared skills plus those inferred from the text.
func ResumeSkills(r *db.Resume) []string {
	out := append([]string{}, r.Skills...)
	if r.Content != "" {
		out = append(out, skills.Extract(r.Content)...)
	}
	return out
}

// SkillOverlap counts job skills matched by any résumé skill, either exactly
// or by one containing the other, ignoring case. Containment needs the
// shorter skill to be at least minSubstringSkill long.
func SkillOverlap(jobSkills, resumeSkills []string) int {
	normalized := make([]string, 0, len(resumeSkills))
	for _, s := range resumeSkills {
		if n := skills.Normalize(s); n != "" {
			normalized = append(normalized, n)
		}
	}

	count := 0
	seen := make(map[string]bool)
	for _, js := range jobSkills {
		j := skills.Normalize(js)
		if j == "" || seen[j] {
			continue
		}
		seen[j] = true
		for _, rs := range normalized {
			if rs == j || containsSkill(rs, j) || containsSkill(j, rs) {
				count++
				break
			}
		}
	}
	return count
}

// minSubstringSkill keeps very short skills such as "go" from matching inside
// unrelated words like "mongodb".
const minSubstringSkill = 3

func containsSkill(s, sub string) bool {
	return len(sub) >= minSubstringSkill && strings.Contains(s, sub)
}

func skillReason(n int) string {
	if n == 1 {
		return "highest skill overlap (1 skill)"
	}
	return "highest skill overlap (" + strconv.Itoa(n) + " skills)"
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}
