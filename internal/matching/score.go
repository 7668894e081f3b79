// Package matching scores postings against user preferences and links the
// ones worth showing to each user.
package matching

import (
	"fmt"
	"strings"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/keywords"
	"github.com/jonathan/job-autopilot/internal/skills"
)

// MaxScore is the upper bound of every score.
const MaxScore = 100

// Scoring weights. Every component is non-negative so a newly satisfied
// preference can never lower the total.
const (
	keywordTitleHit       = 30
	keywordTextHit        = 12
	keywordTitleBonus     = 10
	keywordCap            = 50
	remoteMatch           = 15
	cityMatch             = 15
	countryMatch          = 10
	experienceMatch       = 10
	jobTypeMatch          = 5
	categoryMatch         = 10
	platformMatch         = 5
	salaryMatch           = 5
	resumeSkillPoints     = 3
	resumeSkillCap        = 15
	maxResumeSkillReasons = 5
)

// Result is a score with the reasons that produced it, in evaluation order.
type Result struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// Score rates job for user on a 0-100 scale. It is deterministic: identical
// inputs always produce the same score and reasons.
func Score(job *db.GlobalJob, user *db.User, resumes []db.Resume) Result {
	var r Result
	add := func(points int, reason string) {
		r.Score += points
		r.Reasons = append(r.Reasons, reason)
	}

	titleTokens := skills.Tokenize(job.Title)
	textTokens := skills.Tokenize(job.Description)
	jobSkills := make(map[string]bool, len(job.Skills))
	for _, s := range job.Skills {
		jobSkills[skills.Normalize(s)] = true
	}

	// Keywords.
	kwPoints := 0
	titleHit := false
	seen := make(map[string]bool)
	for _, raw := range user.Keywords {
		kw := keywords.Normalize(raw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		switch {
		case skills.ContainsPhrase(titleTokens, kw):
			kwPoints += keywordTitleHit
			titleHit = true
			r.Reasons = append(r.Reasons, "keyword match: "+kw)
		case skills.ContainsPhrase(textTokens, kw) || jobSkills[skills.Normalize(kw)]:
			kwPoints += keywordTextHit
			r.Reasons = append(r.Reasons, "keyword match: "+kw)
		}
	}
	if titleHit {
		kwPoints += keywordTitleBonus
	}
	r.Score += min(kwPoints, keywordCap)

	// Location.
	location := strings.ToLower(job.Location)
	switch {
	case job.IsRemote && user.AcceptsRemote():
		add(remoteMatch, "location: remote")
	case user.City != "" && strings.Contains(location, strings.ToLower(user.City)):
		add(cityMatch, "location: "+user.City)
	case user.Country != "" && strings.Contains(location, strings.ToLower(user.Country)):
		add(countryMatch, "location: "+user.Country)
	}

	if user.ExperienceLevel != "" && strings.EqualFold(job.ExperienceLevel, user.ExperienceLevel) {
		add(experienceMatch, "experience: "+strings.ToLower(user.ExperienceLevel))
	}

	if reason, ok := employmentMatch(job, user); ok {
		add(jobTypeMatch, reason)
	}

	if job.Category != "" && containsFold(user.PreferredCategories, job.Category) {
		add(categoryMatch, "category: "+job.Category)
	}

	if containsFold(user.PreferredPlatforms, job.Source) {
		add(platformMatch, "platform: "+job.Source)
	}

	if salaryFits(job, user) {
		add(salaryMatch, "salary in range")
	}

	// Résumé skills.
	var resumeSkills []string
	for _, res := range resumes {
		resumeSkills = append(resumeSkills, res.Skills...)
	}
	if overlap := skills.Overlap(resumeSkills, job.Skills); len(overlap) > 0 {
		r.Score += min(len(overlap)*resumeSkillPoints, resumeSkillCap)
		shown := overlap
		if len(shown) > maxResumeSkillReasons {
			shown = shown[:maxResumeSkillReasons]
		}
		r.Reasons = append(r.Reasons, "resume skills: "+strings.Join(shown, ", "))
	}

	r.Score = min(max(r.Score, 0), MaxScore)
	return r
}

// employmentMatch checks the job type list first, then the work arrangement.
func employmentMatch(job *db.GlobalJob, user *db.User) (string, bool) {
	if job.JobType != "" && containsFold(user.JobTypes, job.JobType) {
		return "job type: " + job.JobType, true
	}
	switch user.WorkType {
	case db.WorkTypeRemote:
		if job.IsRemote {
			return "work type: remote", true
		}
	case db.WorkTypeOnsite:
		if !job.IsRemote && job.Location != "" {
			return "work type: onsite", true
		}
	case db.WorkTypeHybrid:
		if strings.Contains(strings.ToLower(job.Location+" "+job.Title), "hybrid") {
			return "work type: hybrid", true
		}
	}
	return "", false
}

// salaryFits reports whether the advertised range overlaps the user's bounds.
// Both sides need at least one figure.
func salaryFits(job *db.GlobalJob, user *db.User) bool {
	if user.SalaryMin == nil && user.SalaryMax == nil {
		return false
	}
	if job.SalaryMin == nil && job.SalaryMax == nil {
		return false
	}
	jobLow, jobHigh := job.SalaryMin, job.SalaryMax
	if jobLow == nil {
		jobLow = jobHigh
	}
	if jobHigh == nil {
		jobHigh = jobLow
	}
	if user.SalaryMin != nil && *jobHigh < *user.SalaryMin {
		return false
	}
	if user.SalaryMax != nil && *jobLow > *user.SalaryMax {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}

// Thresholds gate what happens to a scored link.
type Thresholds struct {
	Show    int
	Quality int
}

// DefaultThresholds returns the built-in cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{Show: 35, Quality: 70}
}

// Shows reports whether a score earns a place on the user's board.
func (t Thresholds) Shows(score int) bool {
	return score >= t.Show
}

// AutoApplyMin returns the score a link needs for notification and
// auto-apply. A user's own minimum applies when it is stricter.
func (t Thresholds) AutoApplyMin(user *db.User) int {
	return max(t.Quality, user.MinAutoApplyScore)
}

// Validate checks that the thresholds are ordered and in range.
func (t Thresholds) Validate() error {
	if t.Show < 0 || t.Quality > MaxScore || t.Show > t.Quality {
		return fmt.Errorf("invalid thresholds: show=%d quality=%d", t.Show, t.Quality)
	}
	return nil
}
