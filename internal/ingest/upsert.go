package ingest

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/skills"
	"github.com/jonathan/job-autopilot/internal/sources"
)

// Store is the persistence the upserter needs.
type Store interface {
	UpsertGlobalJob(ctx context.Context, j *db.GlobalJob) (db.UpsertResult, error)
	InsertSystemLog(ctx context.Context, entry db.SystemLog) error
}

// Summary counts the outcome of one source's batch.
type Summary struct {
	Source  string      `json:"source"`
	Found   int         `json:"found"`
	New     int         `json:"new"`
	Updated int         `json:"updated"`
	Failed  int         `json:"failed"`
	NewIDs  []uuid.UUID `json:"-"`
}

// Upserter writes normalized postings into the global job pool.
type Upserter struct {
	store Store
}

// NewUpserter creates an upserter backed by store.
func NewUpserter(store Store) *Upserter {
	return &Upserter{store: store}
}

// Ingest sanitizes, categorizes and upserts every record from one source.
// Records without a source are attributed to source. Records that fail are
// counted and skipped. A scrape_summary log row is written once the batch is
// done, even when every record failed.
func (u *Upserter) Ingest(ctx context.Context, source string, records []sources.NormalizedJob) (Summary, error) {
	summary := Summary{Source: source, Found: len(records)}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if records[i].Source == "" {
			records[i].Source = source
		}
		job, err := Normalize(records[i])
		if err != nil {
			summary.Failed++
			log.Printf("[ingest] %s: skipping record %q: %v", source, records[i].SourceID, err)
			continue
		}

		res, err := u.store.UpsertGlobalJob(ctx, job)
		if err != nil {
			summary.Failed++
			log.Printf("[ingest] %s: failed to upsert %q: %v", source, job.SourceID, err)
			continue
		}
		if res.Inserted {
			summary.New++
			summary.NewIDs = append(summary.NewIDs, res.ID)
		} else {
			summary.Updated++
		}
	}

	log.Printf("[ingest] %s: found=%d new=%d updated=%d failed=%d",
		source, summary.Found, summary.New, summary.Updated, summary.Failed)

	entry := db.SystemLog{
		Type:    db.LogScrapeSummary,
		Source:  source,
		Message: fmt.Sprintf("%d found, %d new, %d updated", summary.Found, summary.New, summary.Updated),
		Metadata: map[string]any{
			"found":   summary.Found,
			"new":     summary.New,
			"updated": summary.Updated,
			"failed":  summary.Failed,
		},
	}
	if err := u.store.InsertSystemLog(ctx, entry); err != nil {
		return summary, fmt.Errorf("failed to write scrape summary: %w", err)
	}
	return summary, nil
}

// RecordFailure logs a source whose adapter failed before returning any
// records, so health reporting can see it.
func (u *Upserter) RecordFailure(ctx context.Context, source string, cause error) error {
	entry := db.SystemLog{
		Type:    db.LogSourceFailed,
		Source:  source,
		Message: cause.Error(),
		Metadata: map[string]any{
			"failed": true,
			"error":  cause.Error(),
		},
	}
	if err := u.store.InsertSystemLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to record source failure: %w", err)
	}
	return nil
}

// Normalize converts an adapter record into a GlobalJob row. A category the
// adapter supplied is kept when it is part of the taxonomy; otherwise the
// posting is categorized from its text. It fails only when the record lacks
// its identity or a title.
func Normalize(r sources.NormalizedJob) (*db.GlobalJob, error) {
	source := strings.TrimSpace(r.Source)
	sourceID := strings.TrimSpace(r.SourceID)
	if source == "" || sourceID == "" {
		return nil, fmt.Errorf("missing source identity")
	}
	title := SanitizeLine(r.Title)
	if title == "" {
		return nil, fmt.Errorf("missing title")
	}

	description := Sanitize(r.Description)
	location := SanitizeLine(r.Location)

	jobSkills := make([]string, 0, len(r.Skills))
	seen := make(map[string]bool)
	for _, s := range r.Skills {
		n := skills.Normalize(s)
		if n != "" && !seen[n] {
			seen[n] = true
			jobSkills = append(jobSkills, n)
		}
	}
	if len(jobSkills) == 0 {
		jobSkills = skills.Extract(title + "\n" + description)
	}

	email := strings.ToLower(strings.TrimSpace(r.CompanyEmail))
	if email == "" {
		email = sources.ExtractEmail(description)
	}

	salaryMin, salaryMax := r.SalaryMin, r.SalaryMax
	if salaryMin != nil && salaryMax != nil && *salaryMin > *salaryMax {
		salaryMin, salaryMax = salaryMax, salaryMin
	}
	currency := strings.ToUpper(strings.TrimSpace(r.SalaryCurrency))
	salaryText := SanitizeLine(r.SalaryText)
	if salaryText == "" {
		salaryText = formatSalary(salaryMin, salaryMax, currency)
	}

	category := strings.ToLower(strings.TrimSpace(r.Category))
	if !IsKnownCategory(category) {
		category = Categorize(title, description)
	}

	return &db.GlobalJob{
		Source:          source,
		SourceID:        sourceID,
		Title:           title,
		Company:         SanitizeLine(r.Company),
		CompanyEmail:    email,
		Location:        location,
		IsRemote:        r.IsRemote || sources.IsRemoteLocation(location),
		Description:     description,
		SourceURL:       strings.TrimSpace(r.SourceURL),
		ApplyURL:        strings.TrimSpace(r.ApplyURL),
		CompanyURL:      strings.TrimSpace(r.CompanyURL),
		SalaryText:      salaryText,
		SalaryMin:       salaryMin,
		SalaryMax:       salaryMax,
		SalaryCurrency:  currency,
		JobType:         normalizeJobType(r.JobType),
		ExperienceLevel: normalizeLevel(r.ExperienceLevel + " " + title),
		Skills:          jobSkills,
		Category:        category,
		PostedAt:        r.PostedAt,
	}, nil
}

// formatSalary renders structured bounds as text for adapters that only
// report numbers.
func formatSalary(low, high *int, currency string) string {
	var text string
	switch {
	case low != nil && high != nil && *low != *high:
		text = fmt.Sprintf("%d-%d", *low, *high)
	case low != nil:
		text = strconv.Itoa(*low)
	case high != nil:
		text = "up to " + strconv.Itoa(*high)
	default:
		return ""
	}
	if currency != "" {
		text += " " + currency
	}
	return text
}

// normalizeJobType maps free-form employment types onto a small vocabulary.
func normalizeJobType(raw string) string {
	s := strings.ToLower(raw)
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "full"):
		return "full_time"
	case strings.Contains(s, "part"):
		return "part_time"
	case strings.Contains(s, "contract"), strings.Contains(s, "freelance"):
		return "contract"
	case strings.Contains(s, "intern"):
		return "internship"
	case strings.Contains(s, "temp"):
		return "temporary"
	default:
		return strings.Join(strings.Fields(s), "_")
	}
}

// normalizeLevel infers the seniority band from an explicit level or the title.
func normalizeLevel(text string) string {
	tokens := skills.TokenSet(text)
	switch {
	case anyOf(tokens, "intern", "internship", "trainee", "graduate", "entry", "junior", "jr"):
		return "junior"
	case anyOf(tokens, "principal", "staff", "lead", "head", "director"):
		return "lead"
	case anyOf(tokens, "senior", "sr", "expert"):
		return "senior"
	case anyOf(tokens, "mid", "intermediate", "medior"):
		return "mid"
	default:
		return ""
	}
}

func anyOf(set mapset.Set[string], words ...string) bool {
	for _, w := range words {
		if set.Contains(w) {
			return true
		}
	}
	return false
}
