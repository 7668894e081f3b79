package sources

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jonathan/job-autopilot/internal/fetch"
)

// defaultFeedFields are the gjson paths used when a feed source does not
// override them. Paths are relative to one item.
var defaultFeedFields = map[string]string{
	"items":       "jobs",
	"id":          "id",
	"title":       "title",
	"company":     "company",
	"email":       "email",
	"location":    "location",
	"remote":      "remote",
	"description": "description",
	"url":         "url",
	"apply_url":   "apply_url",
	"company_url": "company_url",
	"salary":      "salary",
	"salary_min":  "salary_min",
	"salary_max":  "salary_max",
	"currency":    "salary_currency",
	"job_type":    "job_type",
	"level":       "experience_level",
	"category":    "category",
	"skills":      "tags",
	"posted_at":   "posted_at",
}

// FeedAdapter reads a JSON job feed. Field locations are gjson paths so most
// public job APIs can be mapped through configuration alone.
type FeedAdapter struct {
	name         string
	urlTemplate  string
	quotaLimited bool
	fields       map[string]string
	opts         *fetch.Options
}

// NewFeedAdapter creates a feed adapter. fields overrides defaultFeedFields
// per key; an "items" path of "@this" reads a top-level array.
func NewFeedAdapter(name, urlTemplate string, quotaLimited bool, fields map[string]string, opts *fetch.Options) *FeedAdapter {
	merged := make(map[string]string, len(defaultFeedFields))
	for k, v := range defaultFeedFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &FeedAdapter{
		name:         name,
		urlTemplate:  urlTemplate,
		quotaLimited: quotaLimited,
		fields:       merged,
		opts:         opts,
	}
}

func (a *FeedAdapter) Name() string       { return a.name }
func (a *FeedAdapter) QuotaLimited() bool { return a.quotaLimited }

// Fetch requests every expanded URL and merges the results, deduplicating by
// source ID. Individual request failures are tolerated as long as one succeeds.
func (a *FeedAdapter) Fetch(ctx context.Context, q Query) ([]NormalizedJob, error) {
	urls := expandURL(a.urlTemplate, q, url.QueryEscape)

	seen := make(map[string]bool)
	var jobs []NormalizedJob
	var lastErr error
	failures := 0

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return jobs, err
		}
		result, err := fetch.URL(ctx, u, a.opts)
		if err != nil {
			failures++
			lastErr = err
			log.Printf("[sources] %s: request failed: %v", a.name, err)
			continue
		}
		parsed, err := a.Parse([]byte(result.Body))
		if err != nil {
			failures++
			lastErr = err
			continue
		}
		for _, job := range parsed {
			if seen[job.SourceID] {
				continue
			}
			seen[job.SourceID] = true
			jobs = append(jobs, job)
		}
	}

	if len(urls) > 0 && failures == len(urls) {
		return nil, &ErrAllRequestsFailed{Source: a.name, Requests: len(urls), Last: lastErr}
	}
	return jobs, nil
}

// Parse converts a feed document into normalized jobs. Items without an ID or
// title are skipped.
func (a *FeedAdapter) Parse(body []byte) ([]NormalizedJob, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("source %s returned invalid JSON", a.name)
	}

	items := gjson.GetBytes(body, a.fields["items"])
	if !items.IsArray() {
		return nil, fmt.Errorf("source %s: no item array at %q", a.name, a.fields["items"])
	}

	var jobs []NormalizedJob
	items.ForEach(func(_, item gjson.Result) bool {
		job, ok := a.parseItem(item)
		if ok {
			jobs = append(jobs, job)
		}
		return true
	})
	return jobs, nil
}

func (a *FeedAdapter) parseItem(item gjson.Result) (NormalizedJob, bool) {
	get := func(key string) gjson.Result {
		path := a.fields[key]
		if path == "" {
			return gjson.Result{}
		}
		return item.Get(path)
	}

	id := strings.TrimSpace(get("id").String())
	title := strings.TrimSpace(get("title").String())
	if id == "" || title == "" {
		return NormalizedJob{}, false
	}

	description := get("description").String()
	location := strings.TrimSpace(get("location").String())
	email := strings.TrimSpace(get("email").String())
	if email == "" {
		email = ExtractEmail(description)
	}

	job := NormalizedJob{
		Source:          a.name,
		SourceID:        id,
		Title:           title,
		Company:         strings.TrimSpace(get("company").String()),
		CompanyEmail:    strings.ToLower(email),
		Location:        location,
		IsRemote:        get("remote").Bool() || IsRemoteLocation(location),
		Description:     description,
		SourceURL:       strings.TrimSpace(get("url").String()),
		ApplyURL:        strings.TrimSpace(get("apply_url").String()),
		CompanyURL:      strings.TrimSpace(get("company_url").String()),
		SalaryText:      strings.TrimSpace(get("salary").String()),
		SalaryMin:       optionalInt(get("salary_min")),
		SalaryMax:       optionalInt(get("salary_max")),
		SalaryCurrency:  strings.ToUpper(get("currency").String()),
		JobType:         get("job_type").String(),
		ExperienceLevel: get("level").String(),
		Category:        strings.TrimSpace(get("category").String()),
		PostedAt:        parseTime(get("posted_at")),
	}
	for _, s := range get("skills").Array() {
		if v := strings.TrimSpace(s.String()); v != "" {
			job.Skills = append(job.Skills, v)
		}
	}
	return job, true
}

func optionalInt(r gjson.Result) *int {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	var v int
	if r.Type == gjson.String {
		n, err := strconv.Atoi(strings.TrimSpace(r.Str))
		if err != nil {
			return nil
		}
		v = n
	} else {
		v = int(r.Int())
	}
	if v <= 0 {
		return nil
	}
	return &v
}

// parseTime accepts RFC 3339 strings, plain dates, and unix seconds.
func parseTime(r gjson.Result) *time.Time {
	if !r.Exists() {
		return nil
	}
	if r.Type == gjson.Number {
		t := time.Unix(r.Int(), 0).UTC()
		return &t
	}
	s := strings.TrimSpace(r.String())
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
