// Package sources defines the job source adapter contract and runs adapters
// in parallel with per-source failure isolation.
package sources

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
)

// maxParallelSources bounds how many adapters scrape at once.
const maxParallelSources = 4

// NormalizedJob is the common record every adapter produces.
type NormalizedJob struct {
	Source          string
	SourceID        string
	Title           string
	Company         string
	CompanyEmail    string
	Location        string
	IsRemote        bool
	Description     string
	SourceURL       string
	ApplyURL        string
	CompanyURL      string
	SalaryText      string
	SalaryMin       *int
	SalaryMax       *int
	SalaryCurrency  string
	JobType         string
	ExperienceLevel string
	// Category is optional. When blank the upserter categorizes the posting.
	Category string
	Skills   []string
	PostedAt *time.Time
}

// QueryEntry is one keyword and the locations it should be searched in.
type QueryEntry struct {
	Keyword   string
	Locations []string
}

// Query is the aggregated search input handed to every adapter. Entries are
// in rank order, most requested keyword first.
type Query struct {
	Entries []QueryEntry
}

// Adapter scrapes one job source. Implementations are black boxes to the
// rest of the pipeline; they only need to return normalized records.
type Adapter interface {
	Name() string
	// QuotaLimited adapters only receive the top-ranked keywords.
	QuotaLimited() bool
	Fetch(ctx context.Context, q Query) ([]NormalizedJob, error)
}

// Outcome is the settled result of one adapter run.
type Outcome struct {
	Source   string
	Jobs     []NormalizedJob
	Err      error
	Duration time.Duration
}

// Collect runs every adapter in parallel and waits for all of them. A failing
// adapter yields an Outcome with Err set and never affects the others.
// Quota-limited adapters receive limited instead of q.
func Collect(ctx context.Context, adapters []Adapter, q, limited Query) []Outcome {
	outcomes := make([]Outcome, len(adapters))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSources)

	for i, adapter := range adapters {
		g.Go(func() error {
			query := q
			if adapter.QuotaLimited() {
				query = limited
			}

			start := time.Now()
			jobs, err := fetchSafely(gCtx, adapter, query)
			outcomes[i] = Outcome{Source: adapter.Name(), Jobs: jobs, Err: err, Duration: time.Since(start)}
			if err != nil {
				log.Printf("[sources] %s failed after %v: %v", adapter.Name(), time.Since(start), err)
			} else {
				log.Printf("[sources] %s returned %d jobs in %v", adapter.Name(), len(jobs), time.Since(start))
			}
			// Failures are reported through the outcome so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// fetchSafely converts an adapter panic into an error.
func fetchSafely(ctx context.Context, adapter Adapter, q Query) (jobs []NormalizedJob, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Source: adapter.Name(), Value: r}
		}
	}()
	return adapter.Fetch(ctx, q)
}

var emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

// ExtractEmail returns the first email address found in text, lower-cased.
func ExtractEmail(text string) string {
	m := emailPattern.FindString(text)
	return strings.ToLower(strings.TrimRight(m, "."))
}

// IsRemoteLocation reports whether a location string advertises remote work.
func IsRemoteLocation(location string) bool {
	l := strings.ToLower(location)
	return strings.Contains(l, "remote") || strings.Contains(l, "anywhere") || strings.Contains(l, "worldwide")
}

// expandURL fills {keyword} and {location} placeholders. Each keyword is only
// paired with its own entry's locations; a template without {keyword} gets
// every distinct location once. Duplicate URLs are dropped.
func expandURL(template string, q Query, escape func(string) string) []string {
	hasKeyword := strings.Contains(template, "{keyword}")
	hasLocation := strings.Contains(template, "{location}")

	type pair struct{ keyword, location string }
	var pairs []pair
	switch {
	case hasKeyword:
		for _, e := range q.Entries {
			locations := []string{""}
			if hasLocation && len(e.Locations) > 0 {
				locations = e.Locations
			}
			for _, loc := range locations {
				pairs = append(pairs, pair{e.Keyword, loc})
			}
		}
	case hasLocation:
		for _, e := range q.Entries {
			for _, loc := range e.Locations {
				pairs = append(pairs, pair{"", loc})
			}
		}
	}
	if len(pairs) == 0 {
		pairs = []pair{{}}
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	var urls []string
	for _, p := range pairs {
		u := strings.ReplaceAll(template, "{keyword}", escape(p.keyword))
		u = strings.ReplaceAll(u, "{location}", escape(p.location))
		if seen.Add(u) {
			urls = append(urls, u)
		}
	}
	return urls
}
