// Package pipeline runs the scrape stage end to end: aggregate the search
// input, fan out over the source adapters, upsert what they return and match
// the fresh postings.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-autopilot/internal/ingest"
	"github.com/jonathan/job-autopilot/internal/keywords"
	"github.com/jonathan/job-autopilot/internal/matching"
	"github.com/jonathan/job-autopilot/internal/sources"
	"github.com/jonathan/job-autopilot/internal/types"
)

// maxParallelIngest bounds how many sources are upserted at once.
const maxParallelIngest = 2

// ProgressEvent reports one finished stage of a scrape run.
type ProgressEvent struct {
	Stage   string         `json:"stage"`
	Source  string         `json:"source,omitempty"`
	Message string         `json:"message"`
	Counts  map[string]int `json:"counts,omitempty"`
}

// ProgressCallback is called as a scrape run progresses.
type ProgressCallback func(event ProgressEvent)

// KeywordSource builds the aggregated search input.
type KeywordSource interface {
	Run(ctx context.Context) (keywords.Result, error)
}

// Ingester upserts one source's records into the job pool and records
// sources that failed.
type Ingester interface {
	Ingest(ctx context.Context, source string, records []sources.NormalizedJob) (ingest.Summary, error)
	RecordFailure(ctx context.Context, source string, cause error) error
}

// Matcher scores postings against users.
type Matcher interface {
	Run(ctx context.Context, lane matching.Lane) *types.BatchResult
}

// Options configures a scraper.
type Options struct {
	// QuotaKeywordCap limits quota-limited sources to the top-ranked keywords.
	QuotaKeywordCap int
	// MatchFresh runs the instant matching lane when a scrape found new postings.
	MatchFresh bool
	OnProgress ProgressCallback
}

// Scraper runs one scrape over every configured source.
type Scraper struct {
	keywords KeywordSource
	adapters []sources.Adapter
	ingester Ingester
	matcher  Matcher
	opts     Options
}

// NewScraper creates a scraper. matcher may be nil.
func NewScraper(kw KeywordSource, adapters []sources.Adapter, ingester Ingester, matcher Matcher, opts Options) *Scraper {
	if opts.QuotaKeywordCap <= 0 {
		opts.QuotaKeywordCap = 10
	}
	return &Scraper{keywords: kw, adapters: adapters, ingester: ingester, matcher: matcher, opts: opts}
}

func (s *Scraper) emit(event ProgressEvent) {
	if s.opts.OnProgress != nil {
		s.opts.OnProgress(event)
	}
}

// Run scrapes every source and upserts the results. A failing source is
// recorded and never affects the others; the run only fails when every
// source failed.
func (s *Scraper) Run(ctx context.Context) *types.BatchResult {
	res := types.NewBatchResult("scrape")

	input, err := s.keywords.Run(ctx)
	if err != nil {
		res.Status = types.BatchFailed
		res.Fail(err)
		return res.Finish()
	}
	if len(input.Keywords) == 0 {
		return res.Skip("no active user keywords").Finish()
	}
	if len(s.adapters) == 0 {
		return res.Skip("no sources configured").Finish()
	}
	query := buildQuery(input)
	locations := len(input.Locations())
	res.Add("keywords", len(input.Keywords))
	res.Add("locations", locations)
	s.emit(ProgressEvent{Stage: "keywords", Message: fmt.Sprintf("%d keywords, %d locations", len(input.Keywords), locations)})

	limited := buildQuery(keywords.Result{Keywords: keywords.Top(input.Keywords, s.opts.QuotaKeywordCap)})
	outcomes := sources.Collect(ctx, s.adapters, query, limited)

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelIngest)

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			res.Add("sources_failed", 1)
			res.Fail(fmt.Errorf("source %s: %w", outcome.Source, outcome.Err))
			if err := s.ingester.RecordFailure(ctx, outcome.Source, outcome.Err); err != nil {
				log.Printf("[scrape] %s: %v", outcome.Source, err)
			}
			s.emit(ProgressEvent{Stage: "fetch", Source: outcome.Source, Message: outcome.Err.Error()})
			continue
		}
		g.Go(func() error {
			summary, err := s.ingester.Ingest(gCtx, outcome.Source, outcome.Jobs)

			mu.Lock()
			defer mu.Unlock()
			res.Add("sources_ok", 1)
			res.Add("found", summary.Found)
			res.Add("new", summary.New)
			res.Add("updated", summary.Updated)
			res.Add("failed_records", summary.Failed)
			if err != nil {
				res.Fail(fmt.Errorf("source %s: %w", outcome.Source, err))
			}
			s.emit(ProgressEvent{
				Stage:   "ingest",
				Source:  outcome.Source,
				Message: fmt.Sprintf("%d found, %d new", summary.Found, summary.New),
				Counts:  map[string]int{"found": summary.Found, "new": summary.New, "updated": summary.Updated, "failed": summary.Failed},
			})
			return nil
		})
	}
	_ = g.Wait()

	if res.Counts["sources_ok"] == 0 {
		res.Status = types.BatchFailed
		res.Reason = "every source failed"
		log.Printf("[scrape] every source failed (%d)", len(outcomes))
		return res.Finish()
	}

	if s.matcher != nil && s.opts.MatchFresh && res.Counts["new"] > 0 {
		matched := s.matcher.Run(ctx, matching.LaneInstant)
		for k, v := range matched.Counts {
			res.Add("match_"+k, v)
		}
		for _, e := range matched.Errors {
			res.Errors = append(res.Errors, "match: "+e)
		}
		s.emit(ProgressEvent{Stage: "match", Message: fmt.Sprintf("%d links created", matched.Counts["linked"]), Counts: matched.Counts})
	}

	res.Finish()
	log.Printf("[scrape] %s: sources=%d found=%d new=%d updated=%d",
		res.Status, len(outcomes), res.Counts["found"], res.Counts["new"], res.Counts["updated"])
	return res
}

// buildQuery turns ranked keyword entries into adapter queries. Each keyword
// keeps only its own users' locations.
func buildQuery(input keywords.Result) sources.Query {
	q := sources.Query{Entries: make([]sources.QueryEntry, 0, len(input.Keywords))}
	for _, e := range input.Keywords {
		q.Entries = append(q.Entries, sources.QueryEntry{Keyword: e.Keyword, Locations: e.Locations})
	}
	return q
}
