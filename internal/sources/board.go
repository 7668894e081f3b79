package sources

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/fetch"
)

// maxDetailPages bounds how many posting pages a board adapter follows per run.
const maxDetailPages = 25

// BoardAdapter scrapes an HTML job board listing with CSS selectors.
type BoardAdapter struct {
	name         string
	urlTemplate  string
	quotaLimited bool
	selectors    fetch.ListingSelectors
	followLinks  bool
	useBrowser   bool
	renderer     fetch.Renderer
	opts         *fetch.Options
}

// NewBoardAdapter creates a board adapter. Selectors not given in fields fall
// back to the detected platform's layout. A "detail" field of "true" makes the
// adapter follow each posting link to read its description.
func NewBoardAdapter(name, urlTemplate string, quotaLimited, useBrowser bool, fields map[string]string, renderer fetch.Renderer, opts *fetch.Options) *BoardAdapter {
	platform := fetch.DetectPlatform(urlTemplate)
	selectors := fetch.ListingSelectors{}
	for k, v := range fetch.PlatformListingSelectors(platform) {
		selectors[k] = v
	}
	followLinks := false
	for k, v := range fields {
		if k == "detail" {
			followLinks = v == "true"
			continue
		}
		selectors[k] = v
	}
	return &BoardAdapter{
		name:         name,
		urlTemplate:  urlTemplate,
		quotaLimited: quotaLimited,
		selectors:    selectors,
		followLinks:  followLinks,
		useBrowser:   useBrowser || fetch.RequiresBrowser(platform),
		renderer:     renderer,
		opts:         opts,
	}
}

func (a *BoardAdapter) Name() string       { return a.name }
func (a *BoardAdapter) QuotaLimited() bool { return a.quotaLimited }

// Fetch loads every expanded listing URL and extracts postings.
func (a *BoardAdapter) Fetch(ctx context.Context, q Query) ([]NormalizedJob, error) {
	if a.selectors["item"] == "" || a.selectors["title"] == "" {
		return nil, fmt.Errorf("source %s: item and title selectors are required", a.name)
	}

	urls := expandURL(a.urlTemplate, q, url.QueryEscape)
	seen := make(map[string]bool)
	var jobs []NormalizedJob
	var lastErr error
	failures := 0

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return jobs, err
		}
		html, err := a.load(ctx, u)
		if err != nil {
			failures++
			lastErr = err
			log.Printf("[sources] %s: failed to load %s: %v", a.name, u, err)
			continue
		}
		parsed, err := a.Parse(html, u)
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

	if a.followLinks {
		a.fillDetails(ctx, jobs)
	}
	return jobs, nil
}

func (a *BoardAdapter) load(ctx context.Context, pageURL string) (string, error) {
	if a.useBrowser && a.renderer != nil {
		return a.renderer.Render(ctx, pageURL)
	}
	result, err := fetch.URL(ctx, pageURL, a.opts)
	if err != nil {
		return "", err
	}
	return result.Body, nil
}

// Parse extracts postings from a listing page. Relative links resolve
// against pageURL. Postings without a link get a stable ID derived from
// their title and company.
func (a *BoardAdapter) Parse(html, pageURL string) ([]NormalizedJob, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing HTML: %w", err)
	}
	base, _ := url.Parse(pageURL)

	var jobs []NormalizedJob
	doc.Find(a.selectors["item"]).Each(func(_ int, item *goquery.Selection) {
		title := a.text(item, "title")
		if title == "" {
			return
		}
		company := a.text(item, "company")
		location := a.text(item, "location")
		link := a.href(item, "link", base)
		description := a.text(item, "description")

		email := strings.TrimPrefix(a.attr(item, "email", "href"), "mailto:")
		if email == "" {
			email = ExtractEmail(description)
		}

		sourceID := link
		if sourceID == "" {
			sourceID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(a.name+"|"+title+"|"+company)).String()
		}

		jobs = append(jobs, NormalizedJob{
			Source:       a.name,
			SourceID:     sourceID,
			Title:        title,
			Company:      company,
			CompanyEmail: strings.ToLower(email),
			Location:     location,
			IsRemote:     IsRemoteLocation(location),
			Description:  description,
			SourceURL:    link,
			ApplyURL:     a.href(item, "apply", base),
			CompanyURL:   a.href(item, "company_link", base),
			SalaryText:   a.text(item, "salary"),
			JobType:      a.text(item, "job_type"),
			Category:     a.text(item, "category"),
		})
	})
	return jobs, nil
}

// fillDetails follows posting links to read descriptions and contact emails.
// Failures leave the listing data as is.
func (a *BoardAdapter) fillDetails(ctx context.Context, jobs []NormalizedJob) {
	followed := 0
	for i := range jobs {
		if followed >= maxDetailPages || ctx.Err() != nil {
			return
		}
		if jobs[i].SourceURL == "" || jobs[i].Description != "" {
			continue
		}
		followed++

		html, err := a.load(ctx, jobs[i].SourceURL)
		if err != nil {
			log.Printf("[sources] %s: failed to load posting %s: %v", a.name, jobs[i].SourceURL, err)
			continue
		}
		text, err := fetch.ExtractMainText(html, fetch.JobPostingSelectors())
		if err != nil {
			continue
		}
		if fetch.ShouldUseBrowser(text) && !a.useBrowser && a.renderer != nil {
			if rendered, err := a.renderer.Render(ctx, jobs[i].SourceURL); err == nil {
				if t, err := fetch.ExtractMainText(rendered, fetch.JobPostingSelectors()); err == nil {
					text = t
				}
			}
		}
		jobs[i].Description = text
		if jobs[i].CompanyEmail == "" {
			jobs[i].CompanyEmail = ExtractEmail(text)
		}
	}
}

func (a *BoardAdapter) text(item *goquery.Selection, field string) string {
	sel := a.selectors[field]
	if sel == "" {
		return ""
	}
	return strings.Join(strings.Fields(item.Find(sel).First().Text()), " ")
}

func (a *BoardAdapter) attr(item *goquery.Selection, field, attr string) string {
	sel := a.selectors[field]
	if sel == "" {
		return ""
	}
	v, _ := item.Find(sel).First().Attr(attr)
	return strings.TrimSpace(v)
}

func (a *BoardAdapter) href(item *goquery.Selection, field string, base *url.URL) string {
	sel := a.selectors[field]
	if sel == "" {
		return ""
	}
	var raw string
	if goquery.NodeName(item) == "a" && item.Is(sel) {
		raw, _ = item.Attr("href")
	} else {
		raw, _ = item.Find(sel).First().Attr("href")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		return base.ResolveReference(ref).String()
	}
	return ref.String()
}
