package sources

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	name    string
	quota   bool
	jobs    []NormalizedJob
	err     error
	panics  bool
	mu      sync.Mutex
	queries []Query
}

func (s *stubAdapter) Name() string       { return s.name }
func (s *stubAdapter) QuotaLimited() bool { return s.quota }

func (s *stubAdapter) Fetch(_ context.Context, q Query) ([]NormalizedJob, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	if s.panics {
		panic("boom")
	}
	return s.jobs, s.err
}

func TestCollect_IsolatesFailures(t *testing.T) {
	good := &stubAdapter{name: "good", jobs: []NormalizedJob{{SourceID: "1", Title: "Go Dev"}}}
	bad := &stubAdapter{name: "bad", err: errors.New("upstream down")}
	panicky := &stubAdapter{name: "panicky", panics: true}

	outcomes := Collect(context.Background(), []Adapter{good, bad, panicky}, keywordQuery("go"), keywordQuery("go"))
	require.Len(t, outcomes, 3)

	byName := map[string]Outcome{}
	for _, o := range outcomes {
		byName[o.Source] = o
	}
	assert.NoError(t, byName["good"].Err)
	assert.Len(t, byName["good"].Jobs, 1)
	assert.EqualError(t, byName["bad"].Err, "upstream down")

	var pe *PanicError
	assert.ErrorAs(t, byName["panicky"].Err, &pe)
}

// keywordQuery builds a query whose entries only search remotely.
func keywordQuery(keywords ...string) Query {
	q := Query{}
	for _, kw := range keywords {
		q.Entries = append(q.Entries, QueryEntry{Keyword: kw, Locations: []string{"Remote"}})
	}
	return q
}

func entryKeywords(q Query) []string {
	out := make([]string, len(q.Entries))
	for i, e := range q.Entries {
		out[i] = e.Keyword
	}
	return out
}

func TestCollect_QuotaLimitedGetLimitedQuery(t *testing.T) {
	limited := &stubAdapter{name: "limited", quota: true}
	open := &stubAdapter{name: "open"}

	Collect(context.Background(), []Adapter{limited, open}, keywordQuery("a", "b", "c", "d"), keywordQuery("a", "b"))

	require.Len(t, limited.queries, 1)
	assert.Equal(t, []string{"a", "b"}, entryKeywords(limited.queries[0]))
	require.Len(t, open.queries, 1)
	assert.Equal(t, []string{"a", "b", "c", "d"}, entryKeywords(open.queries[0]))
}

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Send your CV to Jobs@Example.com.", "jobs@example.com"},
		{"no contact here", ""},
		{"hr@acme.io or careers@acme.io", "hr@acme.io"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractEmail(tt.text), tt.text)
	}
}

func TestIsRemoteLocation(t *testing.T) {
	assert.True(t, IsRemoteLocation("Remote (EU)"))
	assert.True(t, IsRemoteLocation("Anywhere"))
	assert.False(t, IsRemoteLocation("Berlin, Germany"))
}

func TestExpandURL(t *testing.T) {
	q := Query{Entries: []QueryEntry{
		{Keyword: "go dev", Locations: []string{"Berlin", "Remote"}},
		{Keyword: "rust", Locations: []string{"Remote"}},
	}}

	urls := expandURL("https://x.test/?q={keyword}&l={location}", q, url.QueryEscape)
	sort.Strings(urls)
	assert.Equal(t, []string{
		"https://x.test/?q=go+dev&l=Berlin",
		"https://x.test/?q=go+dev&l=Remote",
		"https://x.test/?q=rust&l=Remote",
	}, urls)

	assert.Equal(t, []string{"https://x.test/all"}, expandURL("https://x.test/all", q, url.QueryEscape))
	assert.Equal(t, []string{"https://x.test/?q=go+dev", "https://x.test/?q=rust"},
		expandURL("https://x.test/?q={keyword}", q, url.QueryEscape))
	assert.Equal(t, []string{"https://x.test/?l=Berlin", "https://x.test/?l=Remote"},
		expandURL("https://x.test/?l={location}", q, url.QueryEscape), "each location once")
	assert.Equal(t, []string{"https://x.test/?q="}, expandURL("https://x.test/?q={keyword}", Query{}, url.QueryEscape))
}

func TestExpandURL_KeepsUsersLocationsApart(t *testing.T) {
	q := Query{Entries: []QueryEntry{
		{Keyword: "react", Locations: []string{"Berlin", "Remote"}},
		{Keyword: "golang", Locations: []string{"Paris", "Remote"}},
	}}

	urls := expandURL("https://x.test/?q={keyword}&l={location}", q, url.QueryEscape)

	assert.ElementsMatch(t, []string{
		"https://x.test/?q=react&l=Berlin",
		"https://x.test/?q=react&l=Remote",
		"https://x.test/?q=golang&l=Paris",
		"https://x.test/?q=golang&l=Remote",
	}, urls)
	assert.NotContains(t, urls, "https://x.test/?q=golang&l=Berlin")
	assert.NotContains(t, urls, "https://x.test/?q=react&l=Paris")
}
