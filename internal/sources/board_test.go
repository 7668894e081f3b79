package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBoard = `<html><body>
<ul>
  <li class="job">
    <a class="title" href="/jobs/1">Go Engineer</a>
    <span class="company">Acme</span>
    <span class="loc">Remote</span>
    <a class="mail" href="mailto:jobs@acme.io">apply</a>
    <a class="apply" href="https://acme.io/apply/1">Apply now</a>
    <span class="pay">€60k - €75k</span>
    <span class="cat">Engineering</span>
  </li>
  <li class="job">
    <a class="title" href="/jobs/2">Frontend Dev</a>
    <span class="company">Beta</span>
    <span class="loc">Paris</span>
  </li>
  <li class="job"><span class="company">No title</span></li>
</ul>
</body></html>`

var boardFields = map[string]string{
	"item":     "li.job",
	"title":    "a.title",
	"company":  ".company",
	"location": ".loc",
	"link":     "a.title",
	"email":    "a.mail",
	"apply":    "a.apply",
	"salary":   ".pay",
	"category": ".cat",
}

func TestBoardAdapter_Parse(t *testing.T) {
	a := NewBoardAdapter("board", "https://jobs.example.com/list", false, false, boardFields, nil, nil)

	jobs, err := a.Parse(sampleBoard, "https://jobs.example.com/list")
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "Go Engineer", jobs[0].Title)
	assert.Equal(t, "https://jobs.example.com/jobs/1", jobs[0].SourceURL)
	assert.Equal(t, jobs[0].SourceURL, jobs[0].SourceID)
	assert.Equal(t, "https://acme.io/apply/1", jobs[0].ApplyURL)
	assert.Equal(t, "€60k - €75k", jobs[0].SalaryText)
	assert.Equal(t, "Engineering", jobs[0].Category)
	assert.Equal(t, "jobs@acme.io", jobs[0].CompanyEmail)
	assert.True(t, jobs[0].IsRemote)

	assert.Equal(t, "Paris", jobs[1].Location)
	assert.False(t, jobs[1].IsRemote)
	assert.Empty(t, jobs[1].CompanyEmail)
	assert.Empty(t, jobs[1].ApplyURL)
	assert.Empty(t, jobs[1].Category)
}

func TestBoardAdapter_StableIDWithoutLink(t *testing.T) {
	fields := map[string]string{"item": "li.job", "title": "a.title", "company": ".company"}
	a := NewBoardAdapter("board", "https://jobs.example.com", false, false, fields, nil, nil)

	first, err := a.Parse(sampleBoard, "https://jobs.example.com")
	require.NoError(t, err)
	second, err := a.Parse(sampleBoard, "https://jobs.example.com")
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first[0].SourceID, second[0].SourceID)
	assert.NotEqual(t, first[0].SourceID, first[1].SourceID)
}

func TestBoardAdapter_RequiresSelectors(t *testing.T) {
	a := NewBoardAdapter("board", "https://unknown.example.com", false, false, nil, nil, nil)
	_, err := a.Fetch(context.Background(), Query{})
	assert.Error(t, err)
}

func TestBoardAdapter_PlatformDefaults(t *testing.T) {
	a := NewBoardAdapter("gh", "https://boards.greenhouse.io/acme", false, false, nil, nil, nil)
	assert.NotEmpty(t, a.selectors["item"])
	assert.False(t, a.useBrowser)
}

func TestBoardAdapter_FollowsDetailLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<ul><li class="job"><a class="title" href="/jobs/9">Platform Engineer</a></li></ul>`))
	})
	mux.HandleFunc("/jobs/9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><main><p>We run Kubernetes and Go services at scale across three regions.
Our platform team owns deployment tooling, observability and the internal developer portal.
Send applications to talent@platform.dev with your CV attached.</p></main></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fields := map[string]string{"item": "li.job", "title": "a.title", "link": "a.title", "detail": "true"}
	a := NewBoardAdapter("board", server.URL+"/list", false, false, fields, nil, nil)

	jobs, err := a.Fetch(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Contains(t, jobs[0].Description, "Kubernetes")
	assert.Equal(t, "talent@platform.dev", jobs[0].CompanyEmail)
}
