// Package keywords aggregates the search terms and locations that scrapers
// query, derived from every active user's preferences.
package keywords

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/jonathan/job-autopilot/internal/db"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoteLocation is part of every keyword's candidate locations.
const RemoteLocation = "Remote"

var disallowed = regexp.MustCompile(`[^a-z0-9 +#./-]+`)

// Entry is one normalized keyword, the number of distinct users who asked for
// it and the locations those users live in. Locations always include Remote.
type Entry struct {
	Keyword   string   `json:"keyword"`
	Users     int      `json:"users"`
	Locations []string `json:"locations"`
}

// Result is the aggregated search input for one scrape run.
type Result struct {
	Keywords []Entry `json:"keywords"`
}

// Locations returns the distinct locations across all entries, sorted.
func (r Result) Locations() []string {
	all := mapset.NewThreadUnsafeSet[string]()
	for _, e := range r.Keywords {
		all.Append(e.Locations...)
	}
	locs := all.ToSlice()
	sort.Strings(locs)
	return locs
}

// Store is the read access the aggregator needs.
type Store interface {
	ListActiveUserKeywords(ctx context.Context) ([]db.UserKeywords, error)
}

// Aggregator reads active users' preferences and builds the scrape input.
type Aggregator struct {
	store Store
}

// NewAggregator creates an Aggregator backed by store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Run loads active users and aggregates their keywords and locations.
func (a *Aggregator) Run(ctx context.Context) (Result, error) {
	users, err := a.store.ListActiveUserKeywords(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load user keywords: %w", err)
	}
	return Aggregate(users), nil
}

// Normalize folds diacritics, lower-cases, strips characters outside the
// allow-list and collapses whitespace. It returns "" for input with nothing left.
func Normalize(raw string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), raw)
	if err != nil {
		folded = raw
	}
	cleaned := disallowed.ReplaceAllString(strings.ToLower(folded), " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

// Aggregate normalizes and deduplicates keywords across users, ranking them by
// how many distinct users want each one, then alphabetically. Each keyword's
// locations are the cities and countries of only the users who asked for it,
// plus Remote.
func Aggregate(users []db.UserKeywords) Result {
	byKeyword := make(map[string]mapset.Set[uuid.UUID])
	locations := make(map[string]mapset.Set[string])

	for _, u := range users {
		var userLocs []string
		for _, loc := range []string{u.City, u.Country} {
			if loc = strings.TrimSpace(loc); loc != "" {
				userLocs = append(userLocs, loc)
			}
		}
		for _, raw := range u.Keywords {
			kw := Normalize(raw)
			if kw == "" {
				continue
			}
			if _, ok := byKeyword[kw]; !ok {
				byKeyword[kw] = mapset.NewThreadUnsafeSet[uuid.UUID]()
				locations[kw] = mapset.NewThreadUnsafeSet(RemoteLocation)
			}
			byKeyword[kw].Add(u.UserID)
			locations[kw].Append(userLocs...)
		}
	}

	entries := make([]Entry, 0, len(byKeyword))
	for kw, set := range byKeyword {
		locs := locations[kw].ToSlice()
		sort.Strings(locs)
		entries = append(entries, Entry{Keyword: kw, Users: set.Cardinality(), Locations: locs})
	}
	sortEntries(entries)

	return Result{Keywords: entries}
}

// Top returns at most n entries in rank order. n <= 0 means no limit.
func Top(entries []Entry, n int) []Entry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[:n]
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Users != entries[j].Users {
			return entries[i].Users > entries[j].Users
		}
		return entries[i].Keyword < entries[j].Keyword
	})
}
