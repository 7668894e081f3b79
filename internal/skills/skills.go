// Package skills extracts and normalizes technical skill names from free text.
package skills

import (
	"sort"
	"strings"
	"unicode"

	mapset "github.com/deckarep/golang-set/v2"
)

// aliases maps common variants to a canonical lower-case skill key.
var aliases = map[string]string{
	"golang":              "go",
	"go lang":             "go",
	"js":                  "javascript",
	"ecmascript":          "javascript",
	"ts":                  "typescript",
	"k8s":                 "kubernetes",
	"react.js":            "react",
	"reactjs":             "react",
	"vue.js":              "vue",
	"vuejs":               "vue",
	"nodejs":              "node.js",
	"node":                "node.js",
	"next.js":             "nextjs",
	"postgres":            "postgresql",
	"psql":                "postgresql",
	"mongo":               "mongodb",
	"gcp":                 "google cloud",
	"amazon web services": "aws",
	"ml":                  "machine learning",
	"py":                  "python",
	"c sharp":             "c#",
	"cpp":                 "c++",
	"tf":                  "terraform",
	"rn":                  "react native",
}

// known is the dictionary of canonical skills recognized by Extract.
var known = []string{
	"go", "python", "java", "javascript", "typescript", "ruby", "php", "rust", "c++", "c#",
	"kotlin", "swift", "scala", "elixir", "sql",
	"react", "react native", "vue", "angular", "svelte", "nextjs", "node.js", "django",
	"flask", "fastapi", "rails", "spring", "laravel", "graphql",
	"postgresql", "mysql", "mongodb", "redis", "elasticsearch", "kafka", "rabbitmq",
	"aws", "google cloud", "azure", "docker", "kubernetes", "terraform", "ansible",
	"linux", "git", "ci/cd", "microservices", "grpc",
	"machine learning", "deep learning", "pytorch", "tensorflow", "pandas", "spark",
	"airflow", "dbt", "tableau", "power bi", "excel",
	"figma", "sketch", "photoshop", "ux", "ui",
	"seo", "sem", "google analytics", "hubspot", "salesforce",
	"jira", "agile", "scrum",
}

// stopWords are dropped from token streams.
var stopWords = mapset.NewSet(
	"and", "the", "for", "with", "you", "are", "have", "will", "this", "that",
	"from", "our", "your", "their", "they", "a", "an", "of", "in", "on", "at",
	"to", "as", "is", "be", "or", "by", "we",
)

// Tokenize splits text into lower-case tokens in order. It keeps '+', '#'
// and inner '.' as word characters so c++, c# and node.js survive.
func Tokenize(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		w := strings.Trim(word.String(), ".")
		word.Reset()
		if w != "" && !stopWords.Contains(w) {
			tokens = append(tokens, w)
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' || r == '/' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) mapset.Set[string] {
	return mapset.NewThreadUnsafeSet(Tokenize(text)...)
}

// Normalize returns the canonical lower-case form of a skill or keyword.
func Normalize(name string) string {
	n := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if canonical, ok := aliases[n]; ok {
		return canonical
	}
	return n
}

// ContainsPhrase reports whether phrase occurs in tokens as a contiguous run.
// Aliases are resolved on both sides, so "golang" matches "Go".
func ContainsPhrase(tokens []string, phrase string) bool {
	if containsRun(tokens, Tokenize(phrase)) {
		return true
	}
	return containsRun(tokens, Tokenize(Normalize(phrase)))
}

func containsRun(tokens, want []string) bool {
	if len(want) == 0 {
		return false
	}
	for i := 0; i+len(want) <= len(tokens); i++ {
		match := true
		for j, w := range want {
			if Normalize(tokens[i+j]) != Normalize(w) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Extract returns the sorted canonical skills from the dictionary found in text.
func Extract(text string) []string {
	tokens := Tokenize(text)
	found := mapset.NewThreadUnsafeSet[string]()
	for _, skill := range known {
		if ContainsPhrase(tokens, skill) {
			found.Add(skill)
		}
	}
	for alias, canonical := range aliases {
		if !found.Contains(canonical) && ContainsPhrase(tokens, alias) {
			found.Add(canonical)
		}
	}
	out := found.ToSlice()
	sort.Strings(out)
	return out
}

// Overlap returns the sorted canonical skills present in both lists.
func Overlap(a, b []string) []string {
	left := mapset.NewThreadUnsafeSet[string]()
	for _, s := range a {
		left.Add(Normalize(s))
	}
	right := mapset.NewThreadUnsafeSet[string]()
	for _, s := range b {
		right.Add(Normalize(s))
	}
	out := left.Intersect(right).ToSlice()
	sort.Strings(out)
	return out
}
