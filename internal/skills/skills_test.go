package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "keeps tech suffixes", input: "C++, C# and Node.js.", expected: []string{"c++", "c#", "node.js"}},
		{name: "drops stop words", input: "Work with the team", expected: []string{"work", "team"}},
		{name: "lower-cases", input: "Senior React Developer", expected: []string{"senior", "react", "developer"}},
		{name: "empty", input: "  ", expected: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokenize(tt.input))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "go", Normalize("Golang"))
	assert.Equal(t, "kubernetes", Normalize("K8s"))
	assert.Equal(t, "react", Normalize(" ReactJS "))
	assert.Equal(t, "machine learning", Normalize("machine   learning"))
	assert.Equal(t, "elixir", Normalize("Elixir"))
}

func TestContainsPhrase(t *testing.T) {
	tokens := Tokenize("We build with Golang, ReactJS and Amazon Web Services")

	assert.True(t, ContainsPhrase(tokens, "go"))
	assert.True(t, ContainsPhrase(tokens, "React"))
	assert.True(t, ContainsPhrase(tokens, "amazon web services"))
	assert.False(t, ContainsPhrase(tokens, "python"))
	assert.False(t, ContainsPhrase(tokens, ""))
}

func TestExtract(t *testing.T) {
	text := "Looking for a Python engineer with Django, PostgreSQL (postgres), Docker and k8s. Machine learning a plus."
	got := Extract(text)
	assert.Equal(t, []string{"django", "docker", "kubernetes", "machine learning", "postgresql", "python"}, got)
}

func TestOverlap(t *testing.T) {
	got := Overlap([]string{"Golang", "React", "SQL"}, []string{"go", "sql", "vue"})
	assert.Equal(t, []string{"go", "sql"}, got)
	assert.Empty(t, Overlap(nil, []string{"go"}))
}
