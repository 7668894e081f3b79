package ingest

import (
	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/skills"
)

// Category is one entry of the fixed job taxonomy.
type Category struct {
	Name  string
	Terms []string
}

// Taxonomy is ordered; earlier categories win ties.
var Taxonomy = []Category{
	{Name: "engineering", Terms: []string{"engineer", "engineering", "developer", "software", "backend", "frontend", "full stack", "fullstack", "devops", "sre", "programmer", "react", "golang", "java", "python", "kubernetes", "mobile", "ios", "android"}},
	{Name: "data", Terms: []string{"data", "analyst", "analytics", "machine learning", "ml", "scientist", "bi", "sql", "etl", "statistics"}},
	{Name: "design", Terms: []string{"designer", "design", "ux", "ui", "figma", "illustrator", "visual", "graphic"}},
	{Name: "product", Terms: []string{"product manager", "product owner", "product", "roadmap"}},
	{Name: "marketing", Terms: []string{"marketing", "seo", "content", "growth", "brand", "social media", "copywriter", "campaign"}},
	{Name: "sales", Terms: []string{"sales", "account executive", "business development", "bdr", "sdr", "account manager", "partnerships"}},
	{Name: "operations", Terms: []string{"operations", "logistics", "supply chain", "project manager", "office manager", "coordinator"}},
	{Name: "support", Terms: []string{"support", "customer success", "helpdesk", "help desk", "customer service", "technical support"}},
	{Name: "finance", Terms: []string{"finance", "accountant", "accounting", "controller", "financial", "bookkeeper", "audit", "tax"}},
	{Name: "hr", Terms: []string{"recruiter", "recruiting", "talent acquisition", "hr", "human resources", "people partner"}},
}

// Title hits count three times as much as description hits.
const (
	titleWeight       = 3
	descriptionWeight = 1
)

// Categorize assigns the taxonomy category with the highest term score.
// A posting that hits nothing is "other".
func Categorize(title, description string) string {
	titleTokens := skills.Tokenize(title)
	descTokens := skills.Tokenize(description)

	best, bestScore := db.CategoryOther, 0
	for _, cat := range Taxonomy {
		score := 0
		for _, term := range cat.Terms {
			if skills.ContainsPhrase(titleTokens, term) {
				score += titleWeight
			}
			if skills.ContainsPhrase(descTokens, term) {
				score += descriptionWeight
			}
		}
		if score > bestScore {
			best, bestScore = cat.Name, score
		}
	}
	return best
}

// IsKnownCategory reports whether name is part of the taxonomy.
func IsKnownCategory(name string) bool {
	if name == db.CategoryOther {
		return true
	}
	for _, cat := range Taxonomy {
		if cat.Name == name {
			return true
		}
	}
	return false
}
