package resumes

import (
	"github.com/jonathan/job-autopilot/internal/keywords"
	"github.com/jonathan/job-autopilot/internal/skills"
)

// localePlaces maps language codes to country and city names (diacritics
// folded) that imply a non-English application.
var localePlaces = map[string][]string{
	"de": {"germany", "deutschland", "austria", "osterreich", "berlin", "munich", "munchen", "hamburg",
		"frankfurt", "cologne", "koln", "stuttgart", "dusseldorf", "vienna", "wien"},
	"fr": {"france", "paris", "lyon", "marseille", "toulouse", "bordeaux", "lille", "nantes", "quebec", "montreal"},
	"es": {"spain", "espana", "madrid", "barcelona", "valencia", "sevilla", "seville", "mexico", "argentina",
		"buenos aires", "colombia", "bogota", "chile", "santiago"},
	"nl": {"netherlands", "nederland", "amsterdam", "rotterdam", "utrecht", "eindhoven", "the hague", "den haag"},
	"pt": {"portugal", "lisbon", "lisboa", "porto", "brazil", "brasil", "sao paulo", "rio de janeiro"},
	"it": {"italy", "italia", "milan", "milano", "rome", "roma", "turin", "torino", "bologna", "florence", "firenze"},
	"pl": {"poland", "polska", "warsaw", "warszawa", "krakow", "wroclaw", "gdansk", "poznan"},
}

// localeOrder fixes lookup order so a location naming two places resolves
// the same way every time.
var localeOrder = []string{"de", "fr", "es", "nl", "pt", "it", "pl"}

// LocaleFor returns the language code implied by a job location, or "" when
// the location does not point at a non-English locale.
func LocaleFor(location string) string {
	tokens := skills.Tokenize(keywords.Normalize(location))
	if len(tokens) == 0 {
		return ""
	}
	for _, lang := range localeOrder {
		for _, place := range localePlaces[lang] {
			if skills.ContainsPhrase(tokens, place) {
				return lang
			}
		}
	}
	return ""
}
