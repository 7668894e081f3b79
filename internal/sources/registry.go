package sources

import (
	"fmt"
	"log"

	"github.com/jonathan/job-autopilot/internal/config"
	"github.com/jonathan/job-autopilot/internal/fetch"
)

// Source kinds accepted in configuration.
const (
	KindFeed  = "feed"
	KindBoard = "board"
)

// NewFromConfig builds adapters for every enabled source. renderer may be nil,
// in which case browser-backed boards fall back to plain HTTP.
func NewFromConfig(cfgs []config.SourceConfig, renderer fetch.Renderer) ([]Adapter, error) {
	var adapters []Adapter
	for _, sc := range cfgs {
		if !sc.IsEnabled() {
			log.Printf("[sources] %s disabled, skipping", sc.Name)
			continue
		}
		opts := fetch.DefaultOptions()
		opts.Headers = sc.Headers

		switch sc.Kind {
		case KindFeed, "":
			adapters = append(adapters, NewFeedAdapter(sc.Name, sc.URL, sc.QuotaLimited, sc.Fields, opts))
		case KindBoard:
			adapters = append(adapters, NewBoardAdapter(sc.Name, sc.URL, sc.QuotaLimited, sc.UseBrowser, sc.Fields, renderer, opts))
		default:
			return nil, fmt.Errorf("source %s: unknown kind %q", sc.Name, sc.Kind)
		}
	}
	return adapters, nil
}
