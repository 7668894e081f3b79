// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/job-autopilot/internal/keywords"
	"github.com/jonathan/job-autopilot/internal/maintenance"
	"github.com/jonathan/job-autopilot/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

var statusIcons = map[types.BatchStatus]string{
	types.BatchCompleted: "✅",
	types.BatchPartial:   "⚠",
	types.BatchSkipped:   "⏭",
	types.BatchFailed:    "❌",
}

// PrintBatchResult outputs a batch task's status, counters and first errors.
func (p *Printer) PrintBatchResult(res *types.BatchResult) {
	if res == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:   %s %s\n", statusIcons[res.Status], res.Status))
	if res.Reason != "" {
		sb.WriteString(fmt.Sprintf("Reason:   %s\n", res.Reason))
	}
	sb.WriteString(fmt.Sprintf("Duration: %s\n", (time.Duration(res.DurationMS) * time.Millisecond).String()))

	if len(res.Counts) > 0 {
		sb.WriteString("\nCounts:\n")
		keys := make([]string, 0, len(res.Counts))
		for k := range res.Counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %-24s %d\n", k, res.Counts[k]))
		}
	}

	if len(res.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("\nErrors (%d):\n", len(res.Errors)))
		count := min(len(res.Errors), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", res.Errors[i]))
		}
		if len(res.Errors) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(res.Errors)-maxItemsToShow))
		}
	}

	p.printBox("TASK "+strings.ToUpper(res.Task), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintKeywords outputs the aggregated scrape input.
func (p *Printer) PrintKeywords(res keywords.Result) {
	var sb strings.Builder
	if len(res.Keywords) == 0 {
		sb.WriteString("No keywords: no active user has set any\n")
	} else {
		sb.WriteString(fmt.Sprintf("Keywords (%d):\n", len(res.Keywords)))
		count := min(len(res.Keywords), maxItemsToShow*2)
		for i := 0; i < count; i++ {
			e := res.Keywords[i]
			sb.WriteString(fmt.Sprintf("  #%-2d %-20s %d users  [%s]\n", i+1, e.Keyword, e.Users, strings.Join(e.Locations, ", ")))
		}
		if len(res.Keywords) > count {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(res.Keywords)-count))
		}
	}
	if locs := res.Locations(); len(locs) > 0 {
		sb.WriteString("\nLocations:\n")
		sb.WriteString(fmt.Sprintf("  %s\n", strings.Join(locs, ", ")))
	}

	p.printBox("SCRAPE KEYWORDS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintHealth outputs the last run of each batch and any warnings.
func (p *Printer) PrintHealth(report *maintenance.HealthReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	if report.Healthy {
		sb.WriteString("✅ healthy\n")
	} else {
		sb.WriteString("❌ unhealthy\n")
	}
	sb.WriteString(fmt.Sprintf("Since:  %s\n", report.Since.UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Errors: %d (%d failed sources)\n", report.ErrorCount, report.SourceFailures))
	if l := report.SendLock; l != nil {
		state := "idle"
		if l.IsRunning {
			state = "running since " + l.StartedAt.UTC().Format(time.RFC3339)
		} else if l.CompletedAt != nil {
			state = "idle, last completed " + l.CompletedAt.UTC().Format(time.RFC3339)
		}
		sb.WriteString(fmt.Sprintf("Send lock: %s\n", state))
	}

	if len(report.LastRuns) > 0 {
		sb.WriteString("\nLast runs:\n")
		names := make([]string, 0, len(report.LastRuns))
		for k := range report.LastRuns {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, name := range names {
			at := "never"
			if t := report.LastRuns[name]; t != nil {
				at = t.UTC().Format(time.RFC3339)
			}
			sb.WriteString(fmt.Sprintf("  %-16s %s\n", name, at))
		}
	}

	for _, w := range report.Warnings {
		sb.WriteString(fmt.Sprintf("\n⚠ %s", w))
	}

	p.printBox("PIPELINE HEALTH", strings.TrimSuffix(sb.String(), "\n"))
}
