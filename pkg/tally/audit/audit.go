/*
Copyright 2025 The Tally Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fatih/semgroup"

	"github.com/chronotools/tally/pkg/tally/gcal"
	"github.com/chronotools/tally/pkg/tally/timespan"
)

var tagsPattern = regexp.MustCompile(`\[Tags:(.*?)\]`)

// Lister abstracts the calendar client.
type Lister interface {
	ListEvents(ctx context.Context, span timespan.Span) ([]gcal.Event, error)
}

// Options configure a tally.
type Options struct {
	// FirstTagOnly counts each event toward its first tag only.
	FirstTagOnly bool

	// Denominator is the duration shares are computed against. Zero
	// means the span's own length.
	Denominator time.Duration

	// Concurrency bounds the parallel per-day queries of a week audit.
	Concurrency int
}

// ExtractCategories returns the categories an event counts toward. Tags
// come from a [Tags:a,b] marker in the description, the event summary
// is the fallback category.
func ExtractCategories(event gcal.Event, firstOnly bool) []string {
	match := tagsPattern.FindStringSubmatch(event.Description)
	if match == nil {
		return []string{event.Summary}
	}

	var categories []string
	for _, tag := range strings.Split(match[1], ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			categories = append(categories, tag)
		}
	}
	if len(categories) == 0 {
		return []string{event.Summary}
	}
	if firstOnly {
		return categories[:1]
	}
	return categories
}

// Tally sums tracked time per category. An event tagged N ways counts
// fully toward each of the N categories, so categories can add up to
// more than the elapsed time.
func Tally(events []gcal.Event, span timespan.Span, opts Options) *Report {
	durations := map[string]time.Duration{}
	for _, event := range events {
		for _, category := range ExtractCategories(event, opts.FirstTagOnly) {
			durations[category] += event.Duration()
		}
	}

	total := opts.Denominator
	if total == 0 {
		total = span.Duration()
	}

	var tracked time.Duration
	rows := make([]Row, 0, len(durations))
	for category, duration := range durations {
		tracked += duration
		rows = append(rows, Row{
			Category: category,
			Duration: duration,
			Percent:  percent(duration, total),
		})
	}
	// longest first, ties broken by name for a stable output
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Duration != rows[j].Duration {
			return rows[i].Duration > rows[j].Duration
		}
		return rows[i].Category < rows[j].Category
	})

	return &Report{
		Span:         span,
		Rows:         rows,
		Tracked:      tracked,
		Total:        total,
		FirstTagOnly: opts.FirstTagOnly,
	}
}

// SpanReport queries one span and tallies it.
func SpanReport(ctx context.Context, lister Lister, span timespan.Span, opts Options) (*Report, error) {
	events, err := lister.ListEvents(ctx, span)
	if err != nil {
		return nil, err
	}
	return Tally(events, span, opts), nil
}

// WeekReport tallies a whole week plus a breakdown for each day. Day
// shares are computed against 24h, not against the tracked time.
func WeekReport(ctx context.Context, lister Lister, span timespan.Span, opts Options) (*Report, error) {
	days := span.Days()
	grouped, err := eventsByDay(ctx, lister, days, opts.Concurrency)
	if err != nil {
		return nil, err
	}

	var all []gcal.Event
	for _, events := range grouped {
		all = append(all, events...)
	}

	report := Tally(all, span, opts)
	for i, day := range days {
		dayOpts := opts
		dayOpts.Denominator = 24 * time.Hour
		report.Days = append(report.Days, DayReport{
			Label:  fmt.Sprintf("%s %s", day.From.Weekday(), day.From.Format("2006-01-02")),
			Report: Tally(grouped[i], day, dayOpts),
		})
	}
	return report, nil
}

// eventsByDay queries each day concurrently. An event crossing midnight
// belongs to the day it starts in.
func eventsByDay(ctx context.Context, lister Lister, days []timespan.Span, concurrency int) ([][]gcal.Event, error) {
	maxWorkers := int64(concurrency)
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	grouped := make([][]gcal.Event, len(days))
	g := semgroup.NewGroup(ctx, maxWorkers)
	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			events, err := lister.ListEvents(ctx, day)
			if err != nil {
				return err
			}
			var owned []gcal.Event
			for _, event := range events {
				if !event.Start.Before(day.From) && !event.Start.After(day.To) {
					owned = append(owned, event)
				}
			}
			grouped[i] = owned
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return grouped, nil
}

func percent(d, total time.Duration) float64 {
	if total == 0 {
		return 0
	}
	return float64(d) / float64(total) * 100
}
