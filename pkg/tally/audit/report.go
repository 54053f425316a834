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
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/chronotools/tally/pkg/tally/timespan"
)

const (
	headerCategory = "Event Type"
	headerDuration = "Duration"
	headerPercent  = "% of Total"
)

// Report is the audit result for one span.
type Report struct {
	Span         timespan.Span
	Rows         []Row
	Tracked      time.Duration
	Total        time.Duration
	FirstTagOnly bool
	Days         []DayReport
}

// Row is the tracked time of one category.
type Row struct {
	Category string
	Duration time.Duration
	Percent  float64
}

// DayReport is the breakdown for one day of a week audit.
type DayReport struct {
	Label  string
	Report *Report
}

// Write renders the report as an ASCII table, followed by the per-day
// breakdowns when present.
func (r *Report) Write(out io.Writer) {
	if len(r.Rows) == 0 {
		fmt.Fprintf(out, "No events found for %s\n", r.Span)
		return
	}

	r.writeTable(out)
	for _, day := range r.Days {
		fmt.Fprintf(out, "%s\n", day.Label)
		if len(day.Report.Rows) == 0 {
			fmt.Fprintf(out, "No events found for %s\n", day.Report.Span)
			continue
		}
		day.Report.writeTable(out)
	}
}

func (r *Report) writeTable(out io.Writer) {
	categoryWidth := len(headerCategory)
	for _, row := range r.Rows {
		if len(row.Category) > categoryWidth {
			categoryWidth = len(row.Category)
		}
	}

	border := "+" + strings.Repeat("-", categoryWidth+len(headerDuration)+len(headerPercent)+8) + "+"

	fmt.Fprintln(out, border)
	fmt.Fprintf(out, "| %s | %s | %s |\n",
		center(headerCategory, categoryWidth),
		center(headerDuration, len(headerDuration)),
		center(headerPercent, len(headerPercent)))
	fmt.Fprintln(out, border)
	for _, row := range r.Rows {
		fmt.Fprintf(out, "| %s | %s | %s |\n",
			center(row.Category, categoryWidth),
			center(formatDuration(row.Duration), len(headerDuration)),
			center(fmt.Sprintf("%.2f", row.Percent), len(headerPercent)))
	}
	fmt.Fprintln(out, border)

	if r.FirstTagOnly {
		fmt.Fprintf(out, "| %s | %s | %s |\n",
			center("Total", categoryWidth),
			center(formatDuration(r.Tracked), len(headerDuration)),
			center(fmt.Sprintf("%.2f", percent(r.Tracked, r.Total)), len(headerPercent)))
		fmt.Fprintln(out, border)
	}
}

// WriteJSON renders the report for scripting.
func (r *Report) WriteJSON(out io.Writer) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(toJSON(r, ""))
}

type reportJSON struct {
	Day            string       `json:"day,omitempty"`
	From           time.Time    `json:"from"`
	To             time.Time    `json:"to"`
	Categories     []rowJSON    `json:"categories"`
	TrackedSeconds int64        `json:"trackedSeconds"`
	Days           []reportJSON `json:"days,omitempty"`
}

type rowJSON struct {
	Category string  `json:"category"`
	Seconds  int64   `json:"seconds"`
	Duration string  `json:"duration"`
	Percent  float64 `json:"percent"`
}

func toJSON(r *Report, label string) reportJSON {
	out := reportJSON{
		Day:            label,
		From:           r.Span.From,
		To:             r.Span.To,
		Categories:     []rowJSON{},
		TrackedSeconds: int64(r.Tracked.Seconds()),
	}
	for _, row := range r.Rows {
		out.Categories = append(out.Categories, rowJSON{
			Category: row.Category,
			Seconds:  int64(row.Duration.Seconds()),
			Duration: formatDuration(row.Duration),
			Percent:  math.Round(row.Percent*100) / 100,
		})
	}
	for _, day := range r.Days {
		out.Days = append(out.Days, toJSON(day.Report, day.Label))
	}
	return out
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

func center(s string, width int) string {
	if pad := width - len(s); pad > 0 {
		left := pad / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
	}
	return s
}
