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

package timespan

import (
	"fmt"
	"time"

	"4d63.com/tz"
)

const (
	layoutDate     = "2006-01-02"
	layoutTime     = "15:04"
	layoutDateTime = "2006-01-02 15:04"
)

// For testing
var current = time.Now

// Span is an inclusive time range. Both bounds belong to the audited
// period.
type Span struct {
	From time.Time
	To   time.Time
}

// Duration returns the total length of the span.
func (s Span) Duration() time.Duration {
	return s.To.Sub(s.From)
}

func (s Span) String() string {
	return fmt.Sprintf("%s - %s", s.From.Format(layoutDateTime), s.To.Format(layoutDateTime))
}

// Days splits the span into per-day sub-spans, clipped to the span's
// bounds.
func (s Span) Days() []Span {
	var days []Span

	from := s.From
	for !from.After(s.To) {
		to := endOfDay(from)
		if to.After(s.To) {
			to = s.To
		}
		days = append(days, Span{From: from, To: to})
		from = startOfDay(from).AddDate(0, 0, 1)
	}
	return days
}

// Day returns the span covering the given date, midnight to 23:59:59.
// An empty date means today.
func Day(date string, loc *time.Location) (Span, error) {
	d, err := parseDate(date, loc)
	if err != nil {
		return Span{}, err
	}
	return Span{
		From: startOfDay(d),
		To:   endOfDay(d),
	}, nil
}

// Week returns the span covering seven days starting at the given date.
// An empty date means today.
func Week(start string, loc *time.Location) (Span, error) {
	d, err := parseDate(start, loc)
	if err != nil {
		return Span{}, err
	}
	return Span{
		From: startOfDay(d),
		To:   endOfDay(d.AddDate(0, 0, 6)),
	}, nil
}

// Range returns the span between two date and time bounds. An empty
// from date means today, an empty to date reuses the from date, and
// empty times default to 00:00 and 23:59.
func Range(fromDate, fromTime, toDate, toTime string, loc *time.Location) (Span, error) {
	if fromTime == "" {
		fromTime = "00:00"
	}
	if toTime == "" {
		toTime = "23:59"
	}

	from, err := parseDateTime(fromDate, fromTime, loc)
	if err != nil {
		return Span{}, err
	}
	if toDate == "" {
		toDate = from.Format(layoutDate)
	}
	to, err := parseDateTime(toDate, toTime, loc)
	if err != nil {
		return Span{}, err
	}

	if to.Before(from) {
		return Span{}, fmt.Errorf("range ends before it starts: %s", Span{From: from, To: to})
	}
	return Span{From: from, To: to}, nil
}

// Location resolves an IANA timezone name against the embedded zone
// database, so lookups work on hosts without zoneinfo. An empty name
// selects the system timezone.
func Location(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := tz.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("resolving timezone %q: %w", name, err)
	}
	return loc, nil
}

func parseDate(date string, loc *time.Location) (time.Time, error) {
	if date == "" {
		return current().In(loc), nil
	}
	d, err := time.ParseInLocation(layoutDate, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
	}
	return d, nil
}

func parseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := parseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(layoutTime, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected HH:MM: %w", clock, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
