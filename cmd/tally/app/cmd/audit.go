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

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chronotools/tally/pkg/tally/audit"
	"github.com/chronotools/tally/pkg/tally/config"
	"github.com/chronotools/tally/pkg/tally/constants"
	tallyerrors "github.com/chronotools/tally/pkg/tally/errors"
	"github.com/chronotools/tally/pkg/tally/gcal"
	"github.com/chronotools/tally/pkg/tally/timespan"
)

var auditFlags = struct {
	date         string
	week         string
	fromDate     string
	toDate       string
	timeFrom     string
	timeTo       string
	calendar     string
	timezone     string
	outputFormat string
	firstTagOnly bool
}{}

// NewCmdAudit describes the `tally audit` command.
func NewCmdAudit() *cobra.Command {
	return NewCmd("audit").
		WithDescription("Tally the tracked time of a calendar period").
		WithLongDescription("Audit lists the events of a calendar period and tallies their duration per category. Categories come from a [Tags:a,b] marker in the event description; the event title is the fallback.").
		WithExample("audit today", "audit --date today").
		WithExample("audit a week with per-day breakdown", "audit --week 2026-08-24").
		WithExample("audit an arbitrary range as JSON", "audit --from 2026-08-01 --to 2026-08-15 --output json").
		WithFlags(func(f *pflag.FlagSet) {
			f.StringVar(&auditFlags.date, "date", "", "Audit one day (YYYY-MM-DD, or 'today')")
			f.StringVar(&auditFlags.week, "week", "", "Audit the week starting at the given day (YYYY-MM-DD)")
			f.StringVar(&auditFlags.fromDate, "from", "", "Start day of the audited range (YYYY-MM-DD)")
			f.StringVar(&auditFlags.toDate, "to", "", "End day of the audited range (YYYY-MM-DD, defaults to the start day)")
			f.StringVar(&auditFlags.timeFrom, "time-from", "", "Start time within the range (HH:MM, defaults to 00:00)")
			f.StringVar(&auditFlags.timeTo, "time-to", "", "End time within the range (HH:MM, defaults to 23:59)")
			f.StringVar(&auditFlags.calendar, "calendar", "", "Calendar to audit (defaults to the configured calendar)")
			f.StringVar(&auditFlags.timezone, "timezone", "", "Timezone dates are interpreted in (defaults to the configured or local one)")
			f.StringVarP(&auditFlags.outputFormat, "output", "o", "table", "Output format: table or json")
			f.BoolVar(&auditFlags.firstTagOnly, "first-tag-only", false, "Count each event toward its first tag only")
		}).
		NoArgs(runAudit)
}

func runAudit(ctx context.Context, out io.Writer) error {
	cfg, err := config.GetConfigForCalendar(configFile, auditFlags.calendar)
	if err != nil {
		return tallyerrors.NewProblem(constants.Audit, 0, err)
	}

	timezone := auditFlags.timezone
	if timezone == "" {
		timezone = cfg.Timezone
	}
	loc, err := timespan.Location(timezone)
	if err != nil {
		return tallyerrors.NewProblem(constants.Audit, 0, err)
	}

	span, week, err := resolveSpan(loc)
	if err != nil {
		return tallyerrors.NewProblem(constants.Audit, 0, err)
	}

	client, err := gcal.NewClient(ctx, cfg)
	if err != nil {
		return tallyerrors.NewProblem(constants.Auth, 0, err)
	}

	opts, err := auditOptions()
	if err != nil {
		return tallyerrors.NewProblem(constants.Audit, 0, err)
	}

	var report *audit.Report
	if week {
		report, err = audit.WeekReport(ctx, client, span, opts)
	} else {
		report, err = audit.SpanReport(ctx, client, span, opts)
	}
	if err != nil {
		return tallyerrors.NewProblem(constants.Audit, 0, err)
	}

	if auditFlags.outputFormat == "json" {
		return report.WriteJSON(out)
	}
	report.Write(out)
	return nil
}

// resolveSpan maps the period flags to a span. Without period flags an
// interactive session prompts, anything else audits today.
func resolveSpan(loc *time.Location) (timespan.Span, bool, error) {
	switch {
	case auditFlags.week != "":
		span, err := timespan.Week(auditFlags.week, loc)
		return span, true, err

	case auditFlags.date != "":
		date := auditFlags.date
		if date == "today" {
			date = ""
		}
		span, err := timespan.Day(date, loc)
		return span, false, err

	case auditFlags.fromDate != "" || auditFlags.toDate != "":
		span, err := timespan.Range(auditFlags.fromDate, auditFlags.timeFrom, auditFlags.toDate, auditFlags.timeTo, loc)
		return span, false, err

	case interactive:
		span, week, err := timespan.Choose(loc)
		if err != nil {
			return span, week, err
		}
		if !auditFlags.firstTagOnly {
			firstTagOnly, err := timespan.ChooseFirstTagOnly()
			if err != nil {
				return span, week, err
			}
			auditFlags.firstTagOnly = firstTagOnly
		}
		return span, week, nil

	default:
		span, err := timespan.Day("", loc)
		return span, false, err
	}
}

func auditOptions() (audit.Options, error) {
	firstTagOnly := auditFlags.firstTagOnly
	if !firstTagOnly {
		configured, err := config.GetFirstTagOnly(configFile)
		if err != nil {
			return audit.Options{}, err
		}
		if configured != nil {
			firstTagOnly = *configured
		}
	}

	concurrency, err := config.GetConcurrency(configFile)
	if err != nil {
		return audit.Options{}, err
	}

	if auditFlags.outputFormat != "table" && auditFlags.outputFormat != "json" {
		return audit.Options{}, fmt.Errorf("unknown output format %q: expected table or json", auditFlags.outputFormat)
	}

	return audit.Options{
		FirstTagOnly: firstTagOnly,
		Concurrency:  concurrency,
	}, nil
}
