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

package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/chronotools/tally/pkg/tally/config"
	"github.com/chronotools/tally/pkg/tally/output/log"
	"github.com/chronotools/tally/pkg/tally/timespan"
	"github.com/chronotools/tally/pkg/tally/version"
)

const maxRetries = 4

// Event is one calendar entry within the audited span.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Duration returns the length of the event.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Client reads events from the Google Calendar API.
type Client struct {
	service    *calendar.Service
	calendarID string
}

// NewClient returns a calendar client for the given merged config,
// authorized with the cached user token.
func NewClient(ctx context.Context, cfg *config.CalendarConfig) (*Client, error) {
	ts, err := tokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	service, err := calendar.NewService(ctx, option.WithTokenSource(ts), option.WithUserAgent(version.UserAgent()))
	if err != nil {
		return nil, fmt.Errorf("getting calendar client: %w", err)
	}
	return &Client{
		service:    service,
		calendarID: cfg.Calendar,
	}, nil
}

// NewClientForService wires an existing calendar service. Used by tests
// to target a fake API endpoint.
func NewClientForService(service *calendar.Service, calendarID string) *Client {
	return &Client{
		service:    service,
		calendarID: calendarID,
	}
}

// ListEvents returns the events within the span, expanded to single
// instances and ordered by start time.
func (c *Client) ListEvents(ctx context.Context, span timespan.Span) ([]Event, error) {
	var events []Event

	pageToken := ""
	for {
		result, err := c.listPage(ctx, span, pageToken)
		if err != nil {
			return nil, fmt.Errorf("listing events of calendar %q: %w", c.calendarID, err)
		}

		for _, item := range result.Items {
			event, err := toEvent(item, span.From.Location())
			if err != nil {
				return nil, err
			}
			log.Entry(ctx).Debugf("%s-%s %s", event.Start.Format("15:04"), event.End.Format("15:04"), event.Summary)
			events = append(events, event)
		}

		if result.NextPageToken == "" {
			return events, nil
		}
		pageToken = result.NextPageToken
	}
}

func (c *Client) listPage(ctx context.Context, span timespan.Span, pageToken string) (*calendar.Events, error) {
	call := c.service.Events.List(c.calendarID).
		TimeMin(span.From.Format(time.RFC3339)).
		TimeMax(span.To.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Fields("items(start,end,summary,description)", "nextPageToken").
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	var result *calendar.Events
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries)
	err := backoff.Retry(func() error {
		var err error
		result, err = call.Do()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
	return result, err
}

// retryable reports whether the API call is worth repeating, rate
// limits and server side errors.
func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return false
}

func toEvent(item *calendar.Event, loc *time.Location) (Event, error) {
	start, err := parseEventTime(item.Start, loc)
	if err != nil {
		return Event{}, fmt.Errorf("event %q start: %w", item.Summary, err)
	}
	end, err := parseEventTime(item.End, loc)
	if err != nil {
		return Event{}, fmt.Errorf("event %q end: %w", item.Summary, err)
	}
	return Event{
		Summary:     item.Summary,
		Description: item.Description,
		Start:       start,
		End:         end,
	}, nil
}

// parseEventTime resolves a calendar timestamp. All day events carry
// only a date and resolve to midnight in the audited timezone.
func parseEventTime(t *calendar.EventDateTime, loc *time.Location) (time.Time, error) {
	switch {
	case t == nil:
		return time.Time{}, errors.New("missing timestamp")
	case t.DateTime != "":
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", t.DateTime, err)
		}
		return parsed.In(loc), nil
	default:
		parsed, err := time.ParseInLocation("2006-01-02", t.Date, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", t.Date, err)
		}
		return parsed, nil
	}
}
