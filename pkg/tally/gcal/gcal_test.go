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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/chronotools/tally/pkg/tally/timespan"
	"github.com/chronotools/tally/testutil"
)

func TestListEvents(t *testing.T) {
	span := timespan.Span{
		From: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 14, 23, 59, 59, 0, time.UTC),
	}

	tests := []struct {
		description string
		responses   []calendar.Events
		statusCode  int
		expected    []Event
		shouldErr   bool
	}{
		{
			description: "single page",
			responses: []calendar.Events{
				{
					Items: []*calendar.Event{
						{
							Summary:     "Standup",
							Description: "[Tags:meetings]",
							Start:       &calendar.EventDateTime{DateTime: "2024-03-14T09:00:00Z"},
							End:         &calendar.EventDateTime{DateTime: "2024-03-14T09:15:00Z"},
						},
					},
				},
			},
			expected: []Event{
				{
					Summary:     "Standup",
					Description: "[Tags:meetings]",
					Start:       time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC),
					End:         time.Date(2024, 3, 14, 9, 15, 0, 0, time.UTC),
				},
			},
		},
		{
			description: "pagination is followed",
			responses: []calendar.Events{
				{
					Items: []*calendar.Event{
						{
							Summary: "Morning focus",
							Start:   &calendar.EventDateTime{DateTime: "2024-03-14T08:00:00Z"},
							End:     &calendar.EventDateTime{DateTime: "2024-03-14T10:00:00Z"},
						},
					},
					NextPageToken: "page-2",
				},
				{
					Items: []*calendar.Event{
						{
							Summary: "Afternoon focus",
							Start:   &calendar.EventDateTime{DateTime: "2024-03-14T13:00:00Z"},
							End:     &calendar.EventDateTime{DateTime: "2024-03-14T15:00:00Z"},
						},
					},
				},
			},
			expected: []Event{
				{
					Summary: "Morning focus",
					Start:   time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC),
					End:     time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC),
				},
				{
					Summary: "Afternoon focus",
					Start:   time.Date(2024, 3, 14, 13, 0, 0, 0, time.UTC),
					End:     time.Date(2024, 3, 14, 15, 0, 0, 0, time.UTC),
				},
			},
		},
		{
			description: "all day event resolves to midnight spans",
			responses: []calendar.Events{
				{
					Items: []*calendar.Event{
						{
							Summary: "Conference",
							Start:   &calendar.EventDateTime{Date: "2024-03-14"},
							End:     &calendar.EventDateTime{Date: "2024-03-15"},
						},
					},
				},
			},
			expected: []Event{
				{
					Summary: "Conference",
					Start:   time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
					End:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
				},
			},
		},
		{
			description: "offsets are converted to the audited timezone",
			responses: []calendar.Events{
				{
					Items: []*calendar.Event{
						{
							Summary: "Early call",
							Start:   &calendar.EventDateTime{DateTime: "2024-03-14T10:00:00+02:00"},
							End:     &calendar.EventDateTime{DateTime: "2024-03-14T11:00:00+02:00"},
						},
					},
				},
			},
			expected: []Event{
				{
					Summary: "Early call",
					Start:   time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC),
					End:     time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC),
				},
			},
		},
		{
			description: "no events",
			responses:   []calendar.Events{{}},
		},
		{
			description: "api failure",
			statusCode:  http.StatusForbidden,
			shouldErr:   true,
		},
		{
			description: "invalid timestamp",
			responses: []calendar.Events{
				{
					Items: []*calendar.Event{
						{
							Summary: "Broken",
							Start:   &calendar.EventDateTime{DateTime: "not-a-timestamp"},
							End:     &calendar.EventDateTime{DateTime: "2024-03-14T11:00:00Z"},
						},
					},
				},
			},
			shouldErr: true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			page := 0
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if test.statusCode != 0 {
					http.Error(w, "calendar is grumpy", test.statusCode)
					return
				}
				response := test.responses[page]
				page++
				b, err := json.Marshal(response)
				if err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				w.Write(b)
			}))
			defer ts.Close()

			service, err := calendar.NewService(context.Background(), option.WithEndpoint(ts.URL), option.WithoutAuthentication())
			t.RequireNoError(err)

			events, err := NewClientForService(service, "primary").ListEvents(context.Background(), span)

			t.CheckErrorAndDeepEqual(test.shouldErr, err, test.expected, events)
		})
	}
}

func TestListEventsQuery(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		span := timespan.Span{
			From: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 3, 14, 23, 59, 59, 0, time.UTC),
		}

		var query map[string]string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = map[string]string{
				"timeMin":      r.URL.Query().Get("timeMin"),
				"timeMax":      r.URL.Query().Get("timeMax"),
				"singleEvents": r.URL.Query().Get("singleEvents"),
				"orderBy":      r.URL.Query().Get("orderBy"),
				"fields":       r.URL.Query().Get("fields"),
			}
			w.Write([]byte("{}"))
		}))
		defer ts.Close()

		service, err := calendar.NewService(context.Background(), option.WithEndpoint(ts.URL), option.WithoutAuthentication())
		t.RequireNoError(err)

		_, err = NewClientForService(service, "primary").ListEvents(context.Background(), span)

		t.CheckNoError(err)
		t.CheckDeepEqual(map[string]string{
			"timeMin":      "2024-03-14T00:00:00Z",
			"timeMax":      "2024-03-14T23:59:59Z",
			"singleEvents": "true",
			"orderBy":      "startTime",
			"fields":       "items(start,end,summary,description),nextPageToken",
		}, query)
	})
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		description string
		err         error
		expected    bool
	}{
		{
			description: "rate limited",
			err:         &googleapi.Error{Code: http.StatusTooManyRequests},
			expected:    true,
		},
		{
			description: "server error",
			err:         &googleapi.Error{Code: http.StatusServiceUnavailable},
			expected:    true,
		},
		{
			description: "forbidden",
			err:         &googleapi.Error{Code: http.StatusForbidden},
			expected:    false,
		},
		{
			description: "plain error",
			err:         errors.New("BUG"),
			expected:    false,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			t.CheckDeepEqual(test.expected, retryable(test.err))
		})
	}
}

func TestEventDuration(t *testing.T) {
	event := Event{
		Start: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 14, 10, 30, 0, 0, time.UTC),
	}

	testutil.CheckDeepEqual(t, 90*time.Minute, event.Duration())
}
