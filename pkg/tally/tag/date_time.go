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

package tag

import (
	"context"
	"fmt"
	"time"

	"4d63.com/tz"
)

const defaultDateTimeFormat = "2006-01-02_15-04-05.999_MST"

// for testing
var current = time.Now

// dateTimeTagger tags an image by the timestamp of the build.
type dateTimeTagger struct {
	Format   string
	TimeZone string
}

// NewDateTimeTagger creates a Tagger that tags by timestamp. An empty
// format uses the default, an empty timezone the local one.
func NewDateTimeTagger(format, timezone string) Tagger {
	return &dateTimeTagger{
		Format:   format,
		TimeZone: timezone,
	}
}

func (t *dateTimeTagger) GenerateTag(_ context.Context, _ Image) (string, error) {
	format := t.Format
	if format == "" {
		format = defaultDateTimeFormat
	}

	timezone := t.TimeZone
	if timezone == "" {
		timezone = "Local"
	}

	loc, err := tz.LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("bad timezone provided: %q, error: %w", timezone, err)
	}

	return current().In(loc).Format(format), nil
}
