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
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
)

// For testing
var askOne = survey.AskOne

const (
	optionDay   = "day"
	optionWeek  = "week"
	optionRange = "datetime range"
)

// Choose interactively selects the period to audit. The second return
// value reports whether a week was chosen.
func Choose(loc *time.Location) (Span, bool, error) {
	var period string
	prompt := &survey.Select{
		Message: "Select the period to audit",
		Options: []string{optionDay, optionWeek, optionRange},
	}
	if err := askOne(prompt, &period); err != nil {
		return Span{}, false, err
	}

	switch period {
	case optionDay:
		date, err := askString("Enter the day (YYYY-MM-DD). Press Enter for today:")
		if err != nil {
			return Span{}, false, err
		}
		span, err := Day(date, loc)
		return span, false, err

	case optionWeek:
		date, err := askString("Enter the start day (YYYY-MM-DD) of the week. Press Enter for today:")
		if err != nil {
			return Span{}, false, err
		}
		span, err := Week(date, loc)
		return span, true, err

	default:
		span, err := chooseRange(loc)
		return span, false, err
	}
}

// ChooseFirstTagOnly interactively asks whether events should count
// toward their first tag only.
func ChooseFirstTagOnly() (bool, error) {
	var firstTagOnly bool
	prompt := &survey.Confirm{
		Message: "Count each event toward its first tag only?",
	}
	if err := askOne(prompt, &firstTagOnly); err != nil {
		return false, err
	}
	return firstTagOnly, nil
}

func chooseRange(loc *time.Location) (Span, error) {
	fromDate, err := askString("Enter the start day (YYYY-MM-DD). Press Enter for today:")
	if err != nil {
		return Span{}, err
	}
	fromTime, err := askString("Enter the start time (HH:MM). Press Enter for 00:00:")
	if err != nil {
		return Span{}, err
	}
	toDate, err := askString("Enter the end date (YYYY-MM-DD). Press Enter for the start day:")
	if err != nil {
		return Span{}, err
	}
	toTime, err := askString("Enter the end time (HH:MM). Press Enter for 23:59:")
	if err != nil {
		return Span{}, err
	}
	return Range(fromDate, fromTime, toDate, toTime, loc)
}

func askString(message string) (string, error) {
	var response string
	if err := askOne(&survey.Input{Message: message}, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}
