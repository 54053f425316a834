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

package recipe

import (
	"strings"
	"testing"

	"github.com/chronotools/tally/testutil"
)

func TestDependencies(t *testing.T) {
	tests := []struct {
		description string
		content     string
		files       []string
		shouldErr   bool
		expected    []string
	}{
		{
			description: "single file",
			content:     "FROM alpine:3.20\nCOPY requirements.txt .\n",
			files:       []string{"requirements.txt", "ignored.py"},
			expected:    []string{"requirements.txt"},
		},
		{
			description: "directory is walked to its files",
			content:     "FROM alpine:3.20\nCOPY src /app/src\n",
			files:       []string{"src/main.py", "src/pkg/util.py", "other.txt"},
			expected:    []string{"src/main.py", "src/pkg/util.py"},
		},
		{
			description: "copy dot stages the whole workspace",
			content:     "FROM alpine:3.20\nCOPY . .\n",
			files:       []string{"a.py", "b/c.py"},
			expected:    []string{"a.py", "b/c.py"},
		},
		{
			description: "glob pattern",
			content:     "FROM alpine:3.20\nCOPY *.txt /data/\n",
			files:       []string{"a.txt", "b.txt", "c.py"},
			expected:    []string{"a.txt", "b.txt"},
		},
		{
			description: "duplicate sources are deduplicated",
			content:     "FROM alpine:3.20\nCOPY a.txt .\nCOPY a.txt b.txt /data/\n",
			files:       []string{"a.txt", "b.txt"},
			expected:    []string{"a.txt", "b.txt"},
		},
		{
			description: "pattern matching nothing fails",
			content:     "FROM alpine:3.20\nCOPY missing.txt .\n",
			files:       []string{"present.txt"},
			shouldErr:   true,
		},
		{
			description: "no copy steps stage nothing",
			content:     "FROM alpine:3.20\nRUN true\n",
			files:       []string{"unused.txt"},
			expected:    nil,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			tmpDir := t.NewTempDir().Touch(test.files...)

			r, err := ParseReader(strings.NewReader(test.content))
			t.RequireNoError(err)

			deps, err := r.Dependencies(tmpDir.Root())

			t.CheckErrorAndDeepEqual(test.shouldErr, err, test.expected, deps)
		})
	}
}
