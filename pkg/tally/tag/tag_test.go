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
	"errors"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/chronotools/tally/testutil"
)

func TestFingerprintTagger(t *testing.T) {
	tests := []struct {
		description string
		digest      digest.Digest
		err         error
		shouldErr   bool
		expected    string
	}{
		{
			description: "tag is the truncated digest",
			digest:      digest.Digest("sha256:e462971e4da4a7f4831c06db6a058e5e4c4dacb1e4e34a00f02bd4ca9a417e17"),
			expected:    "e462971e4da4",
		},
		{
			description: "fingerprint failure",
			err:         errors.New("BUG"),
			shouldErr:   true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			tagger := NewFingerprintTagger(func(context.Context, Image) (digest.Digest, error) {
				return test.digest, test.err
			})

			tag, err := tagger.GenerateTag(context.Background(), Image{Name: "tally"})

			t.CheckErrorAndDeepEqual(test.shouldErr, err, test.expected, tag)
		})
	}
}

func TestFingerprintTaggerStable(t *testing.T) {
	testutil.Run(t, "same digest gives same tag", func(t *testutil.T) {
		tagger := NewFingerprintTagger(func(context.Context, Image) (digest.Digest, error) {
			return digest.Digest("sha256:e462971e4da4a7f4831c06db6a058e5e4c4dacb1e4e34a00f02bd4ca9a417e17"), nil
		})

		tag1, err := tagger.GenerateTag(context.Background(), Image{Name: "tally"})
		t.CheckNoError(err)
		tag2, err := tagger.GenerateTag(context.Background(), Image{Name: "tally"})
		t.CheckNoError(err)

		t.CheckDeepEqual(tag1, tag2)
	})
}

func TestDateTimeTagger(t *testing.T) {
	aLocalTimeStamp := time.Date(2026, 8, 28, 13, 30, 0, 0, time.UTC)

	tests := []struct {
		description string
		format      string
		timezone    string
		shouldErr   bool
		expected    string
	}{
		{
			description: "custom format",
			format:      "2006-01-02",
			timezone:    "UTC",
			expected:    "2026-08-28",
		},
		{
			description: "default format",
			timezone:    "UTC",
			expected:    "2026-08-28_13-30-00_UTC",
		},
		{
			description: "bad timezone",
			timezone:    "Mars/Olympus",
			shouldErr:   true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			t.Override(&current, func() time.Time { return aLocalTimeStamp })

			tagger := NewDateTimeTagger(test.format, test.timezone)
			tag, err := tagger.GenerateTag(context.Background(), Image{Name: "tally"})

			t.CheckErrorAndDeepEqual(test.shouldErr, err, test.expected, tag)
		})
	}
}

func TestEnvTemplateTagger(t *testing.T) {
	tests := []struct {
		description string
		template    string
		env         map[string]string
		shouldErr   bool
		expected    string
	}{
		{
			description: "env variable",
			template:    "{{.VERSION}}",
			env:         map[string]string{"VERSION": "v1"},
			expected:    "v1",
		},
		{
			description: "image name and env",
			template:    "{{.IMAGE_NAME}}-{{.CHANNEL}}",
			env:         map[string]string{"CHANNEL": "stable"},
			expected:    "tally-stable",
		},
		{
			description: "missing variable",
			template:    "{{.MISSING_VALUE}}",
			shouldErr:   true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			t.SetEnvs(test.env)

			tagger, err := NewEnvTemplateTagger(test.template)
			t.RequireNoError(err)

			tag, err := tagger.GenerateTag(context.Background(), Image{Name: "tally"})

			t.CheckErrorAndDeepEqual(test.shouldErr, err, test.expected, tag)
		})
	}
}

func TestGitCommitTaggerFallback(t *testing.T) {
	testutil.Run(t, "outside a repository the timestamp policy applies", func(t *testutil.T) {
		aLocalTimeStamp := time.Date(2026, 8, 28, 13, 30, 0, 0, time.UTC)
		t.Override(&current, func() time.Time { return aLocalTimeStamp })

		tmpDir := t.NewTempDir()

		tagger := NewGitCommitTagger()
		tag, err := tagger.GenerateTag(context.Background(), Image{Name: "tally", Workspace: tmpDir.Root()})

		t.CheckNoError(err)
		t.CheckMatches(`^\d{4}-\d{2}-\d{2}_`, tag)
	})
}
