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

package docker

import (
	"testing"

	"github.com/chronotools/tally/testutil"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		description string
		image       string
		shouldErr   bool
		expected    ImageReference
	}{
		{
			description: "port and tag",
			image:       "localhost:5000/tally:v1",
			expected: ImageReference{
				BaseName:       "localhost:5000/tally",
				Domain:         "localhost:5000",
				Path:           "tally",
				Tag:            "v1",
				FullyQualified: true,
			},
		},
		{
			description: "no tag",
			image:       "gcr.io/my-proj/tally",
			expected: ImageReference{
				BaseName:       "gcr.io/my-proj/tally",
				Domain:         "gcr.io",
				Path:           "my-proj/tally",
				FullyQualified: false,
			},
		},
		{
			description: "latest is not pinned",
			image:       "gcr.io/my-proj/tally:latest",
			expected: ImageReference{
				BaseName:       "gcr.io/my-proj/tally",
				Domain:         "gcr.io",
				Path:           "my-proj/tally",
				Tag:            "latest",
				FullyQualified: false,
			},
		},
		{
			description: "digest is pinned",
			image:       "gcr.io/my-proj/tally@sha256:e462971e4da4a7f4831c06db6a058e5e4c4dacb1e4e34a00f02bd4ca9a417e17",
			expected: ImageReference{
				BaseName:       "gcr.io/my-proj/tally",
				Domain:         "gcr.io",
				Path:           "my-proj/tally",
				Digest:         "sha256:e462971e4da4a7f4831c06db6a058e5e4c4dacb1e4e34a00f02bd4ca9a417e17",
				FullyQualified: true,
			},
		},
		{
			description: "invalid reference",
			image:       "!!invalid!!",
			shouldErr:   true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			ref, err := ParseReference(test.image)

			t.CheckError(test.shouldErr, err)
			if !test.shouldErr {
				t.CheckDeepEqual(test.expected, *ref)
			}
		})
	}
}

func TestSubstituteDefaultRepo(t *testing.T) {
	tests := []struct {
		description string
		image       string
		defaultRepo string
		expected    string
	}{
		{
			description: "no default repo",
			image:       "tally",
			defaultRepo: "",
			expected:    "tally",
		},
		{
			description: "unqualified name gets prefixed",
			image:       "tally",
			defaultRepo: "gcr.io/my-proj",
			expected:    "gcr.io/my-proj/tally",
		},
		{
			description: "library prefix is dropped",
			image:       "python:3.12-slim",
			defaultRepo: "gcr.io/my-proj",
			expected:    "gcr.io/my-proj/python:3.12-slim",
		},
		{
			description: "registry qualified names are left alone",
			image:       "gcr.io/other/tally:v1",
			defaultRepo: "gcr.io/my-proj",
			expected:    "gcr.io/other/tally:v1",
		},
		{
			description: "explicit docker.io is left alone",
			image:       "docker.io/library/python:3.12",
			defaultRepo: "gcr.io/my-proj",
			expected:    "docker.io/library/python:3.12",
		},
		{
			description: "digest is preserved",
			image:       "tally@sha256:e462971e4da4a7f4831c06db6a058e5e4c4dacb1e4e34a00f02bd4ca9a417e17",
			defaultRepo: "gcr.io/my-proj",
			expected:    "gcr.io/my-proj/tally@sha256:e462971e4da4a7f4831c06db6a058e5e4c4dacb1e4e34a00f02bd4ca9a417e17",
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			prefixed, err := SubstituteDefaultRepo(test.image, test.defaultRepo)

			t.CheckNoError(err)
			t.CheckDeepEqual(test.expected, prefixed)
		})
	}
}
