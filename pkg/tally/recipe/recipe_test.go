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

func TestParseReader(t *testing.T) {
	tests := []struct {
		description string
		content     string
		shouldErr   bool
		expected    *Recipe
	}{
		{
			description: "simple recipe",
			content: `FROM python:3.12-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install -r requirements.txt
COPY . .
`,
			expected: &Recipe{
				BaseImage: "python:3.12-slim",
				Workdir:   "/app",
				Steps: []Step{
					CopyStep{Srcs: []string{"requirements.txt"}, Dest: ".", DestIsDir: true},
					RunStep{Command: "pip install -r requirements.txt"},
					CopyStep{Srcs: []string{"."}, Dest: ".", DestIsDir: true},
				},
			},
		},
		{
			description: "env variables are recorded and expanded",
			content: `FROM alpine:3.20
ENV APP_HOME=/srv/app PORT=8080
WORKDIR $APP_HOME
RUN echo $PORT
`,
			expected: &Recipe{
				BaseImage: "alpine:3.20",
				Workdir:   "/srv/app",
				Steps: []Step{
					EnvStep{Key: "APP_HOME", Value: "/srv/app"},
					EnvStep{Key: "PORT", Value: "8080"},
					RunStep{Command: "echo $PORT"},
				},
			},
		},
		{
			description: "exec form RUN is joined into a shell command",
			content: `FROM alpine:3.20
RUN ["sh", "-c", "echo hello world"]
`,
			expected: &Recipe{
				BaseImage: "alpine:3.20",
				Steps: []Step{
					RunStep{Command: `sh -c 'echo hello world'`},
				},
			},
		},
		{
			description: "args are inert",
			content: `ARG VERSION=1
FROM alpine:3.20
RUN true
`,
			expected: &Recipe{
				BaseImage: "alpine:3.20",
				Steps: []Step{
					RunStep{Command: "true"},
				},
			},
		},
		{
			description: "empty recipe",
			content:     "\n# only comments\n",
			shouldErr:   true,
		},
		{
			description: "copy sources expand env references",
			content: `FROM alpine:3.20
ENV SRC_DIR=src
COPY $SRC_DIR/main.py /app/
`,
			expected: &Recipe{
				BaseImage: "alpine:3.20",
				Steps: []Step{
					EnvStep{Key: "SRC_DIR", Value: "src"},
					CopyStep{Srcs: []string{"src/main.py"}, Dest: "/app/", DestIsDir: true},
				},
			},
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			r, err := ParseReader(strings.NewReader(test.content))

			t.CheckError(test.shouldErr, err)
			if !test.shouldErr {
				t.CheckDeepEqual(test.expected.BaseImage, r.BaseImage)
				t.CheckDeepEqual(test.expected.Workdir, r.Workdir)
				t.CheckDeepEqual(test.expected.Steps, r.Steps)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		description string
		content     string
		shouldErr   bool
		errContains string
	}{
		{
			description: "valid recipe",
			content:     "FROM python:3.12-slim\nWORKDIR /app\nCOPY . .\nRUN true\n",
		},
		{
			description: "digest pinned base is valid",
			content:     "FROM gcr.io/my-proj/base@sha256:3c90c7722a11f8f1e3c38e2b5d684b1f83753eca3cfd48cfbdb46f370f08ba43\nRUN true\n",
		},
		{
			description: "scratch needs no pin",
			content:     "FROM scratch\nCOPY bin /bin/\n",
		},
		{
			description: "unpinned base image",
			content:     "FROM python\nRUN true\n",
			shouldErr:   true,
			errContains: "must be pinned",
		},
		{
			description: "latest counts as unpinned",
			content:     "FROM python:latest\nRUN true\n",
			shouldErr:   true,
			errContains: "must be pinned",
		},
		{
			description: "multiple FROM",
			content:     "FROM alpine:3.20\nFROM busybox:1.36\n",
			shouldErr:   true,
			errContains: "multiple FROM",
		},
		{
			description: "missing FROM",
			content:     "RUN true\n",
			shouldErr:   true,
			errContains: "missing FROM",
		},
		{
			description: "unsupported directive",
			content:     "FROM alpine:3.20\nEXPOSE 8080\n",
			shouldErr:   true,
			errContains: "unsupported directive EXPOSE (line 2)",
		},
		{
			description: "copy from another stage",
			content:     "FROM alpine:3.20\nCOPY --from=builder /out /out\n",
			shouldErr:   true,
			errContains: "--from is not supported",
		},
		{
			description: "relative WORKDIR",
			content:     "FROM alpine:3.20\nWORKDIR app\n",
			shouldErr:   true,
			errContains: "absolute",
		},
		{
			description: "multiple WORKDIR",
			content:     "FROM alpine:3.20\nWORKDIR /a\nWORKDIR /b\n",
			shouldErr:   true,
			errContains: "multiple WORKDIR",
		},
		{
			description: "copy without destination",
			content:     "FROM alpine:3.20\nCOPY src\n",
			shouldErr:   true,
			errContains: "COPY requires",
		},
		{
			description: "remote copy source",
			content:     "FROM alpine:3.20\nCOPY https://example.com/file.tar.gz /tmp/\n",
			shouldErr:   true,
			errContains: "remote source",
		},
		{
			description: "empty RUN",
			content:     "FROM alpine:3.20\nRUN []\n",
			shouldErr:   true,
			errContains: "RUN requires a command",
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			r, err := ParseReader(strings.NewReader(test.content))
			t.RequireNoError(err)

			err = r.Validate()

			t.CheckError(test.shouldErr, err)
			if test.shouldErr && test.errContains != "" {
				t.CheckErrorContains(test.errContains, err)
			}
		})
	}
}

func TestCanonicalStableAcrossFormatting(t *testing.T) {
	testutil.Run(t, "comments and spacing do not change the canonical form", func(t *testutil.T) {
		r1, err := ParseReader(strings.NewReader("FROM alpine:3.20\nWORKDIR /app\nCOPY . .\nRUN true\n"))
		t.RequireNoError(err)
		r2, err := ParseReader(strings.NewReader("# build\nFROM   alpine:3.20\n\nWORKDIR /app\nCOPY .   .\nRUN  true\n"))
		t.RequireNoError(err)

		t.CheckDeepEqual(r1.Canonical(), r2.Canonical())
	})
}

func TestManifestLookup(t *testing.T) {
	tests := []struct {
		description string
		content     string
		files       []string
		expected    string
		found       bool
	}{
		{
			description: "first copied file is the manifest",
			content:     "FROM alpine:3.20\nCOPY requirements.txt .\nCOPY . .\n",
			files:       []string{"requirements.txt", "main.py"},
			expected:    "requirements.txt",
			found:       true,
		},
		{
			description: "directory copies are skipped",
			content:     "FROM alpine:3.20\nCOPY src /app/src\n",
			files:       []string{"src/main.py"},
			found:       false,
		},
		{
			description: "no copy steps",
			content:     "FROM alpine:3.20\nRUN true\n",
			found:       false,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			tmpDir := t.NewTempDir().Write("Dockerfile", test.content)
			for _, f := range test.files {
				tmpDir.Touch(f)
			}

			r, err := Parse(tmpDir.Path("Dockerfile"))
			t.RequireNoError(err)

			manifest, found := r.Manifest()

			t.CheckDeepEqual(test.found, found)
			t.CheckDeepEqual(test.expected, manifest)
		})
	}
}
