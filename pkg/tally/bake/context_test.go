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

package bake

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"sort"
	"testing"

	"github.com/chronotools/tally/pkg/tally/recipe"
	"github.com/chronotools/tally/testutil"
)

func TestDependencies(t *testing.T) {
	tests := []struct {
		description string
		recipe      string
		files       map[string]string
		expected    []string
	}{
		{
			description: "only copied files are staged",
			recipe:      "FROM alpine:3.20\nCOPY requirements.txt .\n",
			files: map[string]string{
				"requirements.txt": "flask\n",
				"unrelated.md":     "readme\n",
			},
			expected: []string{"Dockerfile", "requirements.txt"},
		},
		{
			description: "bakeignore filters the context",
			recipe:      "FROM alpine:3.20\nCOPY . .\n",
			files: map[string]string{
				"main.py":        "",
				"secret.env":     "",
				"logs/app.log":   "",
				".bakeignore":    "secret.env\nlogs\n.bakeignore\n",
				".dockerignore":  ".dockerignore\nmain.py\n",
				"data/input.csv": "",
			},
			expected: []string{".dockerignore", "Dockerfile", "data/input.csv", "main.py"},
		},
		{
			description: "dockerignore applies when no bakeignore exists",
			recipe:      "FROM alpine:3.20\nCOPY . .\n",
			files: map[string]string{
				"main.py":       "",
				"secret.env":    "",
				".dockerignore": "secret.env\n.dockerignore\n",
			},
			expected: []string{"Dockerfile", "main.py"},
		},
		{
			description: "the recipe is staged even when ignored",
			recipe:      "FROM alpine:3.20\nCOPY main.py .\n",
			files: map[string]string{
				"main.py":     "",
				".bakeignore": "Dockerfile\n.bakeignore\n",
			},
			expected: []string{"Dockerfile", "main.py"},
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			tmpDir := t.NewTempDir().Write("Dockerfile", test.recipe)
			for name, content := range test.files {
				tmpDir.Write(name, content)
			}

			a := testArtifact(tmpDir.Root())
			r, err := recipe.Parse(tmpDir.Path("Dockerfile"))
			t.RequireNoError(err)

			deps, err := Dependencies(a, r)

			t.CheckErrorAndDeepEqual(false, err, test.expected, deps)
		})
	}
}

func TestCreateTarContext(t *testing.T) {
	testutil.Run(t, "the archive holds exactly the staged files", func(t *testutil.T) {
		tmpDir := t.NewTempDir().
			Write("Dockerfile", "FROM alpine:3.20\nCOPY src /app/src\n").
			Write("src/main.py", "print('hi')\n").
			Write("src/pkg/util.py", "x = 1\n").
			Write("unrelated.md", "readme\n")

		a := testArtifact(tmpDir.Root())
		r, err := recipe.Parse(tmpDir.Path("Dockerfile"))
		t.RequireNoError(err)

		var buf bytes.Buffer
		err = CreateTarContext(context.Background(), &buf, a, r)
		t.RequireNoError(err)

		var entries []string
		tr := tar.NewReader(&buf)
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				break
			}
			t.RequireNoError(err)
			if hdr.Typeflag == tar.TypeReg {
				entries = append(entries, hdr.Name)
			}
		}
		sort.Strings(entries)

		t.CheckDeepEqual([]string{"Dockerfile", "src/main.py", "src/pkg/util.py"}, entries)
	})
}
