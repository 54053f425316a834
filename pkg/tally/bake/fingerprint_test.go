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
	"testing"

	"github.com/chronotools/tally/pkg/tally/recipe"
	"github.com/chronotools/tally/testutil"
)

func fingerprintOf(t *testutil.T, workspace string) string {
	a := testArtifact(workspace)
	r, err := recipe.Parse(a.Workspace + "/Dockerfile")
	t.RequireNoError(err)

	dgst, err := Fingerprint(a, r)
	t.RequireNoError(err)
	return dgst.String()
}

func TestFingerprintStable(t *testing.T) {
	testutil.Run(t, "identical inputs give identical fingerprints", func(t *testutil.T) {
		dir1 := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n").
			Write("main.py", "print('hi')\n")
		dir2 := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n").
			Write("main.py", "print('hi')\n")

		t.CheckDeepEqual(fingerprintOf(t, dir1.Root()), fingerprintOf(t, dir2.Root()))
	})

	testutil.Run(t, "recipe formatting does not matter", func(t *testutil.T) {
		dir1 := t.NewTempDir().
			Write("Dockerfile", "FROM alpine:3.20\nCOPY main.py /app/\nRUN true\n").
			Write("main.py", "print('hi')\n")
		dir2 := t.NewTempDir().
			Write("Dockerfile", "# comment\nFROM   alpine:3.20\n\nCOPY main.py   /app/\nRUN  true\n").
			Write("main.py", "print('hi')\n")

		t.CheckDeepEqual(fingerprintOf(t, dir1.Root()), fingerprintOf(t, dir2.Root()))
	})
}

func TestFingerprintChanges(t *testing.T) {
	write := func(t *testutil.T, recipeContent, mainContent string) string {
		dir := t.NewTempDir().
			Write("Dockerfile", recipeContent).
			Write("main.py", mainContent)
		return fingerprintOf(t, dir.Root())
	}

	testutil.Run(t, "changed file content changes the fingerprint", func(t *testutil.T) {
		base := write(t, "FROM alpine:3.20\nCOPY main.py /app/\n", "print('hi')\n")
		changed := write(t, "FROM alpine:3.20\nCOPY main.py /app/\n", "print('bye')\n")

		if base == changed {
			t.Errorf("expected different fingerprints, got %s twice", base)
		}
	})

	testutil.Run(t, "changed base image changes the fingerprint", func(t *testutil.T) {
		base := write(t, "FROM alpine:3.20\nCOPY main.py /app/\n", "print('hi')\n")
		changed := write(t, "FROM alpine:3.19\nCOPY main.py /app/\n", "print('hi')\n")

		if base == changed {
			t.Errorf("expected different fingerprints, got %s twice", base)
		}
	})

	testutil.Run(t, "changed steps change the fingerprint", func(t *testutil.T) {
		base := write(t, "FROM alpine:3.20\nCOPY main.py /app/\n", "print('hi')\n")
		changed := write(t, "FROM alpine:3.20\nCOPY main.py /app/\nRUN true\n", "print('hi')\n")

		if base == changed {
			t.Errorf("expected different fingerprints, got %s twice", base)
		}
	})
}
