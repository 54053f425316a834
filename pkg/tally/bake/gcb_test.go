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
	"context"
	"testing"

	"google.golang.org/api/cloudbuild/v1"
	"google.golang.org/api/googleapi"

	"github.com/chronotools/tally/pkg/tally/constants"
	"github.com/chronotools/tally/pkg/tally/docker"
	"github.com/chronotools/tally/pkg/tally/recipe"
	"github.com/chronotools/tally/testutil"
)

func TestBuildSpec(t *testing.T) {
	testutil.Run(t, "one docker build step, image pushed by the service", func(t *testutil.T) {
		tmpDir := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n")

		a := testArtifact(tmpDir.Root())
		r, err := recipe.Parse(tmpDir.Path("Dockerfile"))
		t.RequireNoError(err)

		version := "3.0.0"
		a.BuildArgs = map[string]*string{"VERSION": &version}

		builder := NewGCBBuilder(GCBConfig{Timeout: "600s"}, Options{})
		spec, err := builder.buildSpec(a, r, "gcr.io/my-proj/tally:v1", "my-proj_cloudbuild", "source/abc.tar.gz")

		t.CheckNoError(err)
		t.CheckDeepEqual(1, len(spec.Steps))
		t.CheckDeepEqual(constants.DefaultCloudBuildDockerImage, spec.Steps[0].Name)
		t.CheckDeepEqual([]string{
			"build", "--tag", "gcr.io/my-proj/tally:v1", "--file", "Dockerfile",
			"--build-arg", "VERSION=3.0.0",
			".",
		}, spec.Steps[0].Args)
		t.CheckDeepEqual([]string{"gcr.io/my-proj/tally:v1"}, spec.Images)
		t.CheckDeepEqual("my-proj_cloudbuild", spec.LogsBucket)
		t.CheckDeepEqual("my-proj_cloudbuild", spec.Source.StorageSource.Bucket)
		t.CheckDeepEqual("source/abc.tar.gz", spec.Source.StorageSource.Object)
		t.CheckDeepEqual("600s", spec.Timeout)
	})
}

func TestGetBuildID(t *testing.T) {
	tests := []struct {
		description string
		op          *cloudbuild.Operation
		shouldErr   bool
		expected    string
	}{
		{
			description: "build id from metadata",
			op: &cloudbuild.Operation{
				Metadata: []byte(`{"build":{"id":"build-42"}}`),
			},
			expected: "build-42",
		},
		{
			description: "missing metadata",
			op:          &cloudbuild.Operation{},
			shouldErr:   true,
		},
		{
			description: "metadata without build",
			op: &cloudbuild.Operation{
				Metadata: []byte(`{}`),
			},
			shouldErr: true,
		},
		{
			description: "malformed metadata",
			op: &cloudbuild.Operation{
				Metadata: []byte(`not json`),
			},
			shouldErr: true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			id, err := getBuildID(test.op)

			t.CheckErrorAndDeepEqual(test.shouldErr, err, test.expected, id)
		})
	}
}

func TestPollBuildStatus(t *testing.T) {
	testutil.Run(t, "a finished build is returned", func(t *testutil.T) {
		builder := NewGCBBuilder(GCBConfig{}, Options{})

		cb, err := builder.pollBuildStatus(context.Background(), func(...googleapi.CallOption) (*cloudbuild.Build, error) {
			return &cloudbuild.Build{Status: StatusSuccess}, nil
		})

		t.CheckNoError(err)
		t.CheckDeepEqual(StatusSuccess, cb.Status)
	})

	testutil.Run(t, "non-retriable errors fail immediately", func(t *testutil.T) {
		builder := NewGCBBuilder(GCBConfig{}, Options{})

		calls := 0
		_, err := builder.pollBuildStatus(context.Background(), func(...googleapi.CallOption) (*cloudbuild.Build, error) {
			calls++
			return nil, &googleapi.Error{Code: 403}
		})

		t.CheckError(true, err)
		t.CheckDeepEqual(1, calls)
	})

	testutil.Run(t, "rate limiting is retried", func(t *testutil.T) {
		builder := NewGCBBuilder(GCBConfig{}, Options{})

		calls := 0
		cb, err := builder.pollBuildStatus(context.Background(), func(...googleapi.CallOption) (*cloudbuild.Build, error) {
			calls++
			if calls == 1 {
				return nil, &googleapi.Error{Code: 429}
			}
			return &cloudbuild.Build{Status: StatusWorking}, nil
		})

		t.CheckNoError(err)
		t.CheckDeepEqual(StatusWorking, cb.Status)
		t.CheckDeepEqual(2, calls)
	})
}

func TestGetDigest(t *testing.T) {
	testutil.Run(t, "digest from build results", func(t *testutil.T) {
		builder := NewGCBBuilder(GCBConfig{}, Options{})

		digest, err := builder.getDigest(&cloudbuild.Build{
			Results: &cloudbuild.Results{
				Images: []*cloudbuild.BuiltImage{{
					Name:   "gcr.io/my-proj/tally:v1",
					Digest: "sha256:built",
				}},
			},
		}, "gcr.io/my-proj/tally:v1")

		t.CheckNoError(err)
		t.CheckDeepEqual("sha256:built", digest)
	})

	testutil.Run(t, "missing results fall back to the registry", func(t *testutil.T) {
		t.Override(&docker.RemoteDigest, func(string, map[string]bool) (string, error) {
			return "sha256:remote", nil
		})

		builder := NewGCBBuilder(GCBConfig{}, Options{})

		digest, err := builder.getDigest(&cloudbuild.Build{}, "gcr.io/my-proj/tally:v1")

		t.CheckNoError(err)
		t.CheckDeepEqual("sha256:remote", digest)
	})
}

func TestGCBBuildValidatesRecipe(t *testing.T) {
	testutil.Run(t, "an invalid recipe never reaches the service", func(t *testutil.T) {
		tmpDir := t.NewTempDir().
			Write("Dockerfile", "FROM alpine:3.20\nEXPOSE 8080\n")

		builder := NewGCBBuilder(GCBConfig{ProjectID: "my-proj"}, Options{})
		_, err := builder.Build(context.Background(), nil, testArtifact(tmpDir.Root()), "gcr.io/my-proj/tally:v1")

		t.CheckErrorContains("unsupported directive", err)
	})
}
