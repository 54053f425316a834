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
	"errors"
	"io"
	"testing"

	"github.com/docker/docker/api/types/registry"

	"github.com/chronotools/tally/pkg/tally/constants"
	"github.com/chronotools/tally/pkg/tally/docker"
	tallyerrors "github.com/chronotools/tally/pkg/tally/errors"
	"github.com/chronotools/tally/testutil"
)

const testRecipe = `FROM python:3.12-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install -r requirements.txt
COPY . .
`

type fakeAuthHelper struct{}

func (f fakeAuthHelper) GetAuthConfig(context.Context, string) (registry.AuthConfig, error) {
	return registry.AuthConfig{}, nil
}

func (f fakeAuthHelper) GetAllAuthConfigs(context.Context) (map[string]registry.AuthConfig, error) {
	return nil, nil
}

func testArtifact(workspace string) *Artifact {
	return &Artifact{
		Workspace:  workspace,
		RecipePath: "Dockerfile",
		ImageName:  "gcr.io/my-proj/tally",
	}
}

func TestLocalBuild(t *testing.T) {
	testutil.Run(t, "build succeeds and stamps the fingerprint", func(t *testutil.T) {
		t.Override(&docker.DefaultAuthHelper, fakeAuthHelper{})
		t.Override(&docker.RemoteDigest, func(string, map[string]bool) (string, error) {
			return "sha256:base", nil
		})

		tmpDir := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n").
			Write("main.py", "print('hi')\n")

		api := &testutil.FakeAPIClient{}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{})

		res, err := builder.Build(context.Background(), io.Discard, testArtifact(tmpDir.Root()), "gcr.io/my-proj/tally:v1")

		t.CheckNoError(err)
		t.CheckDeepEqual("sha256:1", res)
		t.CheckDeepEqual(1, len(api.Built))
		t.CheckDeepEqual("Dockerfile", api.Built[0].Dockerfile)
		if api.Built[0].Labels[constants.FingerprintLabel] == "" {
			t.Errorf("built image carries no fingerprint label")
		}
	})
}

func TestLocalBuildCacheHit(t *testing.T) {
	testutil.Run(t, "unchanged inputs skip the second bake", func(t *testutil.T) {
		t.Override(&docker.DefaultAuthHelper, fakeAuthHelper{})
		t.Override(&docker.RemoteDigest, func(string, map[string]bool) (string, error) {
			return "sha256:base", nil
		})

		tmpDir := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n").
			Write("main.py", "print('hi')\n")

		api := &testutil.FakeAPIClient{}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{})

		a := testArtifact(tmpDir.Root())

		res1, err := builder.Build(context.Background(), io.Discard, a, "gcr.io/my-proj/tally:v1")
		t.CheckNoError(err)

		res2, err := builder.Build(context.Background(), io.Discard, a, "gcr.io/my-proj/tally:v2")
		t.CheckNoError(err)

		t.CheckDeepEqual(res1, res2)
		t.CheckDeepEqual(1, len(api.Built))
	})

	testutil.Run(t, "changed inputs bake again", func(t *testutil.T) {
		t.Override(&docker.DefaultAuthHelper, fakeAuthHelper{})
		t.Override(&docker.RemoteDigest, func(string, map[string]bool) (string, error) {
			return "sha256:base", nil
		})

		tmpDir := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n").
			Write("main.py", "print('hi')\n")

		api := &testutil.FakeAPIClient{}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{})

		a := testArtifact(tmpDir.Root())

		_, err := builder.Build(context.Background(), io.Discard, a, "gcr.io/my-proj/tally:v1")
		t.CheckNoError(err)

		tmpDir.Write("main.py", "print('changed')\n")

		_, err = builder.Build(context.Background(), io.Discard, a, "gcr.io/my-proj/tally:v2")
		t.CheckNoError(err)

		t.CheckDeepEqual(2, len(api.Built))
	})

	testutil.Run(t, "force bypasses the cache", func(t *testutil.T) {
		t.Override(&docker.DefaultAuthHelper, fakeAuthHelper{})
		t.Override(&docker.RemoteDigest, func(string, map[string]bool) (string, error) {
			return "sha256:base", nil
		})

		tmpDir := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n").
			Write("main.py", "print('hi')\n")

		api := &testutil.FakeAPIClient{}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{Force: true})

		a := testArtifact(tmpDir.Root())

		_, err := builder.Build(context.Background(), io.Discard, a, "gcr.io/my-proj/tally:v1")
		t.CheckNoError(err)
		_, err = builder.Build(context.Background(), io.Discard, a, "gcr.io/my-proj/tally:v2")
		t.CheckNoError(err)

		t.CheckDeepEqual(2, len(api.Built))
	})
}

func TestLocalBuildFailingStep(t *testing.T) {
	testutil.Run(t, "a failed step aborts the bake, nothing is pushed", func(t *testutil.T) {
		t.Override(&docker.DefaultAuthHelper, fakeAuthHelper{})
		t.Override(&docker.RemoteDigest, func(string, map[string]bool) (string, error) {
			return "sha256:base", nil
		})

		tmpDir := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n")

		api := &testutil.FakeAPIClient{
			BuildError:     "The command pip install returned a non-zero code: 2",
			BuildErrorCode: 2,
		}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{Push: true})

		_, err := builder.Build(context.Background(), io.Discard, testArtifact(tmpDir.Root()), "gcr.io/my-proj/tally:v1")

		t.CheckError(true, err)
		t.CheckDeepEqual(2, tallyerrors.ExitCode(err))
		t.CheckDeepEqual(0, len(api.Pushed))
	})
}

func TestLocalBuildPull(t *testing.T) {
	testutil.Run(t, "pull refreshes the base image first", func(t *testutil.T) {
		t.Override(&docker.DefaultAuthHelper, fakeAuthHelper{})
		t.Override(&docker.RemoteDigest, func(string, map[string]bool) (string, error) {
			return "sha256:base", nil
		})

		tmpDir := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n")

		api := &testutil.FakeAPIClient{}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{Pull: true})

		_, err := builder.Build(context.Background(), io.Discard, testArtifact(tmpDir.Root()), "gcr.io/my-proj/tally:v1")

		t.CheckNoError(err)
		t.CheckDeepEqual([]string{"python:3.12-slim"}, api.Pulled)
	})

	testutil.Run(t, "failed pull aborts before any step", func(t *testutil.T) {
		t.Override(&docker.DefaultAuthHelper, fakeAuthHelper{})
		t.Override(&docker.RemoteDigest, func(string, map[string]bool) (string, error) {
			return "sha256:base", nil
		})

		tmpDir := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n")

		api := &testutil.FakeAPIClient{ErrImagePull: true}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{Pull: true})

		_, err := builder.Build(context.Background(), io.Discard, testArtifact(tmpDir.Root()), "gcr.io/my-proj/tally:v1")

		t.CheckErrorContains("pulling base image", err)
		t.CheckDeepEqual(0, len(api.Built))
	})

	testutil.Run(t, "scratch has nothing to pull", func(t *testutil.T) {
		t.Override(&docker.DefaultAuthHelper, fakeAuthHelper{})

		tmpDir := t.NewTempDir().
			Write("Dockerfile", "FROM scratch\nCOPY app /app\n").
			Write("app", "binary\n")

		api := &testutil.FakeAPIClient{ErrImagePull: true}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{Pull: true})

		_, err := builder.Build(context.Background(), io.Discard, testArtifact(tmpDir.Root()), "gcr.io/my-proj/tally:v1")

		t.CheckNoError(err)
		t.CheckDeepEqual(0, len(api.Pulled))
	})
}

func TestLocalBuildDaemonUnreachable(t *testing.T) {
	testutil.Run(t, "an unreachable daemon aborts before staging", func(t *testutil.T) {
		api := &testutil.FakeAPIClient{ErrVersion: true}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{})

		_, err := builder.Build(context.Background(), io.Discard, testArtifact("."), "gcr.io/my-proj/tally:v1")

		t.CheckErrorContains("getting docker version", err)
		t.CheckDeepEqual(0, len(api.Built))
	})
}

func TestLocalBuildBaseCheck(t *testing.T) {
	testutil.Run(t, "unreachable base aborts before any step", func(t *testutil.T) {
		t.Override(&docker.RemoteDigest, func(string, map[string]bool) (string, error) {
			return "", errors.New("connection refused")
		})

		tmpDir := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n")

		api := &testutil.FakeAPIClient{}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{})

		_, err := builder.Build(context.Background(), io.Discard, testArtifact(tmpDir.Root()), "gcr.io/my-proj/tally:v1")

		t.CheckErrorContains("not reachable", err)
		t.CheckDeepEqual(0, len(api.Built))
	})

	testutil.Run(t, "skip flag trusts the daemon", func(t *testutil.T) {
		t.Override(&docker.DefaultAuthHelper, fakeAuthHelper{})
		t.Override(&docker.RemoteDigest, func(string, map[string]bool) (string, error) {
			return "", errors.New("connection refused")
		})

		tmpDir := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n")

		api := &testutil.FakeAPIClient{}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{SkipBaseCheck: true})

		_, err := builder.Build(context.Background(), io.Discard, testArtifact(tmpDir.Root()), "gcr.io/my-proj/tally:v1")

		t.CheckNoError(err)
	})
}

func TestLocalBuildInvalidRecipe(t *testing.T) {
	testutil.Run(t, "validation failures never reach the daemon", func(t *testutil.T) {
		tmpDir := t.NewTempDir().
			Write("Dockerfile", "FROM alpine:3.20\nEXPOSE 8080\n")

		api := &testutil.FakeAPIClient{}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{})

		_, err := builder.Build(context.Background(), io.Discard, testArtifact(tmpDir.Root()), "gcr.io/my-proj/tally:v1")

		t.CheckErrorContains("unsupported directive", err)
		t.CheckDeepEqual(0, len(api.Built))
	})
}

func TestLocalBuildPush(t *testing.T) {
	testutil.Run(t, "push returns the remote digest", func(t *testutil.T) {
		t.Override(&docker.DefaultAuthHelper, fakeAuthHelper{})
		t.Override(&docker.RemoteDigest, func(string, map[string]bool) (string, error) {
			return "sha256:pushed", nil
		})

		tmpDir := t.NewTempDir().
			Write("Dockerfile", testRecipe).
			Write("requirements.txt", "flask==3.0.0\n")

		api := &testutil.FakeAPIClient{}
		builder := NewLocalBuilder(docker.NewLocalDaemon(api, false, nil), Options{Push: true})

		res, err := builder.Build(context.Background(), io.Discard, testArtifact(tmpDir.Root()), "gcr.io/my-proj/tally:v1")

		t.CheckNoError(err)
		t.CheckDeepEqual("sha256:pushed", res)
		t.CheckDeepEqual(1, len(api.Pushed))
	})
}
