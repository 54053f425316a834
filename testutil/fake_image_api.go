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

package testutil

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/api/types/system"
	"github.com/docker/docker/client"
	reg "github.com/docker/docker/registry"
	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// FakeAPIClient stands in for the docker daemon in tests. Images exist
// only as tag to ID mappings plus the labels they were built with.
type FakeAPIClient struct {
	client.CommonAPIClient

	tagToImageID map[string]string
	imageLabels  map[string]map[string]string
	imageCreated map[string]int64
	createSeq    int64

	ErrImageBuild   bool
	ErrImageInspect bool
	ErrImageList    bool
	ErrImagePush    bool
	ErrImagePull    bool
	ErrStream       bool
	ErrVersion      bool

	// BuildError, when set, is streamed back as the build's error
	// detail, the way the daemon reports a failed RUN step.
	// BuildErrorCode is the step's exit code; zero means 1.
	BuildError     string
	BuildErrorCode int

	nextImageID int
	Pushed      map[string]string
	Pulled      []string
	Built       []types.ImageBuildOptions
}

func (f *FakeAPIClient) Add(tag, imageID string) *FakeAPIClient {
	if f.tagToImageID == nil {
		f.tagToImageID = make(map[string]string)
	}

	f.tagToImageID[imageID] = imageID
	f.tagToImageID[tag] = imageID
	if !strings.Contains(tag, ":") {
		f.tagToImageID[tag+":latest"] = imageID
	}

	if f.imageCreated == nil {
		f.imageCreated = make(map[string]int64)
	}
	if _, found := f.imageCreated[imageID]; !found {
		f.createSeq++
		f.imageCreated[imageID] = f.createSeq
	}
	return f
}

type notFoundError struct {
	error
}

func (e notFoundError) NotFound() bool {
	return true
}

type errReader struct{}

func (f errReader) Read([]byte) (int, error) { return 0, fmt.Errorf("") }

func (f *FakeAPIClient) body(digest string) io.ReadCloser {
	if f.ErrStream {
		return io.NopCloser(&errReader{})
	}

	if f.BuildError != "" {
		code := f.BuildErrorCode
		if code == 0 {
			code = 1
		}
		return io.NopCloser(strings.NewReader(fmt.Sprintf(`{"errorDetail":{"code":%d,"message":"%s"},"error":"%s"}`, code, f.BuildError, f.BuildError)))
	}

	return io.NopCloser(strings.NewReader(fmt.Sprintf(`{"aux":{"ID":"%s"}}`, digest)))
}

func (f *FakeAPIClient) ImageBuild(_ context.Context, _ io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	if f.ErrImageBuild {
		return types.ImageBuildResponse{}, fmt.Errorf("")
	}

	f.nextImageID++
	imageID := fmt.Sprintf("sha256:%d", f.nextImageID)

	for _, tag := range options.Tags {
		f.Add(tag, imageID)
	}

	if f.imageLabels == nil {
		f.imageLabels = make(map[string]map[string]string)
	}
	f.imageLabels[imageID] = options.Labels

	f.Built = append(f.Built, options)

	return types.ImageBuildResponse{
		Body: f.body(imageID),
	}, nil
}

func (f *FakeAPIClient) ImageInspectWithRaw(_ context.Context, ref string) (types.ImageInspect, []byte, error) {
	if f.ErrImageInspect {
		return types.ImageInspect{}, nil, fmt.Errorf("")
	}

	for tag, imageID := range f.tagToImageID {
		if tag == ref || imageID == ref {
			rawConfig := []byte(fmt.Sprintf(`{"Config":{"Image":"%s"}}`, imageID))

			var repoDigests []string
			if digest, found := f.Pushed[ref]; found {
				repoDigests = append(repoDigests, ref+"@"+digest)
			}

			return types.ImageInspect{
				ID:          imageID,
				RepoDigests: repoDigests,
			}, rawConfig, nil
		}
	}

	return types.ImageInspect{}, nil, &notFoundError{}
}

func (f *FakeAPIClient) DistributionInspect(ctx context.Context, ref, encodedRegistryAuth string) (registry.DistributionInspect, error) {
	if sha, found := f.Pushed[ref]; found {
		return registry.DistributionInspect{
			Descriptor: ocispec.Descriptor{
				Digest: digest.Digest(sha),
			},
		}, nil
	}

	return registry.DistributionInspect{}, &notFoundError{}
}

func (f *FakeAPIClient) ImageTag(_ context.Context, image, ref string) error {
	imageID, ok := f.tagToImageID[image]
	if !ok {
		return fmt.Errorf("image %s not found", image)
	}

	f.Add(ref, imageID)
	return nil
}

func (f *FakeAPIClient) ImagePush(_ context.Context, ref string, _ image.PushOptions) (io.ReadCloser, error) {
	if f.ErrImagePush {
		return nil, fmt.Errorf("")
	}

	sha256Digester := sha256.New()
	if _, err := sha256Digester.Write([]byte(f.tagToImageID[ref])); err != nil {
		return nil, err
	}

	digest := "sha256:" + fmt.Sprintf("%x", sha256Digester.Sum(nil))[0:64]
	if f.Pushed == nil {
		f.Pushed = make(map[string]string)
	}
	f.Pushed[ref] = digest

	return f.body(digest), nil
}

func (f *FakeAPIClient) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	if f.ErrImagePull {
		return nil, fmt.Errorf("")
	}

	f.Pulled = append(f.Pulled, ref)
	return f.body(""), nil
}

func (f *FakeAPIClient) ImageList(_ context.Context, options image.ListOptions) ([]image.Summary, error) {
	if f.ErrImageList {
		return nil, fmt.Errorf("")
	}

	tagsByID := make(map[string][]string)
	for tag, imageID := range f.tagToImageID {
		if tag != imageID {
			tagsByID[imageID] = append(tagsByID[imageID], tag)
		}
	}

	var wantLabels []string
	if options.Filters.Len() > 0 {
		wantLabels = options.Filters.Get("label")
	}

	var summaries []image.Summary
	for imageID, tags := range tagsByID {
		labels := f.imageLabels[imageID]

		matches := true
		for _, want := range wantLabels {
			kv := strings.SplitN(want, "=", 2)
			v, present := labels[kv[0]]
			if !present || (len(kv) == 2 && v != kv[1]) {
				matches = false
				break
			}
		}
		if !matches {
			continue
		}

		summaries = append(summaries, image.Summary{
			ID:       imageID,
			RepoTags: tags,
			Labels:   labels,
			Created:  f.imageCreated[imageID],
		})
	}

	return summaries, nil
}

func (f *FakeAPIClient) Info(context.Context) (system.Info, error) {
	return system.Info{
		IndexServerAddress: reg.IndexServer,
	}, nil
}

func (f *FakeAPIClient) ServerVersion(context.Context) (types.Version, error) {
	if f.ErrVersion {
		return types.Version{}, fmt.Errorf("")
	}

	return types.Version{}, nil
}

func (f *FakeAPIClient) Close() error { return nil }
