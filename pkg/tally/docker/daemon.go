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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/progress"
	"github.com/docker/docker/pkg/streamformatter"

	"github.com/chronotools/tally/pkg/tally/output/log"
	"github.com/chronotools/tally/pkg/tally/util"
)

// LocalDaemon talks to a local Docker API. It is the external build
// tooling the recipe is handed to: layering, caching and package
// installation all happen on the daemon's side of this interface.
type LocalDaemon interface {
	Close() error
	ServerVersion(ctx context.Context) (types.Version, error)
	Build(ctx context.Context, out io.Writer, buildCtx io.Reader, opts BuildOptions) (string, error)
	Push(ctx context.Context, out io.Writer, ref string) (string, error)
	Pull(ctx context.Context, out io.Writer, ref string) error
	Tag(ctx context.Context, image, ref string) error
	ImageID(ctx context.Context, ref string) (string, error)
	ImageExists(ctx context.Context, ref string) bool
	ImagesByLabel(ctx context.Context, label string) ([]image.Summary, error)
}

// BuildOptions parameterize one daemon build.
type BuildOptions struct {
	// Tag is the image name the build result is tagged with.
	Tag string

	// RecipePath is the recipe's path inside the build context.
	RecipePath string

	BuildArgs map[string]*string
	Labels    map[string]string
}

// BuildResult gives the information on an image that has been built.
type BuildResult struct {
	ID string
}

// PushResult gives the information on an image that has been pushed.
type PushResult struct {
	Digest string
}

type localDaemon struct {
	apiClient          client.CommonAPIClient
	forceRemove        bool
	insecureRegistries map[string]bool
}

// NewLocalDaemon creates a new LocalDaemon.
func NewLocalDaemon(apiClient client.CommonAPIClient, forceRemove bool, insecureRegistries map[string]bool) LocalDaemon {
	return &localDaemon{
		apiClient:          apiClient,
		forceRemove:        forceRemove,
		insecureRegistries: insecureRegistries,
	}
}

// Close closes the connection with the local daemon.
func (l *localDaemon) Close() error {
	return l.apiClient.Close()
}

// ServerVersion retrieves the version information from the server.
func (l *localDaemon) ServerVersion(ctx context.Context) (types.Version, error) {
	return l.apiClient.ServerVersion(ctx)
}

// Build sends the staged context to the daemon and returns the imageID.
// The daemon executes the steps; any failing step aborts the build and
// nothing is tagged.
func (l *localDaemon) Build(ctx context.Context, out io.Writer, buildCtx io.Reader, opts BuildOptions) (string, error) {
	log.Entry(ctx).Debugf("running docker build: recipe: %s, tag: %s", opts.RecipePath, opts.Tag)

	if _, err := ParseReference(opts.Tag); err != nil {
		return "", fmt.Errorf("couldn't parse image tag: %w", err)
	}

	// Like `docker build`, auth errors are ignored: the base may be
	// public.
	authConfigs, _ := DefaultAuthHelper.GetAllAuthConfigs(ctx)

	progressOutput := streamformatter.NewProgressOutput(out)
	body := progress.NewProgressReader(io.NopCloser(buildCtx), progressOutput, 0, "", "Sending build context to Docker daemon")

	resp, err := l.apiClient.ImageBuild(ctx, body, types.ImageBuildOptions{
		Tags:        []string{opts.Tag},
		Dockerfile:  opts.RecipePath,
		BuildArgs:   opts.BuildArgs,
		Labels:      opts.Labels,
		AuthConfigs: authConfigs,
		Remove:      true,
		ForceRemove: l.forceRemove,
	})
	if err != nil {
		return "", fmt.Errorf("docker build: %w", err)
	}
	defer resp.Body.Close()

	var imageID string
	auxCallback := func(msg jsonmessage.JSONMessage) {
		if msg.Aux == nil {
			return
		}

		var result BuildResult
		if err := json.Unmarshal(*msg.Aux, &result); err != nil {
			log.Entry(ctx).Debug("unable to parse build output:", err)
			return
		}
		imageID = result.ID
	}

	if err := streamDockerMessages(out, resp.Body, auxCallback); err != nil {
		var jm *jsonmessage.JSONError
		if errors.As(err, &jm) {
			return "", fmt.Errorf("docker build failure: %w", err)
		}
		return "", fmt.Errorf("unable to stream build output: %w", err)
	}

	if imageID == "" {
		// Maybe this version of Docker doesn't return the digest of
		// the image that has been built.
		imageID, err = l.ImageID(ctx, opts.Tag)
		if err != nil {
			return "", fmt.Errorf("getting digest: %w", err)
		}
	}

	return imageID, nil
}

// Push pushes an image reference to a registry. Returns the image digest.
func (l *localDaemon) Push(ctx context.Context, out io.Writer, ref string) (string, error) {
	registryAuth, err := l.encodedRegistryAuth(ctx, DefaultAuthHelper, ref)
	if err != nil {
		return "", fmt.Errorf("getting auth config for %q: %w", ref, err)
	}

	// Quick check if the image was already pushed (ignore any error).
	if alreadyPushed, digest, err := l.isAlreadyPushed(ctx, ref, registryAuth); alreadyPushed && err == nil {
		return digest, nil
	}

	rc, err := l.apiClient.ImagePush(ctx, ref, image.PushOptions{
		RegistryAuth: registryAuth,
	})
	if err != nil {
		return "", fmt.Errorf("pushing image %q: %w", ref, err)
	}
	defer rc.Close()

	var digest string
	auxCallback := func(msg jsonmessage.JSONMessage) {
		if msg.Aux == nil {
			return
		}

		var result PushResult
		if err := json.Unmarshal(*msg.Aux, &result); err != nil {
			log.Entry(ctx).Debug("unable to parse push output:", err)
			return
		}
		digest = result.Digest
	}

	if err := streamDockerMessages(out, rc, auxCallback); err != nil {
		return "", fmt.Errorf("pushing image %q: %w", ref, err)
	}

	if digest == "" {
		// Maybe this version of Docker doesn't return the digest of
		// the image that has been pushed.
		digest, err = RemoteDigest(ref, l.insecureRegistries)
		if err != nil {
			return "", fmt.Errorf("getting digest: %w", err)
		}
	}

	return digest, nil
}

// isAlreadyPushed quickly checks if the local image has already been pushed.
func (l *localDaemon) isAlreadyPushed(ctx context.Context, ref, registryAuth string) (bool, string, error) {
	localImage, _, err := l.apiClient.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return false, "", err
	}

	if len(localImage.RepoDigests) == 0 {
		return false, "", nil
	}

	remoteImage, err := l.apiClient.DistributionInspect(ctx, ref, registryAuth)
	if err != nil {
		return false, "", err
	}
	digest := remoteImage.Descriptor.Digest.String()

	for _, repoDigest := range localImage.RepoDigests {
		if parsed, err := ParseReference(repoDigest); err == nil {
			if parsed.Digest == digest {
				return true, parsed.Digest, nil
			}
		}
	}

	return false, "", nil
}

// Pull pulls an image reference from a registry.
func (l *localDaemon) Pull(ctx context.Context, out io.Writer, ref string) error {
	registryAuth, err := l.encodedRegistryAuth(ctx, DefaultAuthHelper, ref)
	// Ignore the error: maybe the image is public and can be pulled
	// without credentials.
	rc, err2 := l.apiClient.ImagePull(ctx, ref, image.PullOptions{
		RegistryAuth: registryAuth,
		PrivilegeFunc: func(context.Context) (string, error) {
			// The unauthenticated pull failed. Surface the original
			// credential error, or retry anonymously if there was none.
			return "", err
		},
	})
	if err2 != nil {
		return fmt.Errorf("pulling image from repository: %w", err2)
	}
	defer rc.Close()

	return streamDockerMessages(out, rc, nil)
}

// Tag adds a tag to an image.
func (l *localDaemon) Tag(ctx context.Context, image, ref string) error {
	return l.apiClient.ImageTag(ctx, image, ref)
}

// ImageID returns the image ID for a corresponding reference.
func (l *localDaemon) ImageID(ctx context.Context, ref string) (string, error) {
	img, _, err := l.apiClient.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("inspecting image: %w", err)
	}

	return img.ID, nil
}

func (l *localDaemon) ImageExists(ctx context.Context, ref string) bool {
	_, _, err := l.apiClient.ImageInspectWithRaw(ctx, ref)
	return err == nil
}

// ImagesByLabel lists local images carrying the given label, most
// recently created first.
func (l *localDaemon) ImagesByLabel(ctx context.Context, label string) ([]image.Summary, error) {
	imgs, err := l.apiClient.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", label)),
	})
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}

	sort.Slice(imgs, func(i, j int) bool {
		return imgs[i].Created > imgs[j].Created
	})
	return imgs, nil
}

// streamDockerMessages streams formatted json output from the docker daemon
func streamDockerMessages(dst io.Writer, src io.Reader, auxCallback func(jsonmessage.JSONMessage)) error {
	termFd, isTerm := util.IsTerminal(dst)
	return jsonmessage.DisplayJSONMessagesStream(src, dst, termFd, isTerm, auxCallback)
}
