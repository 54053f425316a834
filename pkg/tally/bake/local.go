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
	"fmt"
	"io"
	"path/filepath"

	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/segmentio/textio"

	"github.com/chronotools/tally/pkg/tally/constants"
	"github.com/chronotools/tally/pkg/tally/docker"
	tallyerrors "github.com/chronotools/tally/pkg/tally/errors"
	"github.com/chronotools/tally/pkg/tally/output"
	"github.com/chronotools/tally/pkg/tally/output/log"
	"github.com/chronotools/tally/pkg/tally/recipe"
)

// Options tune how a builder runs a bake.
type Options struct {
	// Push publishes the result to the registry the tag names.
	Push bool

	// Force bypasses the fingerprint cache.
	Force bool

	// Pull refreshes the base image from its registry before baking.
	Pull bool

	// SkipBaseCheck skips resolving the base image remotely before the
	// build.
	SkipBaseCheck bool

	InsecureRegistries map[string]bool
}

// LocalBuilder drives a bake through the local Docker daemon.
type LocalBuilder struct {
	daemon docker.LocalDaemon
	opts   Options
}

// NewLocalBuilder creates a Builder that delegates to the given daemon.
func NewLocalBuilder(daemon docker.LocalDaemon, opts Options) *LocalBuilder {
	return &LocalBuilder{
		daemon: daemon,
		opts:   opts,
	}
}

// Build stages the recipe's context, hands it to the daemon and
// returns the image ID, or the pushed digest when pushing. An unchanged
// fingerprint short-circuits to the cached image.
func (b *LocalBuilder) Build(ctx context.Context, out io.Writer, a *Artifact, tagged string) (string, error) {
	version, err := b.daemon.ServerVersion(ctx)
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("getting docker version: %w", err))
	}
	log.Entry(ctx).Debugf("baking with docker daemon %s (API %s)", version.Version, version.APIVersion)

	recipePath, err := a.NormalizeRecipePath()
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	r, err := recipe.Parse(recipePath)
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	if err := r.Validate(); err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("invalid recipe %q: %w", r.Path, err))
	}

	if err := b.checkBaseImage(ctx, r); err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, err)
	}

	if b.opts.Pull {
		if err := b.pullBaseImage(ctx, out, r); err != nil {
			return "", tallyerrors.NewProblem(constants.Bake, 0, err)
		}
	}

	fingerprint, err := Fingerprint(a, r)
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	log.Entry(ctx).Debugf("fingerprint for %s: %s", a.ImageName, fingerprint)

	if !b.opts.Force {
		if imageID, found := b.cachedImage(ctx, fingerprint.String()); found {
			output.Green.Fprintf(out, "Found cached image for %s, skipping bake\n", a.ImageName)
			if err := b.daemon.Tag(ctx, imageID, tagged); err != nil {
				return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("tagging cached image: %w", err))
			}
			return b.finish(ctx, out, tagged, imageID)
		}
	}

	imageID, err := b.bake(ctx, out, a, r, tagged, fingerprint.String())
	if err != nil {
		return "", err
	}

	return b.finish(ctx, out, tagged, imageID)
}

func (b *LocalBuilder) bake(ctx context.Context, out io.Writer, a *Artifact, r *recipe.Recipe, tagged, fingerprint string) (string, error) {
	recipePath, err := a.NormalizeRecipePath()
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	relRecipePath, err := filepath.Rel(a.Workspace, recipePath)
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, err)
	}

	buildCtx, buildCtxWriter := io.Pipe()
	go func() {
		if err := CreateTarContext(ctx, buildCtxWriter, a, r); err != nil {
			buildCtxWriter.CloseWithError(fmt.Errorf("creating build context: %w", err))
			return
		}
		buildCtxWriter.Close()
	}()

	pw := textio.NewPrefixWriter(out, " > ")
	defer pw.Flush()

	imageID, err := b.daemon.Build(ctx, pw, buildCtx, docker.BuildOptions{
		Tag:        tagged,
		RecipePath: filepath.ToSlash(relRecipePath),
		BuildArgs:  a.BuildArgs,
		Labels: map[string]string{
			constants.FingerprintLabel: fingerprint,
		},
	})
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, buildExitCode(err), fmt.Errorf("baking %q: %w", a.ImageName, err))
	}
	return imageID, nil
}

// finish optionally pushes the tagged image. The pushed digest becomes
// the build result so that callers always hold a stable identifier.
func (b *LocalBuilder) finish(ctx context.Context, out io.Writer, tagged, imageID string) (string, error) {
	if !b.opts.Push {
		return imageID, nil
	}

	digest, err := b.daemon.Push(ctx, out, tagged)
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	return digest, nil
}

// checkBaseImage resolves the base reference remotely so that an
// unreachable base aborts before any step runs.
func (b *LocalBuilder) checkBaseImage(ctx context.Context, r *recipe.Recipe) error {
	if b.opts.SkipBaseCheck || r.BaseImage == "scratch" {
		return nil
	}

	digest, err := docker.RemoteDigest(r.BaseImage, b.opts.InsecureRegistries)
	if err != nil {
		return fmt.Errorf("base image %q is not reachable: %w", r.BaseImage, err)
	}

	log.Entry(ctx).Debugf("base image %s resolved to %s", r.BaseImage, digest)
	return nil
}

// pullBaseImage refreshes the base from its registry so the daemon
// bakes on top of the latest layers instead of a stale local copy.
func (b *LocalBuilder) pullBaseImage(ctx context.Context, out io.Writer, r *recipe.Recipe) error {
	if r.BaseImage == "scratch" {
		return nil
	}

	output.Default.Fprintf(out, "Pulling base image %s\n", r.BaseImage)

	pw := textio.NewPrefixWriter(out, " > ")
	defer pw.Flush()

	if err := b.daemon.Pull(ctx, pw, r.BaseImage); err != nil {
		return fmt.Errorf("pulling base image %q: %w", r.BaseImage, err)
	}
	return nil
}

func (b *LocalBuilder) cachedImage(ctx context.Context, fingerprint string) (string, bool) {
	images, err := b.daemon.ImagesByLabel(ctx, constants.FingerprintLabel+"="+fingerprint)
	if err != nil {
		log.Entry(ctx).Debugf("fingerprint cache lookup failed: %v", err)
		return "", false
	}
	if len(images) == 0 {
		return "", false
	}
	return images[0].ID, true
}

// buildExitCode surfaces the failing step's exit status when the
// daemon reported one.
func buildExitCode(err error) int {
	var jm *jsonmessage.JSONError
	if errors.As(err, &jm) && jm.Code > 0 {
		return jm.Code
	}
	return 0
}
