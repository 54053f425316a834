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
	"io"
	"path/filepath"
	"strings"
)

// Artifact is one image to bake: a workspace, the recipe inside it and
// the name the result is known by.
type Artifact struct {
	// Workspace is the build context directory.
	Workspace string

	// RecipePath locates the recipe, relative to the workspace unless
	// absolute.
	RecipePath string

	// ImageName is the image name without a tag.
	ImageName string

	// BuildArgs are passed to the build tooling as ARG values.
	BuildArgs map[string]*string
}

// Builder runs one bake against external build tooling and returns the
// digest or ID of the image it produced. Any failing step aborts the
// whole build: nothing is tagged or pushed on failure.
type Builder interface {
	Build(ctx context.Context, out io.Writer, a *Artifact, tag string) (string, error)
}

// NormalizeRecipePath returns the absolute path to the artifact's
// recipe file.
func (a *Artifact) NormalizeRecipePath() (string, error) {
	if filepath.IsAbs(a.RecipePath) {
		return a.RecipePath, nil
	}

	recipePath := a.RecipePath
	if !strings.HasPrefix(recipePath, a.Workspace) {
		recipePath = filepath.Join(a.Workspace, recipePath)
	}
	return filepath.Abs(recipePath)
}
