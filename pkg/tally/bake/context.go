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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/moby/patternmatcher"

	"github.com/chronotools/tally/pkg/tally/output/log"
	"github.com/chronotools/tally/pkg/tally/recipe"
	"github.com/chronotools/tally/pkg/tally/util"
)

// ignore files, in order of preference
const (
	bakeIgnoreFile   = ".bakeignore"
	dockerIgnoreFile = ".dockerignore"
)

// Dependencies returns the staged build context for an artifact: the
// recipe file plus its COPY closure, relative to the workspace, with
// ignore patterns applied. This is exactly the set of files the build
// can see.
func Dependencies(a *Artifact, r *recipe.Recipe) ([]string, error) {
	deps, err := r.Dependencies(a.Workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving recipe dependencies: %w", err)
	}

	excludes, err := ignorePatterns(a.Workspace)
	if err != nil {
		return nil, err
	}

	matcher, err := patternmatcher.New(excludes)
	if err != nil {
		return nil, fmt.Errorf("invalid ignore patterns: %w", err)
	}

	files := map[string]bool{}
	for _, dep := range deps {
		ignored, err := matcher.MatchesOrParentMatches(dep)
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", dep, err)
		}
		if !ignored {
			files[dep] = true
		}
	}

	// The recipe is always staged, whatever the ignore file says.
	recipePath, err := a.NormalizeRecipePath()
	if err != nil {
		return nil, err
	}
	if rel, err := filepath.Rel(a.Workspace, recipePath); err == nil && !strings.HasPrefix(rel, "..") {
		files[rel] = true
	}

	var staged []string
	for f := range files {
		staged = append(staged, f)
	}
	sort.Strings(staged)
	return staged, nil
}

// CreateTarContext tars the staged build context into w.
func CreateTarContext(ctx context.Context, w io.Writer, a *Artifact, r *recipe.Recipe) error {
	paths, err := Dependencies(a, r)
	if err != nil {
		return fmt.Errorf("getting relative tar paths: %w", err)
	}

	logContextSize(ctx, a.Workspace, paths)

	if err := util.CreateTar(w, a.Workspace, absolutePaths(a.Workspace, paths)); err != nil {
		return fmt.Errorf("creating tar: %w", err)
	}

	return nil
}

// CreateTarGzContext tars and compresses the staged build context
// into w.
func CreateTarGzContext(ctx context.Context, w io.Writer, a *Artifact, r *recipe.Recipe) error {
	paths, err := Dependencies(a, r)
	if err != nil {
		return fmt.Errorf("getting relative tar paths: %w", err)
	}

	logContextSize(ctx, a.Workspace, paths)

	if err := util.CreateTarGz(w, a.Workspace, absolutePaths(a.Workspace, paths)); err != nil {
		return fmt.Errorf("creating tar gz: %w", err)
	}

	return nil
}

// ignorePatterns reads the workspace's ignore file. A .bakeignore wins
// over a .dockerignore.
func ignorePatterns(workspace string) ([]string, error) {
	for _, name := range []string{bakeIgnoreFile, dockerIgnoreFile} {
		content, err := os.ReadFile(filepath.Join(workspace, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		var patterns []string
		for _, line := range strings.Split(string(content), "\n") {
			if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
				patterns = append(patterns, line)
			}
		}
		return patterns, nil
	}
	return nil, nil
}

func absolutePaths(workspace string, paths []string) []string {
	abs := make([]string, len(paths))
	for i, p := range paths {
		abs[i] = filepath.Join(workspace, p)
	}
	return abs
}

func logContextSize(ctx context.Context, workspace string, paths []string) {
	var total uint64
	for _, p := range paths {
		if fi, err := os.Stat(filepath.Join(workspace, p)); err == nil {
			total += uint64(fi.Size())
		}
	}
	log.Entry(ctx).Debugf("staging %d files (%s)", len(paths), humanize.Bytes(total))
}
