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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar"

	"github.com/chronotools/tally/pkg/tally/output/log"
	"github.com/chronotools/tally/pkg/tally/walk"
)

// Dependencies expands the recipe's COPY sources against the workspace
// and returns the matched files, relative to the workspace and sorted.
// Directories are walked down to their files. A COPY whose patterns
// match nothing is an error: a build from this recipe could not stage
// its inputs.
func (r *Recipe) Dependencies(workspace string) ([]string, error) {
	seen := map[string]bool{}

	for _, step := range r.Steps {
		cp, ok := step.(CopyStep)
		if !ok {
			continue
		}

		matchesOne := false
		for _, src := range cp.Srcs {
			matched, err := expandSrc(workspace, src, seen)
			if err != nil {
				return nil, err
			}
			matchesOne = matchesOne || matched
		}

		if !matchesOne {
			return nil, fmt.Errorf("file pattern %v must match at least one file", cp.Srcs)
		}
	}

	var deps []string
	for path := range seen {
		deps = append(deps, path)
	}
	sort.Strings(deps)

	log.Entry(context.TODO()).Debugf("found recipe dependencies: %v", deps)
	return deps, nil
}

func expandSrc(workspace, src string, seen map[string]bool) (bool, error) {
	abs := filepath.Join(workspace, src)

	matches := []string{abs}
	if _, err := os.Stat(abs); err != nil {
		matches, err = doublestar.Glob(abs)
		if err != nil {
			return false, fmt.Errorf("invalid glob pattern %q: %w", src, err)
		}
		if len(matches) == 0 {
			return false, nil
		}
	}

	for _, match := range matches {
		files, err := walk.From(match).WhenIsFile().CollectPaths()
		if err != nil {
			return false, fmt.Errorf("walking %q: %w", match, err)
		}
		for _, f := range files {
			rel, err := filepath.Rel(workspace, f)
			if err != nil {
				return false, fmt.Errorf("getting relative path of %q: %w", f, err)
			}
			seen[rel] = true
		}
	}
	return true, nil
}
