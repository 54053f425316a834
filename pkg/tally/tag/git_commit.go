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

package tag

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"

	"github.com/chronotools/tally/pkg/tally/output/log"
)

// gitCommitTagger tags an image by the HEAD commit of the workspace's
// repository, with a -dirty suffix when the worktree has local changes.
type gitCommitTagger struct {
	// fallback handles workspaces outside any git repository.
	fallback Tagger
}

// NewGitCommitTagger creates a Tagger that tags by git commit, falling
// back to the timestamp policy outside a repository.
func NewGitCommitTagger() Tagger {
	return &gitCommitTagger{
		fallback: NewDateTimeTagger("", ""),
	}
}

func (t *gitCommitTagger) GenerateTag(ctx context.Context, image Image) (string, error) {
	repo, err := git.PlainOpenWithOptions(image.Workspace, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			log.Entry(ctx).Warnf("%q is not in a git repository, falling back to a timestamp tag", image.Workspace)
			return t.fallback.GenerateTag(ctx, image)
		}
		return "", fmt.Errorf("opening repository for %q: %w", image.Workspace, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}

	tag := head.Hash().String()[:7]

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("getting worktree status: %w", err)
	}
	if !status.IsClean() {
		tag += "-dirty"
	}

	return tag, nil
}
