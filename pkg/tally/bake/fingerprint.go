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
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/chronotools/tally/pkg/tally/recipe"
)

// Fingerprint digests everything a bake consumes: the canonical recipe
// (base reference included) and the path and content of every staged
// file. Identical inputs give an identical fingerprint, which is the
// contract behind cache hits and rebuild idempotence.
//
// The recipe file itself only contributes its canonical form, so
// reformatting it does not invalidate the cache.
func Fingerprint(a *Artifact, r *recipe.Recipe) (digest.Digest, error) {
	paths, err := Dependencies(a, r)
	if err != nil {
		return "", err
	}

	recipeRel := ""
	if recipePath, err := a.NormalizeRecipePath(); err == nil {
		if rel, err := filepath.Rel(a.Workspace, recipePath); err == nil {
			recipeRel = rel
		}
	}

	h := sha256.New()
	io.WriteString(h, r.Canonical())

	for _, rel := range paths {
		if rel == recipeRel {
			continue
		}
		io.WriteString(h, rel+"\n")

		f, err := os.Open(filepath.Join(a.Workspace, rel))
		if err != nil {
			return "", fmt.Errorf("reading %q: %w", rel, err)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hashing %q: %w", rel, err)
		}
	}

	return digest.NewDigest(digest.SHA256, h), nil
}
