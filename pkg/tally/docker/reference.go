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
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// ImageReference is a parsed image name.
type ImageReference struct {
	BaseName string
	Domain   string
	Path     string
	Tag      string
	Digest   string
	// FullyQualified means the reference is pinned: a tag other than
	// latest, or a digest.
	FullyQualified bool
}

// ParseReference parses an image name to a reference.
func ParseReference(image string) (*ImageReference, error) {
	r, err := reference.Parse(image)
	if err != nil {
		return nil, err
	}

	parsed := &ImageReference{
		BaseName: image,
	}

	if n, ok := r.(reference.Named); ok {
		parsed.BaseName = n.Name()
		parsed.Domain = reference.Domain(n)
		parsed.Path = reference.Path(n)
	}

	switch n := r.(type) {
	case reference.Tagged:
		parsed.Tag = n.Tag()
		parsed.FullyQualified = n.Tag() != "latest"
	case reference.Digested:
		parsed.Digest = n.Digest().String()
		parsed.FullyQualified = true
	}

	return parsed, nil
}

// SubstituteDefaultRepo prefixes an unqualified image name with the
// configured default repo. Names that already carry a registry are
// left alone.
func SubstituteDefaultRepo(image, defaultRepo string) (string, error) {
	if defaultRepo == "" {
		return image, nil
	}

	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "", fmt.Errorf("parsing image name %q: %w", image, err)
	}

	if reference.Domain(named) != "docker.io" || strings.HasPrefix(image, "docker.io/") {
		return image, nil
	}

	suffix := reference.Path(named)
	suffix = strings.TrimPrefix(suffix, "library/")

	prefixed := defaultRepo + "/" + suffix
	if tagged, ok := named.(reference.Tagged); ok {
		prefixed += ":" + tagged.Tag()
	}
	if digested, ok := named.(reference.Digested); ok {
		prefixed += "@" + digested.Digest().String()
	}
	return prefixed, nil
}
