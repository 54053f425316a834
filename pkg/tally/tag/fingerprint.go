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
	"fmt"

	"github.com/opencontainers/go-digest"
)

// shortLen matches the length docker uses for short image IDs.
const shortLen = 12

// Fingerprinter computes the content digest of an image's build inputs.
type Fingerprinter func(ctx context.Context, image Image) (digest.Digest, error)

// fingerprintTagger tags images with the digest of their build inputs.
// Unchanged inputs produce the same tag, which is what makes rebuilds
// idempotent.
type fingerprintTagger struct {
	fingerprint Fingerprinter
}

// NewFingerprintTagger creates a Tagger that derives the tag from the
// given fingerprint function.
func NewFingerprintTagger(fingerprint Fingerprinter) Tagger {
	return &fingerprintTagger{fingerprint: fingerprint}
}

func (t *fingerprintTagger) GenerateTag(ctx context.Context, image Image) (string, error) {
	dgst, err := t.fingerprint(ctx, image)
	if err != nil {
		return "", fmt.Errorf("fingerprinting %q: %w", image.Name, err)
	}

	encoded := dgst.Encoded()
	if len(encoded) > shortLen {
		encoded = encoded[:shortLen]
	}
	return encoded, nil
}
