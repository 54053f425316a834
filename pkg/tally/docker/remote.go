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

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// For testing
var (
	getRemoteDescriptorImpl = getRemoteDescriptor
	RemoteDigest            = getRemoteDigest
)

// getRemoteDigest resolves an image reference against its registry and
// returns the manifest digest.
func getRemoteDigest(identifier string, insecureRegistries map[string]bool) (string, error) {
	ref, err := parseRemoteReference(identifier, insecureRegistries)
	if err != nil {
		return "", err
	}

	desc, err := getRemoteDescriptorImpl(ref)
	if err != nil {
		return "", fmt.Errorf("getting image: %w", err)
	}

	return desc.Digest.String(), nil
}

func parseRemoteReference(identifier string, insecureRegistries map[string]bool) (name.Reference, error) {
	ref, err := name.ParseReference(identifier, name.WeakValidation)
	if err != nil {
		return nil, fmt.Errorf("parsing reference %q: %w", identifier, err)
	}

	if IsInsecure(ref.Context().Registry.Name(), insecureRegistries) {
		ref, err = name.ParseReference(identifier, name.WeakValidation, name.Insecure)
		if err != nil {
			return nil, fmt.Errorf("parsing insecure reference %q: %w", identifier, err)
		}
	}

	return ref, nil
}

// IsInsecure tests if the registry is listed as an insecure registry;
// default is false.
func IsInsecure(registryName string, insecureRegistries map[string]bool) bool {
	return insecureRegistries[registryName]
}

func getRemoteDescriptor(ref name.Reference) (*remote.Descriptor, error) {
	return remote.Get(ref, remote.WithAuthFromKeychain(authn.DefaultKeychain))
}
