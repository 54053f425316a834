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

package gcp

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"google.golang.org/api/option"

	"github.com/chronotools/tally/pkg/tally/version"
)

// ClientOptions are the base options for every Google API client the
// tool creates. Credentials come from Application Default Credentials.
func ClientOptions() []option.ClientOption {
	return []option.ClientOption{
		option.WithUserAgent(version.UserAgent()),
	}
}

// ExtractProjectID extracts the GCP projectID from a docker image name.
// This only works if the image is pushed to Container or Artifact
// Registry.
func ExtractProjectID(imageName string) (string, error) {
	ref, err := name.ParseReference(imageName, name.WeakValidation)
	if err != nil {
		return "", fmt.Errorf("parsing image name %q: %w", imageName, err)
	}

	registry := ref.Context().Registry.Name()
	if registry == "gcr.io" || strings.HasSuffix(registry, ".gcr.io") || strings.HasSuffix(registry, "-docker.pkg.dev") {
		parts := strings.Split(ref.Context().RepositoryStr(), "/")
		if len(parts) >= 1 && parts[0] != "" {
			return parts[0], nil
		}
	}

	return "", fmt.Errorf("unable to guess GCP projectID from image name %q", imageName)
}
