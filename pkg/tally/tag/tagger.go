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
)

// Image identifies the artifact being tagged.
type Image struct {
	// Name is the image name without a tag.
	Name string

	// Workspace is the build context directory.
	Workspace string
}

// Tagger computes the tag a baked image is labeled with.
type Tagger interface {
	GenerateTag(ctx context.Context, image Image) (string, error)
}
