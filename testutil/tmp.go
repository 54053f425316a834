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

package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TempDir offers actions on a temp directory, removed when the test ends.
type TempDir struct {
	t    *testing.T
	root string
}

// NewTempDir creates a temporary directory and a teardown function
// that should be called to properly delete the directory content.
func NewTempDir(t *testing.T) *TempDir {
	return &TempDir{
		t:    t,
		root: t.TempDir(),
	}
}

// Root returns the temp directory.
func (h *TempDir) Root() string {
	return h.root
}

// Remove deletes a file from the temp directory.
func (h *TempDir) Remove(file string) *TempDir {
	if err := os.Remove(h.Path(file)); err != nil {
		h.t.Fatal(err)
	}
	return h
}

// Chtimes changes the times for a file in the temp directory.
func (h *TempDir) Chtimes(file string, t time.Time) *TempDir {
	if err := os.Chtimes(h.Path(file), t, t); err != nil {
		h.t.Fatal(err)
	}
	return h
}

// Mkdir makes a sub-directory in the temp directory.
func (h *TempDir) Mkdir(dir string) *TempDir {
	if err := os.MkdirAll(h.Path(dir), os.ModePerm); err != nil {
		h.t.Fatal(err)
	}
	return h
}

// Write write content to a file in the temp directory.
func (h *TempDir) Write(file, content string) *TempDir {
	h.failIfErr(os.MkdirAll(filepath.Dir(h.Path(file)), os.ModePerm))
	h.failIfErr(os.WriteFile(h.Path(file), []byte(content), os.ModePerm))
	return h
}

// Touch creates a list of empty files in the temp directory.
func (h *TempDir) Touch(files ...string) *TempDir {
	for _, file := range files {
		h.Write(file, "")
	}
	return h
}

// Symlink creates a symlink in the temp directory.
func (h *TempDir) Symlink(dst, src string) *TempDir {
	h.failIfErr(os.Symlink(h.Path(dst), h.Path(src)))
	return h
}

// Path returns the path to a file in the temp directory.
func (h *TempDir) Path(file string) string {
	elem := []string{h.root}
	elem = append(elem, strings.Split(file, "/")...)
	return filepath.Join(elem...)
}

// Paths returns the paths to a list of files in the temp directory.
func (h *TempDir) Paths(files ...string) []string {
	var paths []string
	for _, file := range files {
		paths = append(paths, h.Path(file))
	}
	return paths
}

// TempFile creates a temporary file with the given content and returns
// its path. The file is removed when the test ends.
func (t *T) TempFile(prefix string, content []byte) string {
	file, err := os.CreateTemp(t.T.TempDir(), prefix)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := file.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}
	return file.Name()
}

// Chdir changes the current directory to the temp directory for the
// duration of the test.
func (h *TempDir) Chdir() *TempDir {
	pwd, err := os.Getwd()
	h.failIfErr(err)
	h.failIfErr(os.Chdir(h.Root()))
	h.t.Cleanup(func() {
		if err := os.Chdir(pwd); err != nil {
			h.t.Fatal(err)
		}
	})
	return h
}

// List lists the content of the temp directory.
func (h *TempDir) List() ([]os.DirEntry, error) {
	return os.ReadDir(h.root)
}

func (h *TempDir) failIfErr(err error) {
	if err != nil {
		h.t.Fatal(err)
	}
}
