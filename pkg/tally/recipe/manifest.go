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
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Manifest is a parsed dependency manifest: a flat list of package
// requirements, one per line. Whether the packages resolve is the
// installer's business, the manifest is only checked syntactically.
type Manifest struct {
	Path         string
	Requirements []Requirement
}

// Requirement is one manifest line: a package name, an optional
// version constraint and an optional environment marker.
type Requirement struct {
	Name    string
	Op      string
	Version string
	Marker  string
}

// constraint operators, longest first so that ">=" wins over ">"
var constraintOps = []string{"==", ">=", "<=", "~=", "!=", ">", "<"}

var requirementName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(\[[A-Za-z0-9._,-]+\])?$`)

// ParseManifest reads the manifest at the given path. Blank lines and
// comments are skipped. Malformed lines are reported with their line
// number.
func ParseManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	m := &Manifest{Path: path}

	scanner := bufio.NewScanner(f)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		req, err := ParseRequirement(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNumber, err)
		}
		m.Requirements = append(m.Requirements, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest %q: %w", path, err)
	}

	return m, nil
}

// ParseRequirement parses a single requirement line. The environment
// marker after ";" is preserved verbatim.
func ParseRequirement(line string) (Requirement, error) {
	var req Requirement

	if i := strings.Index(line, ";"); i >= 0 {
		req.Marker = strings.TrimSpace(line[i+1:])
		line = strings.TrimSpace(line[:i])
	}

	for _, op := range constraintOps {
		i := strings.Index(line, op)
		if i < 0 {
			continue
		}

		req.Name = strings.TrimSpace(line[:i])
		req.Op = op
		req.Version = strings.TrimSpace(line[i+len(op):])

		if req.Name == "" {
			return Requirement{}, fmt.Errorf("constraint %q has no package name", line)
		}
		if req.Version == "" {
			return Requirement{}, fmt.Errorf("constraint %q has an operator but no version", line)
		}
		return req, nil
	}

	req.Name = strings.TrimSpace(line)
	if req.Name == "" {
		return Requirement{}, fmt.Errorf("empty requirement")
	}
	return req, nil
}

// Validate checks requirement syntax: names restricted to the usual
// package name alphabet, operators paired with versions.
func (m *Manifest) Validate() error {
	for _, req := range m.Requirements {
		if !requirementName.MatchString(req.Name) {
			return fmt.Errorf("invalid package name %q in %s", req.Name, m.Path)
		}
		if (req.Op == "") != (req.Version == "") {
			return fmt.Errorf("requirement %q pairs an operator with no version", req.String())
		}
	}
	return nil
}

func (r Requirement) String() string {
	s := r.Name + r.Op + r.Version
	if r.Marker != "" {
		s += "; " + r.Marker
	}
	return s
}

// stripComment drops full-line and trailing comments and surrounding
// whitespace.
func stripComment(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}
