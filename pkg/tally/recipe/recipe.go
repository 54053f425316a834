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
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/moby/buildkit/frontend/dockerfile/command"
	"github.com/moby/buildkit/frontend/dockerfile/parser"
	"github.com/moby/buildkit/frontend/dockerfile/shell"

	"github.com/chronotools/tally/pkg/tally/docker"
)

// Recipe is a parsed build recipe: one base image, at most one working
// directory, and an ordered list of steps. It is declarative data. The
// recipe performs no work of its own, bake hands it to external build
// tooling.
type Recipe struct {
	// Path is the file the recipe was read from, empty for ParseReader.
	Path string

	// BaseImage is the image reference of the first FROM.
	BaseImage string

	// Workdir is the in-image working directory, empty when the recipe
	// declares none.
	Workdir string

	// Steps are the copy, run and env steps in source order.
	Steps []Step

	froms       []instruction
	workdirs    []instruction
	unsupported []instruction
	copyFrom    *instruction
}

// Step is one recipe instruction. The concrete types are CopyStep,
// RunStep and EnvStep.
type Step interface {
	isStep()
}

// CopyStep stages files from the build context into the image.
type CopyStep struct {
	Srcs      []string
	Dest      string
	DestIsDir bool
}

// RunStep executes a command inside the image being built.
type RunStep struct {
	Command string
}

// EnvStep sets an environment variable for the remaining steps.
type EnvStep struct {
	Key   string
	Value string
}

func (CopyStep) isStep() {}
func (RunStep) isStep()  {}
func (EnvStep) isStep()  {}

type instruction struct {
	directive string
	value     string
	line      int
}

// Parse reads and parses the recipe at the given path. Syntax errors
// are reported with the path, structural problems are left to Validate.
func Parse(recipePath string) (*Recipe, error) {
	f, err := os.Open(recipePath)
	if err != nil {
		return nil, fmt.Errorf("opening recipe: %w", err)
	}
	defer f.Close()

	r, err := ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing recipe %q: %w", recipePath, err)
	}

	r.Path = recipePath
	return r, nil
}

// ParseReader parses a recipe from a reader.
func ParseReader(reader io.Reader) (*Recipe, error) {
	res, err := parser.Parse(reader)
	if err != nil {
		return nil, err
	}

	nodes := res.AST.Children
	if len(nodes) == 0 {
		return nil, fmt.Errorf("empty recipe")
	}

	r := &Recipe{}
	slex := shell.NewLex('\\')
	envs := make([]string, 0)

	for _, node := range nodes {
		switch strings.ToLower(node.Value) {
		case command.From:
			r.froms = append(r.froms, instruction{
				directive: strings.ToUpper(node.Value),
				value:     fromImage(node),
				line:      node.StartLine,
			})

		case command.Workdir:
			value, _, err := slex.ProcessWord(node.Next.Value, shell.EnvsFromSlice(envs))
			if err != nil {
				return nil, fmt.Errorf("line %d: processing word: %w", node.StartLine, err)
			}
			r.workdirs = append(r.workdirs, instruction{
				directive: strings.ToUpper(node.Value),
				value:     value,
				line:      node.StartLine,
			})
			r.Workdir = value

		case command.Add, command.Copy:
			step, fromFlag, err := readCopyStep(node, slex, envs)
			if err != nil {
				return nil, err
			}
			if fromFlag {
				r.copyFrom = &instruction{
					directive: strings.ToUpper(node.Value),
					line:      node.StartLine,
				}
				continue
			}
			r.Steps = append(r.Steps, step)

		case command.Run:
			r.Steps = append(r.Steps, RunStep{Command: runCommand(node)})

		case command.Env:
			// one ENV may define multiple variables; the parser emits
			// key, value and separator nodes per variable
			for kv := node.Next; kv != nil && kv.Next != nil; {
				envs = append(envs, fmt.Sprintf("%s=%s", kv.Value, kv.Next.Value))
				r.Steps = append(r.Steps, EnvStep{Key: kv.Value, Value: kv.Next.Value})
				if kv = kv.Next.Next; kv != nil {
					kv = kv.Next
				}
			}

		case command.Arg:
			// inert metadata, kept out of the step list

		default:
			r.unsupported = append(r.unsupported, instruction{
				directive: strings.ToUpper(node.Value),
				line:      node.StartLine,
			})
		}
	}

	if len(r.froms) > 0 {
		r.BaseImage = r.froms[0].value
	}
	return r, nil
}

// Validate checks the recipe's structural contract. It is pure: no
// filesystem or network access.
func (r *Recipe) Validate() error {
	switch {
	case len(r.froms) == 0:
		return fmt.Errorf("missing FROM instruction")
	case len(r.froms) > 1:
		return fmt.Errorf("multiple FROM instructions (line %d): only single stage recipes are supported", r.froms[1].line)
	}

	for _, unknown := range r.unsupported {
		return fmt.Errorf("unsupported directive %s (line %d)", unknown.directive, unknown.line)
	}
	if r.copyFrom != nil {
		return fmt.Errorf("%s --from is not supported (line %d): only single stage recipes are supported", r.copyFrom.directive, r.copyFrom.line)
	}

	if err := validateBaseImage(r.BaseImage); err != nil {
		return err
	}

	if len(r.workdirs) > 1 {
		return fmt.Errorf("multiple WORKDIR instructions (line %d)", r.workdirs[1].line)
	}
	if r.Workdir != "" && !path.IsAbs(r.Workdir) {
		return fmt.Errorf("WORKDIR %q must be an absolute path", r.Workdir)
	}

	for _, step := range r.Steps {
		switch s := step.(type) {
		case CopyStep:
			if len(s.Srcs) == 0 || s.Dest == "" {
				return fmt.Errorf("COPY requires at least one source and a destination")
			}
			for _, src := range s.Srcs {
				if isRemote(src) {
					return fmt.Errorf("remote source %q is not supported: fetching belongs to the build tooling, not the recipe", src)
				}
			}
		case RunStep:
			if strings.TrimSpace(s.Command) == "" {
				return fmt.Errorf("RUN requires a command")
			}
		}
	}

	return nil
}

// Manifest returns the first copied regular file, the dependency
// manifest by convention. Sources are resolved against the recipe's
// own directory.
func (r *Recipe) Manifest() (string, bool) {
	dir := path.Dir(r.Path)
	for _, step := range r.Steps {
		cp, ok := step.(CopyStep)
		if !ok {
			continue
		}
		for _, src := range cp.Srcs {
			fi, err := os.Stat(path.Join(dir, src))
			if err == nil && fi.Mode().IsRegular() {
				return src, true
			}
		}
	}
	return "", false
}

// Canonical renders the recipe in a normalized single-stage form, used
// as fingerprint input.
func (r *Recipe) Canonical() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "FROM %s\n", r.BaseImage)
	if r.Workdir != "" {
		fmt.Fprintf(&sb, "WORKDIR %s\n", r.Workdir)
	}
	for _, step := range r.Steps {
		switch s := step.(type) {
		case CopyStep:
			fmt.Fprintf(&sb, "COPY %s %s\n", strings.Join(s.Srcs, " "), s.Dest)
		case RunStep:
			fmt.Fprintf(&sb, "RUN %s\n", s.Command)
		case EnvStep:
			fmt.Fprintf(&sb, "ENV %s=%s\n", s.Key, s.Value)
		}
	}
	return sb.String()
}

// validateBaseImage requires a parseable, version-pinned reference.
// "scratch" is the empty filesystem, it needs no pin.
func validateBaseImage(image string) error {
	if image == "scratch" {
		return nil
	}

	ref, err := docker.ParseReference(image)
	if err != nil {
		return fmt.Errorf("parsing base image %q: %w", image, err)
	}
	if !ref.FullyQualified {
		return fmt.Errorf("base image %q must be pinned to a tag or digest", image)
	}
	return nil
}

func fromImage(node *parser.Node) string {
	if node.Next == nil {
		return ""
	}
	return node.Next.Value
}

func readCopyStep(node *parser.Node, slex *shell.Lex, envs []string) (CopyStep, bool, error) {
	if hasMultiStageFlag(node.Flags) {
		return CopyStep{}, true, nil
	}

	var paths []string
	for value := node.Next; value != nil && !strings.HasPrefix(value.Value, "#"); value = value.Next {
		p, _, err := slex.ProcessWord(value.Value, shell.EnvsFromSlice(envs))
		if err != nil {
			return CopyStep{}, false, fmt.Errorf("line %d: expanding %q: %w", node.StartLine, value.Value, err)
		}
		paths = append(paths, p)
	}

	if len(paths) < 2 {
		// kept so that Validate can name the problem
		return CopyStep{Srcs: nil, Dest: ""}, false, nil
	}

	dest := paths[len(paths)-1]
	destIsDir := strings.HasSuffix(dest, "/") || path.Base(dest) == "." || path.Base(dest) == ".."

	return CopyStep{
		Srcs:      paths[:len(paths)-1],
		Dest:      dest,
		DestIsDir: destIsDir,
	}, false, nil
}

func runCommand(node *parser.Node) string {
	if node.Attributes["json"] {
		var argv []string
		for value := node.Next; value != nil; value = value.Next {
			argv = append(argv, value.Value)
		}
		return shellquote.Join(argv...)
	}
	if node.Next == nil {
		return ""
	}
	return node.Next.Value
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func hasMultiStageFlag(flags []string) bool {
	for _, flag := range flags {
		if strings.HasPrefix(flag, "--from=") {
			return true
		}
	}
	return false
}
