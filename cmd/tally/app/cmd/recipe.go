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

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chronotools/tally/pkg/tally/bake"
	"github.com/chronotools/tally/pkg/tally/constants"
	tallyerrors "github.com/chronotools/tally/pkg/tally/errors"
	"github.com/chronotools/tally/pkg/tally/output"
	"github.com/chronotools/tally/pkg/tally/recipe"
)

var recipeFlags = struct {
	recipePath   string
	buildContext string
}{}

// NewCmdRecipe describes the `tally recipe` command tree.
func NewCmdRecipe() *cobra.Command {
	cmd := NewCmd("recipe").
		WithDescription("Inspect a build recipe without baking it").
		NoArgs(func(_ context.Context, out io.Writer) error {
			return fmt.Errorf("use one of: validate, deps, fingerprint, manifest")
		})

	cmd.AddCommand(
		NewCmd("validate").
			WithDescription("Parse and validate the recipe").
			WithFlags(addRecipeFlags).
			NoArgs(runRecipeValidate),
		NewCmd("deps").
			WithDescription("List the files the recipe stages into its build context").
			WithFlags(addRecipeFlags).
			NoArgs(runRecipeDeps),
		NewCmd("fingerprint").
			WithDescription("Print the fingerprint of the recipe and its staged files").
			WithFlags(addRecipeFlags).
			NoArgs(runRecipeFingerprint),
		NewCmd("manifest").
			WithDescription("Parse and validate the recipe's dependency manifest").
			WithFlags(addRecipeFlags).
			NoArgs(runRecipeManifest),
	)
	return cmd
}

func addRecipeFlags(f *pflag.FlagSet) {
	f.StringVarP(&recipeFlags.recipePath, "filename", "f", constants.DefaultRecipePath, "Path to the recipe, relative to the context directory")
	f.StringVar(&recipeFlags.buildContext, "context", ".", "Directory the recipe's COPY sources are resolved against")
}

func recipeArtifact() *bake.Artifact {
	return &bake.Artifact{
		Workspace:  recipeFlags.buildContext,
		RecipePath: recipeFlags.recipePath,
	}
}

func parseRecipe() (*bake.Artifact, *recipe.Recipe, error) {
	a := recipeArtifact()
	recipePath, err := a.NormalizeRecipePath()
	if err != nil {
		return nil, nil, tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	r, err := recipe.Parse(recipePath)
	if err != nil {
		return nil, nil, tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	return a, r, nil
}

func runRecipeValidate(_ context.Context, out io.Writer) error {
	_, r, err := parseRecipe()
	if err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("invalid recipe %q: %w", r.Path, err))
	}

	output.Green.Fprintf(out, "%s is a valid recipe\n", r.Path)
	return nil
}

func runRecipeDeps(_ context.Context, out io.Writer) error {
	a, r, err := parseRecipe()
	if err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("invalid recipe %q: %w", r.Path, err))
	}

	deps, err := bake.Dependencies(a, r)
	if err != nil {
		return tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	for _, dep := range deps {
		fmt.Fprintln(out, dep)
	}
	return nil
}

func runRecipeFingerprint(_ context.Context, out io.Writer) error {
	a, r, err := parseRecipe()
	if err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("invalid recipe %q: %w", r.Path, err))
	}

	fingerprint, err := bake.Fingerprint(a, r)
	if err != nil {
		return tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	fmt.Fprintln(out, fingerprint.String())
	return nil
}

func runRecipeManifest(_ context.Context, out io.Writer) error {
	_, r, err := parseRecipe()
	if err != nil {
		return err
	}

	name, found := r.Manifest()
	if !found {
		return tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("recipe %q copies no dependency manifest", r.Path))
	}

	m, err := recipe.ParseManifest(filepath.Join(filepath.Dir(r.Path), name))
	if err != nil {
		return tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	if err := m.Validate(); err != nil {
		return tallyerrors.NewProblem(constants.Bake, 0, err)
	}

	for _, req := range m.Requirements {
		fmt.Fprintln(out, req.String())
	}
	return nil
}
