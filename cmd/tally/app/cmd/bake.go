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
	"strings"
	"text/template"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chronotools/tally/pkg/tally/bake"
	"github.com/chronotools/tally/pkg/tally/config"
	"github.com/chronotools/tally/pkg/tally/constants"
	"github.com/chronotools/tally/pkg/tally/docker"
	tallyerrors "github.com/chronotools/tally/pkg/tally/errors"
	"github.com/chronotools/tally/pkg/tally/output"
	"github.com/chronotools/tally/pkg/tally/recipe"
	"github.com/chronotools/tally/pkg/tally/tag"
)

var bakeFlags = struct {
	recipePath         string
	buildContext       string
	tag                string
	tagPolicy          string
	dateTimeFormat     string
	dateTimeTimezone   string
	envTemplate        string
	builder            string
	buildArgs          []string
	defaultRepo        string
	insecureRegistries []string
	push               bool
	force              bool
	pull               bool
	skipBaseCheck      bool
	watch              bool
	quiet              bool
	outputTemplate     string
	gcbProject         string
	gcbBucket          string
	gcbTimeout         string
}{}

// NewCmdBake describes the `tally bake` command.
func NewCmdBake() *cobra.Command {
	return NewCmd("bake").
		WithDescription("Bake a container image from a build recipe").
		WithLongDescription("Bake parses and validates the recipe, stages its build context and hands both to external build tooling: the local Docker daemon, or Google Cloud Build. The baked image is tagged according to the tag policy; identical inputs always produce an image with the same fingerprint.").
		WithExample("bake the recipe in the current directory", "bake gcr.io/my-proj/app").
		WithExample("bake and push with an explicit tag", "bake gcr.io/my-proj/app --tag v1 --push").
		WithExample("bake on Google Cloud Build", "bake gcr.io/my-proj/app --builder gcb").
		WithExample("rebake on every change", "bake gcr.io/my-proj/app --watch").
		WithFlags(func(f *pflag.FlagSet) {
			f.StringVarP(&bakeFlags.recipePath, "filename", "f", constants.DefaultRecipePath, "Path to the recipe, relative to the context directory")
			f.StringVar(&bakeFlags.buildContext, "context", ".", "Directory the recipe's COPY sources are resolved against")
			f.StringVarP(&bakeFlags.tag, "tag", "t", "", "Tag for the baked image, bypassing the tag policy")
			f.StringVar(&bakeFlags.tagPolicy, "tag-policy", "", fmt.Sprintf("Tag policy: one of %s (defaults to the configured policy)", strings.Join(constants.AllTagPolicies, ", ")))
			f.StringVar(&bakeFlags.dateTimeFormat, "tag-datetime-format", "", "Go time format for the dateTime tag policy")
			f.StringVar(&bakeFlags.dateTimeTimezone, "tag-datetime-timezone", "", "Timezone for the dateTime tag policy")
			f.StringVar(&bakeFlags.envTemplate, "tag-template", "", "Template for the envTemplate tag policy")
			f.StringVar(&bakeFlags.builder, "builder", "local", "Build backend: local or gcb")
			f.StringArrayVar(&bakeFlags.buildArgs, "build-arg", nil, "ARG values passed to the build tooling, as key=value")
			f.StringVarP(&bakeFlags.defaultRepo, "default-repo", "d", "", "Default repository to prefix unqualified image names with (overrides global config)")
			f.StringArrayVar(&bakeFlags.insecureRegistries, "insecure-registry", nil, "Registries reached over plain HTTP")
			f.BoolVar(&bakeFlags.push, "push", false, "Push the baked image to its registry")
			f.BoolVar(&bakeFlags.force, "force", false, "Bake even when an image with the same fingerprint exists")
			f.BoolVar(&bakeFlags.pull, "pull", false, "Pull the base image before baking (local builder only)")
			f.BoolVar(&bakeFlags.skipBaseCheck, "skip-base-check", false, "Skip resolving the base image remotely before baking")
			f.BoolVarP(&bakeFlags.watch, "watch", "w", false, "Rebake whenever a file the recipe consumes changes")
			f.BoolVarP(&bakeFlags.quiet, "quiet", "q", false, "Suppress the build output, print only the result")
			f.StringVarP(&bakeFlags.outputTemplate, "output", "o", "{{.Result}}", "Used with --quiet: Go template the result is printed with")
			f.StringVar(&bakeFlags.gcbProject, "gcb-project", "", "GCP project the Cloud Build build runs in (defaults to the image's project)")
			f.StringVar(&bakeFlags.gcbBucket, "gcb-bucket", "", "GCS bucket the build context is staged in")
			f.StringVar(&bakeFlags.gcbTimeout, "gcb-timeout", "", "Cloud Build timeout, e.g. 600s")
		}).
		ExactArgs(1, runBake)
}

// bakeOutput is what the --output template renders.
type bakeOutput struct {
	ImageName string
	Tag       string
	Result    string
}

func runBake(ctx context.Context, out io.Writer, args []string) error {
	buildOut := out
	var outputTemplate *template.Template
	if bakeFlags.quiet {
		buildOut = io.Discard

		var err error
		outputTemplate, err = template.New("output").Parse(bakeFlags.outputTemplate)
		if err != nil {
			return tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("parsing output template: %w", err))
		}
	}

	imageName, err := resolveImageName(args[0])
	if err != nil {
		return tallyerrors.NewProblem(constants.Bake, 0, err)
	}

	a := &bake.Artifact{
		Workspace:  bakeFlags.buildContext,
		RecipePath: bakeFlags.recipePath,
		ImageName:  imageName,
		BuildArgs:  parseBuildArgs(bakeFlags.buildArgs),
	}

	insecureRegistries, err := resolveInsecureRegistries()
	if err != nil {
		return tallyerrors.NewProblem(constants.Bake, 0, err)
	}

	builder, err := newBuilder(ctx, insecureRegistries)
	if err != nil {
		return err
	}

	tagger, err := newTagger(a)
	if err != nil {
		return tallyerrors.NewProblem(constants.Bake, 0, err)
	}

	generateTag := func(ctx context.Context) (string, error) {
		if bakeFlags.tag != "" {
			return imageName + ":" + bakeFlags.tag, nil
		}
		t, err := tagger.GenerateTag(ctx, tag.Image{Name: imageName, Workspace: a.Workspace})
		if err != nil {
			return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("generating tag: %w", err))
		}
		return imageName + ":" + t, nil
	}

	if bakeFlags.watch {
		return bake.Watch(ctx, out, builder, a, generateTag)
	}

	tagged, err := generateTag(ctx)
	if err != nil {
		return err
	}

	res, err := builder.Build(ctx, buildOut, a, tagged)
	if err != nil {
		return err
	}

	if bakeFlags.quiet {
		if err := outputTemplate.Execute(out, bakeOutput{ImageName: imageName, Tag: tagged, Result: res}); err != nil {
			return tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("executing output template: %w", err))
		}
		fmt.Fprintln(out)
	} else {
		output.Green.Fprintf(out, "Baked %s as %s\n", tagged, res)
	}
	return nil
}

func resolveImageName(image string) (string, error) {
	var cliValue *string
	if bakeFlags.defaultRepo != "" {
		cliValue = &bakeFlags.defaultRepo
	}
	defaultRepo, err := config.GetDefaultRepo(configFile, cliValue)
	if err != nil {
		return "", fmt.Errorf("getting default repo: %w", err)
	}
	return docker.SubstituteDefaultRepo(image, defaultRepo)
}

func resolveInsecureRegistries() (map[string]bool, error) {
	configured, err := config.GetInsecureRegistries(configFile)
	if err != nil {
		return nil, fmt.Errorf("getting insecure registries: %w", err)
	}

	registries := map[string]bool{}
	for _, reg := range configured {
		registries[reg] = true
	}
	for _, reg := range bakeFlags.insecureRegistries {
		registries[reg] = true
	}
	return registries, nil
}

func newBuilder(ctx context.Context, insecureRegistries map[string]bool) (bake.Builder, error) {
	opts := bake.Options{
		Push:               bakeFlags.push,
		Force:              bakeFlags.force,
		Pull:               bakeFlags.pull,
		SkipBaseCheck:      bakeFlags.skipBaseCheck,
		InsecureRegistries: insecureRegistries,
	}

	switch bakeFlags.builder {
	case "local":
		// forceRemove leaves no intermediate container behind when a
		// step fails.
		daemon, err := docker.NewAPIClient(ctx, true, insecureRegistries)
		if err != nil {
			return nil, tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("getting docker client: %w", err))
		}
		return bake.NewLocalBuilder(daemon, opts), nil

	case "gcb":
		cfg, err := config.GetConfigForCalendar(configFile, "")
		if err != nil {
			return nil, tallyerrors.NewProblem(constants.Bake, 0, err)
		}
		gcbConfig := bake.GCBConfig{
			ProjectID: firstNonEmpty(bakeFlags.gcbProject, cfg.GCBProjectID),
			Bucket:    firstNonEmpty(bakeFlags.gcbBucket, cfg.GCBBucket),
			Timeout:   firstNonEmpty(bakeFlags.gcbTimeout, cfg.GCBTimeout),
		}
		return bake.NewGCBBuilder(gcbConfig, opts), nil

	default:
		return nil, tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("unknown builder %q: expected local or gcb", bakeFlags.builder))
	}
}

func newTagger(a *bake.Artifact) (tag.Tagger, error) {
	policy := bakeFlags.tagPolicy
	if policy == "" {
		configured, err := config.GetTagPolicy(configFile)
		if err != nil {
			return nil, err
		}
		policy = configured
	}

	switch policy {
	case constants.TagPolicyFingerprint:
		return tag.NewFingerprintTagger(artifactFingerprinter(a)), nil
	case constants.TagPolicyGitCommit:
		return tag.NewGitCommitTagger(), nil
	case constants.TagPolicyDateTime:
		return tag.NewDateTimeTagger(bakeFlags.dateTimeFormat, bakeFlags.dateTimeTimezone), nil
	case constants.TagPolicyEnvTemplate:
		if bakeFlags.envTemplate == "" {
			return nil, fmt.Errorf("the envTemplate tag policy requires --tag-template")
		}
		return tag.NewEnvTemplateTagger(bakeFlags.envTemplate)
	default:
		return nil, fmt.Errorf("unknown tag policy %q: expected one of %s", policy, strings.Join(constants.AllTagPolicies, ", "))
	}
}

// artifactFingerprinter adapts the bake fingerprint to the tagger
// interface, so that the fingerprint policy and the bake cache always
// agree on the digest.
func artifactFingerprinter(a *bake.Artifact) tag.Fingerprinter {
	return func(ctx context.Context, image tag.Image) (digest.Digest, error) {
		recipePath, err := a.NormalizeRecipePath()
		if err != nil {
			return "", err
		}
		r, err := recipe.Parse(recipePath)
		if err != nil {
			return "", err
		}
		return bake.Fingerprint(a, r)
	}
}

func parseBuildArgs(args []string) map[string]*string {
	if len(args) == 0 {
		return nil
	}

	buildArgs := map[string]*string{}
	for _, arg := range args {
		kv := strings.SplitN(arg, "=", 2)
		if len(kv) == 2 {
			v := kv[1]
			buildArgs[kv[0]] = &v
		} else {
			buildArgs[kv[0]] = nil
		}
	}
	return buildArgs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
