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
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chronotools/tally/pkg/tally/version"
)

const defaultVersionTemplate = "{{.Version}}\n"

var versionFlags = struct {
	template string
}{}

// NewCmdVersion describes the `tally version` command.
func NewCmdVersion() *cobra.Command {
	return NewCmd("version").
		WithDescription("Print the version information").
		WithFlags(func(f *pflag.FlagSet) {
			f.StringVar(&versionFlags.template, "output", defaultVersionTemplate, "Go template to print the version with")
		}).
		NoArgs(runVersion)
}

func runVersion(_ context.Context, out io.Writer) error {
	tmpl, err := template.New("version").Parse(versionFlags.template)
	if err != nil {
		return fmt.Errorf("parsing version output template: %w", err)
	}
	return tmpl.Execute(out, version.Get())
}
