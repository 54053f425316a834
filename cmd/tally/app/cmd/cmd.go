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

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chronotools/tally/pkg/tally/constants"
	"github.com/chronotools/tally/pkg/tally/output"
	"github.com/chronotools/tally/pkg/tally/output/log"
	"github.com/chronotools/tally/pkg/tally/version"
)

var (
	v            string
	defaultColor int
	forceColors  bool
	interactive  bool

	// configFile is the global tally config, not the recipe
	configFile string
)

// NewTallyCommand creates the `tally` root command.
func NewTallyCommand(out, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tally",
		Short: "A tool that bakes container images from build recipes and tallies calendar time",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := SetUpLogs(stderr, v); err != nil {
				return err
			}

			cmd.Root().SilenceUsage = true
			cmd.Root().SilenceErrors = true

			log.Entry(context.TODO()).Infof("tally %+v", version.Get())

			cmd.Root().SetOutput(output.SetupColors(cmd.Context(), out, defaultColor, forceColors))
			return nil
		},
	}

	rootCmd.AddCommand(NewCmdBake())
	rootCmd.AddCommand(NewCmdRecipe())
	rootCmd.AddCommand(NewCmdAudit())
	rootCmd.AddCommand(NewCmdAuth())
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdVersion())
	rootCmd.AddCommand(NewCmdCompletion())

	rootCmd.PersistentFlags().StringVarP(&v, "verbosity", "v", constants.DefaultLogLevel.String(), "Log level (debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().IntVar(&defaultColor, "color", int(output.DefaultColorCode), "Specify the default output color in ANSI escape codes")
	rootCmd.PersistentFlags().BoolVar(&forceColors, "force-colors", false, "Always print color codes (hidden)")
	rootCmd.PersistentFlags().BoolVar(&interactive, "interactive", true, "Allow user prompts for more information")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "File for global configurations (defaults to $HOME/.tally/config)")
	rootCmd.PersistentFlags().MarkHidden("force-colors")

	rootCmd.SetOut(out)
	return rootCmd
}

// SetUpLogs sets the log output and level.
func SetUpLogs(stdErr io.Writer, level string) error {
	logrus.SetOutput(stdErr)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	logrus.SetLevel(lvl)
	return nil
}
