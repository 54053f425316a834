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

package config

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chronotools/tally/pkg/tally/config"
	"github.com/chronotools/tally/pkg/tally/yaml"
)

// NewCmdList describes the `tally config list` command.
func NewCmdList() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all values set in the global tally config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.OutOrStdout())
		},
	}
	AddCommonFlags(cmd.Flags())
	AddListFlags(cmd.Flags())
	return cmd
}

func runList(out io.Writer) error {
	var toPrint interface{}

	if showAll {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if cfg.Global == nil && len(cfg.Calendars) == 0 {
			return nil
		}
		toPrint = cfg
	} else {
		cfg, err := getConfigForCalendarOrDefault()
		if err != nil {
			return err
		}
		toPrint = cfg
	}

	contents, err := yaml.Marshal(toPrint)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	configFileOrDefault, err := config.ResolveConfigFile(configFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "tally config: %s\n", configFileOrDefault)
	out.Write(contents)
	return nil
}
