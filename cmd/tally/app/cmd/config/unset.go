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
)

// NewCmdUnset describes the `tally config unset` command.
func NewCmdUnset() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unset",
		Short: "Unset a value in the global tally config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveCalendar(); err != nil {
				return err
			}
			if err := unsetConfigValue(args[0]); err != nil {
				return err
			}
			logUnsetConfigForUser(cmd.OutOrStdout(), args[0])
			return nil
		},
	}
	AddCommonFlags(cmd.Flags())
	AddSetUnsetFlags(cmd.Flags())
	return cmd
}

func unsetConfigValue(name string) error {
	return setConfigValue(name, "")
}

func logUnsetConfigForUser(out io.Writer, key string) {
	if global {
		fmt.Fprintf(out, "unset global value %s\n", key)
	} else {
		fmt.Fprintf(out, "unset value %s for calendar %s\n", key, calendar)
	}
}
