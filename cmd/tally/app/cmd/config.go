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
	"github.com/spf13/cobra"

	configcmd "github.com/chronotools/tally/cmd/tally/app/cmd/config"
)

// NewCmdConfig describes the `tally config` command tree.
func NewCmdConfig() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Interact with the global tally config file (defaults to $HOME/.tally/config)",
	}
	cmd.AddCommand(configcmd.NewCmdList())
	cmd.AddCommand(configcmd.NewCmdSet())
	cmd.AddCommand(configcmd.NewCmdUnset())
	return cmd
}
