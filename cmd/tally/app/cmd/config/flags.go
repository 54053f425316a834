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

import "github.com/spf13/pflag"

var (
	configFile string
	calendar   string
	global     bool
	showAll    bool
)

// AddCommonFlags adds the flags common to every config subcommand.
func AddCommonFlags(f *pflag.FlagSet) {
	f.StringVarP(&configFile, "config", "c", "", "Path to the global tally config (defaults to $HOME/.tally/config)")
	f.StringVarP(&calendar, "calendar", "k", "", "Calendar to set values for")
}

// AddSetUnsetFlags adds the flags of `config set` and `config unset`.
func AddSetUnsetFlags(f *pflag.FlagSet) {
	f.BoolVarP(&global, "global", "g", false, "Set the value for every calendar")
}

// AddListFlags adds the flags of `config list`.
func AddListFlags(f *pflag.FlagSet) {
	f.BoolVarP(&showAll, "all", "a", false, "Show the whole config, all calendars included")
}
