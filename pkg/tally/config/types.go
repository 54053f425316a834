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

// GlobalConfig is the top level struct of the tally config file at
// ~/.tally/config. Settings can be scoped to one calendar or applied
// to every calendar through the global section.
type GlobalConfig struct {
	Global    *CalendarConfig   `yaml:"global,omitempty"`
	Calendars []*CalendarConfig `yaml:"calendars,omitempty"`
}

// CalendarConfig holds the settings for one calendar, or the defaults
// for all of them when used as the global section.
type CalendarConfig struct {
	Calendar           string   `yaml:"calendar,omitempty"`
	Timezone           string   `yaml:"timezone,omitempty"`
	CredentialsFile    string   `yaml:"credentials-file,omitempty"`
	TokenFile          string   `yaml:"token-file,omitempty"`
	FirstTagOnly       *bool    `yaml:"first-tag-only,omitempty"`
	Concurrency        *int     `yaml:"concurrency,omitempty"`
	DefaultRepo        string   `yaml:"default-repo,omitempty"`
	TagPolicy          string   `yaml:"tag-policy,omitempty"`
	InsecureRegistries []string `yaml:"insecure-registries,omitempty"`
	GCBProjectID       string   `yaml:"gcb-project-id,omitempty"`
	GCBBucket          string   `yaml:"gcb-bucket,omitempty"`
	GCBTimeout         string   `yaml:"gcb-timeout,omitempty"`
}
