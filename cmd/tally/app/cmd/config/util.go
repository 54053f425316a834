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
	"github.com/chronotools/tally/pkg/tally/config"
)

func readConfig() (*config.GlobalConfig, error) {
	configFileOrDefault, err := config.ResolveConfigFile(configFile)
	if err != nil {
		return nil, err
	}
	return config.ReadConfigFileNoCache(configFileOrDefault)
}

// resolveCalendar fills in the calendar flag from the config file's
// default when neither --calendar nor --global was given.
func resolveCalendar() error {
	if global || calendar != "" {
		return nil
	}
	cfg, err := readConfig()
	if err != nil {
		return err
	}
	calendar = config.DefaultCalendar(cfg)
	return nil
}

// getConfigForCalendarOrDefault returns the section of the config file
// `set` and `unset` operate on: the global section with --global, the
// entry of the selected calendar otherwise. A copy is returned, callers
// persist changes through writeConfig.
func getConfigForCalendarOrDefault() (*config.CalendarConfig, error) {
	if err := resolveCalendar(); err != nil {
		return nil, err
	}
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	if global {
		if cfg.Global == nil {
			return &config.CalendarConfig{}, nil
		}
		copied := *cfg.Global
		return &copied, nil
	}
	for _, calendarCfg := range cfg.Calendars {
		if calendarCfg.Calendar == calendar {
			copied := *calendarCfg
			return &copied, nil
		}
	}
	return &config.CalendarConfig{Calendar: calendar}, nil
}
