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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dario.cat/mergo"
	"github.com/mitchellh/go-homedir"

	"github.com/chronotools/tally/pkg/tally/constants"
	"github.com/chronotools/tally/pkg/tally/output/log"
	"github.com/chronotools/tally/pkg/tally/util"
	"github.com/chronotools/tally/pkg/tally/yaml"
)

var (
	// config-file content
	configFile     *GlobalConfig
	configFileErr  error
	configFileOnce sync.Once

	// merged config for one calendar
	config     *CalendarConfig
	configErr  error
	configOnce sync.Once

	ReadConfigFile       = readConfigFileCached
	GetConfigForCalendar = getConfigForCalendar
)

// readConfigFileCached reads the specified file and returns the contents
// parsed into a GlobalConfig struct.
// This function will always return the identical data from the first read.
func readConfigFileCached(filename string) (*GlobalConfig, error) {
	configFileOnce.Do(func() {
		filenameOrDefault, err := ResolveConfigFile(filename)
		if err != nil {
			configFileErr = err
			log.Entry(context.TODO()).Warnf("Could not load tally defaults. Error resolving config file %q", filenameOrDefault)
			return
		}
		configFile, configFileErr = ReadConfigFileNoCache(filenameOrDefault)
		if configFileErr == nil {
			log.Entry(context.TODO()).Infof("Loaded tally defaults from %q", filenameOrDefault)
		}
	})
	return configFile, configFileErr
}

// ResolveConfigFile determines the default config location, if the configFile argument is empty.
func ResolveConfigFile(configFile string) (string, error) {
	if configFile == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", fmt.Errorf("retrieving home directory: %w", err)
		}
		configFile = filepath.Join(home, constants.ConfigDir, constants.DefaultConfigFile)
	}
	return configFile, util.VerifyOrCreateFile(configFile)
}

// ReadConfigFileNoCache reads the given config yaml file and unmarshals the contents.
// Unlike ReadConfigFile it always re-reads the file; `tally config set`
// depends on that to see its own writes within one process.
func ReadConfigFileNoCache(configFile string) (*GlobalConfig, error) {
	contents, err := os.ReadFile(configFile)
	if err != nil {
		log.Entry(context.TODO()).Warnf("Could not load tally defaults. Error encountered while reading file %q", configFile)
		return nil, fmt.Errorf("reading global config: %w", err)
	}
	config := GlobalConfig{}
	if err := yaml.Unmarshal(contents, &config); err != nil {
		log.Entry(context.TODO()).Warnf("Could not load tally defaults. Error encountered while unmarshalling the contents of file %q", configFile)
		return nil, fmt.Errorf("unmarshalling global tally config: %w", err)
	}
	return &config, nil
}

// getConfigForCalendar returns the config for the given calendar, with
// unset values filled in from the global section. An empty calendar
// resolves to the configured default.
func getConfigForCalendar(configFile string, calendar string) (*CalendarConfig, error) {
	configOnce.Do(func() {
		cfg, err := ReadConfigFile(configFile)
		if err != nil {
			configErr = err
			return
		}
		config, configErr = getConfigForCalendarWithGlobalDefaults(cfg, calendar)
	})

	return config, configErr
}

func getConfigForCalendarWithGlobalDefaults(cfg *GlobalConfig, calendar string) (*CalendarConfig, error) {
	if calendar == "" {
		calendar = DefaultCalendar(cfg)
	}

	var mergedConfig CalendarConfig
	for _, calendarCfg := range cfg.Calendars {
		if calendarCfg.Calendar == calendar {
			log.Entry(context.TODO()).Debugf("found config for calendar %q", calendar)
			mergedConfig = *calendarCfg
		}
	}
	// in case there was no entry for this calendar in cfg.Calendars
	mergedConfig.Calendar = calendar

	if cfg.Global != nil {
		// if values are unset for the calendar, retrieve
		// the global config and use its values as a fallback.
		if err := mergo.Merge(&mergedConfig, cfg.Global, mergo.WithAppendSlice); err != nil {
			return nil, fmt.Errorf("merging calendar-specific and global config: %w", err)
		}
		mergedConfig.Calendar = calendar
	}
	return &mergedConfig, nil
}

// DefaultCalendar returns the calendar used when none is given on the
// command line, the global `calendar` setting or "primary".
func DefaultCalendar(cfg *GlobalConfig) string {
	if cfg.Global != nil && cfg.Global.Calendar != "" {
		return cfg.Global.Calendar
	}
	return constants.DefaultCalendarID
}

func GetDefaultRepo(configFile string, cliValue *string) (string, error) {
	// CLI flag takes precedence.
	if cliValue != nil {
		return *cliValue, nil
	}
	cfg, err := GetConfigForCalendar(configFile, "")
	if err != nil {
		return "", err
	}
	if cfg.DefaultRepo != "" {
		log.Entry(context.TODO()).Infof("Using default-repo=%s from config", cfg.DefaultRepo)
	}
	return cfg.DefaultRepo, nil
}

func GetInsecureRegistries(configFile string) ([]string, error) {
	cfg, err := GetConfigForCalendar(configFile, "")
	if err != nil {
		return nil, err
	}
	if len(cfg.InsecureRegistries) > 0 {
		log.Entry(context.TODO()).Infof("Using insecure-registries=%v from config", cfg.InsecureRegistries)
	}
	return cfg.InsecureRegistries, nil
}

func GetTagPolicy(configFile string) (string, error) {
	cfg, err := GetConfigForCalendar(configFile, "")
	if err != nil {
		return "", err
	}
	if cfg.TagPolicy != "" {
		log.Entry(context.TODO()).Infof("Using tag-policy=%s from config", cfg.TagPolicy)
		return cfg.TagPolicy, nil
	}
	return constants.DefaultBakeTagPolicy, nil
}

func GetFirstTagOnly(configFile string) (*bool, error) {
	cfg, err := GetConfigForCalendar(configFile, "")
	if err != nil {
		return nil, err
	}
	if cfg.FirstTagOnly != nil {
		log.Entry(context.TODO()).Infof("Using first-tag-only=%t from config", *cfg.FirstTagOnly)
	}
	return cfg.FirstTagOnly, nil
}

func GetConcurrency(configFile string) (int, error) {
	cfg, err := GetConfigForCalendar(configFile, "")
	if err != nil {
		return 0, err
	}
	if cfg.Concurrency != nil {
		log.Entry(context.TODO()).Infof("Using concurrency=%d from config", *cfg.Concurrency)
		return *cfg.Concurrency, nil
	}
	return constants.DefaultAuditConcurrency, nil
}

// CredentialsFile returns the OAuth client secrets location for the given
// merged config, defaulting to ~/.tally/credentials.json.
func CredentialsFile(cfg *CalendarConfig) (string, error) {
	if cfg != nil && cfg.CredentialsFile != "" {
		return cfg.CredentialsFile, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("retrieving home directory: %w", err)
	}
	return filepath.Join(home, constants.ConfigDir, constants.DefaultCredentialsFile), nil
}

// TokenFile returns where the OAuth token is cached for the given merged
// config, defaulting to ~/.tally/token.json.
func TokenFile(cfg *CalendarConfig) (string, error) {
	if cfg != nil && cfg.TokenFile != "" {
		return cfg.TokenFile, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("retrieving home directory: %w", err)
	}
	return filepath.Join(home, constants.ConfigDir, constants.DefaultTokenFile), nil
}

func WriteFullConfig(configFile string, cfg *GlobalConfig) error {
	contents, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	configFileOrDefault, err := ResolveConfigFile(configFile)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFileOrDefault, contents, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
