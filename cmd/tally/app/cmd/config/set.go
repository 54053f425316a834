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
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chronotools/tally/pkg/tally/config"
)

// NewCmdSet describes the `tally config set` command.
func NewCmdSet() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a value in the global tally config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveCalendar(); err != nil {
				return err
			}
			if err := setConfigValue(args[0], args[1]); err != nil {
				return err
			}
			logSetConfigForUser(cmd.OutOrStdout(), args[0], args[1])
			return nil
		},
	}
	AddCommonFlags(cmd.Flags())
	AddSetUnsetFlags(cmd.Flags())
	return cmd
}

func setConfigValue(name string, value string) error {
	cfg, err := getConfigForCalendarOrDefault()
	if err != nil {
		return err
	}

	fieldIdx, err := getFieldIndex(cfg, name)
	if err != nil {
		return err
	}

	field := reflect.Indirect(reflect.ValueOf(cfg)).FieldByIndex(fieldIdx)
	val, err := parseAsType(value, field)
	if err != nil {
		return fmt.Errorf("%s is not a valid value for field %s", value, name)
	}

	reflect.ValueOf(cfg).Elem().FieldByIndex(fieldIdx).Set(val)

	return writeConfig(cfg)
}

func getFieldIndex(cfg *config.CalendarConfig, name string) ([]int, error) {
	t := reflect.TypeOf(*cfg)
	for i := 0; i < t.NumField(); i++ {
		fieldType := t.Field(i)
		for _, tag := range strings.Split(fieldType.Tag.Get("yaml"), ",") {
			if tag == name {
				return fieldType.Index, nil
			}
		}
	}
	return nil, fmt.Errorf("%s is not a valid config field", name)
}

func parseAsType(value string, field reflect.Value) (reflect.Value, error) {
	fieldType := field.Type()
	switch fieldType.String() {
	case "string":
		return reflect.ValueOf(value), nil
	case "[]string":
		if value == "" {
			return reflect.Zero(fieldType), nil
		}
		return reflect.Append(field, reflect.ValueOf(value)), nil
	case "*bool":
		if value == "" {
			return reflect.Zero(fieldType), nil
		}
		valBase, err := strconv.ParseBool(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(&valBase), nil
	case "*int":
		if value == "" {
			return reflect.Zero(fieldType), nil
		}
		valBase, err := strconv.Atoi(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(&valBase), nil
	default:
		return reflect.Value{}, fmt.Errorf("unsupported type: %s", fieldType)
	}
}

func writeConfig(cfg *config.CalendarConfig) error {
	fullConfig, err := readConfig()
	if err != nil {
		return err
	}
	if global {
		fullConfig.Global = cfg
	} else {
		found := false
		for i, calendarCfg := range fullConfig.Calendars {
			if calendarCfg.Calendar == calendar {
				fullConfig.Calendars[i] = cfg
				found = true
			}
		}
		if !found {
			fullConfig.Calendars = append(fullConfig.Calendars, cfg)
		}
	}
	return config.WriteFullConfig(configFile, fullConfig)
}

func logSetConfigForUser(out io.Writer, key string, value string) {
	if global {
		fmt.Fprintf(out, "set global value %s to %s\n", key, value)
	} else {
		fmt.Fprintf(out, "set value %s to %s for calendar %s\n", key, value, calendar)
	}
}
