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

	"github.com/spf13/cobra"

	"github.com/chronotools/tally/pkg/tally/config"
	"github.com/chronotools/tally/pkg/tally/constants"
	tallyerrors "github.com/chronotools/tally/pkg/tally/errors"
	"github.com/chronotools/tally/pkg/tally/gcal"
	"github.com/chronotools/tally/pkg/tally/output"
)

// NewCmdAuth describes the `tally auth` command tree.
func NewCmdAuth() *cobra.Command {
	cmd := NewCmd("auth").
		WithDescription("Manage calendar credentials").
		NoArgs(func(context.Context, io.Writer) error {
			return fmt.Errorf("use one of: login, status, revoke")
		})

	cmd.AddCommand(
		NewCmd("login").
			WithDescription("Log in to the calendar and cache the OAuth token").
			NoArgs(runAuthLogin),
		NewCmd("status").
			WithDescription("Show whether a usable token is cached").
			NoArgs(runAuthStatus),
		NewCmd("revoke").
			WithDescription("Delete the cached token").
			NoArgs(runAuthRevoke),
	)
	return cmd
}

func authConfig() (*config.CalendarConfig, error) {
	cfg, err := config.GetConfigForCalendar(configFile, "")
	if err != nil {
		return nil, tallyerrors.NewProblem(constants.Auth, 0, err)
	}
	return cfg, nil
}

func runAuthLogin(ctx context.Context, out io.Writer) error {
	cfg, err := authConfig()
	if err != nil {
		return err
	}
	if err := gcal.Login(ctx, out, cfg); err != nil {
		return tallyerrors.NewProblem(constants.Auth, 0, err)
	}
	output.Green.Fprintln(out, "Logged in.")
	return nil
}

func runAuthStatus(_ context.Context, out io.Writer) error {
	cfg, err := authConfig()
	if err != nil {
		return err
	}
	status, err := gcal.TokenStatus(cfg)
	if err != nil {
		return tallyerrors.NewProblem(constants.Auth, 0, err)
	}

	switch {
	case !status.LoggedIn:
		output.Yellow.Fprintf(out, "Not logged in: no token at %s\n", status.TokenFile)
	case !status.Valid:
		output.Yellow.Fprintf(out, "Token at %s expired %s, log in again\n", status.TokenFile, status.Expiry.Format("2006-01-02 15:04"))
	default:
		output.Green.Fprintf(out, "Logged in: token at %s\n", status.TokenFile)
	}
	return nil
}

func runAuthRevoke(_ context.Context, out io.Writer) error {
	cfg, err := authConfig()
	if err != nil {
		return err
	}
	tokenFile, err := gcal.Revoke(cfg)
	if err != nil {
		return tallyerrors.NewProblem(constants.Auth, 0, err)
	}
	fmt.Fprintf(out, "Removed token at %s\n", tokenFile)
	return nil
}
