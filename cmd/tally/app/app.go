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

package app

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/chronotools/tally/cmd/tally/app/cmd"
)

// Run executes the tally command line. Ctrl-C cancels the root context
// so that long operations like watch mode shut down cleanly.
func Run(out, stderr io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := cmd.NewTallyCommand(out, stderr)
	return c.ExecuteContext(ctx)
}
