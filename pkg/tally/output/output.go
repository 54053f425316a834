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

package output

import (
	"context"
	"io"
	"os"

	"github.com/heroku/color"
	colorable "github.com/mattn/go-colorable"

	"github.com/chronotools/tally/pkg/tally/output/log"
	"github.com/chronotools/tally/pkg/tally/util"
)

type colorableWriter struct {
	io.Writer
}

// SetupColors wraps the given writer and enables or disables coloring
// globally. Color output is used when out is a color terminal or when
// forceColors is set, the way a CI run forces it.
func SetupColors(ctx context.Context, out io.Writer, defaultColor int, forceColors bool) io.Writer {
	_, isTerm := util.IsTerminal(out)

	supportsColor, err := util.SupportsColor(ctx)
	if err != nil {
		log.Entry(ctx).Debugf("error checking for color support: %v", err)
	}

	useColors := (isTerm && supportsColor) || forceColors
	if useColors {
		// Enables ANSI sequence processing on Windows consoles. The
		// value is updated only when enablement succeeds.
		useColors = false
		colorable.EnableColorsStdout(&useColors)
	}

	color.Disable(!useColors)

	Default = Color{color: color.New(color.Attribute(defaultColor))}

	if useColors {
		if f, ok := out.(*os.File); ok {
			return &colorableWriter{colorable.NewColorable(f)}
		}
		return &colorableWriter{out}
	}

	return out
}

// IsColorable tells whether out went through SetupColors with colors
// enabled.
func IsColorable(out io.Writer) bool {
	_, ok := out.(*colorableWriter)
	return ok
}
