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
	"fmt"
	"io"
	"strings"

	"github.com/heroku/color"
)

// DefaultColorCode is the default color for output. Blue by default.
const DefaultColorCode = 34

var (
	Red    = Color{color: color.New(color.FgRed)}
	Blue   = Color{color: color.New(color.FgBlue)}
	Green  = Color{color: color.New(color.FgGreen)}
	Yellow = Color{color: color.New(color.FgYellow)}
	Purple = Color{color: color.New(color.FgHiMagenta)}
	Cyan   = Color{color: color.New(color.FgHiCyan)}
	White  = Color{color: color.New(color.FgWhite)}

	// None uses the default terminal colors.
	None = Color{}

	// Default is the color headers are printed in. SetupColors replaces
	// it with the configured color code.
	Default = Blue
)

// Color can print a string in a given color.
type Color struct {
	color *color.Color
}

// Fprintln outputs the result to out, followed by a newline.
func (c Color) Fprintln(out io.Writer, a ...interface{}) (n int, err error) {
	if c.color == nil || !IsColorable(out) {
		return fmt.Fprintln(out, a...)
	}

	return fmt.Fprintln(out, c.color.Sprint(strings.TrimSuffix(fmt.Sprintln(a...), "\n")))
}

// Fprintf applies formats according to the format specifier (and the optional
// interfaces provided), wraps the result in the color ANSI escape codes, and
// outputs the result to out.
func (c Color) Fprintf(out io.Writer, format string, a ...interface{}) (n int, err error) {
	if c.color == nil || !IsColorable(out) {
		return fmt.Fprintf(out, format, a...)
	}

	return fmt.Fprint(out, c.color.Sprintf(format, a...))
}

// Sprintf wraps the operands in the color escape codes when the color is
// set.
func (c Color) Sprintf(format string, a ...interface{}) string {
	if c.color == nil {
		return fmt.Sprintf(format, a...)
	}

	return c.color.Sprintf(format, a...)
}
