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

package errors

import (
	"errors"

	"github.com/chronotools/tally/pkg/tally/constants"
)

// ExitCoder is implemented by errors that carry the status the process
// should exit with.
type ExitCoder interface {
	error
	ExitCode() int
}

// Problem tags a failure with the phase it occurred in and the exit
// status it should produce. A zero Code exits with 1.
type Problem struct {
	Phase constants.Phase
	Code  int
	Err   error
}

func NewProblem(phase constants.Phase, code int, err error) Problem {
	return Problem{
		Phase: phase,
		Code:  code,
		Err:   err,
	}
}

func (p Problem) Error() string {
	return p.Err.Error()
}

func (p Problem) Unwrap() error {
	return p.Err
}

func (p Problem) ExitCode() int {
	if p.Code == 0 {
		return 1
	}
	return p.Code
}

// ExitCode maps an error to a process exit status. Errors that don't
// implement ExitCoder exit with 1.
func ExitCode(err error) int {
	var exitCoder ExitCoder
	if errors.As(err, &exitCoder) {
		return exitCoder.ExitCode()
	}
	return 1
}
