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

package bake

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/chronotools/tally/pkg/tally/output"
	"github.com/chronotools/tally/pkg/tally/output/log"
	"github.com/chronotools/tally/pkg/tally/recipe"
)

// debounceDelay batches filesystem event bursts into one rebake.
// A variable so tests can shrink it.
var debounceDelay = 500 * time.Millisecond

// Watch bakes once, then rebakes whenever a file the recipe consumes
// changes. A failed bake is reported and watching continues. Returns
// when ctx is cancelled.
func Watch(ctx context.Context, out io.Writer, builder Builder, a *Artifact, tagger func(context.Context) (string, error)) error {
	events := make(chan notify.EventInfo, 16)
	if err := notify.Watch(filepath.Join(a.Workspace, "..."), events, notify.All); err != nil {
		return err
	}
	defer notify.Stop(events)

	bakeOnce := func() {
		tagged, err := tagger(ctx)
		if err != nil {
			output.Red.Fprintf(out, "Bake failed: %v\n", err)
			return
		}
		if _, err := builder.Build(ctx, out, a, tagged); err != nil {
			output.Red.Fprintf(out, "Bake failed: %v\n", err)
			return
		}
		output.Green.Fprintf(out, "Bake succeeded: %s\n", tagged)
	}

	bakeOnce()
	output.Default.Fprintln(out, "Watching for changes...")

	var timer *time.Timer
	var fired <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			if !relevant(ctx, a, ev.Path()) {
				continue
			}
			log.Entry(ctx).Debugf("change detected: %s", ev.Path())
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
				fired = timer.C
			} else {
				timer.Reset(debounceDelay)
			}

		case <-fired:
			timer = nil
			fired = nil
			bakeOnce()
			output.Default.Fprintln(out, "Watching for changes...")
		}
	}
}

// relevant reports whether a changed path can affect the next bake. The
// dependency set is recomputed each time because a change may add or
// remove staged files. While the recipe does not parse, every change is
// relevant so that fixing it triggers a rebake.
func relevant(ctx context.Context, a *Artifact, changed string) bool {
	recipePath, err := a.NormalizeRecipePath()
	if err != nil {
		return true
	}
	if abs, err := filepath.Abs(changed); err == nil {
		changed = abs
	}
	if changed == recipePath {
		return true
	}

	r, err := recipe.Parse(recipePath)
	if err != nil {
		log.Entry(ctx).Debugf("recipe not parseable, watching everything: %v", err)
		return true
	}

	deps, err := Dependencies(a, r)
	if err != nil {
		log.Entry(ctx).Debugf("dependencies not resolvable, watching everything: %v", err)
		return true
	}

	rel, err := filepath.Rel(a.Workspace, changed)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	for _, dep := range deps {
		if filepath.ToSlash(dep) == rel {
			return true
		}
	}
	return false
}
