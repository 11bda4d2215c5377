// Package cleanup removes data product rows of deleted matches and selections,
// and then the records themselves.
package cleanup

import (
	"context"
	"errors"

	"github.com/kbase/collections/pkg/loop/recurring"
)

type Cleaner interface {
	Cleanup(ctx context.Context) (bool, error)
}

type Target struct {
	Kind    string
	Cleaner Cleaner
}

type Reporter interface {
	Reconciled(loop string, kind string, n int)
}

type Stats map[string]int

// initial value for task
func Seed() Stats {
	return Stats{}
}

// Task pops one deleted record per target.
//
// A target failing to clean up does not stop others. Errors are joined.
func Task(reporter Reporter, targets ...Target) recurring.Task[Stats] {
	return func(ctx context.Context, stats Stats) (Stats, bool, error) {
		updated := false
		var errs []error
		for _, t := range targets {
			ok, err := t.Cleaner.Cleanup(ctx)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !ok {
				continue
			}
			updated = true
			stats[t.Kind] += 1
			reporter.Reconciled("cleanup", t.Kind, 1)
		}
		return stats, updated, errors.Join(errs...)
	}
}
