// Package reaper moves expired matches and selections to the deleted state.
package reaper

import (
	"context"

	"github.com/kbase/collections/pkg/loop/recurring"
)

type Expirer interface {
	Expire(ctx context.Context) (bool, error)
}

type Target struct {
	Kind    string
	Expirer Expirer
}

type Reporter interface {
	Reconciled(loop string, kind string, n int)
}

type Stats map[string]int

// initial value for task
func Seed() Stats {
	return Stats{}
}

func Task(reporter Reporter, targets ...Target) recurring.Task[Stats] {
	return func(ctx context.Context, stats Stats) (Stats, bool, error) {
		updated := false
		for _, t := range targets {
			ok, err := t.Expirer.Expire(ctx)
			if err != nil {
				return stats, updated, err
			}
			if !ok {
				continue
			}
			updated = true
			stats[t.Kind] += 1
			reporter.Reconciled("reaper", t.Kind, 1)
		}
		return stats, updated, nil
	}
}
