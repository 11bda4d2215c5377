// Package reconcile fails matches, selections and processes whose heartbeat has stopped.
package reconcile

import (
	"context"
	"time"

	"github.com/kbase/collections/pkg/loop/recurring"
)

// Staler fails one stale record, and reports whether it found one.
type Staler interface {
	FailStale(ctx context.Context, staleness time.Duration, budget time.Duration) (bool, error)
}

type Target struct {
	Kind   string
	Staler Staler
}

// Reporter counts reconciled records.
type Reporter interface {
	Reconciled(loop string, kind string, n int)
}

// Stats counts failed records by kind.
type Stats map[string]int

// initial value for task
func Seed() Stats {
	return Stats{}
}

// Task visits each target once per cycle.
//
// A record is stale when its heartbeat is older than staleness,
// or it has been running longer than budget.
func Task(staleness time.Duration, budget time.Duration, reporter Reporter, targets ...Target) recurring.Task[Stats] {
	return func(ctx context.Context, stats Stats) (Stats, bool, error) {
		updated := false
		for _, t := range targets {
			ok, err := t.Staler.FailStale(ctx, staleness, budget)
			if err != nil {
				return stats, updated, err
			}
			if !ok {
				continue
			}
			updated = true
			stats[t.Kind] += 1
			reporter.Reconciled("reconcile", t.Kind, 1)
		}
		return stats, updated, nil
	}
}
