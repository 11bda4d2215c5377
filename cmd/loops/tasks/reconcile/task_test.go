package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kbase/collections/cmd/loops/tasks/reconcile"
	"github.com/kbase/collections/pkg/utils/cmp"
)

type staler struct {
	found     bool
	err       error
	staleness time.Duration
	budget    time.Duration
	called    int
}

func (s *staler) FailStale(_ context.Context, staleness time.Duration, budget time.Duration) (bool, error) {
	s.called += 1
	s.staleness, s.budget = staleness, budget
	return s.found, s.err
}

type reporter struct {
	got map[string]int
}

func (r *reporter) Reconciled(loop string, kind string, n int) {
	if r.got == nil {
		r.got = map[string]int{}
	}
	r.got[loop+"/"+kind] += n
}

func TestTask(t *testing.T) {
	for name, testcase := range map[string]struct {
		match, selection, process *staler
		thenUpdated               bool
		thenStats                 reconcile.Stats
	}{
		"when nothing is stale, it is not updated": {
			match:       &staler{},
			selection:   &staler{},
			process:     &staler{},
			thenUpdated: false,
			thenStats:   reconcile.Stats{},
		},
		"when some are stale, they are counted": {
			match:       &staler{found: true},
			selection:   &staler{},
			process:     &staler{found: true},
			thenUpdated: true,
			thenStats:   reconcile.Stats{"match": 1, "process": 1},
		},
	} {
		t.Run(name, func(t *testing.T) {
			rep := &reporter{}
			testee := reconcile.Task(
				time.Minute, time.Hour, rep,
				reconcile.Target{Kind: "match", Staler: testcase.match},
				reconcile.Target{Kind: "selection", Staler: testcase.selection},
				reconcile.Target{Kind: "process", Staler: testcase.process},
			)
			stats, updated, err := testee(context.Background(), reconcile.Seed())
			if err != nil {
				t.Fatal(err)
			}
			if updated != testcase.thenUpdated {
				t.Errorf("updated = %v, want %v", updated, testcase.thenUpdated)
			}
			if !cmp.MapEq(stats, testcase.thenStats) {
				t.Errorf("stats = %v, want %v", stats, testcase.thenStats)
			}
			for kind, n := range testcase.thenStats {
				if rep.got["reconcile/"+kind] != n {
					t.Errorf("reported %s = %d, want %d", kind, rep.got["reconcile/"+kind], n)
				}
			}
			for _, s := range []*staler{testcase.match, testcase.selection, testcase.process} {
				if s.called != 1 || s.staleness != time.Minute || s.budget != time.Hour {
					t.Errorf("unexpected call: %+v", s)
				}
			}
		})
	}

	t.Run("when a target fails, it stops with the error", func(t *testing.T) {
		fake := errors.New("fake")
		later := &staler{found: true}
		testee := reconcile.Task(
			time.Minute, time.Hour, &reporter{},
			reconcile.Target{Kind: "match", Staler: &staler{err: fake}},
			reconcile.Target{Kind: "process", Staler: later},
		)
		_, _, err := testee(context.Background(), reconcile.Seed())
		if !errors.Is(err, fake) {
			t.Errorf("unexpected error: %v", err)
		}
		if later.called != 0 {
			t.Error("targets after the failure are visited")
		}
	})
}
