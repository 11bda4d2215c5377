package reaper_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kbase/collections/cmd/loops/tasks/reaper"
)

type expirer struct {
	found bool
	err   error
}

func (e expirer) Expire(context.Context) (bool, error) {
	return e.found, e.err
}

type reporter map[string]int

func (r reporter) Reconciled(loop string, kind string, n int) {
	r[loop+"/"+kind] += n
}

func TestTask(t *testing.T) {
	t.Run("it counts expired records", func(t *testing.T) {
		rep := reporter{}
		testee := reaper.Task(
			rep,
			reaper.Target{Kind: "match", Expirer: expirer{found: true}},
			reaper.Target{Kind: "selection", Expirer: expirer{}},
		)
		stats := reaper.Seed()
		for i := 0; i < 2; i++ {
			var updated bool
			var err error
			stats, updated, err = testee(context.Background(), stats)
			if err != nil {
				t.Fatal(err)
			}
			if !updated {
				t.Error("not updated")
			}
		}
		if stats["match"] != 2 || stats["selection"] != 0 {
			t.Errorf("unexpected stats: %v", stats)
		}
		if rep["reaper/match"] != 2 {
			t.Errorf("unexpected report: %v", rep)
		}
	})

	t.Run("it passes through errors", func(t *testing.T) {
		fake := errors.New("fake")
		testee := reaper.Task(reporter{}, reaper.Target{Kind: "match", Expirer: expirer{err: fake}})
		_, updated, err := testee(context.Background(), reaper.Seed())
		if updated || !errors.Is(err, fake) {
			t.Errorf("(updated, err) = (%v, %v)", updated, err)
		}
	})
}
