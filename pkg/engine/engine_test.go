package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/domain/process/db/mock"
	"github.com/kbase/collections/pkg/engine"
	"github.com/kbase/collections/pkg/workqueue"
)

// inlineQueue runs jobs synchronously.
//
// Errors of jobs are discarded, as the workqueue reports only errors on submission.
type inlineQueue struct {
	err  error
	jobs []workqueue.Job
}

func (q *inlineQueue) Submit(job workqueue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	job.Run(context.Background())
	return nil
}

func deps(q workqueue.Queue) engine.Deps {
	return engine.Deps{
		Queue:     q,
		Logger:    log.New(io.Discard, "", 0),
		Clock:     func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
		Heartbeat: time.Millisecond,
	}
}

func TestCause(t *testing.T) {
	for name, testcase := range map[string]struct {
		when error
		then string
	}{
		"deadline": {
			when: fmt.Errorf("sketch: %w", context.DeadlineExceeded),
			then: engine.CauseTimedOut,
		},
		"input error": {
			when: domerr.NewInputError(domerr.ErrMissingLineage, "object 1/2/3 has no GTDB_lineage"),
			then: "object 1/2/3 has no GTDB_lineage",
		},
		"other": {
			when: errors.New("boom"),
			then: "boom",
		},
	} {
		t.Run(name, func(t *testing.T) {
			if got := engine.Cause(testcase.when); got != testcase.then {
				t.Errorf("unexpected cause: %s", got)
			}
		})
	}
}

func TestWithHeartbeat(t *testing.T) {
	t.Run("heartbeats are sent while running", func(t *testing.T) {
		mu := sync.Mutex{}
		beats := 0
		err := engine.WithHeartbeat(
			context.Background(), deps(nil).WithDefaults(), "job",
			func(context.Context, time.Time) error {
				mu.Lock()
				defer mu.Unlock()
				beats += 1
				return nil
			},
			func(ctx context.Context) error {
				time.Sleep(20 * time.Millisecond)
				return nil
			},
		)
		if err != nil {
			t.Fatal(err)
		}
		mu.Lock()
		defer mu.Unlock()
		if beats == 0 {
			t.Error("no heartbeats")
		}
	})

	t.Run("a heartbeat is sent before the job starts", func(t *testing.T) {
		beats := 0
		err := engine.WithHeartbeat(
			context.Background(), engine.Deps{Heartbeat: time.Hour}.WithDefaults(), "job",
			func(context.Context, time.Time) error {
				beats += 1
				return nil
			},
			func(ctx context.Context) error {
				if beats != 1 {
					t.Errorf("job starts after %d heartbeats", beats)
				}
				return nil
			},
		)
		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("job is not started when its record is no longer processing", func(t *testing.T) {
		err := engine.WithHeartbeat(
			context.Background(), engine.Deps{Heartbeat: time.Hour}.WithDefaults(), "job",
			func(context.Context, time.Time) error { return domerr.ErrConflict },
			func(ctx context.Context) error {
				t.Error("should not run")
				return nil
			},
		)
		if !errors.Is(err, domerr.ErrConflict) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("conflict on heartbeat cancels the job", func(t *testing.T) {
		beats := 0
		err := engine.WithHeartbeat(
			context.Background(), deps(nil).WithDefaults(), "job",
			func(context.Context, time.Time) error {
				beats += 1
				if beats == 1 {
					return nil
				}
				return domerr.ErrConflict
			},
			func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		)
		if !errors.Is(err, domerr.ErrConflict) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestProcesses_Start(t *testing.T) {
	key := domain.ProcessKey{InternalID: "m1", DataProduct: "taxa_count", Type: domain.MatchSubset}

	t.Run("created process runs and completes", func(t *testing.T) {
		store := mock.NewMockProcessInterface()
		store.Impl.Insert = func(_ context.Context, k domain.ProcessKey, now time.Time) (*domain.DataProductProcess, bool, error) {
			return &domain.DataProductProcess{ProcessKey: k, Lifecycle: domain.Lifecycle{State: domain.Processing}}, true, nil
		}
		completed := false
		store.Impl.Complete = func(_ context.Context, k domain.ProcessKey, _ time.Time) error {
			completed = k == key
			return nil
		}
		store.Impl.Heartbeat = func(context.Context, domain.ProcessKey, time.Time) error { return nil }

		q := &inlineQueue{}
		testee := engine.NewProcesses(store, deps(q))
		ran := false
		got, err := testee.Start(context.Background(), key, func(context.Context) error {
			ran = true
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if got.State != domain.Processing || !ran || !completed || len(q.jobs) != 1 {
			t.Errorf("unexpected result: %+v, ran=%v, completed=%v", got, ran, completed)
		}
	})

	t.Run("existing process is returned", func(t *testing.T) {
		store := mock.NewMockProcessInterface()
		store.Impl.Insert = func(_ context.Context, k domain.ProcessKey, now time.Time) (*domain.DataProductProcess, bool, error) {
			return &domain.DataProductProcess{ProcessKey: k, Lifecycle: domain.Lifecycle{State: domain.Complete}}, false, nil
		}
		q := &inlineQueue{}
		testee := engine.NewProcesses(store, deps(q))
		got, err := testee.Start(context.Background(), key, func(context.Context) error {
			t.Error("should not run")
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if got.State != domain.Complete || len(q.jobs) != 0 {
			t.Errorf("unexpected result: %+v", got)
		}
	})

	t.Run("failed process is replaced", func(t *testing.T) {
		store := mock.NewMockProcessInterface()
		deleted := false
		store.Impl.Insert = func(_ context.Context, k domain.ProcessKey, now time.Time) (*domain.DataProductProcess, bool, error) {
			if !deleted {
				return &domain.DataProductProcess{ProcessKey: k, Lifecycle: domain.Lifecycle{State: domain.Failed}}, false, nil
			}
			return &domain.DataProductProcess{ProcessKey: k, Lifecycle: domain.Lifecycle{State: domain.Processing}}, true, nil
		}
		store.Impl.Delete = func(context.Context, domain.ProcessKey) error {
			deleted = true
			return nil
		}
		store.Impl.Fail = func(_ context.Context, _ domain.ProcessKey, cause string, _ time.Time) error {
			if cause != "no genomes" {
				t.Errorf("unexpected cause: %s", cause)
			}
			return nil
		}
		store.Impl.Heartbeat = func(context.Context, domain.ProcessKey, time.Time) error { return nil }

		testee := engine.NewProcesses(store, deps(&inlineQueue{}))
		got, err := testee.Start(context.Background(), key, func(context.Context) error {
			return errors.New("no genomes")
		})
		if err != nil {
			t.Fatal(err)
		}
		if !deleted || got.State != domain.Processing {
			t.Errorf("unexpected result: %+v", got)
		}
	})

	t.Run("failure of submission fails the process", func(t *testing.T) {
		store := mock.NewMockProcessInterface()
		store.Impl.Insert = func(_ context.Context, k domain.ProcessKey, now time.Time) (*domain.DataProductProcess, bool, error) {
			return &domain.DataProductProcess{ProcessKey: k, Lifecycle: domain.Lifecycle{State: domain.Processing}}, true, nil
		}
		cause := ""
		store.Impl.Fail = func(_ context.Context, _ domain.ProcessKey, c string, _ time.Time) error {
			cause = c
			return nil
		}
		store.Impl.Get = func(_ context.Context, k domain.ProcessKey) (*domain.DataProductProcess, error) {
			return &domain.DataProductProcess{ProcessKey: k, Lifecycle: domain.Lifecycle{State: domain.Failed, Error: cause}}, nil
		}

		testee := engine.NewProcesses(store, deps(&inlineQueue{err: workqueue.ErrQueueFull}))
		got, err := testee.Start(context.Background(), key, func(context.Context) error { return nil })
		if err != nil {
			t.Fatal(err)
		}
		if got.State != domain.Failed || got.Error != workqueue.ErrQueueFull.Error() {
			t.Errorf("unexpected result: %+v", got)
		}
	})
}

func TestStaleBounds(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	stale, created := engine.StaleBounds(now, time.Minute, time.Hour)
	if !stale.Equal(now.Add(-time.Minute)) || !created.Equal(now.Add(-time.Hour)) {
		t.Errorf("unexpected bounds: %s, %s", stale, created)
	}
	_, created = engine.StaleBounds(now, time.Minute, 0)
	if !created.IsZero() {
		t.Errorf("unbounded budget gives %s", created)
	}
}
