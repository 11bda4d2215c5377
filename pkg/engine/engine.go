// Package engine holds parts shared by engines of matches, selections and collections.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	kproc "github.com/kbase/collections/pkg/domain/process/db"
	"github.com/kbase/collections/pkg/metrics"
	"github.com/kbase/collections/pkg/workqueue"
)

// CauseTimedOut is recorded for computations which exhausted their budget.
const CauseTimedOut = "timed out"

const (
	DefaultHeartbeatInterval = 10 * time.Second

	// time to write the result of a job, after its budget is exhausted.
	finishTimeout = 30 * time.Second
)

// Clock returns the current time.
type Clock func() time.Time

// Deps are dependencies shared by engines.
type Deps struct {
	Queue   workqueue.Queue
	Logger  *log.Logger
	Metrics *metrics.Metrics

	// default: time.Now
	Clock Clock

	// interval of heartbeats from jobs. default: DefaultHeartbeatInterval
	Heartbeat time.Duration
}

// WithDefaults returns Deps with defaults filled.
func (d Deps) WithDefaults() Deps {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Heartbeat <= 0 {
		d.Heartbeat = DefaultHeartbeatInterval
	}
	return d
}

// Cause returns a human readable cause of failure from err.
func Cause(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return CauseTimedOut
	}
	return domerr.Message(err)
}

// FinishContext returns a context to record the result of a job.
//
// It survives cancellation of ctx, since results should be recorded even when the job is timed out.
func FinishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
}

// WithHeartbeat runs f with heartbeats.
//
// beat is called once before f starts, and then for each interval while f is running.
// If beat returns ErrConflict (the record is no longer processing), f is not started
// or f's context is cancelled.
// Other errors from beat are logged and ignored.
func WithHeartbeat(
	ctx context.Context, deps Deps, name string,
	beat func(ctx context.Context, now time.Time) error,
	f func(ctx context.Context) error,
) error {
	if err := beat(ctx, deps.Clock()); errors.Is(err, domerr.ErrConflict) {
		return fmt.Errorf("%s is no longer processing: %w", name, err)
	} else if err != nil {
		deps.Logger.Printf("%s: heartbeat failed: %s", name, err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(deps.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := beat(ctx, deps.Clock())
				if err == nil {
					continue
				}
				if errors.Is(err, domerr.ErrConflict) {
					cancel(fmt.Errorf("%s is no longer processing: %w", name, err))
					return
				}
				deps.Logger.Printf("%s: heartbeat failed: %s", name, err)
			}
		}
	}()

	err := f(ctx)
	if cause := context.Cause(ctx); err != nil && cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return err
}

// StaleBounds returns thresholds for FailStale of stores.
//
// budget <= 0 means computations can run forever while they have heartbeats.
func StaleBounds(now time.Time, staleness time.Duration, budget time.Duration) (staleBefore time.Time, createdBefore time.Time) {
	staleBefore = now.Add(-staleness)
	if budget <= 0 {
		return staleBefore, time.Time{}
	}
	return staleBefore, now.Add(-budget)
}

// Processes runs computations of secondary data products.
type Processes struct {
	store kproc.ProcessInterface
	deps  Deps
}

func NewProcesses(store kproc.ProcessInterface, deps Deps) *Processes {
	return &Processes{store: store, deps: deps.WithDefaults()}
}

// Start creates or gets a process, and submits run when it is created.
//
// A failed process is replaced with a new one.
func (p *Processes) Start(ctx context.Context, key domain.ProcessKey, run func(ctx context.Context) error) (*domain.DataProductProcess, error) {
	for attempt := 0; attempt < 3; attempt++ {
		proc, created, err := p.store.Insert(ctx, key, p.deps.Clock())
		if err != nil {
			return nil, err
		}
		if !created {
			if proc.State != domain.Failed {
				return proc, nil
			}
			if err := p.store.Delete(ctx, key); err != nil {
				return nil, err
			}
			continue
		}

		job := workqueue.Job{
			Kind: "process",
			Name: key.String(),
			Run: func(jctx context.Context) error {
				return p.run(jctx, key, run)
			},
		}
		if err := p.deps.Queue.Submit(job); err != nil {
			fctx, cancel := FinishContext(ctx)
			defer cancel()
			if ferr := p.store.Fail(fctx, key, Cause(err), p.deps.Clock()); ferr != nil {
				return nil, errors.Join(err, ferr)
			}
			return p.store.Get(fctx, key)
		}
		return proc, nil
	}
	return nil, fmt.Errorf("%w: %s keeps failing", domerr.ErrConflict, key)
}

func (p *Processes) run(ctx context.Context, key domain.ProcessKey, run func(ctx context.Context) error) error {
	err := WithHeartbeat(
		ctx, p.deps, key.String(),
		func(ctx context.Context, now time.Time) error { return p.store.Heartbeat(ctx, key, now) },
		run,
	)

	fctx, cancel := FinishContext(ctx)
	defer cancel()
	if err != nil {
		if ferr := p.store.Fail(fctx, key, Cause(err), p.deps.Clock()); ferr != nil {
			return errors.Join(err, ferr)
		}
		return err
	}
	return p.store.Complete(fctx, key, p.deps.Clock())
}

// FailStale fails a process which lost its worker. It returns true if a process is failed.
func (p *Processes) FailStale(ctx context.Context, staleness time.Duration, budget time.Duration) (bool, error) {
	now := p.deps.Clock()
	staleBefore, createdBefore := StaleBounds(now, staleness, budget)
	proc, err := p.store.FailStale(ctx, staleBefore, createdBefore, now)
	if err != nil {
		return false, err
	}
	if proc == nil {
		return false, nil
	}
	p.deps.Logger.Printf("process %s is failed: %s", proc.ProcessKey, proc.Error)
	return true, nil
}

// DeleteFor removes processes for a match or a selection.
func (p *Processes) DeleteFor(ctx context.Context, internalID string, typ domain.SubsetType) error {
	_, err := p.store.DeleteFor(ctx, internalID, typ)
	return err
}
