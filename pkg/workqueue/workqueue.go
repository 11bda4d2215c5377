// Package workqueue runs background jobs with a bounded queue and a fixed count of workers.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kbase/collections/pkg/metrics"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrNotStarted  = errors.New("job queue is not started")
	ErrStopped     = errors.New("job queue is stopped")
	ErrStopTimeout = errors.New("workers did not stop in time")
)

// Job is a unit of background work.
type Job struct {
	// kind of the job, like "match". It is used as a metrics label.
	Kind string

	// name of the job, for logs.
	Name string

	// Run does the job. ctx is done when the budget is exhausted or the queue is stopped.
	Run func(ctx context.Context) error
}

// Queue accepts jobs.
type Queue interface {
	// Submit enqueues a job. It does not block.
	//
	// Errors: ErrQueueFull, ErrNotStarted, ErrStopped
	Submit(job Job) error
}

type Config struct {
	// count of workers. Default is 4.
	Workers int

	// capacity of the queue. Default is 1000.
	QueueSize int

	// wall-clock budget of a job. 0 means no limit.
	Budget time.Duration
}

type Pool struct {
	config  Config
	logger  *log.Logger
	metrics *metrics.Metrics

	jobs chan Job
	wg   sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	cancel      context.CancelFunc
}

var _ Queue = &Pool{}

func New(config Config, logger *log.Logger, m *metrics.Metrics) *Pool {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	return &Pool{
		config:  config,
		logger:  logger,
		metrics: m,
		jobs:    make(chan Job, config.QueueSize),
	}
}

func (p *Pool) Submit(job Job) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrNotStarted
	}
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.jobs <- job:
		p.metrics.QueueDepth(len(p.jobs))
		return nil
	default:
		p.metrics.Dropped()
		return ErrQueueFull
	}
}

// Start starts workers. When ctx is done, running jobs are cancelled.
func (p *Pool) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return errors.New("job queue is already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.started = true
	return nil
}

// Stop stops accepting jobs and waits for queued jobs to finish.
//
// If workers do not finish in timeout, running jobs are cancelled and ErrStopTimeout is returned.
func (p *Pool) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.stopped {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	p.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-timer.C:
		p.cancel()
		return ErrStopTimeout
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.metrics.QueueDepth(len(p.jobs))
			p.run(ctx, job)
		}
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	if p.config.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Budget)
		defer cancel()
	}

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return job.Run(ctx)
	}()
	d := time.Since(start)

	p.metrics.ObserveJob(job.Kind, err, d)
	if err != nil {
		p.logger.Printf("[%s] %s: failed in %s: %s", job.Kind, job.Name, d, err)
		return
	}
	p.logger.Printf("[%s] %s: done in %s", job.Kind, job.Name, d)
}
