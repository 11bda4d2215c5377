package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kbase/collections/cmd/loops/tasks/cleanup"
	"github.com/kbase/collections/cmd/loops/tasks/reaper"
	"github.com/kbase/collections/cmd/loops/tasks/reconcile"
	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/domain/collections"
	"github.com/kbase/collections/pkg/loop"
	"github.com/kbase/collections/pkg/loop/recurring"
)

// Wrapper for monitoring loop tasks. It logs each cycle.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()
		defer func() {
			logger.Printf(
				"task #0x%X (takes %s): %s with value = %v",
				counter, time.Since(timestamp), next, ret,
			)
		}()
		return task(ctx, t)
	}
}

type LoopManifest struct {
	Type   domain.LoopType
	Policy recurring.Policy

	// per cycle
	Timeout time.Duration
}

// StartLoop runs the loop of manifest.Type until ctx is done or the policy breaks it.
func StartLoop(ctx context.Context, logger *log.Logger, svc *collections.Collections, manifest LoopManifest) error {
	l := log.New(logger.Writer(), fmt.Sprintf("[%s loop] ", manifest.Type), logger.Flags())
	conf := svc.Config()
	m := svc.Metrics()
	opts := []loop.LoopOption{loop.WithTimeout(manifest.Timeout)}

	switch manifest.Type {
	case domain.Reconcile:
		_, err := loop.Start(
			ctx, reconcile.Seed(),
			monitor(l, reconcile.Task(
				conf.Heartbeat().Staleness(), conf.Workers().Budget(), m,
				reconcile.Target{Kind: "match", Staler: svc.Matches()},
				reconcile.Target{Kind: "selection", Staler: svc.Selections()},
				reconcile.Target{Kind: "process", Staler: svc.Processes()},
			).Applied(manifest.Policy)),
			opts...,
		)
		return err
	case domain.Reaper:
		_, err := loop.Start(
			ctx, reaper.Seed(),
			monitor(l, reaper.Task(
				m,
				reaper.Target{Kind: "match", Expirer: svc.Matches()},
				reaper.Target{Kind: "selection", Expirer: svc.Selections()},
			).Applied(manifest.Policy)),
			opts...,
		)
		return err
	case domain.Cleanup:
		_, err := loop.Start(
			ctx, cleanup.Seed(),
			monitor(l, cleanup.Task(
				m,
				cleanup.Target{Kind: "match", Cleaner: svc.Matches()},
				cleanup.Target{Kind: "selection", Cleaner: svc.Selections()},
			).Applied(manifest.Policy)),
			opts...,
		)
		return err
	}
	return fmt.Errorf("unknown loop type: %s", manifest.Type)
}
