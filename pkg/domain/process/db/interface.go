package db

import (
	"context"
	"time"

	"github.com/kbase/collections/pkg/domain"
)

// ProcessInterface stores computations of secondary data products for matches and selections.
type ProcessInterface interface {
	// Get returns the process.
	//
	// When not found, it returns an error wrapping ErrMissing.
	Get(ctx context.Context, key domain.ProcessKey) (*domain.DataProductProcess, error)

	// Insert creates a processing process if absent.
	//
	// Returns the created or existing process, and true if created by this call.
	Insert(ctx context.Context, key domain.ProcessKey, now time.Time) (*domain.DataProductProcess, bool, error)

	// Heartbeat, Complete and Fail return an error wrapping ErrConflict
	// if the process is not processing.
	Heartbeat(ctx context.Context, key domain.ProcessKey, now time.Time) error
	Complete(ctx context.Context, key domain.ProcessKey, now time.Time) error
	Fail(ctx context.Context, key domain.ProcessKey, cause string, now time.Time) error

	// Delete removes a process. Deleting missing process is not an error.
	Delete(ctx context.Context, key domain.ProcessKey) error

	// DeleteFor removes all processes for the match or the selection.
	//
	// Returns the count of removed processes.
	DeleteFor(ctx context.Context, internalID string, typ domain.SubsetType) (int, error)

	// FailStale picks a processing process which seems to have lost its worker, and makes it failed.
	//
	// Returns nil if nothing is picked.
	FailStale(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.DataProductProcess, error)
}
