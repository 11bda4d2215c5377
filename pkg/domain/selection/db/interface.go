package db

import (
	"context"
	"time"

	"github.com/kbase/collections/pkg/domain"
)

type SelectionInterface interface {
	// Get returns the selection with the selection id.
	//
	// When not found, it returns an error wrapping ErrMissing.
	Get(ctx context.Context, selectionID string) (*domain.Selection, error)

	// Touch updates last access time of the selection, and returns it.
	//
	// When not found, it returns an error wrapping ErrMissing.
	Touch(ctx context.Context, selectionID string, now time.Time) (*domain.Selection, error)

	// Insert creates a new selection if there are no selections with the same selection id.
	//
	// Returns
	//
	// - *domain.Selection: the created selection, or the existing one.
	//
	// - bool: true if the selection is created by this call.
	//
	// - error
	Insert(ctx context.Context, selection domain.Selection) (*domain.Selection, bool, error)

	// Heartbeat records that the worker of the selection is alive.
	//
	// If the selection is not processing, it returns an error wrapping ErrConflict.
	Heartbeat(ctx context.Context, internalSelectionID string, now time.Time) error

	// Complete makes the processing selection complete.
	//
	// If the selection is not processing, it returns an error wrapping ErrConflict.
	Complete(ctx context.Context, internalSelectionID string, unmatchedIDs []string, resolvedCount int, now time.Time) error

	// Fail makes the processing selection failed.
	//
	// If the selection is not processing, it returns an error wrapping ErrConflict.
	Fail(ctx context.Context, internalSelectionID string, cause string, now time.Time) error

	// MoveToDeleted moves the selection into deleted state.
	//
	// Processing selections are not moved unless force is true.
	MoveToDeleted(ctx context.Context, internalSelectionID string, force bool, now time.Time) (bool, error)

	// FailStale picks a processing selection which seems to have lost its worker, and makes it failed.
	//
	// Returns nil if nothing is picked.
	FailStale(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.Selection, error)

	// PopExpired picks a terminated selection not accessed since `before`, and moves it into deleted state.
	//
	// Returns nil if nothing is picked.
	PopExpired(ctx context.Context, before time.Time, now time.Time) (*domain.Selection, error)

	// PopDeleted picks a deleted selection and removes it permanently.
	//
	// If callback returns error, popped selection will be rolled back.
	PopDeleted(ctx context.Context, callback func(domain.Selection) error) (bool, error)

	// GetDeleted returns the deleted selection by internal id.
	//
	// When not found, it returns an error wrapping ErrMissing.
	GetDeleted(ctx context.Context, internalSelectionID string) (*domain.Selection, error)

	// RemoveDeleted removes the deleted selection permanently.
	RemoveDeleted(ctx context.Context, internalSelectionID string) error
}
