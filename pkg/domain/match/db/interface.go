package db

import (
	"context"
	"time"

	"github.com/kbase/collections/pkg/domain"
)

type MatchInterface interface {
	// Get returns the match with the match id.
	//
	// When not found, it returns an error wrapping ErrMissing.
	Get(ctx context.Context, matchID string) (*domain.Match, error)

	// Touch updates last access time of the match, and returns it.
	//
	// When not found, it returns an error wrapping ErrMissing.
	Touch(ctx context.Context, matchID string, now time.Time) (*domain.Match, error)

	// Insert creates a new match if there are no matches with the same match id.
	//
	// Returns
	//
	// - *domain.Match: the created match, or the existing one.
	//
	// - bool: true if the match is created by this call.
	//
	// - error
	Insert(ctx context.Context, match domain.Match) (*domain.Match, bool, error)

	// Heartbeat records that the worker of the match is alive.
	//
	// If the match is not processing, it returns an error wrapping ErrConflict.
	Heartbeat(ctx context.Context, internalMatchID string, now time.Time) error

	// Complete makes the processing match complete with matched ids.
	//
	// If the match is not processing, it returns an error wrapping ErrConflict.
	Complete(ctx context.Context, internalMatchID string, matchedIDs []string, now time.Time) error

	// Fail makes the processing match failed.
	//
	// If the match is not processing, it returns an error wrapping ErrConflict.
	Fail(ctx context.Context, internalMatchID string, cause string, now time.Time) error

	// MoveToDeleted moves the match into deleted state.
	//
	// Processing matches are not moved unless force is true.
	//
	// Returns
	//
	// - bool: true if the match is moved by this call.
	//
	// - error
	MoveToDeleted(ctx context.Context, internalMatchID string, force bool, now time.Time) (bool, error)

	// FailStale picks a processing match which seems to have lost its worker, and makes it failed.
	//
	// A match is stale when its heartbeat (or creation time, if no heartbeats) is older than staleBefore,
	// or it has been created before createdBefore.
	//
	// Returns
	//
	// - *domain.Match: the failed match. nil if nothing is picked.
	//
	// - error
	FailStale(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.Match, error)

	// PopExpired picks a terminated match not accessed since `before`, and moves it into deleted state.
	//
	// Returns
	//
	// - *domain.Match: the moved match. nil if nothing is picked.
	//
	// - error
	PopExpired(ctx context.Context, before time.Time, now time.Time) (*domain.Match, error)

	// PopDeleted picks a deleted match and removes it permanently.
	//
	// Args
	//
	// - context.Context
	//
	// - func(domain.Match) error: handler with popped match.
	// If this handler returns error, popped match will be rolled back.
	// Otherwise, popped match will be removed from DB.
	//
	// Returns
	//
	// - bool: if a match is popped
	//
	// - error
	PopDeleted(ctx context.Context, callback func(domain.Match) error) (bool, error)

	// GetDeleted returns the deleted match by internal id.
	//
	// When not found, it returns an error wrapping ErrMissing.
	GetDeleted(ctx context.Context, internalMatchID string) (*domain.Match, error)

	// RemoveDeleted removes the deleted match permanently.
	RemoveDeleted(ctx context.Context, internalMatchID string) error

	// InsertSet creates a match set if absent, and returns it with updated last access time.
	InsertSet(ctx context.Context, set domain.MatchSet) (*domain.MatchSet, error)

	// TouchSet updates last access time of the match set and returns it.
	//
	// When not found, it returns an error wrapping ErrMissing.
	TouchSet(ctx context.Context, matchSetID string, now time.Time) (*domain.MatchSet, error)

	// DeleteExpiredSets deletes match sets not accessed since `before`.
	//
	// Returns the count of deleted sets.
	DeleteExpiredSets(ctx context.Context, before time.Time) (int, error)
}
