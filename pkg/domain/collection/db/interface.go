package db

import (
	"context"
	"time"

	"github.com/kbase/collections/pkg/domain"
)

type CollectionInterface interface {
	// Save stores a new collection version.
	//
	// The version number is assigned from a per-collection counter.
	// Numbers can have gaps.
	//
	// Returns
	//
	// - *domain.Collection: the saved version.
	//
	// - error: ErrCollectionVersionExists when the tag is used already in the collection.
	Save(ctx context.Context, id string, verTag string, body domain.CollectionBody, user string, now time.Time) (*domain.Collection, error)

	// GetByTag returns a collection version by its tag.
	//
	// When the version is not found, it returns ErrNoSuchCollectionVersion.
	GetByTag(ctx context.Context, id string, verTag string) (*domain.Collection, error)

	// GetByNum returns a collection version by its number.
	//
	// When the version is not found, it returns ErrNoSuchCollectionVersion.
	GetByNum(ctx context.Context, id string, verNum int) (*domain.Collection, error)

	// GetActive returns the active version of the collection.
	//
	// When the collection has no active version, it returns ErrNoSuchCollection.
	GetActive(ctx context.Context, id string) (*domain.Collection, error)

	// ListActive returns active versions of all collections, ordered by id.
	ListActive(ctx context.Context) ([]domain.Collection, error)

	// ListVersions returns versions of the collection in descending order of version number.
	//
	// Args
	//
	// - maxVer: when positive, versions greater than this are excluded.
	//
	// - limit: max count of versions. 0 means no limit.
	ListVersions(ctx context.Context, id string, maxVer int, limit int) ([]domain.Collection, error)

	// Activate makes the version active, replacing the current active version.
	//
	// When the version is not found, it returns ErrNoSuchCollectionVersion.
	Activate(ctx context.Context, id string, verNum int, user string, now time.Time) (*domain.Collection, error)
}
