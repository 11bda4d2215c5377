// Package collection manages versions of collections.
package collection

import (
	"context"

	"github.com/kbase/collections/pkg/dataproduct"
	"github.com/kbase/collections/pkg/domain"
	kcoll "github.com/kbase/collections/pkg/domain/collection/db"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/engine"
	"github.com/kbase/collections/pkg/matchers"
)

const (
	DefaultVersionListLimit = 100
	MaxVersionListLimit     = 1000
)

type Engine struct {
	store    kcoll.CollectionInterface
	products *dataproduct.Registry
	matchers *matchers.Registry
	clock    engine.Clock
}

func New(store kcoll.CollectionInterface, productRegistry *dataproduct.Registry, matcherRegistry *matchers.Registry, deps engine.Deps) *Engine {
	deps = deps.WithDefaults()
	return &Engine{store: store, products: productRegistry, matchers: matcherRegistry, clock: deps.Clock}
}

// Save stores a new version of a collection.
//
// Data products and matchers in body should be installed in this service.
func (e *Engine) Save(ctx context.Context, id string, verTag string, body domain.CollectionBody, user string) (*domain.Collection, error) {
	if err := domain.ValidateCollectionID(id); err != nil {
		return nil, err
	}
	if err := domain.ValidateVerTag(verTag); err != nil {
		return nil, err
	}
	body, err := body.Normalize()
	if err != nil {
		return nil, err
	}
	if err := e.products.Validate(body); err != nil {
		return nil, err
	}
	if err := e.matchers.Validate(body); err != nil {
		return nil, err
	}
	return e.store.Save(ctx, id, verTag, body, user, e.clock())
}

// Activate makes the version active.
//
// Every data product of the version should have its data loaded.
func (e *Engine) Activate(ctx context.Context, id string, verNum int, user string) (*domain.Collection, error) {
	coll, err := e.store.GetByNum(ctx, id, verNum)
	if err != nil {
		return nil, err
	}
	for _, b := range e.products.ForCollection(*coll) {
		if b.LoadChecker == nil {
			continue
		}
		ok, err := b.LoadChecker.HasLoad(ctx, coll.ID, b.Spec.Version)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domerr.NewInputError(
				domerr.ErrInvalidInput,
				"no data is loaded for data product %s with load version %s in collection %s",
				b.Spec.Product, b.Spec.Version, coll.ID,
			)
		}
	}
	return e.store.Activate(ctx, id, verNum, user, e.clock())
}

// ActivateByTag is Activate with a version tag.
func (e *Engine) ActivateByTag(ctx context.Context, id string, verTag string, user string) (*domain.Collection, error) {
	coll, err := e.store.GetByTag(ctx, id, verTag)
	if err != nil {
		return nil, err
	}
	return e.Activate(ctx, id, coll.VerNum, user)
}

// Get returns the active version of the collection.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Collection, error) {
	if err := domain.ValidateCollectionID(id); err != nil {
		return nil, err
	}
	return e.store.GetActive(ctx, id)
}

func (e *Engine) GetByTag(ctx context.Context, id string, verTag string) (*domain.Collection, error) {
	return e.store.GetByTag(ctx, id, verTag)
}

func (e *Engine) GetByNum(ctx context.Context, id string, verNum int) (*domain.Collection, error) {
	return e.store.GetByNum(ctx, id, verNum)
}

// List returns active versions of all collections.
func (e *Engine) List(ctx context.Context) ([]domain.Collection, error) {
	return e.store.ListActive(ctx)
}

// Versions lists versions of the collection, newest first.
//
// limit should be in [1, MaxVersionListLimit]. 0 is DefaultVersionListLimit.
func (e *Engine) Versions(ctx context.Context, id string, maxVer int, limit int) ([]domain.Collection, error) {
	if limit == 0 {
		limit = DefaultVersionListLimit
	}
	if limit < 1 || MaxVersionListLimit < limit {
		return nil, domerr.NewInputError(
			domerr.ErrInvalidInput, "limit should be in [1, %d]: %d", MaxVersionListLimit, limit,
		)
	}
	if maxVer < 0 {
		return nil, domerr.NewInputError(domerr.ErrInvalidInput, "max_ver should not be negative: %d", maxVer)
	}
	return e.store.ListVersions(ctx, id, maxVer, limit)
}
