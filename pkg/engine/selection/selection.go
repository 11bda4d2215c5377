// Package selection runs selections of data product rows.
package selection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kbase/collections/pkg/dataproduct"
	"github.com/kbase/collections/pkg/domain"
	kcoll "github.com/kbase/collections/pkg/domain/collection/db"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	ksel "github.com/kbase/collections/pkg/domain/selection/db"
	"github.com/kbase/collections/pkg/engine"
	"github.com/kbase/collections/pkg/workqueue"
)

const DefaultTTL = 7 * 24 * time.Hour

// Matches looks up matches which selections are made from.
type Matches interface {
	// Complete returns the complete match (or match set) for the collection version.
	Complete(ctx context.Context, coll domain.Collection, matchID string, token string) (domain.MatchView, error)
}

type CreateRequest struct {
	Collection domain.Collection

	// ids of rows of the default_select data product.
	IDs []string

	// match which the selection is made from. optional.
	SourceMatchID string

	Token string
}

type Engine struct {
	store       ksel.SelectionInterface
	processes   *engine.Processes
	collections kcoll.CollectionInterface
	products    *dataproduct.Registry
	matches     Matches
	deps        engine.Deps
	ttl         time.Duration
}

func New(
	store ksel.SelectionInterface,
	processes *engine.Processes,
	collections kcoll.CollectionInterface,
	productRegistry *dataproduct.Registry,
	matches Matches,
	deps engine.Deps,
	ttl time.Duration,
) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Engine{
		store:       store,
		processes:   processes,
		collections: collections,
		products:    productRegistry,
		matches:     matches,
		deps:        deps.WithDefaults(),
		ttl:         ttl,
	}
}

// target returns the data product which selections of the collection are for.
func (e *Engine) target(coll domain.Collection) (string, dataproduct.Capabilities, error) {
	product := coll.DefaultSelect
	if product == "" {
		return "", dataproduct.Capabilities{}, domerr.NewInputError(
			domerr.ErrInvalidInput,
			"collection %s version %d is not configured to allow selections", coll.ID, coll.VerNum,
		)
	}
	caps, ok := e.products.Capabilities(product)
	if !ok {
		return "", dataproduct.Capabilities{}, domerr.NewInputError(
			domerr.ErrNoSuchDataProduct, "no such data product: %s", product,
		)
	}
	if caps.IDResolver == nil || caps.SelectionApplier == nil {
		return "", dataproduct.Capabilities{}, domerr.NewInputError(
			domerr.ErrInvalidInput, "data product %s does not support selections", product,
		)
	}
	return product, caps, nil
}

// CreateOrGet creates a selection, or gets the selection with the same ids and the same source match.
//
// A new selection is computed in background. A failed selection is replaced with a new one.
func (e *Engine) CreateOrGet(ctx context.Context, req CreateRequest) (*domain.Selection, error) {
	coll := req.Collection
	if domain.MaxSelectionIDs < len(req.IDs) {
		return nil, domerr.NewInputError(
			domerr.ErrTooManyIds, "at most %d ids are allowed, but %d are given", domain.MaxSelectionIDs, len(req.IDs),
		)
	}
	ids := domain.NormalizeSelectionIDs(req.IDs)
	if len(ids) == 0 {
		return nil, domerr.NewInputError(domerr.ErrInvalidInput, "no ids are given")
	}
	product, caps, err := e.target(coll)
	if err != nil {
		return nil, err
	}

	modified := false
	if req.SourceMatchID != "" {
		view, err := e.matches.Complete(ctx, coll, req.SourceMatchID, req.Token)
		if err != nil {
			return nil, err
		}
		modified = !slices.Equal(ids, view.MatchedIDs())
	}

	sel := domain.Selection{
		SelectionID:       domain.SelectionFingerprint(coll.ID, coll.VerNum, ids, req.SourceMatchID, modified),
		CollectionID:      coll.ID,
		CollectionVer:     coll.VerNum,
		DataProduct:       product,
		SelectionIDs:      ids,
		RequestedCount:    len(ids),
		SourceMatchID:     req.SourceMatchID,
		ModifiedPostMatch: modified,
	}

	for attempt := 0; attempt < 3; attempt++ {
		now := e.deps.Clock()
		existing, err := e.store.Get(ctx, sel.SelectionID)
		switch {
		case err == nil && existing.State != domain.Failed:
			e.deps.Metrics.SelectionEvent("reused")
			return e.store.Touch(ctx, sel.SelectionID, now)
		case err == nil:
			if err := e.discard(ctx, *existing, now); err != nil {
				return nil, err
			}
			e.deps.Metrics.SelectionEvent("replaced")
		case !errors.Is(err, domerr.ErrMissing):
			return nil, err
		}

		sel.InternalSelectionID = uuid.NewString()
		sel.Lifecycle = domain.Lifecycle{State: domain.Processing, Created: now, StateUpdated: now}
		sel.LastAccess = now
		inserted, created, err := e.store.Insert(ctx, sel)
		if err != nil {
			return nil, err
		}
		if !created {
			if inserted.State == domain.Failed {
				continue
			}
			return inserted, nil
		}
		e.deps.Metrics.SelectionEvent("created")

		if err := e.submit(ctx, coll, caps, *inserted); err != nil {
			return nil, err
		}
		return e.store.Get(ctx, sel.SelectionID)
	}
	return nil, fmt.Errorf("%w: selection %s keeps failing", domerr.ErrConflict, sel.SelectionID)
}

func (e *Engine) discard(ctx context.Context, sel domain.Selection, now time.Time) error {
	if _, err := e.store.MoveToDeleted(ctx, sel.InternalSelectionID, false, now); err != nil {
		return err
	}
	if err := e.cascade(ctx, sel); err != nil {
		e.deps.Logger.Printf("selection %s: cleanup of failed selection is postponed: %s", sel.SelectionID, err)
		return nil
	}
	return e.store.RemoveDeleted(ctx, sel.InternalSelectionID)
}

func (e *Engine) submit(ctx context.Context, coll domain.Collection, caps dataproduct.Capabilities, sel domain.Selection) error {
	job := workqueue.Job{
		Kind: "selection",
		Name: "selection " + sel.SelectionID,
		Run: func(ctx context.Context) error {
			return e.run(ctx, coll, caps, sel)
		},
	}
	err := e.deps.Queue.Submit(job)
	if err == nil {
		return nil
	}

	fctx, cancel := engine.FinishContext(ctx)
	defer cancel()
	e.deps.Metrics.SelectionEvent("failed")
	if ferr := e.store.Fail(fctx, sel.InternalSelectionID, engine.Cause(err), e.deps.Clock()); ferr != nil {
		return errors.Join(err, ferr)
	}
	return nil
}

func (e *Engine) run(ctx context.Context, coll domain.Collection, caps dataproduct.Capabilities, sel domain.Selection) error {
	var unmatched []string
	resolvedCount := 0
	err := engine.WithHeartbeat(
		ctx, e.deps, "selection "+sel.SelectionID,
		func(ctx context.Context, now time.Time) error {
			return e.store.Heartbeat(ctx, sel.InternalSelectionID, now)
		},
		func(ctx context.Context) error {
			resolved, err := caps.IDResolver.ResolveIDs(ctx, coll, sel.SelectionIDs)
			if err != nil {
				return err
			}
			unmatched = Unmatched(sel.SelectionIDs, resolved)
			resolvedCount = len(resolved)
			return caps.SelectionApplier.ApplySelection(ctx, coll, sel)
		},
	)

	fctx, cancel := engine.FinishContext(ctx)
	defer cancel()
	now := e.deps.Clock()
	if err != nil {
		e.deps.Logger.Printf("selection %s is failed: %s", sel.SelectionID, err)
		e.deps.Metrics.SelectionEvent("failed")
		if ferr := e.store.Fail(fctx, sel.InternalSelectionID, engine.Cause(err), now); ferr != nil {
			return errors.Join(err, ferr)
		}
		return err
	}
	if err := e.store.Complete(fctx, sel.InternalSelectionID, unmatched, resolvedCount, now); err != nil {
		return err
	}
	e.deps.Metrics.SelectionEvent("complete")
	return nil
}

// Unmatched returns ids not in resolved, in order of ids.
func Unmatched(ids []string, resolved []string) []string {
	found := make(map[string]struct{}, len(resolved))
	for _, id := range resolved {
		found[id] = struct{}{}
	}
	ret := []string{}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			ret = append(ret, id)
		}
	}
	return ret
}

// Get returns the selection, and refreshes its last access time.
//
// Errors
//
// - ErrSelectionNotFound: the selection is absent or expired.
//
// - ErrInvalidSelectionState: the selection is for another collection version.
func (e *Engine) Get(ctx context.Context, coll domain.Collection, selectionID string) (*domain.Selection, error) {
	now := e.deps.Clock()
	sel, err := e.store.Get(ctx, selectionID)
	if errors.Is(err, domerr.ErrMissing) {
		return nil, notFound(selectionID)
	} else if err != nil {
		return nil, err
	}
	if sel.LastAccess.Before(now.Add(-e.ttl)) {
		return nil, notFound(selectionID)
	}
	if sel.CollectionID != coll.ID {
		return nil, domerr.NewInputError(
			domerr.ErrInvalidSelectionState,
			"selection %s is for collection %s, not %s", selectionID, sel.CollectionID, coll.ID,
		)
	}
	if sel.CollectionVer != coll.VerNum {
		return nil, domerr.NewInputError(
			domerr.ErrInvalidSelectionState,
			"selection %s is for collection version %d, while the requested version is %d",
			selectionID, sel.CollectionVer, coll.VerNum,
		)
	}
	touched, err := e.store.Touch(ctx, selectionID, now)
	if errors.Is(err, domerr.ErrMissing) {
		return nil, notFound(selectionID)
	}
	return touched, err
}

// Complete returns the selection if it is complete. Otherwise, it returns ErrInvalidSelectionState.
func (e *Engine) Complete(ctx context.Context, coll domain.Collection, selectionID string) (*domain.Selection, error) {
	sel, err := e.Get(ctx, coll, selectionID)
	if err != nil {
		return nil, err
	}
	if sel.State != domain.Complete {
		return nil, domerr.NewInputError(
			domerr.ErrInvalidSelectionState, "selection %s processing is not complete", selectionID,
		)
	}
	return sel, nil
}

func notFound(id string) error {
	return domerr.NewInputError(domerr.ErrSelectionNotFound, "no such selection: %s", id)
}

// Delete moves a selection into deleted state, and removes artifacts of it.
//
// It is idempotent. Processing selections are not deleted unless force is true.
func (e *Engine) Delete(ctx context.Context, selectionID string, force bool) (bool, error) {
	sel, err := e.store.Get(ctx, selectionID)
	if errors.Is(err, domerr.ErrMissing) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	moved, err := e.store.MoveToDeleted(ctx, sel.InternalSelectionID, force, e.deps.Clock())
	if err != nil || !moved {
		return false, err
	}
	e.deps.Metrics.SelectionEvent("deleted")
	if err := e.cascade(ctx, *sel); err != nil {
		return true, err
	}
	return true, e.store.RemoveDeleted(ctx, sel.InternalSelectionID)
}

func (e *Engine) cascade(ctx context.Context, sel domain.Selection) error {
	deleters := []dataproduct.SelectionDeleter{}
	coll, err := e.collections.GetByNum(ctx, sel.CollectionID, sel.CollectionVer)
	switch {
	case err == nil:
		for _, b := range e.products.ForCollection(*coll) {
			if b.SelectionDeleter != nil {
				deleters = append(deleters, b.SelectionDeleter)
			}
		}
	case errors.Is(err, domerr.ErrNoSuchCollectionVersion):
		for _, id := range e.products.IDs() {
			if caps, _ := e.products.Capabilities(id); caps.SelectionDeleter != nil {
				deleters = append(deleters, caps.SelectionDeleter)
			}
		}
	default:
		return err
	}

	for _, d := range deleters {
		if err := d.DeleteSelection(ctx, sel.InternalSelectionID); err != nil {
			return err
		}
	}
	return e.processes.DeleteFor(ctx, sel.InternalSelectionID, domain.SelectionSubset)
}

// Apply propagates a complete selection to another data product.
//
// The target data product of the selection needs no processes. Its state is the selection's.
func (e *Engine) Apply(ctx context.Context, coll domain.Collection, selectionID string, product string) (*domain.DataProductProcess, error) {
	if _, err := coll.LoadVersion(product); err != nil {
		return nil, err
	}
	caps, ok := e.products.Capabilities(product)
	if !ok {
		return nil, domerr.NewInputError(domerr.ErrNoSuchDataProduct, "no such data product: %s", product)
	}
	sel, err := e.Complete(ctx, coll, selectionID)
	if err != nil {
		return nil, err
	}

	key := domain.ProcessKey{InternalID: sel.InternalSelectionID, DataProduct: product, Type: domain.SelectionSubset}
	if product == sel.DataProduct {
		return &domain.DataProductProcess{ProcessKey: key, Lifecycle: sel.Lifecycle}, nil
	}
	if caps.SelectionApplier == nil {
		return nil, domerr.NewInputError(
			domerr.ErrInvalidInput, "data product %s does not support selections", product,
		)
	}
	return e.processes.Start(ctx, key, func(ctx context.Context) error {
		return caps.SelectionApplier.ApplySelection(ctx, coll, *sel)
	})
}

// Export returns workspace type to UPAs of rows in the complete selection,
// and the count of processed rows.
func (e *Engine) Export(ctx context.Context, coll domain.Collection, selectionID string) (map[string][]string, int, error) {
	sel, err := e.Complete(ctx, coll, selectionID)
	if err != nil {
		return nil, 0, err
	}
	caps, ok := e.products.Capabilities(sel.DataProduct)
	if !ok || caps.SelectionExporter == nil {
		return nil, 0, domerr.NewInputError(
			domerr.ErrInvalidInput, "data product %s can not export selections", sel.DataProduct,
		)
	}
	return caps.SelectionExporter.GetIDsForSelection(ctx, coll, sel.InternalSelectionID)
}

// FailStale fails a selection which lost its worker. It returns true if a selection is failed.
func (e *Engine) FailStale(ctx context.Context, staleness time.Duration, budget time.Duration) (bool, error) {
	now := e.deps.Clock()
	staleBefore, createdBefore := engine.StaleBounds(now, staleness, budget)
	sel, err := e.store.FailStale(ctx, staleBefore, createdBefore, now)
	if err != nil || sel == nil {
		return false, err
	}
	e.deps.Logger.Printf("selection %s is failed: %s", sel.SelectionID, sel.Error)
	e.deps.Metrics.SelectionEvent("failed")
	return true, nil
}

// Expire moves a selection not accessed for TTL into deleted state. It returns true if a selection is moved.
func (e *Engine) Expire(ctx context.Context) (bool, error) {
	now := e.deps.Clock()
	sel, err := e.store.PopExpired(ctx, now.Add(-e.ttl), now)
	if err != nil || sel == nil {
		return false, err
	}
	e.deps.Metrics.SelectionEvent("expired")
	return true, nil
}

// Cleanup removes a deleted selection with its artifacts. It returns true if a selection is removed.
func (e *Engine) Cleanup(ctx context.Context) (bool, error) {
	return e.store.PopDeleted(ctx, func(sel domain.Selection) error {
		return e.cascade(ctx, sel)
	})
}
