// Package match runs matches: it creates them, computes them in the work pool,
// and deletes them with artifacts in data products.
package match

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
	kmatch "github.com/kbase/collections/pkg/domain/match/db"
	"github.com/kbase/collections/pkg/engine"
	xe "github.com/kbase/collections/pkg/errors"
	"github.com/kbase/collections/pkg/matchers"
	"github.com/kbase/collections/pkg/workqueue"
	"github.com/kbase/collections/pkg/workspace"
)

// DefaultTTL is the default lifetime of matches since their last access.
const DefaultTTL = 7 * 24 * time.Hour

// CreateRequest is a request to create a match.
type CreateRequest struct {
	// the collection version to be matched against.
	Collection domain.Collection

	MatcherID string

	// UPAs or reference paths of workspace objects.
	UPAs []string

	// parameters given by the user.
	Parameters map[string]any

	Token string
}

type Engine struct {
	store       kmatch.MatchInterface
	processes   *engine.Processes
	collections kcoll.CollectionInterface
	matchers    *matchers.Registry
	products    *dataproduct.Registry
	workspace   workspace.Client
	deps        engine.Deps
	ttl         time.Duration
}

func New(
	store kmatch.MatchInterface,
	processes *engine.Processes,
	collections kcoll.CollectionInterface,
	matcherRegistry *matchers.Registry,
	productRegistry *dataproduct.Registry,
	ws workspace.Client,
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
		matchers:    matcherRegistry,
		products:    productRegistry,
		workspace:   ws,
		deps:        deps.WithDefaults(),
		ttl:         ttl,
	}
}

// CreateOrGet creates a match, or gets the match with the same inputs.
//
// A new match is computed in background. A failed match is replaced with a new one.
//
// Errors are about the request: ErrInvalidInput, ErrTooManyIds, ErrNoRegisteredMatcher,
// ErrNoSuchMatcher, ErrDataPermission or ErrSourceDataUnavailable.
// Failure of the computation is recorded in the match, not returned.
func (e *Engine) CreateOrGet(ctx context.Context, req CreateRequest) (*domain.Match, error) {
	coll := req.Collection
	if len(req.UPAs) == 0 {
		return nil, domerr.NewInputError(domerr.ErrInvalidInput, "no UPAs are given")
	}
	if domain.MaxUPAs < len(req.UPAs) {
		return nil, domerr.NewInputError(
			domerr.ErrTooManyIds, "at most %d UPAs are allowed, but %d are given", domain.MaxUPAs, len(req.UPAs),
		)
	}
	paths, wsids, err := domain.ParseUPAs(req.UPAs)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, domerr.NewInputError(domerr.ErrInvalidInput, "no UPAs are given")
	}

	matcher, spec, err := e.matchers.ForCollection(coll, req.MatcherID)
	if err != nil {
		return nil, err
	}
	params, err := matcher.ValidateUserParameters(req.Parameters)
	if err != nil {
		return nil, err
	}

	upas := domain.UPAStrings(paths)
	objects, err := e.workspace.GetObjectInfo(ctx, req.Token, upas, matcher.Types())
	if err != nil {
		return nil, err
	}

	matchID, err := domain.MatchFingerprint(matcher.ID(), coll.ID, coll.VerNum, params, upas)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	m := domain.Match{
		MatchID:              matchID,
		MatcherID:            matcher.ID(),
		CollectionID:         coll.ID,
		CollectionVer:        coll.VerNum,
		UserParameters:       params,
		CollectionParameters: spec.Parameters,
		UPAs:                 upas,
		WSIDs:                wsids,
	}
	mreq := matchers.Request{Collection: coll, Match: m, Objects: objects, Token: req.Token}
	if err := matcher.ValidateObjects(mreq); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 3; attempt++ {
		now := e.deps.Clock()
		existing, err := e.store.Get(ctx, matchID)
		switch {
		case err == nil && existing.State != domain.Failed:
			e.deps.Metrics.MatchEvent(matcher.ID(), "reused")
			return e.store.Touch(ctx, matchID, now)
		case err == nil:
			if err := e.discard(ctx, *existing, now); err != nil {
				return nil, err
			}
			e.deps.Metrics.MatchEvent(matcher.ID(), "replaced")
		case !errors.Is(err, domerr.ErrMissing):
			return nil, err
		}

		m.InternalMatchID = uuid.NewString()
		m.Lifecycle = domain.Lifecycle{State: domain.Processing, Created: now, StateUpdated: now}
		m.LastAccess = now
		inserted, created, err := e.store.Insert(ctx, m)
		if err != nil {
			return nil, err
		}
		if !created {
			if inserted.State == domain.Failed {
				continue
			}
			return inserted, nil
		}
		e.deps.Metrics.MatchEvent(matcher.ID(), "created")

		mreq.Match = *inserted
		if err := e.submit(ctx, coll, matcher, mreq); err != nil {
			return nil, err
		}
		return e.store.Get(ctx, matchID)
	}
	return nil, fmt.Errorf("%w: match %s keeps failing", domerr.ErrConflict, matchID)
}

// discard clears a failed match, so that it can be created again.
func (e *Engine) discard(ctx context.Context, m domain.Match, now time.Time) error {
	if _, err := e.store.MoveToDeleted(ctx, m.InternalMatchID, false, now); err != nil {
		return err
	}
	if err := e.cascade(ctx, m); err != nil {
		// the cleanup loop retries this.
		e.deps.Logger.Printf("match %s: cleanup of failed match is postponed: %s", m.MatchID, err)
		return nil
	}
	return e.store.RemoveDeleted(ctx, m.InternalMatchID)
}

func (e *Engine) submit(ctx context.Context, coll domain.Collection, matcher matchers.Matcher, req matchers.Request) error {
	m := req.Match
	job := workqueue.Job{
		Kind: "match",
		Name: "match " + m.MatchID,
		Run: func(ctx context.Context) error {
			return e.run(ctx, coll, matcher, req)
		},
	}
	err := e.deps.Queue.Submit(job)
	if err == nil {
		return nil
	}

	fctx, cancel := engine.FinishContext(ctx)
	defer cancel()
	e.deps.Metrics.MatchEvent(matcher.ID(), "failed")
	if ferr := e.store.Fail(fctx, m.InternalMatchID, engine.Cause(err), e.deps.Clock()); ferr != nil {
		return errors.Join(err, ferr)
	}
	return nil
}

func (e *Engine) run(ctx context.Context, coll domain.Collection, matcher matchers.Matcher, req matchers.Request) error {
	m := req.Match
	var matched []string
	err := engine.WithHeartbeat(
		ctx, e.deps, "match "+m.MatchID,
		func(ctx context.Context, now time.Time) error {
			return e.store.Heartbeat(ctx, m.InternalMatchID, now)
		},
		func(ctx context.Context) error {
			ids, err := matcher.Match(ctx, req)
			if err != nil {
				return err
			}
			if applier := e.primaryApplier(coll, matcher); applier != nil {
				if err := applier.ApplyMatch(ctx, coll, m.InternalMatchID, ids); err != nil {
					return err
				}
			}
			matched = ids
			return nil
		},
	)

	fctx, cancel := engine.FinishContext(ctx)
	defer cancel()
	now := e.deps.Clock()
	if err != nil {
		e.deps.Logger.Printf("match %s is failed: %s", m.MatchID, err)
		e.deps.Metrics.MatchEvent(matcher.ID(), "failed")
		if ferr := e.store.Fail(fctx, m.InternalMatchID, engine.Cause(err), now); ferr != nil {
			return errors.Join(err, ferr)
		}
		return err
	}
	if matched == nil {
		matched = []string{}
	}
	if err := e.store.Complete(fctx, m.InternalMatchID, matched, now); err != nil {
		return err
	}
	e.deps.Metrics.MatchEvent(matcher.ID(), "complete")
	return nil
}

// PrimaryProduct returns the data product which the matcher matches rows of.
func PrimaryProduct(coll domain.Collection, matcher matchers.Matcher) string {
	if required := matcher.RequiredDataProducts(); 0 < len(required) {
		return required[0]
	}
	return coll.DefaultSelect
}

func (e *Engine) primaryApplier(coll domain.Collection, matcher matchers.Matcher) dataproduct.MatchApplier {
	caps, ok := e.products.Capabilities(PrimaryProduct(coll, matcher))
	if !ok {
		return nil
	}
	return caps.MatchApplier
}

func notFound(id string) error {
	return domerr.NewInputError(domerr.ErrMatchNotFound, "no such match: %s", id)
}

func (e *Engine) expired(lastAccess time.Time, now time.Time) bool {
	return lastAccess.Before(now.Add(-e.ttl))
}

// View returns a match or a match set, without checks of permissions.
//
// It refreshes last access time of them.
func (e *Engine) View(ctx context.Context, coll domain.Collection, id string) (domain.MatchView, error) {
	now := e.deps.Clock()
	ids := []string{id}
	if domain.IsMatchSetID(id) {
		set, err := e.store.TouchSet(ctx, id, now)
		if errors.Is(err, domerr.ErrMissing) {
			return domain.MatchView{}, notFound(id)
		} else if err != nil {
			return domain.MatchView{}, err
		}
		ids = set.MatchIDs
	}

	view := domain.MatchView{ID: id, Matches: make([]domain.Match, 0, len(ids))}
	for _, mid := range ids {
		m, err := e.store.Get(ctx, mid)
		if errors.Is(err, domerr.ErrMissing) {
			return domain.MatchView{}, notFound(id)
		} else if err != nil {
			return domain.MatchView{}, err
		}
		if e.expired(m.LastAccess, now) {
			return domain.MatchView{}, notFound(id)
		}
		if m.CollectionID != coll.ID || m.CollectionVer != coll.VerNum {
			return domain.MatchView{}, domerr.NewInputError(
				domerr.ErrInvalidMatchState,
				"match %s is for collection %s version %d, not for version %d",
				mid, m.CollectionID, m.CollectionVer, coll.VerNum,
			)
		}
		touched, err := e.store.Touch(ctx, mid, now)
		if errors.Is(err, domerr.ErrMissing) {
			return domain.MatchView{}, notFound(id)
		} else if err != nil {
			return domain.MatchView{}, err
		}
		view.Matches = append(view.Matches, *touched)
	}
	return view, nil
}

// Get returns a match or a match set, checking that the user can read its workspaces.
//
// Errors
//
// - ErrMatchNotFound: the match is absent or expired.
//
// - ErrInvalidMatchState: the match is for another collection version.
//
// - ErrDataPermission: the user can not read workspaces of the match.
func (e *Engine) Get(ctx context.Context, coll domain.Collection, id string, token string) (domain.MatchView, error) {
	view, err := e.View(ctx, coll, id)
	if err != nil {
		return domain.MatchView{}, err
	}
	wsids := []int64{}
	for _, m := range view.Matches {
		wsids = append(wsids, m.WSIDs...)
	}
	slices.Sort(wsids)
	if err := e.workspace.CheckReadable(ctx, token, slices.Compact(wsids)); err != nil {
		return domain.MatchView{}, err
	}
	return view, nil
}

// Complete returns a complete match or match set which the user can read.
//
// If it is not complete, it returns ErrInvalidMatchState.
func (e *Engine) Complete(ctx context.Context, coll domain.Collection, id string, token string) (domain.MatchView, error) {
	view, err := e.Get(ctx, coll, id, token)
	if err != nil {
		return domain.MatchView{}, err
	}
	if state := view.State(); state != domain.Complete {
		return domain.MatchView{}, domerr.NewInputError(
			domerr.ErrInvalidMatchState, "match %s is %s, not complete", id, state,
		)
	}
	return view, nil
}

// Set creates or gets a match set of matches.
//
// Matches should exist, and be for the collection version.
func (e *Engine) Set(ctx context.Context, coll domain.Collection, matchIDs []string, token string) (domain.MatchView, error) {
	ids := domain.NormalizeSelectionIDs(matchIDs)
	if len(ids) == 0 {
		return domain.MatchView{}, domerr.NewInputError(domerr.ErrInvalidInput, "no match ids are given")
	}
	if domain.MaxUPAs < len(ids) {
		return domain.MatchView{}, domerr.NewInputError(
			domerr.ErrTooManyIds, "at most %d matches are allowed in a set", domain.MaxUPAs,
		)
	}
	for _, id := range ids {
		if domain.IsMatchSetID(id) {
			return domain.MatchView{}, domerr.NewInputError(
				domerr.ErrInvalidInput, "a match set can not contain another match set: %s", id,
			)
		}
		if _, err := e.Get(ctx, coll, id, token); err != nil {
			return domain.MatchView{}, err
		}
	}

	now := e.deps.Clock()
	if _, err := e.store.InsertSet(ctx, domain.MatchSet{
		MatchSetID: domain.MatchSetFingerprint(ids),
		MatchIDs:   ids,
		Created:    now,
		LastAccess: now,
	}); err != nil {
		return domain.MatchView{}, err
	}
	return e.Get(ctx, coll, domain.MatchSetFingerprint(ids), token)
}

// Delete moves a match into deleted state, and removes artifacts of it.
//
// It is idempotent. Processing matches are not deleted unless force is true.
//
// Returns true if the match is deleted by this call.
func (e *Engine) Delete(ctx context.Context, matchID string, force bool) (bool, error) {
	if domain.IsMatchSetID(matchID) {
		return false, domerr.NewInputError(
			domerr.ErrInvalidInput, "match sets can not be deleted: %s", matchID,
		)
	}
	m, err := e.store.Get(ctx, matchID)
	if errors.Is(err, domerr.ErrMissing) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	moved, err := e.store.MoveToDeleted(ctx, m.InternalMatchID, force, e.deps.Clock())
	if err != nil {
		return false, err
	}
	if !moved {
		return false, nil
	}
	e.deps.Metrics.MatchEvent(m.MatcherID, "deleted")
	if err := e.cascade(ctx, *m); err != nil {
		return true, err
	}
	if err := e.store.RemoveDeleted(ctx, m.InternalMatchID); err != nil {
		return true, err
	}
	return true, nil
}

// cascade removes artifacts of the match from data products, and processes for it.
func (e *Engine) cascade(ctx context.Context, m domain.Match) error {
	deleters := []dataproduct.MatchDeleter{}
	coll, err := e.collections.GetByNum(ctx, m.CollectionID, m.CollectionVer)
	switch {
	case err == nil:
		for _, b := range e.products.ForCollection(*coll) {
			if b.MatchDeleter != nil {
				deleters = append(deleters, b.MatchDeleter)
			}
		}
	case errors.Is(err, domerr.ErrNoSuchCollectionVersion):
		for _, id := range e.products.IDs() {
			if caps, _ := e.products.Capabilities(id); caps.MatchDeleter != nil {
				deleters = append(deleters, caps.MatchDeleter)
			}
		}
	default:
		return err
	}

	for _, d := range deleters {
		if err := d.DeleteMatch(ctx, m.InternalMatchID); err != nil {
			return err
		}
	}
	return e.processes.DeleteFor(ctx, m.InternalMatchID, domain.MatchSubset)
}

// Apply computes a secondary data product for a complete match or match set.
//
// Processes are started for each match of the view, and returned.
// For the primary data product, which is computed with the match itself, no processes are started.
func (e *Engine) Apply(ctx context.Context, coll domain.Collection, id string, product string, token string) ([]domain.DataProductProcess, error) {
	if _, err := coll.LoadVersion(product); err != nil {
		return nil, err
	}
	caps, ok := e.products.Capabilities(product)
	if !ok {
		return nil, domerr.NewInputError(domerr.ErrNoSuchDataProduct, "no such data product: %s", product)
	}
	view, err := e.Complete(ctx, coll, id, token)
	if err != nil {
		return nil, err
	}

	ret := make([]domain.DataProductProcess, 0, len(view.Matches))
	for _, m := range view.Matches {
		key := domain.ProcessKey{InternalID: m.InternalMatchID, DataProduct: product, Type: domain.MatchSubset}

		if matcher, err := e.matchers.Get(m.MatcherID); err == nil && PrimaryProduct(coll, matcher) == product {
			ret = append(ret, domain.DataProductProcess{ProcessKey: key, Lifecycle: m.Lifecycle})
			continue
		}
		if caps.MatchApplier == nil {
			return nil, domerr.NewInputError(
				domerr.ErrInvalidInput, "data product %s does not support matches", product,
			)
		}

		proc, err := e.processes.Start(ctx, key, func(ctx context.Context) error {
			return caps.MatchApplier.ApplyMatch(ctx, coll, m.InternalMatchID, m.MatchedIDs)
		})
		if err != nil {
			return nil, err
		}
		ret = append(ret, *proc)
	}
	return ret, nil
}

// FailStale fails a match which lost its worker. It returns true if a match is failed.
func (e *Engine) FailStale(ctx context.Context, staleness time.Duration, budget time.Duration) (bool, error) {
	now := e.deps.Clock()
	staleBefore, createdBefore := engine.StaleBounds(now, staleness, budget)
	m, err := e.store.FailStale(ctx, staleBefore, createdBefore, now)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	e.deps.Logger.Printf("match %s is failed: %s", m.MatchID, m.Error)
	e.deps.Metrics.MatchEvent(m.MatcherID, "failed")
	return true, nil
}

// Expire moves a match not accessed for TTL into deleted state. It returns true if a match is moved.
//
// Expired match sets are also removed.
func (e *Engine) Expire(ctx context.Context) (bool, error) {
	now := e.deps.Clock()
	before := now.Add(-e.ttl)
	if n, err := e.store.DeleteExpiredSets(ctx, before); err != nil {
		return false, err
	} else if 0 < n {
		e.deps.Logger.Printf("%d match sets are expired", n)
	}

	m, err := e.store.PopExpired(ctx, before, now)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	e.deps.Metrics.MatchEvent(m.MatcherID, "expired")
	return true, nil
}

// Cleanup removes a deleted match with its artifacts. It returns true if a match is removed.
func (e *Engine) Cleanup(ctx context.Context) (bool, error) {
	return e.store.PopDeleted(ctx, func(m domain.Match) error {
		return e.cascade(ctx, m)
	})
}
