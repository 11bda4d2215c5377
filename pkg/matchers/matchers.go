// Package matchers defines matchers, which find data product rows related to workspace objects.
package matchers

import (
	"context"
	"fmt"
	"slices"

	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/workspace"
)

// Request is a request to a matcher.
type Request struct {
	// the collection version to be matched against.
	Collection domain.Collection

	// the match being computed.
	Match domain.Match

	// the workspace objects of the match, in order of Match.UPAs.
	Objects []workspace.ObjectInfo

	// token of the user who made the match.
	Token string
}

type Matcher interface {
	ID() string
	Description() string

	// workspace types which this matcher accepts.
	Types() []string

	// data products which a collection should have to use this matcher.
	RequiredDataProducts() []string

	// ValidateUserParameters checks parameters and returns canonical form of them.
	//
	// Defaults are filled, so that equivalent parameters have the same canonical form.
	//
	// Errors are ErrInvalidInput.
	ValidateUserParameters(params map[string]any) (map[string]any, error)

	// ValidateCollectionParameters checks parameters given by a collection.
	//
	// Errors are ErrInvalidInput.
	ValidateCollectionParameters(params map[string]any) error

	// ValidateObjects checks objects before matching.
	//
	// Errors from this are returned to the user who requested the match.
	ValidateObjects(req Request) error

	// Match computes the match and returns ids of matched rows of the primary data product.
	//
	// It may take long time.
	Match(ctx context.Context, req Request) ([]string, error)
}

// Genomes is a data product which matchers look up.
type Genomes interface {
	// MatchLineages returns ids of genomes with lineages (or lineages starting with them, if prefix).
	MatchLineages(ctx context.Context, coll domain.Collection, lineages []domain.Lineage, prefix bool) ([]string, error)

	// ResolveIDs returns ids existing in the collection.
	ResolveIDs(ctx context.Context, coll domain.Collection, ids []string) ([]string, error)
}

// Registry holds matchers installed in the service.
type Registry struct {
	matchers map[string]Matcher
}

func NewRegistry() *Registry {
	return &Registry{matchers: map[string]Matcher{}}
}

// Register installs a matcher. Registering the same id twice is a configuration error.
func (r *Registry) Register(m Matcher) error {
	if _, ok := r.matchers[m.ID()]; ok {
		return fmt.Errorf("%w: matcher %s is registered twice", domerr.ErrConfiguration, m.ID())
	}
	r.matchers[m.ID()] = m
	return nil
}

// Get returns the matcher. If it is not installed, it returns ErrNoSuchMatcher.
func (r *Registry) Get(id string) (Matcher, error) {
	m, ok := r.matchers[id]
	if !ok {
		return nil, domerr.NewInputError(domerr.ErrNoSuchMatcher, "no such matcher: %s", id)
	}
	return m, nil
}

func (r *Registry) IDs() []string {
	ret := make([]string, 0, len(r.matchers))
	for id := range r.matchers {
		ret = append(ret, id)
	}
	slices.Sort(ret)
	return ret
}

// ForCollection returns the matcher bound to the collection version.
//
// Errors
//
// - ErrNoRegisteredMatcher: the collection version does not use the matcher.
//
// - ErrNoSuchMatcher: the matcher is not installed in this service.
func (r *Registry) ForCollection(coll domain.Collection, id string) (Matcher, domain.MatcherSpec, error) {
	spec, ok := coll.Matcher(id)
	if !ok {
		return nil, domain.MatcherSpec{}, domerr.NewInputError(
			domerr.ErrNoRegisteredMatcher,
			"collection %s version %d does not have matcher %s", coll.ID, coll.VerNum, id,
		)
	}
	m, err := r.Get(id)
	if err != nil {
		return nil, domain.MatcherSpec{}, err
	}
	return m, spec, nil
}

// Validate checks matchers of a collection body: they are installed, their parameters are valid,
// and the data products they require are bound.
func (r *Registry) Validate(body domain.CollectionBody) error {
	for _, spec := range body.Matchers {
		m, err := r.Get(spec.Matcher)
		if err != nil {
			return err
		}
		if err := m.ValidateCollectionParameters(spec.Parameters); err != nil {
			return err
		}
		for _, dp := range m.RequiredDataProducts() {
			if !slices.ContainsFunc(body.DataProducts, func(d domain.DataProductSpec) bool { return d.Product == dp }) {
				return domerr.NewInputError(
					domerr.ErrInvalidInput,
					"matcher %s requires data product %s", spec.Matcher, dp,
				)
			}
		}
	}
	return nil
}

// UnknownKeys returns keys in params which are not in known, in order.
func UnknownKeys(params map[string]any, known ...string) []string {
	ret := []string{}
	for k := range params {
		if !slices.Contains(known, k) {
			ret = append(ret, k)
		}
	}
	slices.Sort(ret)
	return ret
}
