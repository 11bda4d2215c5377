// Package minhash is a matcher by minhash homology, computed by the sketch service.
package minhash

import (
	"context"
	"slices"
	"sync"

	"github.com/kbase/collections/pkg/dataproduct/genomeattribs"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/matchers"
	"github.com/kbase/collections/pkg/sketch"
	"golang.org/x/sync/errgroup"
)

const ID = "minhash_homology"

// parameters
const (
	ParamMaxDistance  = "maximum_distance"
	ParamSketchDBName = "sketch_database_name"
)

const (
	DefaultMaxDistance = 0.5

	// concurrent calls to the sketch service per match.
	Concurrency = 10
)

type Matcher struct {
	genomes matchers.Genomes
	sketch  sketch.Client
}

func New(genomes matchers.Genomes, sk sketch.Client) *Matcher {
	return &Matcher{genomes: genomes, sketch: sk}
}

func (*Matcher) ID() string {
	return ID
}

func (*Matcher) Description() string {
	return "Matches based on Minhash homology."
}

func (*Matcher) Types() []string {
	return []string{"KBaseGenomes.Genome", "KBaseGenomeAnnotations.Assembly"}
}

func (*Matcher) RequiredDataProducts() []string {
	return []string{genomeattribs.ID}
}

// ValidateUserParameters accepts "maximum_distance" in [0, 0.5]. It defaults to 0.5.
func (*Matcher) ValidateUserParameters(params map[string]any) (map[string]any, error) {
	if unknown := matchers.UnknownKeys(params, ParamMaxDistance); len(unknown) != 0 {
		return nil, domerr.NewInputError(domerr.ErrInvalidInput, "unknown parameters for %s: %v", ID, unknown)
	}
	v, ok := params[ParamMaxDistance]
	if !ok || v == nil {
		return map[string]any{ParamMaxDistance: DefaultMaxDistance}, nil
	}
	var dist float64
	switch n := v.(type) {
	case float64:
		dist = n
	case int:
		dist = float64(n)
	default:
		return nil, domerr.NewInputError(domerr.ErrInvalidInput, "%s should be a number", ParamMaxDistance)
	}
	if dist < 0 || DefaultMaxDistance < dist {
		return nil, domerr.NewInputError(
			domerr.ErrInvalidInput, "%s should be in [0, %v]: %v", ParamMaxDistance, DefaultMaxDistance, dist,
		)
	}
	return map[string]any{ParamMaxDistance: dist}, nil
}

func (*Matcher) ValidateCollectionParameters(params map[string]any) error {
	if unknown := matchers.UnknownKeys(params, ParamSketchDBName); len(unknown) != 0 {
		return domerr.NewInputError(domerr.ErrInvalidInput, "unknown collection parameters for %s: %v", ID, unknown)
	}
	if v, ok := params[ParamSketchDBName].(string); !ok || v == "" {
		return domerr.NewInputError(domerr.ErrInvalidInput, "%s requires %s", ID, ParamSketchDBName)
	}
	return nil
}

// ValidateObjects does nothing. Types of objects are checked by the caller.
func (*Matcher) ValidateObjects(matchers.Request) error {
	return nil
}

func maxDistance(params map[string]any) float64 {
	if d, ok := params[ParamMaxDistance].(float64); ok {
		return d
	}
	return DefaultMaxDistance
}

func (m *Matcher) Match(ctx context.Context, req matchers.Request) ([]string, error) {
	searchDB, _ := req.Match.CollectionParameters[ParamSketchDBName].(string)
	maxDist := maxDistance(req.Match.UserParameters)

	var mu sync.Mutex
	found := []string{}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(Concurrency)
	for _, o := range req.Objects {
		o := o
		eg.Go(func() error {
			homologs, err := m.sketch.GetHomologs(egctx, req.Token, o.Ref, searchDB)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, h := range homologs {
				if h.Dist <= maxDist {
					found = append(found, h.SourceID)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slices.Sort(found)
	found = slices.Compact(found)

	// the sketch database may know genomes which are not in this collection load.
	return m.genomes.ResolveIDs(ctx, req.Collection, found)
}
