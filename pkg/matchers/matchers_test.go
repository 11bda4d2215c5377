package matchers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/matchers"
	"github.com/kbase/collections/pkg/utils/cmp"
)

type stubMatcher struct {
	id       string
	requires []string
}

func (s stubMatcher) ID() string                     { return s.id }
func (stubMatcher) Description() string              { return "stub" }
func (stubMatcher) Types() []string                  { return []string{"KBaseGenomes.Genome"} }
func (s stubMatcher) RequiredDataProducts() []string { return s.requires }
func (stubMatcher) ValidateUserParameters(p map[string]any) (map[string]any, error) {
	return p, nil
}
func (stubMatcher) ValidateCollectionParameters(p map[string]any) error {
	if _, ok := p["db"]; !ok {
		return domerr.NewInputError(domerr.ErrInvalidInput, "db is required")
	}
	return nil
}
func (stubMatcher) ValidateObjects(matchers.Request) error { return nil }
func (stubMatcher) Match(context.Context, matchers.Request) ([]string, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := matchers.NewRegistry()
	if err := r.Register(stubMatcher{id: "stub", requires: []string{"genome_attribs"}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(stubMatcher{id: "stub"}); !errors.Is(err, domerr.ErrConfiguration) {
		t.Errorf("unexpected error: %v", err)
	}

	coll := domain.Collection{
		ID: "GTDB",
		CollectionBody: domain.CollectionBody{
			DataProducts: []domain.DataProductSpec{{Product: "genome_attribs", Version: "1"}},
			Matchers: []domain.MatcherSpec{
				{Matcher: "stub", Parameters: map[string]any{"db": "x"}},
				{Matcher: "gone", Parameters: map[string]any{}},
			},
		},
	}

	for name, testcase := range map[string]struct {
		when string
		then error
	}{
		"registered":          {when: "stub"},
		"not in collection":   {when: "minhash_homology", then: domerr.ErrNoRegisteredMatcher},
		"not in this service": {when: "gone", then: domerr.ErrNoSuchMatcher},
	} {
		t.Run(name, func(t *testing.T) {
			m, _, err := r.ForCollection(coll, testcase.when)
			if testcase.then == nil {
				if err != nil || m.ID() != testcase.when {
					t.Errorf("unexpected result: %v, %v", m, err)
				}
				return
			}
			if !errors.Is(err, testcase.then) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	t.Run("validate collection", func(t *testing.T) {
		body := coll.CollectionBody
		body.Matchers = body.Matchers[:1]
		if err := r.Validate(body); err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		body.DataProducts = nil
		if err := r.Validate(body); !errors.Is(err, domerr.ErrInvalidInput) {
			t.Errorf("missing data product is not detected: %v", err)
		}

		body.Matchers = []domain.MatcherSpec{{Matcher: "stub", Parameters: map[string]any{}}}
		if err := r.Validate(body); !errors.Is(err, domerr.ErrInvalidInput) {
			t.Errorf("invalid parameter is not detected: %v", err)
		}
	})

	if !cmp.SliceEq(matchers.UnknownKeys(map[string]any{"b": 1, "a": 2, "rank": 3}, "rank"), []string{"a", "b"}) {
		t.Error("unexpected unknown keys")
	}
}
