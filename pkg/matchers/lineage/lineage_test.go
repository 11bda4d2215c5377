package lineage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/matchers"
	"github.com/kbase/collections/pkg/matchers/lineage"
	"github.com/kbase/collections/pkg/utils/cmp"
	"github.com/kbase/collections/pkg/utils/try"
	"github.com/kbase/collections/pkg/workspace"
)

type genomes struct {
	lineages []domain.Lineage
	prefix   bool
	result   []string
}

func (g *genomes) MatchLineages(_ context.Context, _ domain.Collection, ls []domain.Lineage, prefix bool) ([]string, error) {
	g.lineages = ls
	g.prefix = prefix
	return g.result, nil
}

func (g *genomes) ResolveIDs(_ context.Context, _ domain.Collection, ids []string) ([]string, error) {
	return ids, nil
}

const (
	bacillus   = "d__Bacteria;p__Firmicutes;c__Bacilli;o__Bacillales;f__Bacillaceae;g__Bacillus;s__Bacillus subtilis"
	bacillusCe = "d__Bacteria;p__Firmicutes;c__Bacilli;o__Bacillales;f__Bacillaceae;g__Bacillus;s__Bacillus cereus"
)

func object(ref string, meta map[string]string) workspace.ObjectInfo {
	return workspace.ObjectInfo{Ref: ref, UPA: ref, Type: "KBaseGenomes.Genome", Metadata: meta}
}

func request(userParams map[string]any, objects ...workspace.ObjectInfo) matchers.Request {
	return matchers.Request{
		Match: domain.Match{
			UserParameters:       userParams,
			CollectionParameters: map[string]any{lineage.ParamGTDBVersion: "207.0"},
		},
		Objects: objects,
	}
}

func TestValidateUserParameters(t *testing.T) {
	testee := lineage.New(&genomes{})
	for name, testcase := range map[string]struct {
		when    map[string]any
		then    map[string]any
		wantErr bool
	}{
		"no params":     {when: map[string]any{}, then: map[string]any{}},
		"nil rank":      {when: map[string]any{"rank": nil}, then: map[string]any{}},
		"rank":          {when: map[string]any{"rank": "genus"}, then: map[string]any{"rank": "genus"}},
		"unknown rank":  {when: map[string]any{"rank": "strain"}, wantErr: true},
		"non string":    {when: map[string]any{"rank": 1}, wantErr: true},
		"unknown param": {when: map[string]any{"depth": 2}, wantErr: true},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := testee.ValidateUserParameters(testcase.when)
			if testcase.wantErr {
				if !errors.Is(err, domerr.ErrInvalidInput) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !cmp.MapEqWith(got, testcase.then, func(a, b any) bool { return a == b }) {
				t.Errorf("unexpected params: %v", got)
			}
		})
	}
}

func TestValidateCollectionParameters(t *testing.T) {
	testee := lineage.New(&genomes{})
	if err := testee.ValidateCollectionParameters(map[string]any{"gtdb_version": "207.0"}); err != nil {
		t.Error(err)
	}
	if err := testee.ValidateCollectionParameters(map[string]any{}); !errors.Is(err, domerr.ErrInvalidInput) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("exact lineages", func(t *testing.T) {
		g := &genomes{result: []string{"GB_1"}}
		testee := lineage.New(g)
		got := try.To(testee.Match(ctx, request(
			map[string]any{},
			object("1/1/1", map[string]string{lineage.MetaLineage: bacillus, lineage.MetaVersion: "207.0"}),
			object("1/2/1", map[string]string{lineage.MetaLineage: bacillus, lineage.MetaVersion: "207.0"}),
		))).OrFatal(t)
		if !cmp.SliceEq(got, []string{"GB_1"}) {
			t.Errorf("unexpected ids: %v", got)
		}
		if g.prefix || !cmp.SliceEq(g.lineages, []domain.Lineage{bacillus}) {
			t.Errorf("unexpected query: %v, %v", g.lineages, g.prefix)
		}
	})

	t.Run("lineages truncated at rank", func(t *testing.T) {
		g := &genomes{result: []string{"GB_1", "GB_2"}}
		testee := lineage.New(g)
		try.To(testee.Match(ctx, request(
			map[string]any{"rank": "genus"},
			object("1/1/1", map[string]string{lineage.MetaLineage: bacillus, lineage.MetaVersion: "207.0"}),
			object("1/2/1", map[string]string{lineage.MetaLineage: bacillusCe, lineage.MetaVersion: "207.0"}),
		))).OrFatal(t)
		expected := []domain.Lineage{
			"d__Bacteria;p__Firmicutes;c__Bacilli;o__Bacillales;f__Bacillaceae;g__Bacillus",
		}
		if !g.prefix || !cmp.SliceEq(g.lineages, expected) {
			t.Errorf("unexpected query: %v, %v", g.lineages, g.prefix)
		}
	})

	for name, testcase := range map[string]struct {
		meta map[string]string
		then error
	}{
		"missing lineage": {
			meta: map[string]string{lineage.MetaVersion: "207.0"},
			then: domerr.ErrMissingLineage,
		},
		"version mismatch": {
			meta: map[string]string{lineage.MetaLineage: bacillus, lineage.MetaVersion: "214.0"},
			then: domerr.ErrLineageVersion,
		},
		"incomplete lineage": {
			meta: map[string]string{lineage.MetaLineage: "d__Bacteria;p__Firmicutes", lineage.MetaVersion: "207.0"},
			then: domerr.ErrMissingLineage,
		},
	} {
		t.Run(name, func(t *testing.T) {
			testee := lineage.New(&genomes{})
			err := testee.ValidateObjects(request(map[string]any{}, object("1/1/1", testcase.meta)))
			if !errors.Is(err, testcase.then) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
