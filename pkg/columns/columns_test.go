package columns_test

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/kbase/collections/pkg/columns"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/utils/cmp"
	"github.com/kbase/collections/pkg/utils/try"
)

const gtdbSpec = `
columns:
  - key: kbase_id
    type: string
    filter_strategy: identity
    display_name: KBase ID
    category: Identifiers
  - key: classification
    type: string
    filter_strategy: ngram
  - key: checkm_completeness
    type: float
  - key: kbase_display_name
    type: string
    filter_strategy: ngram
    non_visible: true
`

const pmiSpec = `
columns:
  - key: kbase_id
    type: string
    filter_strategy: identity
    display_name: KBase ID
    category: Identifiers
  - key: isolation_date
    type: date
`

func TestParse(t *testing.T) {
	for name, testcase := range map[string]struct {
		when      string
		then      []string
		wantError bool
	}{
		"well-formed spec": {
			when: gtdbSpec,
			then: []string{"kbase_id", "classification", "checkm_completeness", "kbase_display_name"},
		},
		"duplicated key": {
			when: `
columns:
  - {key: a, type: int}
  - {key: a, type: int}
`,
			wantError: true,
		},
		"unknown type": {
			when:      `columns: [{key: a, type: enum}]`,
			wantError: true,
		},
		"unknown strategy": {
			when:      `columns: [{key: a, type: string, filter_strategy: fuzzy}]`,
			wantError: true,
		},
		"strategy on non-string": {
			when:      `columns: [{key: a, type: int, filter_strategy: identity}]`,
			wantError: true,
		},
		"string without strategy": {
			when:      `columns: [{key: a, type: string}]`,
			wantError: true,
		},
		"unknown field": {
			when:      `columns: [{key: a, type: int, hidden: true}]`,
			wantError: true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			specs, err := columns.Parse("test.yml", strings.NewReader(testcase.when))
			if testcase.wantError {
				if !errors.Is(err, domerr.ErrConfiguration) {
					t.Errorf("unexpected error: %v", err)
				}
				cerr := new(columns.ConfigurationError)
				if !errors.As(err, &cerr) || cerr.Source != "test.yml" {
					t.Errorf("error is not ConfigurationError: %#v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !cmp.SliceEq(specs.Keys(), testcase.then) {
				t.Errorf("unexpected keys: %v", specs.Keys())
			}
		})
	}
}

func TestMerge(t *testing.T) {
	gtdb := try.To(columns.Parse("GTDB", strings.NewReader(gtdbSpec))).OrFatal(t)
	pmi := try.To(columns.Parse("PMI", strings.NewReader(pmiSpec))).OrFatal(t)

	t.Run("same keys are merged", func(t *testing.T) {
		merged := try.To(columns.Merge(map[string]columns.Specs{"GTDB": gtdb, "PMI": pmi})).OrFatal(t)
		if !cmp.SliceEq(merged.Keys(), []string{
			"kbase_id", "classification", "checkm_completeness", "kbase_display_name", "isolation_date",
		}) {
			t.Errorf("unexpected keys: %v", merged.Keys())
		}
	})

	t.Run("conflicting keys are error", func(t *testing.T) {
		conflict := columns.Specs{{Key: "kbase_id", Type: columns.String, FilterStrategy: columns.Prefix}}
		_, err := columns.Merge(map[string]columns.Specs{"GTDB": gtdb, "ENIGMA": conflict})
		cerr := new(columns.ConfigurationError)
		if !errors.As(err, &cerr) {
			t.Fatalf("unexpected error: %v", err)
		}
		if cerr.Source != "ENIGMA, GTDB" {
			t.Errorf("unexpected source: %s", cerr.Source)
		}
	})
}

func TestRegistry(t *testing.T) {
	fsys := fstest.MapFS{
		"genome_attribs/GTDB.yml": {Data: []byte(gtdbSpec)},
		"genome_attribs/PMI.yml":  {Data: []byte(pmiSpec)},
		"genome_attribs/README":   {Data: []byte("not a spec")},
		"empty/.keep":             {Data: []byte{}},
	}
	registry := try.To(columns.LoadFS(fsys)).OrFatal(t)

	if !cmp.SliceEq(registry.Products(), []string{"genome_attribs"}) {
		t.Errorf("unexpected products: %v", registry.Products())
	}

	for name, testcase := range map[string]struct {
		collection string
		then       []string
	}{
		"collection spec": {
			collection: "PMI",
			then:       []string{"kbase_id", "isolation_date"},
		},
		"empty collection is the default": {
			collection: "",
			then: []string{
				"kbase_id", "classification", "checkm_completeness", "kbase_display_name", "isolation_date",
			},
		},
		"collection without own spec gets the default": {
			collection: "ENIGMA",
			then: []string{
				"kbase_id", "classification", "checkm_completeness", "kbase_display_name", "isolation_date",
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			specs := try.To(registry.Spec("genome_attribs", testcase.collection)).OrFatal(t)
			if !cmp.SliceEq(specs.Keys(), testcase.then) {
				t.Errorf("unexpected keys: %v", specs.Keys())
			}
		})
	}

	t.Run("unknown product", func(t *testing.T) {
		if _, err := registry.Spec("biolog", ""); !errors.Is(err, domerr.ErrNoSuchDataProduct) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("broken file fails loading", func(t *testing.T) {
		fsys := fstest.MapFS{
			"genome_attribs/GTDB.yml": {Data: []byte(`columns: [{key: a, type: string}]`)},
		}
		if _, err := columns.LoadFS(fsys); !errors.Is(err, domerr.ErrConfiguration) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestColumnSpec_Sortable(t *testing.T) {
	for name, testcase := range map[string]struct {
		when columns.ColumnSpec
		then bool
	}{
		"number":          {when: columns.ColumnSpec{Key: "a", Type: columns.Float}, then: true},
		"identity string": {when: columns.ColumnSpec{Key: "a", Type: columns.String, FilterStrategy: columns.Identity}, then: true},
		"prefix string":   {when: columns.ColumnSpec{Key: "a", Type: columns.String, FilterStrategy: columns.Prefix}, then: true},
		"ngram string":    {when: columns.ColumnSpec{Key: "a", Type: columns.String, FilterStrategy: columns.Ngram}, then: false},
		"fulltext string": {when: columns.ColumnSpec{Key: "a", Type: columns.String, FilterStrategy: columns.FullText}, then: false},
		"hidden":          {when: columns.ColumnSpec{Key: "a", Type: columns.Int, NonVisible: true}, then: false},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := testcase.when.Sortable(); actual != testcase.then {
				t.Errorf("unexpected: %v", actual)
			}
		})
	}
}
