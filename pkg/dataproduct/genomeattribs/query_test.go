package genomeattribs

import (
	"testing"

	"github.com/kbase/collections/pkg/columns"
	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/filter"
)

func TestLineageQuery(t *testing.T) {
	type then struct {
		sql  string
		args []any
	}
	for name, testcase := range map[string]struct {
		lineages []domain.Lineage
		prefix   bool
		then     then
	}{
		"exact match": {
			lineages: []domain.Lineage{"d__Bacteria;p__Firmicutes", "d__Archaea"},
			then: then{
				sql:  `select "kbase_id" from "genome_attribs" where "coll_id" = $1 and "load_ver" = $2 and "classification" = any($3) order by "kbase_id"`,
				args: []any{"GTDB", "r207", []string{"d__Bacteria;p__Firmicutes", "d__Archaea"}},
			},
		},
		"prefix match": {
			lineages: []domain.Lineage{"d__Bacteria;p__Firmicutes", "d__Archaea"},
			prefix:   true,
			then: then{
				sql:  `select "kbase_id" from "genome_attribs" where "coll_id" = $1 and "load_ver" = $2 and ("classification" = any($3) or ("classification" >= $4 collate "C" and "classification" < $5 collate "C") or ("classification" >= $6 collate "C" and "classification" < $7 collate "C")) order by "kbase_id"`,
				args: []any{
					"GTDB", "r207",
					[]string{"d__Bacteria;p__Firmicutes", "d__Archaea"},
					"d__Bacteria;p__Firmicutes;", "d__Bacteria;p__Firmicutes<",
					"d__Archaea;", "d__Archaea<",
				},
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			sql, args := lineageQuery("GTDB", "r207", testcase.lineages, testcase.prefix)
			if sql != testcase.then.sql {
				t.Errorf("unexpected sql:\n===actual===\n%s\n===expected===\n%s", sql, testcase.then.sql)
			}
			if len(args) != len(testcase.then.args) {
				t.Fatalf("unexpected args: %v", args)
			}
			for i := range args {
				switch a := args[i].(type) {
				case []string:
					e := testcase.then.args[i].([]string)
					if len(a) != len(e) {
						t.Errorf("arg %d: %v != %v", i, a, e)
						continue
					}
					for j := range a {
						if a[j] != e[j] {
							t.Errorf("arg %d: %v != %v", i, a, e)
						}
					}
				default:
					if a != testcase.then.args[i] {
						t.Errorf("arg %d: %v != %v", i, a, testcase.then.args[i])
					}
				}
			}
		})
	}
}

func TestListQuery(t *testing.T) {
	specs := columns.Specs{
		{Key: "kbase_id", Type: columns.String, FilterStrategy: columns.Identity},
		{Key: "checkm_completeness", Type: columns.Float},
	}

	t.Run("match filters and selection marks", func(t *testing.T) {
		q, err := listQuery(specs, "GTDB", "r207", ListRequest{
			Filters:   []filter.Param{{Key: "checkm_completeness", Value: "(5,"}},
			Match:     &Subset{InternalIDs: []string{"m1"}},
			Selection: &Subset{InternalIDs: []string{"s1"}, Mark: true},
		})
		if err != nil {
			t.Fatal(err)
		}
		if q.Key != "kbase_id" {
			t.Errorf("unexpected key: %s", q.Key)
		}
		if len(q.Args) != 6 {
			t.Fatalf("unexpected args: %v", q.Args)
		}
		if q.Args[4] != "checkm_completeness" || q.Args[5] != 5.0 {
			t.Errorf("unexpected filter args: %v", q.Args[4:])
		}
	})

	t.Run("no subsets", func(t *testing.T) {
		q, err := listQuery(specs, "GTDB", "r207", ListRequest{Match: &Subset{}})
		if err != nil {
			t.Fatal(err)
		}
		expected := `select "a"."kbase_id", "a"."attrs" from "genome_attribs" as "a" where "a"."coll_id" = $1 and "a"."load_ver" = $2`
		if q.SQL != expected {
			t.Errorf("unexpected sql:\n===actual===\n%s\n===expected===\n%s", q.SQL, expected)
		}
	})
}
