package collections_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kbase/collections/pkg/api/types/collections"
	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/utils/try"
)

func TestCompose(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	activated := created.Add(time.Hour)

	for name, testcase := range map[string]struct {
		when domain.Collection
		then string
	}{
		"inactive version": {
			when: domain.Collection{
				ID: "GTDB", VerTag: "r207", VerNum: 3,
				CollectionBody: domain.CollectionBody{
					Name: "GTDB", VerSrc: "207",
					DataProducts: []domain.DataProductSpec{
						{Product: "genome_attribs", Version: "r207.kbase.1"},
					},
					DefaultSelect: "genome_attribs",
				},
				Created: created, UserCreate: "alice",
			},
			then: `{
				"id": "GTDB", "ver_tag": "r207", "ver_num": 3,
				"name": "GTDB", "ver_src": "207",
				"data_products": [{"product": "genome_attribs", "version": "r207.kbase.1"}],
				"matchers": [],
				"default_select": "genome_attribs",
				"date_create": "2024-01-02T03:04:05+00:00",
				"user_create": "alice"
			}`,
		},
		"active version with matcher": {
			when: domain.Collection{
				ID: "GTDB", VerTag: "r207", VerNum: 3,
				CollectionBody: domain.CollectionBody{
					Name: "GTDB", VerSrc: "207",
					Matchers: []domain.MatcherSpec{
						{Matcher: "gtdb_lineage", Parameters: map[string]any{"gtdb_version": "207.0"}},
					},
				},
				Created: created, UserCreate: "alice",
				Activated: &activated, UserActivate: "bob",
			},
			then: `{
				"id": "GTDB", "ver_tag": "r207", "ver_num": 3,
				"name": "GTDB", "ver_src": "207",
				"data_products": [],
				"matchers": [{"matcher": "gtdb_lineage", "parameters": {"gtdb_version": "207.0"}}],
				"date_create": "2024-01-02T03:04:05+00:00",
				"user_create": "alice",
				"date_active": "2024-01-02T04:04:05+00:00",
				"user_active": "bob"
			}`,
		},
	} {
		t.Run(name, func(t *testing.T) {
			got := try.To(json.Marshal(collections.Compose(testcase.when))).OrFatal(t)

			var actual, expected any
			if err := json.Unmarshal(got, &actual); err != nil {
				t.Fatal(err)
			}
			if err := json.Unmarshal([]byte(testcase.then), &expected); err != nil {
				t.Fatal(err)
			}

			a := try.To(json.Marshal(actual)).OrFatal(t)
			e := try.To(json.Marshal(expected)).OrFatal(t)
			if string(a) != string(e) {
				t.Errorf("unexpected json:\n===actual===\n%s\n===expected===\n%s", a, e)
			}
		})
	}
}

func TestBody_Domain(t *testing.T) {
	var body collections.Body
	if err := json.Unmarshal([]byte(`{
		"name": "GTDB", "ver_src": "207",
		"data_products": [{"product": "taxa_count", "version": "1"}],
		"matchers": [{"matcher": "minhash_homology", "parameters": {"sketch_db": "gtdb"}}]
	}`), &body); err != nil {
		t.Fatal(err)
	}

	got := body.Domain()
	if got.Name != "GTDB" || got.VerSrc != "207" {
		t.Errorf("unexpected body: %+v", got)
	}
	if len(got.DataProducts) != 1 || got.DataProducts[0].Product != "taxa_count" {
		t.Errorf("unexpected data products: %+v", got.DataProducts)
	}
	if len(got.Matchers) != 1 || got.Matchers[0].Parameters["sketch_db"] != "gtdb" {
		t.Errorf("unexpected matchers: %+v", got.Matchers)
	}
}
