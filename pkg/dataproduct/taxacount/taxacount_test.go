package taxacount_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/kbase/collections/pkg/conn/db/postgres/pool/testenv"
	"github.com/kbase/collections/pkg/dataproduct/genomeattribs"
	"github.com/kbase/collections/pkg/dataproduct/taxacount"
	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/utils/try"
)

var coll = domain.Collection{
	ID:     "GTDB",
	VerNum: 1,
	CollectionBody: domain.CollectionBody{
		DataProducts: []domain.DataProductSpec{
			{Product: genomeattribs.ID, Version: "r207"},
			{Product: taxacount.ID, Version: "r207"},
		},
	},
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	pool := testenv.NewPoolBroaker(ctx, t).GetPool(ctx, t)
	conn := try.To(pool.Acquire(ctx)).OrFatal(t)
	defer conn.Release()

	for id, lineage := range map[string]string{
		"GB_1": "d__Bacteria;p__Firmicutes;c__Bacilli",
		"GB_2": "d__Bacteria;p__Firmicutes;c__Clostridia",
		"GB_3": "d__Bacteria;p__Proteobacteria",
		"GB_4": "d__Archaea;p__Thermoproteota",
	} {
		if _, err := conn.Exec(
			ctx,
			`insert into "genome_attribs" ("coll_id", "load_ver", "kbase_id", "classification") values ('GTDB', 'r207', $1, $2)`,
			id, lineage,
		); err != nil {
			t.Fatal(err)
		}
	}
	for _, c := range []struct {
		rank  string
		name  string
		count int
	}{
		{rank: "domain", name: "Bacteria", count: 3},
		{rank: "domain", name: "Archaea", count: 1},
		{rank: "phylum", name: "Firmicutes", count: 2},
		{rank: "phylum", name: "Proteobacteria", count: 1},
		{rank: "phylum", name: "Thermoproteota", count: 1},
	} {
		if _, err := conn.Exec(
			ctx,
			`insert into "taxa_count" ("coll_id", "load_ver", "rank", "name", "count") values ('GTDB', 'r207', $1, $2, $3)`,
			c.rank, c.name, c.count,
		); err != nil {
			t.Fatal(err)
		}
	}

	testee := taxacount.New(pool)

	ranks := try.To(testee.Ranks(ctx, coll)).OrFatal(t)
	if len(ranks) != 2 || ranks[0] != domain.Domain || ranks[1] != domain.Phylum {
		t.Errorf("unexpected ranks: %v", ranks)
	}

	matchID := uuid.NewString()
	if err := testee.ApplyMatch(ctx, coll, matchID, []string{"GB_1", "GB_2", "GB_4"}); err != nil {
		t.Fatal(err)
	}

	got := try.To(testee.Counts(ctx, coll, taxacount.CountRequest{
		Rank:             domain.Phylum,
		Limit:            2,
		MatchInternalIDs: []string{matchID},
	})).OrFatal(t)

	type count struct {
		name  string
		count int
		match int
	}
	expected := []count{
		{name: "Firmicutes", count: 2, match: 2},
		{name: "Proteobacteria", count: 1, match: 0},
	}
	if len(got) != len(expected) {
		t.Fatalf("unexpected counts: %+v", got)
	}
	for i, e := range expected {
		g := got[i]
		if g.Name != e.name || g.Count != e.count || g.MatchCount == nil || *g.MatchCount != e.match {
			t.Errorf("#%d: unexpected count: %+v (expected %+v)", i, g, e)
		}
		if g.SelectionCount != nil {
			t.Errorf("#%d: selection count is not requested: %+v", i, g)
		}
	}

	if err := testee.DeleteMatch(ctx, matchID); err != nil {
		t.Fatal(err)
	}
	got = try.To(testee.Counts(ctx, coll, taxacount.CountRequest{
		Rank: domain.Domain, MatchInternalIDs: []string{matchID},
	})).OrFatal(t)
	for _, g := range got {
		if *g.MatchCount != 0 {
			t.Errorf("subset is not deleted: %+v", g)
		}
	}

	if _, err := testee.Counts(ctx, coll, taxacount.CountRequest{Rank: "strain"}); !errors.Is(err, domerr.ErrInvalidInput) {
		t.Errorf("unexpected error: %v", err)
	}
}
