// Package taxacount is the taxa count data product.
//
// It holds genome counts per taxon for each GTDB rank.
// Counts for matches and selections are computed from genome attributes on demand.
package taxacount

import (
	"context"
	"slices"

	kpool "github.com/kbase/collections/pkg/conn/db/postgres/pool"
	"github.com/kbase/collections/pkg/conn/db/postgres/scanner"
	"github.com/kbase/collections/pkg/dataproduct"
	"github.com/kbase/collections/pkg/dataproduct/genomeattribs"
	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	xe "github.com/kbase/collections/pkg/errors"
)

// ID is the data product id.
const ID = "taxa_count"

// DefaultLimit is the count of taxa returned by Counts by default.
const DefaultLimit = 20

type Product struct {
	pool kpool.Pool
}

var (
	_ dataproduct.MatchApplier     = &Product{}
	_ dataproduct.SelectionApplier = &Product{}
	_ dataproduct.MatchDeleter     = &Product{}
	_ dataproduct.SelectionDeleter = &Product{}
	_ dataproduct.LoadChecker      = &Product{}
)

func New(pool kpool.Pool) *Product {
	return &Product{pool: pool}
}

func (*Product) ID() string {
	return ID
}

func (p *Product) HasLoad(ctx context.Context, collectionID string, loadVersion string) (bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, xe.Wrap(err)
	}
	defer conn.Release()

	var found bool
	if err := conn.QueryRow(
		ctx,
		`select exists (select 1 from "taxa_count" where "coll_id" = $1 and "load_ver" = $2)`,
		collectionID, loadVersion,
	).Scan(&found); err != nil {
		return false, xe.Wrap(err)
	}
	return found, nil
}

func ranks() []string {
	rs := domain.GTDBRanks()
	ret := make([]string, 0, len(rs))
	for _, r := range rs {
		ret = append(ret, r.String())
	}
	return ret
}

// applySubset counts genomes in ids per taxon, for each rank.
//
// A rank missing in the classification of a genome is not counted.
func (p *Product) applySubset(ctx context.Context, coll domain.Collection, internalID string, ids []string) error {
	loadVer, err := coll.LoadVersion(ID)
	if err != nil {
		return err
	}
	genomeLoadVer, err := coll.LoadVersion(genomeattribs.ID)
	if err != nil {
		return err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`
		with "taxon" as (
			select
				"r"."rank",
				substr(split_part("a"."classification", ';', "r"."n"::int), 4) as "name"
			from "genome_attribs" as "a"
			cross join unnest($4::text[]) with ordinality as "r"("rank", "n")
			where "a"."coll_id" = $2 and "a"."load_ver" = $5 and "a"."kbase_id" = any($6)
				and split_part("a"."classification", ';', "r"."n"::int) <> ''
		)
		insert into "taxa_count_subset" ("internal_id", "coll_id", "load_ver", "rank", "name", "count")
		select $1, $2, $3, "rank", "name", count(*) from "taxon"
		group by "rank", "name"
		on conflict do nothing
		`,
		internalID, coll.ID, loadVer, ranks(), genomeLoadVer, ids,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (p *Product) ApplyMatch(ctx context.Context, coll domain.Collection, internalMatchID string, ids []string) error {
	return p.applySubset(ctx, coll, internalMatchID, ids)
}

func (p *Product) ApplySelection(ctx context.Context, coll domain.Collection, sel domain.Selection) error {
	return p.applySubset(ctx, coll, sel.InternalSelectionID, sel.SelectionIDs)
}

func (p *Product) deleteSubset(ctx context.Context, internalID string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx, `delete from "taxa_count_subset" where "internal_id" = $1`, internalID,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (p *Product) DeleteMatch(ctx context.Context, internalMatchID string) error {
	return p.deleteSubset(ctx, internalMatchID)
}

func (p *Product) DeleteSelection(ctx context.Context, internalSelectionID string) error {
	return p.deleteSubset(ctx, internalSelectionID)
}

type rankRow struct {
	Rank string `sql:"rank"`
}

// Ranks returns ranks having counts, in order from domain to species.
func (p *Product) Ranks(ctx context.Context, coll domain.Collection) ([]domain.GTDBRank, error) {
	loadVer, err := coll.LoadVersion(ID)
	if err != nil {
		return nil, err
	}
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := scanner.New[rankRow]().QueryAll(
		ctx, conn,
		`select distinct "rank" from "taxa_count" where "coll_id" = $1 and "load_ver" = $2`,
		coll.ID, loadVer,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	ret := []domain.GTDBRank{}
	for _, r := range rows {
		rank, err := domain.AsGTDBRank(r.Rank)
		if err != nil {
			continue
		}
		ret = append(ret, rank)
	}
	slices.SortFunc(ret, func(a, b domain.GTDBRank) int { return a.Index() - b.Index() })
	return ret, nil
}

// Count is a genome count of a taxon.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`

	// counts in the match or selection. nil when not requested.
	MatchCount     *int `json:"match_count,omitempty"`
	SelectionCount *int `json:"sel_count,omitempty"`
}

type CountRequest struct {
	Rank domain.GTDBRank

	// max taxa to be returned. 0 means DefaultLimit.
	Limit int

	// internal ids of matches and selections to be counted.
	// Their counts should be computed with ApplyMatch/ApplySelection beforehand.
	MatchInternalIDs     []string
	SelectionInternalIDs []string
}

type countRow struct {
	Name  string `sql:"name"`
	Count int    `sql:"count"`
}

// Counts returns taxa with the most genomes at the rank, in descending order of counts.
func (p *Product) Counts(ctx context.Context, coll domain.Collection, req CountRequest) ([]Count, error) {
	loadVer, err := coll.LoadVersion(ID)
	if err != nil {
		return nil, err
	}
	if req.Rank.Index() < 0 {
		return nil, domerr.NewInputError(domerr.ErrInvalidInput, "unknown rank: %s", req.Rank)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	top, err := scanner.New[countRow]().QueryAll(
		ctx, conn,
		`
		select "name", "count" from "taxa_count"
		where "coll_id" = $1 and "load_ver" = $2 and "rank" = $3
		order by "count" desc, "name" collate "C"
		limit $4
		`,
		coll.ID, loadVer, req.Rank.String(), limit,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	ret := make([]Count, 0, len(top))
	names := make([]string, 0, len(top))
	for _, r := range top {
		ret = append(ret, Count{Name: r.Name, Count: r.Count})
		names = append(names, r.Name)
	}

	subsetCounts := func(internalIDs []string) (map[string]int, error) {
		rows, err := scanner.New[countRow]().QueryAll(
			ctx, conn,
			`
			select "name", sum("count")::bigint as "count" from "taxa_count_subset"
			where "internal_id" = any($1::uuid[]) and "rank" = $2 and "name" = any($3)
			group by "name"
			`,
			internalIDs, req.Rank.String(), names,
		)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		counts := map[string]int{}
		for _, r := range rows {
			counts[r.Name] = r.Count
		}
		return counts, nil
	}

	if len(req.MatchInternalIDs) != 0 {
		counts, err := subsetCounts(req.MatchInternalIDs)
		if err != nil {
			return nil, err
		}
		for i := range ret {
			c := counts[ret[i].Name]
			ret[i].MatchCount = &c
		}
	}
	if len(req.SelectionInternalIDs) != 0 {
		counts, err := subsetCounts(req.SelectionInternalIDs)
		if err != nil {
			return nil, err
		}
		for i := range ret {
			c := counts[ret[i].Name]
			ret[i].SelectionCount = &c
		}
	}
	return ret, nil
}
