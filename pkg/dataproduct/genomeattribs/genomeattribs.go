// Package genomeattribs is the genome attributes data product.
//
// Rows are keyed by kbase_id in a collection load.
// Their columns are in a jsonb "attrs", described by column specs.
package genomeattribs

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgtype"
	"github.com/kbase/collections/pkg/columns"
	kpool "github.com/kbase/collections/pkg/conn/db/postgres/pool"
	"github.com/kbase/collections/pkg/conn/db/postgres/scanner"
	"github.com/kbase/collections/pkg/dataproduct"
	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	xe "github.com/kbase/collections/pkg/errors"
	"github.com/kbase/collections/pkg/filter"
	"github.com/kbase/collections/pkg/paging"
)

// ID is the data product id.
const ID = "genome_attribs"

// names of marker columns in listings.
const (
	MatchMark     = "__match__"
	SelectionMark = "__sel__"
)

type Product struct {
	pool  kpool.Pool
	specs *columns.Registry
}

var (
	_ dataproduct.MatchApplier      = &Product{}
	_ dataproduct.SelectionApplier  = &Product{}
	_ dataproduct.MatchDeleter      = &Product{}
	_ dataproduct.SelectionDeleter  = &Product{}
	_ dataproduct.SelectionExporter = &Product{}
	_ dataproduct.IDResolver        = &Product{}
	_ dataproduct.LoadChecker       = &Product{}
)

func New(pool kpool.Pool, specs *columns.Registry) *Product {
	return &Product{pool: pool, specs: specs}
}

func (*Product) ID() string {
	return ID
}

func (p *Product) loadVersion(coll domain.Collection) (string, error) {
	return coll.LoadVersion(ID)
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
		`select exists (select 1 from "genome_attribs" where "coll_id" = $1 and "load_ver" = $2)`,
		collectionID, loadVersion,
	).Scan(&found); err != nil {
		return false, xe.Wrap(err)
	}
	return found, nil
}

type idRow struct {
	KbaseID string `sql:"kbase_id"`
}

// ResolveIDs returns ids found in the load, in the order of ids.
func (p *Product) ResolveIDs(ctx context.Context, coll domain.Collection, ids []string) ([]string, error) {
	loadVer, err := p.loadVersion(coll)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := scanner.New[idRow]().QueryAll(
		ctx, conn,
		`select "kbase_id" from "genome_attribs"
		where "coll_id" = $1 and "load_ver" = $2 and "kbase_id" = any($3)`,
		coll.ID, loadVer, ids,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	found := map[string]struct{}{}
	for _, r := range rows {
		found[r.KbaseID] = struct{}{}
	}
	ret := make([]string, 0, len(found))
	for _, id := range ids {
		if _, ok := found[id]; ok {
			ret = append(ret, id)
		}
	}
	return ret, nil
}

func (p *Product) insertSubset(ctx context.Context, coll domain.Collection, internalID string, ids []string) error {
	loadVer, err := p.loadVersion(coll)
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
		insert into "genome_attribs_subset" ("internal_id", "coll_id", "load_ver", "kbase_id")
		select $1, "coll_id", "load_ver", "kbase_id" from "genome_attribs"
		where "coll_id" = $2 and "load_ver" = $3 and "kbase_id" = any($4)
		on conflict do nothing
		`,
		internalID, coll.ID, loadVer, ids,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

// ApplyMatch records matched genomes as a subset keyed by the internal match id.
func (p *Product) ApplyMatch(ctx context.Context, coll domain.Collection, internalMatchID string, ids []string) error {
	return p.insertSubset(ctx, coll, internalMatchID, ids)
}

// ApplySelection records selected genomes. Ids not in the load are ignored.
func (p *Product) ApplySelection(ctx context.Context, coll domain.Collection, sel domain.Selection) error {
	return p.insertSubset(ctx, coll, sel.InternalSelectionID, sel.SelectionIDs)
}

func (p *Product) deleteSubset(ctx context.Context, internalID string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx, `delete from "genome_attribs_subset" where "internal_id" = $1`, internalID,
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

type upaRow struct {
	KbaseID string       `sql:"kbase_id"`
	UPAMap  pgtype.JSONB `sql:"upa_map"`
}

// GetIDsForSelection returns workspace type to UPAs of selected genomes.
//
// Genomes without UPAs are counted as processed.
func (p *Product) GetIDsForSelection(ctx context.Context, coll domain.Collection, internalSelectionID string) (map[string][]string, int, error) {
	loadVer, err := p.loadVersion(coll)
	if err != nil {
		return nil, 0, err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := scanner.New[upaRow]().QueryAll(
		ctx, conn,
		`
		select "a"."kbase_id", "a"."upa_map"
		from "genome_attribs" as "a"
		inner join "genome_attribs_subset" as "s"
			on "s"."coll_id" = "a"."coll_id"
			and "s"."load_ver" = "a"."load_ver"
			and "s"."kbase_id" = "a"."kbase_id"
		where "s"."internal_id" = $1 and "a"."coll_id" = $2 and "a"."load_ver" = $3
		order by "a"."kbase_id"
		`,
		internalSelectionID, coll.ID, loadVer,
	)
	if err != nil {
		return nil, 0, xe.Wrap(err)
	}

	ret := map[string][]string{}
	for _, r := range rows {
		upas := map[string]string{}
		if err := r.UPAMap.AssignTo(&upas); err != nil {
			return nil, 0, xe.WrapWithNote(fmt.Sprintf("upa_map of %s", r.KbaseID), err)
		}
		for typ, upa := range upas {
			ret[typ] = append(ret[typ], upa)
		}
	}
	for typ := range ret {
		slices.Sort(ret[typ])
	}
	return ret, len(rows), nil
}

type lineageRow struct {
	KbaseID string `sql:"kbase_id"`
}

// MatchLineages returns ids of genomes whose lineage is one of lineages.
//
// When prefix is true, genomes in the taxa given by lineages are matched, too.
func (p *Product) MatchLineages(ctx context.Context, coll domain.Collection, lineages []domain.Lineage, prefix bool) ([]string, error) {
	loadVer, err := p.loadVersion(coll)
	if err != nil {
		return nil, err
	}
	if len(lineages) == 0 {
		return []string{}, nil
	}

	query, args := lineageQuery(coll.ID, loadVer, lineages, prefix)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := scanner.New[lineageRow]().QueryAll(ctx, conn, query, args...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	ret := make([]string, 0, len(rows))
	for _, r := range rows {
		ret = append(ret, r.KbaseID)
	}
	return ret, nil
}

func lineageQuery(collectionID string, loadVer string, lineages []domain.Lineage, prefix bool) (string, []any) {
	args := []any{collectionID, loadVer}
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	base := `select "kbase_id" from "genome_attribs" where "coll_id" = $1 and "load_ver" = $2`
	ls := make([]string, 0, len(lineages))
	for _, l := range lineages {
		ls = append(ls, string(l))
	}
	exact := fmt.Sprintf(`"classification" = any(%s)`, bind(ls))
	if !prefix {
		return fmt.Sprintf(`%s and %s order by "kbase_id"`, base, exact), args
	}

	// descendants of a taxon are in the range of "<lineage>;" in code point order,
	// so that "p__Firmicutes" does not cover its sibling "p__Firmicutes_A".
	// each range uses the classification index.
	conds := []string{exact}
	for _, l := range ls {
		lower := l + ";"
		conds = append(conds, fmt.Sprintf(
			`("classification" >= %s collate "C" and "classification" < %s collate "C")`,
			bind(lower), bind(domain.PrefixUpperBound(lower)),
		))
	}
	return fmt.Sprintf(
		`%s and (%s) order by "kbase_id"`, base, strings.Join(conds, " or "),
	), args
}

// Subset restricts (or marks) listed rows to members of matches or selections.
type Subset struct {
	// internal ids of the matches or selections.
	InternalIDs []string

	// when true, rows are not filtered but marked.
	Mark bool
}

func (s *Subset) given() bool {
	return s != nil && len(s.InternalIDs) != 0
}

type ListRequest struct {
	Filters     []filter.Param
	Conjunction filter.Conjunction

	Match     *Subset
	Selection *Subset

	// column keys to be returned. Empty means all visible columns.
	Keep []string

	// when true, only the count is returned.
	Count bool

	Page paging.Request
}

type ListResult struct {
	Fields []columns.ColumnSpec
	Rows   []map[string]any

	// count of rows. Set only for Count requests.
	Count int

	// cursor for the next page.
	Next string
}

type listRow struct {
	KbaseID       string       `sql:"kbase_id"`
	Attrs         pgtype.JSONB `sql:"attrs"`
	MatchMark     bool         `sql:"match_mark"`
	SelectionMark bool         `sql:"selection_mark"`
	SortValue     string       `sql:"sort_value"`
	SortKey       string       `sql:"sort_key"`
}

func (r listRow) Cursor() paging.Token {
	return paging.Token{V: r.SortValue, K: r.SortKey}
}

// fields returns columns to be returned.
func fields(specs columns.Specs, keep []string) ([]columns.ColumnSpec, error) {
	visible := specs.Visible()
	if len(keep) == 0 {
		return visible, nil
	}
	ret := make([]columns.ColumnSpec, 0, len(keep))
	for _, k := range keep {
		spec, ok := visible.Get(k)
		if !ok {
			return nil, domerr.NewInputError(domerr.ErrUnknownColumn, "no such column: %s", k)
		}
		ret = append(ret, spec)
	}
	return ret, nil
}

// subsetQuery returns a predicate that a genome "a" is in subsets.
func subsetQuery(param string) string {
	return fmt.Sprintf(`exists (
			select 1 from "genome_attribs_subset" as "s"
			where "s"."internal_id" = any(%s::uuid[])
				and "s"."coll_id" = "a"."coll_id"
				and "s"."load_ver" = "a"."load_ver"
				and "s"."kbase_id" = "a"."kbase_id"
		)`, param)
}

// listQuery builds the base query for List.
func listQuery(specs columns.Specs, collectionID string, loadVer string, req ListRequest) (paging.Query, error) {
	args := []any{collectionID, loadVer}
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	selects := []string{`"a"."kbase_id"`, `"a"."attrs"`}
	wheres := []string{`"a"."coll_id" = $1`, `"a"."load_ver" = $2`}

	for _, sub := range []struct {
		subset *Subset
		column string
	}{
		{subset: req.Match, column: "match_mark"},
		{subset: req.Selection, column: "selection_mark"},
	} {
		if !sub.subset.given() {
			continue
		}
		pred := subsetQuery(bind(sub.subset.InternalIDs))
		if sub.subset.Mark {
			selects = append(selects, fmt.Sprintf(`%s as "%s"`, pred, sub.column))
		} else {
			wheres = append(wheres, pred)
		}
	}

	pred, err := filter.Translate(specs, req.Filters, filter.Options{
		Conjunction: req.Conjunction,
		ArgOffset:   len(args),
		Attributes:  `"a"."attrs"`,
	})
	if err != nil {
		return paging.Query{}, err
	}
	if !pred.Empty() {
		wheres = append(wheres, pred.SQL)
		args = append(args, pred.Args...)
	}

	return paging.Query{
		SQL: fmt.Sprintf(
			`select %s from "genome_attribs" as "a" where %s`,
			strings.Join(selects, ", "), strings.Join(wheres, " and "),
		),
		Args: args,
		Key:  "kbase_id",
	}, nil
}

// List lists genomes in the collection.
func (p *Product) List(ctx context.Context, coll domain.Collection, req ListRequest) (ListResult, error) {
	loadVer, err := p.loadVersion(coll)
	if err != nil {
		return ListResult{}, err
	}
	specs, err := p.specs.Spec(ID, coll.ID)
	if err != nil {
		return ListResult{}, err
	}
	fs, err := fields(specs, req.Keep)
	if err != nil {
		return ListResult{}, err
	}
	q, err := listQuery(specs, coll.ID, loadVer, req)
	if err != nil {
		return ListResult{}, err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return ListResult{}, xe.Wrap(err)
	}
	defer conn.Release()

	if req.Count {
		var count int
		if err := conn.QueryRow(
			ctx, fmt.Sprintf(`select count(*) from (%s) as "q"`, q.SQL), q.Args...,
		).Scan(&count); err != nil {
			return ListResult{}, xe.Wrap(err)
		}
		return ListResult{Fields: fs, Rows: []map[string]any{}, Count: count}, nil
	}

	page, err := paging.Page[listRow](ctx, conn, specs, q, req.Page)
	if err != nil {
		return ListResult{}, err
	}

	rows := make([]map[string]any, 0, len(page.Rows))
	for _, r := range page.Rows {
		attrs := map[string]any{}
		if err := r.Attrs.AssignTo(&attrs); err != nil {
			return ListResult{}, xe.WrapWithNote(fmt.Sprintf("attrs of %s", r.KbaseID), err)
		}
		row := make(map[string]any, len(fs)+2)
		for _, f := range fs {
			row[f.Key] = attrs[f.Key]
		}
		if req.Match.given() && req.Match.Mark {
			row[MatchMark] = r.MatchMark
		}
		if req.Selection.given() && req.Selection.Mark {
			row[SelectionMark] = r.SelectionMark
		}
		rows = append(rows, row)
	}
	return ListResult{Fields: fs, Rows: rows, Next: page.Next}, nil
}
