package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	kpool "github.com/kbase/collections/pkg/conn/db/postgres/pool"
	"github.com/kbase/collections/pkg/conn/db/postgres/scanner"
	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/domain/errors/dberrors"
	ksel "github.com/kbase/collections/pkg/domain/selection/db"
	xe "github.com/kbase/collections/pkg/errors"
)

// cause of failure recorded by FailStale
const (
	CauseTimedOut   = "timed out"
	CauseWorkerLost = "worker lost: no heartbeat"
)

type pgSelection struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) ksel.SelectionInterface {
	return &pgSelection{pool: pool}
}

var selectionColumns = []string{
	"internal_selection_id", "selection_id", "collection_id", "collection_ver", "data_product",
	"selection_ids", "unmatched_ids", "requested_count", "resolved_count",
	"source_match_id", "modified_post_match",
	"state", "error", "created", "last_access", "state_updated", "heartbeat",
}

// columns returns comma separated column names, qualified with table if it is not empty.
func columns(table string) string {
	cols := make([]string, len(selectionColumns))
	for i, c := range selectionColumns {
		if table == "" {
			cols[i] = fmt.Sprintf(`"%s"`, c)
		} else {
			cols[i] = fmt.Sprintf(`"%s"."%s"`, table, c)
		}
	}
	return strings.Join(cols, ", ")
}

type selectionRow struct {
	InternalSelectionID string             `sql:"internal_selection_id"`
	SelectionID         string             `sql:"selection_id"`
	CollectionID        string             `sql:"collection_id"`
	CollectionVer       int                `sql:"collection_ver"`
	DataProduct         string             `sql:"data_product"`
	SelectionIDs        []string           `sql:"selection_ids"`
	UnmatchedIDs        []string           `sql:"unmatched_ids"`
	RequestedCount      int                `sql:"requested_count"`
	ResolvedCount       int                `sql:"resolved_count"`
	SourceMatchID       string             `sql:"source_match_id"`
	ModifiedPostMatch   bool               `sql:"modified_post_match"`
	State               string             `sql:"state"`
	Error               string             `sql:"error"`
	Created             time.Time          `sql:"created"`
	LastAccess          time.Time          `sql:"last_access"`
	StateUpdated        time.Time          `sql:"state_updated"`
	Heartbeat           pgtype.Timestamptz `sql:"heartbeat"`
}

func (r selectionRow) toDomain() (domain.Selection, error) {
	state, err := domain.AsProcessState(r.State)
	if err != nil {
		return domain.Selection{}, err
	}
	sel := domain.Selection{
		SelectionID:         r.SelectionID,
		InternalSelectionID: r.InternalSelectionID,
		CollectionID:        r.CollectionID,
		CollectionVer:       r.CollectionVer,
		DataProduct:         r.DataProduct,
		SelectionIDs:        r.SelectionIDs,
		UnmatchedIDs:        r.UnmatchedIDs,
		RequestedCount:      r.RequestedCount,
		ResolvedCount:       r.ResolvedCount,
		SourceMatchID:       r.SourceMatchID,
		ModifiedPostMatch:   r.ModifiedPostMatch,
		LastAccess:          r.LastAccess,
		Lifecycle: domain.Lifecycle{
			State:        state,
			Error:        r.Error,
			Created:      r.Created,
			StateUpdated: r.StateUpdated,
		},
	}
	if r.Heartbeat.Status == pgtype.Present {
		hb := r.Heartbeat.Time
		sel.Heartbeat = &hb
	}
	return sel, nil
}

func querySelections(ctx context.Context, conn kpool.Queryer, query string, params ...any) ([]domain.Selection, error) {
	rows, err := scanner.New[selectionRow]().QueryAll(ctx, conn, query, params...)
	if err != nil {
		return nil, err
	}
	ret := make([]domain.Selection, 0, len(rows))
	for _, r := range rows {
		sel, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		ret = append(ret, sel)
	}
	return ret, nil
}

func querySelection(ctx context.Context, conn kpool.Queryer, table string, identity string, query string, params ...any) (*domain.Selection, error) {
	ss, err := querySelections(ctx, conn, query, params...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	switch len(ss) {
	case 0:
		return nil, xe.Wrap(dberrors.Missing{Table: table, Identity: identity})
	case 1:
		return &ss[0], nil
	default:
		return nil, xe.Wrap(dberrors.TooMuch{Table: table, Identity: identity, Expected: 1})
	}
}

// queryMaybeSelection is like querySelection, but returns nil for no rows.
func queryMaybeSelection(ctx context.Context, conn kpool.Queryer, query string, params ...any) (*domain.Selection, error) {
	ss, err := querySelections(ctx, conn, query, params...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if len(ss) == 0 {
		return nil, nil
	}
	return &ss[0], nil
}

func (p *pgSelection) Get(ctx context.Context, selectionID string) (*domain.Selection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return querySelection(
		ctx, conn, "selection", selectionID,
		`select `+columns("")+` from "selection" where "selection_id" = $1`, selectionID,
	)
}

func (p *pgSelection) Touch(ctx context.Context, selectionID string, now time.Time) (*domain.Selection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return querySelection(
		ctx, conn, "selection", selectionID,
		`
		update "selection" set "last_access" = greatest("last_access", $2)
		where "selection_id" = $1
		returning `+columns(""),
		selectionID, now,
	)
}

func (p *pgSelection) Insert(ctx context.Context, selection domain.Selection) (*domain.Selection, bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, false, xe.Wrap(err)
	}
	defer conn.Release()

	inserted, err := querySelection(
		ctx, conn, "selection", selection.SelectionID,
		`
		insert into "selection" (
			"internal_selection_id", "selection_id", "collection_id", "collection_ver", "data_product",
			"selection_ids", "requested_count", "source_match_id", "modified_post_match",
			"state", "created", "last_access", "state_updated"
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'processing', $10, $10, $10)
		returning `+columns(""),
		selection.InternalSelectionID, selection.SelectionID, selection.CollectionID, selection.CollectionVer,
		selection.DataProduct, selection.SelectionIDs, selection.RequestedCount,
		selection.SourceMatchID, selection.ModifiedPostMatch, selection.Created,
	)
	if err == nil {
		return inserted, true, nil
	}
	if pgerr := new(pgconn.PgError); !errors.As(err, &pgerr) || pgerr.Code != pgerrcode.UniqueViolation {
		return nil, false, err
	}

	// lost the race. read the winner.
	winner, err := querySelection(
		ctx, conn, "selection", selection.SelectionID,
		`
		update "selection" set "last_access" = greatest("last_access", $2)
		where "selection_id" = $1
		returning `+columns(""),
		selection.SelectionID, selection.Created,
	)
	if err != nil {
		return nil, false, err
	}
	return winner, false, nil
}

func (p *pgSelection) updateProcessing(ctx context.Context, internalSelectionID string, set string, params ...any) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		ctx,
		`update "selection" set `+set+` where "internal_selection_id" = $1 and "state" = 'processing'`,
		append([]any{internalSelectionID}, params...)...,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if ctag.RowsAffected() == 0 {
		return xe.Wrap(fmt.Errorf("%w: selection %s is not processing", domerr.ErrConflict, internalSelectionID))
	}
	return nil
}

func (p *pgSelection) Heartbeat(ctx context.Context, internalSelectionID string, now time.Time) error {
	return p.updateProcessing(ctx, internalSelectionID, `"heartbeat" = $2`, now)
}

func (p *pgSelection) Complete(ctx context.Context, internalSelectionID string, unmatchedIDs []string, resolvedCount int, now time.Time) error {
	if unmatchedIDs == nil {
		unmatchedIDs = []string{}
	}
	return p.updateProcessing(
		ctx, internalSelectionID,
		`"state" = 'complete', "unmatched_ids" = $2, "resolved_count" = $3, "state_updated" = $4`,
		unmatchedIDs, resolvedCount, now,
	)
}

func (p *pgSelection) Fail(ctx context.Context, internalSelectionID string, cause string, now time.Time) error {
	return p.updateProcessing(
		ctx, internalSelectionID,
		`"state" = 'failed', "error" = $2, "state_updated" = $3`,
		cause, now,
	)
}

func (p *pgSelection) MoveToDeleted(ctx context.Context, internalSelectionID string, force bool, now time.Time) (bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, xe.Wrap(err)
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		ctx,
		`
		with "moved" as (
			delete from "selection"
			where "internal_selection_id" = $1 and ($2 or "state" <> 'processing')
			returning *
		)
		insert into "selection_deleted" (`+columns("")+`, "deleted")
		select `+columns("moved")+`, $3 from "moved"
		`,
		internalSelectionID, force, now,
	)
	if err != nil {
		return false, xe.Wrap(err)
	}
	return ctag.RowsAffected() != 0, nil
}

func (p *pgSelection) FailStale(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.Selection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return queryMaybeSelection(
		ctx, conn,
		`
		with "target" as (
			select "internal_selection_id" from "selection"
			where "state" = 'processing'
				and ("heartbeat" < $1 or "created" < $2)
			limit 1
			for update skip locked
		)
		update "selection" as "s" set
			"state" = 'failed',
			"error" = case when "s"."created" < $2 then $4 else $5 end,
			"state_updated" = $3
		from "target"
		where "s"."internal_selection_id" = "target"."internal_selection_id"
		returning `+columns("s"),
		staleBefore, createdBefore, now, CauseTimedOut, CauseWorkerLost,
	)
}

func (p *pgSelection) PopExpired(ctx context.Context, before time.Time, now time.Time) (*domain.Selection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return queryMaybeSelection(
		ctx, conn,
		`
		with "target" as (
			select "internal_selection_id" from "selection"
			where "last_access" < $1 and "state" <> 'processing'
			limit 1
			for update skip locked
		),
		"moved" as (
			delete from "selection"
			where "internal_selection_id" in (select "internal_selection_id" from "target")
			returning *
		),
		"inserted" as (
			insert into "selection_deleted" (`+columns("")+`, "deleted")
			select `+columns("moved")+`, $2 from "moved"
		)
		select `+columns("moved")+` from "moved"
		`,
		before, now,
	)
}

func (p *pgSelection) PopDeleted(ctx context.Context, callback func(domain.Selection) error) (bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	popped, err := queryMaybeSelection(
		ctx, tx,
		`
		with "target" as (
			select `+columns("")+` from "selection_deleted"
			order by "deleted"
			limit 1
			for update skip locked
		),
		"removed" as (
			delete from "selection_deleted"
			where "internal_selection_id" in (select "internal_selection_id" from "target")
		)
		select `+columns("target")+` from "target"
		`,
	)
	if err != nil {
		return false, err
	}
	if popped == nil {
		return false, nil
	}

	if callback != nil {
		if err := callback(*popped); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, xe.Wrap(err)
	}
	return true, nil
}

func (p *pgSelection) GetDeleted(ctx context.Context, internalSelectionID string) (*domain.Selection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return querySelection(
		ctx, conn, "selection_deleted", internalSelectionID,
		`select `+columns("")+` from "selection_deleted" where "internal_selection_id" = $1`,
		internalSelectionID,
	)
}

func (p *pgSelection) RemoveDeleted(ctx context.Context, internalSelectionID string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx, `delete from "selection_deleted" where "internal_selection_id" = $1`, internalSelectionID,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}
