package postgres

import (
	"context"
	"encoding/json"
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
	kmatch "github.com/kbase/collections/pkg/domain/match/db"
	xe "github.com/kbase/collections/pkg/errors"
)

// cause of failure recorded by FailStale
const (
	CauseTimedOut   = "timed out"
	CauseWorkerLost = "worker lost: no heartbeat"
)

type pgMatch struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kmatch.MatchInterface {
	return &pgMatch{pool: pool}
}

var matchColumns = []string{
	"internal_match_id", "match_id", "matcher_id", "collection_id", "collection_ver",
	"user_parameters", "collection_parameters", "upas", "wsids", "matched_ids",
	"state", "error", "created", "last_access", "state_updated", "heartbeat",
}

// columns returns comma separated column names, qualified with table if it is not empty.
func columns(table string) string {
	cols := make([]string, len(matchColumns))
	for i, c := range matchColumns {
		if table == "" {
			cols[i] = fmt.Sprintf(`"%s"`, c)
		} else {
			cols[i] = fmt.Sprintf(`"%s"."%s"`, table, c)
		}
	}
	return strings.Join(cols, ", ")
}

type matchRow struct {
	InternalMatchID      string             `sql:"internal_match_id"`
	MatchID              string             `sql:"match_id"`
	MatcherID            string             `sql:"matcher_id"`
	CollectionID         string             `sql:"collection_id"`
	CollectionVer        int                `sql:"collection_ver"`
	UserParameters       pgtype.JSONB       `sql:"user_parameters"`
	CollectionParameters pgtype.JSONB       `sql:"collection_parameters"`
	UPAs                 []string           `sql:"upas"`
	WSIDs                []int64            `sql:"wsids"`
	MatchedIDs           []string           `sql:"matched_ids"`
	State                string             `sql:"state"`
	Error                string             `sql:"error"`
	Created              time.Time          `sql:"created"`
	LastAccess           time.Time          `sql:"last_access"`
	StateUpdated         time.Time          `sql:"state_updated"`
	Heartbeat            pgtype.Timestamptz `sql:"heartbeat"`
}

func (r matchRow) toDomain() (domain.Match, error) {
	state, err := domain.AsProcessState(r.State)
	if err != nil {
		return domain.Match{}, err
	}
	m := domain.Match{
		MatchID:         r.MatchID,
		InternalMatchID: r.InternalMatchID,
		MatcherID:       r.MatcherID,
		CollectionID:    r.CollectionID,
		CollectionVer:   r.CollectionVer,
		UPAs:            r.UPAs,
		WSIDs:           r.WSIDs,
		MatchedIDs:      r.MatchedIDs,
		LastAccess:      r.LastAccess,
		Lifecycle: domain.Lifecycle{
			State:        state,
			Error:        r.Error,
			Created:      r.Created,
			StateUpdated: r.StateUpdated,
		},
	}
	if r.Heartbeat.Status == pgtype.Present {
		hb := r.Heartbeat.Time
		m.Heartbeat = &hb
	}
	if err := r.UserParameters.AssignTo(&m.UserParameters); err != nil {
		return domain.Match{}, err
	}
	if err := r.CollectionParameters.AssignTo(&m.CollectionParameters); err != nil {
		return domain.Match{}, err
	}
	return m, nil
}

func queryMatches(ctx context.Context, conn kpool.Queryer, query string, params ...any) ([]domain.Match, error) {
	rows, err := scanner.New[matchRow]().QueryAll(ctx, conn, query, params...)
	if err != nil {
		return nil, err
	}
	ret := make([]domain.Match, 0, len(rows))
	for _, r := range rows {
		m, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		ret = append(ret, m)
	}
	return ret, nil
}

func queryMatch(ctx context.Context, conn kpool.Queryer, table string, identity string, query string, params ...any) (*domain.Match, error) {
	ms, err := queryMatches(ctx, conn, query, params...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	switch len(ms) {
	case 0:
		return nil, xe.Wrap(dberrors.Missing{Table: table, Identity: identity})
	case 1:
		return &ms[0], nil
	default:
		return nil, xe.Wrap(dberrors.TooMuch{Table: table, Identity: identity, Expected: 1})
	}
}

// queryMaybeMatch is like queryMatch, but returns nil for no rows.
func queryMaybeMatch(ctx context.Context, conn kpool.Queryer, query string, params ...any) (*domain.Match, error) {
	ms, err := queryMatches(ctx, conn, query, params...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if len(ms) == 0 {
		return nil, nil
	}
	return &ms[0], nil
}

func (p *pgMatch) Get(ctx context.Context, matchID string) (*domain.Match, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return queryMatch(
		ctx, conn, "match", matchID,
		`select `+columns("")+` from "match" where "match_id" = $1`, matchID,
	)
}

func (p *pgMatch) Touch(ctx context.Context, matchID string, now time.Time) (*domain.Match, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return queryMatch(
		ctx, conn, "match", matchID,
		`
		update "match" set "last_access" = greatest("last_access", $2)
		where "match_id" = $1
		returning `+columns(""),
		matchID, now,
	)
}

func (p *pgMatch) Insert(ctx context.Context, match domain.Match) (*domain.Match, bool, error) {
	uparams, err := json.Marshal(match.UserParameters)
	if err != nil {
		return nil, false, xe.Wrap(err)
	}
	cparams, err := json.Marshal(match.CollectionParameters)
	if err != nil {
		return nil, false, xe.Wrap(err)
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, false, xe.Wrap(err)
	}
	defer conn.Release()

	inserted, err := queryMatch(
		ctx, conn, "match", match.MatchID,
		`
		insert into "match" (
			"internal_match_id", "match_id", "matcher_id", "collection_id", "collection_ver",
			"user_parameters", "collection_parameters", "upas", "wsids",
			"state", "created", "last_access", "state_updated"
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'processing', $10, $10, $10)
		returning `+columns(""),
		match.InternalMatchID, match.MatchID, match.MatcherID, match.CollectionID, match.CollectionVer,
		string(uparams), string(cparams), match.UPAs, match.WSIDs, match.Created,
	)
	if err == nil {
		return inserted, true, nil
	}
	if pgerr := new(pgconn.PgError); !errors.As(err, &pgerr) || pgerr.Code != pgerrcode.UniqueViolation {
		return nil, false, err
	}

	// lost the race. read the winner.
	winner, err := queryMatch(
		ctx, conn, "match", match.MatchID,
		`
		update "match" set "last_access" = greatest("last_access", $2)
		where "match_id" = $1
		returning `+columns(""),
		match.MatchID, match.Created,
	)
	if err != nil {
		return nil, false, err
	}
	return winner, false, nil
}

func (p *pgMatch) updateProcessing(ctx context.Context, internalMatchID string, set string, params ...any) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		ctx,
		`update "match" set `+set+` where "internal_match_id" = $1 and "state" = 'processing'`,
		append([]any{internalMatchID}, params...)...,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if ctag.RowsAffected() == 0 {
		return xe.Wrap(fmt.Errorf("%w: match %s is not processing", domerr.ErrConflict, internalMatchID))
	}
	return nil
}

func (p *pgMatch) Heartbeat(ctx context.Context, internalMatchID string, now time.Time) error {
	return p.updateProcessing(ctx, internalMatchID, `"heartbeat" = $2`, now)
}

func (p *pgMatch) Complete(ctx context.Context, internalMatchID string, matchedIDs []string, now time.Time) error {
	if matchedIDs == nil {
		matchedIDs = []string{}
	}
	return p.updateProcessing(
		ctx, internalMatchID,
		`"state" = 'complete', "matched_ids" = $2, "state_updated" = $3`,
		matchedIDs, now,
	)
}

func (p *pgMatch) Fail(ctx context.Context, internalMatchID string, cause string, now time.Time) error {
	return p.updateProcessing(
		ctx, internalMatchID,
		`"state" = 'failed', "error" = $2, "state_updated" = $3`,
		cause, now,
	)
}

func (p *pgMatch) MoveToDeleted(ctx context.Context, internalMatchID string, force bool, now time.Time) (bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, xe.Wrap(err)
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		ctx,
		`
		with "moved" as (
			delete from "match"
			where "internal_match_id" = $1 and ($2 or "state" <> 'processing')
			returning *
		)
		insert into "match_deleted" (`+columns("")+`, "deleted")
		select `+columns("moved")+`, $3 from "moved"
		`,
		internalMatchID, force, now,
	)
	if err != nil {
		return false, xe.Wrap(err)
	}
	return ctag.RowsAffected() != 0, nil
}

func (p *pgMatch) FailStale(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.Match, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return queryMaybeMatch(
		ctx, conn,
		`
		with "target" as (
			select "internal_match_id" from "match"
			where "state" = 'processing'
				and ("heartbeat" < $1 or "created" < $2)
			limit 1
			for update skip locked
		)
		update "match" as "m" set
			"state" = 'failed',
			"error" = case when "m"."created" < $2 then $4 else $5 end,
			"state_updated" = $3
		from "target"
		where "m"."internal_match_id" = "target"."internal_match_id"
		returning `+columns("m"),
		staleBefore, createdBefore, now, CauseTimedOut, CauseWorkerLost,
	)
}

func (p *pgMatch) PopExpired(ctx context.Context, before time.Time, now time.Time) (*domain.Match, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return queryMaybeMatch(
		ctx, conn,
		`
		with "target" as (
			select "internal_match_id" from "match"
			where "last_access" < $1 and "state" <> 'processing'
			limit 1
			for update skip locked
		),
		"moved" as (
			delete from "match"
			where "internal_match_id" in (select "internal_match_id" from "target")
			returning *
		),
		"inserted" as (
			insert into "match_deleted" (`+columns("")+`, "deleted")
			select `+columns("moved")+`, $2 from "moved"
		)
		select `+columns("moved")+` from "moved"
		`,
		before, now,
	)
}

func (p *pgMatch) PopDeleted(ctx context.Context, callback func(domain.Match) error) (bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	popped, err := queryMaybeMatch(
		ctx, tx,
		`
		with "target" as (
			select `+columns("")+` from "match_deleted"
			order by "deleted"
			limit 1
			for update skip locked
		),
		"removed" as (
			delete from "match_deleted"
			where "internal_match_id" in (select "internal_match_id" from "target")
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

func (p *pgMatch) GetDeleted(ctx context.Context, internalMatchID string) (*domain.Match, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return queryMatch(
		ctx, conn, "match_deleted", internalMatchID,
		`select `+columns("")+` from "match_deleted" where "internal_match_id" = $1`,
		internalMatchID,
	)
}

func (p *pgMatch) RemoveDeleted(ctx context.Context, internalMatchID string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx, `delete from "match_deleted" where "internal_match_id" = $1`, internalMatchID,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

type matchSetRow struct {
	MatchSetID string    `sql:"match_set_id"`
	MatchIDs   []string  `sql:"match_ids"`
	Created    time.Time `sql:"created"`
	LastAccess time.Time `sql:"last_access"`
}

func querySet(ctx context.Context, conn kpool.Queryer, identity string, query string, params ...any) (*domain.MatchSet, error) {
	rows, err := scanner.New[matchSetRow]().QueryAll(ctx, conn, query, params...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if len(rows) == 0 {
		return nil, xe.Wrap(dberrors.Missing{Table: "match_set", Identity: identity})
	}
	r := rows[0]
	return &domain.MatchSet{
		MatchSetID: r.MatchSetID,
		MatchIDs:   r.MatchIDs,
		Created:    r.Created,
		LastAccess: r.LastAccess,
	}, nil
}

func (p *pgMatch) InsertSet(ctx context.Context, set domain.MatchSet) (*domain.MatchSet, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return querySet(
		ctx, conn, set.MatchSetID,
		`
		insert into "match_set" ("match_set_id", "match_ids", "created", "last_access")
		values ($1, $2, $3, $3)
		on conflict ("match_set_id") do update
			set "last_access" = greatest("match_set"."last_access", excluded."last_access")
		returning "match_set_id", "match_ids", "created", "last_access"
		`,
		set.MatchSetID, set.MatchIDs, set.Created,
	)
}

func (p *pgMatch) TouchSet(ctx context.Context, matchSetID string, now time.Time) (*domain.MatchSet, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return querySet(
		ctx, conn, matchSetID,
		`
		update "match_set" set "last_access" = greatest("last_access", $2)
		where "match_set_id" = $1
		returning "match_set_id", "match_ids", "created", "last_access"
		`,
		matchSetID, now,
	)
}

func (p *pgMatch) DeleteExpiredSets(ctx context.Context, before time.Time) (int, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	defer conn.Release()

	ctag, err := conn.Exec(ctx, `delete from "match_set" where "last_access" < $1`, before)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	return int(ctag.RowsAffected()), nil
}
