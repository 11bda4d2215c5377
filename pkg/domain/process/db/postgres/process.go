package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgtype"
	kpool "github.com/kbase/collections/pkg/conn/db/postgres/pool"
	"github.com/kbase/collections/pkg/conn/db/postgres/scanner"
	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/domain/errors/dberrors"
	kproc "github.com/kbase/collections/pkg/domain/process/db"
	xe "github.com/kbase/collections/pkg/errors"
)

const CauseWorkerLost = "worker lost: no heartbeat"
const CauseTimedOut = "timed out"

type pgProcess struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kproc.ProcessInterface {
	return &pgProcess{pool: pool}
}

const processColumns = `"internal_id", "data_product", "type", "state", "error", "created", "state_updated", "heartbeat"`

type processRow struct {
	InternalID   string             `sql:"internal_id"`
	DataProduct  string             `sql:"data_product"`
	Type         string             `sql:"type"`
	State        string             `sql:"state"`
	Error        string             `sql:"error"`
	Created      time.Time          `sql:"created"`
	StateUpdated time.Time          `sql:"state_updated"`
	Heartbeat    pgtype.Timestamptz `sql:"heartbeat"`
}

func (r processRow) toDomain() (domain.DataProductProcess, error) {
	state, err := domain.AsProcessState(r.State)
	if err != nil {
		return domain.DataProductProcess{}, err
	}
	typ, err := domain.AsSubsetType(r.Type)
	if err != nil {
		return domain.DataProductProcess{}, err
	}
	p := domain.DataProductProcess{
		ProcessKey: domain.ProcessKey{
			InternalID:  r.InternalID,
			DataProduct: r.DataProduct,
			Type:        typ,
		},
		Lifecycle: domain.Lifecycle{
			State:        state,
			Error:        r.Error,
			Created:      r.Created,
			StateUpdated: r.StateUpdated,
		},
	}
	if r.Heartbeat.Status == pgtype.Present {
		hb := r.Heartbeat.Time
		p.Heartbeat = &hb
	}
	return p, nil
}

func queryProcess(ctx context.Context, conn kpool.Queryer, query string, params ...any) (*domain.DataProductProcess, error) {
	rows, err := scanner.New[processRow]().QueryAll(ctx, conn, query, params...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p, err := rows[0].toDomain()
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return &p, nil
}

func (p *pgProcess) Get(ctx context.Context, key domain.ProcessKey) (*domain.DataProductProcess, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	proc, err := queryProcess(
		ctx, conn,
		`
		select `+processColumns+` from "data_product_process"
		where "internal_id" = $1 and "data_product" = $2 and "type" = $3
		`,
		key.InternalID, key.DataProduct, string(key.Type),
	)
	if err != nil {
		return nil, err
	}
	if proc == nil {
		return nil, xe.Wrap(dberrors.Missing{Table: "data_product_process", Identity: key.String()})
	}
	return proc, nil
}

func (p *pgProcess) Insert(ctx context.Context, key domain.ProcessKey, now time.Time) (*domain.DataProductProcess, bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, false, xe.Wrap(err)
	}
	defer conn.Release()

	created, err := queryProcess(
		ctx, conn,
		`
		insert into "data_product_process"
			("internal_id", "data_product", "type", "state", "created", "state_updated")
		values ($1, $2, $3, 'processing', $4, $4)
		on conflict do nothing
		returning `+processColumns,
		key.InternalID, key.DataProduct, string(key.Type), now,
	)
	if err != nil {
		return nil, false, err
	}
	if created != nil {
		return created, true, nil
	}

	existing, err := p.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (p *pgProcess) updateProcessing(ctx context.Context, key domain.ProcessKey, set string, params ...any) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		ctx,
		`
		update "data_product_process" set `+set+`
		where "internal_id" = $1 and "data_product" = $2 and "type" = $3 and "state" = 'processing'
		`,
		append([]any{key.InternalID, key.DataProduct, string(key.Type)}, params...)...,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if ctag.RowsAffected() == 0 {
		return xe.Wrap(fmt.Errorf("%w: %s is not processing", domerr.ErrConflict, key))
	}
	return nil
}

func (p *pgProcess) Heartbeat(ctx context.Context, key domain.ProcessKey, now time.Time) error {
	return p.updateProcessing(ctx, key, `"heartbeat" = $4`, now)
}

func (p *pgProcess) Complete(ctx context.Context, key domain.ProcessKey, now time.Time) error {
	return p.updateProcessing(ctx, key, `"state" = 'complete', "state_updated" = $4`, now)
}

func (p *pgProcess) Fail(ctx context.Context, key domain.ProcessKey, cause string, now time.Time) error {
	return p.updateProcessing(ctx, key, `"state" = 'failed', "error" = $4, "state_updated" = $5`, cause, now)
}

func (p *pgProcess) Delete(ctx context.Context, key domain.ProcessKey) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`delete from "data_product_process" where "internal_id" = $1 and "data_product" = $2 and "type" = $3`,
		key.InternalID, key.DataProduct, string(key.Type),
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (p *pgProcess) DeleteFor(ctx context.Context, internalID string, typ domain.SubsetType) (int, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		ctx,
		`delete from "data_product_process" where "internal_id" = $1 and "type" = $2`,
		internalID, string(typ),
	)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	return int(ctag.RowsAffected()), nil
}

func (p *pgProcess) FailStale(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.DataProductProcess, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return queryProcess(
		ctx, conn,
		`
		with "target" as (
			select "internal_id", "data_product", "type" from "data_product_process"
			where "state" = 'processing'
				and ("heartbeat" < $1 or "created" < $2)
			limit 1
			for update skip locked
		)
		update "data_product_process" as "p" set
			"state" = 'failed',
			"error" = case when "p"."created" < $2 then $4 else $5 end,
			"state_updated" = $3
		from "target"
		where "p"."internal_id" = "target"."internal_id"
			and "p"."data_product" = "target"."data_product"
			and "p"."type" = "target"."type"
		returning "p"."internal_id", "p"."data_product", "p"."type", "p"."state",
			"p"."error", "p"."created", "p"."state_updated", "p"."heartbeat"
		`,
		staleBefore, createdBefore, now, CauseTimedOut, CauseWorkerLost,
	)
}
