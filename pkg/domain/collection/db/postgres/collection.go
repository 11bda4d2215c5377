package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	kpool "github.com/kbase/collections/pkg/conn/db/postgres/pool"
	"github.com/kbase/collections/pkg/conn/db/postgres/scanner"
	"github.com/kbase/collections/pkg/domain"
	kcollection "github.com/kbase/collections/pkg/domain/collection/db"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	xe "github.com/kbase/collections/pkg/errors"
)

type pgCollection struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kcollection.CollectionInterface {
	return &pgCollection{pool: pool}
}

type collectionRow struct {
	CollectionID  string             `sql:"collection_id"`
	VerNum        int                `sql:"ver_num"`
	VerTag        string             `sql:"ver_tag"`
	Name          string             `sql:"name"`
	VerSrc        string             `sql:"ver_src"`
	Desc          string             `sql:"desc"`
	DataProducts  pgtype.JSONB       `sql:"data_products"`
	Matchers      pgtype.JSONB       `sql:"matchers"`
	DefaultSelect string             `sql:"default_select"`
	Created       time.Time          `sql:"created"`
	UserCreate    string             `sql:"user_create"`
	Activated     pgtype.Timestamptz `sql:"activated"`
	UserActivate  pgtype.Text        `sql:"user_activate"`
}

func (r collectionRow) toDomain() (domain.Collection, error) {
	c := domain.Collection{
		ID:         r.CollectionID,
		VerTag:     r.VerTag,
		VerNum:     r.VerNum,
		Created:    r.Created,
		UserCreate: r.UserCreate,
		CollectionBody: domain.CollectionBody{
			Name:          r.Name,
			VerSrc:        r.VerSrc,
			Desc:          r.Desc,
			DefaultSelect: r.DefaultSelect,
		},
	}
	if err := r.DataProducts.AssignTo(&c.DataProducts); err != nil {
		return domain.Collection{}, err
	}
	if err := r.Matchers.AssignTo(&c.Matchers); err != nil {
		return domain.Collection{}, err
	}
	if r.Activated.Status == pgtype.Present {
		at := r.Activated.Time
		c.Activated = &at
		c.UserActivate = r.UserActivate.String
	}
	return c, nil
}

const selectCollection = `
select
	"v"."collection_id", "v"."ver_num", "v"."ver_tag", "v"."name", "v"."ver_src", "v"."desc",
	"v"."data_products", "v"."matchers", "v"."default_select", "v"."created", "v"."user_create",
	"a"."activated", "a"."user_activate"
from "collection_version" as "v"
left join "collection_active" as "a"
	on "a"."collection_id" = "v"."collection_id" and "a"."ver_num" = "v"."ver_num"
`

func queryCollections(ctx context.Context, conn kpool.Queryer, where string, params ...any) ([]domain.Collection, error) {
	rows, err := scanner.New[collectionRow]().QueryAll(ctx, conn, selectCollection+where, params...)
	if err != nil {
		return nil, err
	}
	ret := make([]domain.Collection, 0, len(rows))
	for _, r := range rows {
		c, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		ret = append(ret, c)
	}
	return ret, nil
}

func queryOne(ctx context.Context, conn kpool.Queryer, notFound error, where string, params ...any) (*domain.Collection, error) {
	cs, err := queryCollections(ctx, conn, where, params...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if len(cs) == 0 {
		return nil, notFound
	}
	return &cs[0], nil
}

func (p *pgCollection) Save(
	ctx context.Context, id string, verTag string, body domain.CollectionBody, user string, now time.Time,
) (*domain.Collection, error) {
	dps, err := json.Marshal(body.DataProducts)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	ms, err := json.Marshal(body.Matchers)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	return kpool.InTxReturning(ctx, p.pool, func(tx kpool.Tx) (*domain.Collection, error) {
		var verNum int
		if err := tx.QueryRow(
			ctx,
			`
			insert into "collection_counter" ("collection_id", "counter") values ($1, 1)
			on conflict ("collection_id") do update
				set "counter" = "collection_counter"."counter" + 1
			returning "counter"
			`,
			id,
		).Scan(&verNum); err != nil {
			return nil, xe.Wrap(err)
		}

		if _, err := tx.Exec(
			ctx,
			`
			insert into "collection_version" (
				"collection_id", "ver_num", "ver_tag", "name", "ver_src", "desc",
				"data_products", "matchers", "default_select", "created", "user_create"
			)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`,
			id, verNum, verTag, body.Name, body.VerSrc, body.Desc,
			string(dps), string(ms), body.DefaultSelect, now, user,
		); err != nil {
			if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation {
				return nil, domerr.NewInputError(
					domerr.ErrCollectionVersionExists,
					"version tag %s exists in collection %s", verTag, id,
				)
			}
			return nil, xe.Wrap(err)
		}

		return queryOne(
			ctx, tx, domerr.ErrNoSuchCollectionVersion,
			`where "v"."collection_id" = $1 and "v"."ver_num" = $2`, id, verNum,
		)
	})
}

func (p *pgCollection) GetByTag(ctx context.Context, id string, verTag string) (*domain.Collection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return queryOne(
		ctx, conn,
		domerr.NewInputError(domerr.ErrNoSuchCollectionVersion, "collection %s has no version tagged %s", id, verTag),
		`where "v"."collection_id" = $1 and "v"."ver_tag" = $2`, id, verTag,
	)
}

func (p *pgCollection) GetByNum(ctx context.Context, id string, verNum int) (*domain.Collection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return queryOne(
		ctx, conn,
		domerr.NewInputError(domerr.ErrNoSuchCollectionVersion, "collection %s has no version %d", id, verNum),
		`where "v"."collection_id" = $1 and "v"."ver_num" = $2`, id, verNum,
	)
}

func (p *pgCollection) GetActive(ctx context.Context, id string) (*domain.Collection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return queryOne(
		ctx, conn,
		domerr.NewInputError(domerr.ErrNoSuchCollection, "no active collection %s", id),
		`where "v"."collection_id" = $1 and "a"."collection_id" is not null`, id,
	)
}

func (p *pgCollection) ListActive(ctx context.Context) ([]domain.Collection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	cs, err := queryCollections(
		ctx, conn, `where "a"."collection_id" is not null order by "v"."collection_id"`,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return cs, nil
}

func (p *pgCollection) ListVersions(ctx context.Context, id string, maxVer int, limit int) ([]domain.Collection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	var lim *int
	if 0 < limit {
		lim = &limit
	}
	cs, err := queryCollections(
		ctx, conn,
		`
		where "v"."collection_id" = $1 and ($2 <= 0 or "v"."ver_num" <= $2)
		order by "v"."ver_num" desc
		limit $3
		`,
		id, maxVer, lim,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return cs, nil
}

func (p *pgCollection) Activate(ctx context.Context, id string, verNum int, user string, now time.Time) (*domain.Collection, error) {
	return kpool.InTxReturning(ctx, p.pool, func(tx kpool.Tx) (*domain.Collection, error) {
		ctag, err := tx.Exec(
			ctx,
			`
			insert into "collection_active" ("collection_id", "ver_num", "activated", "user_activate")
			select "collection_id", "ver_num", $3, $4 from "collection_version"
			where "collection_id" = $1 and "ver_num" = $2
			on conflict ("collection_id") do update
				set "ver_num" = excluded."ver_num",
					"activated" = excluded."activated",
					"user_activate" = excluded."user_activate"
			`,
			id, verNum, now, user,
		)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		if ctag.RowsAffected() == 0 {
			return nil, domerr.NewInputError(
				domerr.ErrNoSuchCollectionVersion, "collection %s has no version %d", id, verNum,
			)
		}

		return queryOne(
			ctx, tx, domerr.ErrNoSuchCollectionVersion,
			`where "v"."collection_id" = $1 and "v"."ver_num" = $2`, id, verNum,
		)
	})
}
