package postgres

import (
	"context"

	kpool "github.com/kbase/collections/pkg/conn/db/postgres/pool"
	kcoll "github.com/kbase/collections/pkg/domain/collection/db"
	kpgcoll "github.com/kbase/collections/pkg/domain/collection/db/postgres"
	dbInterface "github.com/kbase/collections/pkg/domain/collections/db"
	kmatch "github.com/kbase/collections/pkg/domain/match/db"
	kpgmatch "github.com/kbase/collections/pkg/domain/match/db/postgres"
	kproc "github.com/kbase/collections/pkg/domain/process/db"
	kpgproc "github.com/kbase/collections/pkg/domain/process/db/postgres"
	kschema "github.com/kbase/collections/pkg/domain/schema/db"
	kpgschema "github.com/kbase/collections/pkg/domain/schema/db/postgres"
	ksel "github.com/kbase/collections/pkg/domain/selection/db"
	kpgsel "github.com/kbase/collections/pkg/domain/selection/db/postgres"
	xe "github.com/kbase/collections/pkg/errors"
)

type collectionsDBPostgres struct {
	pool       kpool.Pool
	collection kcoll.CollectionInterface
	match      kmatch.MatchInterface
	selection  ksel.SelectionInterface
	process    kproc.ProcessInterface
	schema     kschema.SchemaInterface
}

type Config struct {
	SchemaRepository string
}

type Option func(*Config) *Config

func WithSchemaRepository(repository string) Option {
	return func(c *Config) *Config {
		c.SchemaRepository = repository
		return c
	}
}

func New(
	ctx context.Context,
	url string,
	options ...Option,
) (dbInterface.Database, error) {
	p, err := kpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return Wrap(p, options...), nil
}

// Wrap builds Database on the pool.
func Wrap(p kpool.Pool, options ...Option) dbInterface.Database {
	c := Config{}
	for _, option := range options {
		c = *option(&c)
	}

	var schema kschema.SchemaInterface = kpgschema.Null()
	if c.SchemaRepository != "" {
		schema = kpgschema.New(p, c.SchemaRepository)
	}

	return &collectionsDBPostgres{
		pool:       p,
		collection: kpgcoll.New(p),
		match:      kpgmatch.New(p),
		selection:  kpgsel.New(p),
		process:    kpgproc.New(p),
		schema:     schema,
	}
}

func (k *collectionsDBPostgres) Collection() kcoll.CollectionInterface {
	return k.collection
}

func (k *collectionsDBPostgres) Match() kmatch.MatchInterface {
	return k.match
}

func (k *collectionsDBPostgres) Selection() ksel.SelectionInterface {
	return k.selection
}

func (k *collectionsDBPostgres) Process() kproc.ProcessInterface {
	return k.process
}

func (k *collectionsDBPostgres) Schema() kschema.SchemaInterface {
	return k.schema
}

func (k *collectionsDBPostgres) Pool() kpool.Pool {
	return k.pool
}

func (k *collectionsDBPostgres) Close() error {
	k.pool.Close()
	return nil
}
