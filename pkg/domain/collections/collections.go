// Package collections assembles the components of the collections service.
//
// Both the API server and the background loops build their dependencies with New.
package collections

import (
	"context"
	"log"

	"github.com/kbase/collections/pkg/columns"
	"github.com/kbase/collections/pkg/configs/service"
	"github.com/kbase/collections/pkg/dataproduct"
	"github.com/kbase/collections/pkg/dataproduct/genomeattribs"
	"github.com/kbase/collections/pkg/dataproduct/taxacount"
	"github.com/kbase/collections/pkg/domain/collections/db"
	"github.com/kbase/collections/pkg/domain/collections/db/postgres"
	"github.com/kbase/collections/pkg/engine"
	"github.com/kbase/collections/pkg/engine/collection"
	"github.com/kbase/collections/pkg/engine/match"
	"github.com/kbase/collections/pkg/engine/selection"
	xe "github.com/kbase/collections/pkg/errors"
	"github.com/kbase/collections/pkg/matchers"
	"github.com/kbase/collections/pkg/matchers/lineage"
	"github.com/kbase/collections/pkg/matchers/minhash"
	"github.com/kbase/collections/pkg/metrics"
	"github.com/kbase/collections/pkg/sdkclient"
	"github.com/kbase/collections/pkg/sketch"
	"github.com/kbase/collections/pkg/workqueue"
	"github.com/kbase/collections/pkg/workspace"
	"github.com/redis/go-redis/v9"
)

type Collections struct {
	config   *service.Config
	database db.Database
	redis    *redis.Client

	specs    *columns.Registry
	products *dataproduct.Registry
	matchers *matchers.Registry

	genomeAttribs *genomeattribs.Product
	taxaCount     *taxacount.Product

	metrics   *metrics.Metrics
	queue     *workqueue.Pool
	processes *engine.Processes

	collections *collection.Engine
	matches     *match.Engine
	selections  *selection.Engine
}

// New connects to the database, and assembles components.
func New(ctx context.Context, config *service.Config, logger *log.Logger) (*Collections, error) {
	database, err := postgres.New(
		ctx, config.Database(), postgres.WithSchemaRepository(config.SchemaRepository()),
	)
	if err != nil {
		return nil, err
	}
	c, err := Assemble(config, database, logger)
	if err != nil {
		database.Close()
		return nil, err
	}
	return c, nil
}

// Assemble builds components on the database.
//
// It does not start workers. Call Queue().Start to run jobs.
func Assemble(config *service.Config, database db.Database, logger *log.Logger) (*Collections, error) {
	specs, err := columns.Load(config.ColumnSpecs())
	if err != nil {
		return nil, err
	}
	m := metrics.New()

	ret := &Collections{
		config:   config,
		database: database,
		specs:    specs,
		metrics:  m,
	}

	var cache workspace.Cache = workspace.NopCache{}
	if url := config.Cache().Redis(); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, xe.WrapWithNote("cache.redis", err)
		}
		ret.redis = redis.NewClient(opts)
		cache = workspace.NewRedisCache(ret.redis, config.Cache().TTL(), logger)
	}
	ws := workspace.New(
		sdkclient.New(config.Workspace().URL()), logger, workspace.WithCache(cache),
	)

	ret.genomeAttribs = genomeattribs.New(database.Pool(), specs)
	ret.taxaCount = taxacount.New(database.Pool())
	ret.products = dataproduct.NewRegistry()
	for _, p := range []dataproduct.Product{ret.genomeAttribs, ret.taxaCount} {
		if err := ret.products.Register(p); err != nil {
			return nil, err
		}
	}

	ret.matchers = matchers.NewRegistry()
	installed := []matchers.Matcher{lineage.New(ret.genomeAttribs)}
	if sk := config.Sketch(); sk.URL() != "" {
		client := sketch.New(sdkclient.New(sk.URL()), sketch.Config{
			Timeout:       sk.Timeout(),
			Retries:       sk.Retries(),
			OnStateChange: m.BreakerStateChanged,
		}, logger)
		installed = append(installed, minhash.New(ret.genomeAttribs, client))
	}
	for _, mt := range installed {
		if err := ret.matchers.Register(mt); err != nil {
			return nil, err
		}
	}

	ret.queue = workqueue.New(workqueue.Config{
		Workers:   config.Workers().Size(),
		QueueSize: config.Workers().Queue(),
		Budget:    config.Workers().Budget(),
	}, logger, m)

	deps := engine.Deps{
		Queue:     ret.queue,
		Logger:    logger,
		Metrics:   m,
		Heartbeat: config.Heartbeat().Interval(),
	}
	ret.processes = engine.NewProcesses(database.Process(), deps)
	ret.collections = collection.New(database.Collection(), ret.products, ret.matchers, deps)
	ret.matches = match.New(
		database.Match(), ret.processes, database.Collection(),
		ret.matchers, ret.products, ws, deps, config.TTL().Match(),
	)
	ret.selections = selection.New(
		database.Selection(), ret.processes, database.Collection(),
		ret.products, ret.matches, deps, config.TTL().Selection(),
	)
	return ret, nil
}

func (c *Collections) Config() *service.Config {
	return c.config
}

func (c *Collections) Database() db.Database {
	return c.database
}

func (c *Collections) Specs() *columns.Registry {
	return c.specs
}

func (c *Collections) Products() *dataproduct.Registry {
	return c.products
}

func (c *Collections) Matchers() *matchers.Registry {
	return c.matchers
}

func (c *Collections) GenomeAttribs() *genomeattribs.Product {
	return c.genomeAttribs
}

func (c *Collections) TaxaCount() *taxacount.Product {
	return c.taxaCount
}

func (c *Collections) Metrics() *metrics.Metrics {
	return c.metrics
}

// Queue is the worker pool of match and selection jobs.
func (c *Collections) Queue() *workqueue.Pool {
	return c.queue
}

func (c *Collections) Processes() *engine.Processes {
	return c.processes
}

func (c *Collections) Collections() *collection.Engine {
	return c.collections
}

func (c *Collections) Matches() *match.Engine {
	return c.matches
}

func (c *Collections) Selections() *selection.Engine {
	return c.selections
}

// Close releases connections to the database and the cache.
func (c *Collections) Close() error {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			return xe.Wrap(err)
		}
	}
	return c.database.Close()
}
