package db

import (
	kpool "github.com/kbase/collections/pkg/conn/db/postgres/pool"
	kcoll "github.com/kbase/collections/pkg/domain/collection/db"
	kmatch "github.com/kbase/collections/pkg/domain/match/db"
	kproc "github.com/kbase/collections/pkg/domain/process/db"
	kschema "github.com/kbase/collections/pkg/domain/schema/db"
	ksel "github.com/kbase/collections/pkg/domain/selection/db"
)

// Database bundles stores of the service.
type Database interface {
	Collection() kcoll.CollectionInterface
	Match() kmatch.MatchInterface
	Selection() ksel.SelectionInterface
	Process() kproc.ProcessInterface
	Schema() kschema.SchemaInterface

	// pool for data product tables.
	Pool() kpool.Pool

	Close() error
}
