package domain

// domain package contains the Domain Models of the collections service.
//
// `domain/ENTITY.go` has high-level entities (Domain Model types) and functions.
// For example, `domain/match.go` contains the `Match` entity.
//
// `domain/ENTITY/db` directory contains the database expression of the entity,
// as an interface (`db/interface.go`), its postgres implementation (`db/postgres`)
// and a mock for tests (`db/mock`).
//
// # Entities
//
// - `collection`: a versioned, curated bundle of data products. At most one version of a collection is active.
// Saved versions are immutable.
//
// - `match`: a comparison of user's workspace objects (UPAs) against a collection version.
// A match is identified by a fingerprint of its inputs, so same inputs share a match.
// Matches are computed in background and goes processing -> complete or processing -> failed.
//
// - `match set`: a bundle of matches viewed as one.
//
// - `selection`: a persisted set of row ids of the default data product of a collection version.
// The lifecycle is same as matches.
//
// - `process`: a computation of a secondary data product for a match or selection
// (for example, taxa counts for a match).
//
// And others:
//
// - `upa`: the workspace object address. See ParseUPAs.
//
// - `lineage`: GTDB taxonomy lineages.
//
// - `loop`: recurring tasks. Implementation of the loops is in `cmd/loops/tasks/` directory.
