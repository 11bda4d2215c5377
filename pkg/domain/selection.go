package domain

import "time"

// MaxSelectionIDs is the maximum count of ids in a selection.
const MaxSelectionIDs = 10000

type Selection struct {
	// fingerprint of inputs. See SelectionFingerprint.
	SelectionID string

	// random id, fresh per record.
	InternalSelectionID string

	CollectionID  string
	CollectionVer int

	// the data product which the ids are of. It is the default_select of the collection.
	DataProduct string

	// sorted and de-duplicated ids.
	SelectionIDs []string

	// selected ids not found in the data product. nil unless complete.
	UnmatchedIDs []string

	RequestedCount int
	ResolvedCount  int

	// match which the selection is made from. Empty if not.
	SourceMatchID string

	// true when SelectionIDs differs from the matched ids of the source match.
	ModifiedPostMatch bool

	LastAccess time.Time

	Lifecycle
}
