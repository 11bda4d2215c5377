package selections

import (
	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/utils/rfctime"
)

// CreateRequest is a request body to create a selection.
type CreateRequest struct {
	SelectionIDs []string `json:"selection_ids"`

	// match which the selection is made from. optional.
	MatchID string `json:"match_id,omitempty"`
}

type Selection struct {
	SelectionID   string `json:"selection_id"`
	CollectionID  string `json:"collection_id"`
	CollectionVer int    `json:"collection_ver"`
	DataProduct   string `json:"data_product"`

	State        string          `json:"selection_state"`
	StateUpdated rfctime.RFC3339 `json:"selection_state_updated"`
	Error        string          `json:"selection_error,omitempty"`

	RequestedCount int      `json:"requested_count"`
	ResolvedCount  int      `json:"resolved_count"`
	SelectionIDs   []string `json:"selection_ids,omitempty"`
	UnmatchedIDs   []string `json:"unmatched_ids,omitempty"`

	SourceMatchID     string `json:"source_match_id,omitempty"`
	ModifiedPostMatch bool   `json:"modified_post_match"`

	Created    rfctime.RFC3339 `json:"created"`
	LastAccess rfctime.RFC3339 `json:"last_access"`
}

// Compose makes a response from a selection.
//
// With verbose, selected ids and unmatched ids are included.
func Compose(s domain.Selection, verbose bool) Selection {
	ret := Selection{
		SelectionID:       s.SelectionID,
		CollectionID:      s.CollectionID,
		CollectionVer:     s.CollectionVer,
		DataProduct:       s.DataProduct,
		State:             s.State.String(),
		StateUpdated:      rfctime.RFC3339(s.StateUpdated),
		RequestedCount:    s.RequestedCount,
		ResolvedCount:     s.ResolvedCount,
		SourceMatchID:     s.SourceMatchID,
		ModifiedPostMatch: s.ModifiedPostMatch,
		Created:           rfctime.RFC3339(s.Created),
		LastAccess:        rfctime.RFC3339(s.LastAccess),
	}
	if s.State == domain.Failed {
		ret.Error = s.Error
	}
	if verbose {
		ret.SelectionIDs = s.SelectionIDs
		ret.UnmatchedIDs = s.UnmatchedIDs
	}
	return ret
}

// Export is a response of ids in a selection, grouped by workspace types.
type Export struct {
	Data      map[string][]string `json:"data"`
	Processed int                 `json:"processed"`
}
