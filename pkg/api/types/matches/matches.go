package matches

import (
	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/utils/rfctime"
)

// CreateRequest is a request body to create a match.
type CreateRequest struct {
	UPAs       []string       `json:"upas"`
	Parameters map[string]any `json:"parameters"`
}

// SetRequest is a request body to create a match set.
type SetRequest struct {
	MatchIDs []string `json:"match_ids"`
}

type Match struct {
	MatchID        string         `json:"match_id"`
	MatcherID      string         `json:"matcher_id"`
	CollectionID   string         `json:"collection_id"`
	CollectionVer  int            `json:"collection_ver"`
	UserParameters map[string]any `json:"user_parameters,omitempty"`

	State        string          `json:"match_state"`
	StateUpdated rfctime.RFC3339 `json:"match_state_updated"`
	Errors       []string        `json:"match_errors,omitempty"`

	// components of a match set.
	MatchIDs []string `json:"match_ids,omitempty"`

	UPAs       []string `json:"upas,omitempty"`
	MatchCount int      `json:"match_count"`
	MatchedIDs []string `json:"matches,omitempty"`

	Created    *rfctime.RFC3339 `json:"created,omitempty"`
	LastAccess *rfctime.RFC3339 `json:"last_access,omitempty"`
}

// Compose makes a response from a match or a match set.
//
// With verbose, UPAs and matched ids are included.
func Compose(v domain.MatchView, verbose bool) Match {
	ret := Match{
		MatchID: v.ID,
		State:   v.State().String(),
		Errors:  v.Errors(),
	}
	if len(ret.Errors) == 0 {
		ret.Errors = nil
	}
	matched := v.MatchedIDs()
	ret.MatchCount = len(matched)
	if verbose {
		ret.MatchedIDs = matched
	}

	if m, ok := v.Single(); ok {
		created := rfctime.RFC3339(m.Created)
		access := rfctime.RFC3339(m.LastAccess)
		ret.MatcherID = m.MatcherID
		ret.CollectionID = m.CollectionID
		ret.CollectionVer = m.CollectionVer
		ret.UserParameters = m.UserParameters
		ret.StateUpdated = rfctime.RFC3339(m.StateUpdated)
		ret.Created = &created
		ret.LastAccess = &access
		if verbose {
			ret.UPAs = m.UPAs
		}
		return ret
	}

	for i, m := range v.Matches {
		ret.MatchIDs = append(ret.MatchIDs, m.MatchID)
		if i == 0 {
			ret.MatcherID = m.MatcherID
			ret.CollectionID = m.CollectionID
			ret.CollectionVer = m.CollectionVer
		} else if ret.MatcherID != m.MatcherID {
			ret.MatcherID = ""
		}
		if ret.StateUpdated.Time().Before(m.StateUpdated) {
			ret.StateUpdated = rfctime.RFC3339(m.StateUpdated)
		}
		if verbose {
			ret.UPAs = append(ret.UPAs, m.UPAs...)
		}
	}
	return ret
}
