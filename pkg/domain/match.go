package domain

import (
	"slices"
	"strings"
	"time"
)

// MatchSetPrefix is the prefix of match set ids.
// Ids with this prefix are match sets, otherwise matches.
const MatchSetPrefix = "ms_"

// Lifecycle is the state of a background computation.
type Lifecycle struct {
	State ProcessState

	// cause of failure. Empty unless State is Failed.
	Error string

	Created      time.Time
	StateUpdated time.Time

	// last time the worker said it is alive. nil until the worker starts.
	Heartbeat *time.Time
}

// Stale reports that the computation seems to have lost its worker.
//
// It is stale when it is processing and
// its heartbeat (or creation time, if no heartbeats) is older than `now - staleness`.
func (l Lifecycle) Stale(now time.Time, staleness time.Duration) bool {
	if l.State != Processing {
		return false
	}
	last := l.Created
	if l.Heartbeat != nil {
		last = *l.Heartbeat
	}
	return last.Before(now.Add(-staleness))
}

type Match struct {
	// fingerprint of inputs. See MatchFingerprint.
	MatchID string

	// random id, fresh per record.
	// Artifacts of data products for this match are keyed by this id.
	InternalMatchID string

	MatcherID     string
	CollectionID  string
	CollectionVer int

	// canonicalized parameters given by the user.
	UserParameters map[string]any

	// parameters of the matcher given by the collection.
	CollectionParameters map[string]any

	// normalized and sorted UPAs.
	UPAs []string

	// workspace ids of UPAs.
	WSIDs []int64

	// ids of data product rows matched. nil unless the match is complete.
	MatchedIDs []string

	LastAccess time.Time

	Lifecycle
}

// IsMatchSetID reports id is an id of a match set.
func IsMatchSetID(id string) bool {
	return strings.HasPrefix(id, MatchSetPrefix)
}

// MatchSet is a bundle of matches viewed as one.
type MatchSet struct {
	MatchSetID string
	MatchIDs   []string
	Created    time.Time
	LastAccess time.Time
}

// MatchView is a match or a match set, as it looks from users.
type MatchView struct {
	// match id or match set id.
	ID string

	// components. For a single match, this has only that match.
	Matches []Match
}

// Single returns the match when the view is for a single match.
func (v MatchView) Single() (Match, bool) {
	if IsMatchSetID(v.ID) || len(v.Matches) != 1 {
		return Match{}, false
	}
	return v.Matches[0], true
}

// State returns the least favorable state of the components.
func (v MatchView) State() ProcessState {
	states := make([]ProcessState, 0, len(v.Matches))
	for _, m := range v.Matches {
		states = append(states, m.State)
	}
	return LeastFavorable(states...)
}

// MatchedIDs returns the sorted union of matched ids of the components.
func (v MatchView) MatchedIDs() []string {
	ret := []string{}
	for _, m := range v.Matches {
		ret = append(ret, m.MatchedIDs...)
	}
	slices.Sort(ret)
	return slices.Compact(ret)
}

// InternalMatchIDs returns internal match ids of the components.
func (v MatchView) InternalMatchIDs() []string {
	ret := make([]string, 0, len(v.Matches))
	for _, m := range v.Matches {
		ret = append(ret, m.InternalMatchID)
	}
	return ret
}

// Errors returns causes of failed components.
func (v MatchView) Errors() []string {
	ret := []string{}
	for _, m := range v.Matches {
		if m.State == Failed {
			ret = append(ret, m.MatchID+": "+m.Error)
		}
	}
	return ret
}
