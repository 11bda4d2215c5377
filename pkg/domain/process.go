package domain

import "fmt"

// SubsetType is the kind of subsets of data products.
type SubsetType string

const (
	MatchSubset     SubsetType = "match"
	SelectionSubset SubsetType = "selection"
)

func (t SubsetType) String() string {
	return string(t)
}

func AsSubsetType(s string) (SubsetType, error) {
	switch s {
	case string(MatchSubset):
		return MatchSubset, nil
	case string(SelectionSubset):
		return SelectionSubset, nil
	default:
		return "", fmt.Errorf("'%s' is not SubsetType", s)
	}
}

// ProcessKey identifies a data product process.
type ProcessKey struct {
	// internal match id or internal selection id
	InternalID  string
	DataProduct string
	Type        SubsetType
}

func (k ProcessKey) String() string {
	return fmt.Sprintf("%s for %s %s", k.DataProduct, k.Type, k.InternalID)
}

// DataProductProcess is a computation of a secondary data product for a subset.
type DataProductProcess struct {
	ProcessKey
	Lifecycle
}

func (p DataProductProcess) String() string {
	return fmt.Sprintf("%s (%s)", p.ProcessKey.String(), p.State)
}
