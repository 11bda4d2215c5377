package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	domerr "github.com/kbase/collections/pkg/domain/errors"
)

// GTDBRank is a taxonomic rank in GTDB lineage.
type GTDBRank string

const (
	Domain  GTDBRank = "domain"
	Phylum  GTDBRank = "phylum"
	Class   GTDBRank = "class"
	Order   GTDBRank = "order"
	Family  GTDBRank = "family"
	Genus   GTDBRank = "genus"
	Species GTDBRank = "species"
)

// GTDBRanks returns ranks in order, from domain to species.
func GTDBRanks() []GTDBRank {
	return []GTDBRank{Domain, Phylum, Class, Order, Family, Genus, Species}
}

var rankAbbrev = map[GTDBRank]string{
	Domain: "d", Phylum: "p", Class: "c", Order: "o", Family: "f", Genus: "g", Species: "s",
}

func (r GTDBRank) String() string {
	return string(r)
}

// Abbrev returns the prefix letter of the rank ("d" for domain, ...).
func (r GTDBRank) Abbrev() string {
	return rankAbbrev[r]
}

// Index returns the position of the rank in GTDBRanks(), or -1 for unknown rank.
func (r GTDBRank) Index() int {
	for i, rr := range GTDBRanks() {
		if rr == r {
			return i
		}
	}
	return -1
}

func AsGTDBRank(s string) (GTDBRank, error) {
	r := GTDBRank(s)
	if r.Index() < 0 {
		return "", domerr.NewInputError(
			domerr.ErrInvalidInput,
			"unknown rank: %q (should be one of %v)", s, GTDBRanks(),
		)
	}
	return r, nil
}

// Lineage is a GTDB lineage string,
// like "d__Bacteria;p__Firmicutes;c__Bacilli;o__Bacillales;f__Bacillaceae;g__Bacillus;s__Bacillus subtilis".
type Lineage string

// ParseLineage checks the format of lineage.
//
// Each rank should appear in order, with its abbreviation and "__".
// Lower ranks can be omitted. When forceComplete is true, the lineage should reach species.
func ParseLineage(s string, forceComplete bool) (Lineage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: lineage is empty", domerr.ErrMissingLineage)
	}
	ranks := GTDBRanks()
	parts := strings.Split(s, ";")
	if len(ranks) < len(parts) {
		return "", fmt.Errorf("%w: lineage has too many ranks: %s", domerr.ErrInvalidInput, s)
	}
	for i, p := range parts {
		prefix := ranks[i].Abbrev() + "__"
		if !strings.HasPrefix(p, prefix) {
			return "", fmt.Errorf(
				"%w: lineage rank %d should start with %s: %s", domerr.ErrInvalidInput, i, prefix, s,
			)
		}
	}
	if forceComplete && len(parts) != len(ranks) {
		return "", fmt.Errorf("%w: lineage is not complete to species: %s", domerr.ErrInvalidInput, s)
	}
	return Lineage(s), nil
}

// Truncate returns lineage down to rank (inclusive).
//
// If the lineage does not reach rank, ok is false.
func (l Lineage) Truncate(rank GTDBRank) (Lineage, bool) {
	idx := rank.Index()
	if idx < 0 {
		return "", false
	}
	parts := strings.Split(string(l), ";")
	if len(parts) <= idx {
		return "", false
	}
	return Lineage(strings.Join(parts[:idx+1], ";")), true
}

// Name returns the name at rank, without the rank prefix.
func (l Lineage) Name(rank GTDBRank) (string, bool) {
	idx := rank.Index()
	if idx < 0 {
		return "", false
	}
	parts := strings.Split(string(l), ";")
	if len(parts) <= idx {
		return "", false
	}
	return strings.TrimPrefix(parts[idx], rank.Abbrev()+"__"), true
}

// PrefixUpperBound returns the smallest string which is greater than
// any string starting with prefix, in code point order.
//
// Lineages starting with prefix p are in a range [p, PrefixUpperBound(p)).
// For empty prefix, it returns "".
func PrefixUpperBound(prefix string) string {
	r := []rune(prefix)
	for i := len(r) - 1; 0 <= i; i-- {
		if next := r[i] + 1; utf8.ValidRune(next) {
			r[i] = next
			return string(r[:i+1])
		}
	}
	return ""
}
