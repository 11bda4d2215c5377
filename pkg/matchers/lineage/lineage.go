// Package lineage is a matcher by GTDB lineage in workspace object metadata.
package lineage

import (
	"context"
	"slices"

	"github.com/kbase/collections/pkg/dataproduct/genomeattribs"
	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/matchers"
)

const ID = "gtdb_lineage"

// keys of object metadata
const (
	MetaLineage = "GTDB_lineage"
	MetaVersion = "GTDB_source_version"
)

// parameters
const (
	ParamRank        = "rank"
	ParamGTDBVersion = "gtdb_version"
)

type Matcher struct {
	genomes matchers.Genomes
}

func New(genomes matchers.Genomes) *Matcher {
	return &Matcher{genomes: genomes}
}

func (*Matcher) ID() string {
	return ID
}

func (*Matcher) Description() string {
	return "Matches based on the GTDB lineage string."
}

func (*Matcher) Types() []string {
	return []string{"KBaseGenomes.Genome", "KBaseGenomeAnnotations.Assembly"}
}

func (*Matcher) RequiredDataProducts() []string {
	return []string{genomeattribs.ID}
}

// ValidateUserParameters accepts an optional "rank".
func (*Matcher) ValidateUserParameters(params map[string]any) (map[string]any, error) {
	if unknown := matchers.UnknownKeys(params, ParamRank); len(unknown) != 0 {
		return nil, domerr.NewInputError(domerr.ErrInvalidInput, "unknown parameters for %s: %v", ID, unknown)
	}
	v, ok := params[ParamRank]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, domerr.NewInputError(domerr.ErrInvalidInput, "%s should be a string", ParamRank)
	}
	rank, err := domain.AsGTDBRank(s)
	if err != nil {
		return nil, err
	}
	return map[string]any{ParamRank: rank.String()}, nil
}

func (*Matcher) ValidateCollectionParameters(params map[string]any) error {
	if unknown := matchers.UnknownKeys(params, ParamGTDBVersion); len(unknown) != 0 {
		return domerr.NewInputError(domerr.ErrInvalidInput, "unknown collection parameters for %s: %v", ID, unknown)
	}
	if v, ok := params[ParamGTDBVersion].(string); !ok || v == "" {
		return domerr.NewInputError(domerr.ErrInvalidInput, "%s requires %s", ID, ParamGTDBVersion)
	}
	return nil
}

func rankOf(params map[string]any) (domain.GTDBRank, bool) {
	s, ok := params[ParamRank].(string)
	if !ok || s == "" {
		return "", false
	}
	r, err := domain.AsGTDBRank(s)
	if err != nil {
		return "", false
	}
	return r, true
}

// lineages returns lineages to be queried, sorted and de-duplicated.
func lineages(req matchers.Request) ([]domain.Lineage, error) {
	version, _ := req.Match.CollectionParameters[ParamGTDBVersion].(string)
	rank, byRank := rankOf(req.Match.UserParameters)

	ret := []domain.Lineage{}
	for _, o := range req.Objects {
		l, ok := o.Metadata[MetaLineage]
		if !ok || l == "" {
			return nil, domerr.NewInputError(
				domerr.ErrMissingLineage,
				"object %s has no %s in metadata", o.Ref, MetaLineage,
			)
		}
		if v := o.Metadata[MetaVersion]; v != version {
			return nil, domerr.NewInputError(
				domerr.ErrLineageVersion,
				"lineage of object %s is from GTDB version %q, but the collection is version %q",
				o.Ref, v, version,
			)
		}
		lineage, err := domain.ParseLineage(l, !byRank)
		if err != nil {
			return nil, domerr.NewInputError(domerr.ErrMissingLineage, "object %s: %s", o.Ref, err)
		}
		if byRank {
			truncated, ok := lineage.Truncate(rank)
			if !ok {
				return nil, domerr.NewInputError(
					domerr.ErrMissingLineage,
					"lineage of object %s does not reach rank %s", o.Ref, rank,
				)
			}
			lineage = truncated
		}
		ret = append(ret, lineage)
	}
	slices.Sort(ret)
	return slices.Compact(ret), nil
}

func (*Matcher) ValidateObjects(req matchers.Request) error {
	_, err := lineages(req)
	return err
}

func (m *Matcher) Match(ctx context.Context, req matchers.Request) ([]string, error) {
	ls, err := lineages(req)
	if err != nil {
		return nil, err
	}
	_, byRank := rankOf(req.Match.UserParameters)
	return m.genomes.MatchLineages(ctx, req.Collection, ls, byRank)
}
