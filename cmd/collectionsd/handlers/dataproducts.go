package handlers

import (
	"net/http"
	"sort"
	"strings"

	apierr "github.com/kbase/collections/pkg/api/errors"
	"github.com/kbase/collections/pkg/columns"
	"github.com/kbase/collections/pkg/dataproduct/genomeattribs"
	"github.com/kbase/collections/pkg/dataproduct/taxacount"
	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/filter"
	"github.com/kbase/collections/pkg/paging"
	"github.com/labstack/echo/v4"
)

// prefix of query parameters of column filters, like "filter_checkm_completeness=[90,]"
const filterPrefix = "filter_"

type GenomeAttribsResponse struct {
	Fields []columns.ColumnSpec `json:"fields"`
	Data   []map[string]any     `json:"data"`
	Next   string               `json:"next,omitempty"`
}

type CountResponse struct {
	Count int `json:"count"`
}

// filters collects column filters in query. Parameters are sorted by keys.
func filters(c echo.Context) []filter.Param {
	ret := []filter.Param{}
	for name, values := range c.QueryParams() {
		key, ok := strings.CutPrefix(name, filterPrefix)
		if !ok || key == "conjunction" {
			continue
		}
		for _, v := range values {
			ret = append(ret, filter.Param{Key: key, Value: v})
		}
	}
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].Key < ret[j].Key })
	return ret
}

// ListGenomeAttribsHandler lists genome attributes of the collection.
//
// Query:
//
// - filter_<column>: filter on the column. The syntax depends on the column type.
//
// - filter_conjunction: "and" (default) or "or". How text searches are combined.
//
// - match_id, match_mark: restrict rows to the match, or mark them when match_mark is true.
//
// - selection_id, selection_mark: same as above, for a selection.
//
// - keep: comma separated columns to be returned.
//
// - count: when true, only the count of rows is returned.
//
// - sort_on, sort_desc, cursor, limit, skip: paging.
func ListGenomeAttribsHandler(collections Collections, matches Matches, selections Selections, product GenomeAttribs, collParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		conj, err := filter.AsConjunction(c.QueryParam(filterPrefix + "conjunction"))
		if err != nil {
			return apierr.FromDomain(err)
		}
		req := genomeattribs.ListRequest{
			Filters:     filters(c),
			Conjunction: conj,
			Page: paging.Request{
				Sort:   c.QueryParam("sort_on"),
				Cursor: c.QueryParam("cursor"),
			},
		}
		if keep := c.QueryParam("keep"); keep != "" {
			for _, k := range strings.Split(keep, ",") {
				if k = strings.TrimSpace(k); k != "" {
					req.Keep = append(req.Keep, k)
				}
			}
		}
		if req.Count, err = queryBool(c, "count"); err != nil {
			return err
		}
		if req.Page.Descending, err = queryBool(c, "sort_desc"); err != nil {
			return err
		}
		if req.Page.Limit, err = queryInt(c, "limit"); err != nil {
			return err
		}
		if req.Page.Skip, err = queryInt(c, "skip"); err != nil {
			return err
		}

		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}

		if matchID := c.QueryParam("match_id"); matchID != "" {
			tok, err := token(c)
			if err != nil {
				return err
			}
			mark, err := queryBool(c, "match_mark")
			if err != nil {
				return err
			}
			view, err := matches.Complete(ctx, *coll, matchID, tok)
			if err != nil {
				return apierr.FromDomain(err)
			}
			req.Match = &genomeattribs.Subset{InternalIDs: view.InternalMatchIDs(), Mark: mark}
		}
		if selID := c.QueryParam("selection_id"); selID != "" {
			mark, err := queryBool(c, "selection_mark")
			if err != nil {
				return err
			}
			sel, err := selections.Complete(ctx, *coll, selID)
			if err != nil {
				return apierr.FromDomain(err)
			}
			req.Selection = &genomeattribs.Subset{InternalIDs: []string{sel.InternalSelectionID}, Mark: mark}
		}

		result, err := product.List(ctx, *coll, req)
		if err != nil {
			return apierr.FromDomain(err)
		}
		if req.Count {
			return c.JSON(http.StatusOK, CountResponse{Count: result.Count})
		}
		return c.JSON(http.StatusOK, GenomeAttribsResponse{
			Fields: result.Fields, Data: result.Rows, Next: result.Next,
		})
	}
}

type RanksResponse struct {
	Data []string `json:"data"`
}

// ListRanksHandler lists ranks which have taxa counts.
func ListRanksHandler(collections Collections, product TaxaCount, collParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}
		ranks, err := product.Ranks(c.Request().Context(), *coll)
		if err != nil {
			return apierr.FromDomain(err)
		}
		resp := RanksResponse{Data: make([]string, 0, len(ranks))}
		for _, r := range ranks {
			resp.Data = append(resp.Data, r.String())
		}
		return c.JSON(http.StatusOK, resp)
	}
}

type TaxaCountResponse struct {
	Data []taxacount.Count `json:"data"`

	// states of counting for the match or the selection. Empty when not requested.
	MatchState     string `json:"match_state,omitempty"`
	SelectionState string `json:"selection_state,omitempty"`
}

// ListTaxaCountHandler lists taxa with most genomes at the rank.
//
// Query:
//
// - rank: required.
//
// - limit: count of taxa.
//
// - match_id, selection_id: counts in them are included, once the counting is complete.
// Requesting them starts counting.
func ListTaxaCountHandler(collections Collections, matches Matches, selections Selections, product TaxaCount, collParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		rank, err := domain.AsGTDBRank(c.QueryParam("rank"))
		if err != nil {
			return apierr.FromDomain(err)
		}
		limit, err := queryInt(c, "limit")
		if err != nil {
			return err
		}
		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}

		req := taxacount.CountRequest{Rank: rank, Limit: limit}
		resp := TaxaCountResponse{}

		if matchID := c.QueryParam("match_id"); matchID != "" {
			tok, err := token(c)
			if err != nil {
				return err
			}
			ps, err := matches.Apply(ctx, *coll, matchID, taxacount.ID, tok)
			if err != nil {
				return apierr.FromDomain(err)
			}
			state, ids := processed(ps)
			resp.MatchState = state.String()
			if state == domain.Complete {
				req.MatchInternalIDs = ids
			}
		}
		if selID := c.QueryParam("selection_id"); selID != "" {
			p, err := selections.Apply(ctx, *coll, selID, taxacount.ID)
			if err != nil {
				return apierr.FromDomain(err)
			}
			state, ids := processed([]domain.DataProductProcess{*p})
			resp.SelectionState = state.String()
			if state == domain.Complete {
				req.SelectionInternalIDs = ids
			}
		}

		counts, err := product.Counts(ctx, *coll, req)
		if err != nil {
			return apierr.FromDomain(err)
		}
		resp.Data = counts
		return c.JSON(http.StatusOK, resp)
	}
}

// processed returns the overall state of processes and their internal ids.
func processed(ps []domain.DataProductProcess) (domain.ProcessState, []string) {
	states := make([]domain.ProcessState, 0, len(ps))
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		states = append(states, p.State)
		ids = append(ids, p.InternalID)
	}
	return domain.LeastFavorable(states...), ids
}
