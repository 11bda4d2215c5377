package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kbase/collections/cmd/collectionsd/handlers"
	httptestutil "github.com/kbase/collections/internal/testutils/http"
	"github.com/kbase/collections/pkg/columns"
	"github.com/kbase/collections/pkg/dataproduct/genomeattribs"
	"github.com/kbase/collections/pkg/dataproduct/taxacount"
	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/filter"
	"github.com/kbase/collections/pkg/utils/cmp"
	"github.com/labstack/echo/v4"
)

func TestListGenomeAttribsHandler(t *testing.T) {
	t.Run("it passes listing options to the data product", func(t *testing.T) {
		matches := &mockMatches{}
		matches.Impl.Complete = func(_ context.Context, coll domain.Collection, id string, token string) (domain.MatchView, error) {
			if id != "m1" || token != "token-x" {
				t.Errorf("unexpected args: %s, %s", id, token)
			}
			return domain.MatchView{ID: id, Matches: []domain.Match{completeMatch()}}, nil
		}
		selections := &mockSelections{}
		selections.Impl.Complete = func(_ context.Context, coll domain.Collection, id string) (*domain.Selection, error) {
			s := completeSelection()
			return &s, nil
		}

		product := &mockGenomeAttribs{}
		var got genomeattribs.ListRequest
		product.Impl.List = func(_ context.Context, coll domain.Collection, req genomeattribs.ListRequest) (genomeattribs.ListResult, error) {
			got = req
			return genomeattribs.ListResult{
				Fields: []columns.ColumnSpec{{Key: "kbase_id", Type: columns.String, FilterStrategy: columns.Identity}},
				Rows:   []map[string]any{{"kbase_id": "GB_GCA_1", genomeattribs.MatchMark: true}},
				Next:   "cursor-2",
			}, nil
		}

		e := echo.New()
		c, resp := httptestutil.Get(
			e,
			"/collections/GTDB/data_products/genome_attribs/"+
				"?filter_gc_percentage=%5B50,60)&filter_classification=Bacillus&filter_conjunction=or"+
				"&match_id=m1&match_mark=true&selection_id=s1"+
				"&keep=kbase_id,%20gc_percentage&sort_on=gc_percentage&sort_desc=true&limit=10&cursor=cursor-1",
			httptestutil.WithToken("token-x"),
		)
		c.SetParamNames("coll")
		c.SetParamValues("GTDB")
		err := handlers.ListGenomeAttribsHandler(activeGTDB(), matches, selections, product, "coll")(c)
		if err != nil {
			t.Fatal(err)
		}

		if !cmp.SliceEq(got.Filters, []filter.Param{
			{Key: "classification", Value: "Bacillus"},
			{Key: "gc_percentage", Value: "[50,60)"},
		}) {
			t.Errorf("unexpected filters: %+v", got.Filters)
		}
		if got.Conjunction != filter.Or {
			t.Errorf("unexpected conjunction: %s", got.Conjunction)
		}
		if got.Match == nil || !got.Match.Mark || !cmp.SliceEq(got.Match.InternalIDs, []string{"i1"}) {
			t.Errorf("unexpected match subset: %+v", got.Match)
		}
		if got.Selection == nil || got.Selection.Mark || !cmp.SliceEq(got.Selection.InternalIDs, []string{"is1"}) {
			t.Errorf("unexpected selection subset: %+v", got.Selection)
		}
		if !cmp.SliceEq(got.Keep, []string{"kbase_id", "gc_percentage"}) {
			t.Errorf("unexpected keep: %v", got.Keep)
		}
		if got.Page.Sort != "gc_percentage" || !got.Page.Descending || got.Page.Limit != 10 || got.Page.Cursor != "cursor-1" {
			t.Errorf("unexpected page: %+v", got.Page)
		}

		body := handlers.GenomeAttribsResponse{}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Next != "cursor-2" || len(body.Data) != 1 || body.Data[0][genomeattribs.MatchMark] != true {
			t.Errorf("unexpected response: %+v", body)
		}
	})

	t.Run("it responds only count", func(t *testing.T) {
		product := &mockGenomeAttribs{}
		product.Impl.List = func(_ context.Context, coll domain.Collection, req genomeattribs.ListRequest) (genomeattribs.ListResult, error) {
			if !req.Count || len(req.Filters) != 0 {
				t.Errorf("unexpected request: %+v", req)
			}
			return genomeattribs.ListResult{Count: 42}, nil
		}
		e := echo.New()
		c, resp := httptestutil.Get(e, "/collections/GTDB/data_products/genome_attribs/?count=true")
		c.SetParamNames("coll")
		c.SetParamValues("GTDB")
		if err := handlers.ListGenomeAttribsHandler(activeGTDB(), &mockMatches{}, &mockSelections{}, product, "coll")(c); err != nil {
			t.Fatal(err)
		}
		body := handlers.CountResponse{}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Count != 42 {
			t.Errorf("unexpected count: %d", body.Count)
		}
	})

	for name, testcase := range map[string]struct {
		target string
		match  error
		list   error
		then   int
	}{
		"unknown conjunction": {
			target: "/?filter_conjunction=xor",
			then:   http.StatusBadRequest,
		},
		"match without token": {
			target: "/?match_id=m1",
			then:   http.StatusUnauthorized,
		},
		"match not complete": {
			target: "/?match_id=m1",
			match:  domerr.NewInputError(domerr.ErrInvalidMatchState, "match m1 is processing"),
			then:   http.StatusConflict,
		},
		"unknown column": {
			target: "/?filter_no_such_column=1",
			list:   domerr.NewInputError(domerr.ErrUnknownColumn, "no such column"),
			then:   http.StatusBadRequest,
		},
		"unsortable column": {
			target: "/?sort_on=classification",
			list:   domerr.NewInputError(domerr.ErrInvalidSortColumn, "classification is not sortable"),
			then:   http.StatusBadRequest,
		},
	} {
		t.Run("it rejects: "+name, func(t *testing.T) {
			matches := &mockMatches{}
			matches.Impl.Complete = func(context.Context, domain.Collection, string, string) (domain.MatchView, error) {
				return domain.MatchView{}, testcase.match
			}
			product := &mockGenomeAttribs{}
			product.Impl.List = func(context.Context, domain.Collection, genomeattribs.ListRequest) (genomeattribs.ListResult, error) {
				return genomeattribs.ListResult{}, testcase.list
			}

			e := echo.New()
			opts := []httptestutil.RequestOption{}
			if name != "match without token" {
				opts = append(opts, httptestutil.WithToken("token-x"))
			}
			c, _ := httptestutil.Get(e, testcase.target, opts...)
			c.SetParamNames("coll")
			c.SetParamValues("GTDB")
			err := handlers.ListGenomeAttribsHandler(activeGTDB(), matches, &mockSelections{}, product, "coll")(c)
			if statusOf(err) != testcase.then {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestListTaxaCountHandler(t *testing.T) {
	for name, testcase := range map[string]struct {
		state     domain.ProcessState
		thenIDs   []string
		thenState string
	}{
		"when counting for the match is complete, match counts are requested": {
			state:     domain.Complete,
			thenIDs:   []string{"i1"},
			thenState: "complete",
		},
		"when counting for the match is processing, match counts are not requested": {
			state:     domain.Processing,
			thenIDs:   nil,
			thenState: "processing",
		},
	} {
		t.Run(name, func(t *testing.T) {
			matches := &mockMatches{}
			matches.Impl.Apply = func(_ context.Context, coll domain.Collection, id string, product string, token string) ([]domain.DataProductProcess, error) {
				if product != taxacount.ID {
					t.Errorf("unexpected product: %s", product)
				}
				return []domain.DataProductProcess{
					{
						ProcessKey: domain.ProcessKey{InternalID: "i1", DataProduct: product, Type: domain.MatchSubset},
						Lifecycle:  domain.Lifecycle{State: testcase.state},
					},
				}, nil
			}
			product := &mockTaxaCount{}
			product.Impl.Counts = func(_ context.Context, coll domain.Collection, req taxacount.CountRequest) ([]taxacount.Count, error) {
				if req.Rank != domain.Genus || req.Limit != 5 {
					t.Errorf("unexpected request: %+v", req)
				}
				if !cmp.SliceEq(req.MatchInternalIDs, testcase.thenIDs) {
					t.Errorf("unexpected match ids: %v", req.MatchInternalIDs)
				}
				return []taxacount.Count{{Name: "g__Bacillus", Count: 10}}, nil
			}

			e := echo.New()
			c, resp := httptestutil.Get(
				e, "/collections/GTDB/data_products/taxa_count/counts/?rank=genus&limit=5&match_id=m1",
				httptestutil.WithToken("token-x"),
			)
			c.SetParamNames("coll")
			c.SetParamValues("GTDB")
			if err := handlers.ListTaxaCountHandler(activeGTDB(), matches, &mockSelections{}, product, "coll")(c); err != nil {
				t.Fatal(err)
			}
			body := handlers.TaxaCountResponse{}
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.MatchState != testcase.thenState || len(body.Data) != 1 {
				t.Errorf("unexpected response: %+v", body)
			}
		})
	}

	t.Run("it rejects unknown rank", func(t *testing.T) {
		e := echo.New()
		c, _ := httptestutil.Get(e, "/collections/GTDB/data_products/taxa_count/counts/?rank=kingdom")
		c.SetParamNames("coll")
		c.SetParamValues("GTDB")
		err := handlers.ListTaxaCountHandler(activeGTDB(), &mockMatches{}, &mockSelections{}, &mockTaxaCount{}, "coll")(c)
		if statusOf(err) != http.StatusBadRequest {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
