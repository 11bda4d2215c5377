package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kbase/collections/cmd/collectionsd/handlers"
	httptestutil "github.com/kbase/collections/internal/testutils/http"
	apimatch "github.com/kbase/collections/pkg/api/types/matches"
	apiproc "github.com/kbase/collections/pkg/api/types/processes"
	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/engine/match"
	"github.com/kbase/collections/pkg/utils/cmp"
	"github.com/labstack/echo/v4"
)

func statusOf(err error) int {
	if herr := new(echo.HTTPError); errors.As(err, &herr) {
		return herr.Code
	}
	return 0
}

var t0 = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func completeMatch() domain.Match {
	return domain.Match{
		MatchID: "m1", InternalMatchID: "i1", MatcherID: "gtdb_lineage",
		CollectionID: "GTDB", CollectionVer: 2,
		UPAs: []string{"1/2/3"}, WSIDs: []int64{1},
		MatchedIDs: []string{"GB_GCA_1", "GB_GCA_2"},
		LastAccess: t0,
		Lifecycle:  domain.Lifecycle{State: domain.Complete, Created: t0, StateUpdated: t0},
	}
}

func TestCreateMatchHandler(t *testing.T) {
	type when struct {
		collection string
		options    []httptestutil.RequestOption
		body       string
		err        error
	}
	type then struct {
		status int
	}

	ctypJSON := httptestutil.ContentType("application/json")
	tok := httptestutil.WithToken("token-x")

	for name, testcase := range map[string]struct {
		when
		then
	}{
		"when the request is valid, it responds the match": {
			when: when{
				collection: "GTDB",
				options:    []httptestutil.RequestOption{ctypJSON, tok},
				body:       `{"upas": ["1/2/3"], "parameters": {"rank": "genus"}}`,
			},
			then: then{status: http.StatusOK},
		},
		"when no token is given, it responds 401": {
			when: when{
				collection: "GTDB",
				options:    []httptestutil.RequestOption{ctypJSON},
				body:       `{"upas": ["1/2/3"]}`,
			},
			then: then{status: http.StatusUnauthorized},
		},
		"when the body is not json, it responds 400": {
			when: when{
				collection: "GTDB",
				options:    []httptestutil.RequestOption{httptestutil.ContentType("text/plain"), tok},
				body:       `upas=1/2/3`,
			},
			then: then{status: http.StatusBadRequest},
		},
		"when the collection is unknown, it responds 404": {
			when: when{
				collection: "PMI",
				options:    []httptestutil.RequestOption{ctypJSON, tok},
				body:       `{"upas": ["1/2/3"]}`,
			},
			then: then{status: http.StatusNotFound},
		},
		"when too many upas are given, it responds 400": {
			when: when{
				collection: "GTDB",
				options:    []httptestutil.RequestOption{ctypJSON, tok},
				body:       `{"upas": ["1/2/3"]}`,
				err:        domerr.NewInputError(domerr.ErrTooManyIds, "too many"),
			},
			then: then{status: http.StatusBadRequest},
		},
		"when the workspace is not readable, it responds 403": {
			when: when{
				collection: "GTDB",
				options:    []httptestutil.RequestOption{ctypJSON, tok},
				body:       `{"upas": ["1/2/3"]}`,
				err:        domerr.NewInputError(domerr.ErrDataPermission, "no permission"),
			},
			then: then{status: http.StatusForbidden},
		},
	} {
		t.Run(name, func(t *testing.T) {
			matches := &mockMatches{}
			var got match.CreateRequest
			matches.Impl.CreateOrGet = func(_ context.Context, req match.CreateRequest) (*domain.Match, error) {
				got = req
				if testcase.when.err != nil {
					return nil, testcase.when.err
				}
				m := completeMatch()
				return &m, nil
			}
			matches.Impl.Get = func(_ context.Context, coll domain.Collection, id string, token string) (domain.MatchView, error) {
				return domain.MatchView{ID: id, Matches: []domain.Match{completeMatch()}}, nil
			}

			e := echo.New()
			c, resp := httptestutil.Post(
				e, "/collections/"+testcase.when.collection+"/matchers/gtdb_lineage/",
				strings.NewReader(testcase.when.body), testcase.when.options...,
			)
			c.SetParamNames("coll", "matcher")
			c.SetParamValues(testcase.when.collection, "gtdb_lineage")

			err := handlers.CreateMatchHandler(activeGTDB(), matches, "coll", "matcher")(c)
			if testcase.then.status != http.StatusOK {
				if statusOf(err) != testcase.then.status {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			if got.MatcherID != "gtdb_lineage" || got.Token != "token-x" || got.Collection.VerNum != 2 {
				t.Errorf("unexpected request: %+v", got)
			}
			if !cmp.SliceEq(got.UPAs, []string{"1/2/3"}) || got.Parameters["rank"] != "genus" {
				t.Errorf("unexpected request: %+v", got)
			}

			body := apimatch.Match{}
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.MatchID != "m1" || body.State != "complete" || body.MatchCount != 2 {
				t.Errorf("unexpected response: %+v", body)
			}
			if body.MatchedIDs != nil {
				t.Errorf("matched ids are exposed: %+v", body)
			}
		})
	}
}

func TestGetMatchHandler(t *testing.T) {
	matches := &mockMatches{}
	matches.Impl.Get = func(_ context.Context, coll domain.Collection, id string, token string) (domain.MatchView, error) {
		if token != "token-x" {
			t.Errorf("unexpected token: %s", token)
		}
		if id != "m1" {
			return domain.MatchView{}, domerr.NewInputError(domerr.ErrMatchNotFound, "no match %s", id)
		}
		return domain.MatchView{ID: id, Matches: []domain.Match{completeMatch()}}, nil
	}

	t.Run("verbose", func(t *testing.T) {
		e := echo.New()
		c, resp := httptestutil.Get(
			e, "/collections/GTDB/matches/m1/?verbose=true", httptestutil.WithToken("token-x"),
		)
		c.SetParamNames("coll", "match")
		c.SetParamValues("GTDB", "m1")
		if err := handlers.GetMatchHandler(activeGTDB(), matches, "coll", "match")(c); err != nil {
			t.Fatal(err)
		}
		body := apimatch.Match{}
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if !cmp.SliceEq(body.MatchedIDs, []string{"GB_GCA_1", "GB_GCA_2"}) {
			t.Errorf("unexpected matched ids: %v", body.MatchedIDs)
		}
		if !cmp.SliceEq(body.UPAs, []string{"1/2/3"}) {
			t.Errorf("unexpected upas: %v", body.UPAs)
		}
	})

	t.Run("not found", func(t *testing.T) {
		e := echo.New()
		c, _ := httptestutil.Get(e, "/collections/GTDB/matches/m9/", httptestutil.WithToken("token-x"))
		c.SetParamNames("coll", "match")
		c.SetParamValues("GTDB", "m9")
		err := handlers.GetMatchHandler(activeGTDB(), matches, "coll", "match")(c)
		if statusOf(err) != http.StatusNotFound {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestDeleteMatchHandler(t *testing.T) {
	for name, testcase := range map[string]struct {
		target    string
		options   []httptestutil.RequestOption
		thenForce bool
		then      int
	}{
		"without user": {
			target: "/matches/m1/",
			then:   http.StatusUnauthorized,
		},
		"with user": {
			target:  "/matches/m1/",
			options: []httptestutil.RequestOption{httptestutil.WithHeader(handlers.UserHeader, "admin")},
			then:    http.StatusNoContent,
		},
		"forced": {
			target:    "/matches/m1/?force=true",
			options:   []httptestutil.RequestOption{httptestutil.WithHeader(handlers.UserHeader, "admin")},
			thenForce: true,
			then:      http.StatusNoContent,
		},
	} {
		t.Run(name, func(t *testing.T) {
			matches := &mockMatches{}
			called := false
			matches.Impl.Delete = func(_ context.Context, matchID string, force bool) (bool, error) {
				called = true
				if matchID != "m1" || force != testcase.thenForce {
					t.Errorf("unexpected args: %s, %v", matchID, force)
				}
				return true, nil
			}

			e := echo.New()
			c, resp := httptestutil.Delete(e, testcase.target, testcase.options...)
			c.SetParamNames("match")
			c.SetParamValues("m1")
			err := handlers.DeleteMatchHandler(matches, "match")(c)

			if testcase.then != http.StatusNoContent {
				if statusOf(err) != testcase.then {
					t.Errorf("unexpected error: %v", err)
				}
				if called {
					t.Error("deleted without user")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if resp.Code != http.StatusNoContent {
				t.Errorf("unexpected status: %d", resp.Code)
			}
		})
	}
}

func TestApplyMatchHandler(t *testing.T) {
	matches := &mockMatches{}
	matches.Impl.Apply = func(_ context.Context, coll domain.Collection, id string, product string, token string) ([]domain.DataProductProcess, error) {
		if id != "m1" || product != "taxa_count" {
			t.Errorf("unexpected args: %s, %s", id, product)
		}
		return []domain.DataProductProcess{
			{
				ProcessKey: domain.ProcessKey{InternalID: "i1", DataProduct: product, Type: domain.MatchSubset},
				Lifecycle:  domain.Lifecycle{State: domain.Processing, Created: t0, StateUpdated: t0},
			},
		}, nil
	}

	e := echo.New()
	c, resp := httptestutil.Post(e, "/collections/GTDB/matches/m1/apply/taxa_count/", nil, httptestutil.WithToken("token-x"))
	c.SetParamNames("coll", "match", "product")
	c.SetParamValues("GTDB", "m1", "taxa_count")
	if err := handlers.ApplyMatchHandler(activeGTDB(), matches, "coll", "match", "product")(c); err != nil {
		t.Fatal(err)
	}
	body := apiproc.List{}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data) != 1 || body.Data[0].State != "processing" || body.Data[0].Type != "match" {
		t.Errorf("unexpected response: %+v", body)
	}
}
