// Package handlers implements the HTTP API of the collections service.
package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	apierr "github.com/kbase/collections/pkg/api/errors"
	"github.com/kbase/collections/pkg/dataproduct/genomeattribs"
	"github.com/kbase/collections/pkg/dataproduct/taxacount"
	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/engine/match"
	"github.com/kbase/collections/pkg/engine/selection"
	"github.com/labstack/echo/v4"
)

// header of the name of the user who calls administrative APIs.
//
// It is set by the gateway in front of this service.
const UserHeader = "X-Collections-User"

type Collections interface {
	Get(ctx context.Context, id string) (*domain.Collection, error)
	GetByTag(ctx context.Context, id string, verTag string) (*domain.Collection, error)
	GetByNum(ctx context.Context, id string, verNum int) (*domain.Collection, error)
	List(ctx context.Context) ([]domain.Collection, error)
	Versions(ctx context.Context, id string, maxVer int, limit int) ([]domain.Collection, error)
	Save(ctx context.Context, id string, verTag string, body domain.CollectionBody, user string) (*domain.Collection, error)
	Activate(ctx context.Context, id string, verNum int, user string) (*domain.Collection, error)
	ActivateByTag(ctx context.Context, id string, verTag string, user string) (*domain.Collection, error)
}

type Matches interface {
	CreateOrGet(ctx context.Context, req match.CreateRequest) (*domain.Match, error)
	Get(ctx context.Context, coll domain.Collection, id string, token string) (domain.MatchView, error)
	Complete(ctx context.Context, coll domain.Collection, id string, token string) (domain.MatchView, error)
	Set(ctx context.Context, coll domain.Collection, matchIDs []string, token string) (domain.MatchView, error)
	Delete(ctx context.Context, matchID string, force bool) (bool, error)
	Apply(ctx context.Context, coll domain.Collection, id string, product string, token string) ([]domain.DataProductProcess, error)
}

type Selections interface {
	CreateOrGet(ctx context.Context, req selection.CreateRequest) (*domain.Selection, error)
	Get(ctx context.Context, coll domain.Collection, selectionID string) (*domain.Selection, error)
	Complete(ctx context.Context, coll domain.Collection, selectionID string) (*domain.Selection, error)
	Delete(ctx context.Context, selectionID string, force bool) (bool, error)
	Apply(ctx context.Context, coll domain.Collection, selectionID string, product string) (*domain.DataProductProcess, error)
	Export(ctx context.Context, coll domain.Collection, selectionID string) (map[string][]string, int, error)
}

type GenomeAttribs interface {
	List(ctx context.Context, coll domain.Collection, req genomeattribs.ListRequest) (genomeattribs.ListResult, error)
}

type TaxaCount interface {
	Ranks(ctx context.Context, coll domain.Collection) ([]domain.GTDBRank, error)
	Counts(ctx context.Context, coll domain.Collection, req taxacount.CountRequest) ([]taxacount.Count, error)
}

// token returns the token of the request, or 401 error.
//
// The token is not interpreted here. It is passed to the workspace service.
func token(c echo.Context) (string, error) {
	tok := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	if t, ok := strings.CutPrefix(tok, "Bearer "); ok {
		tok = strings.TrimSpace(t)
	}
	if tok == "" {
		return "", apierr.Unauthorized("Authorization header is required")
	}
	return tok, nil
}

// user returns the name of the user calling administrative APIs, or 401 error.
func user(c echo.Context) (string, error) {
	u := strings.TrimSpace(c.Request().Header.Get(UserHeader))
	if u == "" {
		return "", apierr.Unauthorized(UserHeader + " header is required")
	}
	return u, nil
}

func decodeJSON(c echo.Context, v any) error {
	req := c.Request()
	if ctyp := strings.ToLower(req.Header.Get(echo.HeaderContentType)); !strings.HasPrefix(ctyp, echo.MIMEApplicationJSON) {
		return apierr.BadRequest("unexpected content type. it should be application/json", nil)
	}
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return apierr.BadRequest("can not understand the requested json", err)
	}
	return nil
}

func queryInt(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, apierr.BadRequest("query "+name+" should be an integer", err)
	}
	return i, nil
}

func queryBool(c echo.Context, name string) (bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apierr.BadRequest("query "+name+" should be true or false", err)
	}
	return b, nil
}

func pathInt(c echo.Context, name string) (int, error) {
	i, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, apierr.BadRequest("path parameter "+name+" should be an integer", err)
	}
	return i, nil
}

// activeCollection returns the active version of the collection in path.
func activeCollection(c echo.Context, collections Collections, param string) (*domain.Collection, error) {
	coll, err := collections.Get(c.Request().Context(), c.Param(param))
	if err != nil {
		return nil, apierr.FromDomain(err)
	}
	return coll, nil
}
