package handlers

import (
	"net/http"

	apierr "github.com/kbase/collections/pkg/api/errors"
	apimatch "github.com/kbase/collections/pkg/api/types/matches"
	apiproc "github.com/kbase/collections/pkg/api/types/processes"
	"github.com/kbase/collections/pkg/engine/match"
	"github.com/labstack/echo/v4"
)

// CreateMatchHandler creates a match of the user's objects with the matcher, or gets the existing one.
//
// The match is computed in background. Clients should poll it with GetMatchHandler.
func CreateMatchHandler(collections Collections, matches Matches, collParam string, matcherParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok, err := token(c)
		if err != nil {
			return err
		}
		body := new(apimatch.CreateRequest)
		if err := decodeJSON(c, body); err != nil {
			return err
		}
		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}

		ctx := c.Request().Context()
		m, err := matches.CreateOrGet(ctx, match.CreateRequest{
			Collection: *coll,
			MatcherID:  c.Param(matcherParam),
			UPAs:       body.UPAs,
			Parameters: body.Parameters,
			Token:      tok,
		})
		if err != nil {
			return apierr.FromDomain(err)
		}
		view, err := matches.Get(ctx, *coll, m.MatchID, tok)
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apimatch.Compose(view, false))
	}
}

// CreateMatchSetHandler bundles matches into a match set.
func CreateMatchSetHandler(collections Collections, matches Matches, collParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok, err := token(c)
		if err != nil {
			return err
		}
		body := new(apimatch.SetRequest)
		if err := decodeJSON(c, body); err != nil {
			return err
		}
		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}
		view, err := matches.Set(c.Request().Context(), *coll, body.MatchIDs, tok)
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apimatch.Compose(view, false))
	}
}

// GetMatchHandler responds a match or a match set.
//
// Query:
//
// - verbose: when true, UPAs and matched ids are included.
func GetMatchHandler(collections Collections, matches Matches, collParam string, matchParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok, err := token(c)
		if err != nil {
			return err
		}
		verbose, err := queryBool(c, "verbose")
		if err != nil {
			return err
		}
		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}
		view, err := matches.Get(c.Request().Context(), *coll, c.Param(matchParam), tok)
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apimatch.Compose(view, verbose))
	}
}

// DeleteMatchHandler deletes a match. It is an administrative API.
//
// Query:
//
// - force: when true, a processing match is also deleted.
func DeleteMatchHandler(matches Matches, matchParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := user(c); err != nil {
			return err
		}
		force, err := queryBool(c, "force")
		if err != nil {
			return err
		}
		if _, err := matches.Delete(c.Request().Context(), c.Param(matchParam), force); err != nil {
			return apierr.FromDomain(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// ApplyMatchHandler starts computing the data product for the match, and responds its states.
func ApplyMatchHandler(collections Collections, matches Matches, collParam string, matchParam string, productParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok, err := token(c)
		if err != nil {
			return err
		}
		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}
		ps, err := matches.Apply(
			c.Request().Context(), *coll, c.Param(matchParam), c.Param(productParam), tok,
		)
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apiproc.ComposeList(ps))
	}
}
