package handlers

import (
	"net/http"

	apierr "github.com/kbase/collections/pkg/api/errors"
	apiproc "github.com/kbase/collections/pkg/api/types/processes"
	apisel "github.com/kbase/collections/pkg/api/types/selections"
	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/engine/selection"
	"github.com/labstack/echo/v4"
)

// CreateSelectionHandler creates a selection of rows of the default data product, or gets the existing one.
func CreateSelectionHandler(collections Collections, selections Selections, collParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok, err := token(c)
		if err != nil {
			return err
		}
		body := new(apisel.CreateRequest)
		if err := decodeJSON(c, body); err != nil {
			return err
		}
		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}
		sel, err := selections.CreateOrGet(c.Request().Context(), selection.CreateRequest{
			Collection:    *coll,
			IDs:           body.SelectionIDs,
			SourceMatchID: body.MatchID,
			Token:         tok,
		})
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apisel.Compose(*sel, false))
	}
}

// GetSelectionHandler responds a selection.
//
// Query:
//
// - verbose: when true, selected ids and unmatched ids are included.
func GetSelectionHandler(collections Collections, selections Selections, collParam string, selParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		verbose, err := queryBool(c, "verbose")
		if err != nil {
			return err
		}
		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}
		sel, err := selections.Get(c.Request().Context(), *coll, c.Param(selParam))
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apisel.Compose(*sel, verbose))
	}
}

// DeleteSelectionHandler deletes a selection. It is an administrative API.
func DeleteSelectionHandler(selections Selections, selParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := user(c); err != nil {
			return err
		}
		force, err := queryBool(c, "force")
		if err != nil {
			return err
		}
		if _, err := selections.Delete(c.Request().Context(), c.Param(selParam), force); err != nil {
			return apierr.FromDomain(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// ApplySelectionHandler starts computing the data product for the selection, and responds its state.
func ApplySelectionHandler(collections Collections, selections Selections, collParam string, selParam string, productParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}
		p, err := selections.Apply(c.Request().Context(), *coll, c.Param(selParam), c.Param(productParam))
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apiproc.ComposeList([]domain.DataProductProcess{*p}))
	}
}

// ExportSelectionHandler responds ids of workspace objects in the selection, grouped by types.
func ExportSelectionHandler(collections Collections, selections Selections, collParam string, selParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}
		data, processed, err := selections.Export(c.Request().Context(), *coll, c.Param(selParam))
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apisel.Export{Data: data, Processed: processed})
	}
}
