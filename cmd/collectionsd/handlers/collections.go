package handlers

import (
	"net/http"

	apierr "github.com/kbase/collections/pkg/api/errors"
	apicoll "github.com/kbase/collections/pkg/api/types/collections"
	"github.com/labstack/echo/v4"
)

func ListCollectionsHandler(collections Collections) echo.HandlerFunc {
	return func(c echo.Context) error {
		cs, err := collections.List(c.Request().Context())
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apicoll.ComposeList(cs))
	}
}

// GetCollectionHandler responds the active version of the collection.
func GetCollectionHandler(collections Collections, collParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		coll, err := activeCollection(c, collections, collParam)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, apicoll.Compose(*coll))
	}
}

// ListVersionsHandler responds versions of the collection, newest first.
//
// Query:
//
// - max_ver: the largest version number to be listed.
//
// - limit: count of versions.
func ListVersionsHandler(collections Collections, collParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		maxVer, err := queryInt(c, "max_ver")
		if err != nil {
			return err
		}
		limit, err := queryInt(c, "limit")
		if err != nil {
			return err
		}
		cs, err := collections.Versions(c.Request().Context(), c.Param(collParam), maxVer, limit)
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apicoll.ComposeList(cs))
	}
}

func GetVersionByTagHandler(collections Collections, collParam string, tagParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := user(c); err != nil {
			return err
		}
		coll, err := collections.GetByTag(c.Request().Context(), c.Param(collParam), c.Param(tagParam))
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apicoll.Compose(*coll))
	}
}

func GetVersionByNumHandler(collections Collections, collParam string, numParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := user(c); err != nil {
			return err
		}
		num, err := pathInt(c, numParam)
		if err != nil {
			return err
		}
		coll, err := collections.GetByNum(c.Request().Context(), c.Param(collParam), num)
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apicoll.Compose(*coll))
	}
}

// SaveVersionHandler saves a new version of a collection.
func SaveVersionHandler(collections Collections, collParam string, tagParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, err := user(c)
		if err != nil {
			return err
		}
		body := new(apicoll.Body)
		if err := decodeJSON(c, body); err != nil {
			return err
		}
		coll, err := collections.Save(
			c.Request().Context(), c.Param(collParam), c.Param(tagParam), body.Domain(), u,
		)
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apicoll.Compose(*coll))
	}
}

func ActivateByTagHandler(collections Collections, collParam string, tagParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, err := user(c)
		if err != nil {
			return err
		}
		coll, err := collections.ActivateByTag(c.Request().Context(), c.Param(collParam), c.Param(tagParam), u)
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apicoll.Compose(*coll))
	}
}

func ActivateByNumHandler(collections Collections, collParam string, numParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, err := user(c)
		if err != nil {
			return err
		}
		num, err := pathInt(c, numParam)
		if err != nil {
			return err
		}
		coll, err := collections.Activate(c.Request().Context(), c.Param(collParam), num, u)
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apicoll.Compose(*coll))
	}
}
