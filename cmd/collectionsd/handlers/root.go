package handlers

import (
	"net/http"
	"time"

	"github.com/kbase/collections/pkg/buildtime"
	"github.com/kbase/collections/pkg/utils/rfctime"
	"github.com/labstack/echo/v4"
)

const ServiceName = "Collections Prototype"

type RootResponse struct {
	ServiceName string          `json:"service_name"`
	Version     string          `json:"version"`
	GitHash     string          `json:"git_hash"`
	ServerTime  rfctime.RFC3339 `json:"server_time"`
}

// RootHandler responds the service information.
func RootHandler(clock func() time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, RootResponse{
			ServiceName: ServiceName,
			Version:     buildtime.VERSION(),
			GitHash:     buildtime.GIT_REVISION(),
			ServerTime:  rfctime.RFC3339(clock()),
		})
	}
}
