package routes

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/atlasgraph/atlas/internal/server/middleware"
)

// GetGraphEntitiesHandler lists every entity of one project graph.
func GetGraphEntitiesHandler(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid project id"})
	}

	app := c.(*middleware.AppContext).App
	entities, err := app.Store.ListEntities(c.Request().Context(), projectID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"project_id": projectID,
		"entities":   entities,
	})
}
