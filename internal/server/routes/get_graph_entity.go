package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/atlasgraph/atlas/internal/server/middleware"
	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/graph"
)

// GetGraphEntityHandler resolves one entity with its k-hop neighborhood.
// The depth query parameter defaults to 1 and is capped at 5 to keep the
// traversal bounded on dense graphs.
func GetGraphEntityHandler(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid project id"})
	}
	entityID := c.Param("entity_id")

	depth := 1
	if raw := c.QueryParam("depth"); raw != "" {
		depth, err = strconv.Atoi(raw)
		if err != nil || depth < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid depth"})
		}
	}
	if depth > 5 {
		depth = 5
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	entity, err := app.Store.GetEntity(ctx, projectID, entityID)
	if errors.Is(err, common.ErrEntityNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "entity not found"})
	}
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	neighbors, err := graph.Neighborhood(ctx, app.Store, projectID, entityID, depth)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"entity":    entity,
		"depth":     depth,
		"neighbors": neighbors,
	})
}
