package server

import (
	"github.com/labstack/echo/v4"

	"github.com/atlasgraph/atlas/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Graph query routes
	apiRoutes.GET("/projects/:id/graph/entities", routes.GetGraphEntitiesHandler)
	apiRoutes.GET("/projects/:id/graph/entities/:entity_id", routes.GetGraphEntityHandler)
	apiRoutes.GET("/projects/:id/graph/relationships", routes.GetGraphRelationshipsHandler)
	apiRoutes.GET("/projects/:id/graph/snapshot", routes.GetGraphSnapshotHandler)

	// Migration routes
	apiRoutes.POST("/projects/:id/migrations", routes.PostMigrationHandler)
}
