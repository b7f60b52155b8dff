package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/atlasgraph/atlas/internal/queue"
	"github.com/atlasgraph/atlas/internal/server/middleware"
	"github.com/atlasgraph/atlas/internal/util"
	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/graph"
)

// PostMigrationHandler triggers a migration over one project or document.
// Dry runs execute synchronously and return the preview report; apply runs
// are queued for the worker and acknowledged with 202, since a rebuild of a
// large project outlives any sensible request timeout.
func PostMigrationHandler(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid project id"})
	}

	type migrationRequest struct {
		Scope      string  `json:"scope" validate:"required,oneof=project document"`
		DocumentID int64   `json:"document_id,omitempty"`
		DryRun     bool    `json:"dry_run"`
		Threshold  float64 `json:"threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	}

	var req migrationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	scope := common.Scope{Kind: common.ScopeKind(req.Scope), ProjectID: projectID}
	if scope.Kind == common.ScopeDocument {
		if req.DocumentID == 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "document_id required for document scope"})
		}
		scope.DocumentID = req.DocumentID
	}

	app := c.(*middleware.AppContext).App

	if req.DryRun {
		report, err := app.Engine.Migrate(c.Request().Context(), graph.MigrationParams{
			Scope:     scope,
			Mode:      graph.ModeDryRun,
			Threshold: req.Threshold,
		})
		if errors.Is(err, common.ErrScopeNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, report)
	}

	msg := queue.MigrateMessage{
		JobID:     util.MustPublicID(),
		Scope:     scope,
		Mode:      graph.ModeApply,
		Threshold: req.Threshold,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if err := queue.PublishFIFO(app.Queue, queue.MigrateQueue, body); err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"status": "queued",
		"job_id": msg.JobID,
		"scope":  scope,
	})
}
