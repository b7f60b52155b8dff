package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/atlasgraph/atlas/internal/server/middleware"
	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/leaselock"
)

// GetGraphSnapshotHandler computes a fresh analytics snapshot for one
// project: per-node centralities, community labels and aggregates. The
// snapshot is recomputed on demand from the stored graph; an empty project
// returns a zero-valued snapshot.
//
// Analysis and migration on one scope are mutually exclusive: a migration
// writes relationships with zero weight and only recomputes them at the
// end, so a snapshot taken mid-rebuild would be built from a half-upserted
// graph. The handler takes the same scope lease the migration paths hold
// and answers 409 while the scope is busy.
func GetGraphSnapshotHandler(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid project id"})
	}

	app := c.(*middleware.AppContext).App
	scope := common.Scope{Kind: common.ScopeProject, ProjectID: projectID}

	var snapshot common.GraphSnapshot
	lockClient := leaselock.New(app.DBConn)
	err = lockClient.WithLease(c.Request().Context(), leaselock.ScopeKey(scope), leaselock.Options{
		TTL:         time.Minute,
		TokenPrefix: "snapshot-",
	}, func(ctx context.Context) error {
		var err error
		snapshot, err = app.Engine.Analyze(ctx, projectID)
		return err
	})
	if errors.Is(err, leaselock.ErrBusy) {
		return c.JSON(http.StatusConflict, map[string]string{
			"error": "a migration is running for this project, retry later",
		})
	}
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"project_id": projectID,
		"snapshot":   snapshot,
	})
}
