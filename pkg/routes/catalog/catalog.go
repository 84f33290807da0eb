package catalog

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/meeplestash/pkg/appctx"
	"github.com/Ramsey-B/meeplestash/pkg/metrics"
	"github.com/Ramsey-B/meeplestash/pkg/reconcile"
)

// Register registers catalog-keyed routes
func Register(g *echo.Group) {
	g.POST("/:bggId/reconcile", Reconcile)
}

// Reconcile reconciles relations for the household's game with the given
// catalog id. 404 when no game in the collection carries that id.
func Reconcile(c echo.Context) error {
	ctx := c.Request().Context()

	hh := appctx.GetHouseholdID(ctx)
	if hh == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "household id is required")
	}

	bggID, err := strconv.ParseInt(c.Param("bggId"), 10, 64)
	if err != nil || bggID <= 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid catalog id")
	}

	ctx, reconciler, err := ectoinject.GetContext[*reconcile.Reconciler](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get reconciler")
	}

	start := time.Now()
	result, err := reconciler.ReconcileByCatalogID(ctx, hh, bggID)
	if err != nil {
		return err
	}
	metrics.ReconcileRuns.WithLabelValues("catalog").Inc()
	metrics.ReconcileDuration.WithLabelValues("catalog").Observe(time.Since(start).Seconds())

	return c.JSON(http.StatusOK, result)
}
