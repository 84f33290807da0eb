package game

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/meeplestash/internal/repositories/expansionlink"
	gamerepo "github.com/Ramsey-B/meeplestash/internal/repositories/game"
	"github.com/Ramsey-B/meeplestash/pkg/appctx"
	"github.com/Ramsey-B/meeplestash/pkg/bgg"
	"github.com/Ramsey-B/meeplestash/pkg/events"
	"github.com/Ramsey-B/meeplestash/pkg/metrics"
	"github.com/Ramsey-B/meeplestash/pkg/models"
	"github.com/Ramsey-B/meeplestash/pkg/reconcile"
)

var validate = validator.New()

// Register registers game routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.POST("/import", Import)
	g.GET("/:id", Get)
	g.GET("/:id/expansions", GetExpansions)
	g.POST("/:id/reconcile", Reconcile)
}

// ImportResponse is the import endpoint's payload: the game plus what the
// relation reconcile pass did
type ImportResponse struct {
	Game      models.Game            `json:"game"`
	Reconcile models.ReconcileResult `json:"reconcile"`
}

// ReconcileRequest optionally carries explicit entries; when absent the
// handler fetches the game's relations from the catalog
type ReconcileRequest struct {
	Entries []models.RelationEntry `json:"entries"`
}

func householdID(c echo.Context) (string, error) {
	id := appctx.GetHouseholdID(c.Request().Context())
	if id == "" {
		return "", httperror.NewHTTPError(http.StatusUnauthorized, "household id is required")
	}
	return id, nil
}

func gameID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "invalid game id")
	}
	return id, nil
}

// List returns the household's games
func List(c echo.Context) error {
	ctx := c.Request().Context()

	hh, err := householdID(c)
	if err != nil {
		return err
	}

	var filter models.GameListFilter
	if err := c.Bind(&filter); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	ctx, repo, err := ectoinject.GetContext[*gamerepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	games, err := repo.List(ctx, hh, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, games)
}

// Create creates a game without touching the catalog. This is how
// catalog-less games (homebrew, promos) enter the collection.
func Create(c echo.Context) error {
	ctx := c.Request().Context()

	hh, err := householdID(c)
	if err != nil {
		return err
	}

	var req models.CreateGameRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*gamerepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	game, err := repo.Create(ctx, hh, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, game)
}

// Import fetches a game from the catalog, inserts it if it isn't in the
// collection yet, and reconciles its expansion relations
func Import(c echo.Context) error {
	ctx := c.Request().Context()

	hh, err := householdID(c)
	if err != nil {
		return err
	}

	var req models.ImportGameRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*gamerepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	ctx, catalog, err := ectoinject.GetContext[*bgg.Client](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get catalog client")
	}
	ctx, reconciler, err := ectoinject.GetContext[*reconcile.Reconciler](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get reconciler")
	}

	catalogGame, err := catalog.FetchGame(ctx, req.BGGID)
	if err != nil {
		return err
	}

	status := http.StatusOK
	game, err := repo.FindByCatalogID(ctx, hh, req.BGGID)
	if err != nil {
		return err
	}
	if game == nil {
		game, err = repo.Create(ctx, hh, models.CreateGameRequest{
			Name:          catalogGame.Name,
			BGGID:         catalogGame.BGGID,
			YearPublished: catalogGame.YearPublished,
			ThumbnailURL:  catalogGame.ThumbnailURL,
			ImageURL:      catalogGame.ImageURL,
			Description:   catalogGame.Description,
		})
		if err != nil {
			return err
		}
		status = http.StatusCreated
		metrics.GamesImported.Inc()

		if ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx); err == nil {
			_ = emitter.EmitGameImported(ctx, game)
		}
	}

	start := time.Now()
	result, err := reconciler.Reconcile(ctx, hh, game.Reference(), catalogGame.Relations)
	if err != nil {
		return err
	}
	metrics.ReconcileRuns.WithLabelValues("import").Inc()
	metrics.ReconcileDuration.WithLabelValues("import").Observe(time.Since(start).Seconds())

	return c.JSON(status, ImportResponse{Game: *game, Reconcile: result})
}

// Get returns a single game by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()

	hh, err := householdID(c)
	if err != nil {
		return err
	}

	id, err := gameID(c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*gamerepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	game, err := repo.Get(ctx, hh, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, game)
}

// GetExpansions returns both directions of a game's expansion relations
func GetExpansions(c echo.Context) error {
	ctx := c.Request().Context()

	hh, err := householdID(c)
	if err != nil {
		return err
	}

	id, err := gameID(c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*gamerepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	ctx, linkRepo, err := ectoinject.GetContext[*expansionlink.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	// 404 for games the household doesn't have
	if _, err := repo.Get(ctx, hh, id); err != nil {
		return err
	}

	relations, err := linkRepo.ListRelations(ctx, hh, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, relations)
}

// Reconcile reconciles a game's relations, either from entries in the
// request body or, when the body has none, from the catalog
func Reconcile(c echo.Context) error {
	ctx := c.Request().Context()

	hh, err := householdID(c)
	if err != nil {
		return err
	}

	id, err := gameID(c)
	if err != nil {
		return err
	}

	var req ReconcileRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, repo, err := ectoinject.GetContext[*gamerepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	ctx, reconciler, err := ectoinject.GetContext[*reconcile.Reconciler](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get reconciler")
	}

	game, err := repo.Get(ctx, hh, id)
	if err != nil {
		return err
	}

	entries := req.Entries
	if len(entries) == 0 {
		if game.BGGID == 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "game has no catalog id; relation entries are required")
		}

		ctx, catalog, err := ectoinject.GetContext[*bgg.Client](ctx)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get catalog client")
		}
		entries, err = catalog.FetchRelations(ctx, game.BGGID)
		if err != nil {
			return err
		}
	}

	start := time.Now()
	result, err := reconciler.Reconcile(ctx, hh, game.Reference(), entries)
	if err != nil {
		return err
	}
	metrics.ReconcileRuns.WithLabelValues("game").Inc()
	metrics.ReconcileDuration.WithLabelValues("game").Observe(time.Since(start).Seconds())

	return c.JSON(http.StatusOK, result)
}
