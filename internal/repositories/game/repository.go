package game

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/Ramsey-B/meeplestash/pkg/database"
	"github.com/Ramsey-B/meeplestash/pkg/models"
	"github.com/Ramsey-B/meeplestash/pkg/tracing"
)

// Repository handles game persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new game repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// allColumns is the standard column list for SELECT queries
const allColumns = `id, household_id, bgg_id, name, year_published, thumbnail_url, image_url, description, created_at, updated_at`

const uniqueViolation = "23505"

// Create inserts a game row and returns it with its generated id.
// A second import of the same catalog id in a household is a conflict, not a
// new row; the partial unique index enforces that for bgg_id != 0.
func (r *Repository) Create(ctx context.Context, householdID string, req models.CreateGameRequest) (*models.Game, error) {
	ctx, span := tracing.StartSpan(ctx, "game.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":       "Create",
		"household_id": householdID,
		"bgg_id":       req.BGGID,
		"name":         req.Name,
	})

	now := time.Now().UTC()

	query := fmt.Sprintf(`
		INSERT INTO games (household_id, bgg_id, name, year_published, thumbnail_url, image_url, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING %s
	`, allColumns)

	var game models.Game
	if err := r.db.GetContext(ctx, &game, query,
		householdID, req.BGGID, req.Name, req.YearPublished, req.ThumbnailURL, req.ImageURL, req.Description, now,
	); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return nil, httperror.NewHTTPErrorf(http.StatusConflict, "game with catalog id %d already exists", req.BGGID)
		}
		log.WithError(err).Error("Failed to create game")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create game")
	}

	log.WithFields(map[string]any{"id": game.ID}).Info("Created game")
	return &game, nil
}

// Get retrieves a game by ID
func (r *Repository) Get(ctx context.Context, householdID string, id int64) (*models.Game, error) {
	ctx, span := tracing.StartSpan(ctx, "game.Repository.Get")
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM games WHERE id = $1 AND household_id = $2`, allColumns)

	var game models.Game
	if err := r.db.GetContext(ctx, &game, query, id, householdID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "game %d not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get game")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get game")
	}

	return &game, nil
}

// FindByCatalogID retrieves the household's game with the given catalog id.
// Returns (nil, nil) when none exists. BGGID 0 marks catalog-less games and
// is never a lookup key, so 0 short-circuits to not-found.
func (r *Repository) FindByCatalogID(ctx context.Context, householdID string, bggID int64) (*models.Game, error) {
	ctx, span := tracing.StartSpan(ctx, "game.Repository.FindByCatalogID")
	defer span.End()

	if bggID == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM games WHERE household_id = $1 AND bgg_id = $2`, allColumns)

	var game models.Game
	if err := r.db.GetContext(ctx, &game, query, householdID, bggID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find game by catalog id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find game")
	}

	return &game, nil
}

// List returns the household's games, filtered and paged
func (r *Repository) List(ctx context.Context, householdID string, filter models.GameListFilter) ([]models.Game, error) {
	ctx, span := tracing.StartSpan(ctx, "game.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(allColumns)
	sb.From("games")

	where := []string{
		sb.Equal("household_id", householdID),
	}
	if filter.Name != "" {
		where = append(where, sb.ILike("name", "%"+filter.Name+"%"))
	}
	sb.Where(where...)
	sb.OrderBy("name ASC", "id ASC")

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sb.Limit(limit)
	if filter.Offset > 0 {
		sb.Offset(filter.Offset)
	}

	query, args := sb.Build()

	games := []models.Game{}
	if err := r.db.SelectContext(ctx, &games, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list games")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list games")
	}

	return games, nil
}
