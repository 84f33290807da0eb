package expansionlink

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/meeplestash/pkg/database"
	"github.com/Ramsey-B/meeplestash/pkg/models"
	"github.com/Ramsey-B/meeplestash/pkg/tracing"
)

// Repository handles expansion link persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new expansion link repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// allColumns is the standard column list for SELECT queries
const allColumns = `id, household_id, base_game_id, base_bgg_id, expansion_game_id, expansion_bgg_id, display_name, created_at, updated_at`

// FindCandidateLinks returns every link in the household that touches the
// given reference on either side: by game id when the reference carries one,
// and by catalog id when it is non-zero. Pending rows are included, which is
// what lets a later import complete them.
func (r *Repository) FindCandidateLinks(ctx context.Context, householdID string, ref models.GameReference) ([]models.ExpansionLink, error) {
	ctx, span := tracing.StartSpan(ctx, "expansionlink.Repository.FindCandidateLinks")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(allColumns)
	sb.From("expansion_links")

	var sides []string
	if ref.GameID != nil {
		sides = append(sides,
			sb.Equal("base_game_id", *ref.GameID),
			sb.Equal("expansion_game_id", *ref.GameID),
		)
	}
	if ref.BGGID != 0 {
		sides = append(sides,
			sb.Equal("base_bgg_id", ref.BGGID),
			sb.Equal("expansion_bgg_id", ref.BGGID),
		)
	}
	if len(sides) == 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "game reference has neither a game id nor a catalog id")
	}

	sb.Where(
		sb.Equal("household_id", householdID),
		sb.Or(sides...),
	)
	sb.OrderBy("id ASC")

	query, args := sb.Build()

	links := []models.ExpansionLink{}
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find candidate links")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find candidate links")
	}

	return links, nil
}

// InsertLink inserts one link row and fills in the generated id and timestamps
func (r *Repository) InsertLink(ctx context.Context, link *models.ExpansionLink) error {
	ctx, span := tracing.StartSpan(ctx, "expansionlink.Repository.InsertLink")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":           "InsertLink",
		"household_id":     link.HouseholdID,
		"base_bgg_id":      link.BaseBGGID,
		"expansion_bgg_id": link.ExpansionBGGID,
		"display_name":     link.DisplayName,
	})

	now := time.Now().UTC()

	query := fmt.Sprintf(`
		INSERT INTO expansion_links (household_id, base_game_id, base_bgg_id, expansion_game_id, expansion_bgg_id, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING %s
	`, allColumns)

	if err := r.db.GetContext(ctx, link, query,
		link.HouseholdID, link.BaseGameID, link.BaseBGGID, link.ExpansionGameID, link.ExpansionBGGID, link.DisplayName, now,
	); err != nil {
		log.WithError(err).Error("Failed to insert expansion link")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert expansion link")
	}

	log.WithFields(map[string]any{"id": link.ID}).Info("Inserted expansion link")
	return nil
}

// PatchLinkSide fills in the game id on a pending side. The IS NULL guard
// keeps the write idempotent: a concurrent reconciler that already completed
// the side turns this into a no-op rather than an overwrite.
func (r *Repository) PatchLinkSide(ctx context.Context, householdID string, linkID int64, side models.LinkSide, gameID int64) error {
	ctx, span := tracing.StartSpan(ctx, "expansionlink.Repository.PatchLinkSide")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":       "PatchLinkSide",
		"household_id": householdID,
		"link_id":      linkID,
		"side":         side,
		"game_id":      gameID,
	})

	var column string
	switch side {
	case models.LinkSideBase:
		column = "base_game_id"
	case models.LinkSideExpansion:
		column = "expansion_game_id"
	default:
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown link side %q", side)
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
		UPDATE expansion_links
		SET %s = $3, updated_at = $4
		WHERE id = $1 AND household_id = $2 AND %s IS NULL
	`, column, column)

	result, err := r.db.ExecContext(ctx, query, linkID, householdID, gameID, now)
	if err != nil {
		log.WithError(err).Error("Failed to patch link side")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to patch link side")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		log.Debug("Link side already completed, nothing to patch")
		return nil
	}

	log.Info("Completed link side")
	return nil
}

// Get retrieves a link by ID
func (r *Repository) Get(ctx context.Context, householdID string, id int64) (*models.ExpansionLink, error) {
	ctx, span := tracing.StartSpan(ctx, "expansionlink.Repository.Get")
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM expansion_links WHERE id = $1 AND household_id = $2`, allColumns)

	var link models.ExpansionLink
	if err := r.db.GetContext(ctx, &link, query, id, householdID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "expansion link %d not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get expansion link")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get expansion link")
	}

	return &link, nil
}

// ListRelations returns both directions of a game's expansion edges. A side
// that points at an imported game shows that game's live name; a pending side
// falls back to the display name stored on the link.
func (r *Repository) ListRelations(ctx context.Context, householdID string, gameID int64) (*models.GameRelations, error) {
	ctx, span := tracing.StartSpan(ctx, "expansionlink.Repository.ListRelations")
	defer span.End()

	expandedByQuery := `
		SELECT l.expansion_game_id AS game_id,
		       l.expansion_bgg_id AS bgg_id,
		       COALESCE(g.name, l.display_name) AS display_name
		FROM expansion_links l
		LEFT JOIN games g ON g.id = l.expansion_game_id AND g.household_id = l.household_id
		WHERE l.household_id = $1 AND l.base_game_id = $2
		ORDER BY display_name ASC, l.id ASC
	`

	expandsQuery := `
		SELECT l.base_game_id AS game_id,
		       l.base_bgg_id AS bgg_id,
		       COALESCE(g.name, l.display_name) AS display_name
		FROM expansion_links l
		LEFT JOIN games g ON g.id = l.base_game_id AND g.household_id = l.household_id
		WHERE l.household_id = $1 AND l.expansion_game_id = $2
		ORDER BY display_name ASC, l.id ASC
	`

	relations := &models.GameRelations{
		ExpandedBy: []models.RelationView{},
		Expands:    []models.RelationView{},
	}

	if err := r.db.SelectContext(ctx, &relations.ExpandedBy, expandedByQuery, householdID, gameID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list expanded-by relations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relations")
	}

	if err := r.db.SelectContext(ctx, &relations.Expands, expandsQuery, householdID, gameID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list expands relations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relations")
	}

	return relations, nil
}
