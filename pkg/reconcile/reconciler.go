// Package reconcile keeps the stored expansion graph consistent with what a
// caller (usually the catalog) says a game's relations are.
package reconcile

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/meeplestash/pkg/events"
	"github.com/Ramsey-B/meeplestash/pkg/metrics"
	"github.com/Ramsey-B/meeplestash/pkg/models"
	"github.com/Ramsey-B/meeplestash/pkg/reference"
	"github.com/Ramsey-B/meeplestash/pkg/tracing"
)

// GameStore is the slice of the game repository the reconciler needs
type GameStore interface {
	// FindByCatalogID returns (nil, nil) when no game has the catalog id
	FindByCatalogID(ctx context.Context, householdID string, bggID int64) (*models.Game, error)
}

// LinkStore is the slice of the link repository the reconciler needs
type LinkStore interface {
	FindCandidateLinks(ctx context.Context, householdID string, ref models.GameReference) ([]models.ExpansionLink, error)
	InsertLink(ctx context.Context, link *models.ExpansionLink) error
	PatchLinkSide(ctx context.Context, householdID string, linkID int64, side models.LinkSide, gameID int64) error
}

// Catalog fetches a game's relations from the external catalog
type Catalog interface {
	FetchRelations(ctx context.Context, bggID int64) ([]models.RelationEntry, error)
}

// Reconciler applies a batch of relation entries against the link store.
// It is request-scoped and holds no locks; every write is one atomic
// statement, so concurrent passes over the same subject may both observe a
// missing link and race. The conditional side patch makes the duplicate
// completion harmless, and a retried pass converges to all-skipped.
type Reconciler struct {
	logger  ectologger.Logger
	games   GameStore
	links   LinkStore
	catalog Catalog
	emitter *events.Emitter
}

// NewReconciler creates a reconciler. The emitter may be nil when events are
// disabled.
func NewReconciler(logger ectologger.Logger, games GameStore, links LinkStore, catalog Catalog, emitter *events.Emitter) *Reconciler {
	return &Reconciler{
		logger:  logger,
		games:   games,
		links:   links,
		catalog: catalog,
		emitter: emitter,
	}
}

// Reconcile folds the entries into the stored links for the subject game.
// The subject must be imported (non-nil GameID). The whole batch is
// validated before any store access; an empty batch touches nothing.
func (r *Reconciler) Reconcile(ctx context.Context, householdID string, subject models.GameReference, entries []models.RelationEntry) (models.ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Reconciler.Reconcile")
	defer span.End()

	var result models.ReconcileResult

	if subject.GameID == nil {
		return result, httperror.NewHTTPError(http.StatusBadRequest, "subject must be an imported game")
	}
	for _, entry := range entries {
		if err := reference.Validate(entry.Other); err != nil {
			return result, err
		}
		if entry.DisplayName == "" {
			return result, httperror.NewHTTPError(http.StatusBadRequest, "relation entry is missing a display name")
		}
	}

	if len(entries) == 0 {
		return result, nil
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":       "Reconcile",
		"household_id": householdID,
		"subject":      subject.String(),
		"entries":      len(entries),
	})

	candidates, err := r.links.FindCandidateLinks(ctx, householdID, subject)
	if err != nil {
		return result, err
	}

	for _, entry := range entries {
		outcome, err := r.reconcileEntry(ctx, householdID, subject, entry, &candidates)
		if err != nil {
			return result, err
		}
		result.Add(outcome)
	}

	metrics.RecordReconcileResult(result.Inserted, result.Updated, result.Skipped)

	log.WithFields(map[string]any{
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
	}).Info("Reconciled relations")

	return result, nil
}

// reconcileEntry decides insert/complete/skip for one entry. Inserted links
// join the candidate set so a duplicate entry later in the batch skips
// instead of inserting twice.
func (r *Reconciler) reconcileEntry(ctx context.Context, householdID string, subject models.GameReference, entry models.RelationEntry, candidates *[]models.ExpansionLink) (models.ReconcileResult, error) {
	var result models.ReconcileResult

	subjectSide := models.LinkSideExpansion
	if entry.ExpandsSubject {
		subjectSide = models.LinkSideBase
	}
	otherSide := subjectSide.Opposite()

	// A game imported since the entry was produced may already own the
	// other side's catalog id; resolving it here lets a fresh link start
	// complete and a pending one finish.
	other := entry.Other
	if other.GameID == nil && other.BGGID != 0 {
		otherGame, err := r.games.FindByCatalogID(ctx, householdID, other.BGGID)
		if err != nil {
			return result, err
		}
		if otherGame != nil {
			other = otherGame.Reference()
		}
	}

	var existing *models.ExpansionLink
	for i := range *candidates {
		link := &(*candidates)[i]
		if reference.Match(subject, link.Side(subjectSide)) && reference.Match(other, link.Side(otherSide)) {
			existing = link
			break
		}
	}

	if existing == nil {
		link := &models.ExpansionLink{
			HouseholdID: householdID,
			DisplayName: entry.DisplayName,
		}
		if subjectSide == models.LinkSideBase {
			link.BaseGameID = subject.GameID
			link.BaseBGGID = subject.BGGID
			link.ExpansionGameID = other.GameID
			link.ExpansionBGGID = other.BGGID
		} else {
			link.BaseGameID = other.GameID
			link.BaseBGGID = other.BGGID
			link.ExpansionGameID = subject.GameID
			link.ExpansionBGGID = subject.BGGID
		}

		if err := r.links.InsertLink(ctx, link); err != nil {
			return result, err
		}
		*candidates = append(*candidates, *link)
		result.Inserted++

		if err := r.emitter.EmitLinkCreated(ctx, link); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("Link created but event emission failed")
		}
		return result, nil
	}

	if existing.IsComplete() {
		result.Skipped++
		return result, nil
	}

	pendingSide, _ := existing.PendingSide()

	var resolvedID *int64
	switch pendingSide {
	case subjectSide:
		resolvedID = subject.GameID
	case otherSide:
		resolvedID = other.GameID
	}

	if resolvedID == nil {
		// Still waiting for the pending game to be imported
		result.Skipped++
		return result, nil
	}

	if err := r.links.PatchLinkSide(ctx, householdID, existing.ID, pendingSide, *resolvedID); err != nil {
		return result, err
	}
	existing.SetSideGameID(pendingSide, *resolvedID)
	result.Updated++

	if err := r.emitter.EmitLinkCompleted(ctx, existing); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("Link completed but event emission failed")
	}

	return result, nil
}

// ReconcileByCatalogID resolves the household's game for a catalog id,
// fetches its relations from the catalog, and reconciles them. This is the
// only path where the reconciler touches the catalog.
func (r *Reconciler) ReconcileByCatalogID(ctx context.Context, householdID string, bggID int64) (models.ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Reconciler.ReconcileByCatalogID")
	defer span.End()

	var result models.ReconcileResult

	if bggID == 0 {
		return result, httperror.NewHTTPError(http.StatusBadRequest, "catalog id 0 is not a valid lookup")
	}

	game, err := r.games.FindByCatalogID(ctx, householdID, bggID)
	if err != nil {
		return result, err
	}
	if game == nil {
		return result, httperror.NewHTTPErrorf(http.StatusNotFound, "no game with catalog id %d", bggID)
	}

	entries, err := r.catalog.FetchRelations(ctx, bggID)
	if err != nil {
		return result, err
	}

	return r.Reconcile(ctx, householdID, game.Reference(), entries)
}
