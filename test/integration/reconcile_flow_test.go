package integration

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/meeplestash/pkg/models"
	"github.com/Ramsey-B/meeplestash/pkg/reconcile"
	"github.com/Ramsey-B/meeplestash/pkg/reference"
)

const household = "test-household"

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// memoryStore backs both reconciler store interfaces for flow tests
type memoryStore struct {
	games      map[int64]*models.Game // keyed by catalog id
	links      []models.ExpansionLink
	nextGameID int64
	nextLinkID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{games: map[int64]*models.Game{}}
}

func (m *memoryStore) importGame(bggID int64, name string) *models.Game {
	m.nextGameID++
	game := &models.Game{
		ID:          m.nextGameID,
		HouseholdID: household,
		BGGID:       bggID,
		Name:        name,
	}
	m.games[bggID] = game
	return game
}

func (m *memoryStore) FindByCatalogID(_ context.Context, householdID string, bggID int64) (*models.Game, error) {
	if bggID == 0 {
		return nil, nil
	}
	game, ok := m.games[bggID]
	if !ok || game.HouseholdID != householdID {
		return nil, nil
	}
	return game, nil
}

func (m *memoryStore) FindCandidateLinks(_ context.Context, householdID string, ref models.GameReference) ([]models.ExpansionLink, error) {
	matches := []models.ExpansionLink{}
	for _, link := range m.links {
		if link.HouseholdID != householdID {
			continue
		}
		if reference.Match(ref, link.Base()) || reference.Match(ref, link.Expansion()) {
			matches = append(matches, link)
		}
	}
	return matches, nil
}

func (m *memoryStore) InsertLink(_ context.Context, link *models.ExpansionLink) error {
	m.nextLinkID++
	link.ID = m.nextLinkID
	link.CreatedAt = time.Now().UTC()
	link.UpdatedAt = link.CreatedAt
	m.links = append(m.links, *link)
	return nil
}

func (m *memoryStore) PatchLinkSide(_ context.Context, householdID string, linkID int64, side models.LinkSide, gameID int64) error {
	for i := range m.links {
		link := &m.links[i]
		if link.ID != linkID || link.HouseholdID != householdID {
			continue
		}
		if link.Side(side).GameID == nil {
			link.SetSideGameID(side, gameID)
		}
		return nil
	}
	return nil
}

func (m *memoryStore) completeLinks() int {
	count := 0
	for _, link := range m.links {
		if link.IsComplete() {
			count++
		}
	}
	return count
}

type staticCatalog struct {
	relations map[int64][]models.RelationEntry
}

func (c *staticCatalog) FetchRelations(_ context.Context, bggID int64) ([]models.RelationEntry, error) {
	return c.relations[bggID], nil
}

// TestImportFlow drives the full lifecycle: a base game's reconcile pass
// leaves pending links, importing an expansion completes its link from the
// expansion's own catalog entry, and replays converge to all-skipped.
func TestImportFlow(t *testing.T) {
	store := newMemoryStore()
	catalog := &staticCatalog{relations: map[int64][]models.RelationEntry{
		13: {
			{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.CatalogRef(926)},
			{ExpandsSubject: true, DisplayName: "CATAN: Cities & Knights", Other: models.CatalogRef(325)},
		},
		926: {
			{ExpandsSubject: false, DisplayName: "CATAN", Other: models.CatalogRef(13)},
		},
	}}
	r := reconcile.NewReconciler(noopLogger(), store, store, catalog, nil)
	ctx := context.Background()

	// import the base game and reconcile its relations
	catan := store.importGame(13, "CATAN")
	result, err := r.ReconcileByCatalogID(ctx, household, 13)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Inserted: 2}, result)
	assert.Len(t, store.links, 2)
	assert.Zero(t, store.completeLinks(), "both expansions are still pending")

	// import one expansion; its own reconcile pass completes the shared link
	seafarers := store.importGame(926, "CATAN: Seafarers")
	result, err = r.ReconcileByCatalogID(ctx, household, 926)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Updated: 1}, result)
	assert.Equal(t, 1, store.completeLinks())

	// the completed link points at both imported games, oriented base->expansion
	var completed *models.ExpansionLink
	for i := range store.links {
		if store.links[i].IsComplete() {
			completed = &store.links[i]
		}
	}
	require.NotNil(t, completed)
	assert.Equal(t, catan.ID, *completed.BaseGameID)
	assert.Equal(t, seafarers.ID, *completed.ExpansionGameID)

	// replaying the base game converges: complete link skips, the other
	// expansion is still unimported and skips too
	result, err = r.ReconcileByCatalogID(ctx, household, 13)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Skipped: 2}, result)
	assert.Len(t, store.links, 2, "no duplicate links on replay")
}

// TestImportOrderIndependence checks the graph converges to the same state
// regardless of which game is imported first.
func TestImportOrderIndependence(t *testing.T) {
	relations := map[int64][]models.RelationEntry{
		13:  {{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.CatalogRef(926)}},
		926: {{ExpandsSubject: false, DisplayName: "CATAN", Other: models.CatalogRef(13)}},
	}

	// expansion first
	store := newMemoryStore()
	r := reconcile.NewReconciler(noopLogger(), store, store, &staticCatalog{relations: relations}, nil)
	ctx := context.Background()

	store.importGame(926, "CATAN: Seafarers")
	result, err := r.ReconcileByCatalogID(ctx, household, 926)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Inserted: 1}, result)

	store.importGame(13, "CATAN")
	result, err = r.ReconcileByCatalogID(ctx, household, 13)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Updated: 1}, result)

	require.Len(t, store.links, 1)
	link := store.links[0]
	require.True(t, link.IsComplete())
	assert.Equal(t, int64(13), link.BaseBGGID)
	assert.Equal(t, int64(926), link.ExpansionBGGID)
}
