package reconcile

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/meeplestash/pkg/models"
	"github.com/Ramsey-B/meeplestash/pkg/reference"
)

const testHousehold = "hh-1"

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeGameStore struct {
	games     map[int64]*models.Game // keyed by catalog id
	findCalls int
}

func (f *fakeGameStore) FindByCatalogID(_ context.Context, householdID string, bggID int64) (*models.Game, error) {
	f.findCalls++
	if bggID == 0 {
		return nil, nil
	}
	game, ok := f.games[bggID]
	if !ok || game.HouseholdID != householdID {
		return nil, nil
	}
	return game, nil
}

type fakeLinkStore struct {
	links       []models.ExpansionLink
	nextID      int64
	findCalls   int
	insertCalls int
	patchCalls  int
}

func (f *fakeLinkStore) FindCandidateLinks(_ context.Context, householdID string, ref models.GameReference) ([]models.ExpansionLink, error) {
	f.findCalls++
	matches := []models.ExpansionLink{}
	for _, link := range f.links {
		if link.HouseholdID != householdID {
			continue
		}
		if reference.Match(ref, link.Base()) || reference.Match(ref, link.Expansion()) {
			matches = append(matches, link)
		}
	}
	return matches, nil
}

func (f *fakeLinkStore) InsertLink(_ context.Context, link *models.ExpansionLink) error {
	f.insertCalls++
	f.nextID++
	link.ID = f.nextID
	link.CreatedAt = time.Now().UTC()
	link.UpdatedAt = link.CreatedAt
	f.links = append(f.links, *link)
	return nil
}

func (f *fakeLinkStore) PatchLinkSide(_ context.Context, householdID string, linkID int64, side models.LinkSide, gameID int64) error {
	f.patchCalls++
	for i := range f.links {
		link := &f.links[i]
		if link.ID != linkID || link.HouseholdID != householdID {
			continue
		}
		if _, pending := link.PendingSide(); pending {
			link.SetSideGameID(side, gameID)
		}
		return nil
	}
	return nil
}

func (f *fakeLinkStore) get(id int64) *models.ExpansionLink {
	for i := range f.links {
		if f.links[i].ID == id {
			return &f.links[i]
		}
	}
	return nil
}

type fakeCatalog struct {
	relations map[int64][]models.RelationEntry
	err       error
}

func (f *fakeCatalog) FetchRelations(_ context.Context, bggID int64) ([]models.RelationEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.relations[bggID], nil
}

func newGame(id, bggID int64, name string) *models.Game {
	return &models.Game{ID: id, HouseholdID: testHousehold, BGGID: bggID, Name: name}
}

func TestReconcileValidation(t *testing.T) {
	games := &fakeGameStore{games: map[int64]*models.Game{}}
	links := &fakeLinkStore{}
	r := NewReconciler(testLogger(), games, links, &fakeCatalog{}, nil)

	t.Run("subject must be imported", func(t *testing.T) {
		_, err := r.Reconcile(context.Background(), testHousehold, models.CatalogRef(13), nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("ambiguous entry rejects whole batch before any store access", func(t *testing.T) {
		entries := []models.RelationEntry{
			{ExpandsSubject: true, DisplayName: "Fine", Other: models.CatalogRef(926)},
			{ExpandsSubject: true, DisplayName: "Ambiguous", Other: models.GameReference{}},
		}
		_, err := r.Reconcile(context.Background(), testHousehold, newGame(1, 13, "CATAN").Reference(), entries)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
		assert.Zero(t, links.findCalls)
		assert.Zero(t, links.insertCalls)
	})

	t.Run("missing display name is rejected", func(t *testing.T) {
		entries := []models.RelationEntry{
			{ExpandsSubject: true, Other: models.CatalogRef(926)},
		}
		_, err := r.Reconcile(context.Background(), testHousehold, newGame(1, 13, "CATAN").Reference(), entries)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}

func TestReconcileEmptyEntries(t *testing.T) {
	links := &fakeLinkStore{}
	r := NewReconciler(testLogger(), &fakeGameStore{}, links, &fakeCatalog{}, nil)

	result, err := r.Reconcile(context.Background(), testHousehold, newGame(1, 13, "CATAN").Reference(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{}, result)
	assert.Zero(t, links.findCalls, "empty input should not touch the store")
}

func TestReconcileInsertsPendingLink(t *testing.T) {
	games := &fakeGameStore{games: map[int64]*models.Game{}}
	links := &fakeLinkStore{}
	r := NewReconciler(testLogger(), games, links, &fakeCatalog{}, nil)

	subject := newGame(1, 13, "CATAN").Reference()
	entries := []models.RelationEntry{
		{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.CatalogRef(926)},
	}

	result, err := r.Reconcile(context.Background(), testHousehold, subject, entries)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Inserted: 1}, result)

	require.Len(t, links.links, 1)
	link := links.links[0]
	require.NotNil(t, link.BaseGameID)
	assert.Equal(t, int64(1), *link.BaseGameID, "subject is the base when the other game expands it")
	assert.Equal(t, int64(13), link.BaseBGGID)
	assert.Nil(t, link.ExpansionGameID, "far side stays pending until imported")
	assert.Equal(t, int64(926), link.ExpansionBGGID)
	assert.Equal(t, "CATAN: Seafarers", link.DisplayName)
}

func TestReconcileOrientation(t *testing.T) {
	games := &fakeGameStore{games: map[int64]*models.Game{}}
	links := &fakeLinkStore{}
	r := NewReconciler(testLogger(), games, links, &fakeCatalog{}, nil)

	// the subject is an expansion of another game
	subject := newGame(2, 926, "CATAN: Seafarers").Reference()
	entries := []models.RelationEntry{
		{ExpandsSubject: false, DisplayName: "CATAN", Other: models.CatalogRef(13)},
	}

	result, err := r.Reconcile(context.Background(), testHousehold, subject, entries)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Inserted: 1}, result)

	require.Len(t, links.links, 1)
	link := links.links[0]
	assert.Nil(t, link.BaseGameID)
	assert.Equal(t, int64(13), link.BaseBGGID)
	require.NotNil(t, link.ExpansionGameID)
	assert.Equal(t, int64(2), *link.ExpansionGameID, "subject is the expansion side")
}

func TestReconcileResolvesOtherSideOnInsert(t *testing.T) {
	// the far game is already imported, so the new link starts complete
	games := &fakeGameStore{games: map[int64]*models.Game{
		926: newGame(2, 926, "CATAN: Seafarers"),
	}}
	links := &fakeLinkStore{}
	r := NewReconciler(testLogger(), games, links, &fakeCatalog{}, nil)

	subject := newGame(1, 13, "CATAN").Reference()
	entries := []models.RelationEntry{
		{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.CatalogRef(926)},
	}

	result, err := r.Reconcile(context.Background(), testHousehold, subject, entries)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Inserted: 1}, result)

	require.Len(t, links.links, 1)
	assert.True(t, links.links[0].IsComplete())
}

func TestReconcileCompletesPendingOtherSide(t *testing.T) {
	games := &fakeGameStore{games: map[int64]*models.Game{}}
	links := &fakeLinkStore{}
	baseID := int64(1)
	links.nextID = 10
	links.links = []models.ExpansionLink{{
		ID:             11,
		HouseholdID:    testHousehold,
		BaseGameID:     &baseID,
		BaseBGGID:      13,
		ExpansionBGGID: 926,
		DisplayName:    "CATAN: Seafarers",
	}}
	r := NewReconciler(testLogger(), games, links, &fakeCatalog{}, nil)

	// caller knows the expansion's internal id now
	expansionID := int64(2)
	subject := newGame(1, 13, "CATAN").Reference()
	entries := []models.RelationEntry{
		{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.GameReference{GameID: &expansionID, BGGID: 926}},
	}

	result, err := r.Reconcile(context.Background(), testHousehold, subject, entries)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Updated: 1}, result)
	assert.Equal(t, 1, links.patchCalls)
	assert.True(t, links.get(11).IsComplete())
}

func TestReconcileCompletesSubjectSide(t *testing.T) {
	// the link was created by the base game's reconcile pass; the expansion
	// side has only a catalog id. Reconciling as the expansion fills it in.
	games := &fakeGameStore{games: map[int64]*models.Game{}}
	links := &fakeLinkStore{}
	baseID := int64(1)
	links.nextID = 10
	links.links = []models.ExpansionLink{{
		ID:             11,
		HouseholdID:    testHousehold,
		BaseGameID:     &baseID,
		BaseBGGID:      13,
		ExpansionBGGID: 926,
		DisplayName:    "CATAN: Seafarers",
	}}
	r := NewReconciler(testLogger(), games, links, &fakeCatalog{}, nil)

	subject := newGame(2, 926, "CATAN: Seafarers").Reference()
	entries := []models.RelationEntry{
		{ExpandsSubject: false, DisplayName: "CATAN", Other: models.CatalogRef(13)},
	}

	result, err := r.Reconcile(context.Background(), testHousehold, subject, entries)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Updated: 1}, result)

	link := links.get(11)
	require.True(t, link.IsComplete())
	assert.Equal(t, int64(2), *link.ExpansionGameID)
}

func TestReconcileCompletesOtherSideByCatalogLookup(t *testing.T) {
	// the far game was imported since the link went pending; the entry still
	// only carries its catalog id, but the store lookup resolves it
	games := &fakeGameStore{games: map[int64]*models.Game{
		926: newGame(2, 926, "CATAN: Seafarers"),
	}}
	links := &fakeLinkStore{}
	baseID := int64(1)
	links.nextID = 10
	links.links = []models.ExpansionLink{{
		ID:             11,
		HouseholdID:    testHousehold,
		BaseGameID:     &baseID,
		BaseBGGID:      13,
		ExpansionBGGID: 926,
		DisplayName:    "CATAN: Seafarers",
	}}
	r := NewReconciler(testLogger(), games, links, &fakeCatalog{}, nil)

	subject := newGame(1, 13, "CATAN").Reference()
	entries := []models.RelationEntry{
		{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.CatalogRef(926)},
	}

	result, err := r.Reconcile(context.Background(), testHousehold, subject, entries)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Updated: 1}, result)
	assert.True(t, links.get(11).IsComplete())
}

func TestReconcileSkipsWhenOtherSideStillUnknown(t *testing.T) {
	games := &fakeGameStore{games: map[int64]*models.Game{}}
	links := &fakeLinkStore{}
	baseID := int64(1)
	links.nextID = 10
	links.links = []models.ExpansionLink{{
		ID:             11,
		HouseholdID:    testHousehold,
		BaseGameID:     &baseID,
		BaseBGGID:      13,
		ExpansionBGGID: 926,
		DisplayName:    "CATAN: Seafarers",
	}}
	r := NewReconciler(testLogger(), games, links, &fakeCatalog{}, nil)

	subject := newGame(1, 13, "CATAN").Reference()
	entries := []models.RelationEntry{
		{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.CatalogRef(926)},
	}

	result, err := r.Reconcile(context.Background(), testHousehold, subject, entries)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Skipped: 1}, result)
	assert.Zero(t, links.patchCalls)
	assert.False(t, links.get(11).IsComplete())
}

func TestReconcileSkipsCompleteLink(t *testing.T) {
	games := &fakeGameStore{games: map[int64]*models.Game{}}
	links := &fakeLinkStore{}
	baseID, expansionID := int64(1), int64(2)
	links.nextID = 10
	links.links = []models.ExpansionLink{{
		ID:              11,
		HouseholdID:     testHousehold,
		BaseGameID:      &baseID,
		BaseBGGID:       13,
		ExpansionGameID: &expansionID,
		ExpansionBGGID:  926,
		DisplayName:     "CATAN: Seafarers",
	}}
	r := NewReconciler(testLogger(), games, links, &fakeCatalog{}, nil)

	subject := newGame(1, 13, "CATAN").Reference()
	entries := []models.RelationEntry{
		{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.CatalogRef(926)},
	}

	result, err := r.Reconcile(context.Background(), testHousehold, subject, entries)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Skipped: 1}, result)
	assert.Zero(t, links.insertCalls)
	assert.Zero(t, links.patchCalls)
}

func TestReconcileIsIdempotent(t *testing.T) {
	games := &fakeGameStore{games: map[int64]*models.Game{}}
	links := &fakeLinkStore{}
	r := NewReconciler(testLogger(), games, links, &fakeCatalog{}, nil)

	subject := newGame(1, 13, "CATAN").Reference()
	entries := []models.RelationEntry{
		{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.CatalogRef(926)},
		{ExpandsSubject: true, DisplayName: "CATAN: Cities & Knights", Other: models.CatalogRef(325)},
	}

	first, err := r.Reconcile(context.Background(), testHousehold, subject, entries)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Inserted: 2}, first)

	second, err := r.Reconcile(context.Background(), testHousehold, subject, entries)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Skipped: 2}, second)
	assert.Len(t, links.links, 2)
}

func TestReconcileDuplicateEntriesInOneBatch(t *testing.T) {
	games := &fakeGameStore{games: map[int64]*models.Game{}}
	links := &fakeLinkStore{}
	r := NewReconciler(testLogger(), games, links, &fakeCatalog{}, nil)

	subject := newGame(1, 13, "CATAN").Reference()
	entries := []models.RelationEntry{
		{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.CatalogRef(926)},
		{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.CatalogRef(926)},
	}

	result, err := r.Reconcile(context.Background(), testHousehold, subject, entries)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Inserted: 1, Skipped: 1}, result)
	assert.Len(t, links.links, 1)
}

func TestReconcileByCatalogID(t *testing.T) {
	t.Run("unknown catalog id is not found", func(t *testing.T) {
		r := NewReconciler(testLogger(), &fakeGameStore{games: map[int64]*models.Game{}}, &fakeLinkStore{}, &fakeCatalog{}, nil)

		_, err := r.ReconcileByCatalogID(context.Background(), testHousehold, 13)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})

	t.Run("zero catalog id is rejected", func(t *testing.T) {
		r := NewReconciler(testLogger(), &fakeGameStore{games: map[int64]*models.Game{}}, &fakeLinkStore{}, &fakeCatalog{}, nil)

		_, err := r.ReconcileByCatalogID(context.Background(), testHousehold, 0)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("catalog failure surfaces as bad gateway", func(t *testing.T) {
		games := &fakeGameStore{games: map[int64]*models.Game{
			13: newGame(1, 13, "CATAN"),
		}}
		catalog := &fakeCatalog{err: httperror.NewHTTPError(http.StatusBadGateway, "catalog is unavailable")}
		r := NewReconciler(testLogger(), games, &fakeLinkStore{}, catalog, nil)

		_, err := r.ReconcileByCatalogID(context.Background(), testHousehold, 13)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadGateway, httperror.GetStatusCode(err))
	})

	t.Run("reconciles the catalog's relations for the resolved game", func(t *testing.T) {
		games := &fakeGameStore{games: map[int64]*models.Game{
			13: newGame(1, 13, "CATAN"),
		}}
		links := &fakeLinkStore{}
		catalog := &fakeCatalog{relations: map[int64][]models.RelationEntry{
			13: {
				{ExpandsSubject: true, DisplayName: "CATAN: Seafarers", Other: models.CatalogRef(926)},
			},
		}}
		r := NewReconciler(testLogger(), games, links, catalog, nil)

		result, err := r.ReconcileByCatalogID(context.Background(), testHousehold, 13)
		require.NoError(t, err)
		assert.Equal(t, models.ReconcileResult{Inserted: 1}, result)
	})
}
