package expansionlink_test

import (
	"context"
	"os"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/meeplestash/internal/repositories/expansionlink"
	gamerepo "github.com/Ramsey-B/meeplestash/internal/repositories/game"
	"github.com/Ramsey-B/meeplestash/pkg/database"
	"github.com/Ramsey-B/meeplestash/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "meeplestash"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewDatabaseInstance(db, getTestLogger())
}

func TestExpansionLinkRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	games := gamerepo.NewRepository(db, logger)
	links := expansionlink.NewRepository(db, logger)

	// fresh household per run keeps tests isolated without cleanup
	household := uuid.NewString()
	ctx := context.Background()

	base, err := games.Create(ctx, household, models.CreateGameRequest{Name: "CATAN", BGGID: 13})
	require.NoError(t, err)

	// pending link: the expansion hasn't been imported yet
	pending := &models.ExpansionLink{
		HouseholdID: household,
		BaseGameID:  &base.ID,
		BaseBGGID:   base.BGGID,
		// expansion side known only by catalog id
		ExpansionBGGID: 926,
		DisplayName:    "CATAN: Seafarers",
	}
	require.NoError(t, links.InsertLink(ctx, pending))
	assert.NotZero(t, pending.ID)
	assert.False(t, pending.IsComplete())

	t.Run("candidates match on either side", func(t *testing.T) {
		byBase, err := links.FindCandidateLinks(ctx, household, base.Reference())
		require.NoError(t, err)
		require.Len(t, byBase, 1)
		assert.Equal(t, pending.ID, byBase[0].ID)

		byExpansionBGG, err := links.FindCandidateLinks(ctx, household, models.CatalogRef(926))
		require.NoError(t, err)
		require.Len(t, byExpansionBGG, 1)
		assert.Equal(t, pending.ID, byExpansionBGG[0].ID)
	})

	t.Run("pending side shows the stored display name", func(t *testing.T) {
		relations, err := links.ListRelations(ctx, household, base.ID)
		require.NoError(t, err)
		require.Len(t, relations.ExpandedBy, 1)
		assert.Nil(t, relations.ExpandedBy[0].GameID)
		assert.Equal(t, int64(926), relations.ExpandedBy[0].BGGID)
		assert.Equal(t, "CATAN: Seafarers", relations.ExpandedBy[0].DisplayName)
		assert.Empty(t, relations.Expands)
	})

	expansion, err := games.Create(ctx, household, models.CreateGameRequest{Name: "Seafarers (2nd printing)", BGGID: 926})
	require.NoError(t, err)

	t.Run("patch completes the pending side once", func(t *testing.T) {
		require.NoError(t, links.PatchLinkSide(ctx, household, pending.ID, models.LinkSideExpansion, expansion.ID))

		link, err := links.Get(ctx, household, pending.ID)
		require.NoError(t, err)
		require.True(t, link.IsComplete())
		assert.Equal(t, expansion.ID, *link.ExpansionGameID)

		// second patch is a no-op, not an overwrite
		require.NoError(t, links.PatchLinkSide(ctx, household, pending.ID, models.LinkSideExpansion, base.ID))
		link, err = links.Get(ctx, household, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, expansion.ID, *link.ExpansionGameID)
	})

	t.Run("listing is symmetric and uses live names", func(t *testing.T) {
		baseSide, err := links.ListRelations(ctx, household, base.ID)
		require.NoError(t, err)
		require.Len(t, baseSide.ExpandedBy, 1)
		require.NotNil(t, baseSide.ExpandedBy[0].GameID)
		assert.Equal(t, expansion.ID, *baseSide.ExpandedBy[0].GameID)
		assert.Equal(t, "Seafarers (2nd printing)", baseSide.ExpandedBy[0].DisplayName, "completed side uses the game's current name")

		expansionSide, err := links.ListRelations(ctx, household, expansion.ID)
		require.NoError(t, err)
		require.Len(t, expansionSide.Expands, 1)
		require.NotNil(t, expansionSide.Expands[0].GameID)
		assert.Equal(t, base.ID, *expansionSide.Expands[0].GameID)
		assert.Equal(t, "CATAN", expansionSide.Expands[0].DisplayName)
		assert.Empty(t, expansionSide.ExpandedBy, "expansion has no expansions of its own")
	})

	t.Run("other households see nothing", func(t *testing.T) {
		relations, err := links.ListRelations(ctx, uuid.NewString(), base.ID)
		require.NoError(t, err)
		assert.Empty(t, relations.ExpandedBy)
		assert.Empty(t, relations.Expands)
	})
}
