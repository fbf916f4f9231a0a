package repository

import (
	"context"
	"testing"
	"time"

	"raffler/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitMakesChangesVisible(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := NewUnitOfWorkFactory(testDB.DB)

	uow := factory.CreateForGuild(100)
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.RaffleRepository().Create(ctx, mustRaffle(t, 100, 200, 700, "Committed raffle", time.Hour, nil)))
	require.NoError(t, uow.Commit())

	reader := factory.CreateForGuild(100)
	require.NoError(t, reader.Begin(ctx))
	defer reader.Rollback()

	raffle, err := reader.RaffleRepository().GetByMessageID(ctx, 700)
	require.NoError(t, err)
	require.NotNil(t, raffle)
	assert.Equal(t, "Committed raffle", raffle.Title)
}

func TestUnitOfWork_RollbackDiscardsChanges(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := NewUnitOfWorkFactory(testDB.DB)

	uow := factory.CreateForGuild(100)
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.RaffleRepository().Create(ctx, mustRaffle(t, 100, 200, 701, "Discarded raffle", time.Hour, nil)))
	require.NoError(t, uow.Rollback())

	reader := factory.CreateForGuild(100)
	require.NoError(t, reader.Begin(ctx))
	defer reader.Rollback()

	raffle, err := reader.RaffleRepository().GetByMessageID(ctx, 701)
	require.NoError(t, err)
	assert.Nil(t, raffle)
}

func TestUnitOfWork_RequiresBegin(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	factory := NewUnitOfWorkFactory(testDB.DB)
	uow := factory.CreateForGuild(100)

	assert.Panics(t, func() {
		uow.RaffleRepository()
	})
}
