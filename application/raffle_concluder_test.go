package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"raffler/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRaffle(t *testing.T, factory UnitOfWorkFactory, raffle *entities.Raffle) {
	t.Helper()
	uow := factory.CreateForGuild(raffle.GuildID)
	require.NoError(t, uow.Begin(context.Background()))
	require.NoError(t, uow.RaffleRepository().Create(context.Background(), raffle))
	require.NoError(t, uow.Commit())
}

func getRaffle(t *testing.T, factory UnitOfWorkFactory, guildID, messageID int64) *entities.Raffle {
	t.Helper()
	uow := factory.CreateForGuild(guildID)
	require.NoError(t, uow.Begin(context.Background()))
	defer uow.Rollback()
	raffle, err := uow.RaffleRepository().GetByMessageID(context.Background(), messageID)
	require.NoError(t, err)
	return raffle
}

func activeRaffle(t *testing.T, guildID, messageID int64, opts ...func(*entities.Raffle)) *entities.Raffle {
	t.Helper()
	raffle, err := entities.NewRaffle(guildID, 500, messageID, "Test raffle", "react to enter", time.Hour, 1, 0, nil, time.Now())
	require.NoError(t, err)
	for _, opt := range opts {
		opt(raffle)
	}
	return raffle
}

func TestConclude_DrawsWinnersAndDeletesRecord(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Entrants: []*entities.Entrant{
		{UserID: 11, Username: "alice", JoinedAt: time.Now().Add(-48 * time.Hour)},
		{UserID: 22, Username: "bob", JoinedAt: time.Now().Add(-48 * time.Hour)},
	}}
	poster := &RecordingPoster{}
	concluder := NewRaffleConcluder(factory, collector, poster)

	raffle := activeRaffle(t, 1, 1000)
	seedRaffle(t, factory, raffle)

	result, err := concluder.Conclude(context.Background(), 1, 1000)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDrawn, result.Outcome)
	require.Len(t, result.Winners, 1)
	assert.Contains(t, []int64{11, 22}, result.Winners[0].UserID)

	assert.Nil(t, getRaffle(t, factory, 1, 1000), "record should be deleted after the draw")

	winners, noEntries, failures := poster.Counts()
	assert.Equal(t, 1, winners)
	assert.Zero(t, noEntries)
	assert.Zero(t, failures)
}

func TestConclude_SecondCallIsNoOp(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Entrants: []*entities.Entrant{
		{UserID: 11, JoinedAt: time.Now().Add(-time.Hour)},
	}}
	poster := &RecordingPoster{}
	concluder := NewRaffleConcluder(factory, collector, poster)

	seedRaffle(t, factory, activeRaffle(t, 1, 1000))

	first, err := concluder.Conclude(context.Background(), 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDrawn, first.Outcome)

	second, err := concluder.Conclude(context.Background(), 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyHandled, second.Outcome)

	winners, _, _ := poster.Counts()
	assert.Equal(t, 1, winners, "no duplicate announcement on repeat teardown")
}

func TestConclude_AnnouncementGoneStillDeletes(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Err: ErrAnnouncementMissing}
	poster := &RecordingPoster{}
	concluder := NewRaffleConcluder(factory, collector, poster)

	seedRaffle(t, factory, activeRaffle(t, 1, 1000))

	result, err := concluder.Conclude(context.Background(), 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnnouncementGone, result.Outcome)

	// Cleanup proceeds even though the draw could not happen
	assert.Nil(t, getRaffle(t, factory, 1, 1000))

	_, _, failures := poster.Counts()
	assert.Equal(t, 1, failures)
}

func TestConclude_NoEntryReaction(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Err: ErrNoEntryReaction}
	poster := &RecordingPoster{}
	concluder := NewRaffleConcluder(factory, collector, poster)

	seedRaffle(t, factory, activeRaffle(t, 1, 1000))

	result, err := concluder.Conclude(context.Background(), 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoValidEntries, result.Outcome)
	assert.Nil(t, getRaffle(t, factory, 1, 1000))

	_, noEntries, _ := poster.Counts()
	assert.Equal(t, 1, noEntries)
}

func TestConclude_NoEligibleEntrants(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	// Everyone joined yesterday; raffle requires a week of tenure
	collector := &FakeEntryCollector{Entrants: []*entities.Entrant{
		{UserID: 11, JoinedAt: time.Now().Add(-24 * time.Hour)},
	}}
	poster := &RecordingPoster{}
	concluder := NewRaffleConcluder(factory, collector, poster)

	raffle := activeRaffle(t, 1, 1000, func(r *entities.Raffle) { r.MinServerDays = 7 })
	seedRaffle(t, factory, raffle)

	result, err := concluder.Conclude(context.Background(), 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoValidEntries, result.Outcome)
	assert.Empty(t, result.Winners)
	assert.Nil(t, getRaffle(t, factory, 1, 1000))
}

func TestConclude_TransientCollectorErrorKeepsRecord(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Err: errors.New("api unavailable")}
	poster := &RecordingPoster{}
	concluder := NewRaffleConcluder(factory, collector, poster)

	seedRaffle(t, factory, activeRaffle(t, 1, 1000))

	_, err := concluder.Conclude(context.Background(), 1, 1000)
	require.Error(t, err)

	// Record survives so a manual end can retry
	assert.NotNil(t, getRaffle(t, factory, 1, 1000))
}

func TestReroll_UsesStoredConstraints(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Entrants: []*entities.Entrant{
		{UserID: 11, JoinedAt: time.Now().Add(-time.Hour), RoleIDs: []int64{7}},
		{UserID: 22, JoinedAt: time.Now().Add(-time.Hour), RoleIDs: []int64{8}},
	}}
	concluder := NewRaffleConcluder(factory, collector, &RecordingPoster{})

	raffle := activeRaffle(t, 1, 1000, func(r *entities.Raffle) { r.AllowedRoleIDs = []int64{7} })
	seedRaffle(t, factory, raffle)

	winners, err := concluder.Reroll(context.Background(), 1, 500, 1000, 1)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, int64(11), winners[0].UserID)

	// Reroll never deletes
	assert.NotNil(t, getRaffle(t, factory, 1, 1000))
}

func TestReroll_WithoutRecordIsUnconstrained(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Entrants: []*entities.Entrant{
		{UserID: 11, JoinedAt: time.Now()},
		{UserID: 22, JoinedAt: time.Now()},
		{UserID: 33, JoinedAt: time.Now()},
	}}
	concluder := NewRaffleConcluder(factory, collector, &RecordingPoster{})

	winners, err := concluder.Reroll(context.Background(), 1, 500, 9999, 2)
	require.NoError(t, err)
	assert.Len(t, winners, 2)
}

func TestReroll_PropagatesCollectorErrors(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Err: ErrAnnouncementMissing}
	concluder := NewRaffleConcluder(factory, collector, &RecordingPoster{})

	_, err := concluder.Reroll(context.Background(), 1, 500, 9999, 1)
	assert.ErrorIs(t, err, ErrAnnouncementMissing)
}
