package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"raffler/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timedRaffle(t *testing.T, guildID, messageID int64, duration time.Duration) *entities.Raffle {
	t.Helper()
	raffle, err := entities.NewRaffle(guildID, 500, messageID, "Timed raffle", "", duration, 1, 0, nil, time.Now())
	require.NoError(t, err)
	return raffle
}

func TestScheduler_TimerFiresAndDraws(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Entrants: []*entities.Entrant{
		{UserID: 11, JoinedAt: time.Now().Add(-time.Hour)},
		{UserID: 22, JoinedAt: time.Now().Add(-time.Hour)},
	}}
	poster := &RecordingPoster{}
	scheduler := NewRaffleScheduler(factory, NewRaffleConcluder(factory, collector, poster))

	raffle := timedRaffle(t, 1, 1000, 60*time.Millisecond)
	seedRaffle(t, factory, raffle)
	scheduler.Schedule(context.Background(), raffle)

	assert.Eventually(t, func() bool {
		winners, _, _ := poster.Counts()
		return winners == 1
	}, 2*time.Second, 10*time.Millisecond, "timer should fire and announce exactly one winner")

	assert.Nil(t, getRaffle(t, factory, 1, 1000))
}

func TestScheduler_CancelledRaffleIsSilentAtWake(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Entrants: []*entities.Entrant{
		{UserID: 11, JoinedAt: time.Now().Add(-time.Hour)},
	}}
	poster := &RecordingPoster{}
	scheduler := NewRaffleScheduler(factory, NewRaffleConcluder(factory, collector, poster))

	raffle := timedRaffle(t, 1, 1000, 80*time.Millisecond)
	seedRaffle(t, factory, raffle)
	scheduler.Schedule(context.Background(), raffle)

	// Cancel well before the deadline by deleting the record; the timer is
	// left sleeping on purpose
	uow := factory.CreateForGuild(1)
	require.NoError(t, uow.Begin(context.Background()))
	require.NoError(t, uow.RaffleRepository().Delete(context.Background(), 1000))
	require.NoError(t, uow.Commit())

	scheduler.Wait()

	winners, noEntries, failures := poster.Counts()
	assert.Zero(t, winners)
	assert.Zero(t, noEntries)
	assert.Zero(t, failures)
	assert.Zero(t, collector.Calls(), "no draw should be attempted for a cancelled raffle")
}

func TestScheduler_RecoverAllConcludesOverdueRaffles(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Entrants: []*entities.Entrant{
		{UserID: 11, JoinedAt: time.Now().Add(-time.Hour)},
	}}
	poster := &RecordingPoster{}
	scheduler := NewRaffleScheduler(factory, NewRaffleConcluder(factory, collector, poster))

	// Three raffles that matured while the process was down, plus one
	// still pending
	for i := int64(0); i < 3; i++ {
		overdue := timedRaffle(t, 1, 2000+i, time.Millisecond)
		overdue.EndAt = time.Now().Add(-time.Minute)
		seedRaffle(t, factory, overdue)
	}
	pending := timedRaffle(t, 1, 3000, time.Hour)
	seedRaffle(t, factory, pending)

	require.NoError(t, scheduler.RecoverAll(context.Background()))

	assert.Eventually(t, func() bool {
		winners, _, _ := poster.Counts()
		return winners == 3
	}, 2*time.Second, 10*time.Millisecond, "all overdue raffles should be torn down during recovery")

	// The pending raffle survived recovery untouched
	assert.NotNil(t, getRaffle(t, factory, 1, 3000))
}

func TestScheduler_ManualEndAndTimerRace(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	collector := &FakeEntryCollector{Entrants: []*entities.Entrant{
		{UserID: 11, JoinedAt: time.Now().Add(-time.Hour)},
	}}
	poster := &RecordingPoster{}
	concluder := NewRaffleConcluder(factory, collector, poster)
	scheduler := NewRaffleScheduler(factory, concluder)

	raffle := timedRaffle(t, 1, 1000, 30*time.Millisecond)
	seedRaffle(t, factory, raffle)
	scheduler.Schedule(context.Background(), raffle)

	// Manual end racing the timer around its deadline
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(25 * time.Millisecond)
		_, err := concluder.Conclude(context.Background(), 1, 1000)
		assert.NoError(t, err)
	}()

	wg.Wait()
	scheduler.Wait()

	winners, _, _ := poster.Counts()
	assert.Equal(t, 1, winners, "exactly one of the two triggers may draw")
	assert.Nil(t, getRaffle(t, factory, 1, 1000))
}

func TestScheduler_StopAbandonsSleepingTimers(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	poster := &RecordingPoster{}
	scheduler := NewRaffleScheduler(factory, NewRaffleConcluder(factory, &FakeEntryCollector{}, poster))

	raffle := timedRaffle(t, 1, 1000, time.Hour)
	seedRaffle(t, factory, raffle)

	stop := scheduler.Start(context.Background())
	scheduler.Schedule(context.Background(), raffle)
	stop()

	done := make(chan struct{})
	go func() {
		scheduler.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not release its timers after stop")
	}

	// The record remains; nothing was drawn
	assert.NotNil(t, getRaffle(t, factory, 1, 1000))
	winners, _, _ := poster.Counts()
	assert.Zero(t, winners)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	factory := NewMemoryUnitOfWorkFactory()
	scheduler := NewRaffleScheduler(factory, NewRaffleConcluder(factory, &FakeEntryCollector{}, &RecordingPoster{}))

	stop := scheduler.Start(context.Background())

	// Shutdown paths can run the cleanup more than once
	assert.NotPanics(t, func() {
		stop()
		stop()
	})
}
