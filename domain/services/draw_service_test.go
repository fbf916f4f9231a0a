package services

import (
	"testing"
	"time"

	"raffler/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEntrants(ids ...int64) []*entities.Entrant {
	entrants := make([]*entities.Entrant, 0, len(ids))
	for _, id := range ids {
		entrants = append(entrants, &entities.Entrant{
			UserID:   id,
			JoinedAt: time.Now().Add(-365 * 24 * time.Hour),
		})
	}
	return entrants
}

func TestSelectWinners_NeverMoreThanEligible(t *testing.T) {
	t.Parallel()

	entrants := makeEntrants(1, 2, 3)

	winners, err := SelectWinners(entrants, 9)
	require.NoError(t, err)
	assert.Len(t, winners, 3)
}

func TestSelectWinners_NoDuplicates(t *testing.T) {
	t.Parallel()

	entrants := makeEntrants(1, 2, 3, 4, 5, 6, 7, 8)

	// Repeated draws to shake out any duplicate selection
	for i := 0; i < 50; i++ {
		winners, err := SelectWinners(entrants, 5)
		require.NoError(t, err)
		require.Len(t, winners, 5)

		seen := make(map[int64]bool, len(winners))
		for _, w := range winners {
			assert.False(t, seen[w.UserID], "entrant %d selected twice", w.UserID)
			seen[w.UserID] = true
		}
	}
}

func TestSelectWinners_EmptyEligibleSet(t *testing.T) {
	t.Parallel()

	winners, err := SelectWinners(nil, 3)
	require.NoError(t, err)
	assert.Empty(t, winners)
}

func TestSelectWinners_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	entrants := makeEntrants(1, 2, 3, 4)
	original := make([]*entities.Entrant, len(entrants))
	copy(original, entrants)

	_, err := SelectWinners(entrants, 2)
	require.NoError(t, err)
	assert.Equal(t, original, entrants)
}

func TestSelectWinners_EveryEntrantCanWin(t *testing.T) {
	t.Parallel()

	entrants := makeEntrants(1, 2)
	seen := make(map[int64]int)
	for i := 0; i < 200; i++ {
		winners, err := SelectWinners(entrants, 1)
		require.NoError(t, err)
		require.Len(t, winners, 1)
		seen[winners[0].UserID]++
	}

	// With 200 draws over two entrants, both should have won at least once
	assert.Positive(t, seen[1])
	assert.Positive(t, seen[2])
}

func TestFilterEligible(t *testing.T) {
	t.Parallel()

	now := time.Now()
	raffle := &entities.Raffle{
		MinServerDays:  7,
		AllowedRoleIDs: []int64{10},
	}

	entrants := []*entities.Entrant{
		{UserID: 1, JoinedAt: now.Add(-30 * 24 * time.Hour), RoleIDs: []int64{10}}, // passes both
		{UserID: 2, JoinedAt: now.Add(-2 * 24 * time.Hour), RoleIDs: []int64{10}},  // too new
		{UserID: 3, JoinedAt: now.Add(-30 * 24 * time.Hour), RoleIDs: []int64{20}}, // wrong role
	}

	eligible := FilterEligible(raffle, entrants, now)
	require.Len(t, eligible, 1)
	assert.Equal(t, int64(1), eligible[0].UserID)
}

func TestRunDraw_ConstrainedDraw(t *testing.T) {
	t.Parallel()

	now := time.Now()
	raffle := &entities.Raffle{WinnerCount: 2, MinServerDays: 7}

	entrants := []*entities.Entrant{
		{UserID: 1, JoinedAt: now.Add(-10 * 24 * time.Hour)},
		{UserID: 2, JoinedAt: now.Add(-1 * 24 * time.Hour)}, // excluded by tenure
		{UserID: 3, JoinedAt: now.Add(-20 * 24 * time.Hour)},
	}

	winners, err := RunDraw(raffle, entrants, now)
	require.NoError(t, err)
	require.Len(t, winners, 2)
	for _, w := range winners {
		assert.NotEqual(t, int64(2), w.UserID)
	}
}

func TestRunDraw_NoEligibleEntrants(t *testing.T) {
	t.Parallel()

	now := time.Now()
	raffle := &entities.Raffle{WinnerCount: 1, MinServerDays: 30}

	entrants := []*entities.Entrant{
		{UserID: 1, JoinedAt: now.Add(-24 * time.Hour)},
	}

	winners, err := RunDraw(raffle, entrants, now)
	require.NoError(t, err)
	assert.Empty(t, winners)
}
