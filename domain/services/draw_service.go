package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"raffler/domain/entities"
)

// FilterEligible returns the entrants that satisfy the raffle's tenure and
// role constraints. Order is preserved. Pure, no I/O.
func FilterEligible(raffle *entities.Raffle, entrants []*entities.Entrant, now time.Time) []*entities.Entrant {
	eligible := make([]*entities.Entrant, 0, len(entrants))
	for _, e := range entrants {
		if raffle.Admits(e, now) {
			eligible = append(eligible, e)
		}
	}
	return eligible
}

// SelectWinners draws a uniform random sample without replacement of
// min(count, len(eligible)) entrants. An empty eligible set yields an
// empty result rather than an error; the caller reports "no valid
// entries". The input slice is not modified.
func SelectWinners(eligible []*entities.Entrant, count int) ([]*entities.Entrant, error) {
	if count < 0 {
		count = 0
	}
	if count > len(eligible) {
		count = len(eligible)
	}
	if count == 0 {
		return []*entities.Entrant{}, nil
	}

	pool := make([]*entities.Entrant, len(eligible))
	copy(pool, eligible)

	// Partial Fisher-Yates over the first count positions
	for i := 0; i < count; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool)-i)))
		if err != nil {
			return nil, fmt.Errorf("failed to draw random index: %w", err)
		}
		j := i + int(n.Int64())
		pool[i], pool[j] = pool[j], pool[i]
	}

	return pool[:count], nil
}

// RunDraw filters entrants through the raffle's constraints and samples
// the raffle's winner count from the admitted set.
func RunDraw(raffle *entities.Raffle, entrants []*entities.Entrant, now time.Time) ([]*entities.Entrant, error) {
	eligible := FilterEligible(raffle, entrants, now)
	return SelectWinners(eligible, raffle.WinnerCount)
}
