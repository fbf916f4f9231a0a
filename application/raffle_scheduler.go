package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"raffler/domain/entities"

	log "github.com/sirupsen/logrus"
)

// RaffleScheduler owns one suspended timer per active raffle. Timers are
// fire-and-forget: cancellation never reaches into a sleeping timer, it
// removes the record instead, and the timer's wake-time existence check
// (inside RaffleConcluder.Conclude) turns the fire into a no-op.
type RaffleScheduler struct {
	uowFactory UnitOfWorkFactory
	concluder  *RaffleConcluder

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRaffleScheduler creates a new raffle scheduler
func NewRaffleScheduler(uowFactory UnitOfWorkFactory, concluder *RaffleConcluder) *RaffleScheduler {
	return &RaffleScheduler{
		uowFactory: uowFactory,
		concluder:  concluder,
		stopChan:   make(chan struct{}),
	}
}

// Start runs the recovery pass and returns a cleanup function. Timers
// abandoned by the cleanup are safe to drop: a wake against a closed
// store, or against a record someone else already deleted, does nothing.
func (s *RaffleScheduler) Start(ctx context.Context) func() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.RecoverAll(ctx); err != nil {
			log.Errorf("Raffle recovery pass failed: %v", err)
		}
	}()

	return func() {
		s.stopOnce.Do(func() {
			close(s.stopChan)
		})
	}
}

// RecoverAll reconciles every persisted raffle against the current time.
// Overdue raffles are torn down immediately and pending ones get a fresh
// timer for the remaining wait. Every raffle is armed in its own
// goroutine so that a pile of simultaneously-expired raffles cannot delay
// one another.
func (s *RaffleScheduler) RecoverAll(ctx context.Context) error {
	uow := s.uowFactory.CreateForGuild(0) // cross-guild query
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	raffles, err := uow.RaffleRepository().GetAll(ctx)
	uow.Rollback()
	if err != nil {
		return fmt.Errorf("failed to load persisted raffles: %w", err)
	}

	if len(raffles) == 0 {
		log.Info("No persisted raffles to recover")
		return nil
	}

	now := time.Now()
	overdue := 0
	for _, raffle := range raffles {
		if raffle.IsExpired(now) {
			overdue++
		}
		s.Schedule(ctx, raffle)
	}

	log.WithFields(log.Fields{
		"recovered": len(raffles),
		"overdue":   overdue,
	}).Info("Raffle recovery pass complete")

	return nil
}

// Schedule arms one timer for the raffle's remaining wait. A raffle whose
// deadline already passed is concluded immediately, still on its own
// goroutine.
func (s *RaffleScheduler) Schedule(ctx context.Context, raffle *entities.Raffle) {
	remaining := raffle.Remaining(time.Now())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runTimer(ctx, raffle, remaining)
	}()
}

// Wait blocks until all timer goroutines have exited. Test hook.
func (s *RaffleScheduler) Wait() {
	s.wg.Wait()
}

func (s *RaffleScheduler) runTimer(ctx context.Context, raffle *entities.Raffle, remaining time.Duration) {
	if remaining > 0 {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-time.After(remaining):
		}
	}

	// Conclude re-checks that the record still exists before drawing; a
	// cancelled or manually ended raffle exits here silently.
	result, err := s.concluder.Conclude(ctx, raffle.GuildID, raffle.MessageID)
	if err != nil {
		// One failing raffle must not take down its siblings
		log.WithFields(log.Fields{
			"guild_id":   raffle.GuildID,
			"message_id": raffle.MessageID,
		}).Errorf("Scheduled raffle teardown failed: %v", err)
		return
	}

	if result.Outcome == OutcomeAlreadyHandled {
		log.WithFields(log.Fields{
			"guild_id":   raffle.GuildID,
			"message_id": raffle.MessageID,
		}).Debug("Raffle already handled before timer fired")
	}
}
