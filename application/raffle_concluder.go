package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raffler/domain/entities"
	"raffler/domain/services"

	log "github.com/sirupsen/logrus"
)

// ConcludeOutcome describes how a teardown attempt finished
type ConcludeOutcome int

const (
	// OutcomeAlreadyHandled means the record was gone at teardown time:
	// the raffle was cancelled, manually ended, or drawn by a concurrent
	// trigger. Not an error.
	OutcomeAlreadyHandled ConcludeOutcome = iota

	// OutcomeDrawn means winners were selected and announced
	OutcomeDrawn

	// OutcomeNoValidEntries means nobody entered or nobody passed the
	// eligibility constraints
	OutcomeNoValidEntries

	// OutcomeAnnouncementGone means the announcement message was deleted
	// externally; the record was still cleaned up
	OutcomeAnnouncementGone
)

// ConcludeResult reports the outcome of one teardown
type ConcludeResult struct {
	Outcome ConcludeOutcome
	Raffle  *entities.Raffle
	Winners []*entities.Entrant
}

// RaffleConcluder owns the teardown algorithm shared by timer fires,
// manual ends, and rerolls: collect entrants, filter, select winners,
// announce, and delete the record.
type RaffleConcluder struct {
	uowFactory UnitOfWorkFactory
	collector  EntryCollector
	poster     RafflePoster
}

// NewRaffleConcluder creates a new raffle concluder
func NewRaffleConcluder(uowFactory UnitOfWorkFactory, collector EntryCollector, poster RafflePoster) *RaffleConcluder {
	return &RaffleConcluder{
		uowFactory: uowFactory,
		collector:  collector,
		poster:     poster,
	}
}

// Conclude tears down one raffle. The record is loaded with a row lock so
// that a manual end and a timer fire racing at the same instant serialize;
// the loser of the race observes a missing record and exits without
// drawing. The record is deleted and committed before any announcement is
// posted, so a reporting failure can never leave a raffle stuck in the
// store.
func (c *RaffleConcluder) Conclude(ctx context.Context, guildID, messageID int64) (*ConcludeResult, error) {
	uow := c.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	raffle, err := uow.RaffleRepository().GetByMessageIDForUpdate(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load raffle %d: %w", messageID, err)
	}
	if raffle == nil {
		// Cancelled, ended manually, or already handled by another trigger
		return &ConcludeResult{Outcome: OutcomeAlreadyHandled}, nil
	}

	result := &ConcludeResult{Raffle: raffle}

	entrants, err := c.collector.Collect(ctx, raffle.GuildID, raffle.ChannelID, raffle.MessageID)
	switch {
	case errors.Is(err, ErrAnnouncementMissing):
		result.Outcome = OutcomeAnnouncementGone
	case errors.Is(err, ErrNoEntryReaction):
		result.Outcome = OutcomeNoValidEntries
	case err != nil:
		// Transient failure (API outage etc): keep the record so a manual
		// end can retry the draw
		return nil, fmt.Errorf("failed to collect entrants for raffle %d: %w", messageID, err)
	default:
		winners, drawErr := services.RunDraw(raffle, entrants, time.Now())
		if drawErr != nil {
			return nil, fmt.Errorf("failed to draw winners for raffle %d: %w", messageID, drawErr)
		}
		if len(winners) == 0 {
			result.Outcome = OutcomeNoValidEntries
		} else {
			result.Outcome = OutcomeDrawn
			result.Winners = winners
		}
	}

	if err := uow.RaffleRepository().Delete(ctx, messageID); err != nil {
		return nil, fmt.Errorf("failed to delete raffle %d: %w", messageID, err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit raffle teardown: %w", err)
	}

	c.announce(ctx, result)

	log.WithFields(log.Fields{
		"guild_id":     raffle.GuildID,
		"message_id":   raffle.MessageID,
		"title":        raffle.Title,
		"outcome":      result.Outcome,
		"winner_count": len(result.Winners),
	}).Info("Raffle concluded")

	return result, nil
}

// Reroll re-runs the draw against a message's current reactions. The
// raffle may be long gone from the store; when the record still exists its
// constraints apply, otherwise the draw is unconstrained with the given
// winner count. Nothing is deleted.
func (c *RaffleConcluder) Reroll(ctx context.Context, guildID, channelID, messageID int64, winnerCount int) ([]*entities.Entrant, error) {
	raffle, err := c.lookupRaffle(ctx, guildID, messageID)
	if err != nil {
		return nil, err
	}
	if raffle == nil {
		raffle = &entities.Raffle{
			GuildID:     guildID,
			ChannelID:   channelID,
			MessageID:   messageID,
			WinnerCount: winnerCount,
		}
	}

	entrants, err := c.collector.Collect(ctx, guildID, channelID, messageID)
	if err != nil {
		return nil, err
	}

	return services.RunDraw(raffle, entrants, time.Now())
}

func (c *RaffleConcluder) lookupRaffle(ctx context.Context, guildID, messageID int64) (*entities.Raffle, error) {
	uow := c.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	raffle, err := uow.RaffleRepository().GetByMessageID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load raffle %d: %w", messageID, err)
	}
	return raffle, nil
}

// announce posts the teardown outcome. Announcement failures are logged
// only; the record is already deleted at this point.
func (c *RaffleConcluder) announce(ctx context.Context, result *ConcludeResult) {
	var err error
	switch result.Outcome {
	case OutcomeDrawn:
		err = c.poster.PostWinners(ctx, result.Raffle, result.Winners)
	case OutcomeNoValidEntries:
		err = c.poster.PostNoValidEntries(ctx, result.Raffle)
	case OutcomeAnnouncementGone:
		err = c.poster.PostDrawFailure(ctx, result.Raffle)
	}
	if err != nil {
		log.WithFields(log.Fields{
			"guild_id":   result.Raffle.GuildID,
			"message_id": result.Raffle.MessageID,
		}).Errorf("Failed to announce raffle outcome: %v", err)
	}
}
