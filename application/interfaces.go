package application

import (
	"context"
	"errors"

	"raffler/domain/entities"
)

var (
	// ErrAnnouncementMissing is returned by EntryCollector when the raffle
	// announcement message was deleted externally
	ErrAnnouncementMissing = errors.New("raffle announcement message not found")

	// ErrNoEntryReaction is returned by EntryCollector when nobody attached
	// the entry reaction to the announcement message. Distinct from
	// ErrAnnouncementMissing because the two produce different user-facing
	// reports.
	ErrNoEntryReaction = errors.New("no entry reaction on raffle announcement")
)

// EntryCollector reads the live set of members who attached the entry
// reaction to a raffle announcement, excluding the bot itself.
// This abstraction allows the application layer to enumerate entrants
// without a direct dependency on the Discord API.
type EntryCollector interface {
	// Collect returns the current entrants for the announcement message.
	// Returns ErrAnnouncementMissing when the message is gone and
	// ErrNoEntryReaction when the entry reaction has no users.
	Collect(ctx context.Context, guildID, channelID, messageID int64) ([]*entities.Entrant, error)
}

// RafflePoster defines the interface for announcing raffle outcomes to Discord
type RafflePoster interface {
	// PostWinners announces the drawn winners for a raffle
	PostWinners(ctx context.Context, raffle *entities.Raffle, winners []*entities.Entrant) error

	// PostNoValidEntries reports that a raffle ended without any valid entries
	PostNoValidEntries(ctx context.Context, raffle *entities.Raffle) error

	// PostDrawFailure reports that a raffle could not be drawn because its
	// announcement message disappeared
	PostDrawFailure(ctx context.Context, raffle *entities.Raffle) error
}
