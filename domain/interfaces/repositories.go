package interfaces

import (
	"context"

	"raffler/domain/entities"
)

// RaffleRepository defines the interface for raffle data access.
// A raffle is active exactly as long as its record exists; there is no
// terminal status column.
type RaffleRepository interface {
	// Create persists a new raffle record
	Create(ctx context.Context, raffle *entities.Raffle) error

	// GetByMessageID retrieves a raffle by its announcement message ID.
	// Returns nil without error when no record exists.
	GetByMessageID(ctx context.Context, messageID int64) (*entities.Raffle, error)

	// GetByMessageIDForUpdate retrieves a raffle with a row lock, serializing
	// concurrent teardown attempts for the same raffle.
	// Returns nil without error when no record exists.
	GetByMessageIDForUpdate(ctx context.Context, messageID int64) (*entities.Raffle, error)

	// GetActiveByGuild returns all active raffles for the scoped guild
	GetActiveByGuild(ctx context.Context) ([]*entities.Raffle, error)

	// GetAll returns all active raffles across every guild, for the
	// startup recovery pass
	GetAll(ctx context.Context) ([]*entities.Raffle, error)

	// Delete removes a raffle record. Deleting a missing record succeeds
	// as a no-op; repeated deletes are harmless.
	Delete(ctx context.Context, messageID int64) error
}

// GuildSettingsRepository defines the interface for guild settings data access
type GuildSettingsRepository interface {
	// GetOrCreateGuildSettings retrieves guild settings or creates default ones
	GetOrCreateGuildSettings(ctx context.Context, guildID int64) (*entities.GuildSettings, error)

	// UpdateGuildSettings updates guild settings
	UpdateGuildSettings(ctx context.Context, settings *entities.GuildSettings) error
}
