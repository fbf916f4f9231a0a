package repository

import (
	"context"
	"fmt"

	"raffler/domain/entities"

	"github.com/jackc/pgx/v5"
)

// RaffleRepository implements raffle data access
type RaffleRepository struct {
	q       Queryable
	guildID int64
}

// NewRaffleRepositoryScoped creates a new raffle repository with guild scope
func NewRaffleRepositoryScoped(tx Queryable, guildID int64) *RaffleRepository {
	return &RaffleRepository{
		q:       tx,
		guildID: guildID,
	}
}

const raffleColumns = `message_id, guild_id, channel_id, title, description, end_at,
	       winner_count, min_server_days, allowed_role_ids, created_at`

func scanRaffle(row pgx.Row) (*entities.Raffle, error) {
	var raffle entities.Raffle
	err := row.Scan(
		&raffle.MessageID,
		&raffle.GuildID,
		&raffle.ChannelID,
		&raffle.Title,
		&raffle.Description,
		&raffle.EndAt,
		&raffle.WinnerCount,
		&raffle.MinServerDays,
		&raffle.AllowedRoleIDs,
		&raffle.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &raffle, nil
}

// Create persists a new raffle record
func (r *RaffleRepository) Create(ctx context.Context, raffle *entities.Raffle) error {
	query := `
		INSERT INTO raffles (message_id, guild_id, channel_id, title, description,
		                     end_at, winner_count, min_server_days, allowed_role_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.Exec(ctx, query,
		raffle.MessageID,
		raffle.GuildID,
		raffle.ChannelID,
		raffle.Title,
		raffle.Description,
		raffle.EndAt,
		raffle.WinnerCount,
		raffle.MinServerDays,
		raffle.AllowedRoleIDs,
		raffle.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create raffle %d: %w", raffle.MessageID, err)
	}

	return nil
}

// GetByMessageID retrieves a raffle by its announcement message ID
func (r *RaffleRepository) GetByMessageID(ctx context.Context, messageID int64) (*entities.Raffle, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM raffles
		WHERE message_id = $1
	`, raffleColumns)

	raffle, err := scanRaffle(r.q.QueryRow(ctx, query, messageID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle by message ID %d: %w", messageID, err)
	}

	return raffle, nil
}

// GetByMessageIDForUpdate retrieves a raffle with a row lock. Concurrent
// teardown attempts for the same raffle serialize on this lock; the one
// that arrives second sees the row already deleted.
func (r *RaffleRepository) GetByMessageIDForUpdate(ctx context.Context, messageID int64) (*entities.Raffle, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM raffles
		WHERE message_id = $1
		FOR UPDATE
	`, raffleColumns)

	raffle, err := scanRaffle(r.q.QueryRow(ctx, query, messageID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle for update by message ID %d: %w", messageID, err)
	}

	return raffle, nil
}

// GetActiveByGuild returns all active raffles for the scoped guild
func (r *RaffleRepository) GetActiveByGuild(ctx context.Context) ([]*entities.Raffle, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM raffles
		WHERE guild_id = $1
		ORDER BY end_at ASC
	`, raffleColumns)

	rows, err := r.q.Query(ctx, query, r.guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get raffles for guild %d: %w", r.guildID, err)
	}
	defer rows.Close()

	return collectRaffles(rows)
}

// GetAll returns every persisted raffle across all guilds, for the
// startup recovery pass
func (r *RaffleRepository) GetAll(ctx context.Context) ([]*entities.Raffle, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM raffles
		ORDER BY end_at ASC
	`, raffleColumns)

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all raffles: %w", err)
	}
	defer rows.Close()

	return collectRaffles(rows)
}

// Delete removes a raffle record. Deleting a missing record is a no-op;
// this is what makes concurrent teardown triggers safe.
func (r *RaffleRepository) Delete(ctx context.Context, messageID int64) error {
	query := `DELETE FROM raffles WHERE message_id = $1`

	if _, err := r.q.Exec(ctx, query, messageID); err != nil {
		return fmt.Errorf("failed to delete raffle %d: %w", messageID, err)
	}

	return nil
}

func collectRaffles(rows pgx.Rows) ([]*entities.Raffle, error) {
	var raffles []*entities.Raffle
	for rows.Next() {
		raffle, err := scanRaffle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raffle: %w", err)
		}
		raffles = append(raffles, raffle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate raffles: %w", err)
	}

	return raffles, nil
}
