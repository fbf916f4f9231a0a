package entities

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLength is the longest title a raffle announcement accepts,
// in characters rather than bytes
const MaxTitleLength = 35

var (
	// ErrTitleTooLong is returned when a raffle title exceeds MaxTitleLength
	ErrTitleTooLong = errors.New("raffle title exceeds 35 characters")

	// ErrInvalidDuration is returned when a duration string cannot be parsed
	ErrInvalidDuration = errors.New("invalid raffle duration")

	// ErrInvalidWinnerCount is returned when the winner count is not positive
	ErrInvalidWinnerCount = errors.New("winner count must be positive")
)

// Raffle represents one active raffle, keyed by its announcement message.
// A raffle is active exactly as long as its row exists; teardown and
// cancellation both finish by deleting the row, never by flipping a status.
type Raffle struct {
	MessageID      int64     `db:"message_id"` // Discord message ID of the announcement
	GuildID        int64     `db:"guild_id"`
	ChannelID      int64     `db:"channel_id"`
	Title          string    `db:"title"`
	Description    string    `db:"description"`
	EndAt          time.Time `db:"end_at"` // Fixed at creation, never recomputed
	WinnerCount    int       `db:"winner_count"`
	MinServerDays  int       `db:"min_server_days"`  // 0 means no tenure requirement
	AllowedRoleIDs []int64   `db:"allowed_role_ids"` // Empty means open to all members
	CreatedAt      time.Time `db:"created_at"`
}

// NewRaffle builds a raffle record for a freshly posted announcement.
// EndAt is computed once as createdAt + duration so that restarts never
// shift the deadline.
func NewRaffle(guildID, channelID, messageID int64, title, description string, duration time.Duration, winnerCount, minServerDays int, allowedRoleIDs []int64, createdAt time.Time) (*Raffle, error) {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, ErrTitleTooLong
	}
	if winnerCount < 1 {
		return nil, ErrInvalidWinnerCount
	}
	if minServerDays < 0 {
		minServerDays = 0
	}
	return &Raffle{
		MessageID:      messageID,
		GuildID:        guildID,
		ChannelID:      channelID,
		Title:          title,
		Description:    description,
		EndAt:          createdAt.Add(duration),
		WinnerCount:    winnerCount,
		MinServerDays:  minServerDays,
		AllowedRoleIDs: allowedRoleIDs,
		CreatedAt:      createdAt,
	}, nil
}

// Remaining returns the time left until the deadline at the given instant.
// Negative values mean the raffle matured while the process was not running.
func (r *Raffle) Remaining(now time.Time) time.Duration {
	return r.EndAt.Sub(now)
}

// IsExpired reports whether the deadline has passed at the given instant.
func (r *Raffle) IsExpired(now time.Time) bool {
	return !r.EndAt.After(now)
}

// HasRoleRestriction reports whether entry is limited to specific roles.
func (r *Raffle) HasRoleRestriction() bool {
	return len(r.AllowedRoleIDs) > 0
}

// Admits reports whether an entrant satisfies the raffle's constraints:
// a minimum number of days of guild membership, and holding at least one
// allowed role when the role set is non-empty. Pure; reads only the
// entrant's already-fetched membership metadata.
func (r *Raffle) Admits(e *Entrant, now time.Time) bool {
	if r.MinServerDays > 0 {
		tenure := now.Sub(e.JoinedAt)
		if tenure < time.Duration(r.MinServerDays)*24*time.Hour {
			return false
		}
	}
	if len(r.AllowedRoleIDs) > 0 {
		allowed := false
		for _, required := range r.AllowedRoleIDs {
			for _, held := range e.RoleIDs {
				if required == held {
					allowed = true
					break
				}
			}
			if allowed {
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}

// ParseRaffleDuration parses the duration argument of /raffle start.
// A plain integer is a number of seconds; colon-separated components are
// most-significant-first with a base of 60, so "30:10" is 30 minutes and
// 10 seconds and "24:00:00" is one day.
func ParseRaffleDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, ErrInvalidDuration
	}

	total := int64(0)
	for _, part := range strings.Split(input, ":") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || n < 0 {
			return 0, ErrInvalidDuration
		}
		total = total*60 + n
	}
	if total <= 0 {
		return 0, ErrInvalidDuration
	}
	return time.Duration(total) * time.Second, nil
}
