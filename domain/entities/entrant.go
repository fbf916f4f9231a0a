package entities

import "time"

// Entrant is a guild member who attached the entry reaction to a raffle
// announcement. Entrants are never persisted; they are collected live from
// the announcement message at draw time.
type Entrant struct {
	UserID   int64
	Username string
	JoinedAt time.Time // When the member joined the guild
	RoleIDs  []int64
}
