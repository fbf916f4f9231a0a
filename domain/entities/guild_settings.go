package entities

// GuildSettings represents per-guild raffle configuration
type GuildSettings struct {
	GuildID         int64  `db:"guild_id"`
	RaffleChannelID *int64 `db:"raffle_channel_id"` // Nullable - channel raffles are announced in
	MentionRoleID   *int64 `db:"mention_role_id"`   // Nullable - role pinged when a raffle starts
}

// HasRaffleChannel checks if a raffle announcement channel is configured
func (gs *GuildSettings) HasRaffleChannel() bool {
	return gs.RaffleChannelID != nil && *gs.RaffleChannelID > 0
}

// HasMentionRole checks if a mention role is configured
func (gs *GuildSettings) HasMentionRole() bool {
	return gs.MentionRoleID != nil && *gs.MentionRoleID > 0
}

// SetRaffleChannel sets the raffle announcement channel ID
func (gs *GuildSettings) SetRaffleChannel(channelID *int64) {
	gs.RaffleChannelID = channelID
}

// SetMentionRole sets the mention role ID
func (gs *GuildSettings) SetMentionRole(roleID *int64) {
	gs.MentionRoleID = roleID
}
