package settings

import (
	"context"
	"fmt"

	"raffler/bot/common"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// handleChannel handles /raffleset channel. With a channel option all
// future announcements go there; without one, announcements go to the
// channel where the raffle is started.
func (f *Feature) handleChannel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !common.IsUserAdmin(s, i.GuildID, i.Member.User.ID) {
		common.RespondWithError(s, i, "You need administrator permissions to use this command")
		return
	}

	guildID, err := common.ParseSnowflake(i.GuildID)
	if err != nil {
		log.Errorf("Failed to parse guild ID: %v", err)
		common.RespondWithError(s, i, "Failed to process command")
		return
	}

	options := i.ApplicationCommandData().Options[0].Options
	var channelID *int64
	if len(options) > 0 && options[0].Name == "channel" {
		channel := options[0].ChannelValue(s)
		if channel != nil {
			parsed, err := common.ParseSnowflake(channel.ID)
			if err != nil {
				log.Errorf("Failed to parse channel ID: %v", err)
				common.RespondWithError(s, i, "Invalid channel selected")
				return
			}
			channelID = &parsed
		}
	}

	if err := f.updateSettings(guildID, func(set settingsMutator) {
		set.SetRaffleChannel(channelID)
	}); err != nil {
		log.Errorf("Failed to update raffle channel for guild %d: %v", guildID, err)
		common.RespondWithError(s, i, "Failed to update settings")
		return
	}

	var message string
	if channelID != nil {
		message = fmt.Sprintf("✅ Raffle announcements will be posted in %s", common.GetChannelMention(*channelID))
	} else {
		message = "✅ Raffle announcements will be posted in the channel where the raffle is started"
	}
	respond(s, i, message)
}

// handleMention handles /raffleset mention, setting or clearing the role
// pinged with each announcement
func (f *Feature) handleMention(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !common.IsUserAdmin(s, i.GuildID, i.Member.User.ID) {
		common.RespondWithError(s, i, "You need administrator permissions to use this command")
		return
	}

	guildID, err := common.ParseSnowflake(i.GuildID)
	if err != nil {
		log.Errorf("Failed to parse guild ID: %v", err)
		common.RespondWithError(s, i, "Failed to process command")
		return
	}

	options := i.ApplicationCommandData().Options[0].Options
	var roleID *int64
	if len(options) > 0 && options[0].Name == "role" {
		roleStr := options[0].RoleValue(s, "").ID
		if roleStr != "" {
			parsed, err := common.ParseSnowflake(roleStr)
			if err != nil {
				log.Errorf("Failed to parse role ID: %v", err)
				common.RespondWithError(s, i, "Invalid role selected")
				return
			}
			roleID = &parsed
		}
	}

	if err := f.updateSettings(guildID, func(set settingsMutator) {
		set.SetMentionRole(roleID)
	}); err != nil {
		log.Errorf("Failed to update mention role for guild %d: %v", guildID, err)
		common.RespondWithError(s, i, "Failed to update settings")
		return
	}

	var message string
	if roleID != nil {
		message = fmt.Sprintf("✅ Raffle announcements will mention %s", common.GetRoleMention(*roleID))
	} else {
		message = "✅ Raffle announcements will no longer mention a role"
	}
	respond(s, i, message)
}

// settingsMutator is the slice of the guild settings entity the handlers
// are allowed to change
type settingsMutator interface {
	SetRaffleChannel(channelID *int64)
	SetMentionRole(roleID *int64)
}

// updateSettings runs a read-modify-write of the guild settings in one
// transaction
func (f *Feature) updateSettings(guildID int64, mutate func(settingsMutator)) error {
	ctx := context.Background()

	uow := f.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settings, err := uow.GuildSettingsRepository().GetOrCreateGuildSettings(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	mutate(settings)

	if err := uow.GuildSettingsRepository().UpdateGuildSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return uow.Commit()
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("Failed to respond to interaction: %v", err)
	}
}
