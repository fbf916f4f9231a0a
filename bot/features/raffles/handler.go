package raffles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"raffler/application"
	"raffler/bot/common"
	"raffler/domain/entities"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const maxDescriptionLength = 1000
const maxWinnerCount = 9
const maxMinServerDays = 3650

// HandleCommand routes /raffle subcommands
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		common.RespondWithError(s, i, "Unknown raffle command")
		return
	}

	switch options[0].Name {
	case "start":
		f.handleStart(s, i, options[0].Options)
	case "end":
		f.handleEnd(s, i, options[0].Options)
	case "cancel":
		f.handleCancel(s, i, options[0].Options)
	case "reroll":
		f.handleReroll(s, i, options[0].Options)
	case "list":
		f.handleList(s, i)
	default:
		common.RespondWithError(s, i, "Unknown raffle command")
	}
}

// handleStart runs the setup wizard: the duration and title come from the
// slash command itself, the remaining details are collected through
// questions in the invoking channel. Nothing is persisted or posted until
// every answer is in.
func (f *Feature) handleStart(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	guildID, err := common.ParseSnowflake(i.GuildID)
	if err != nil {
		log.Errorf("Failed to parse guild ID %s: %v", i.GuildID, err)
		common.RespondWithError(s, i, "Failed to process command")
		return
	}

	opts := optionMap(options)
	durationStr := opts["duration"].StringValue()
	title := strings.TrimSpace(opts["title"].StringValue())

	duration, err := entities.ParseRaffleDuration(durationStr)
	if err != nil {
		common.RespondWithError(s, i, "Invalid duration. Use seconds, M:S, or H:M:S — for example `30:00` for thirty minutes.")
		return
	}
	if title == "" || utf8.RuneCountInString(title) > entities.MaxTitleLength {
		common.RespondWithError(s, i, fmt.Sprintf("The title must be between 1 and %d characters.", entities.MaxTitleLength))
		return
	}

	if err := respondEphemeral(s, i, fmt.Sprintf("Setting up **%s** — answer a few questions here in this channel.", title)); err != nil {
		log.Errorf("Failed to respond to raffle start: %v", err)
		return
	}

	userID := i.Member.User.ID
	wizardChannel := i.ChannelID

	description, err := f.ask(s, wizardChannel, userID,
		"What is this raffle for? Reply with a short description, or `skip`.",
		func(answer string) (string, error) {
			if strings.EqualFold(answer, "skip") {
				return "", nil
			}
			if len(answer) > maxDescriptionLength {
				return "", fmt.Errorf("That description is too long (%d characters max). Try again.", maxDescriptionLength)
			}
			return answer, nil
		})
	if err != nil {
		f.abortWizard(s, wizardChannel, err)
		return
	}

	link, err := f.ask(s, wizardChannel, userID,
		"Is there a link for this raffle? Reply with a URL, or `skip`.",
		func(answer string) (string, error) {
			if strings.EqualFold(answer, "skip") {
				return "", nil
			}
			if !strings.HasPrefix(answer, "http://") && !strings.HasPrefix(answer, "https://") {
				return "", errors.New("That doesn't look like a link. Reply with a full URL starting with `http`, or `skip`.")
			}
			return answer, nil
		})
	if err != nil {
		f.abortWizard(s, wizardChannel, err)
		return
	}

	winnerAnswer, err := f.ask(s, wizardChannel, userID,
		fmt.Sprintf("How many winners should be drawn? (1-%d)", maxWinnerCount),
		validateInt(1, maxWinnerCount, "That's not a valid winner count. Reply with a number from 1 to 9."))
	if err != nil {
		f.abortWizard(s, wizardChannel, err)
		return
	}
	winnerCount := mustAtoi(winnerAnswer)

	daysAnswer, err := f.ask(s, wizardChannel, userID,
		"How many days must a member have been in the server to enter? Reply `0` for no requirement.",
		validateInt(0, maxMinServerDays, "That's not a valid number of days. Reply with `0` or a positive number."))
	if err != nil {
		f.abortWizard(s, wizardChannel, err)
		return
	}
	minServerDays := mustAtoi(daysAnswer)

	allowedRoleIDs, err := f.askRoles(s, i.GuildID, wizardChannel, userID)
	if err != nil {
		f.abortWizard(s, wizardChannel, err)
		return
	}

	ctx := context.Background()
	settings, err := f.loadSettings(ctx, guildID)
	if err != nil {
		log.Errorf("Failed to load guild settings for guild %d: %v", guildID, err)
		f.sendToChannel(s, wizardChannel, "❌ Something went wrong. The raffle was not started.")
		return
	}

	postChannelID, err := common.ParseSnowflake(wizardChannel)
	if err != nil {
		log.Errorf("Failed to parse channel ID %s: %v", wizardChannel, err)
		return
	}
	if settings.HasRaffleChannel() {
		postChannelID = *settings.RaffleChannelID
	}
	postChannelStr := common.FormatSnowflake(postChannelID)

	mentionContent := ""
	if settings.HasMentionRole() {
		mentionContent = common.GetRoleMention(*settings.MentionRoleID)
	}

	createdAt := time.Now().UTC()
	embed := CreateAnnouncementEmbed(title, description, link, createdAt.Add(duration),
		winnerCount, minServerDays, allowedRoleIDs, common.GetUserMention(mustParseSnowflake(userID)))

	announcement, err := s.ChannelMessageSendComplex(postChannelStr, &discordgo.MessageSend{
		Content: mentionContent,
		Embed:   embed,
	})
	if err != nil {
		log.Errorf("Failed to post raffle announcement: %v", err)
		f.sendToChannel(s, wizardChannel, "❌ I couldn't post the announcement. The raffle was not started.")
		return
	}

	if err := s.MessageReactionAdd(postChannelStr, announcement.ID, EntryEmoji); err != nil {
		// Members can still react on their own
		log.Warnf("Failed to seed entry reaction on message %s: %v", announcement.ID, err)
	}

	messageID, err := common.ParseSnowflake(announcement.ID)
	if err != nil {
		log.Errorf("Failed to parse announcement message ID %s: %v", announcement.ID, err)
		return
	}

	raffle, err := entities.NewRaffle(guildID, postChannelID, messageID, title, description,
		duration, winnerCount, minServerDays, allowedRoleIDs, createdAt)
	if err != nil {
		log.Errorf("Failed to build raffle: %v", err)
		f.deleteAnnouncement(s, postChannelStr, announcement.ID)
		f.sendToChannel(s, wizardChannel, "❌ Something went wrong. The raffle was not started.")
		return
	}

	if err := f.persistRaffle(ctx, guildID, raffle); err != nil {
		log.Errorf("Failed to persist raffle %d: %v", messageID, err)
		f.deleteAnnouncement(s, postChannelStr, announcement.ID)
		f.sendToChannel(s, wizardChannel, "❌ Something went wrong saving the raffle. It was not started.")
		return
	}

	// The timer is armed only after the record is durable, so a crash here
	// is recovered at the next startup pass
	f.scheduler.Schedule(ctx, raffle)

	if postChannelStr != wizardChannel {
		f.sendToChannel(s, wizardChannel, fmt.Sprintf("Raffle posted in %s! It ends <t:%d:R>.",
			common.GetChannelMention(postChannelID), raffle.EndAt.Unix()))
	}

	log.WithFields(log.Fields{
		"guild_id":   guildID,
		"message_id": messageID,
		"title":      title,
		"ends_at":    raffle.EndAt,
	}).Info("Raffle started")
}

// handleEnd concludes a raffle immediately instead of waiting for its timer
func (f *Feature) handleEnd(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	guildID, err := common.ParseSnowflake(i.GuildID)
	if err != nil {
		common.RespondWithError(s, i, "Failed to process command")
		return
	}

	if err := deferEphemeral(s, i); err != nil {
		log.Errorf("Failed to defer end response: %v", err)
		return
	}

	ctx := context.Background()
	messageID, ok := f.resolveTargetRaffle(ctx, s, i, guildID, options, "end")
	if !ok {
		return
	}

	result, err := f.concluder.Conclude(ctx, guildID, messageID)
	if err != nil {
		log.Errorf("Failed to end raffle %d: %v", messageID, err)
		common.FollowUpWithError(s, i, "Failed to end the raffle. Please try again.")
		return
	}

	switch result.Outcome {
	case application.OutcomeAlreadyHandled:
		followUp(s, i, "No active raffle was found for that message — it may already be over.")
	case application.OutcomeDrawn:
		followUp(s, i, fmt.Sprintf("Raffle **%s** has ended. Winners announced in %s.",
			result.Raffle.Title, common.GetChannelMention(result.Raffle.ChannelID)))
	case application.OutcomeNoValidEntries:
		followUp(s, i, fmt.Sprintf("Raffle **%s** has ended with no valid entries.", result.Raffle.Title))
	case application.OutcomeAnnouncementGone:
		followUp(s, i, "The announcement message was deleted. The raffle has been closed.")
	}
}

// handleCancel quietly removes a raffle: no drawing, no announcement
func (f *Feature) handleCancel(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	guildID, err := common.ParseSnowflake(i.GuildID)
	if err != nil {
		common.RespondWithError(s, i, "Failed to process command")
		return
	}

	if err := deferEphemeral(s, i); err != nil {
		log.Errorf("Failed to defer cancel response: %v", err)
		return
	}

	ctx := context.Background()
	messageID, ok := f.resolveTargetRaffle(ctx, s, i, guildID, options, "cancel")
	if !ok {
		return
	}

	uow := f.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		log.Errorf("Failed to begin transaction: %v", err)
		common.FollowUpWithError(s, i, "Failed to cancel the raffle.")
		return
	}
	defer uow.Rollback()

	// Row lock so a timer firing at this instant either sees the record
	// and draws, or finds it gone and stays silent
	raffle, err := uow.RaffleRepository().GetByMessageIDForUpdate(ctx, messageID)
	if err != nil {
		log.Errorf("Failed to look up raffle %d: %v", messageID, err)
		common.FollowUpWithError(s, i, "Failed to cancel the raffle.")
		return
	}
	if raffle == nil {
		followUp(s, i, "No active raffle was found for that message — it may already be over.")
		return
	}

	if err := uow.RaffleRepository().Delete(ctx, messageID); err != nil {
		log.Errorf("Failed to delete raffle %d: %v", messageID, err)
		common.FollowUpWithError(s, i, "Failed to cancel the raffle.")
		return
	}
	if err := uow.Commit(); err != nil {
		log.Errorf("Failed to commit cancellation of raffle %d: %v", messageID, err)
		common.FollowUpWithError(s, i, "Failed to cancel the raffle.")
		return
	}

	log.WithFields(log.Fields{
		"guild_id":   guildID,
		"message_id": messageID,
	}).Info("Raffle canceled")
	followUp(s, i, fmt.Sprintf("Raffle **%s** has been canceled. No winner will be drawn.", raffle.Title))
}

// handleReroll draws fresh winners from an announcement's current
// reactions, whether or not the raffle record still exists
func (f *Feature) handleReroll(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	guildID, err := common.ParseSnowflake(i.GuildID)
	if err != nil {
		common.RespondWithError(s, i, "Failed to process command")
		return
	}

	opts := optionMap(options)
	channel := opts["channel"].ChannelValue(s)
	channelID, err := common.ParseSnowflake(channel.ID)
	if err != nil {
		common.RespondWithError(s, i, "Invalid channel")
		return
	}
	messageID, err := common.ParseSnowflake(strings.TrimSpace(opts["message_id"].StringValue()))
	if err != nil {
		common.RespondWithError(s, i, "That doesn't look like a message ID.")
		return
	}
	winnerCount := 1
	if opt, ok := opts["winners"]; ok {
		winnerCount = int(opt.IntValue())
	}
	if winnerCount < 1 || winnerCount > maxWinnerCount {
		common.RespondWithError(s, i, fmt.Sprintf("Winner count must be between 1 and %d.", maxWinnerCount))
		return
	}

	if err := deferEphemeral(s, i); err != nil {
		log.Errorf("Failed to defer reroll response: %v", err)
		return
	}

	ctx := context.Background()
	winners, err := f.concluder.Reroll(ctx, guildID, channelID, messageID, winnerCount)
	switch {
	case errors.Is(err, application.ErrAnnouncementMissing):
		common.FollowUpWithError(s, i, fmt.Sprintf("I couldn't find that message in %s.", common.GetChannelMention(channelID)))
		return
	case errors.Is(err, application.ErrNoEntryReaction):
		common.FollowUpWithError(s, i, fmt.Sprintf("That message has no %s reactions to draw from.", EntryEmoji))
		return
	case err != nil:
		log.Errorf("Failed to reroll message %d: %v", messageID, err)
		common.FollowUpWithError(s, i, "Failed to reroll. Please try again.")
		return
	}

	if len(winners) == 0 {
		followUp(s, i, "Nobody qualified for the reroll.")
		return
	}

	mentions := make([]string, len(winners))
	for idx, w := range winners {
		mentions[idx] = common.GetUserMention(w.UserID)
	}
	content := fmt.Sprintf("🎉 Congratulations %s! You won the reroll!", strings.Join(mentions, ", "))
	if _, err := s.ChannelMessageSend(channel.ID, content); err != nil {
		log.Errorf("Failed to announce reroll winners: %v", err)
		common.FollowUpWithError(s, i, "Winners were drawn, but I couldn't post the announcement.")
		return
	}

	followUp(s, i, fmt.Sprintf("Reroll winners announced in %s.", common.GetChannelMention(channelID)))
}

// handleList shows the guild's active raffles with their message IDs
func (f *Feature) handleList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, err := common.ParseSnowflake(i.GuildID)
	if err != nil {
		common.RespondWithError(s, i, "Failed to process command")
		return
	}

	ctx := context.Background()
	raffles, err := f.activeRaffles(ctx, guildID)
	if err != nil {
		log.Errorf("Failed to list raffles for guild %d: %v", guildID, err)
		common.RespondWithError(s, i, "Failed to list raffles.")
		return
	}

	if len(raffles) == 0 {
		respondEphemeral(s, i, "There are no active raffles.")
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{CreateActiveListEmbed(raffles)},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("Failed to respond with raffle list: %v", err)
	}
}

// resolveTargetRaffle determines which raffle the end/cancel command
// targets. With an explicit id option it is parsed directly; without one
// the command only proceeds when exactly one raffle is active.
func (f *Feature) resolveTargetRaffle(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, guildID int64, options []*discordgo.ApplicationCommandInteractionDataOption, verb string) (int64, bool) {
	opts := optionMap(options)
	if opt, ok := opts["id"]; ok {
		messageID, err := common.ParseSnowflake(strings.TrimSpace(opt.StringValue()))
		if err != nil {
			common.FollowUpWithError(s, i, "That doesn't look like a message ID.")
			return 0, false
		}
		return messageID, true
	}

	raffles, err := f.activeRaffles(ctx, guildID)
	if err != nil {
		log.Errorf("Failed to list raffles for guild %d: %v", guildID, err)
		common.FollowUpWithError(s, i, fmt.Sprintf("Failed to %s the raffle.", verb))
		return 0, false
	}

	switch len(raffles) {
	case 0:
		followUp(s, i, fmt.Sprintf("There are no active raffles to %s.", verb))
		return 0, false
	case 1:
		return raffles[0].MessageID, true
	default:
		_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
			Content: fmt.Sprintf("There are multiple active raffles. Run the command again with the `id` of the one to %s.", verb),
			Embeds:  []*discordgo.MessageEmbed{CreateActiveListEmbed(raffles)},
			Flags:   discordgo.MessageFlagsEphemeral,
		})
		if err != nil {
			log.Errorf("Failed to send raffle disambiguation: %v", err)
		}
		return 0, false
	}
}

// ask sends a wizard question and waits for an answer that passes
// validation, re-asking on invalid input until the timeout elapses
func (f *Feature) ask(s *discordgo.Session, channelID, userID, question string, validate func(string) (string, error)) (string, error) {
	deadline := time.Now().Add(f.wizardTimeout)

	if _, err := s.ChannelMessageSend(channelID, question); err != nil {
		return "", fmt.Errorf("failed to send wizard prompt: %w", err)
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", common.ErrPromptTimeout
		}

		msg, err := common.AwaitMessage(s, channelID, userID, remaining, nil)
		if err != nil {
			return "", err
		}

		answer, verr := validate(strings.TrimSpace(msg.Content))
		if verr != nil {
			if _, err := s.ChannelMessageSend(channelID, verr.Error()); err != nil {
				return "", fmt.Errorf("failed to send wizard prompt: %w", err)
			}
			continue
		}
		return answer, nil
	}
}

// askRoles collects the allowed-role restriction, resolving role names
// against the guild's role list
func (f *Feature) askRoles(s *discordgo.Session, guildID, channelID, userID string) ([]int64, error) {
	guildRoles, err := s.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild roles: %w", err)
	}
	rolesByName := make(map[string]int64, len(guildRoles))
	for _, role := range guildRoles {
		roleID, err := common.ParseSnowflake(role.ID)
		if err != nil {
			continue
		}
		rolesByName[strings.ToLower(role.Name)] = roleID
	}

	answer, err := f.ask(s, channelID, userID,
		"Which roles may enter? Reply with role names separated by commas, or `any`.",
		func(answer string) (string, error) {
			if strings.EqualFold(answer, "any") || strings.EqualFold(answer, "none") {
				return "", nil
			}
			var unknown []string
			for _, name := range strings.Split(answer, ",") {
				name = strings.TrimSpace(name)
				if _, ok := rolesByName[strings.ToLower(name)]; !ok {
					unknown = append(unknown, name)
				}
			}
			if len(unknown) > 0 {
				return "", fmt.Errorf("I couldn't find these roles: %s. Try again, or reply `any`.", strings.Join(unknown, ", "))
			}
			return answer, nil
		})
	if err != nil {
		return nil, err
	}
	if answer == "" {
		return nil, nil
	}

	var roleIDs []int64
	for _, name := range strings.Split(answer, ",") {
		roleIDs = append(roleIDs, rolesByName[strings.ToLower(strings.TrimSpace(name))])
	}
	return roleIDs, nil
}

// abortWizard reports a wizard failure in the invoking channel
func (f *Feature) abortWizard(s *discordgo.Session, channelID string, err error) {
	if errors.Is(err, common.ErrPromptTimeout) {
		f.sendToChannel(s, channelID, "Response timed out. The raffle was not started.")
		return
	}
	log.Errorf("Raffle wizard failed: %v", err)
	f.sendToChannel(s, channelID, "❌ Something went wrong. The raffle was not started.")
}

func (f *Feature) sendToChannel(s *discordgo.Session, channelID, content string) {
	if _, err := s.ChannelMessageSend(channelID, content); err != nil {
		log.Errorf("Failed to send message to channel %s: %v", channelID, err)
	}
}

func (f *Feature) deleteAnnouncement(s *discordgo.Session, channelID, messageID string) {
	if err := s.ChannelMessageDelete(channelID, messageID); err != nil {
		log.Warnf("Failed to delete orphaned announcement %s: %v", messageID, err)
	}
}

// loadSettings fetches the guild's raffle settings in a short transaction
func (f *Feature) loadSettings(ctx context.Context, guildID int64) (*entities.GuildSettings, error) {
	uow := f.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	settings, err := uow.GuildSettingsRepository().GetOrCreateGuildSettings(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (f *Feature) persistRaffle(ctx context.Context, guildID int64, raffle *entities.Raffle) error {
	uow := f.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.RaffleRepository().Create(ctx, raffle); err != nil {
		return err
	}
	return uow.Commit()
}

func (f *Feature) activeRaffles(ctx context.Context, guildID int64) ([]*entities.Raffle, error) {
	uow := f.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	raffles, err := uow.RaffleRepository().GetActiveByGuild(ctx)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return raffles, nil
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// validateInt builds a wizard validator for a bounded integer answer
func validateInt(min, max int, retryMessage string) func(string) (string, error) {
	return func(answer string) (string, error) {
		n := 0
		if _, err := fmt.Sscanf(answer, "%d", &n); err != nil {
			return "", errors.New(retryMessage)
		}
		if n < min || n > max {
			return "", errors.New(retryMessage)
		}
		return fmt.Sprintf("%d", n), nil
	}
}

// mustAtoi parses an integer the wizard already validated
func mustAtoi(s string) int {
	n := 0
	fmt.Sscanf(s, "%d", &n)
	return n
}

func mustParseSnowflake(s string) int64 {
	id, _ := common.ParseSnowflake(s)
	return id
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func followUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Errorf("Failed to send follow-up message: %v", err)
	}
}
