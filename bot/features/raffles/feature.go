package raffles

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"raffler/application"
	"raffler/bot/common"
	"raffler/domain/entities"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// EntryEmoji is the reaction members attach to an announcement to enter
const EntryEmoji = "🎉"

// reactionPageSize is the Discord API page limit for reaction user listings
const reactionPageSize = 100

// Feature handles raffle slash commands, live entry collection from the
// announcement message, and outcome announcements.
type Feature struct {
	session       *discordgo.Session
	uowFactory    application.UnitOfWorkFactory
	wizardTimeout time.Duration

	concluder *application.RaffleConcluder
	scheduler *application.RaffleScheduler
}

// NewFeature creates a new raffles feature instance
func NewFeature(session *discordgo.Session, uowFactory application.UnitOfWorkFactory, wizardTimeout time.Duration) *Feature {
	return &Feature{
		session:       session,
		uowFactory:    uowFactory,
		wizardTimeout: wizardTimeout,
	}
}

// SetEngine wires the teardown and timer components. Called once during
// startup, after the concluder and scheduler have been constructed around
// this feature's collector and poster.
func (f *Feature) SetEngine(concluder *application.RaffleConcluder, scheduler *application.RaffleScheduler) {
	f.concluder = concluder
	f.scheduler = scheduler
}

// Collect implements application.EntryCollector. It reads the current set
// of members who attached the entry reaction to the announcement message,
// excluding the bot itself and users who have since left the guild.
func (f *Feature) Collect(ctx context.Context, guildID, channelID, messageID int64) ([]*entities.Entrant, error) {
	guildStr := common.FormatSnowflake(guildID)
	channelStr := common.FormatSnowflake(channelID)
	messageStr := common.FormatSnowflake(messageID)

	msg, err := f.session.ChannelMessage(channelStr, messageStr)
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return nil, application.ErrAnnouncementMissing
		}
		return nil, fmt.Errorf("failed to fetch raffle announcement %d: %w", messageID, err)
	}

	hasEntryReaction := false
	for _, r := range msg.Reactions {
		if r.Emoji.Name == EntryEmoji {
			hasEntryReaction = true
			break
		}
	}
	if !hasEntryReaction {
		return nil, application.ErrNoEntryReaction
	}

	var entrants []*entities.Entrant
	afterID := ""
	for {
		users, err := f.session.MessageReactions(channelStr, messageStr, EntryEmoji, reactionPageSize, "", afterID)
		if err != nil {
			return nil, fmt.Errorf("failed to list entry reactions for message %d: %w", messageID, err)
		}

		for _, u := range users {
			if f.session.State != nil && f.session.State.User != nil && u.ID == f.session.State.User.ID {
				continue
			}

			member, err := f.guildMember(guildStr, u.ID)
			if err != nil {
				// Reacted but no longer in the guild
				log.WithFields(log.Fields{
					"user_id":  u.ID,
					"guild_id": guildID,
				}).Debug("Skipping entrant without guild membership")
				continue
			}

			userID, err := common.ParseSnowflake(u.ID)
			if err != nil {
				log.Warnf("Skipping entrant with unparseable user ID %q: %v", u.ID, err)
				continue
			}

			roleIDs := make([]int64, 0, len(member.Roles))
			for _, roleStr := range member.Roles {
				roleID, err := common.ParseSnowflake(roleStr)
				if err != nil {
					continue
				}
				roleIDs = append(roleIDs, roleID)
			}

			entrants = append(entrants, &entities.Entrant{
				UserID:   userID,
				Username: u.Username,
				JoinedAt: member.JoinedAt,
				RoleIDs:  roleIDs,
			})
		}

		if len(users) < reactionPageSize {
			break
		}
		afterID = users[len(users)-1].ID
	}

	return entrants, nil
}

// guildMember resolves a guild member, preferring the session state cache
func (f *Feature) guildMember(guildID, userID string) (*discordgo.Member, error) {
	if member, err := f.session.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	return f.session.GuildMember(guildID, userID)
}

// PostWinners implements application.RafflePoster. The mentions go in the
// message content so they actually ping; the embed carries the winners'
// server display names.
func (f *Feature) PostWinners(ctx context.Context, raffle *entities.Raffle, winners []*entities.Entrant) error {
	guildStr := common.FormatSnowflake(raffle.GuildID)
	mentions := make([]string, len(winners))
	names := make([]string, len(winners))
	for i, w := range winners {
		mentions[i] = common.GetUserMention(w.UserID)
		names[i] = common.GetDisplayName(f.session, guildStr, common.FormatSnowflake(w.UserID))
	}

	content := fmt.Sprintf("🎉 Congratulations %s! You won the raffle for **%s**!",
		strings.Join(mentions, ", "), raffle.Title)

	_, err := f.session.ChannelMessageSendComplex(common.FormatSnowflake(raffle.ChannelID), &discordgo.MessageSend{
		Content: content,
		Embed:   CreateWinnersEmbed(raffle, names),
	})
	if err != nil {
		return fmt.Errorf("failed to announce winners for raffle %d: %w", raffle.MessageID, err)
	}
	return nil
}

// PostNoValidEntries implements application.RafflePoster
func (f *Feature) PostNoValidEntries(ctx context.Context, raffle *entities.Raffle) error {
	_, err := f.session.ChannelMessageSendEmbed(common.FormatSnowflake(raffle.ChannelID), CreateNoEntriesEmbed(raffle))
	if err != nil {
		return fmt.Errorf("failed to post no-entries notice for raffle %d: %w", raffle.MessageID, err)
	}
	return nil
}

// PostDrawFailure implements application.RafflePoster
func (f *Feature) PostDrawFailure(ctx context.Context, raffle *entities.Raffle) error {
	_, err := f.session.ChannelMessageSendEmbed(common.FormatSnowflake(raffle.ChannelID), CreateDrawFailureEmbed(raffle))
	if err != nil {
		return fmt.Errorf("failed to post draw failure notice for raffle %d: %w", raffle.MessageID, err)
	}
	return nil
}
