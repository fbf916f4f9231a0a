package raffles

import (
	"fmt"
	"strings"
	"time"

	"raffler/bot/common"
	"raffler/domain/entities"

	"github.com/bwmarrin/discordgo"
)

// CreateAnnouncementEmbed builds the raffle announcement posted to the
// raffle channel. All state needed at draw time lives in the database;
// the embed is presentation only. An optional link becomes the embed URL,
// making the title clickable.
func CreateAnnouncementEmbed(title, description, link string, endAt time.Time, winnerCount, minServerDays int, allowedRoleIDs []int64, hostMention string) *discordgo.MessageEmbed {
	body := fmt.Sprintf("React with %s to enter!", EntryEmoji)
	if description != "" {
		body = description + "\n\n" + body
	}

	tenure := "None"
	if minServerDays > 0 {
		tenure = fmt.Sprintf("%d days", minServerDays)
	}

	roles := "@everyone"
	if len(allowedRoleIDs) > 0 {
		mentions := make([]string, len(allowedRoleIDs))
		for i, roleID := range allowedRoleIDs {
			mentions[i] = common.GetRoleMention(roleID)
		}
		roles = strings.Join(mentions, " ")
	}

	winners := "1 winner"
	if winnerCount != 1 {
		winners = fmt.Sprintf("%d winners", winnerCount)
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎉 Raffle: %s", title),
		URL:         link,
		Description: body,
		Color:       common.ColorPrimary,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Ends",
				Value:  fmt.Sprintf("<t:%d:R> (<t:%d:f>)", endAt.Unix(), endAt.Unix()),
				Inline: false,
			},
			{
				Name:   "Winners",
				Value:  winners,
				Inline: true,
			},
			{
				Name:   "Days on Server",
				Value:  tenure,
				Inline: true,
			},
			{
				Name:   "Allowed Roles",
				Value:  roles,
				Inline: true,
			},
			{
				Name:   "Hosted by",
				Value:  hostMention,
				Inline: true,
			},
		},
	}
}

// CreateWinnersEmbed builds the embed attached to the winner announcement.
// The mentions ride in the message content so they ping; the embed shows
// the winners' display names.
func CreateWinnersEmbed(raffle *entities.Raffle, winnerNames []string) *discordgo.MessageEmbed {
	label := "Winner"
	if len(winnerNames) != 1 {
		label = "Winners"
	}
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🎉 Raffle Ended: %s", raffle.Title),
		Color: common.ColorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  label,
				Value: strings.Join(winnerNames, "\n"),
			},
		},
	}
}

// CreateNoEntriesEmbed reports a raffle that ended without a winner
func CreateNoEntriesEmbed(raffle *entities.Raffle) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Raffle Ended: %s", raffle.Title),
		Description: "Nobody qualified to win, so no winner was drawn.",
		Color:       common.ColorWarning,
	}
}

// CreateDrawFailureEmbed reports a raffle closed because its announcement
// message disappeared
func CreateDrawFailureEmbed(raffle *entities.Raffle) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Raffle Closed: %s", raffle.Title),
		Description: "The announcement message was deleted, so the raffle was closed without a drawing.",
		Color:       common.ColorDanger,
	}
}

// CreateActiveListEmbed builds the embed for the active raffle listing
func CreateActiveListEmbed(raffles []*entities.Raffle) *discordgo.MessageEmbed {
	lines := make([]string, len(raffles))
	for i, r := range raffles {
		lines[i] = fmt.Sprintf("`%d` — **%s** in %s, ends <t:%d:R>",
			r.MessageID, r.Title, common.GetChannelMention(r.ChannelID), r.EndAt.Unix())
	}

	return &discordgo.MessageEmbed{
		Title:       "Active Raffles",
		Description: strings.Join(lines, "\n"),
		Color:       common.ColorInfo,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Use the ID with /raffle end, cancel, or reroll",
		},
	}
}
