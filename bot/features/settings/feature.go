package settings

import (
	"raffler/application"
	"raffler/bot/common"

	"github.com/bwmarrin/discordgo"
)

// Feature handles the /raffleset command for per-guild raffle configuration
type Feature struct {
	session    *discordgo.Session
	uowFactory application.UnitOfWorkFactory
}

// NewFeature creates a new settings feature instance
func NewFeature(session *discordgo.Session, uowFactory application.UnitOfWorkFactory) *Feature {
	return &Feature{
		session:    session,
		uowFactory: uowFactory,
	}
}

// HandleCommand routes /raffleset subcommands
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		common.RespondWithError(s, i, "Unknown settings command")
		return
	}

	switch options[0].Name {
	case "channel":
		f.handleChannel(s, i)
	case "mention":
		f.handleMention(s, i)
	default:
		common.RespondWithError(s, i, "Unknown settings command")
	}
}
