package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"raffler/application"
	"raffler/bot/features/raffles"
	"raffler/bot/features/settings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token         string
	GuildID       string
	WizardTimeout time.Duration
}

// Bot manages the Discord bot and all feature modules
type Bot struct {
	// Core components
	config     Config
	session    *discordgo.Session
	uowFactory application.UnitOfWorkFactory

	// Feature modules
	raffles  *raffles.Feature
	settings *settings.Feature
}

// New creates a new bot instance with all features
func New(config Config, uowFactory application.UnitOfWorkFactory) (*Bot, error) {
	// Create Discord session
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsAllWithoutPrivileged |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	// Create bot instance
	bot := &Bot{
		config:     config,
		session:    dg,
		uowFactory: uowFactory,
	}

	// Create feature modules
	bot.raffles = raffles.NewFeature(dg, uowFactory, config.WizardTimeout)
	bot.settings = settings.NewFeature(dg, uowFactory)

	// Register handlers
	dg.AddHandler(bot.handleCommands)
	dg.AddHandler(bot.handleGuildCreate)

	// Open websocket connection
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	// Register slash commands with Discord
	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	return bot, nil
}

// GetEntryCollector returns the raffles feature as an EntryCollector
func (b *Bot) GetEntryCollector() application.EntryCollector {
	return b.raffles
}

// GetRafflePoster returns the raffles feature as a RafflePoster
func (b *Bot) GetRafflePoster() application.RafflePoster {
	return b.raffles
}

// SetRaffleEngine wires the teardown and timer components into the
// command handlers. Must be called before the bot receives commands that
// need them; in practice, during startup right after construction.
func (b *Bot) SetRaffleEngine(concluder *application.RaffleConcluder, scheduler *application.RaffleScheduler) {
	b.raffles.SetEngine(concluder, scheduler)
}

// GetSession returns the Discord session
func (b *Bot) GetSession() *discordgo.Session {
	return b.session
}

// Close gracefully shuts down the bot
func (b *Bot) Close() error {
	return b.session.Close()
}

// handleCommands routes slash commands to appropriate handlers
func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "raffle":
		b.raffles.HandleCommand(s, i)
	case "raffleset":
		b.settings.HandleCommand(s, i)
	}
}

// handleGuildCreate handles when the bot joins a new guild
func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	ctx := context.Background()

	guildID, err := strconv.ParseInt(g.ID, 10, 64)
	if err != nil {
		log.Errorf("Failed to parse guild ID %s: %v", g.ID, err)
		return
	}

	// Create guild-scoped unit of work
	uow := b.uowFactory.CreateForGuild(guildID)
	if err := uow.Begin(ctx); err != nil {
		log.Errorf("Failed to begin transaction: %v", err)
		return
	}
	defer uow.Rollback()

	// Get or create settings for this guild
	guildSettings, err := uow.GuildSettingsRepository().GetOrCreateGuildSettings(ctx, guildID)
	if err != nil {
		log.Errorf("Failed to track new guild %s (%s): %v", g.Name, g.ID, err)
		return
	}

	if err := uow.Commit(); err != nil {
		log.Errorf("Failed to commit transaction: %v", err)
		return
	}

	log.Infof("Bot joined guild: %s (ID: %d, Raffle Channel: %v, Mention Role: %v)",
		g.Name, guildSettings.GuildID, guildSettings.RaffleChannelID, guildSettings.MentionRoleID)
}
