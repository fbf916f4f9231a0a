package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"raffler/application"
	"raffler/bot"
	"raffler/config"
	"raffler/database"
	"raffler/repository"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Println("Starting raffler bot...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established successfully")

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db)

	// Initialize Discord bot
	log.Println("Initializing Discord bot...")
	botConfig := bot.Config{
		Token:         cfg.DiscordToken,
		GuildID:       cfg.GuildID,
		WizardTimeout: cfg.WizardTimeout,
	}
	discordBot, err := bot.New(botConfig, uowFactory)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	log.Println("Discord bot initialized successfully")

	// Wire the raffle engine: the bot provides entry collection and
	// announcement posting, the application layer owns teardown and timers
	concluder := application.NewRaffleConcluder(uowFactory, discordBot.GetEntryCollector(), discordBot.GetRafflePoster())
	scheduler := application.NewRaffleScheduler(uowFactory, concluder)
	discordBot.SetRaffleEngine(concluder, scheduler)

	// Recover persisted raffles and arm their timers
	stopScheduler := scheduler.Start(ctx)
	log.Println("Raffle scheduler started")

	// Wait for context cancellation
	log.Printf("Bot is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Println("Shutting down bot...")

	stopScheduler()

	if err := discordBot.Close(); err != nil {
		log.Printf("Error closing Discord bot: %v", err)
	}

	// Give cleanup operations time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Println("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Println("Shutdown completed")
	}

	return nil
}
