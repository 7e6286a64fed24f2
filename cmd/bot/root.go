package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/edgard/supportbot/internal/bot"
	"github.com/edgard/supportbot/internal/bot/handlers"
	"github.com/edgard/supportbot/internal/bot/tasks"
	"github.com/edgard/supportbot/internal/config"
	"github.com/edgard/supportbot/internal/database"
	"github.com/edgard/supportbot/internal/logger"
	"github.com/edgard/supportbot/internal/resilience"
	"github.com/edgard/supportbot/internal/routing"
	"github.com/edgard/supportbot/internal/telegram"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "supportbot",
		Short:        "Telegram support bot routing customers to operators by language",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./config.yaml", "Path to configuration file")
	root.AddCommand(newMigrateCmd(&configPath))

	return root
}

// runBot initializes and starts all application components (config, logger, db, routing,
// telegram, scheduler) and blocks until ctx is cancelled or a component fails.
func runBot(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", configPath, "error", err)
		return err
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return err
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	router := routing.New(store, store, routing.Options{
		StickyLanguage: cfg.Routing.StickyLanguage,
		QueueTTL:       cfg.Routing.QueueTTL,
	}, log)

	hDeps := handlers.HandlerDeps{
		Logger: log,
		Config: cfg,
		Router: router,
	}
	breaker := handlers.NewSendBreaker(hDeps)
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Telegram.SendAttempts
	hDeps.NewMessenger = func(b *tgbot.Bot) handlers.Messenger {
		return handlers.NewResilientMessenger(handlers.NewTelegramMessenger(b), breaker, retry, log)
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewMessageHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return err
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return err
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return err
	}
	if err := telegram.SetCommands(ctx, tg, log, handlers.BotCommands(cfg)); err != nil {
		// The command menu is cosmetic; commands still work without it.
		log.Warn("Failed to publish command menu", "error", err)
	}

	tDeps := tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Router:   router,
		Notifier: hDeps.NewMessenger(tg),
		Config:   cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return err
	}
	app := bot.NewBot(log, store, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return fmt.Errorf("bot stopped: %w", runErr)
	}

	log.Info("Bot stopped gracefully.")
	return nil
}
