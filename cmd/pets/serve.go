package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"pixel_pets/internal/app"
	"pixel_pets/internal/domain/reminder"
	"pixel_pets/internal/domain/subscriber"
	"pixel_pets/internal/infra/config"
	idb "pixel_pets/internal/infra/database"
	"pixel_pets/internal/infra/httpapi"
	"pixel_pets/internal/infra/logger"
	"pixel_pets/internal/infra/metrics"
	"pixel_pets/internal/infra/pagehub"
	"pixel_pets/internal/infra/scheduler"
	"pixel_pets/internal/infra/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reminder server",
	Long:  "Run the reminder coordinator with its HTTP API, page WebSocket, metrics and optional Telegram bot. Configuration comes from the environment and .env.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

type storage struct {
	states      reminder.StateRepository
	subscribers subscriber.Repository
	db          *sql.DB
}

func (s storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func openStorage(cfg *config.AppConfig) (storage, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.DatabaseDriver {
	case config.DriverMemory:
		return storage{
			states:      idb.NewMemoryStateRepository(),
			subscribers: idb.NewMemorySubscriberRepository(),
		}, nil
	case config.DriverPostgres:
		db, err = idb.NewPostgresConnection(cfg.DatabaseURL)
	default:
		db, err = idb.NewSQLiteConnection(cfg.DatabaseURL)
	}
	if err != nil {
		return storage{}, err
	}
	return storage{
		states:      idb.NewStateRepository(db, cfg.StateKey),
		subscribers: idb.NewSubscriberRepository(db),
		db:          db,
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"driver":      cfg.DatabaseDriver,
		"environment": cfg.Environment,
		"telegram":    cfg.TelegramEnabled(),
	}).Info("Pixel Pets starting")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("could not open storage: %w", err)
	}
	defer store.Close()
	mainLogger.Info("Storage ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := metrics.NewPrometheusObserver(cfg.MetricsNamespace, registry)
	if err != nil {
		return fmt.Errorf("could not register metrics: %w", err)
	}

	alarms := scheduler.NewAlarmScheduler(logger.Component("scheduler"))
	broadcaster := app.NewBroadcaster(logger.Component("broadcaster"), cfg.DeliveryTimeout, observer)
	coordinator := app.NewCoordinator(store.states, alarms, broadcaster, logger.Component("coordinator"),
		app.WithSnoozeDuration(cfg.SnoozeDuration),
		app.WithObserver(observer),
	)
	alarms.OnAlarm(coordinator.HandleAlarm)

	hub := pagehub.NewHub(logger.Component("pagehub"), coordinator, cfg.CORSAllowedOrigins)
	broadcaster.AddProvider(hub)

	var bot *telebot.Bot
	if cfg.TelegramEnabled() {
		bot, err = newBot(ctx, cfg, coordinator, store.subscribers, broadcaster)
		if err != nil {
			return err
		}
	}

	coordCtx, stopCoordinator := context.WithCancel(context.Background())
	coordDone := make(chan struct{})
	go func() {
		defer close(coordDone)
		_ = coordinator.Run(coordCtx)
	}()
	// Restored alarms need a running engine.
	alarms.Start()
	if err := coordinator.Restore(ctx); err != nil {
		mainLogger.WithError(err).Error("Could not restore reminder state; starting idle")
	}

	server := httpapi.NewServer(httpapi.Config{
		Addr:           cfg.HTTPAddr,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Debug:          cfg.Environment == "development" && cfg.LogLevel == "debug",
	}, coordinator, hub, registry, logger.Component("http"))
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	if bot != nil {
		go bot.Start()
		mainLogger.Info("Telegram bot polling")
	}

	select {
	case <-ctx.Done():
		mainLogger.Info("Shutting down application...")
	case err = <-serverErr:
		if err != nil {
			mainLogger.WithError(err).Error("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, context.DeadlineExceeded) {
		mainLogger.WithError(serr).Warn("HTTP server shutdown")
	}
	hub.Close()
	if bot != nil {
		bot.Stop()
	}
	alarms.Stop()
	stopCoordinator()
	<-coordDone

	mainLogger.Info("Application shut down gracefully")
	return err
}

func newBot(
	ctx context.Context,
	cfg *config.AppConfig,
	coordinator *app.Coordinator,
	subscribers subscriber.Repository,
	broadcaster *app.Broadcaster,
) (*telebot.Bot, error) {
	botLogger := logger.Component("telegram")
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{
					"sender_id": c.Sender().ID,
					"chat_id":   c.Chat().ID,
				})
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}

	subscriptions := app.NewSubscriptionService(subscribers, cfg.AdminTelegramID)
	telegram.RegisterBotCommands(ctx, bot, subscriptions, botLogger)
	telegram.RegisterReminderHandlers(ctx, bot, coordinator, subscriptions, botLogger)
	broadcaster.AddProvider(telegram.NewChatSurfaces(subscriptions, telegram.NewTelebotAdapter(bot)))

	botLogger.WithField("admin_id", cfg.AdminTelegramID).Info("Telegram handlers registered")
	return bot, nil
}
