package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/marginwatch/internal/clients/alphavantage"
	"github.com/aristath/marginwatch/internal/clients/edgar"
	"github.com/aristath/marginwatch/internal/clients/yahoo"
	"github.com/aristath/marginwatch/internal/config"
	"github.com/aristath/marginwatch/internal/database"
	"github.com/aristath/marginwatch/internal/events"
	"github.com/aristath/marginwatch/internal/modules/alerts"
	"github.com/aristath/marginwatch/internal/modules/filings"
	"github.com/aristath/marginwatch/internal/modules/history"
	"github.com/aristath/marginwatch/internal/modules/notes"
	"github.com/aristath/marginwatch/internal/modules/portfolio"
	"github.com/aristath/marginwatch/internal/modules/watchlist"
	"github.com/aristath/marginwatch/internal/notify"
	"github.com/aristath/marginwatch/internal/quotecache"
	"github.com/aristath/marginwatch/internal/reliability"
	"github.com/aristath/marginwatch/internal/scheduler"
	"github.com/aristath/marginwatch/internal/server"
	"github.com/aristath/marginwatch/internal/stream"
	"github.com/aristath/marginwatch/pkg/logger"
)

const snapshotSchedule = "30 */5 * * * *" // offset from the refresh cycle

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Bool("dev_mode", cfg.DevMode).
		Msg("Starting marginwatch")

	// Database
	db, err := database.New(filepath.Join(cfg.DataDir, "marginwatch.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	eventMgr := events.NewManager(log)

	// Quote sources: Yahoo first, Alpha Vantage as fallback when configured
	yahooClient := yahoo.NewClient(log)
	sources := []watchlist.QuoteSource{yahooClient}

	var avClient *alphavantage.Client
	if cfg.AlphaVantageAPIKey != "" {
		avClient = alphavantage.NewClient(cfg.AlphaVantageAPIKey, log)
		sources = append(sources, avClient)
	} else {
		log.Warn().Msg("No Alpha Vantage API key configured, fallback quote source disabled")
	}

	// Repositories and services
	watchlistRepo := watchlist.NewRepository(db.Conn(), log)
	watchlistSvc := watchlist.NewService(watchlistRepo, sources, eventMgr, log)

	historyRepo := history.NewRepository(db.Conn(), log)
	dailyStore, err := history.NewDailyStore(filepath.Join(cfg.DataDir, "daily"), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open daily bar store")
	}
	defer dailyStore.Close()

	portfolioRepo := portfolio.NewRepository(db.Conn(), log)
	notesRepo := notes.NewRepository(db.Conn(), log)
	alertsRepo := alerts.NewRepository(db.Conn(), log)

	edgarClient := edgar.NewClient(cfg.EDGARUserAgent, log)
	filingsSvc := filings.NewService(db.Conn(), edgarClient, log)

	// Quote cache, restored from the last snapshot
	quoteCache := quotecache.New(log)
	snapshotPath := filepath.Join(cfg.DataDir, "quotes.msgpack")
	if err := quoteCache.Load(snapshotPath); err != nil {
		log.Warn().Err(err).Msg("Failed to restore quote snapshot")
	}

	// Notification destinations
	registry := notify.NewRegistry(eventMgr, log)
	if cfg.TelegramBotToken != "" {
		for _, chatID := range cfg.TelegramChatIDs {
			registry.Register(notify.NewTelegramNotifier(cfg.TelegramBotToken, chatID))
		}
	}
	if registry.Len() == 0 {
		log.Warn().Msg("No notification destinations configured, alerts are logged only")
	}

	streamHub := stream.NewHub(log)

	// Refresh cycle
	refreshJob := scheduler.NewRefreshCycleJob(scheduler.RefreshCycleConfig{
		Stocks:      watchlistRepo,
		Quotes:      watchlistSvc,
		History:     historyRepo,
		AlertLog:    alertsRepo,
		AlertState:  alerts.NewStateStore(),
		Notifier:    registry,
		Cache:       quoteCache,
		Stream:      streamHub,
		Events:      eventMgr,
		AlertWindow: time.Duration(cfg.AlertWindowHours) * time.Hour,
	}, log)

	// Backups, when configured
	var backupSvc *reliability.BackupService
	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create backup client")
		}
		backupSvc = reliability.NewBackupService(
			db.Conn(), s3Client, cfg.DataDir, cfg.Backup.RetentionDays, eventMgr, log,
		)
	}

	// Scheduler
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh cycle job")
	}
	if err := sched.AddJob(snapshotSchedule, scheduler.NewSnapshotJob(quoteCache, snapshotPath, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register snapshot job")
	}
	if avClient != nil {
		if err := sched.AddJob("0 0 0 * * *", scheduler.NewCounterResetJob(avClient, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register counter reset job")
		}
	}
	if backupSvc != nil {
		if err := sched.AddJob(cfg.Backup.Schedule, scheduler.NewBackupJob(backupSvc, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}

	sched.Start()
	defer sched.Stop()

	// First cycle right away instead of waiting for the schedule
	go func() {
		if err := sched.RunNow(refreshJob); err != nil {
			log.Error().Err(err).Msg("Initial refresh cycle failed")
		}
	}()

	// HTTP server
	srv := server.New(server.Deps{
		Config:    cfg,
		Log:       log,
		Watchlist: watchlist.NewHandlers(watchlistSvc, log),
		History:   history.NewHandlers(historyRepo, dailyStore, watchlistRepo, yahooClient, log),
		Portfolio: portfolio.NewHandlers(portfolioRepo, quoteCache, log),
		Notes:     notes.NewHandlers(notesRepo, log),
		Filings:   filings.NewHandlers(filingsSvc, log),
		Alerts:    alerts.NewHandlers(alertsRepo, log),
		System: server.NewSystemHandlers(
			cfg.DataDir, db, refreshJob, backupSvc, quoteCache, streamHub, log,
		),
		Stream: streamHub,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	// Persist the latest quotes for the next start
	if err := quoteCache.Save(snapshotPath); err != nil {
		log.Warn().Err(err).Msg("Failed to save quote snapshot")
	}

	log.Info().Msg("Shutdown complete")
}
