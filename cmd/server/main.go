package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/config"
	"github.com/trivault/trivault/internal/database"
	"github.com/trivault/trivault/internal/events"
	"github.com/trivault/trivault/internal/modules/analytics"
	"github.com/trivault/trivault/internal/modules/assets"
	"github.com/trivault/trivault/internal/modules/policy"
	"github.com/trivault/trivault/internal/modules/position"
	"github.com/trivault/trivault/internal/modules/settings"
	"github.com/trivault/trivault/internal/modules/strategy"
	"github.com/trivault/trivault/internal/modules/vault"
	"github.com/trivault/trivault/internal/reliability"
	"github.com/trivault/trivault/internal/scheduler"
	"github.com/trivault/trivault/internal/server"
	"github.com/trivault/trivault/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	log.Info().Msg("Starting TriVault")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directory")
	}

	// state.db - policies, positions, operation journal, settings
	stateDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/state.db",
		Profile: database.ProfileStandard,
		Name:    "state",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize state database")
	}
	defer stateDB.Close()

	// ledger.db - asset accounts and allowances, maximum durability
	ledgerDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/ledger.db",
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger database")
	}
	defer ledgerDB.Close()

	// history.db - value snapshots, rebuildable
	historyDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/history.db",
		Profile: database.ProfileCache,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize history database")
	}
	defer historyDB.Close()

	databases := map[string]*database.DB{
		"state":   stateDB,
		"ledger":  ledgerDB,
		"history": historyDB,
	}
	for name, db := range databases {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to run migrations")
		}
	}

	// Events
	bus := events.NewBus(log)
	eventManager := events.NewManager(bus, log)

	// Asset ledger and reference strategies
	ledger := assets.NewLedger(ledgerDB.Conn(), cfg.AssetID, log)

	optionsSim := strategy.NewSimulator(strategy.SimulatorConfig{
		Kind:         strategy.KindOptions,
		VaultAccount: assets.VaultAccount,
		YieldBps:     cfg.OptionsYieldBps,
		Ledger:       ledger,
	}, log)
	lpSim := strategy.NewSimulator(strategy.SimulatorConfig{
		Kind:         strategy.KindLP,
		VaultAccount: assets.VaultAccount,
		YieldBps:     cfg.LPYieldBps,
		Ledger:       ledger,
	}, log)
	stakingSim := strategy.NewSimulator(strategy.SimulatorConfig{
		Kind:         strategy.KindStaking,
		VaultAccount: assets.VaultAccount,
		YieldBps:     cfg.StakingYieldBps,
		Ledger:       ledger,
	}, log)

	registry, err := strategy.NewRegistry(cfg.AssetID, optionsSim, lpSim, stakingSim, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to bind strategy slots")
	}

	// Vault façade
	settingsRepo := settings.NewRepository(stateDB.Conn(), log)
	policyRepo := policy.NewRepository(stateDB.Conn(), log)
	positionRepo := position.NewRepository(stateDB.Conn(), log)
	journal := vault.NewJournal(stateDB.Conn())
	engine := vault.NewEngine(registry, ledger, log)
	vaultService := vault.NewService(
		engine, registry, ledger,
		policyRepo, positionRepo, journal,
		stateDB.Conn(), eventManager, log,
	)

	// Analytics
	analyticsRepo := analytics.NewRepository(historyDB.Conn(), log)
	analyticsService := analytics.NewService(analyticsRepo, log)

	// Reliability
	health := reliability.NewDatabaseHealthService(databases, log)
	backupService := reliability.NewBackupService(databases, positionRepo, vaultService, cfg.Backup.Dir, log)

	var s3Client *reliability.S3Client
	if cfg.Backup.S3Enabled {
		s3Client, err = reliability.NewS3Client(context.Background(), reliability.S3Config{
			Bucket: cfg.Backup.S3Bucket,
			Prefix: cfg.Backup.S3Prefix,
			Region: cfg.Backup.S3Region,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 client")
		}
	}
	cloudBackup := reliability.NewCloudBackupService(s3Client, backupService, log)

	// Scheduler and jobs
	sched := scheduler.New(settingsRepo, log)
	accrualJob := scheduler.NewAccrualJob([]*strategy.Simulator{optionsSim, lpSim, stakingSim}, log)
	snapshotJob := scheduler.NewSnapshotJob(vaultService, analyticsRepo, eventManager, log)
	backupJob := scheduler.NewBackupJob(cloudBackup, eventManager, log)
	maintenanceJob := reliability.NewMaintenanceJob(databases, health, analyticsRepo, cfg.DataDir, log)

	registerJob(sched, "@every 1m", accrualJob, log)
	registerJob(sched, "@every 5m", snapshotJob, log)
	registerJob(sched, "0 0 3 * * *", backupJob, log)
	registerJob(sched, "0 0 2 * * *", maintenanceJob, log)

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:              log,
		Cfg:              cfg,
		Databases:        databases,
		VaultService:     vaultService,
		Ledger:           ledger,
		AnalyticsService: analyticsService,
		AnalyticsRepo:    analyticsRepo,
		Health:           health,
		Scheduler:        sched,
		Settings:         settingsRepo,
		Bus:              bus,
	})
	srv.SetJobs(backupJob, maintenanceJob)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().
		Int("port", cfg.Port).
		Str("asset", cfg.AssetID).
		Str("data_dir", cfg.DataDir).
		Msg("TriVault started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}

func registerJob(sched *scheduler.Scheduler, schedule string, job scheduler.Job, log zerolog.Logger) {
	if err := sched.AddJob(schedule, job); err != nil {
		log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
	}
}
