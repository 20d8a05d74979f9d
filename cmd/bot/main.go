package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cexio-trade-bot-go/internal/cexio"
	"cexio-trade-bot-go/internal/config"
	"cexio-trade-bot-go/internal/database"
	"cexio-trade-bot-go/internal/ledger"
	"cexio-trade-bot-go/internal/lock"
	"cexio-trade-bot-go/internal/logger"
	"cexio-trade-bot-go/internal/notify"
	"cexio-trade-bot-go/internal/trader"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.File)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Initialize CEX.IO REST client
	restClient := cexio.NewRestClient(&cfg.Cexio, log)

	// Notification backend
	notifier, err := notify.NewNotifier(&cfg.Notify, log)
	if err != nil {
		log.Fatal("Failed to initialize notifier", zap.Error(err))
	}

	// Pair lock: Redis when configured, in-process otherwise
	var locker lock.Locker
	if cfg.Redis.Addr != "" {
		locker = lock.NewRedisLocker(&cfg.Redis)
		log.Info("Using Redis pair lock", zap.String("addr", cfg.Redis.Addr))
	} else {
		locker = lock.NewLocalLocker()
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Initialize and run the trading engine
	engine := trader.NewEngine(log, &cfg, restClient, ledger.New(db), notifier, locker)

	apiServer := trader.NewAPIServer(engine, log)
	apiServer.Start()

	engine.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server cleanly", zap.Error(err))
	}

	log.Info("Bot has been shut down.")
}
