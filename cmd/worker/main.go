package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"licitacao/internal/config"
	"licitacao/internal/database"
	"licitacao/internal/logger"
	"licitacao/internal/service"
	"licitacao/internal/worker"

	"go.uber.org/zap"
)

// The worker keeps process statuses current: deadlines pass without anyone
// touching a process, so overdue has to be derived on a schedule.
func main() {
	envFile := flag.String("env", "configs/.env", "dotenv file to load")
	once := flag.Bool("once", false, "run a single refresh pass and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewConnection(cfg.Database, cfg.Logging.Development)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statusService := service.NewStatusService(service.NewStores(db), service.Options{Location: cfg.Calendar.Location()})
	refresher := worker.NewStatusRefresher(statusService, log)

	if *once {
		if _, err := refresher.RunOnce(ctx); err != nil {
			log.Fatal("refresh failed", zap.Error(err))
		}
		return
	}

	if err := refresher.Start(ctx, cfg.Worker.StatusRefreshCron); err != nil {
		log.Fatal("failed to start status refresher", zap.Error(err))
	}
	<-ctx.Done()
	refresher.Stop()
}
