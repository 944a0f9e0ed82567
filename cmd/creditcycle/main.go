// Command creditcycle runs the monthly credit cycle once. It is meant to be
// invoked by an external scheduler shortly after the start of each month.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitclass/internal/audit"
	"fitclass/internal/config"
	"fitclass/internal/credit"
	"fitclass/internal/cycle"
	"fitclass/internal/db"
	"fitclass/internal/events"
	"fitclass/internal/logger"
	"fitclass/internal/metrics"
)

func main() {
	runAtFlag := flag.String("run-at", "", "RFC3339 instant to run the cycle for (default: now)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Init()
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.InitWithLevel(cfg.LogLevel)

	runAt := time.Now()
	if *runAtFlag != "" {
		runAt, err = time.Parse(time.RFC3339, *runAtFlag)
		if err != nil {
			logger.Fatalf("Invalid -run-at: %v", err)
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("Invalid timezone: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uow, err := db.NewUnitOfWork(ctx, database, db.Mode(cfg.TxMode))
	if err != nil {
		logger.Fatalf("Failed to set up unit of work: %v", err)
	}
	metrics.SetUnitOfWorkMode(string(uow.Mode()))

	job := cycle.NewJob(uow, credit.NewRepository, events.NewDispatcher(audit.NewSink(database), nil), cycle.Config{
		Location:    loc,
		Concurrency: cfg.CycleConcurrency,
	})

	report, err := job.Run(ctx, runAt)
	if err != nil {
		logger.Fatalf("Credit cycle failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("Failed to write report", "error", err)
	}

	if report.Status() != "ok" {
		os.Exit(2)
	}
}
