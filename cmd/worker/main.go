package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/budget-tracker/internal/app"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/budget-tracker/internal/logger"
)

// The worker imports a batch of exports (gs:// URIs or local paths) through
// the job queue, with retries, and exits once every job has finished.
func main() {
	cfg, err := config.Load()
	log := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	userID := flag.String("user", "", "User the transactions belong to")
	bank := flag.String("bank", "", "Bank hint used for column mapping")
	workers := flag.Int("workers", 4, "Concurrent import jobs")
	retries := flag.Int("retries", jobs.DefaultMaxRetries, "Retries per job")
	flag.Parse()

	if *userID == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: worker -user ID [-bank NAME] SOURCE...")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise application")
	}
	defer a.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(flag.NArg(), jobStore, inmemory.WithWorkers(*workers), inmemory.WithLogger(log))

	if err := jobQueue.Start(ctx, a.ImportJobHandler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}
	log.Info().Int("jobs", flag.NArg()).Msg("Worker service started")

	for _, source := range flag.Args() {
		job := &jobs.ImportJob{UserID: *userID, GCSURI: source, Bank: *bank, MaxRetries: *retries}
		if err := jobQueue.PublishImport(ctx, job); err != nil {
			log.Fatal().Err(err).Str("source", source).Msg("Failed to enqueue import")
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := waitForJobs(ctx, jobStore, *userID, flag.NArg(), quit)
	if !done {
		log.Info().Msg("Shutting down worker service...")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	failed := printJobs(jobStore, *userID)
	log.Info().Int("failed", failed).Msg("Worker service exited")
	if failed > 0 || !done {
		os.Exit(1)
	}
}

// waitForJobs polls the store until all n jobs reached a final status. It
// returns false when interrupted first.
func waitForJobs(ctx context.Context, store jobs.JobStore, userID string, n int, quit <-chan os.Signal) bool {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return false
		case <-ticker.C:
			list, err := store.ListJobs(ctx, jobs.JobFilter{UserID: userID})
			if err != nil {
				continue
			}
			finished := 0
			for _, j := range list {
				if j.Status == jobs.JobStatusCompleted || j.Status == jobs.JobStatusFailed {
					finished++
				}
			}
			if finished >= n {
				return true
			}
		}
	}
}

func printJobs(store jobs.JobStore, userID string) int {
	list, err := store.ListJobs(context.Background(), jobs.JobFilter{UserID: userID})
	if err != nil {
		return 0
	}
	failed := 0
	for _, j := range list {
		line := fmt.Sprintf("%-9s %s", j.Status, j.GCSURI)
		if j.Report != nil {
			line += fmt.Sprintf("  parsed=%d inserted=%d duplicates=%d", j.Report.Parsed, j.Report.Inserted, j.Report.Duplicates)
		}
		if j.Status != jobs.JobStatusCompleted {
			failed++
			line += "  error: " + j.Error
		}
		fmt.Println(line)
	}
	return failed
}
