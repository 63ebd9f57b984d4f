package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/use-agent/chartfetch/config"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	log := initLogger(cfg.Log)
	log.Info("chartfetch starting",
		"dataDir", cfg.Output.DataDir,
		"maxAttempts", cfg.Fetch.MaxAttempts,
		"headless", cfg.Browser.Headless,
	)

	// ── 3. Trap interrupts ───────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 4. Select jobs ───────────────────────────────────────────────
	names := os.Args[1:]
	if len(names) == 0 {
		names = jobOrder
	}

	// ── 5. Run jobs in order ─────────────────────────────────────────
	// A failed job is logged and the run moves on; the outcome of a run
	// is read from the logs and the files present under the data dir.
	failed := 0
	for _, name := range names {
		job, ok := jobs[name]
		if !ok {
			failed++
			log.Error("unknown job", "job", name, "known", jobOrder)
			continue
		}

		if err := runJob(ctx, name, job, cfg, log); err != nil {
			failed++
			log.Error("job failed", "job", name, "error", err)
		} else {
			log.Info("job succeeded", "job", name)
		}

		if ctx.Err() != nil {
			log.Warn("interrupt received, skipping remaining jobs")
			break
		}
	}

	log.Info("chartfetch finished", "jobs", len(names), "failed", failed)
}

// runJob runs one job with a panic fence, so a crash inside a scrape is
// contained to that job.
func runJob(ctx context.Context, name string, job jobFunc, cfg *config.Config, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	jobLog := log.With("job", name)
	jobLog.Info("job starting")
	return job(ctx, cfg, jobLog)
}

// initLogger configures slog based on the LogConfig and returns the logger
// handed down to every component.
func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
