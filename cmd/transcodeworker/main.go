// Command transcodeworker polls a coordinator for transcode work and executes it locally,
// reporting progress and results back over the coordination protocol. Grounded on worker.py's
// main() and the teacher's cmd/xg2g/main.go flag/signal composition.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/spacesaver/coordinator/internal/httpclient"
	"github.com/spacesaver/coordinator/internal/statusfile"
	"github.com/spacesaver/coordinator/internal/worker"
	"github.com/spacesaver/coordinator/internal/workerconfig"
	"github.com/spacesaver/coordinator/internal/xlog"
)

func main() {
	var (
		configPath = flag.String("config", "worker.json", "path to the worker's local configuration file")
		statusPath = flag.String("status", "worker-status.json", "path to the worker's local status file")
		once       = flag.Bool("once", false, "claim and run at most one job, then exit")
		logLevel   = flag.String("log-level", "info", "log level: debug, info, warn, error")
		noColor    = flag.Bool("no-color", false, "disable colored terminal output")
	)
	flag.Parse()

	log := xlog.New(xlog.Config{Level: *logLevel, Service: "transcodeworker", Version: version()})

	cfgWatcher, err := workerconfig.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load worker config")
	}
	cfg := cfgWatcher.Current()

	if cfg.CacheDir == "" {
		log.Fatal().Msg("worker config is missing a cacheDir")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create cache dir")
	}

	client := httpclient.New(cfg.CoordinatorURL)
	statusWriter := statusfile.NewWriter(*statusPath)

	if *noColor {
		color.NoColor = true
	}
	term := worker.NewTermLog()

	rt := &worker.Runtime{
		Config:   cfgWatcher,
		Client:   client,
		Status:   statusWriter,
		Term:     term,
		WorkerID: worker.WorkerID(cfg),
		Once:     *once,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("coordinator", cfg.CoordinatorURL).Str("workerId", rt.WorkerID).
		Bool("once", *once).Msg("worker starting")

	if err := rt.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker runtime exited with error")
	}
	log.Info().Msg("worker stopped")
}

func version() string {
	if v := os.Getenv("SPACESAVER_VERSION"); v != "" {
		return v
	}
	return "dev"
}
