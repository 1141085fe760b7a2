// Command coordinatord runs the spacesaver coordinator: the single authoritative state document,
// its HTTP coordination API, and the background stale-job reconciliation/pruning loop. Grounded
// on the teacher's cmd/xg2g/main.go flag/server/signal composition.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/spacesaver/coordinator/internal/api"
	"github.com/spacesaver/coordinator/internal/archive"
	"github.com/spacesaver/coordinator/internal/catalog"
	"github.com/spacesaver/coordinator/internal/metrics"
	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/scheduler"
	"github.com/spacesaver/coordinator/internal/store"
	"github.com/spacesaver/coordinator/internal/xlog"
)

// reconcileInterval bounds how stale a claimed-but-abandoned job can get between HTTP-triggered
// reconciliation passes (Claim already reconciles inline on every call, per spec §4.3; this
// ticker exists for deployments where claim traffic is sparse or a worker fleet is briefly down
// entirely). Grounded on the teacher's internal/pipeline/worker/lease_expiry.go sweep loop.
const reconcileInterval = 30 * time.Second

// pruneInterval bounds how long terminal jobs accumulate before the two-phase prune policy runs.
const pruneInterval = 10 * time.Minute

func main() {
	var (
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		dataFile    = flag.String("data", "data/state.json", "path to the state document")
		archiveDir  = flag.String("archive-dir", "data/archive", "path to the job-history archive database")
		ffprobePath = flag.String("ffprobe-path", "", "override path to the ffprobe binary")
		logLevel    = flag.String("log-level", "info", "log level: debug, info, warn, error")
		logPretty   = flag.Bool("log-pretty", false, "use a human-readable console log writer")
	)
	flag.Parse()

	log := xlog.New(xlog.Config{Level: *logLevel, Service: "coordinatord", Version: version(), Pretty: *logPretty})

	st, err := store.Open(*dataFile)
	if err != nil {
		log.Fatal().Err(err).Msg("open state store")
	}

	arc, err := archive.Open(*archiveDir)
	if err != nil {
		log.Fatal().Err(err).Msg("open archive")
	}
	defer arc.Close()

	registry := metrics.NewRegistry()

	srv := &api.Server{
		Store:    st,
		Archive:  arc,
		Prober:   catalog.FFProbeProber{FFProbePath: *ffprobePath},
		Registry: registry,
		Log:      log,
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runReconcileLoop(ctx, st, log)
	go runPruneLoop(ctx, st, arc, log)

	go func() {
		log.Info().Str("addr", *addr).Msg("coordinator listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// runReconcileLoop periodically sweeps for stale jobs independent of HTTP traffic, so a claim
// drought (e.g. every worker offline) doesn't leave an abandoned job claimed indefinitely.
func runReconcileLoop(ctx context.Context, st *store.Store, log zerolog.Logger) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var reaped int
			err := st.Mutate(func(doc *model.Document) error {
				before := countNonTerminal(doc)
				scheduler.ReconcileStale(doc, time.Now().UTC())
				reaped = before - countNonTerminal(doc)
				return nil
			})
			if err != nil {
				log.Error().Err(err).Msg("background reconcile")
				continue
			}
			if reaped > 0 {
				metrics.JobsStaleReapedTotal.Add(float64(reaped))
				log.Warn().Int("reaped", reaped).Msg("reaped stale jobs")
			}
		}
	}
}

func countNonTerminal(doc *model.Document) int {
	n := 0
	for _, j := range doc.Jobs {
		if !j.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// runPruneLoop periodically applies the two-phase job-retention policy and archives whatever it
// evicts, so the document never grows unbounded across the coordinator's lifetime.
func runPruneLoop(ctx context.Context, st *store.Store, arc *archive.Archive, log zerolog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			var pruned []*model.Job
			err := st.Mutate(func(doc *model.Document) error {
				pruned = scheduler.PruneJobs(doc, now)
				return nil
			})
			if err != nil {
				log.Error().Err(err).Msg("background prune")
				continue
			}
			if len(pruned) == 0 {
				continue
			}
			if err := arc.PutAll(pruned, now); err != nil {
				log.Error().Err(err).Msg("archive pruned jobs")
			}
			metrics.JobsPrunedTotal.Add(float64(len(pruned)))
			log.Info().Int("pruned", len(pruned)).Msg("pruned terminal jobs")
		}
	}
}

func version() string {
	if v := os.Getenv("SPACESAVER_VERSION"); v != "" {
		return v
	}
	return "dev"
}
