package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/spacesaver/coordinator/internal/archive"
	"github.com/spacesaver/coordinator/internal/catalog"
	"github.com/spacesaver/coordinator/internal/store"
)

// Server is the coordinator's HTTP server, wiring the chi router to the Store, Archive, and
// Prober. Grounded on the teacher's internal/api/server_routes.go routes() composition.
type Server struct {
	Store    *store.Store
	Archive  *archive.Archive
	Prober   catalog.Prober
	Registry *prometheus.Registry
	Log      zerolog.Logger
	Now      func() time.Time
}

// Routes builds the full HTTP handler, matching spec §4.4/§6's endpoint surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(httprate.LimitByIP(200, time.Minute))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))

	r.Route("/entries", func(r chi.Router) {
		r.Get("/", s.handleListEntries)
		r.Post("/", s.handleCreateEntry)
		r.Route("/{entryID}", func(r chi.Router) {
			r.Get("/", s.handleGetEntry)
			r.Patch("/", s.handlePatchEntry)
			r.Delete("/", s.handleDeleteEntry)
			r.Post("/scan", s.handleScanEntry)
		})
	})

	r.Route("/items", func(r chi.Router) {
		r.Get("/", s.handleListItems)
		r.Route("/{itemID}", func(r chi.Router) {
			r.Get("/", s.handleGetItem)
			r.Delete("/", s.handleDeleteItem)
			r.Post("/ready", s.handleReadyItem)
			r.Post("/reset", s.handleResetItem)
			r.Post("/path", s.handleUpdateItemPath)
		})
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Get("/history", s.handleJobHistory)
		r.Post("/claim", s.handleClaim)
		r.Post("/cancel-all", s.handleCancelAllJobs)
		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleGetJob)
			r.Post("/start", s.handleStart)
			r.Post("/heartbeat", s.handleJobHeartbeat)
			r.Post("/progress", s.handleProgress)
			r.Post("/complete", s.handleComplete)
			r.Post("/fail", s.handleFail)
			r.Post("/cancel", s.handleCancel)
			r.Delete("/", s.handleDeleteJob)
		})
	})

	r.Route("/workers", func(r chi.Router) {
		r.Get("/", s.handleListWorkers)
		r.Post("/{workerID}/heartbeat", s.handleWorkerHeartbeat)
		r.Delete("/{workerID}", s.handleDeleteWorker)
	})

	r.Route("/config", func(r chi.Router) {
		r.Get("/", s.handleGetConfig)
		r.Put("/", s.handlePutConfig)
		r.Post("/", s.handlePutConfig)
	})

	r.Route("/targets", func(r chi.Router) {
		r.Post("/", s.handleAddTargetSample)
		r.Post("/clear", s.handleClearTargetSamples)
	})

	r.Get("/scan-status", s.handleScanStatus)
	r.Get("/diagnostics", s.handleDiagnostics)

	return otelhttp.NewHandler(r, "spacesaver-coordinator")
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http_request")
	})
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
