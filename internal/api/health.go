package api

import (
	"net/http"

	"github.com/spacesaver/coordinator/internal/catalog"
	"github.com/spacesaver/coordinator/internal/model"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ffprobeDiagnostic struct {
	Found bool   `json:"found"`
	Path  string `json:"path"`
}

// handleDiagnostics reports whether a usable ffprobe binary can be resolved under the current
// configuration, grounded on app.py's /api/diagnostics.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	var ffprobePath string
	s.Store.View(func(doc *model.Document) { ffprobePath = doc.Config.FFProbePath })

	prober, _ := s.Prober.(catalog.FFProbeProber)
	prober.FFProbePath = ffprobePath
	resolved := prober.ResolvePath()

	writeJSON(w, http.StatusOK, map[string]ffprobeDiagnostic{
		"ffprobe": {Found: resolved != "", Path: resolved},
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
