package api

import (
	"encoding/json"
	"net/http"

	"github.com/spacesaver/coordinator/internal/catalog"
	"github.com/spacesaver/coordinator/internal/model"
)

type targetSampleRequest struct {
	Height   int     `json:"height"`
	MbPerMin float64 `json:"mbPerMin"`
}

// handleAddTargetSample folds an observed (height, mbPerMin) sample into the per-height target
// average, grounded on app.py's add_target_sample.
func (s *Server) handleAddTargetSample(w http.ResponseWriter, r *http.Request) {
	var body targetSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Height <= 0 {
		writeBadRequest(w, "height and mbPerMin are required")
		return
	}
	var result catalog.TargetSampleResult
	err := s.Store.Mutate(func(doc *model.Document) error {
		result = catalog.IngestTargetSample(&doc.Config, body.Height, body.MbPerMin)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleClearTargetSamples discards the observed-sample history and restores the static target
// defaults, grounded on app.py's clear_target_samples.
func (s *Server) handleClearTargetSamples(w http.ResponseWriter, r *http.Request) {
	err := s.Store.Mutate(func(doc *model.Document) error {
		catalog.ClearTargetSamples(&doc.Config)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
