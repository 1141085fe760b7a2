package api

import (
	"encoding/json"
	"net/http"

	"github.com/spacesaver/coordinator/internal/model"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	var cfg model.Config
	s.Store.View(func(doc *model.Document) { cfg = doc.Config })
	writeJSON(w, http.StatusOK, cfg)
}

// handlePutConfig replaces the mutable tuning fields of Config; targetSamplesByHeight is derived
// from observed transcodes and is not settable through this endpoint.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req model.Config
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	err := s.Store.Mutate(func(doc *model.Document) error {
		doc.Config.BaselineArgs = req.BaselineArgs
		doc.Config.FFProbePath = req.FFProbePath
		doc.Config.TargetMbPerMinByHeight = req.TargetMbPerMinByHeight
		doc.Config.AudioLangList = req.AudioLangList
		doc.Config.SubtitleLangList = req.SubtitleLangList
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	var cfg model.Config
	s.Store.View(func(doc *model.Document) { cfg = doc.Config })
	writeJSON(w, http.StatusOK, cfg)
}
