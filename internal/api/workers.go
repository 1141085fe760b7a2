package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/scheduler"
)

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	var workers []*model.Worker
	s.Store.View(func(doc *model.Document) { workers = doc.Workers })
	writeJSON(w, http.StatusOK, workers)
}

func (s *Server) handleWorkerHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workerID")
	err := s.Store.Mutate(func(doc *model.Document) error {
		return scheduler.Heartbeat(doc, id, s.now())
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// handleDeleteWorker removes a registered Worker record; it does not touch any Job the worker may
// still hold (stale-job reconciliation handles an orphaned active job on its own).
func (s *Server) handleDeleteWorker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workerID")
	var found bool
	err := s.Store.Mutate(func(doc *model.Document) error {
		for i, wk := range doc.Workers {
			if wk.ID == id {
				found = true
				doc.Workers = append(doc.Workers[:i], doc.Workers[i+1:]...)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeNotFound(w, "worker not found")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
