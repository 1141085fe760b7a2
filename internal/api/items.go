package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spacesaver/coordinator/internal/catalog"
	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/scheduler"
	"github.com/spacesaver/coordinator/internal/store"
	"github.com/spacesaver/coordinator/internal/xerrors"
)

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	var items []*model.Item
	entryID := r.URL.Query().Get("entryId")
	status := r.URL.Query().Get("status")
	s.Store.View(func(doc *model.Document) {
		for _, it := range doc.Items {
			if entryID != "" && it.EntryID != entryID {
				continue
			}
			if status != "" && string(it.Status) != status {
				continue
			}
			items = append(items, it)
		}
	})
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	var found *model.Item
	s.Store.View(func(doc *model.Document) {
		if it := store.FindItem(doc, id); it != nil {
			cp := *it
			found = &cp
		}
	})
	if found == nil {
		writeNotFound(w, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// handleReadyItem sets ready=true on an idle/done/failed item, queuing it for the next Claim.
// Per §7, toggling ready on a processing item is a Conflict (409); toggling it on an
// already-queued item is idempotent.
func (s *Server) handleReadyItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	var found, notFound bool
	err := s.Store.Mutate(func(doc *model.Document) error {
		it := store.FindItem(doc, id)
		if it == nil {
			notFound = true
			return nil
		}
		found = true
		if it.Status == model.ItemProcessing {
			return xerrors.Wrap(xerrors.KindConflict, "item is processing", nil)
		}
		it.Ready = true
		if it.Status == model.ItemQueued {
			return nil
		}
		event := scheduler.ItemEventEnqueue
		if it.Status != model.ItemIdle {
			event = scheduler.ItemEventRequeue
		}
		return scheduler.TransitionItem(it, event)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if notFound || !found {
		writeNotFound(w, "item not found")
		return
	}
	var result *model.Item
	s.Store.View(func(doc *model.Document) {
		if it := store.FindItem(doc, id); it != nil {
			cp := *it
			result = &cp
		}
	})
	writeJSON(w, http.StatusOK, result)
}

// handleResetItem forces a non-processing item back to idle with ready cleared, per §6's
// /items/{id}/reset.
func (s *Server) handleResetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	var result *model.Item
	err := s.Store.Mutate(func(doc *model.Document) error {
		it := store.FindItem(doc, id)
		if it == nil {
			return nil
		}
		if it.Status == model.ItemProcessing {
			return xerrors.Wrap(xerrors.KindConflict, "item is processing", nil)
		}
		if it.Status != model.ItemIdle {
			if err := scheduler.TransitionItem(it, scheduler.ItemEventReset); err != nil {
				return err
			}
		}
		it.Ready = false
		it.LastError = ""
		result = it
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeNotFound(w, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type updateItemPathRequest struct {
	Path string `json:"path"`
}

// handleUpdateItemPath sets an Item's path out of band (a manual rename, a moved share); the
// worker's own transcode flow reports an extension change through /complete instead. The
// fingerprint is recomputed from the stored size/mtime (the file is not stat'ed again) and the
// ratio is recomputed. The update is accepted in any item status, processing included.
func (s *Server) handleUpdateItemPath(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	var body updateItemPathRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Path == "" {
		writeBadRequest(w, "path is required")
		return
	}
	var result *model.Item
	err := s.Store.Mutate(func(doc *model.Document) error {
		it := store.FindItem(doc, id)
		if it == nil {
			return nil
		}
		it.Path = body.Path
		it.SourceFingerprint = catalog.Fingerprint(it.SizeBytes, it.MtimeSec)
		it.Ratio = catalog.ComputeRatio(it.Probe.DurationSec, it.Probe.Height, it.SizeBytes,
			doc.Config.TargetMbPerMinByHeight)
		result = it
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeNotFound(w, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDeleteItem removes any non-processing item explicitly; deleting a processing item is a
// Conflict, per §3's invariant that a processing Item cannot be deleted.
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	var found bool
	err := s.Store.Mutate(func(doc *model.Document) error {
		for i, it := range doc.Items {
			if it.ID != id {
				continue
			}
			if it.Status == model.ItemProcessing {
				return xerrors.Wrap(xerrors.KindConflict, "item is processing", nil)
			}
			found = true
			doc.Items = append(doc.Items[:i], doc.Items[i+1:]...)
			return nil
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeNotFound(w, "item not found")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
