package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spacesaver/coordinator/internal/catalog"
	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/store"
)

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	var entries []*model.Entry
	s.Store.View(func(doc *model.Document) { entries = doc.Entries })
	writeJSON(w, http.StatusOK, entries)
}

type createEntryRequest struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	ArgsExtra string `json:"argsExtra"`
	Notes     string `json:"notes"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeBadRequest(w, "path is required")
		return
	}

	now := s.now()
	entry := &model.Entry{
		ID:        "ent_" + uuid.NewString()[:10],
		Name:      req.Name,
		Path:      req.Path,
		ArgsExtra: req.ArgsExtra,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.Store.Mutate(func(doc *model.Document) error {
		doc.Entries = append(doc.Entries, entry)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type patchEntryRequest struct {
	Name      *string `json:"name"`
	ArgsExtra *string `json:"argsExtra"`
	Notes     *string `json:"notes"`
}

// handlePatchEntry applies a partial update to an Entry's mutable display fields; the path is
// immutable after creation (changing it would orphan every Item's fingerprinting against it).
func (s *Server) handlePatchEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entryID")
	var body patchEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	var result *model.Entry
	err := s.Store.Mutate(func(doc *model.Document) error {
		e := store.FindEntry(doc, id)
		if e == nil {
			return nil
		}
		if body.Name != nil {
			e.Name = *body.Name
		}
		if body.ArgsExtra != nil {
			e.ArgsExtra = *body.ArgsExtra
		}
		if body.Notes != nil {
			e.Notes = *body.Notes
		}
		e.UpdatedAt = s.now()
		cp := *e
		result = &cp
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeNotFound(w, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entryID")
	var found *model.Entry
	s.Store.View(func(doc *model.Document) {
		if e := store.FindEntry(doc, id); e != nil {
			cp := *e
			found = &cp
		}
	})
	if found == nil {
		writeNotFound(w, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entryID")
	var existed bool
	err := s.Store.Mutate(func(doc *model.Document) error {
		if store.FindEntry(doc, id) == nil {
			return nil
		}
		existed = true
		store.RemoveEntry(doc, id)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !existed {
		writeNotFound(w, "entry not found")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleScanEntry triggers an async catalog scan of the entry's root directory.
func (s *Server) handleScanEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entryID")
	var exists bool
	s.Store.View(func(doc *model.Document) { exists = store.FindEntry(doc, id) != nil })
	if !exists {
		writeNotFound(w, "entry not found")
		return
	}

	scanner := &catalog.Scanner{Store: s.Store, Prober: s.Prober}
	go func() {
		_ = scanner.Run(context.Background(), id)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scanning"})
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	var status model.ScanStatus
	s.Store.View(func(doc *model.Document) { status = doc.ScanStatus })
	writeJSON(w, http.StatusOK, status)
}
