package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spacesaver/coordinator/internal/metrics"
	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/scheduler"
	"github.com/spacesaver/coordinator/internal/store"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var jobs []*model.Job
	s.Store.View(func(doc *model.Document) { jobs = doc.Jobs })
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	var found *model.Job
	s.Store.View(func(doc *model.Document) {
		if j := store.FindJob(doc, id); j != nil {
			cp := *j
			found = &cp
		}
	})
	if found == nil {
		writeNotFound(w, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

type claimRequestBody struct {
	WorkerID        string             `json:"workerId"`
	WorkerName      string             `json:"workerName"`
	WorkWindows     []model.WorkWindow `json:"workWindows"`
	WithinWorkHours bool               `json:"withinWorkHours"`
}

type claimResponseBody struct {
	HasWork bool       `json:"hasWork"`
	Job     *model.Job `json:"job,omitempty"`
	Item    *model.Item `json:"item,omitempty"`
	Args    string     `json:"args,omitempty"`
}

// handleClaim is the worker's entry point into the poll loop, grounded on app.py's /jobs/claim.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var body claimRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if body.WorkerID == "" {
		writeBadRequest(w, "workerId is required")
		return
	}

	var result scheduler.ClaimResult
	err := s.Store.Mutate(func(doc *model.Document) error {
		res, err := scheduler.Claim(doc, scheduler.ClaimRequest{
			WorkerID: body.WorkerID, WorkerName: body.WorkerName,
			WorkWindows: body.WorkWindows, WithinWorkHours: body.WithinWorkHours,
		}, s.now())
		result = res
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if !result.HasWork {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	metrics.JobsClaimedTotal.Inc()
	writeJSON(w, http.StatusOK, claimResponseBody{
		HasWork: true, Job: &result.Job, Item: &result.Item, Args: result.Args,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	err := s.Store.Mutate(func(doc *model.Document) error {
		return scheduler.StartJob(doc, id, s.now())
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// handleJobHeartbeat refreshes the liveness of the job's owning worker, so a worker that is
// mid-encode (no claim/progress call pending) still keeps WorkerGrace from expiring.
func (s *Server) handleJobHeartbeat(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var workerID string
	s.Store.View(func(doc *model.Document) {
		if j := store.FindJob(doc, jobID); j != nil {
			workerID = j.WorkerID
		}
	})
	if workerID == "" {
		writeNotFound(w, "job not found")
		return
	}
	err := s.Store.Mutate(func(doc *model.Document) error {
		return scheduler.Heartbeat(doc, workerID, s.now())
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type progressRequestBody struct {
	Pct     *float64 `json:"pct"`
	ETASec  *int64   `json:"etaSec"`
	LogTail *string  `json:"logTail"`
}

// handleProgress drops progress for an unknown or already-terminal job silently, per §4.4:
// out-of-order reports from a worker that is behind a stale-job reconciliation are expected.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	var body progressRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	_ = s.Store.Mutate(func(doc *model.Document) error {
		scheduler.ReportProgress(doc, id, body.Pct, body.ETASec, body.LogTail, s.now())
		return nil
	})
	writeJSON(w, http.StatusOK, nil)
}

type completeRequestBody struct {
	NewPath      string            `json:"newPath"`
	NewSizeBytes int64             `json:"newSizeBytes"`
	NewMtimeSec  int64             `json:"newMtimeSec"`
	NewProbe     model.MediaProbe  `json:"newProbe"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	var body completeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	err := s.Store.Mutate(func(doc *model.Document) error {
		return scheduler.Complete(doc, id, scheduler.CompleteReport{
			NewPath: body.NewPath, NewSizeBytes: body.NewSizeBytes,
			NewMtimeSec: body.NewMtimeSec, NewProbe: body.NewProbe,
		}, s.now())
	})
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.JobsCompletedTotal.Inc()
	writeJSON(w, http.StatusOK, nil)
}

type failRequestBody struct {
	Reason string `json:"reason"`
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	var body failRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	err := s.Store.Mutate(func(doc *model.Document) error {
		return scheduler.Fail(doc, id, body.Reason, s.now())
	})
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.JobsFailedTotal.Inc()
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	err := s.Store.Mutate(func(doc *model.Document) error {
		return scheduler.RequestCancel(doc, id)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type deleteJobResponseBody struct {
	OK              bool `json:"ok"`
	CancelRequested bool `json:"cancelRequested"`
}

// handleDeleteJob removes a terminal job outright; an active job instead has cancelRequested set
// and is left for the worker to observe and fail on its own, per §4.4.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	var found, active bool
	err := s.Store.Mutate(func(doc *model.Document) error {
		for i, j := range doc.Jobs {
			if j.ID != id {
				continue
			}
			found = true
			if !j.Status.IsTerminal() {
				active = true
				j.CancelRequested = true
				j.Progress.LogTail = "Cancel requested"
				j.LastUpdateAt = s.now()
				return nil
			}
			doc.Jobs = append(doc.Jobs[:i], doc.Jobs[i+1:]...)
			for _, it := range doc.Items {
				if it.LastJobID == id {
					it.LastJobID = ""
				}
			}
			return nil
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeNotFound(w, "job not found")
		return
	}
	if active {
		writeJSON(w, http.StatusOK, deleteJobResponseBody{OK: false, CancelRequested: true})
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type cancelAllResponseBody struct {
	OK              bool `json:"ok"`
	CancelRequested int  `json:"cancelRequested"`
}

// handleCancelAllJobs sets cancelRequested on every active job, grounded on app.py's
// cancel-all-jobs handler.
func (s *Server) handleCancelAllJobs(w http.ResponseWriter, r *http.Request) {
	active := 0
	err := s.Store.Mutate(func(doc *model.Document) error {
		now := s.now()
		for _, j := range doc.Jobs {
			if j.Status.IsTerminal() {
				continue
			}
			j.CancelRequested = true
			j.Progress.LogTail = "Cancel requested"
			j.LastUpdateAt = now
			active++
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelAllResponseBody{OK: true, CancelRequested: active})
}

func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeJSON(w, http.StatusOK, []model.ArchivedJob{})
		return
	}
	cursor := r.URL.Query().Get("cursor")
	jobs, err := s.Archive.List(100, cursor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
