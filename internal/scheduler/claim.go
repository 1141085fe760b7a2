package scheduler

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/store"
	"github.com/spacesaver/coordinator/internal/xerrors"
)

// ClaimRequest is what a worker presents when asking for work.
type ClaimRequest struct {
	WorkerID        string
	WorkerName      string
	WorkWindows     []model.WorkWindow
	WithinWorkHours bool
}

// ClaimResult is returned to a worker when a Job was claimed.
type ClaimResult struct {
	Job      model.Job
	Item     model.Item
	Args     string
	HasWork  bool
}

// Claim runs the entire claim algorithm under the document's lock: stale reconciliation, worker
// upsert, first-ready-queued-item scan, entry arg composition, job creation, and item transition
// to processing. Grounded on app.py's claim_job handler.
func Claim(doc *model.Document, req ClaimRequest, now time.Time) (ClaimResult, error) {
	ReconcileStale(doc, now)
	upsertWorker(doc, req, now)

	if !req.WithinWorkHours {
		return ClaimResult{}, nil
	}

	var candidate *model.Item
	for _, it := range doc.Items {
		if it.Status == model.ItemQueued && it.Ready {
			candidate = it
			break
		}
	}
	if candidate == nil {
		return ClaimResult{}, nil
	}

	entry := store.FindEntry(doc, candidate.EntryID)
	args := doc.Config.BaselineArgs
	if entry != nil && strings.TrimSpace(entry.ArgsExtra) != "" {
		args = strings.TrimSpace(args + " " + entry.ArgsExtra)
	}

	job := &model.Job{
		ID:           "job_" + uuid.NewString()[:10],
		ItemID:       candidate.ID,
		WorkerID:     req.WorkerID,
		Status:       model.JobClaimed,
		ClaimedAt:    now,
		LastUpdateAt: now,
	}
	doc.Jobs = append(doc.Jobs, job)

	if err := TransitionItem(candidate, ItemEventClaim); err != nil {
		return ClaimResult{}, err
	}
	candidate.LastJobID = job.ID

	return ClaimResult{Job: *job, Item: *candidate, Args: args, HasWork: true}, nil
}

func upsertWorker(doc *model.Document, req ClaimRequest, now time.Time) {
	w := store.FindWorker(doc, req.WorkerID)
	if w == nil {
		w = &model.Worker{ID: req.WorkerID, Status: model.WorkerOnline}
		doc.Workers = append(doc.Workers, w)
	}
	w.Name = req.WorkerName
	w.Status = model.WorkerOnline
	w.LastHeartbeatAt = now
	w.WorkWindows = req.WorkWindows
	w.WithinWorkHours = req.WithinWorkHours
}

// Heartbeat refreshes a worker's liveness timestamp.
func Heartbeat(doc *model.Document, workerID string, now time.Time) error {
	w := store.FindWorker(doc, workerID)
	if w == nil {
		return xerrors.ErrNotFound
	}
	w.LastHeartbeatAt = now
	w.Status = model.WorkerOnline
	return nil
}

// StartJob transitions a claimed Job to running, the worker-reported start of actual encoding.
func StartJob(doc *model.Document, jobID string, now time.Time) error {
	j := store.FindJob(doc, jobID)
	if j == nil {
		return xerrors.ErrNotFound
	}
	if j.Status.IsTerminal() {
		return nil // tolerate a late/duplicate start on an already-finished job
	}
	if j.Status == model.JobRunning {
		j.LastUpdateAt = now
		return nil
	}
	if err := TransitionJob(j, JobEventStart); err != nil {
		return err
	}
	j.StartedAt = ptrTime(now)
	j.LastUpdateAt = now
	return nil
}

// ReportProgress merges a partial progress update into a running Job's progress record. Each
// field is optional: an omitted (nil) field preserves whatever was previously recorded, and a
// non-finite pct is dropped while etaSec/logTail still apply. Per §4.4, progress for an unknown
// or already-terminal job is dropped silently (the worker may be behind, reporting after a
// stale-job reconciliation already failed it).
func ReportProgress(doc *model.Document, jobID string, pct *float64, etaSec *int64, logTail *string, now time.Time) {
	j := store.FindJob(doc, jobID)
	if j == nil || j.Status.IsTerminal() {
		return
	}
	if pct != nil && !math.IsNaN(*pct) && !math.IsInf(*pct, 0) {
		j.Progress.Pct = *pct
	}
	if etaSec != nil {
		j.Progress.ETASec = *etaSec
	}
	if logTail != nil {
		tail := *logTail
		if len(tail) > model.MaxLogTailChars {
			tail = tail[:model.MaxLogTailChars] + "..."
		}
		j.Progress.LogTail = tail
	}
	j.LastUpdateAt = now
}

// RequestCancel sets the cancel-requested flag on jobID's Job. Monotonic: once set it is never
// cleared except by the job reaching a terminal state.
func RequestCancel(doc *model.Document, jobID string) error {
	j := store.FindJob(doc, jobID)
	if j == nil {
		return xerrors.ErrNotFound
	}
	j.CancelRequested = true
	return nil
}
