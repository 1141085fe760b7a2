package scheduler

import (
	"fmt"
	"time"

	"github.com/spacesaver/coordinator/internal/model"
)

// MaxJobAge is the maximum time a non-terminal Job may go without an update (lastUpdateAt, or
// claimedAt if it never updated) before it is considered stale, grounded on app.py's MAX_AGE_SEC.
const MaxJobAge = 180 * time.Second

// WorkerGrace is the maximum time a Worker may go without a heartbeat before the Jobs it holds
// are considered abandoned, grounded on app.py's WORKER_GRACE_SEC.
const WorkerGrace = 120 * time.Second

// ReconcileStale fails every non-terminal Job whose owning Worker has gone more than WorkerGrace
// without a heartbeat and whose age (time since lastUpdateAt, or claimedAt if it never updated)
// is at least MaxJobAge; a worker that is still heartbeating within WorkerGrace immunizes its job
// regardless of age. The owning Item mirrors the error and moves to failed with ready cleared.
// Idempotent: calling it repeatedly with no newly-stale jobs is a no-op. Grounded on app.py's
// cleanup_stale_jobs.
func ReconcileStale(doc *model.Document, now time.Time) {
	workerLastSeen := make(map[string]time.Time, len(doc.Workers))
	for _, w := range doc.Workers {
		workerLastSeen[w.ID] = w.LastHeartbeatAt
	}

	for _, j := range doc.Jobs {
		if j.Status.IsTerminal() {
			continue
		}

		if lastSeen, ok := workerLastSeen[j.WorkerID]; ok && now.Sub(lastSeen) <= WorkerGrace {
			continue
		}

		lastUpdate := j.LastUpdateAt
		if lastUpdate.IsZero() {
			lastUpdate = j.ClaimedAt
		}
		age := now.Sub(lastUpdate)
		if age < MaxJobAge {
			continue
		}

		j.Error = fmt.Sprintf("Stale job (no updates for %ds)", int64(age.Seconds()))
		_ = transitionJobTerminal(j, JobEventFail)
		j.FinishedAt = ptrTime(now)
		j.LastUpdateAt = now

		if it := findItemByID(doc, j.ItemID); it != nil && it.Status == model.ItemProcessing {
			it.LastError = j.Error
			it.LastJobID = j.ID
			_ = TransitionItem(it, ItemEventFail)
			it.Ready = false
		}
	}
}

// transitionJobTerminal fires event against j, tolerating the job already being terminal (a
// concurrent caller may have raced the same reconciliation pass).
func transitionJobTerminal(j *model.Job, event JobEvent) error {
	if j.Status.IsTerminal() {
		return nil
	}
	if j.Status == model.JobClaimed {
		_ = TransitionJob(j, JobEventStart)
	}
	return TransitionJob(j, event)
}

func findItemByID(doc *model.Document, id string) *model.Item {
	for _, it := range doc.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func ptrTime(t time.Time) *time.Time { return &t }

// PruneMaxRecent is the number of newest finished jobs kept unconditionally.
const PruneMaxRecent = 100

// PruneMaxExtended is the additional number of older finished jobs kept as history if they
// finished at least PruneExtendedAge ago.
const PruneMaxExtended = 50

// PruneExtendedAge bounds the second pruning tier.
const PruneExtendedAge = 24 * time.Hour

// PruneJobs applies the two-phase pruning policy resolved in DESIGN.md's Open Question section:
// the 100 most-recently-finished terminal Jobs are kept unconditionally; of the remainder, up to
// 50 more are kept if finished at least 24h ago. Anything pruned is returned so the caller can
// archive it before it is dropped from the document. Non-terminal Jobs are never pruned.
func PruneJobs(doc *model.Document, now time.Time) []*model.Job {
	var terminal []*model.Job
	var kept []*model.Job
	for _, j := range doc.Jobs {
		if j.Status.IsTerminal() {
			terminal = append(terminal, j)
		} else {
			kept = append(kept, j)
		}
	}

	sortJobsNewestFirst(terminal)

	var pruned []*model.Job
	extendedKept := 0
	for i, j := range terminal {
		switch {
		case i < PruneMaxRecent:
			kept = append(kept, j)
		case extendedKept < PruneMaxExtended && now.Sub(finishedTime(j)) >= PruneExtendedAge:
			kept = append(kept, j)
			extendedKept++
		default:
			pruned = append(pruned, j)
		}
	}

	doc.Jobs = kept
	return pruned
}

func finishedTime(j *model.Job) time.Time {
	if j.FinishedAt != nil {
		return *j.FinishedAt
	}
	return j.ClaimedAt
}

func sortJobsNewestFirst(jobs []*model.Job) {
	// Bounded by PruneMaxRecent+PruneMaxExtended between prune runs.
	for i := 1; i < len(jobs); i++ {
		for k := i; k > 0 && finishedTime(jobs[k]).After(finishedTime(jobs[k-1])); k-- {
			jobs[k], jobs[k-1] = jobs[k-1], jobs[k]
		}
	}
}
