package scheduler

import (
	"time"

	"github.com/spacesaver/coordinator/internal/catalog"
	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/store"
	"github.com/spacesaver/coordinator/internal/xerrors"
)

// CompleteReport is what a worker posts when a job finishes successfully.
type CompleteReport struct {
	NewPath      string // may differ from the Item's prior path (extension-change, per §9)
	NewSizeBytes int64
	NewMtimeSec  int64
	NewProbe     model.MediaProbe
}

// Complete finalizes jobID as done, refreshes its Item from the worker-reported post-transcode
// metadata, and folds the observed compression ratio into the running target-sample mean.
// Grounded on app.py's /jobs/{id}/complete handler and refresh_item_after_transcode. Completing
// an unknown job is NotFound and completing an already-terminal job is a Conflict: unlike
// progress, a duplicate or out-of-order complete/fail call must be visible to the caller rather
// than silently dropped.
func Complete(doc *model.Document, jobID string, report CompleteReport, now time.Time) error {
	j := store.FindJob(doc, jobID)
	if j == nil {
		return xerrors.ErrNotFound
	}
	if j.Status.IsTerminal() {
		return xerrors.Wrap(xerrors.KindConflict, "job already terminal", nil)
	}

	if err := transitionJobTerminal(j, JobEventComplete); err != nil {
		return err
	}
	j.FinishedAt = ptrTime(now)
	j.LastUpdateAt = now
	j.Progress.Pct = 100

	it := store.FindItem(doc, j.ItemID)
	if it == nil {
		return nil
	}

	oldSize := it.SizeBytes
	oldProbe := it.Probe

	it.Path = report.NewPath
	it.SizeBytes = report.NewSizeBytes
	it.MtimeSec = report.NewMtimeSec
	it.SourceFingerprint = catalog.Fingerprint(report.NewSizeBytes, report.NewMtimeSec)
	it.Probe = report.NewProbe
	it.ScanAt = now
	it.LastTranscodeAt = ptrTime(now)
	it.TranscodeCount++
	it.LastJobID = j.ID
	it.LastError = ""
	it.Ratio = catalog.ComputeRatio(report.NewProbe.DurationSec, report.NewProbe.Height,
		report.NewSizeBytes, doc.Config.TargetMbPerMinByHeight)

	if err := TransitionItem(it, ItemEventSucceed); err != nil {
		return err
	}
	it.Ready = false

	if oldProbe.DurationSec > 0 && oldSize > 0 {
		observedMbPerMin := (float64(report.NewSizeBytes) / (1024 * 1024)) / (oldProbe.DurationSec / 60.0)
		catalog.IngestTargetSample(&doc.Config, oldProbe.Height, observedMbPerMin)
	}

	return nil
}

// Fail finalizes jobID as failed and mirrors the error onto its Item, leaving it in status
// failed with ready cleared so it must be explicitly re-queued. Grounded on app.py's
// /jobs/{id}/fail handler.
func Fail(doc *model.Document, jobID, reason string, now time.Time) error {
	j := store.FindJob(doc, jobID)
	if j == nil {
		return xerrors.ErrNotFound
	}
	if j.Status.IsTerminal() {
		return xerrors.Wrap(xerrors.KindConflict, "job already terminal", nil)
	}

	j.Error = reason
	if err := transitionJobTerminal(j, JobEventFail); err != nil {
		return err
	}
	j.FinishedAt = ptrTime(now)
	j.LastUpdateAt = now

	if it := store.FindItem(doc, j.ItemID); it != nil {
		it.LastError = reason
		it.LastJobID = j.ID
		if it.Status == model.ItemProcessing {
			if err := TransitionItem(it, ItemEventFail); err != nil {
				return err
			}
			it.Ready = false
		}
	}
	return nil
}
