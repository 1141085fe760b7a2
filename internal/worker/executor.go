package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spacesaver/coordinator/internal/httpclient"
	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/statusfile"
	"github.com/spacesaver/coordinator/internal/workerconfig"
	"github.com/spacesaver/coordinator/internal/xerrors"
)

// Executor runs one job's full lifecycle (a)-(i), grounded on worker.py's process_job:
//
//	(a) clean the cache dir
//	(b) copy the source into the cache with cancel-poll + ETA reporting
//	(c) spawn the encoder subprocess against the cached copy
//	(d) stream its stdout/stderr, parsing progress/ETA, posting throttled progress
//	(e) keep a bounded rolling log tail
//	(f) on success, atomically install the result over the source (or at a new extension)
//	(g) remux to tag encoded_by/comment metadata
//	(h) update the item's path if the extension changed
//	(i) clean the cache dir again
type Executor struct {
	Client     *httpclient.Client
	CacheDir   string
	EncoderBin string
	FFmpegBin  string
	Status     *statusfile.Writer
	Term       *TermLog
}

type jobCancelChecker struct {
	client *httpclient.Client
	jobID  string
}

func (c jobCancelChecker) IsCancelRequested(ctx context.Context) (bool, error) {
	return c.client.IsCancelRequested(ctx, c.jobID)
}

// Run executes one claimed job end to end. An error from the start call itself is returned
// without a Fail report; any later error is already reported to the coordinator via Fail before
// Run returns, matching worker.py's top-level try/except around
// process_job that always calls the fail endpoint on an unhandled exception.
func (e *Executor) Run(ctx context.Context, job model.Job, item model.Item, args string) error {
	jobID := job.ID
	if err := e.Client.StartJob(ctx, jobID); err != nil {
		return err
	}

	if err := e.runInner(ctx, jobID, item, args); err != nil {
		reason := err.Error()
		if e.Term != nil {
			e.Term.Failed(jobID, reason)
		}
		_ = e.Client.Fail(ctx, jobID, httpclient.FailRequest{Reason: reason})
		if e.Status != nil {
			_ = e.Status.Write(statusfile.Status{
				WorkerID: job.WorkerID, JobID: jobID, State: "error", LastError: reason,
			})
		}
		return err
	}
	return nil
}

func (e *Executor) runInner(ctx context.Context, jobID string, item model.Item, args string) error {
	if err := CleanCacheDir(e.CacheDir); err != nil {
		return xerrors.Wrap(xerrors.KindIOFailure, "clean cache dir", err)
	}

	cancel := jobCancelChecker{client: e.Client, jobID: jobID}
	cachedSrc := filepath.Join(e.CacheDir, "src"+DetectExtension(item.Path))

	e.writeStatus(jobID, item.Path, "copying", 0, 0, "")
	if err := CopyWithCancel(ctx, item.Path, cachedSrc, cancel, func(frac float64, eta int64) {
		e.writeStatus(jobID, item.Path, "copying", frac*100, eta, "")
	}); err != nil {
		return err
	}

	outputPath := EnsureMKVExtension(filepath.Join(e.CacheDir, "out"))
	argv := splitEncoderArgs(e.EncoderBin, cachedSrc, outputPath, args)

	e.writeStatus(jobID, item.Path, "encoding", 0, 0, "")
	if err := e.encode(ctx, jobID, item.Path, argv); err != nil {
		return err
	}

	if err := RemuxWithMetadata(ctx, e.FFmpegBin, outputPath); err != nil {
		return err
	}

	finalPath := item.Path
	if DetectExtension(outputPath) != DetectExtension(item.Path) {
		finalPath = strings.TrimSuffix(item.Path, filepath.Ext(item.Path)) + filepath.Ext(outputPath)
	}

	e.writeStatus(jobID, item.Path, "installing", 100, 0, "")
	if err := AtomicInstall(outputPath, finalPath); err != nil {
		return err
	}
	if finalPath != item.Path {
		if err := os.Remove(item.Path); err != nil && !os.IsNotExist(err) {
			return xerrors.Wrap(xerrors.KindIOFailure, "remove original after extension change", err)
		}
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return xerrors.Wrap(xerrors.KindIOFailure, "stat installed result", err)
	}

	if err := e.Client.Complete(ctx, jobID, httpclient.CompleteRequest{
		NewPath:      finalPath,
		NewSizeBytes: info.Size(),
		NewMtimeSec:  info.ModTime().Unix(),
		NewProbe:     item.Probe, // the pre-transcode probe; the coordinator stores it as-is and does not re-probe
	}); err != nil {
		return err
	}

	if e.Term != nil {
		e.Term.Completed(jobID, item.Ratio.SavingsPct)
	}
	return CleanCacheDir(e.CacheDir)
}

func (e *Executor) encode(ctx context.Context, jobID, itemPath string, argv []string) error {
	encCtx, stopEncoder := context.WithCancel(ctx)
	defer stopEncoder()
	progressCh, errCh := RunEncoder(encCtx, argv)
	throttle := NewThrottle(2 * time.Second)
	cancelPoll := NewThrottle(time.Second)
	cancel := jobCancelChecker{client: e.Client, jobID: jobID}
	var tail []string

	for p := range progressCh {
		if p.Line != "" {
			tail = append(tail, p.Line)
		}
		if cancelPoll.Allow(time.Now()) {
			if cancelled, err := cancel.IsCancelRequested(ctx); err == nil && cancelled {
				stopEncoder()
			}
		}
		if e.Term != nil {
			e.Term.Progress(jobID, p.Pct, p.ETASec)
		}
		if throttle.Allow(time.Now()) {
			logTail := TailLog(tail, 25, 2000)
			e.writeStatus(jobID, itemPath, "encoding", p.Pct, p.ETASec, logTail)
			_ = e.Client.ReportProgress(ctx, jobID, httpclient.ProgressRequest{
				Pct: p.Pct, ETASec: p.ETASec, LogTail: logTail,
			})
		}
	}

	if err := <-errCh; err != nil {
		return err
	}
	return nil
}

func (e *Executor) writeStatus(jobID, itemPath, state string, pct float64, etaSec int64, logTail string) {
	if e.Status == nil {
		return
	}
	_ = e.Status.Write(statusfile.Status{
		JobID: jobID, ItemPath: itemPath, State: state, Pct: pct, ETASec: etaSec, LogTail: logTail,
	})
}

// splitEncoderArgs builds the encoder subprocess argv from the configured baseline args string
// plus the fixed input/output flags, grounded on worker.py's split_args (shlex-style whitespace
// split; the coordinator's args string is not expected to carry quoted segments of its own).
func splitEncoderArgs(encoderBin, src, dst, args string) []string {
	argv := []string{encoderBin, "-i", src}
	if strings.TrimSpace(args) != "" {
		argv = append(argv, strings.Fields(args)...)
	}
	argv = append(argv, "-o", dst)
	return argv
}

// WorkerID synthesizes a stable worker id from the host's configured name, falling back to the
// hostname, grounded on worker.py's _ensure_worker_identity.
func WorkerID(cfg workerconfig.Config) string {
	if cfg.WorkerID != "" {
		return cfg.WorkerID
	}
	if host, err := os.Hostname(); err == nil {
		return "worker_" + host
	}
	return "worker_unknown"
}
