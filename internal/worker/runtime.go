package worker

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spacesaver/coordinator/internal/httpclient"
	"github.com/spacesaver/coordinator/internal/statusfile"
	"github.com/spacesaver/coordinator/internal/workerconfig"
)

// Runtime drives the worker's poll loop and heartbeat timer. Grounded on worker.py's main(),
// which starts a poll loop plus a heartbeat thread and a config-reload thread as bare daemon
// threads; here the same three responsibilities are supervised by an errgroup.Group so that a
// panic or unexpected exit in any one of them tears down the others instead of leaking a
// zombie goroutine, per SPEC_FULL.md's ambient-stack note on replacing daemon threads.
type Runtime struct {
	Config   *workerconfig.Watcher
	Client   *httpclient.Client
	Status   *statusfile.Writer
	Term     *TermLog
	WorkerID string

	// Once, if true, claims and runs at most one job then returns instead of looping forever.
	Once bool
}

// Run blocks until ctx is cancelled or (with Once set) a single job has been attempted. It never
// returns a non-nil error for ordinary shutdown via context cancellation.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.heartbeatLoop(ctx) })
	g.Go(func() error { return r.configReloadLoop(ctx) })
	g.Go(func() error {
		err := r.pollLoop(ctx)
		stop() // the poll loop only returns on shutdown or after a Once job; end the other loops too
		return err
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runtime) pollLoop(ctx context.Context) error {
	for {
		cfg := r.Config.Current()
		did, err := r.pollOnce(ctx, cfg)
		if err != nil && r.Term != nil {
			r.Term.Failed("poll", err.Error())
		}
		if r.Once && did {
			return nil
		}

		interval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
		if interval <= 0 {
			interval = 5 * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// pollOnce claims at most one job and, if work was available, runs it to completion. It reports
// whether a job was attempted at all (regardless of success), which Once uses to decide when to
// stop looping.
func (r *Runtime) pollOnce(ctx context.Context, cfg workerconfig.Config) (bool, error) {
	withinHours := WithinWorkHours(cfg.WorkWindows, time.Now())
	if r.Status != nil {
		_ = r.Status.Write(statusfile.Status{WorkerID: r.WorkerID, State: "polling"})
	}

	resp, err := r.Client.Claim(ctx, httpclient.ClaimRequest{
		WorkerID:        r.WorkerID,
		WorkerName:      cfg.WorkerName,
		WorkWindows:     cfg.WorkWindows,
		WithinWorkHours: withinHours,
	})
	if err != nil {
		return false, err
	}
	if !resp.HasWork || resp.Job == nil || resp.Item == nil {
		if r.Status != nil {
			_ = r.Status.Write(statusfile.Status{WorkerID: r.WorkerID, State: "idle"})
		}
		return false, nil
	}

	if r.Term != nil {
		r.Term.Claimed(resp.Job.ID, resp.Item.Path)
	}

	exec := &Executor{
		Client:     r.Client,
		CacheDir:   cfg.CacheDir,
		EncoderBin: cfg.EncoderPath,
		Status:     r.Status,
		Term:       r.Term,
	}
	err = exec.Run(ctx, *resp.Job, *resp.Item, resp.Args)
	return true, err
}

func (r *Runtime) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Client.WorkerHeartbeat(ctx, r.WorkerID); err != nil && r.Term != nil {
				r.Term.Failed("heartbeat", err.Error())
			}
		}
	}
}

// configReloadLoop polls the local config file's mtime rather than using an fsnotify watch,
// matching worker.py's reload_config_if_changed polling cadence.
func (r *Runtime) configReloadLoop(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Config.ReloadIfChanged(); err != nil && r.Term != nil {
				r.Term.Failed("config reload", err.Error())
			}
		}
	}
}
