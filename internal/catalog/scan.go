package catalog

import (
	"context"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/google/uuid"

	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/store"
)

// Scanner walks an Entry's root directory, probes each discovered file, and upserts the resulting
// Items into the store, reporting progress through the document's ScanStatus singleton.
type Scanner struct {
	Store   *store.Store
	Prober  Prober
	// ProbeRateLimit bounds probes/sec during a scan so a freshly registered large root does not
	// fork an unbounded burst of ffprobe subprocesses; zero disables limiting (domain-stack
	// addition not present in the original Python, which probed synchronously one file at a
	// time).
	ProbeRateLimit rate.Limit
}

// Run scans entryID's root directory to completion, or until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context, entryID string) error {
	var entry model.Entry
	var found bool
	s.Store.View(func(doc *model.Document) {
		if e := store.FindEntry(doc, entryID); e != nil {
			entry = *e
			found = true
		}
	})
	if !found {
		return nil
	}

	files, err := ListMediaFiles(entry.Path)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_ = s.Store.Mutate(func(doc *model.Document) error {
		doc.ScanStatus = model.ScanStatus{
			Active:    true,
			EntryID:   entry.ID,
			EntryName: entry.Name,
			Total:     len(files),
			Done:      0,
			StartedAt: &now,
			UpdatedAt: &now,
		}
		return nil
	})

	var limiter *rate.Limiter
	if s.ProbeRateLimit > 0 {
		limiter = rate.NewLimiter(s.ProbeRateLimit, 1)
	}

	for i, path := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		s.scanOne(ctx, entry.ID, path)

		updated := time.Now().UTC()
		_ = s.Store.Mutate(func(doc *model.Document) error {
			doc.ScanStatus.Done = i + 1
			doc.ScanStatus.CurrentPath = path
			doc.ScanStatus.UpdatedAt = &updated
			return nil
		})
	}

	finished := time.Now().UTC()
	return s.Store.Mutate(func(doc *model.Document) error {
		doc.ScanStatus.Active = false
		doc.ScanStatus.FinishedAt = &finished
		doc.ScanStatus.CurrentPath = ""
		return nil
	})
}

func (s *Scanner) scanOne(ctx context.Context, entryID, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	fp := Fingerprint(info.Size(), info.ModTime().Unix())

	var existing *model.Item
	s.Store.View(func(doc *model.Document) {
		if it := store.FindItemByPath(doc, entryID, path); it != nil {
			cp := *it
			existing = &cp
		}
	})
	if existing != nil && existing.SourceFingerprint == fp {
		return // unchanged since last scan; no re-probe needed
	}

	probe, _ := s.Prober.Probe(ctx, path)
	now := time.Now().UTC()

	_ = s.Store.Mutate(func(doc *model.Document) error {
		it := store.FindItemByPath(doc, entryID, path)
		if it == nil {
			it = &model.Item{
				ID:      "item_" + uuid.NewString()[:10],
				EntryID: entryID,
				Path:    path,
				Status:  model.ItemIdle,
			}
			doc.Items = append(doc.Items, it)
		}
		it.SizeBytes = info.Size()
		it.MtimeSec = info.ModTime().Unix()
		it.SourceFingerprint = fp
		it.Probe = probe
		it.ScanAt = now
		it.Ready = it.Status != model.ItemProcessing
		it.Ratio = ComputeRatio(probe.DurationSec, probe.Height, it.SizeBytes,
			doc.Config.TargetMbPerMinByHeight)
		return nil
	})
}
