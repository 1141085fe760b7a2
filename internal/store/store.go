// Package store holds the coordinator's single authoritative state document and the exclusive
// lock discipline around every mutation of it.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/xerrors"
)

// Store holds the in-memory document and guards every read-modify-persist cycle with a single
// exclusive lock, matching state.py's _LOCK / update_state discipline.
type Store struct {
	mu   sync.Mutex
	path string
	doc  *model.Document
}

// Open loads path into a Store, creating a default document if it does not yet exist, and
// backfilling any fields a prior version of the document may be missing (mirrors
// state.py's _read_state_no_lock backfill logic).
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.KindStoreIO, "create data dir", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.doc = model.NewDocument()
			if werr := s.persistLocked(); werr != nil {
				return nil, werr
			}
			return s, nil
		}
		return nil, xerrors.Wrap(xerrors.KindStoreIO, "read state file", err)
	}
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, xerrors.Wrap(xerrors.KindStoreCorrupt, "parse state file", err)
	}
	backfill(&doc)
	s.doc = &doc
	return s, nil
}

// backfill fills in zero-value fields a document written by an older version of this binary may
// be missing, the Go analog of state.py's per-key config backfill.
func backfill(doc *model.Document) {
	if doc.Version == 0 {
		doc.Version = 1
	}
	if doc.Config.TargetMbPerMinByHeight == nil {
		doc.Config.TargetMbPerMinByHeight = model.DefaultConfig().TargetMbPerMinByHeight
	}
	if doc.Config.TargetSamplesByHeight == nil {
		doc.Config.TargetSamplesByHeight = map[string][]float64{}
	}
	if doc.Config.AudioLangList == nil {
		doc.Config.AudioLangList = model.DefaultConfig().AudioLangList
	}
	if doc.Config.SubtitleLangList == nil {
		doc.Config.SubtitleLangList = model.DefaultConfig().SubtitleLangList
	}
	if doc.Config.BaselineArgs == "" {
		doc.Config.BaselineArgs = model.DefaultConfig().BaselineArgs
	}
	if doc.Entries == nil {
		doc.Entries = []*model.Entry{}
	}
	if doc.Items == nil {
		doc.Items = []*model.Item{}
	}
	if doc.Jobs == nil {
		doc.Jobs = []*model.Job{}
	}
	if doc.Workers == nil {
		doc.Workers = []*model.Worker{}
	}
}

// Mutate is the sole mutation primitive: it holds the exclusive lock for the duration of fn,
// persisting the document afterward if fn returns a nil error. fn must not retain the *Document
// pointer beyond its own call, and must not perform blocking I/O, matching §5's "no yielding
// while the lock is held" requirement.
func (s *Store) Mutate(fn func(*model.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.doc); err != nil {
		return err
	}
	return s.persistLocked()
}

// View runs fn with read access to the document under the same lock as Mutate (the document has
// no separate reader-writer lock; a single mutex is simpler and the hold times are short).
func (s *Store) View(fn func(*model.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return xerrors.Wrap(xerrors.KindStoreIO, "marshal state", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return xerrors.Wrap(xerrors.KindStoreIO, "persist state file", err)
	}
	return nil
}
