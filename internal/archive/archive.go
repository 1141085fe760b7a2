// Package archive durably retains Jobs evicted from the state document by pruning, so operators
// can still inspect transcode history beyond the document's in-memory cap.
package archive

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/xerrors"
)

// Archive is a badger-backed, append-only store of model.ArchivedJob records keyed by job id.
// Grounded on the teacher's internal/v3/store/badger_store.go KV-store pattern.
type Archive struct {
	db *badger.DB
}

// Open opens (creating if necessary) a badger database rooted at dir.
func Open(dir string) (*Archive, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindStoreIO, "open archive", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Put writes job to the archive, overwriting any prior entry for the same id. Never called
// again for the same id once a job has been archived in normal operation, since pruning only
// archives terminal jobs once.
func (a *Archive) Put(job model.ArchivedJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return xerrors.Wrap(xerrors.KindStoreIO, "marshal archived job", err)
	}
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(job.ID), data)
	})
	if err != nil {
		return xerrors.Wrap(xerrors.KindStoreIO, "write archived job", err)
	}
	return nil
}

// PutAll archives every job in jobs with the given archivedAt timestamp, continuing past
// individual failures and returning the first error encountered, if any (pruning should not
// abort entirely because one record failed to archive).
func (a *Archive) PutAll(jobs []*model.Job, archivedAt time.Time) error {
	var firstErr error
	for _, j := range jobs {
		rec := model.ArchivedJob{Job: *j, ArchivedAt: archivedAt}
		if err := a.Put(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// List returns archived jobs newest-first, up to limit (0 means unbounded), starting after the
// given cursor job id for pagination (empty cursor starts at the beginning).
func (a *Archive) List(limit int, cursor string) ([]model.ArchivedJob, error) {
	var all []model.ArchivedJob
	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec model.ArchivedJob
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				continue
			}
			all = append(all, rec)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindStoreIO, "iterate archive", err)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ArchivedAt.After(all[j].ArchivedAt) })

	if cursor != "" {
		for i, rec := range all {
			if rec.ID == cursor {
				all = all[i+1:]
				break
			}
		}
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Get returns the archived job with id, or (zero, false) if not found.
func (a *Archive) Get(id string) (model.ArchivedJob, bool, error) {
	var rec model.ArchivedJob
	var found bool
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return model.ArchivedJob{}, false, xerrors.Wrap(xerrors.KindStoreIO, "get archived job", err)
	}
	return rec, found, nil
}
