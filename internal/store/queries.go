package store

import "github.com/spacesaver/coordinator/internal/model"

// FindEntry returns the Entry with id, or nil.
func FindEntry(doc *model.Document, id string) *model.Entry {
	for _, e := range doc.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// FindItem returns the Item with id, or nil.
func FindItem(doc *model.Document, id string) *model.Item {
	for _, it := range doc.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// FindItemByPath returns the Item at path under entryID, or nil.
func FindItemByPath(doc *model.Document, entryID, path string) *model.Item {
	for _, it := range doc.Items {
		if it.EntryID == entryID && it.Path == path {
			return it
		}
	}
	return nil
}

// FindJob returns the Job with id, or nil.
func FindJob(doc *model.Document, id string) *model.Job {
	for _, j := range doc.Jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// FindWorker returns the Worker with id, or nil.
func FindWorker(doc *model.Document, id string) *model.Worker {
	for _, w := range doc.Workers {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// ActiveJobForItem returns the non-terminal Job for itemID, or nil. Invariant: at most one
// non-terminal Job exists per Item at any time.
func ActiveJobForItem(doc *model.Document, itemID string) *model.Job {
	for _, j := range doc.Jobs {
		if j.ItemID == itemID && !j.Status.IsTerminal() {
			return j
		}
	}
	return nil
}

// RemoveEntry deletes the Entry with id, cascading delete to its Items and their Jobs.
func RemoveEntry(doc *model.Document, id string) {
	itemIDs := map[string]struct{}{}
	kept := doc.Items[:0:0]
	for _, it := range doc.Items {
		if it.EntryID == id {
			itemIDs[it.ID] = struct{}{}
			continue
		}
		kept = append(kept, it)
	}
	doc.Items = kept

	keptJobs := doc.Jobs[:0:0]
	for _, j := range doc.Jobs {
		if _, ok := itemIDs[j.ItemID]; ok {
			continue
		}
		keptJobs = append(keptJobs, j)
	}
	doc.Jobs = keptJobs

	keptEntries := doc.Entries[:0:0]
	for _, e := range doc.Entries {
		if e.ID == id {
			continue
		}
		keptEntries = append(keptEntries, e)
	}
	doc.Entries = keptEntries
}
