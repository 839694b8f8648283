package registry

import (
	"golang.org/x/xerrors"
)

// Entry pairs a document with the id it was registered under.
type Entry struct {
	ID       int       `json:"id"`
	Document *Document `json:"document"`
}

// Snapshot is the serializable form of a registry.
type Snapshot struct {
	LastID  int     `json:"last_id"`
	Entries []Entry `json:"entries"`
}

// Snapshot returns a deep copy of the registered documents in id order.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		LastID:  r.lastID,
		Entries: make([]Entry, 0, len(r.documents)),
	}
	for _, id := range sortedIDs(r.documents) {
		snap.Entries = append(snap.Entries, Entry{ID: id, Document: r.documents[id].clone()})
	}
	return snap
}

// Restore replaces the registry contents with snap. Ids are preserved and the
// next assigned id follows the largest one seen. Both caches become stale. On
// error the registry is left untouched.
func (r *Registry) Restore(snap Snapshot) error {
	documents := make(map[int]*Document, len(snap.Entries))
	addresses := make(map[string]int, len(snap.Entries))
	lastID := snap.LastID

	for _, entry := range snap.Entries {
		if entry.Document == nil || entry.ID <= 0 {
			return xerrors.Errorf("restore: invalid entry with id %d", entry.ID)
		}
		if _, dup := documents[entry.ID]; dup {
			return xerrors.Errorf("restore: duplicate document id %d", entry.ID)
		}
		if _, dup := addresses[entry.Document.Address]; dup {
			return xerrors.Errorf("restore: duplicate address %q", entry.Document.Address)
		}

		doc := entry.Document.clone()
		doc.id = entry.ID
		documents[doc.id] = doc
		addresses[doc.Address] = doc.id
		if doc.id > lastID {
			lastID = doc.id
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = documents
	r.addresses = addresses
	r.lastID = lastID
	r.index.invalidate()
	r.ranks.invalidate()
	return nil
}
