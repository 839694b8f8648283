// Package store persists crawler state in a bbolt file. Every record is a
// JSON envelope carrying an identifier and a format version, so a file
// written by an incompatible build is rejected instead of misread.
package store

import (
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"

	"webcrawler/registry"
)

// ErrNoState is returned by LoadState when nothing has been saved yet.
var ErrNoState = xerrors.New("no saved state")

const backupFileName = "state.db"

var (
	stateBucket = []byte("state")

	registryKey = []byte("registry")
	localKey    = []byte("local_queue")
	globalKey   = []byte("global_queue")
	crawledKey  = []byte("crawled_pages")
)

// State is everything a crawl needs to resume.
type State struct {
	Registry registry.Snapshot
	Local    []string
	Global   []string
	Crawled  []string
}

// BoltStore keeps the latest State in a single bbolt file.
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens or creates the store at path.
func Open(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, xerrors.Errorf("open store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, xerrors.Errorf("create state bucket: %w", err)
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Path() string {
	return s.db.Path()
}

// SaveState replaces the stored state in a single transaction.
func (s *BoltStore) SaveState(state *State) error {
	records := []struct {
		key   []byte
		form  Form
		value interface{}
	}{
		{registryKey, RegistryForm, state.Registry},
		{localKey, QueueForm, nonNil(state.Local)},
		{globalKey, QueueForm, nonNil(state.Global)},
		{crawledKey, CrawledForm, nonNil(state.Crawled)},
	}

	encoded := make([][]byte, len(records))
	for i, r := range records {
		data, err := Encode(r.form, r.value)
		if err != nil {
			return err
		}
		encoded[i] = data
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(stateBucket)
		for i, r := range records {
			if err := bucket.Put(r.key, encoded[i]); err != nil {
				return xerrors.Errorf("save %s: %w", r.key, err)
			}
		}
		return nil
	})
}

// LoadState returns the stored state. Every record is decoded before
// anything is returned; a single bad record fails the whole load.
func (s *BoltStore) LoadState() (*State, error) {
	var raw [4][]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(stateBucket)
		for i, key := range [][]byte{registryKey, localKey, globalKey, crawledKey} {
			// Values are only valid inside the transaction.
			if v := bucket.Get(key); v != nil {
				raw[i] = append([]byte(nil), v...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("load state: %w", err)
	}

	missing := 0
	for _, v := range raw {
		if v == nil {
			missing++
		}
	}
	switch missing {
	case 0:
	case len(raw):
		return nil, ErrNoState
	default:
		return nil, xerrors.Errorf("load state: %d of %d records missing: %w", missing, len(raw), ErrBadFormat)
	}

	var state State
	if err := Decode(raw[0], RegistryForm, &state.Registry); err != nil {
		return nil, err
	}
	if err := Decode(raw[1], QueueForm, &state.Local); err != nil {
		return nil, err
	}
	if err := Decode(raw[2], QueueForm, &state.Global); err != nil {
		return nil, err
	}
	if err := Decode(raw[3], CrawledForm, &state.Crawled); err != nil {
		return nil, err
	}
	return &state, nil
}

// Backup writes a consistent copy of the store to dir/<timestamp>/state.db
// and returns its path.
func (s *BoltStore) Backup(dir string) (string, error) {
	dest := filepath.Join(dir, s.now().Format("20060102_150405"))
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", xerrors.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dest, backupFileName)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.CopyFile(path, 0600)
	})
	if err != nil {
		return "", xerrors.Errorf("backup to %s: %w", path, err)
	}
	return path, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func nonNil(links []string) []string {
	if links == nil {
		return []string{}
	}
	return links
}
