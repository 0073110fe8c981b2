package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

const (
	BucketRuns = "runs"

	maxHistory = 100
)

// Store keeps finished run reports in a local bolt database so past
// benchmarks stay comparable across invocations.
type Store struct {
	db *bbolt.DB
}

// NewStore opens (or creates) the history database under the user's
// home directory.
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(home, ".kvbench")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return OpenStore(filepath.Join(dir, "history.db"))
}

// OpenStore opens a history database at an explicit path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// key sorts runs chronologically inside the bucket so the cursor walks
// them oldest to newest.
func key(item HistoryItem) []byte {
	return []byte(fmt.Sprintf("%020d_%s", item.Timestamp.UnixNano(), item.ID))
}

// Save persists one run and prunes the oldest entries past the history
// cap.
func (s *Store) Save(item HistoryItem) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))

		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		if err := b.Put(key(item), data); err != nil {
			return err
		}

		// Prune oldest entries beyond the cap.
		n := 0
		if err := b.ForEach(func(_, _ []byte) error { n++; return nil }); err != nil {
			return err
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil && n > maxHistory; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
			n--
		}
		return nil
	})
}

// List returns stored runs, newest first.
func (s *Store) List() []HistoryItem {
	var items []HistoryItem

	s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		c := b.Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var item HistoryItem
			if err := json.Unmarshal(v, &item); err == nil {
				items = append(items, item)
			}
		}
		return nil
	})

	return items
}

// Get loads one run by its ID.
func (s *Store) Get(id string) (*HistoryItem, error) {
	var item *HistoryItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var it HistoryItem
			if err := json.Unmarshal(v, &it); err != nil {
				continue
			}
			if it.ID == id {
				item = &it
				return nil
			}
		}
		return fmt.Errorf("run %s not found", id)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
