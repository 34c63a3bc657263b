// Package history journals every verb headless runs against a component so
// that an operator can later see what was changed on the machine and when.
// Entries live in a Badger database under the XDG data directory.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Outcome is how a run ended.
type Outcome string

// Outcomes.
const (
	OutcomeOK        Outcome = "ok"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeSkipped   Outcome = "skipped"
)

// Entry is one journaled run of a verb against a component.
type Entry struct {
	ID        string            `json:"id" yaml:"id"`
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Verb      string            `json:"verb" yaml:"verb"`
	Component string            `json:"component" yaml:"component"`
	Outcome   Outcome           `json:"outcome" yaml:"outcome"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty"`
	Duration  time.Duration     `json:"duration" yaml:"duration"`
	Details   map[string]string `json:"details,omitempty" yaml:"details,omitempty"`
}

// ShortID returns the first eight characters of the ID.
func (e Entry) ShortID() string {
	if len(e.ID) > 8 {
		return e.ID[:8]
	}
	return e.ID
}

// Journal records entries.
type Journal interface {
	Record(e Entry) (Entry, error)
}

// Discard is a Journal that keeps nothing; used when history is disabled.
type Discard struct{}

// Record fills in ID and Timestamp and drops the entry.
func (Discard) Record(e Entry) (Entry, error) {
	return stamp(e), nil
}

// ErrNotFound is returned when no entry matches an ID.
var ErrNotFound = errors.New("history entry not found")

// ErrAmbiguous is returned when an ID prefix matches more than one entry.
var ErrAmbiguous = errors.New("history ID prefix is ambiguous")

var (
	entryPrefix = []byte("entry/")
	idPrefix    = []byte("id/")
)

// DefaultPath returns $XDG_DATA_HOME/headless/history.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, "headless", "history")
}

// Store is the Badger-backed Journal.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening history at %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func stamp(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Timestamp = e.Timestamp.UTC()
	return e
}

// entryKey sorts chronologically: entry/<20-digit unix nanos>/<id>.
func entryKey(e Entry) []byte {
	nanos := strconv.FormatInt(e.Timestamp.UnixNano(), 10)
	for len(nanos) < 20 {
		nanos = "0" + nanos
	}
	key := append([]byte{}, entryPrefix...)
	key = append(key, nanos...)
	key = append(key, '/')
	return append(key, e.ID...)
}

// Record stores e, assigning an ID and timestamp when missing.
func (s *Store) Record(e Entry) (Entry, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	e = stamp(e)

	value, err := json.Marshal(e)
	if err != nil {
		return e, fmt.Errorf("encoding history entry: %w", err)
	}

	key := entryKey(e)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(append(append([]byte{}, idPrefix...), e.ID...), key)
	})
	if err != nil {
		return e, fmt.Errorf("writing history entry: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, entryPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(entryPrefix); it.Next() {
			var e Entry
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &e)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Get returns the entry whose ID equals id or uniquely starts with it.
func (s *Store) Get(id string) (Entry, error) {
	if id == "" {
		return Entry{}, ErrNotFound
	}

	var e Entry
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := append(append([]byte{}, idPrefix...), id...)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var target []byte
		matches := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			matches++
			if bytes.Equal(it.Item().Key(), prefix) {
				// Exact match wins over longer IDs sharing the prefix.
				matches = 1
				v, err := it.Item().ValueCopy(nil)
				if err != nil {
					return err
				}
				target = v
				break
			}
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			target = v
		}
		switch {
		case matches == 0:
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		case matches > 1:
			return fmt.Errorf("%w: %s", ErrAmbiguous, id)
		}

		item, err := txn.Get(target)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &e)
		})
	})
	return e, err
}

// Clean deletes entries recorded before cutoff and returns how many.
func (s *Store) Clean(cutoff time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		limit := entryKey(Entry{Timestamp: cutoff})
		for it.Seek(entryPrefix); it.ValidForPrefix(entryPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if bytes.Compare(key, limit) >= 0 {
				break
			}
			id := key[bytes.LastIndexByte(key, '/')+1:]
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Delete(append(append([]byte{}, idPrefix...), id...)); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleaning history: %w", err)
	}
	return removed, nil
}

var _ Journal = (*Store)(nil)
var _ Journal = Discard{}
