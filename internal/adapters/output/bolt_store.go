package output

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// EventBucket holds detection events keyed by a big-endian sequence number,
// so cursor order is insertion order.
var EventBucket = []byte("detections")

// BoltStore mirrors the event log to a bbolt file.
//
// Thread Safety: bbolt serializes writers; all methods are safe for
// concurrent use.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens (or creates) the store at path.
//
// Returns:
//   - BoltStore ready for Append/Load
//   - Error if the directory, file or bucket cannot be created, or if
//     another process holds the file for more than a second
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{NoGrowSync: true, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(EventBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Info().Str("db_path", path).Msg("Event store opened")
	return &BoltStore{db: db, path: path}, nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Append stores one event and deletes the oldest entries beyond limit.
func (s *BoltStore) Append(event *domain.DetectionEvent, limit int) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(EventBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(sequenceKey(seq), data); err != nil {
			return err
		}
		if limit <= 0 {
			return nil
		}

		excess := countKeys(b) - limit
		if excess <= 0 {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// countKeys walks the bucket; Stats() does not see uncommitted writes.
func countKeys(b *bolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

// Load returns the stored events, oldest first. Entries that fail to decode
// are skipped with a warning.
func (s *BoltStore) Load() ([]*domain.DetectionEvent, error) {
	var events []*domain.DetectionEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(EventBucket)
		return b.ForEach(func(k, v []byte) error {
			var e domain.DetectionEvent
			if err := json.Unmarshal(v, &e); err != nil {
				log.Warn().Err(err).Uint64("seq", binary.BigEndian.Uint64(k)).Msg("Skipping corrupt stored event")
				return nil
			}
			if err := e.Normalize(); err != nil {
				log.Warn().Err(err).Uint64("seq", binary.BigEndian.Uint64(k)).Msg("Skipping invalid stored event")
				return nil
			}
			events = append(events, &e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return events, nil
}

// Replace drops the bucket and writes events in order.
func (s *BoltStore) Replace(events []*domain.DetectionEvent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(EventBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(EventBucket)
		if err != nil {
			return err
		}
		for _, e := range events {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			if err := b.Put(sequenceKey(seq), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of stored events.
func (s *BoltStore) Count() int {
	var n int
	s.db.View(func(tx *bolt.Tx) error {
		n = countKeys(tx.Bucket(EventBucket))
		return nil
	})
	return n
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
