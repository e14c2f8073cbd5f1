package security

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var sessionBucket = []byte("sessions")

const sweepInterval = 5 * time.Minute

// BoltStore is a Store backed by a bbolt database, so sessions survive
// server restarts. All mutations run inside a bbolt write transaction,
// which gives Update and Regenerate their atomicity.
type BoltStore struct {
	db       *bbolt.DB
	maxIdle  time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) a session database at path. Sessions
// idle longer than maxIdle are removed by a background sweep; maxIdle of
// 0 disables sweeping.
func NewBoltStore(path string, maxIdle time.Duration) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session bucket: %w", err)
	}
	s := &BoltStore{
		db:      db,
		maxIdle: maxIdle,
		stopCh:  make(chan struct{}),
	}
	if maxIdle > 0 {
		go s.sweepLoop()
	}
	return s, nil
}

// Close stops the background sweep and closes the database.
func (b *BoltStore) Close() error {
	b.stopOnce.Do(func() { close(b.stopCh) })
	return b.db.Close()
}

func (b *BoltStore) Get(id string) (Session, bool) {
	var s Session
	found := false
	_ = b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		found = true
		return nil
	})
	return s, found
}

func (b *BoltStore) Put(id string, s Session) {
	s.LastSeen = time.Now()
	_ = b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		return tx.Bucket(sessionBucket).Put([]byte(id), data)
	})
}

func (b *BoltStore) Update(id string, fn func(*Session)) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(sessionBucket)
		var s Session
		if data := bkt.Get([]byte(id)); data != nil {
			if err := json.Unmarshal(data, &s); err != nil {
				// Corrupt entry, start over with a fresh session.
				s = Session{}
			}
		}
		fn(&s)
		s.LastSeen = time.Now()
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encoding session: %w", err)
		}
		return bkt.Put([]byte(id), data)
	})
}

func (b *BoltStore) Regenerate(id string) (string, error) {
	newID := NewSessionID()
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(sessionBucket)
		var old Session
		if data := bkt.Get([]byte(id)); data != nil {
			_ = json.Unmarshal(data, &old)
			if err := bkt.Delete([]byte(id)); err != nil {
				return err
			}
		}
		data, err := json.Marshal(regenerated(old))
		if err != nil {
			return fmt.Errorf("encoding session: %w", err)
		}
		return bkt.Put([]byte(newID), data)
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

func (b *BoltStore) Delete(id string) {
	_ = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete([]byte(id))
	})
}

func (b *BoltStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (b *BoltStore) sweep() {
	cutoff := time.Now().Add(-b.maxIdle)
	_ = b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(sessionBucket)
		c := bkt.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var s Session
			if err := json.Unmarshal(v, &s); err != nil {
				stale = append(stale, append([]byte(nil), k...))
				continue
			}
			if s.LastSeen.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := bkt.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
