package files

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// BoltDB is a bbolt database that hosts one or more asset stores.
type BoltDB struct{ db *bbolt.DB }

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Close() error { return b.db.Close() }

// Store ensures the buckets for layout and returns a Store over them.
func (b *BoltDB) Store(layout Layout) (*BoltStore, error) {
	s := &BoltStore{
		db:      b.db,
		layout:  layout,
		namer:   NewNamer(layout),
		content: []byte(layout.Bucket),
		meta:    []byte(layout.Bucket + ".meta"),
		retired: []byte(layout.Bucket + ".retired"),
	}
	if err := b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{s.content, s.meta, s.retired} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("create buckets for %s: %w", layout.Bucket, err)
	}
	return s, nil
}

// BoltStore keeps content, an explicit creation record, and the names it has
// retired. Retired names survive restarts.
type BoltStore struct {
	db      *bbolt.DB
	layout  Layout
	namer   *Namer
	content []byte
	meta    []byte
	retired []byte
}

type boltRecord struct {
	CreatedAt time.Time `json:"created_at"`
	Size      int       `json:"size"`
}

func (s *BoltStore) Address(name string) string { return s.layout.Address(name) }

func (s *BoltStore) Add(ctx context.Context, content []byte, declared string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var added string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		cb, mb, rb := tx.Bucket(s.content), tx.Bucket(s.meta), tx.Bucket(s.retired)
		for i := 0; i < maxNameAttempts; i++ {
			name, err := s.namer.Next(declared)
			if err != nil {
				return err
			}
			key := []byte(name)
			if cb.Get(key) != nil || rb.Get(key) != nil {
				continue
			}
			rec, err := json.Marshal(boltRecord{CreatedAt: time.Now().UTC(), Size: len(content)})
			if err != nil {
				return err
			}
			if err := cb.Put(key, content); err != nil {
				return err
			}
			if err := mb.Put(key, rec); err != nil {
				return err
			}
			added = name
			return nil
		}
		return ErrNameExhausted
	})
	if err != nil {
		return "", err
	}
	return added, nil
}

// List walks keys from the end of the bucket, which yields them in
// descending byte order.
func (s *BoltStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names := []string{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.content).Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			if IsImageName(string(k)) {
				names = append(names, string(k))
			}
		}
		return nil
	})
	return names, err
}

func (s *BoltStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		key := []byte(name)
		cb := tx.Bucket(s.content)
		if cb.Get(key) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if err := cb.Delete(key); err != nil {
			return err
		}
		if err := tx.Bucket(s.meta).Delete(key); err != nil {
			return err
		}
		stamp, err := time.Now().UTC().MarshalText()
		if err != nil {
			return err
		}
		return tx.Bucket(s.retired).Put(key, stamp)
	})
}

func (s *BoltStore) Get(ctx context.Context, name string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if err := checkName(name); err != nil {
		return Object{}, err
	}
	var (
		content []byte
		rec     boltRecord
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := []byte(name)
		v := tx.Bucket(s.content).Get(key)
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		// bbolt values are only valid inside the transaction.
		content = append([]byte(nil), v...)
		if m := tx.Bucket(s.meta).Get(key); m != nil {
			return json.Unmarshal(m, &rec)
		}
		return nil
	})
	if err != nil {
		return Object{}, err
	}
	return newObject(name, content, rec.CreatedAt), nil
}

// CreatedAt returns the recorded creation time of name.
func (s *BoltStore) CreatedAt(ctx context.Context, name string) (time.Time, error) {
	obj, err := s.Get(ctx, name)
	if err != nil {
		return time.Time{}, err
	}
	return obj.ModTime, nil
}
