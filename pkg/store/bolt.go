package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	scriptsBucket = "scripts"
	runsBucket    = "runs"
)

// Open returns a store that writes through to the bbolt file at path,
// creating it if needed. Scripts and runs already in the file are loaded.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open store %s: %w", path, err)
	}
	s := New()
	s.db = db
	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not load store %s: %w", path, err)
	}
	return s, nil
}

// Close releases the backing file. It is a no-op for an in-memory store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the backing file is usable.
func (s *Store) Ping() error {
	if s.db == nil {
		return nil
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(scriptsBucket)) == nil {
			return errors.New("scripts bucket is missing")
		}
		return nil
	})
}

func (s *Store) load() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		scripts, err := tx.CreateBucketIfNotExists([]byte(scriptsBucket))
		if err != nil {
			return fmt.Errorf("create scripts bucket failed: %w", err)
		}
		runs, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		if err != nil {
			return fmt.Errorf("create runs bucket failed: %w", err)
		}

		err = scripts.ForEach(func(k, v []byte) error {
			var sc Script
			if err := json.Unmarshal(v, &sc); err != nil {
				return fmt.Errorf("decoding script %s: %w", k, err)
			}
			s.scripts[sc.ID] = &sc
			return nil
		})
		if err != nil {
			return err
		}
		return runs.ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decoding run %s: %w", k, err)
			}
			s.runs[run.ID] = &run
			return nil
		})
	})
}

// put writes v under id. Callers hold s.mu.
func (s *Store) put(bucket, id string, v interface{}) error {
	if s.db == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s %q: %w", bucket, id, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(id), data)
	})
}

// remove deletes id from bucket. Callers hold s.mu.
func (s *Store) remove(bucket, id string) error {
	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Delete([]byte(id))
	})
}
