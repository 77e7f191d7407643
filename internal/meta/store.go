package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketObjects = []byte("objects")

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("object metadata not found")

// Object is the per-object record the gateway needs to decrypt ranges
// later: which transformation was used, the random base IV and salt the key
// was derived with, and the stored sizes.
type Object struct {
	Key            string    `json:"key"`
	Transformation string    `json:"transformation"`
	BaseIV         []byte    `json:"base_iv"`
	Salt           []byte    `json:"salt"`
	Size           int64     `json:"size"`
	ContentType    string    `json:"content_type,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists object records in a bbolt database.
type Store struct {
	db   *bolt.DB
	path string
}

// NewStore opens (or creates) the metadata database at path.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create metadata directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketObjects); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketObjects, err)
		}
		return nil
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores or replaces the record for obj.Key.
func (s *Store) Put(obj *Object) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to marshal object record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketObjects).Put([]byte(obj.Key), data)
	})
}

// Get returns the record for key, or ErrNotFound.
func (s *Store) Get(key string) (*Object, error) {
	var obj *Object
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketObjects).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		obj = &Object{}
		return json.Unmarshal(data, obj)
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Delete removes the record for key. Deleting a missing key returns
// ErrNotFound.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		if b.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(key))
	})
}

// List returns all records, ordered by key.
func (s *Store) List() ([]*Object, error) {
	var objects []*Object
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketObjects).ForEach(func(k, v []byte) error {
			obj := &Object{}
			if err := json.Unmarshal(v, obj); err != nil {
				return fmt.Errorf("corrupt record for %s: %w", k, err)
			}
			objects = append(objects, obj)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}
