// Package identity persists the device identity — the stable DeviceID
// every originated message carries, plus the advisory display name.
//
// The identity is created once per installation and survives restarts;
// it is what makes sender_id stable across a whole emergency session.
package identity

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/goodmartian/beacon/internal/mesh"
)

var (
	bucketIdentity = []byte("identity")
	keySelf        = []byte("self")
)

// Identity is the persisted device record.
type Identity struct {
	DeviceID  mesh.DeviceID `json:"device_id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store is a bbolt-backed identity store.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the identity database under dir.
func Open(dir string) (*Store, error) {
	db, err := bolt.Open(filepath.Join(dir, "identity.db"), 0600,
		&bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIdentity)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Load returns the stored identity, or an error if none exists.
func (s *Store) Load() (Identity, error) {
	var id Identity
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketIdentity).Get(keySelf)
		if raw == nil {
			return errors.New("identity: none stored")
		}
		return json.Unmarshal(raw, &id)
	})
	return id, err
}

// LoadOrCreate returns the stored identity, creating one with a fresh
// DeviceID if absent. A non-empty name updates the stored display name.
func (s *Store) LoadOrCreate(name string) (Identity, error) {
	var id Identity
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIdentity)
		if raw := b.Get(keySelf); raw != nil {
			if err := json.Unmarshal(raw, &id); err != nil {
				return err
			}
			if name == "" || name == id.Name {
				return nil
			}
			id.Name = name
		} else {
			id = Identity{
				DeviceID:  mesh.NewDeviceID(),
				Name:      name,
				CreatedAt: time.Now().UTC(),
			}
		}
		raw, err := json.Marshal(id)
		if err != nil {
			return err
		}
		return b.Put(keySelf, raw)
	})
	return id, err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
