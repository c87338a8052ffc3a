// Package store provides the durable local persistence: one logical
// store for the resident manifest and site info, one for the content
// identifier to decompressed-bytes blob cache. Backed by bbolt; when
// the database cannot be opened the store degrades to memory-only
// operation for the session.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/matildepark/wisp-explorer/internal/logging"
	"github.com/matildepark/wisp-explorer/internal/manifest"
)

// MaxBlobSize is the per-entry admission gate for the blob cache.
const MaxBlobSize = 5 << 20

// ErrBlobTooLarge is returned when a blob exceeds MaxBlobSize. The
// content is still servable; it just never enters the cache.
var ErrBlobTooLarge = errors.New("blob exceeds cache size limit")

var (
	bucketSite  = []byte("site")
	bucketBlobs = []byte("blobs")

	keyManifest = []byte("manifest")
	keySiteInfo = []byte("siteinfo")
)

// Store is the durable key-value store. A nil db means memory-only.
type Store struct {
	db *bolt.DB

	mu       sync.RWMutex
	memSite  map[string][]byte
	memBlobs map[string][]byte
}

// Open opens (or creates) the database at path. On failure the store
// degrades to memory-only rather than failing hard.
func Open(path string) *Store {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		logging.Warn("durable store unavailable, running memory-only",
			zap.String("path", path), zap.Error(err))
		return NewMemory()
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSite); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		logging.Warn("durable store init failed, running memory-only", zap.Error(err))
		db.Close()
		return NewMemory()
	}

	return &Store{db: db}
}

// NewMemory creates a store with no durable backing.
func NewMemory() *Store {
	return &Store{
		memSite:  make(map[string][]byte),
		memBlobs: make(map[string][]byte),
	}
}

// Durable reports whether writes survive a restart.
func (s *Store) Durable() bool { return s.db != nil }

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSite persists the manifest and site info, replacing any previous
// entry wholesale.
func (s *Store) SaveSite(m *manifest.Manifest, si *manifest.SiteInfo) error {
	mdata, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	sdata, err := json.Marshal(si)
	if err != nil {
		return fmt.Errorf("encode site info: %w", err)
	}

	if s.db == nil {
		s.mu.Lock()
		s.memSite[string(keyManifest)] = mdata
		s.memSite[string(keySiteInfo)] = sdata
		s.mu.Unlock()
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSite)
		if err := b.Put(keyManifest, mdata); err != nil {
			return err
		}
		return b.Put(keySiteInfo, sdata)
	})
}

// LoadSite returns the persisted manifest and site info, or nils when
// nothing resides in the store.
func (s *Store) LoadSite() (*manifest.Manifest, *manifest.SiteInfo, error) {
	var mdata, sdata []byte

	if s.db == nil {
		s.mu.RLock()
		mdata = s.memSite[string(keyManifest)]
		sdata = s.memSite[string(keySiteInfo)]
		s.mu.RUnlock()
	} else {
		err := s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketSite)
			if v := b.Get(keyManifest); v != nil {
				mdata = append([]byte(nil), v...)
			}
			if v := b.Get(keySiteInfo); v != nil {
				sdata = append([]byte(nil), v...)
			}
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
	}

	if mdata == nil || sdata == nil {
		return nil, nil, nil
	}

	var m manifest.Manifest
	if err := json.Unmarshal(mdata, &m); err != nil {
		return nil, nil, fmt.Errorf("decode manifest: %w", err)
	}
	var si manifest.SiteInfo
	if err := json.Unmarshal(sdata, &si); err != nil {
		return nil, nil, fmt.Errorf("decode site info: %w", err)
	}
	return &m, &si, nil
}

// ClearSite removes the resident manifest and site info.
func (s *Store) ClearSite() error {
	if s.db == nil {
		s.mu.Lock()
		delete(s.memSite, string(keyManifest))
		delete(s.memSite, string(keySiteInfo))
		s.mu.Unlock()
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSite)
		if err := b.Delete(keyManifest); err != nil {
			return err
		}
		return b.Delete(keySiteInfo)
	})
}

// GetBlob returns cached decompressed bytes for cid.
func (s *Store) GetBlob(cid string) ([]byte, bool) {
	if s.db == nil {
		s.mu.RLock()
		data, ok := s.memBlobs[cid]
		s.mu.RUnlock()
		return data, ok
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketBlobs).Get([]byte(cid)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	return data, data != nil
}

// PutBlob admits decompressed bytes into the cache. Entries over
// MaxBlobSize are rejected with ErrBlobTooLarge.
func (s *Store) PutBlob(cid string, data []byte) error {
	if len(data) > MaxBlobSize {
		return ErrBlobTooLarge
	}

	if s.db == nil {
		s.mu.Lock()
		s.memBlobs[cid] = data
		s.mu.Unlock()
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).Put([]byte(cid), data)
	})
}

// ClearBlobs empties the blob cache.
func (s *Store) ClearBlobs() error {
	if s.db == nil {
		s.mu.Lock()
		s.memBlobs = make(map[string][]byte)
		s.mu.Unlock()
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketBlobs); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketBlobs)
		return err
	})
}
