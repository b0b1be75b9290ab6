// Package l1 implements the per-worker local cache of spec.md §4.4: an
// embedded persistent key-value store (go.etcd.io/bbolt, durable, one
// writer/many readers) fronted by an in-memory hot layer
// (github.com/dgraph-io/ristretto) so that a repeated lookup for the same
// path within a run never touches the mmap'd file. Keys are document
// paths; values are the 968-byte [mtime:8][size:8][parse_result:952]
// record described in spec.md §3.
package l1

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dgraph-io/ristretto"
	"github.com/hyperpolymath/docudactyl/internal/logger"
	"github.com/hyperpolymath/docudactyl/internal/model"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("l1")

// ValueSize is the on-disk and in-transit record size: mtime + size +
// ParseResult.
const ValueSize = 8 + 8 + model.ParseResultSize

// Store is one worker's L1 cache.
type Store struct {
	db       *bolt.DB
	hot      *ristretto.Cache
	maxBytes int64
	readOnly bool
	warned   bool
}

// Open creates or opens the bbolt file at path and wires a ristretto hot
// layer in front of it. maxBytes bounds the on-disk store (default 10GiB
// per spec.md §4.4); once exceeded, Store degrades to read-only.
func Open(path string, maxBytes int64) (*Store, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("l1: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("l1: create bucket: %w", err)
	}

	hot, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     256 << 20, // 256MiB hot layer, independent of the durable bound
		BufferItems: 64,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("l1: ristretto init: %w", err)
	}

	if maxBytes <= 0 {
		maxBytes = 10 << 30 // 10 GiB default
	}

	return &Store{db: db, hot: hot, maxBytes: maxBytes}, nil
}

type hotEntry struct {
	mtime  int64
	size   int64
	result model.ParseResult
}

// Lookup returns the cached result for path if its stored (mtime, size)
// matches exactly (invariant I1); any mismatch is a miss, which is how
// this store invalidates entries without an explicit eviction pass.
func (s *Store) Lookup(path string, mtime, size int64) (model.ParseResult, bool) {
	if v, ok := s.hot.Get(path); ok {
		e := v.(hotEntry)
		if e.mtime == mtime && e.size == size {
			return e.result, true
		}
		return model.ParseResult{}, false
	}

	var buf []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get([]byte(path))
		if v == nil {
			return nil
		}
		buf = append([]byte(nil), v...)
		return nil
	})
	if err != nil || buf == nil {
		return model.ParseResult{}, false
	}

	storedMtime := int64(binary.LittleEndian.Uint64(buf[0:8]))
	storedSize := int64(binary.LittleEndian.Uint64(buf[8:16]))
	if storedMtime != mtime || storedSize != size {
		return model.ParseResult{}, false
	}

	result, err := model.UnmarshalParseResult(buf[16:])
	if err != nil {
		logger.Debug("l1: corrupt record for %s: %v", path, err)
		return model.ParseResult{}, false
	}

	s.hot.Set(path, hotEntry{mtime: storedMtime, size: storedSize, result: result}, ValueSize)
	return result, true
}

// Store upserts path's entry. If the durable store has grown past its
// configured bound, Store degrades to read-only and logs a warning once;
// subsequent calls are silent no-ops so the run is not flooded with
// repeated warnings.
func (s *Store) Store(path string, mtime, size int64, result model.ParseResult) error {
	if s.readOnly {
		return nil
	}

	buf := make([]byte, ValueSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(mtime))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(size))
	copy(buf[16:], result.MarshalBinary())

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(path), buf)
	})
	if err != nil {
		return fmt.Errorf("l1: put %s: %w", path, err)
	}

	s.hot.Set(path, hotEntry{mtime: mtime, size: size, result: result}, ValueSize)

	if s.sizeBytes() > s.maxBytes {
		s.readOnly = true
		if !s.warned {
			logger.Warn("l1: durable store exceeded %d bytes, degrading to read-only", s.maxBytes)
			s.warned = true
		}
	}
	return nil
}

func (s *Store) sizeBytes() int64 {
	info, err := os.Stat(s.db.Path())
	if err != nil {
		return 0
	}
	return info.Size()
}

// Count returns the number of entries in the durable store.
func (s *Store) Count() int {
	n := 0
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		n = b.Stats().KeyN
		return nil
	})
	return n
}

// ReadOnly reports whether the store has degraded past its capacity bound.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Sync flushes the durable store to disk.
func (s *Store) Sync() error {
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("l1: sync: %w", err)
	}
	return nil
}

// Close releases the durable store's file handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("l1: close: %w", err)
	}
	return nil
}
