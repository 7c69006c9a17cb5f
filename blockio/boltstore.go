package blockio

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	bolt "go.etcd.io/bbolt"
)

var chunkBucket = []byte("chunks")

// BoltStore is the default block manager: every reconciled chunk becomes a
// value in a bbolt bucket, keyed by a synthetic monotonically increasing
// address. Each stored value is prefixed with an 8-byte xxhash checksum of
// the payload so Read can catch a torn or corrupted write.
type BoltStore struct {
	db   *bolt.DB
	next uint64
}

// OpenBoltStore opens (creating if necessary) a bbolt database at path and
// prepares it to serve as a block manager.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("blockio: open %s: %w", path, err)
	}
	var maxAddr uint64
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(chunkBucket)
		if err != nil {
			return err
		}
		c := b.Cursor()
		if k, _ := c.Last(); k != nil {
			maxAddr = binary.BigEndian.Uint64(k)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("blockio: init buckets: %w", err)
	}
	return &BoltStore{db: db, next: maxAddr + 1}, nil
}

func addrKey(addr uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, addr)
	return k
}

// Write persists buf and returns the address it was written under.
func (s *BoltStore) Write(buf []byte) (uint64, uint32, error) {
	addr := atomic.AddUint64(&s.next, 1) - 1
	sum := xxhash.Sum64(buf)
	stored := make([]byte, 8+len(buf))
	binary.BigEndian.PutUint64(stored, sum)
	copy(stored[8:], buf)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(chunkBucket).Put(addrKey(addr), stored)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("blockio: write addr %d: %w", addr, err)
	}
	return addr, uint32(len(buf)), nil
}

// Read returns the chunk stored at addr, verifying its checksum.
func (s *BoltStore) Read(addr uint64) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(chunkBucket).Get(addrKey(addr))
		if v == nil {
			return ErrNotFound
		}
		if len(v) < 8 {
			return fmt.Errorf("blockio: addr %d: truncated record", addr)
		}
		want := binary.BigEndian.Uint64(v[:8])
		body := v[8:]
		if got := xxhash.Sum64(body); got != want {
			return fmt.Errorf("blockio: addr %d: checksum mismatch (want %x got %x)", addr, want, got)
		}
		out = append([]byte(nil), body...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Free removes the chunk at addr. size is accepted for symmetry with Write
// but not otherwise needed, since bbolt tracks value length itself.
func (s *BoltStore) Free(addr uint64, size uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(chunkBucket)
		if b.Get(addrKey(addr)) == nil {
			return ErrNotFound
		}
		return b.Delete(addrKey(addr))
	})
}

// Close releases the underlying bbolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
