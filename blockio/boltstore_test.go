package blockio

import (
	"bytes"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenBoltStore(filepath.Join(dir, "chunks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreWriteRead(t *testing.T) {
	s := openTestStore(t)
	buf := []byte("reconciled chunk payload")
	addr, size, err := s.Write(buf)
	if err != nil {
		t.Fatal(err)
	}
	if size != uint32(len(buf)) {
		t.Errorf("size = %d, want %d", size, len(buf))
	}
	got, err := s.Read(addr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, buf) {
		t.Errorf("Read = %q, want %q", got, buf)
	}
}

func TestBoltStoreChecksumMismatch(t *testing.T) {
	s := openTestStore(t)
	addr, _, err := s.Write([]byte("original"))
	if err != nil {
		t.Fatal(err)
	}
	// Corrupt the stored payload in place, leaving the checksum prefix untouched.
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(chunkBucket)
		v := append([]byte(nil), b.Get(addrKey(addr))...)
		copy(v[8:], "tampered")
		return b.Put(addrKey(addr), v)
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(addr); err == nil {
		t.Error("expected checksum mismatch error, got nil")
	}
}

func TestBoltStoreFreeThenRead(t *testing.T) {
	s := openTestStore(t)
	addr, size, err := s.Write([]byte("gone soon"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Free(addr, size); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(addr); err != ErrNotFound {
		t.Errorf("Read after Free: got %v, want ErrNotFound", err)
	}
}

func TestBoltStoreAddressesMonotonic(t *testing.T) {
	s := openTestStore(t)
	a1, _, _ := s.Write([]byte("one"))
	a2, _, _ := s.Write([]byte("two"))
	if a2 <= a1 {
		t.Errorf("expected a2 > a1, got a1=%d a2=%d", a1, a2)
	}
}
