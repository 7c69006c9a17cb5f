package blockio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/pageflush/btrec/mmap"
)

const mmapInitialSize = 1 << 20 // 1 MiB

// MmapStore is a block manager backed by a single growable memory-mapped
// file: every write is appended past the current high-water mark and
// addressed by its byte offset, with the file remapped (doubling
// capacity) whenever it fills. Read faults directly into the mapped
// region rather than copying through a read(2) call.
//
// Unlike BoltStore, freed space is never reclaimed mid-file; Free only
// marks the slot as released bookkeeping so a later compaction pass
// could find it. A long-running store that frees heavily is better
// served by BoltStore.
type MmapStore struct {
	mu   sync.Mutex
	file *os.File
	m    *mmap.Map

	size uint64 // high-water mark: bytes actually in use
	free map[uint64]bool
}

// OpenMmapStore opens (creating if necessary) a file at path and maps it
// for use as a block manager.
func OpenMmapStore(path string) (*MmapStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("blockio: open %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	size := uint64(fi.Size())
	capSize := int64(mmapInitialSize)
	for uint64(capSize) < size+mmapInitialSize {
		capSize *= 2
	}
	if err := f.Truncate(capSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("blockio: truncate %s: %w", path, err)
	}

	m, err := mmap.New(int(f.Fd()), 0, int(capSize), true)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blockio: mmap %s: %w", path, err)
	}

	// The 8-byte high-water mark is persisted at the front of the file so
	// a reopened store resumes appending in the right place.
	if size >= 8 {
		size = binary.BigEndian.Uint64(m.Data()[:8])
	}
	if size == 0 {
		size = 8
	}
	return &MmapStore{file: f, m: m, size: size, free: make(map[uint64]bool)}, nil
}

func (s *MmapStore) ensureCapacity(need uint64) error {
	if need <= uint64(s.m.Capacity()) {
		return nil
	}
	newCap := s.m.Capacity()
	for uint64(newCap) < need {
		newCap *= 2
	}
	if err := s.file.Truncate(newCap); err != nil {
		return fmt.Errorf("blockio: grow mmap file: %w", err)
	}
	return s.m.Remap(newCap)
}

// Write appends a 4-byte length header plus buf to the mapped region and
// returns the header's offset as the block address, so Read needs
// nothing beyond the address to recover the chunk.
func (s *MmapStore) Write(buf []byte) (uint64, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := s.size
	need := addr + 4 + uint64(len(buf))
	if err := s.ensureCapacity(need); err != nil {
		return 0, 0, err
	}
	binary.BigEndian.PutUint32(s.m.Data()[addr:addr+4], uint32(len(buf)))
	copy(s.m.Data()[addr+4:need], buf)
	s.size = need
	binary.BigEndian.PutUint64(s.m.Data()[:8], s.size)
	return addr, uint32(len(buf)), nil
}

// Read returns a copy of the chunk stored at addr.
func (s *MmapStore) Read(addr uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if addr+4 > s.size {
		return nil, ErrNotFound
	}
	n := binary.BigEndian.Uint32(s.m.Data()[addr : addr+4])
	end := addr + 4 + uint64(n)
	if end > s.size {
		return nil, ErrNotFound
	}
	return append([]byte(nil), s.m.Data()[addr+4:end]...), nil
}

// Free marks addr as released bookkeeping; the backing bytes are not
// reclaimed until the store is compacted (not implemented here, since
// nothing in this module's scope ever compacts a live store).
func (s *MmapStore) Free(addr uint64, size uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr >= s.size {
		return ErrNotFound
	}
	s.free[addr] = true
	return nil
}

// Close flushes and unmaps the store.
func (s *MmapStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.m.Sync(); err != nil {
		s.file.Close()
		return err
	}
	if err := s.m.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
