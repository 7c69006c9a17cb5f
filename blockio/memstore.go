package blockio

import "sync"

// MemStore is an in-memory block manager used by unit tests that need a
// Manager but shouldn't touch disk. It has no checksum or durability
// story; BoltStore is the production default.
type MemStore struct {
	mu     sync.Mutex
	chunks map[uint64][]byte
	next   uint64
}

// NewMemStore returns an empty in-memory block manager.
func NewMemStore() *MemStore {
	return &MemStore{chunks: make(map[uint64][]byte)}
}

func (s *MemStore) Write(buf []byte) (uint64, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := s.next
	s.next++
	cp := append([]byte(nil), buf...)
	s.chunks[addr] = cp
	return addr, uint32(len(cp)), nil
}

func (s *MemStore) Read(addr uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.chunks[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), buf...), nil
}

func (s *MemStore) Free(addr uint64, size uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[addr]; !ok {
		return ErrNotFound
	}
	delete(s.chunks, addr)
	return nil
}

func (s *MemStore) Close() error { return nil }
