package btrec

// Buf is the growable scratch buffer reconciliation builds a page chunk
// into: byte offsets into a growable buffer rather than raw pointers,
// so reallocation never invalidates anything a caller is holding. It
// holds the header plus one or more chunk bodies being built, and only
// ever grows by doubling.
type Buf struct {
	data []byte
}

// NewBuf returns an empty buffer with the given starting capacity.
func NewBuf(capHint int) *Buf {
	if capHint <= 0 {
		capHint = 4096
	}
	return &Buf{data: make([]byte, 0, capHint)}
}

// Len returns the number of bytes written so far; also the offset the
// next Append call will return.
func (b *Buf) Len() int { return len(b.data) }

// Cap returns the buffer's current capacity.
func (b *Buf) Cap() int { return cap(b.data) }

// Bytes returns the buffer's contents. The slice is invalidated by the
// next Append or Reserve call that causes reallocation.
func (b *Buf) Bytes() []byte { return b.data }

// Slice returns the bytes in [off, off+n), a view into the live buffer.
func (b *Buf) Slice(off, n int) []byte { return b.data[off : off+n] }

// Append copies p onto the end of the buffer, growing it if needed, and
// returns the byte offset p now starts at.
func (b *Buf) Append(p []byte) int {
	off := len(b.data)
	b.grow(len(p))
	b.data = append(b.data, p...)
	return off
}

// Reserve grows the buffer by n zeroed bytes and returns the offset of
// the reserved region, for callers that want to fill it in place.
func (b *Buf) Reserve(n int) int {
	off := len(b.data)
	b.grow(n)
	b.data = b.data[:off+n]
	clear(b.data[off:])
	return off
}

// grow doubles capacity until at least extra more bytes fit.
func (b *Buf) grow(extra int) {
	need := len(b.data) + extra
	if need <= cap(b.data) {
		return
	}
	newCap := cap(b.data)
	if newCap == 0 {
		newCap = 4096
	}
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
}

// Truncate resets the buffer to length n, keeping its capacity. The split
// engine uses it to drop written chunks back to the bare header, both in
// the one-time fix-up and after each tracking-off flush.
func (b *Buf) Truncate(n int) { b.data = b.data[:n] }

// Reset empties the buffer, keeping its capacity for reuse across
// reconciliation calls on different pages.
func (b *Buf) Reset() { b.data = b.data[:0] }
