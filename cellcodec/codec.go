// Package cellcodec implements the on-page key/value cell layer that page
// reconciliation builds against. Reconciliation treats this layer as an
// external, well-defined binary codec, deliberately kept out of the
// reconciliation engine itself — this package is its concrete instance.
package cellcodec

import (
	"encoding/binary"
	"errors"
)

// Type identifies the kind of cell stored on a page.
type Type uint8

const (
	// Key is a row-store key, possibly prefix-compressed.
	Key Type = iota
	// KeyOvfl is a row-store key stored as an out-of-band overflow block.
	KeyOvfl
	// Value is an inline value, possibly carrying an RLE count.
	Value
	// ValueOvfl is a value stored as an out-of-band overflow block.
	ValueOvfl
	// Del marks a deleted (or missing) record; column-store only.
	Del
	// Off is an internal-page child reference (addr, size).
	Off
)

// ErrShortCell is returned when Unpack is given a truncated cell.
var ErrShortCell = errors.New("cellcodec: short cell")

// Cell is the parsed form of a packed on-page cell.
type Cell struct {
	Type   Type
	Prefix int    // KEY: shared-prefix length with the preceding key
	RLE    uint64 // VALUE/DEL: run-length count (1 if not RLE'd)
	Addr   uint64 // KEY_OVFL/VALUE_OVFL/OFF: block address
	Size   uint32 // KEY_OVFL/VALUE_OVFL/OFF: block size
	Data   []byte // KEY/VALUE: inline payload
	Len    int    // total encoded length of the cell, including header
}

// Codec packs and unpacks cells. Reconciliation only ever uses this
// interface; Default is the concrete binary layout this module ships.
type Codec interface {
	PackKey(prefix int, data []byte) []byte
	PackKeyOvfl(addr uint64, size uint32) []byte
	PackData(rle uint64, data []byte) []byte
	PackDataOvfl(rle uint64, addr uint64, size uint32) []byte
	PackDel(rle uint64) []byte
	PackOff(addr uint64, size uint32) []byte
	Unpack(cell []byte) (Cell, error)
	// UnpackCopy is Unpack plus an owned copy of Data, safe to retain after
	// the source buffer is reused.
	UnpackCopy(cell []byte) (Cell, error)
}

type defaultCodec struct{}

// Default is the codec every writer in this module is built against.
var Default Codec = defaultCodec{}

func putUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func (defaultCodec) PackKey(prefix int, data []byte) []byte {
	buf := make([]byte, 0, 2+binary.MaxVarintLen64*2+len(data))
	buf = append(buf, byte(Key))
	buf = putUvarint(buf, uint64(prefix))
	buf = putUvarint(buf, uint64(len(data)))
	buf = append(buf, data...)
	return buf
}

func (defaultCodec) PackKeyOvfl(addr uint64, size uint32) []byte {
	buf := make([]byte, 0, 1+binary.MaxVarintLen64*2)
	buf = append(buf, byte(KeyOvfl))
	buf = putUvarint(buf, addr)
	buf = putUvarint(buf, uint64(size))
	return buf
}

func (defaultCodec) PackData(rle uint64, data []byte) []byte {
	buf := make([]byte, 0, 1+binary.MaxVarintLen64*2+len(data))
	buf = append(buf, byte(Value))
	buf = putUvarint(buf, rle)
	buf = putUvarint(buf, uint64(len(data)))
	buf = append(buf, data...)
	return buf
}

func (defaultCodec) PackDataOvfl(rle uint64, addr uint64, size uint32) []byte {
	buf := make([]byte, 0, 1+binary.MaxVarintLen64*3)
	buf = append(buf, byte(ValueOvfl))
	buf = putUvarint(buf, rle)
	buf = putUvarint(buf, addr)
	buf = putUvarint(buf, uint64(size))
	return buf
}

func (defaultCodec) PackDel(rle uint64) []byte {
	buf := make([]byte, 0, 1+binary.MaxVarintLen64)
	buf = append(buf, byte(Del))
	buf = putUvarint(buf, rle)
	return buf
}

func (defaultCodec) PackOff(addr uint64, size uint32) []byte {
	buf := make([]byte, 0, 1+binary.MaxVarintLen64*2)
	buf = append(buf, byte(Off))
	buf = putUvarint(buf, addr)
	buf = putUvarint(buf, uint64(size))
	return buf
}

func (defaultCodec) Unpack(cell []byte) (Cell, error) {
	return unpack(cell, false)
}

func (defaultCodec) UnpackCopy(cell []byte) (Cell, error) {
	return unpack(cell, true)
}

func unpack(cell []byte, copyData bool) (Cell, error) {
	if len(cell) < 1 {
		return Cell{}, ErrShortCell
	}
	typ := Type(cell[0])
	rest := cell[1:]
	c := Cell{Type: typ}
	switch typ {
	case Key:
		pfx, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		size, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		if uint64(len(rest)) < size {
			return Cell{}, ErrShortCell
		}
		c.Prefix = int(pfx)
		c.Data = rest[:size]
		if copyData {
			c.Data = append([]byte(nil), c.Data...)
		}
		c.Len = len(cell) - len(rest) + int(size)
	case KeyOvfl:
		addr, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		size, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		c.Addr, c.Size = addr, uint32(size)
		c.Len = len(cell) - len(rest)
	case Value:
		rle, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		size, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		if uint64(len(rest)) < size {
			return Cell{}, ErrShortCell
		}
		c.RLE = rle
		c.Data = rest[:size]
		if copyData {
			c.Data = append([]byte(nil), c.Data...)
		}
		c.Len = len(cell) - len(rest) + int(size)
	case ValueOvfl:
		rle, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		addr, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		size, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		c.RLE, c.Addr, c.Size = rle, addr, uint32(size)
		c.Len = len(cell) - len(rest)
	case Del:
		rle, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		c.RLE = rle
		c.Len = len(cell) - len(rest)
	case Off:
		addr, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		size, n := binary.Uvarint(rest)
		if n <= 0 {
			return Cell{}, ErrShortCell
		}
		rest = rest[n:]
		c.Addr, c.Size = addr, uint32(size)
		c.Len = len(cell) - len(rest)
	default:
		return Cell{}, ErrShortCell
	}
	return c, nil
}
