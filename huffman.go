package btrec

import (
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// ZstdCodec is a HuffmanCodec backed by klauspost/compress's zstd, grounded
// on SnellerInc-sneller/compr's Compressor/Decompressor wrapping shape
// (Name/Compress/Decompress over an opaque third-party codec).
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCodec builds a ZstdCodec with the library's default encoder and
// decoder settings.
func NewZstdCodec() (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &ZstdCodec{enc: enc, dec: dec}, nil
}

func (c *ZstdCodec) Name() string { return "zstd" }

func (c *ZstdCodec) Encode(buf []byte) []byte {
	return c.enc.EncodeAll(buf, make([]byte, 0, len(buf)))
}

func (c *ZstdCodec) Decode(buf []byte) ([]byte, error) {
	return c.dec.DecodeAll(buf, nil)
}

// Close releases the zstd encoder/decoder goroutine pools.
func (c *ZstdCodec) Close() {
	c.enc.Close()
	c.dec.Close()
}

// SnappyCodec is a HuffmanCodec backed by golang/snappy, grounded on
// creachadair-ffs/blob/filestore's snappy-compressed blob bodies.
type SnappyCodec struct{}

func (SnappyCodec) Name() string { return "snappy" }

func (SnappyCodec) Encode(buf []byte) []byte {
	return snappy.Encode(nil, buf)
}

func (SnappyCodec) Decode(buf []byte) ([]byte, error) {
	return snappy.Decode(nil, buf)
}
