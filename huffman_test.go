package btrec

import (
	"bytes"
	"testing"
)

func TestZstdCodecRoundTrip(t *testing.T) {
	c, err := NewZstdCodec()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	orig := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 20)
	enc := c.Encode(orig)
	dec, err := c.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, orig) {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(dec), len(orig))
	}
	if c.Name() != "zstd" {
		t.Errorf("Name() = %q, want %q", c.Name(), "zstd")
	}
}

func TestZstdCodecEmptyInput(t *testing.T) {
	c, err := NewZstdCodec()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	enc := c.Encode(nil)
	dec, err := c.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if len(dec) != 0 {
		t.Errorf("decoded %d bytes from empty input, want 0", len(dec))
	}
}

func TestSnappyCodecRoundTrip(t *testing.T) {
	var c SnappyCodec
	orig := bytes.Repeat([]byte("overflow payload data "), 30)
	enc := c.Encode(orig)
	dec, err := c.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, orig) {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(dec), len(orig))
	}
	if c.Name() != "snappy" {
		t.Errorf("Name() = %q, want %q", c.Name(), "snappy")
	}
}

func TestSnappyCodecRejectsCorruptInput(t *testing.T) {
	var c SnappyCodec
	if _, err := c.Decode([]byte{0xff, 0xff, 0xff, 0xff, 0x00}); err == nil {
		t.Error("expected an error decoding corrupt snappy input")
	}
}
