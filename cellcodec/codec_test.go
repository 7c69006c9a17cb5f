package cellcodec

import "testing"

func TestPackUnpackKey(t *testing.T) {
	packed := Default.PackKey(3, []byte("ncdef"))
	cell, err := Default.Unpack(packed)
	if err != nil {
		t.Fatal(err)
	}
	if cell.Type != Key {
		t.Errorf("Type = %v, want Key", cell.Type)
	}
	if cell.Prefix != 3 {
		t.Errorf("Prefix = %d, want 3", cell.Prefix)
	}
	if string(cell.Data) != "ncdef" {
		t.Errorf("Data = %q, want %q", cell.Data, "ncdef")
	}
	if cell.Len != len(packed) {
		t.Errorf("Len = %d, want %d", cell.Len, len(packed))
	}
}

func TestPackUnpackKeyOvfl(t *testing.T) {
	packed := Default.PackKeyOvfl(1234, 99)
	cell, err := Default.Unpack(packed)
	if err != nil {
		t.Fatal(err)
	}
	if cell.Type != KeyOvfl || cell.Addr != 1234 || cell.Size != 99 {
		t.Errorf("got %+v", cell)
	}
}

func TestPackUnpackValue(t *testing.T) {
	packed := Default.PackData(7, []byte("payload"))
	cell, err := Default.Unpack(packed)
	if err != nil {
		t.Fatal(err)
	}
	if cell.Type != Value || cell.RLE != 7 || string(cell.Data) != "payload" {
		t.Errorf("got %+v", cell)
	}
}

func TestPackUnpackValueOvfl(t *testing.T) {
	packed := Default.PackDataOvfl(2, 500, 4096)
	cell, err := Default.Unpack(packed)
	if err != nil {
		t.Fatal(err)
	}
	if cell.Type != ValueOvfl || cell.RLE != 2 || cell.Addr != 500 || cell.Size != 4096 {
		t.Errorf("got %+v", cell)
	}
}

func TestPackUnpackDel(t *testing.T) {
	packed := Default.PackDel(15)
	cell, err := Default.Unpack(packed)
	if err != nil {
		t.Fatal(err)
	}
	if cell.Type != Del || cell.RLE != 15 {
		t.Errorf("got %+v", cell)
	}
}

func TestPackUnpackOff(t *testing.T) {
	packed := Default.PackOff(77, 8192)
	cell, err := Default.Unpack(packed)
	if err != nil {
		t.Fatal(err)
	}
	if cell.Type != Off || cell.Addr != 77 || cell.Size != 8192 {
		t.Errorf("got %+v", cell)
	}
}

func TestUnpackShortCell(t *testing.T) {
	cases := [][]byte{
		nil,
		{byte(Key)},
		{byte(Value), 0x05},
		Default.PackKey(0, []byte("abcdef"))[:2],
	}
	for i, c := range cases {
		if _, err := Default.Unpack(c); err != ErrShortCell {
			t.Errorf("case %d: got %v, want ErrShortCell", i, err)
		}
	}
}

func TestUnpackCopyIndependentOfSource(t *testing.T) {
	packed := Default.PackData(1, []byte("mutate-me"))
	cell, err := Default.UnpackCopy(packed)
	if err != nil {
		t.Fatal(err)
	}
	packed[len(packed)-1] = 'X'
	if string(cell.Data) != "mutate-me" {
		t.Errorf("UnpackCopy aliased source buffer: %q", cell.Data)
	}
}

func TestUnpackAliasesSourceBuffer(t *testing.T) {
	packed := Default.PackData(1, []byte("mutate-me"))
	cell, err := Default.Unpack(packed)
	if err != nil {
		t.Fatal(err)
	}
	packed[len(packed)-1] = 'X'
	if string(cell.Data) == "mutate-me" {
		t.Error("expected Unpack to alias source buffer, but mutation was not observed")
	}
}
