package btrec

import (
	"testing"

	"github.com/pageflush/btrec/blockio"
	"github.com/pageflush/btrec/cellcodec"
)

func TestReconcileColVarCollapsesRuns(t *testing.T) {
	cfg := DefaultConfig()
	mgr := blockio.NewMemStore()
	cache := NewCache(cfg, mgr)

	page := &Page{Type: ColVar, StartRecno: 0}
	for i := uint64(0); i < 10; i++ {
		page.ColAppends = append(page.ColAppends, ColUpdate{Recno: i, Value: []byte("same")})
	}
	page.ColAppends = append(page.ColAppends, ColUpdate{Recno: 10, Deleted: true})
	for i := uint64(11); i < 14; i++ {
		page.ColAppends = append(page.ColAppends, ColUpdate{Recno: i, Value: []byte("diff")})
	}

	if err := cache.Reconcile(page, nil); err != nil {
		t.Fatal(err)
	}
	if page.Modify.State != Replace {
		t.Fatalf("State = %v, want Replace", page.Modify.State)
	}
	buf, err := mgr.Read(page.Modify.WriteAddr)
	if err != nil {
		t.Fatal(err)
	}
	typ, entries, recno := getHeader(buf)
	if typ != ColVar || recno != 0 {
		t.Fatalf("header = (%v, %d), want (ColVar, 0)", typ, recno)
	}
	if entries != 3 {
		t.Fatalf("entries = %d, want 3 (one RLE run + one del + one RLE run)", entries)
	}

	off := headerSize
	wantCells := []struct {
		typ  cellcodec.Type
		rle  uint64
		data string
	}{
		{cellcodec.Value, 10, "same"},
		{cellcodec.Del, 1, ""},
		{cellcodec.Value, 3, "diff"},
	}
	for i, want := range wantCells {
		cell, err := cellcodec.Default.UnpackCopy(buf[off:])
		if err != nil {
			t.Fatalf("cell %d: %v", i, err)
		}
		if cell.Type != want.typ || cell.RLE != want.rle || string(cell.Data) != want.data {
			t.Errorf("cell %d = %+v, want type=%v rle=%d data=%q", i, cell, want.typ, want.rle, want.data)
		}
		off += cell.Len
	}
}

func TestReconcileColFixSparseAppend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BitCnt = 8
	mgr := blockio.NewMemStore()
	cache := NewCache(cfg, mgr)

	page := &Page{
		Type:       ColFix,
		StartRecno: 0,
		FixBitCnt:  8,
		FixAppends: []ColUpdate{{Recno: 3, Value: []byte{7}}},
	}

	if err := cache.Reconcile(page, nil); err != nil {
		t.Fatal(err)
	}
	if page.Modify.State != Replace {
		t.Fatalf("State = %v, want Replace", page.Modify.State)
	}
	buf, err := mgr.Read(page.Modify.WriteAddr)
	if err != nil {
		t.Fatal(err)
	}
	_, entries, recno := getHeader(buf)
	if entries != 4 {
		t.Fatalf("entries = %d, want 4 (three zero-filled gap bits + one real)", entries)
	}
	if recno != 0 {
		t.Fatalf("recno = %d, want 0", recno)
	}
	got := buf[headerSize : headerSize+4]
	want := []byte{0, 0, 0, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}
