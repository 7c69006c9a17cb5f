package btrec

import (
	"fmt"
	"testing"

	"github.com/pageflush/btrec/blockio"
)

// buildManyKeysPage returns a row-leaf page with n small, evenly sized
// inserts, suitable for exercising the split boundary machinery without
// pinning the test to exact byte arithmetic.
func buildManyKeysPage(n int) *Page {
	page := &Page{Type: RowLeaf}
	for i := 0; i < n; i++ {
		page.LeadingInsert = append(page.LeadingInsert, &Insert{
			Key:    []byte(fmt.Sprintf("k%04d", i)),
			Update: &Update{Value: []byte("v")},
		})
	}
	return page
}

func TestSplitAccountsForEveryEntry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLeafPage = 200
	cfg.AllocSize = 32
	mgr := blockio.NewMemStore()
	cache := NewCache(cfg, mgr)

	const n = 300
	page := buildManyKeysPage(n)
	if err := cache.Reconcile(page, nil); err != nil {
		t.Fatal(err)
	}
	if page.Modify.State != Split {
		t.Fatalf("State = %v, want Split for %d entries in a %d-byte page", page.Modify.State, n, cfg.MaxLeafPage)
	}

	total := 0
	for _, slot := range page.Modify.SplitPage.RowSlots {
		ref := slot.ChildRef
		buf, err := mgr.Read(ref.Addr)
		if err != nil {
			t.Fatal(err)
		}
		if uint32(len(buf)) > cfg.MaxLeafPage {
			t.Errorf("chunk at addr %d is %d bytes, exceeds page size %d", ref.Addr, len(buf), cfg.MaxLeafPage)
		}
		_, entries, _ := getHeader(buf)
		total += entries
	}
	if total != n {
		t.Errorf("sum of chunk entries = %d, want %d", total, n)
	}
}

func TestSplitPromotedKeysStrictlyIncrease(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLeafPage = 200
	cfg.AllocSize = 32
	mgr := blockio.NewMemStore()
	cache := NewCache(cfg, mgr)

	page := buildManyKeysPage(300)
	if err := cache.Reconcile(page, nil); err != nil {
		t.Fatal(err)
	}

	var last string
	for i, slot := range page.Modify.SplitPage.RowSlots {
		key := string(slot.ChildRef.Key)
		if i > 0 && key <= last {
			t.Errorf("promoted key %d (%q) does not strictly increase over previous (%q)", i, key, last)
		}
		last = key
	}
}

func TestSplitSizeEqualToPageSizeDisablesSpeculation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLeafPage = 200
	cfg.SplitPct = 100
	cfg.AllocSize = 32
	mgr := blockio.NewMemStore()
	cache := NewCache(cfg, mgr)

	s := newState(cfg, mgr, RowLeaf, NewTracker(), &Stats{}, nil)
	if s.splitSize < s.pageSize {
		t.Fatalf("splitSize = %d, want >= pageSize %d when SplitPct=100", s.splitSize, s.pageSize)
	}
	s.splitInit(0)
	if s.bndState != SplitTrackingOff {
		t.Errorf("bndState = %v, want SplitTrackingOff when split_size == page_size", s.bndState)
	}

	page := buildManyKeysPage(300)
	if err := cache.Reconcile(page, nil); err != nil {
		t.Fatal(err)
	}
	if page.Modify.State != Split {
		t.Fatalf("State = %v, want Split", page.Modify.State)
	}
	total := 0
	for _, slot := range page.Modify.SplitPage.RowSlots {
		buf, err := mgr.Read(slot.ChildRef.Addr)
		if err != nil {
			t.Fatal(err)
		}
		_, entries, _ := getHeader(buf)
		total += entries
	}
	if total != 300 {
		t.Errorf("sum of chunk entries = %d, want 300", total)
	}
}

func TestSplitSingleChunkFitsExactlyStaysReplace(t *testing.T) {
	cfg := DefaultConfig() // large default page size
	mgr := blockio.NewMemStore()
	cache := NewCache(cfg, mgr)

	page := buildManyKeysPage(5)
	if err := cache.Reconcile(page, nil); err != nil {
		t.Fatal(err)
	}
	if page.Modify.State != Replace {
		t.Fatalf("State = %v, want Replace for a handful of tiny entries", page.Modify.State)
	}
}
