// Command btrecdemo builds a toy row-store leaf page, dirties it with a
// run of inserts sized to force a page split, reconciles it, and prints
// the resulting chunk layout. It exists to exercise the reconciliation
// path end to end against the in-memory block manager, without the
// weight of a full tree implementation around it.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pageflush/btrec"
	"github.com/pageflush/btrec/blockio"
)

func main() {
	cfg := btrec.DefaultConfig()
	cfg.MaxLeafPage = 512
	cfg.MaxLeafItem = 200
	cfg.PrefixCompression = true
	cfg.Verbose = true

	mgr := blockio.NewMemStore()
	cache := btrec.NewCache(cfg, mgr)
	cache.SetLogger(func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "demo: "+format+"\n", args...)
	})

	page := &btrec.Page{Type: btrec.RowLeaf}
	for i := 0; i < 200; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		value := []byte(fmt.Sprintf("value for record number %d", i))
		page.LeadingInsert = append(page.LeadingInsert, &btrec.Insert{
			Key:    key,
			Update: &btrec.Update{Value: value},
		})
	}

	if err := cache.Reconcile(page, nil); err != nil {
		log.Fatalf("reconcile failed: %v", err)
	}

	mod := page.Modify
	fmt.Printf("result: %v\n", modifyStateName(mod.State))
	switch mod.State {
	case btrec.Replace:
		fmt.Printf("  single chunk: addr=%d size=%d\n", mod.WriteAddr, mod.WriteSize)
	case btrec.Split:
		for i, slot := range mod.SplitPage.RowSlots {
			ref := slot.ChildRef
			fmt.Printf("  chunk %d: addr=%d size=%d key=%q\n", i, ref.Addr, ref.Size, ref.Key)
		}
	}

	stats := cache.Stats()
	fmt.Printf("stats: written=%d splits_leaf=%d boundaries=%d ovfl_values=%d\n",
		stats.RecWritten, stats.RecSplitLeaf, stats.SplitBoundaries, stats.RecOvflValue)
}

func modifyStateName(s btrec.ModifyState) string {
	switch s {
	case btrec.Empty:
		return "empty"
	case btrec.Replace:
		return "replace"
	case btrec.Split:
		return "split"
	default:
		return "disk"
	}
}
