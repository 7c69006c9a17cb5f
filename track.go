package btrec

// TrackState is the lifecycle state of one overflow-tracker entry.
type TrackState uint8

const (
	// TrackEmpty means the slot is unused; tracker capacity grows in
	// chunks of 20, leaving trailing empty slots.
	TrackEmpty TrackState = iota
	// TrackBlock means the block is scheduled to be freed at wrapup.
	TrackBlock
	// TrackOvfl means the block is live and currently referenced by the
	// page.
	TrackOvfl
	// TrackOvflDiscard means the block was live on the previous
	// reconciliation and is tentatively retired; Entry() demotes every
	// TrackOvfl to this state, and a matching reuse promotes it back.
	TrackOvflDiscard
)

// trackGrowChunk is the tracker's capacity growth increment.
const trackGrowChunk = 20

// TrackEntry is one row of the overflow tracker.
type TrackEntry struct {
	State TrackState
	// Ref is the original value's identity (a Go pointer: the *Update
	// that owned it, the *ColSlot of an original column run, or a fresh
	// placeholder for a value with no reusable source) — a
	// pointer-equality check for overflow reuse.
	Ref  any
	Addr uint64
	Size uint32
}

// Tracker is the per-page overflow-block registry (C3). Only the
// reconciliation owner of a page touches its tracker; it is never shared
// across pages, and it is kept on the page's Modify record from one
// reconciliation of that page to the next.
type Tracker struct {
	entries []TrackEntry
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Entry begins a new reconciliation pass over the tracker: every live
// TrackOvfl entry is demoted to TrackOvflDiscard, a tentative retirement
// that Reuse can reverse and Commit will make permanent.
func (t *Tracker) Entry() {
	for i := range t.entries {
		if t.entries[i].State == TrackOvfl {
			t.entries[i].State = TrackOvflDiscard
		}
	}
}

// Reuse searches for a TrackOvflDiscard entry whose Ref matches ref
// (pointer identity). On a match it promotes the entry back to TrackOvfl
// and returns its (addr, size) for reuse, avoiding a fresh block_write.
func (t *Tracker) Reuse(ref any) (addr uint64, size uint32, ok bool) {
	for i := range t.entries {
		if t.entries[i].State == TrackOvflDiscard && t.entries[i].Ref == ref {
			t.entries[i].State = TrackOvfl
			return t.entries[i].Addr, t.entries[i].Size, true
		}
	}
	return 0, 0, false
}

// Add appends a new TrackOvfl entry for a freshly written overflow block.
func (t *Tracker) Add(ref any, addr uint64, size uint32) {
	t.append(TrackEntry{State: TrackOvfl, Ref: ref, Addr: addr, Size: size})
}

// Discard adds a TrackBlock entry for a block no longer referenced by the
// page (an overflow key or value that was deleted or overwritten),
// scheduling it to be freed at Commit.
func (t *Tracker) Discard(addr uint64, size uint32) {
	t.append(TrackEntry{State: TrackBlock, Addr: addr, Size: size})
}

// append reuses a TrackEmpty slot if one exists, else grows by
// trackGrowChunk.
func (t *Tracker) append(e TrackEntry) {
	for i := range t.entries {
		if t.entries[i].State == TrackEmpty {
			t.entries[i] = e
			return
		}
	}
	grown := make([]TrackEntry, len(t.entries), len(t.entries)+trackGrowChunk)
	copy(grown, t.entries)
	t.entries = append(grown, e)
}

// Commit frees every TrackBlock and still-TrackOvflDiscard entry via mgr,
// then resets all freed (and now-stale) slots to TrackEmpty. Called once,
// at wrapup (C10), after the new boundary set is final.
func (t *Tracker) Commit(mgr interface {
	Free(addr uint64, size uint32) error
}) error {
	freed := make(map[uint64]bool)
	for i := range t.entries {
		switch t.entries[i].State {
		case TrackBlock, TrackOvflDiscard:
			addr := t.entries[i].Addr
			if !freed[addr] {
				if err := mgr.Free(addr, t.entries[i].Size); err != nil {
					return WrapError(ErrBlockIO, err)
				}
				freed[addr] = true
			}
			t.entries[i] = TrackEntry{}
		}
	}
	return nil
}

// Entries returns a snapshot of the tracker's rows, for tests and
// diagnostics only.
func (t *Tracker) Entries() []TrackEntry {
	out := make([]TrackEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
