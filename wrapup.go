package btrec

// wrapup is C10: convert the final boundary array into empty, replace,
// or an ephemeral split page, then commit the overflow tracker.
func (s *State) wrapup(page *Page) error {
	s.retrackOldSplitChild(page)

	total := 0
	for _, b := range s.bnd {
		total += b.Entries
	}

	mod := page.Modify
	if mod == nil {
		mod = &Modify{}
		page.Modify = mod
	}
	mod.Tracker = s.tracker

	switch {
	case total == 0:
		mod.State = Empty
		mod.SplitPage = nil
		s.stats.incr(&s.stats.RecPageDelete)
		s.logf("wrapup: page empty")

	case len(s.bnd) == 1:
		if err := s.writeWholePage(); err != nil {
			return err
		}
		mod.State = Replace
		mod.WriteAddr, mod.WriteSize = s.bnd[0].Addr, s.bnd[0].Size
		mod.SplitPage = nil
		s.logf("wrapup: single-block replace addr=%d size=%d", mod.WriteAddr, mod.WriteSize)

	default:
		if !s.bnd[len(s.bnd)-1].Written {
			if err := s.writeFinalChunk(); err != nil {
				return err
			}
		}
		mod.State = Split
		mod.SplitPage = s.buildSplitPage()
		if page.Type == RowLeaf {
			s.stats.incr(&s.stats.RecSplitLeaf)
		} else {
			s.stats.incr(&s.stats.RecSplitIntl)
		}
		s.logf("wrapup: split into %d chunks", len(s.bnd))
	}

	return s.tracker.Commit(s.mgr)
}

// writeWholePage handles the case where the page never crossed
// page_size, so the single boundary becomes one
// page_size-sized chunk written now, rather than split_size-sized chunks
// written incrementally.
func (s *State) writeWholePage() error {
	scratch := make([]byte, s.pageSize)
	copy(scratch, s.dsk.Bytes())
	putHeader(scratch, s.pageType, s.bnd[0].Entries, s.bnd[0].Recno)
	addr, size, err := s.mgr.Write(scratch)
	if err != nil {
		return WrapError(ErrBlockIO, err)
	}
	s.bnd[0].Addr, s.bnd[0].Size, s.bnd[0].Written = addr, size, true
	s.stats.incr(&s.stats.RecWritten)
	return nil
}

// writeFinalChunk writes out whatever remains in the working buffer as
// the last boundary's chunk, the same shape as splitTrackingOffStep but
// without pushing a further boundary afterward.
func (s *State) writeFinalChunk() error {
	idx := len(s.bnd) - 1
	chunkLen := s.dsk.Len() - s.bnd[idx].Start
	scratch := make([]byte, s.splitSize)
	copy(scratch[:headerSize], s.dsk.Bytes()[:headerSize])
	copy(scratch[headerSize:headerSize+chunkLen], s.dsk.Bytes()[s.bnd[idx].Start:s.bnd[idx].Start+chunkLen])
	putHeader(scratch, s.pageType, s.bnd[idx].Entries, s.bnd[idx].Recno)
	addr, size, err := s.mgr.Write(scratch)
	if err != nil {
		return WrapError(ErrBlockIO, err)
	}
	s.bnd[idx].Addr, s.bnd[idx].Size, s.bnd[idx].Written = addr, size, true
	s.stats.incr(&s.stats.RecWritten)
	return nil
}

// buildSplitPage constructs the ephemeral in-memory internal page
// standing in for this page until the grandparent's next reconciliation
// inlines it. It is never persisted on its own.
func (s *State) buildSplitPage() *Page {
	sp := &Page{StartRecno: s.bnd[0].Recno}
	switch s.pageType {
	case RowLeaf, RowInt:
		sp.Type = RowInt
		sp.RowSlots = make([]RowSlot, len(s.bnd))
		for i, b := range s.bnd {
			sp.RowSlots[i] = RowSlot{ChildRef: &ChildRef{
				Key:   b.PromotedKey,
				State: Replace,
				Addr:  b.Addr,
				Size:  b.Size,
			}}
		}
	default:
		sp.Type = ColInt
		sp.ColChildren = make([]ChildRef, len(s.bnd))
		for i, b := range s.bnd {
			sp.ColChildren[i] = ChildRef{
				StartRecno: b.Recno,
				State:      Replace,
				Addr:       b.Addr,
				Size:       b.Size,
			}
		}
	}
	return sp
}

// retrackOldSplitChild re-adds a superseded ephemeral split child's
// blocks to the tracker as BLOCK entries so their storage is freed.
func (s *State) retrackOldSplitChild(page *Page) {
	if page.Modify == nil || page.Modify.State != Split || page.Modify.SplitPage == nil {
		return
	}
	old := page.Modify.SplitPage
	for _, slot := range old.RowSlots {
		if slot.ChildRef != nil && slot.ChildRef.Size > 0 {
			s.tracker.Discard(slot.ChildRef.Addr, slot.ChildRef.Size)
		}
	}
	for _, c := range old.ColChildren {
		if c.Size > 0 {
			s.tracker.Discard(c.Addr, c.Size)
		}
	}
}
