package btrec

// colWindow is the (last_value, last_deleted, rle_count) window C7
// maintains while walking records in recno order.
type colWindow struct {
	open    bool
	recno   uint64
	deleted bool
	value   []byte
	rle     uint64

	// rawOvfl carries the fast-path "no update touched this run" case:
	// the window holds the still-packed VALUE_OVFL cell instead of
	// decoded bytes, and is flushed as a raw copy.
	rawOvfl []byte
	ovflRef any
}

// writeColVar is C7: walk original runs plus per-record updates and
// trailing appends, collapsing adjacent equal values into RLE cells.
func writeColVar(s *State, page *Page, salvage *SalvageCookie) error {
	win := newSalvageWindow(salvage)
	var w colWindow

	updates := page.ColUpdates
	nextUpdateIdx := 0
	peekUpdate := func(recno uint64) *ColUpdate {
		for nextUpdateIdx < len(updates) && updates[nextUpdateIdx].Recno < recno {
			nextUpdateIdx++
		}
		if nextUpdateIdx < len(updates) && updates[nextUpdateIdx].Recno == recno {
			return &updates[nextUpdateIdx]
		}
		return nil
	}

	recno := page.StartRecno
	for i := range page.ColSlots {
		slot := page.ColSlots[i]
		// Fast path: an all-overflow run with no covering update.
		if slot.OrigOvfl && !runHasUpdate(updates, slot.StartRecno, slot.RLE) {
			if err := s.flushColWindow(&w, win); err != nil {
				return err
			}
			w = colWindow{open: true, recno: slot.StartRecno, rawOvfl: slot.OrigCell, rle: slot.RLE, ovflRef: &page.ColSlots[i]}
			if err := s.flushColWindow(&w, win); err != nil {
				return err
			}
			recno = slot.StartRecno + slot.RLE
			continue
		}

		for i := uint64(0); i < slot.RLE; i++ {
			r := slot.StartRecno + i
			deleted, value := slot.Deleted, slot.Value
			if u := peekUpdate(r); u != nil {
				deleted, value = u.Deleted, u.Value
			}
			if err := s.colWindowAdmit(&w, win, r, deleted, value); err != nil {
				return err
			}
		}
		recno = slot.StartRecno + slot.RLE
	}

	for _, a := range page.ColAppends {
		for recno < a.Recno {
			if err := s.colWindowAdmit(&w, win, recno, true, nil); err != nil {
				return err
			}
			recno++
		}
		if err := s.colWindowAdmit(&w, win, a.Recno, a.Deleted, a.Value); err != nil {
			return err
		}
		recno = a.Recno + 1
	}

	if err := s.flushColWindow(&w, win); err != nil {
		return err
	}
	s.finish()
	return nil
}

func runHasUpdate(updates []ColUpdate, start, rle uint64) bool {
	end := start + rle
	for _, u := range updates {
		if u.Recno >= start && u.Recno < end {
			return true
		}
	}
	return false
}

// colWindowAdmit compares one record against the open window, extending
// its RLE run on a match or flushing and reopening on a mismatch.
func (s *State) colWindowAdmit(w *colWindow, win *salvageWindow, recno uint64, deleted bool, value []byte) error {
	if w.open && w.rawOvfl == nil && w.deleted == deleted && (deleted || bytesEqual(w.value, value)) {
		w.rle++
		return nil
	}
	if err := s.flushColWindow(w, win); err != nil {
		return err
	}
	*w = colWindow{open: true, recno: recno, deleted: deleted, value: value, rle: 1}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// flushColWindow writes the currently open window as one cell, trimming
// it against the salvage cookie first.
func (s *State) flushColWindow(w *colWindow, win *salvageWindow) error {
	if !w.open || w.rle == 0 {
		*w = colWindow{}
		return nil
	}
	kept := win.admit(w.rle)
	recno := w.recno
	if kept == 0 {
		*w = colWindow{}
		return nil
	}
	skipped := w.rle - kept
	recno += skipped

	var cell []byte
	var err error
	switch {
	case w.rawOvfl != nil:
		cell = w.rawOvfl
		s.tracker.Reuse(w.ovflRef) // keep it live: referenced, not discarded
	case w.deleted:
		cell = s.codec.PackDel(kept)
	case uint32(len(w.value)) > s.cfg.MaxLeafItem:
		cell, err = s.buildRunOverflowCell(kept, w.value)
		if err != nil {
			return err
		}
	default:
		data := w.value
		if s.cfg.HuffmanValue != nil {
			data = s.cfg.HuffmanValue.Encode(data)
		}
		cell = s.codec.PackData(kept, data)
	}

	if err := s.ensureRoom(len(cell)); err != nil {
		return err
	}
	s.dsk.Append(cell)
	s.curEntries++
	s.recno = recno + kept
	*w = colWindow{}
	return nil
}

func (s *State) buildRunOverflowCell(rle uint64, value []byte) ([]byte, error) {
	data := value
	if s.cfg.HuffmanValue != nil {
		data = s.cfg.HuffmanValue.Encode(data)
	}
	addr, size, err := s.mgr.Write(data)
	if err != nil {
		return nil, WrapError(ErrBlockIO, err)
	}
	s.tracker.Add(new(byte), addr, size)
	s.stats.incr(&s.stats.RecOvflValue)
	return s.codec.PackDataOvfl(rle, addr, size), nil
}
