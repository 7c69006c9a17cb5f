package btrec

import "github.com/pageflush/btrec/cellcodec"

// sentinelKeyCell is the row-leaf trailing zero-length key cell appended
// once per chunk: a zero-length value is elided on disk
// and identified at read time only by two adjacent key cells, so the
// chunk's last value needs a sentinel key cell after it if it was
// zero-length — written unconditionally, matching the source's own
// "always reserve the byte" simplification.
var sentinelKeyCell = cellcodec.Default.PackKey(0, nil)

// writeRowLeaf is C5: walk the original slots plus their insert
// skiplists, building compressed keys and values.
func writeRowLeaf(s *State, page *Page, salvage *SalvageCookie) error {
	s.chunkSentinel = func() []byte { return sentinelKeyCell }
	defer func() { s.chunkSentinel = nil }()

	origLast := []byte(nil) // previous on-disk key, for case-3 rebuilds

	emitInsert := func(ins *Insert) error {
		if ins.Update != nil && ins.Update.Deleted {
			return nil
		}
		var val []byte
		if ins.Update != nil {
			val = ins.Update.Value
		}
		return s.emitRowKV(ins.Key, val)
	}

	for _, ins := range page.LeadingInsert {
		if err := emitInsert(ins); err != nil {
			return err
		}
	}

	for i := range page.RowSlots {
		slot := &page.RowSlots[i]

		fullKey, keyOvflCell, err := rowLeafKeyBytes(s.codec, slot, origLast)
		if err != nil {
			return err
		}
		if !slot.OrigKeyOvfl {
			origLast = fullKey
		}

		if slot.Update != nil && slot.Update.Deleted {
			s.discardSlotOverflows(slot)
		} else {
			var valCell []byte
			if slot.Update == nil {
				valCell = slot.OrigValueCell
			} else {
				valCell, _, err = s.buildValueCell(slot.Update.Value, slot.Update)
				if err != nil {
					return err
				}
			}
			if err := s.emitRowSlot(fullKey, keyOvflCell, valCell); err != nil {
				return err
			}
		}

		for _, ins := range slot.Inserts {
			if err := emitInsert(ins); err != nil {
				return err
			}
		}
	}

	s.finish()
	return nil
}

// rowLeafKeyBytes resolves a slot's key across its three possible cases,
// returning the full key bytes (for compression bookkeeping) and, for
// case 1 (disk overflow), the raw cell to copy verbatim.
func rowLeafKeyBytes(codec cellcodec.Codec, slot *RowSlot, origLast []byte) (full []byte, verbatimOvflCell []byte, err error) {
	switch {
	case slot.OrigKeyOvfl:
		return nil, slot.OrigKeyCell, nil
	case slot.InstantiatedKey != nil:
		return slot.InstantiatedKey, nil, nil
	default:
		cell, err := codec.Unpack(slot.OrigKeyCell)
		if err != nil {
			return nil, nil, WrapError(ErrInvalidFormat, err)
		}
		full := make([]byte, 0, cell.Prefix+len(cell.Data))
		if cell.Prefix > len(origLast) {
			return nil, nil, WrapError(ErrInvalidFormat, nil)
		}
		full = append(full, origLast[:cell.Prefix]...)
		full = append(full, cell.Data...)
		return full, nil, nil
	}
}

// emitRowSlot builds and appends the key cell (verbatim overflow copy,
// or freshly prefix-compressed) and the already-resolved value cell.
func (s *State) emitRowSlot(fullKey, verbatimOvflCell, valCell []byte) error {
	var keyCell []byte
	if verbatimOvflCell != nil {
		keyCell = verbatimOvflCell
	} else {
		keyCell = s.buildKeyCell(fullKey)
	}
	return s.appendRowKV(keyCell, valCell, fullKey, verbatimOvflCell != nil)
}

// emitRowKV is the insert-skiplist path: keys are always instantiated, so
// there is no overflow-verbatim-copy case.
func (s *State) emitRowKV(key, value []byte) error {
	keyCell := s.buildKeyCell(key)
	valCell, _, err := s.buildValueCell(value, nil)
	if err != nil {
		return err
	}
	return s.appendRowKV(keyCell, valCell, key, false)
}

func (s *State) appendRowKV(keyCell, valCell, fullKey []byte, keyIsOvfl bool) error {
	total := len(keyCell) + len(valCell) + len(sentinelKeyCell)
	if err := s.ensureRoom(total); err != nil {
		return err
	}
	s.recordBoundaryKey(fullKey, keyIsOvfl)
	s.dsk.Append(keyCell)
	s.dsk.Append(valCell)
	s.curEntries++
	s.cur = append(s.cur[:0], fullKey...)
	s.lastKeyOvfl = keyIsOvfl
	if !keyIsOvfl {
		s.last = append(s.last[:0], fullKey...)
		if !s.keyPfxCompress {
			s.keyPfxCompress = true
		}
	}
	return nil
}

// buildKeyCell prefix-compresses fullKey against s.last when enabled.
// A fresh chunk's first real key is never compressed
// (keyPfxCompress starts false on every new boundary).
func (s *State) buildKeyCell(fullKey []byte) []byte {
	pfx := 0
	if s.cfg.PrefixCompression && s.keyPfxCompress {
		pfx = prefixCompress(fullKey, s.last)
	}
	return s.codec.PackKey(pfx, fullKey[pfx:])
}

// buildValueCell builds a value cell from raw bytes, applying the
// configured value Huffman codec and promoting to an overflow block when
// the result exceeds MaxLeafItem. ref identifies the
// update's source for tracker reuse across reconciliations; nil (for
// fresh inserts) means no reuse is attempted.
func (s *State) buildValueCell(value []byte, ref any) (cell []byte, ovflRef any, err error) {
	data := value
	if s.cfg.HuffmanValue != nil {
		data = s.cfg.HuffmanValue.Encode(data)
	}
	if uint32(len(data)) <= s.cfg.MaxLeafItem {
		return s.codec.PackData(1, data), nil, nil
	}
	var a uint64
	var size uint32
	var ok bool
	if ref != nil {
		a, size, ok = s.tracker.Reuse(ref)
	}
	if !ok {
		a, size, err = s.mgr.Write(data)
		if err != nil {
			return nil, nil, WrapError(ErrBlockIO, err)
		}
		trackRef := ref
		if trackRef == nil {
			trackRef = new(byte)
		}
		s.tracker.Add(trackRef, a, size)
	}
	s.stats.incr(&s.stats.RecOvflValue)
	return s.codec.PackDataOvfl(1, a, size), ref, nil
}

// discardSlotOverflows marks a deleted slot's original overflow key
// and/or value for freeing at wrapup.
// Overflow values that went through buildValueCell on a prior
// reconciliation are already tracked under slot.Update and will lapse to
// OVFL_DISCARD on their own (Entry already ran, and this delete never
// calls Reuse); this only covers the original-image overflow key, which
// this module never tracks for reuse, and an original-image overflow
// value that was never routed through buildValueCell at all.
func (s *State) discardSlotOverflows(slot *RowSlot) {
	if slot.OrigKeyOvfl {
		if cell, err := s.codec.Unpack(slot.OrigKeyCell); err == nil {
			s.tracker.Discard(cell.Addr, cell.Size)
		}
	}
	if slot.OrigValueCell != nil {
		if cell, err := s.codec.Unpack(slot.OrigValueCell); err == nil && cell.Type == cellcodec.ValueOvfl {
			s.tracker.Discard(cell.Addr, cell.Size)
		}
	}
}
