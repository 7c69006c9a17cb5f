package btrec

// writeRowInternal is C6: walk child references, recursively inlining
// any ephemeral split children, applying suffix compression to promoted
// keys and truncating the page's 0th key to one byte.
func writeRowInternal(s *State, page *Page) error {
	s.keySfxCompress = s.cfg.InternalKeyTruncate
	s.cellZero = true
	defer func() { s.cellZero = false }()

	for i := range page.RowSlots {
		ref := page.RowSlots[i].ChildRef
		if ref == nil {
			continue
		}
		if err := s.rowMerge(ref, nil); err != nil {
			return err
		}
	}
	s.finish()
	return nil
}

// rowMerge emits one child reference, recursing into an ephemeral split
// child's own children when State is Split. When
// non-nil, mergeKey overrides the first emitted entry's key with the
// parent's canonical lower bound (the merge-correction key), because the
// split child's own 0th key may have drifted below it.
func (s *State) rowMerge(ref *ChildRef, mergeKey []byte) error {
	switch ref.State {
	case Empty:
		if ref.OrigKeyOvfl {
			s.tracker.Discard(ref.Addr, ref.Size)
		}
		return nil

	case Split:
		s.stats.incr(&s.stats.RecPageMerge)
		child := ref.SplitChild
		for i := range child.RowSlots {
			childRef := child.RowSlots[i].ChildRef
			if childRef == nil {
				continue
			}
			var mk []byte
			if i == 0 {
				if mergeKey != nil {
					mk = mergeKey
				} else {
					mk = ref.Key
				}
			}
			if err := s.rowMerge(childRef, mk); err != nil {
				return err
			}
		}
		return nil

	default: // Disk, Replace
		key := ref.Key
		if mergeKey != nil {
			key = mergeKey
		}
		return s.emitRowInternalEntry(key, ref.Addr, ref.Size)
	}
}

// emitRowInternalEntry writes one (key, off) pair. The first entry of
// the whole page gets its key truncated to one byte (search treats the
// 0th key as -infinity, so its value doesn't matter).
func (s *State) emitRowInternalEntry(key []byte, addr uint64, size uint32) error {
	var keyCell []byte
	if s.cellZero {
		keyCell = s.codec.PackKey(0, key[:min(1, len(key))])
		s.cellZero = false
	} else {
		pfx := 0
		if s.cfg.PrefixCompression && s.keyPfxCompress {
			pfx = prefixCompress(key, s.last)
		}
		keyCell = s.codec.PackKey(pfx, key[pfx:])
	}
	offCell := s.codec.PackOff(addr, size)

	total := len(keyCell) + len(offCell)
	if err := s.ensureRoom(total); err != nil {
		return err
	}
	s.recordBoundaryKey(key, false)
	s.dsk.Append(keyCell)
	s.dsk.Append(offCell)
	s.curEntries++
	s.cur = append(s.cur[:0], key...)
	s.last = append(s.last[:0], key...)
	s.keyPfxCompress = true
	return nil
}
