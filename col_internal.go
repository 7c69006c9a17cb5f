package btrec

// writeColInternal is C9: walk child references and inline ephemeral
// split children, the column-store counterpart of C6 minus all key
// handling (children route by starting record number, not by key).
func writeColInternal(s *State, page *Page) error {
	for i := range page.ColChildren {
		if err := s.colMerge(&page.ColChildren[i]); err != nil {
			return err
		}
	}
	s.finish()
	return nil
}

// colMerge emits one child reference, recursing into an ephemeral split
// child's own children when State is Split.
func (s *State) colMerge(ref *ChildRef) error {
	switch ref.State {
	case Empty:
		return nil

	case Split:
		s.stats.incr(&s.stats.RecPageMerge)
		child := ref.SplitChild
		for i := range child.ColChildren {
			if err := s.colMerge(&child.ColChildren[i]); err != nil {
				return err
			}
		}
		return nil

	default: // Disk, Replace
		return s.emitColInternalEntry(ref.StartRecno, ref.Addr, ref.Size)
	}
}

func (s *State) emitColInternalEntry(recno uint64, addr uint64, size uint32) error {
	offCell := s.codec.PackOff(addr, size)
	// s.recno must track this entry's own starting record number before
	// ensureRoom runs: a mid-call split seeds the new boundary's Recno
	// from s.recno, so a stale value here would stamp the new chunk with
	// the wrong starting_recno.
	s.recno = recno
	if err := s.ensureRoom(len(offCell)); err != nil {
		return err
	}
	if s.curEntries == 0 {
		// First entry actually landing in the open boundary: correct its
		// Recno in case leading children were dropped (Empty) and the
		// page's nominal starting recno doesn't match.
		s.bnd[len(s.bnd)-1].Recno = recno
	}
	s.dsk.Append(offCell)
	s.curEntries++
	return nil
}
