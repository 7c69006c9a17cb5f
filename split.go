package btrec

import (
	"encoding/binary"

	"github.com/pageflush/btrec/blockio"
	"github.com/pageflush/btrec/cellcodec"
)

// BndState is the split engine's state, kept as an explicit small enum and
// driven as a state machine rather than a switch buried inside the
// writer's loop.
type BndState uint8

const (
	// SplitBoundary: the page might still fit within PageSize; space_avail
	// is sized to the remaining budget before the next split_size
	// boundary. No I/O happens in this state.
	SplitBoundary BndState = iota
	// SplitMax is declared but never entered: splitBoundaryStep runs the
	// one-time fix-up itself as soon as less than one split_size of room
	// is left below page_size, and moves straight to SplitTrackingOff. A
	// page whose body is larger than split_size but would still fit in
	// page_size is therefore split, not written as a single chunk.
	SplitMax
	// SplitTrackingOff: every time another split_size fills, the current
	// working buffer is written out directly as a new boundary.
	SplitTrackingOff
)

// headerSize is the fixed on-disk chunk header: {type byte, entries
// uint32, starting_recno uint64}.
const headerSize = 1 + 4 + 8

// Boundary is one entry of the bnd[] array.
type Boundary struct {
	Start       int    // byte offset into dsk where this chunk's body begins
	Recno       uint64 // starting record number of this chunk
	Entries     int    // K/V cell count in this chunk
	Addr        uint64 // set once the chunk is written
	Size        uint32
	Written     bool
	PromotedKey []byte // row-store only
}

// State is the reconcile state scoped to one reconcile() call, cached and
// reused across calls on the same tree handle.
type State struct {
	cfg   Config
	mgr   blockio.Manager
	codec cellcodec.Codec
	log   Logger

	pageType  PageType
	pageSize  uint32
	splitSize uint32

	dsk *Buf

	bnd      []Boundary
	bndState BndState

	recno      uint64 // starting recno of the chunk currently being filled
	curEntries int     // entries appended since the last pushed boundary
	spaceAvail uint32

	// k/v are staging slots; no writer reads or fills them, cells are
	// built as local byte slices instead.
	k, v stageSlot

	// cur/last are full-key buffers for prefix/suffix compression.
	cur, last []byte

	keyPfxCompress bool
	keySfxCompress bool
	lastKeyOvfl    bool

	// cellZero supports row-internal 0th-key truncation. mergeRef is not
	// read: rowMerge passes the merge-correction key as an argument.
	cellZero bool
	mergeRef []byte

	tracker *Tracker
	stats   *Stats

	// fixPending/fixPendingBits hold the fixed-column writer's partially
	// filled current byte; fixed-column entries are sub-byte and cannot
	// be appended to dsk one whole byte at a time until 8 bits have
	// accumulated.
	fixPendingBits  uint16
	fixPendingCount int

	// chunkSentinel, when set, is appended to dsk immediately before a
	// chunk is closed out (row-leaf's trailing zero-length key cell).
	// nil for every writer but row-leaf.
	chunkSentinel func() []byte
}

// closeSentinel appends the writer's chunk-closing sentinel cell, if one
// is configured, right before a chunk's bytes are finalized.
func (s *State) closeSentinel() {
	if s.chunkSentinel == nil {
		return
	}
	s.dsk.Append(s.chunkSentinel())
}

// stageSlot is the staging area for the key or value currently being
// built.
type stageSlot struct {
	cellBytes []byte
	ovflRef   any // set when this cell references a tracked overflow
}

// Logger receives structured diagnostics at split and wrapup decision
// points when Config.Verbose is set.
type Logger func(format string, args ...any)

func (s *State) logf(format string, args ...any) {
	if s.log != nil && s.cfg.Verbose {
		s.log(format, args...)
	}
}

// newState allocates a fresh reconcile state for one page type, sized to
// that type's configured maximum page size.
func newState(cfg Config, mgr blockio.Manager, pageType PageType, tracker *Tracker, stats *Stats, log Logger) *State {
	pageSize := cfg.MaxLeafPage
	splitPct := cfg.SplitPct
	if pageType == RowInt || pageType == ColInt {
		pageSize = cfg.MaxIntlPage
	}
	if pageType == ColFix {
		// Fixed-column pages never speculate a smaller split target.
		splitPct = 100
	}
	ss := splitSize(pageSize, splitPct, cfg.AllocSize)
	return &State{
		cfg:       cfg,
		mgr:       mgr,
		codec:     cellcodec.Default,
		log:       log,
		pageType:  pageType,
		pageSize:  pageSize,
		splitSize: ss,
		dsk:       NewBuf(int(pageSize)),
		tracker:   tracker,
		stats:     stats,
	}
}

// splitInit resets the state for a new reconciliation pass over one page,
// reserving the header and establishing bnd[0] at the post-header offset
// (invariant 4).
func (s *State) splitInit(startRecno uint64) {
	s.dsk.Reset()
	s.dsk.Reserve(headerSize)
	s.bnd = s.bnd[:0]
	s.bnd = append(s.bnd, Boundary{Start: headerSize, Recno: startRecno})
	s.recno = startRecno
	s.curEntries = 0
	s.keyPfxCompress = false
	s.cur = s.cur[:0]
	s.last = s.last[:0]
	s.fixPendingBits = 0
	s.fixPendingCount = 0

	if s.splitSize >= s.pageSize {
		// No speculative tracking: every overflow is a direct write
		// (split-size equal to page-size).
		s.bndState = SplitTrackingOff
	} else {
		s.bndState = SplitBoundary
	}
	s.spaceAvail = s.budgetFor(headerSize)
}

// budgetFor returns the space_avail for a chunk whose body starts at
// byte offset `start`, sized to whichever boundary comes first: the next
// split_size target or the absolute page_size ceiling.
func (s *State) budgetFor(start int) uint32 {
	toSplit := int(s.splitSize) - headerSize - (start - s.bnd[len(s.bnd)-1].Start)
	toPage := int(s.pageSize) - start
	avail := toSplit
	if toPage < avail {
		avail = toPage
	}
	if avail < 0 {
		avail = 0
	}
	return uint32(avail)
}

// fits reports whether the next cell of length n can be appended without
// crossing space_avail.
func (s *State) fits(n int) bool {
	s.spaceAvail = s.budgetFor(s.dsk.Len())
	return n <= int(s.spaceAvail)
}

// ensureRoom runs the split() step repeatedly until the pending cell of
// length n fits, per the writer's own "while (kv.len > space_avail)
// split()" loop — each call only guarantees forward progress of at least
// one boundary, so the writer must re-check after every call.
func (s *State) ensureRoom(n int) error {
	for !s.fits(n) {
		if err := s.split(); err != nil {
			return err
		}
	}
	return nil
}

// split advances the state machine by exactly one step.
func (s *State) split() error {
	switch s.bndState {
	case SplitBoundary:
		return s.splitBoundaryStep()
	case SplitTrackingOff:
		return s.splitTrackingOffStep()
	default:
		return nil
	}
}

// splitBoundaryStep closes the current speculative chunk and either opens
// a new speculative boundary (still no I/O) or, if less than one
// split_size of room is left below page_size, performs the one-time
// fix-up instead.
func (s *State) splitBoundaryStep() error {
	if int(s.pageSize)-s.dsk.Len() < int(s.splitSize) {
		// The open chunk is not closed here: the fix-up shifts it down as
		// the residual, and splitTrackingOffStep closes it when written.
		return s.splitMaxFixup()
	}

	s.closeSentinel()
	last := &s.bnd[len(s.bnd)-1]
	last.Entries = s.curEntries

	nextStart := s.dsk.Len()
	s.bnd = append(s.bnd, Boundary{Start: nextStart, Recno: s.recno})
	s.curEntries = 0
	s.keyPfxCompress = false
	s.spaceAvail = s.budgetFor(nextStart)
	s.stats.incr(&s.stats.SplitBoundaries)
	s.logf("split: new speculative boundary at %d, recno=%d", nextStart, s.recno)
	return nil
}

// splitMaxFixup implements the one-time fix-up: every fully
// speculative boundary becomes a real written chunk; the residual
// partial chunk is shifted to the start of dsk and tracking turns off.
func (s *State) splitMaxFixup() error {
	full := s.dsk.Bytes()
	lastIdx := len(s.bnd) - 1 // the still-open, not-yet-closed boundary
	for i := 0; i < lastIdx; i++ {
		chunkLen := s.bnd[i+1].Start - s.bnd[i].Start
		scratch := make([]byte, s.splitSize)
		copy(scratch[:headerSize], full[:headerSize])
		copy(scratch[headerSize:headerSize+chunkLen], full[s.bnd[i].Start:s.bnd[i].Start+chunkLen])
		putHeader(scratch, s.pageType, s.bnd[i].Entries, s.bnd[i].Recno)

		addr, size, err := s.mgr.Write(scratch)
		if err != nil {
			return WrapError(ErrBlockIO, err)
		}
		s.bnd[i].Addr, s.bnd[i].Size, s.bnd[i].Written = addr, size, true
		s.stats.incr(&s.stats.RecWritten)
	}

	residualStart := s.bnd[lastIdx].Start
	residualLen := s.dsk.Len() - residualStart
	residual := append([]byte(nil), full[residualStart:residualStart+residualLen]...)
	s.dsk.Truncate(headerSize)
	s.dsk.Append(residual)

	s.bnd[lastIdx].Start = headerSize
	s.bndState = SplitTrackingOff
	s.spaceAvail = s.budgetFor(s.dsk.Len())
	s.logf("split: page_size exhausted, wrote %d boundaries, residual=%d bytes", lastIdx, residualLen)
	return nil
}

// splitTrackingOffStep writes the entire current working buffer out as a
// finished chunk, then resets cursors for the next one.
func (s *State) splitTrackingOffStep() error {
	s.closeSentinel()
	idx := len(s.bnd) - 1
	s.bnd[idx].Entries = s.curEntries
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

	s.dsk.Truncate(headerSize)
	s.bnd = append(s.bnd, Boundary{Start: headerSize, Recno: s.recno})
	s.curEntries = 0
	s.keyPfxCompress = false
	s.spaceAvail = s.budgetFor(headerSize)
	s.logf("split: flushed tracking-off chunk, addr=%d size=%d", addr, size)
	return nil
}

// finish closes out the last open boundary once a writer has appended
// every cell.
func (s *State) finish() {
	s.closeSentinel()
	idx := len(s.bnd) - 1
	s.bnd[idx].Entries = s.curEntries
	if len(s.bnd) == 1 && !s.bnd[0].Written {
		// Never crossed page_size: this single boundary is the whole
		// page. Leave it unwritten here; wrapup (C10) writes it once it
		// knows the final outcome (empty/replace/split).
		return
	}
}

// recordBoundaryKey stamps the currently open boundary's promoted key the
// first time an entry actually lands in it — the only point at which that
// entry's full key is known. Boundary 0's promoted key is the page's first
// key verbatim (prefix length 0 by construction, nothing to compress
// against); every later boundary's promoted key is suffix-compressed
// against the previous boundary's last key, still held in s.last at the
// point this runs (appendRowKV/emitRowInternalEntry overwrite it only
// after this call).
func (s *State) recordBoundaryKey(fullKey []byte, keyIsOvfl bool) {
	if s.pageType != RowLeaf && s.pageType != RowInt {
		return
	}
	if s.curEntries != 0 {
		return // boundary already has its first key recorded
	}
	idx := len(s.bnd) - 1
	if idx == 0 || !s.keySfxCompress || keyIsOvfl {
		s.bnd[idx].PromotedKey = append([]byte(nil), fullKey...)
		return
	}
	s.bnd[idx].PromotedKey = suffixCompress(fullKey, s.last)
}

// suffixCompress returns the minimum-length byte prefix of cur that is
// strictly greater than last.
func suffixCompress(cur, last []byte) []byte {
	n := len(cur)
	if len(last) < n {
		n = len(last)
	}
	i := 0
	for i < n && cur[i] == last[i] {
		i++
	}
	// cur[:i+1] is the shortest prefix strictly greater than last, as
	// long as it doesn't overrun cur itself.
	if i+1 < len(cur) {
		return append([]byte(nil), cur[:i+1]...)
	}
	return append([]byte(nil), cur...)
}

// prefixCompress returns pfx = min(255, len(cur), len(last),
// first-differing-byte-index).
func prefixCompress(cur, last []byte) int {
	n := len(cur)
	if len(last) < n {
		n = len(last)
	}
	if n > 255 {
		n = 255
	}
	i := 0
	for i < n && cur[i] == last[i] {
		i++
	}
	return i
}

func putHeader(buf []byte, t PageType, entries int, recno uint64) {
	buf[0] = byte(t)
	binary.BigEndian.PutUint32(buf[1:5], uint32(entries))
	binary.BigEndian.PutUint64(buf[5:13], recno)
}

func getHeader(buf []byte) (t PageType, entries int, recno uint64) {
	t = PageType(buf[0])
	entries = int(binary.BigEndian.Uint32(buf[1:5]))
	recno = binary.BigEndian.Uint64(buf[5:13])
	return
}
