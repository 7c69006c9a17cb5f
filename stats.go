package btrec

import "sync/atomic"

// Stats holds the plain reconciliation counters. Kept as
// atomically-incremented counters rather than a metrics-library
// dependency: nothing in this module's lineage wires a metrics client
// into a leaf-level algorithmic library.
type Stats struct {
	RecWritten     int64
	RecPageDelete  int64
	RecSplitIntl   int64
	RecSplitLeaf   int64
	RecPageMerge   int64
	RecOvflKey     int64
	RecOvflValue   int64
	SplitBoundaries int64
}

func (s *Stats) incr(counter *int64) {
	if s == nil {
		return
	}
	atomic.AddInt64(counter, 1)
}

// Snapshot returns a copy of the counters for reporting.
func (s *Stats) Snapshot() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		RecWritten:      atomic.LoadInt64(&s.RecWritten),
		RecPageDelete:   atomic.LoadInt64(&s.RecPageDelete),
		RecSplitIntl:    atomic.LoadInt64(&s.RecSplitIntl),
		RecSplitLeaf:    atomic.LoadInt64(&s.RecSplitLeaf),
		RecPageMerge:    atomic.LoadInt64(&s.RecPageMerge),
		RecOvflKey:      atomic.LoadInt64(&s.RecOvflKey),
		RecOvflValue:    atomic.LoadInt64(&s.RecOvflValue),
		SplitBoundaries: atomic.LoadInt64(&s.SplitBoundaries),
	}
}
