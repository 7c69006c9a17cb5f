package btrec

import (
	"github.com/pageflush/btrec/blockio"
)

// Cache holds the per-tree-handle State instances kept alive across calls
// on the same page type, so repeated reconciliations of the same handle
// reuse their dsk/bnd scratch space rather than reallocating it every
// time. Reconcile is the single entry point: it takes one dirty
// in-memory page and produces its on-disk replacement, in whatever shape
// (empty/replace/split) the page's size demands.
type Cache struct {
	cfg   Config
	mgr   blockio.Manager
	stats *Stats
	log   Logger

	states [Ovfl + 1]*State
}

// NewCache builds a reconciliation cache bound to one block manager and
// configuration, shared across every page of a tree handle.
func NewCache(cfg Config, mgr blockio.Manager) *Cache {
	return &Cache{cfg: cfg, mgr: mgr, stats: &Stats{}}
}

// Close is a no-op, kept so callers can defer it unconditionally; the
// cache owns no resources beyond its heap-allocated scratch buffers.
func (c *Cache) Close() error {
	return nil
}

// SetLogger installs a diagnostic sink used when Config.Verbose is set.
func (c *Cache) SetLogger(log Logger) { c.log = log }

// Stats returns a point-in-time snapshot of reconciliation counters.
func (c *Cache) Stats() Stats { return c.stats.Snapshot() }

func (c *Cache) stateFor(pageType PageType) *State {
	if c.states[pageType] == nil {
		c.states[pageType] = newState(c.cfg, c.mgr, pageType, NewTracker(), c.stats, c.log)
	}
	return c.states[pageType]
}

// Reconcile dispatches to the writer matching page.Type, drives the split
// engine through splitInit/writer/wrapup, and leaves the result on
// page.Modify. salvage may be nil for the ordinary (non-salvage) path.
func (c *Cache) Reconcile(page *Page, salvage *SalvageCookie) error {
	s := c.stateFor(page.Type)
	if page.Modify != nil && page.Modify.Tracker != nil {
		s.tracker = page.Modify.Tracker
	} else {
		s.tracker = NewTracker()
	}
	// Demote every block still live from the prior reconciliation to
	// tentatively-retired; unmatched Reuse calls below leave it retired
	// and Commit frees it, a matching Reuse promotes it back to live.
	s.tracker.Entry()

	s.splitInit(page.StartRecno)

	var err error
	switch page.Type {
	case RowLeaf:
		err = writeRowLeaf(s, page, salvage)
	case RowInt:
		err = writeRowInternal(s, page)
	case ColVar:
		err = writeColVar(s, page, salvage)
	case ColFix:
		if salvage != nil && salvage.Missing > 0 {
			err = writeColFixSalvage(s, page, salvage)
		} else {
			err = writeColFix(s, page, salvage)
		}
	case ColInt:
		err = writeColInternal(s, page)
	default:
		err = NewError(ErrInvalidFormat)
	}
	if err != nil {
		return err
	}

	return s.wrapup(page)
}
