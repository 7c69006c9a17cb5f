// Package btrec implements page reconciliation: turning an in-memory
// B-tree page holding pending inserts, updates, and deletes into its
// on-disk replacement.
//
// A page is reconciled through a Cache, which keeps one State per page
// type alive across calls so repeated reconciliations of the same tree
// handle reuse their scratch buffers instead of reallocating them:
//
//	cache := btrec.NewCache(btrec.DefaultConfig(), mgr)
//	err := cache.Reconcile(page, nil)
//
// Reconciliation dispatches on the page's format (row-store internal or
// leaf, variable- or fixed-length column-store) to one of five writers,
// all sharing a single split-boundary state machine. A page that grows
// past its configured split size comes back as an ephemeral in-memory
// split page instead of a single disk chunk; the caller is responsible
// for inlining that split page into its parent on the parent's own next
// reconciliation.
//
// Overflow values and keys are tracked across reconciliations so a value
// that is rewritten unchanged reuses its existing block instead of
// allocating a new one; blocks that are no longer referenced are freed
// through the Manager once Reconcile returns.
package btrec
