// Package stratum is a small generic data-access layer over a relational
// store. The core lives in the store package: a RecordStore facade generic
// over a record type, with per-call sessions, predicate filtering, eager
// relation loading, and caller-controlled dispositions for related values.
// The sqlite and inmem subpackages of store provide the persistence
// backends; this root package holds configuration and re-exports the pieces
// most callers need.
package stratum

import (
	"github.com/kettisen/stratum/store"
)

// Error taxonomy of the store package, re-exported at the root.
var (
	ErrConnection  = store.ErrConnection
	ErrQuery       = store.ErrQuery
	ErrValidation  = store.ErrValidation
	ErrConcurrency = store.ErrConcurrency
	ErrNotFound    = store.ErrNotFound
	ErrStore       = store.ErrStore
)

// Disposition is the persistence action applied to a related value on
// commit.
type Disposition = store.Disposition

const (
	Unchanged = store.Unchanged
	Modified  = store.Modified
	Added     = store.Added
	Deleted   = store.Deleted
	Detached  = store.Detached
)

// Override requests a non-default Disposition for one related value during
// an Add.
type Override = store.Override

// Plan declares relations to eagerly load during a Get.
type Plan = store.Plan

// Include creates a Plan that eagerly loads the named relations.
func Include(relations ...string) *Plan {
	return store.Include(relations...)
}
