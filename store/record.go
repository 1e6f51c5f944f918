package store

import (
	"fmt"
	"strings"
)

// Record is implemented by any value that can be kept in a record set. The ID
// type parameter is the type of the record's key field.
type Record[ID comparable] interface {
	// RecordID returns the key value that uniquely identifies the Record.
	RecordID() ID
}

// Predicate is a filter over records. A record is retained by Get only if the
// Predicate returns true for it. A nil Predicate retains every record.
type Predicate[T any] func(rec T) bool

// Disposition is the persistence action a session's change tracker applies to
// a related value when changes are committed.
type Disposition int

const (
	// Unchanged attaches the related value as an existing row; no new row is
	// created for it and its fields are not written.
	Unchanged Disposition = iota

	// Modified writes every field of the related value to its existing row.
	Modified

	// Added inserts the related value as a new row. This is the default
	// disposition for any populated relation on an inserted record.
	Added

	// Deleted removes the related value's row.
	Deleted

	// Detached excludes the related value from the unit of work entirely; it
	// is neither written nor attached.
	Detached
)

func (d Disposition) String() string {
	switch d {
	case Unchanged:
		return "unchanged"
	case Modified:
		return "modified"
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Detached:
		return "detached"
	default:
		return fmt.Sprintf("Disposition(%d)", int(d))
	}
}

// ParseDisposition parses a string into a Disposition. It accepts exactly the
// strings produced by Disposition.String, ignoring case.
func ParseDisposition(s string) (Disposition, error) {
	switch strings.ToLower(s) {
	case Unchanged.String():
		return Unchanged, nil
	case Modified.String():
		return Modified, nil
	case Added.String():
		return Added, nil
	case Deleted.String():
		return Deleted, nil
	case Detached.String():
		return Detached, nil
	default:
		return Unchanged, fmt.Errorf("must be one of 'unchanged', 'modified', 'added', 'deleted', or 'detached'")
	}
}

// Override requests that a single related value on a record about to be
// inserted be committed with the given Disposition instead of the default.
//
// Relation must name a relation registered for the record type. Overrides
// naming unknown relations are skipped without error, as are overrides whose
// Value is nil.
type Override struct {
	// Relation is the name of the relation the override applies to.
	Relation string

	// Value is the related value to apply the Disposition to.
	Value any

	// Disposition is the persistence action to apply to Value at commit.
	Disposition Disposition
}

// OverrideFunc produces the overrides to apply when inserting rec. It is
// called exactly once per Add call, with the record that is about to be
// inserted.
type OverrideFunc[T any] func(rec T) []Override
