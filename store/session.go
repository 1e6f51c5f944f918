package store

import "context"

// Session is one opened unit of work against a backing store. It tracks
// pending inserts, updates, and relation dispositions until Commit flushes
// them all at once.
//
// A Session belongs exclusively to the single operation call that opened it.
// It must be released with Close when the call ends, whether the call
// succeeded or not, and must never be retained past that point.
type Session[ID comparable, T Record[ID]] interface {

	// Select returns every record in the set, fully materialized. The
	// returned slice is a snapshot; it is not re-evaluated after the Session
	// closes.
	Select(ctx context.Context) ([]T, error)

	// LoadRelation populates the named relation on every record in recs from
	// the store and returns the updated records. An error matching ErrQuery
	// is returned if the backing schema has no such relation.
	LoadRelation(ctx context.Context, recs []T, relation string) ([]T, error)

	// SetDisposition instructs the change tracker to commit the related
	// value held by the named relation with the given Disposition instead of
	// the default. The default for a populated relation on an inserted
	// record is Added.
	SetDisposition(relation string, value any, d Disposition) error

	// EnqueueInsert registers rec for insertion at Commit. Store-assigned
	// fields such as generated keys are written back into rec during Commit.
	EnqueueInsert(rec *T) error

	// MarkModified marks every field of rec dirty, registering a full-row
	// update at Commit. rec must correspond to an existing row identifiable
	// by its key.
	MarkModified(rec *T) error

	// Commit flushes all pending changes in one unit of work. On error,
	// nothing is committed.
	Commit(ctx context.Context) error

	// Close releases the Session and discards any changes that were not
	// committed. It must always be called once the Session is no longer in
	// use.
	Close() error
}

// SessionFactory opens a Session on the store identified by the given
// connection descriptor. An empty descriptor selects the factory's configured
// default store. An error matching ErrConnection is returned if the
// descriptor is invalid or the store cannot be reached.
//
// Factories are how a RecordStore receives its backing store: the owner of
// the RecordStore supplies one at construction, typically from the sqlite or
// inmem subpackage.
type SessionFactory[ID comparable, T Record[ID]] func(descriptor string) (Session[ID, T], error)
