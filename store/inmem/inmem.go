// Package inmem provides an in-memory session implementation for the stratum
// store, suitable for tests and for running without a DB file.
//
// A Datastore holds the records of a single record type. It can optionally
// persist snapshots of itself to disk; see Open and Persist.
package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/kettisen/stratum/store"
)

// Table describes how one record type behaves in a Datastore. The zero value
// is usable for a record type with caller-assigned keys, no constraints, and
// no relations.
type Table[ID comparable, T store.Record[ID]] struct {
	// AssignID, if set, is called on insert when the record's key is the
	// zero value, and returns the record with a newly generated key set.
	AssignID func(rec T) T

	// Check, if set, is called on insert with a snapshot of the existing
	// records and the candidate. Returning a non-nil error rejects the
	// insert; wrap store.ErrValidation for constraint-style failures.
	Check func(existing []T, rec T) error

	// Relations are the record type's navigable relations and the hooks that
	// persist and load them. Hooks run while the Datastore's lock is held,
	// so they must not call back into the same Datastore.
	Relations []Relation[ID, T]

	// Encode and Decode convert a record to and from snapshot bytes. Both
	// must be set for the Datastore to support persistence.
	Encode func(rec T) ([]byte, error)
	Decode func(data []byte) (T, error)
}

// Relation holds the in-memory hooks for one relation of a record type. The
// hooks that do not apply to a particular relation may be left nil.
type Relation[ID comparable, T store.Record[ID]] struct {
	// Name is the relation's name, matching its entry in the record type's
	// store.Relations registry.
	Name string

	// Value returns the related value held by rec, or untyped nil when the
	// relation is unpopulated.
	Value func(rec T) any

	// Attach copies the related value's key into the record's foreign key
	// field. It is skipped for the Deleted and Detached dispositions.
	Attach func(rec *T)

	// Insert persists the related value as a new record in its own
	// Datastore, writing any generated key back into it.
	Insert func(rec *T) error

	// Update writes the related value over its existing record.
	Update func(rec *T) error

	// Delete removes the related value's record.
	Delete func(rec *T) error

	// Load populates the relation on every record in recs and returns the
	// updated records.
	Load func(recs []T) ([]T, error)
}

// Datastore is an in-memory record set for a single record type. Its
// sessions are obtained through Factory. The zero value is not usable; call
// NewDatastore or Open.
type Datastore[ID comparable, T store.Record[ID]] struct {
	table Table[ID, T]

	// DataFile is the path the Datastore persists snapshots to. If it is the
	// empty string, the Datastore is in-memory only and Persist and Close
	// will not write to disk.
	DataFile string

	mtx    sync.RWMutex
	closed bool
	recs   map[ID]T
	order  []ID
}

// NewDatastore creates an empty in-memory Datastore with no persistence.
func NewDatastore[ID comparable, T store.Record[ID]](table Table[ID, T]) *Datastore[ID, T] {
	return &Datastore[ID, T]{
		table: table,
		recs:  make(map[ID]T),
	}
}

// Factory returns a store.SessionFactory that opens sessions on the
// Datastore. The connection descriptor must be empty; an in-memory store has
// no addressable connections, so a non-empty descriptor is a connection
// error, as is a closed Datastore.
func (ds *Datastore[ID, T]) Factory() store.SessionFactory[ID, T] {
	return func(descriptor string) (store.Session[ID, T], error) {
		if descriptor != "" {
			return nil, fmt.Errorf("%w: in-memory store does not accept connection descriptors", store.ErrConnection)
		}

		ds.mtx.RLock()
		defer ds.mtx.RUnlock()
		if ds.closed {
			return nil, fmt.Errorf("%w: store is closed", store.ErrConnection)
		}

		return &session[ID, T]{
			ds:    ds,
			disps: make(map[string]store.Disposition),
		}, nil
	}
}

// Put inserts or replaces a record directly, bypassing sessions. It assigns a
// key via the table's AssignID hook if the record's key is the zero value,
// and returns the record as stored. It is intended for seeding stores and
// for use in relation hooks of other Datastores.
func (ds *Datastore[ID, T]) Put(rec T) (T, error) {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()

	if ds.closed {
		return rec, fmt.Errorf("%w: store is closed", store.ErrConnection)
	}

	rec = ds.assignID(rec)
	ds.putUnsafe(rec)
	return rec, nil
}

// Get returns the record with the given key and whether it exists.
func (ds *Datastore[ID, T]) Get(id ID) (T, bool) {
	ds.mtx.RLock()
	defer ds.mtx.RUnlock()

	rec, ok := ds.recs[id]
	return rec, ok
}

// Len returns the number of records currently stored.
func (ds *Datastore[ID, T]) Len() int {
	ds.mtx.RLock()
	defer ds.mtx.RUnlock()

	return len(ds.recs)
}

func (ds *Datastore[ID, T]) assignID(rec T) T {
	var zero ID
	if rec.RecordID() == zero && ds.table.AssignID != nil {
		rec = ds.table.AssignID(rec)
	}
	return rec
}

// putUnsafe inserts or replaces a record. It assumes the caller has acquired
// a write lock.
func (ds *Datastore[ID, T]) putUnsafe(rec T) {
	id := rec.RecordID()
	if _, ok := ds.recs[id]; !ok {
		ds.order = append(ds.order, id)
	}
	ds.recs[id] = rec
}

// snapshotUnsafe returns the records in insertion order. It assumes the
// caller has acquired at least a read lock.
func (ds *Datastore[ID, T]) snapshotUnsafe() []T {
	all := make([]T, len(ds.order))
	for i, id := range ds.order {
		all[i] = ds.recs[id]
	}
	return all
}

type session[ID comparable, T store.Record[ID]] struct {
	ds *Datastore[ID, T]

	inserts []*T
	updates []*T
	disps   map[string]store.Disposition
}

func (s *session[ID, T]) Select(ctx context.Context) ([]T, error) {
	s.ds.mtx.RLock()
	defer s.ds.mtx.RUnlock()

	return s.ds.snapshotUnsafe(), nil
}

func (s *session[ID, T]) LoadRelation(ctx context.Context, recs []T, relation string) ([]T, error) {
	for _, rel := range s.ds.table.Relations {
		if rel.Name == relation && rel.Load != nil {
			return rel.Load(recs)
		}
	}

	return nil, fmt.Errorf("relation %q cannot be loaded: %w", relation, store.ErrQuery)
}

func (s *session[ID, T]) SetDisposition(relation string, value any, d store.Disposition) error {
	if value == nil {
		return nil
	}
	s.disps[relation] = d
	return nil
}

func (s *session[ID, T]) EnqueueInsert(rec *T) error {
	s.inserts = append(s.inserts, rec)
	return nil
}

func (s *session[ID, T]) MarkModified(rec *T) error {
	s.updates = append(s.updates, rec)
	return nil
}

func (s *session[ID, T]) Commit(ctx context.Context) error {
	s.ds.mtx.Lock()
	defer s.ds.mtx.Unlock()

	if s.ds.closed {
		return fmt.Errorf("%w: store is closed", store.ErrConnection)
	}

	// validate everything up front so a failure leaves the set untouched
	if s.ds.table.Check != nil {
		existing := s.ds.snapshotUnsafe()
		for _, rec := range s.inserts {
			if err := s.ds.table.Check(existing, *rec); err != nil {
				return err
			}
		}
	}
	for _, rec := range s.updates {
		if _, ok := s.ds.recs[(*rec).RecordID()]; !ok {
			return store.ErrNotFound
		}
	}

	for _, rec := range s.inserts {
		if err := s.commitInsert(rec); err != nil {
			return err
		}
	}
	for _, rec := range s.updates {
		s.ds.recs[(*rec).RecordID()] = *rec
	}

	s.inserts = nil
	s.updates = nil
	s.disps = make(map[string]store.Disposition)

	return nil
}

func (s *session[ID, T]) commitInsert(rec *T) error {
	for _, rel := range s.ds.table.Relations {
		if rel.Value == nil || rel.Value(*rec) == nil {
			continue
		}

		disp := store.Added
		if d, ok := s.disps[rel.Name]; ok {
			disp = d
		}

		switch disp {
		case store.Added:
			if rel.Insert != nil {
				if err := rel.Insert(rec); err != nil {
					return err
				}
			}
		case store.Modified:
			if rel.Update != nil {
				if err := rel.Update(rec); err != nil {
					return err
				}
			}
		case store.Deleted:
			if rel.Delete != nil {
				if err := rel.Delete(rec); err != nil {
					return err
				}
			}
			continue
		case store.Detached:
			continue
		}

		if rel.Attach != nil {
			rel.Attach(rec)
		}
	}

	*rec = s.ds.assignID(*rec)
	s.ds.putUnsafe(*rec)

	return nil
}

func (s *session[ID, T]) Close() error {
	s.inserts = nil
	s.updates = nil
	return nil
}
