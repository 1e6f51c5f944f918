// Package store provides a generic record store over a relational backing
// store. The RecordStore facade exposes read, create, and update operations
// parameterized by record type, with caller-controlled filtering, eager
// loading of relations, and per-call overrides of how related values are
// persisted.
//
// The actual persistence work is delegated to a Session implementation
// supplied via a SessionFactory; the sqlite and inmem subpackages provide
// ready-made ones.
package store

import (
	"context"
	"fmt"

	"github.com/kettisen/stratum/logging"
)

// RecordStore is a generic data-access facade over a record set of type T.
//
// Every operation opens its own Session, configures it, executes, and
// releases it before returning; no state is shared between calls, so a
// RecordStore may be used from multiple goroutines concurrently.
type RecordStore[ID comparable, T Record[ID]] struct {
	open SessionFactory[ID, T]
	rels *Relations[T]
	log  logging.Logger
}

// New creates a RecordStore that opens sessions with the given factory and
// resolves relation names against the given registry. rels may be nil for a
// record type with no relations.
func New[ID comparable, T Record[ID]](open SessionFactory[ID, T], rels *Relations[T]) *RecordStore[ID, T] {
	if open == nil {
		panic("session factory cannot be nil")
	}

	return &RecordStore[ID, T]{
		open: open,
		rels: rels,
		log:  logging.NoOpLogger{},
	}
}

// SetLogger sets the logger used for tracing operations. A nil logger
// restores the default no-op logger.
func (rs *RecordStore[ID, T]) SetLogger(log logging.Logger) {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	rs.log = log
}

// Relations returns the relation registry the store resolves names against,
// or nil if none was set.
func (rs *RecordStore[ID, T]) Relations() *Relations[T] {
	return rs.rels
}

// Get returns every record satisfying pred, with all relations named by plan
// eagerly populated. A nil pred returns the full record set; a nil plan
// leaves every relation at its zero value. conn selects the store to read
// from; the empty string selects the factory's default.
//
// The returned slice is a fully materialized snapshot; the session used to
// produce it is already released by the time Get returns.
func (rs *RecordStore[ID, T]) Get(ctx context.Context, pred Predicate[T], plan *Plan, conn string) ([]T, error) {
	sess, err := rs.open(conn)
	if err != nil {
		return nil, err
	}
	defer rs.release(sess)

	recs, err := sess.Select(ctx)
	if err != nil {
		return nil, err
	}

	for _, name := range plan.Relations() {
		if !rs.rels.Has(name) {
			return nil, fmt.Errorf("include %q: %w", name, ErrQuery)
		}

		recs, err = sess.LoadRelation(ctx, recs, name)
		if err != nil {
			return nil, err
		}
	}

	if pred == nil {
		return recs, nil
	}

	matched := make([]T, 0, len(recs))
	for _, rec := range recs {
		if pred(rec) {
			matched = append(matched, rec)
		}
	}

	return matched, nil
}

// Add inserts rec into the record set and returns it with any store-assigned
// fields, such as a generated key, populated.
//
// If overrides is non-nil it is called with the candidate record, and each
// returned Override adjusts how the named relation's value is persisted at
// commit. The default for every populated relation is Added, which inserts
// the related value as a new row; pass Unchanged to attach an existing row
// instead. Overrides naming relations the record type does not have, and
// overrides whose related value is nil, are skipped without error.
//
// The commit is all-or-nothing: on error, no partial write is visible.
func (rs *RecordStore[ID, T]) Add(ctx context.Context, rec T, overrides OverrideFunc[T], conn string) (T, error) {
	sess, err := rs.open(conn)
	if err != nil {
		return rec, err
	}
	defer rs.release(sess)

	if overrides != nil {
		for _, ov := range overrides(rec) {
			if !rs.rels.Has(ov.Relation) {
				rs.log.Debugf("skipping override for unknown relation %q", ov.Relation)
				continue
			}
			if ov.Value == nil {
				rs.log.Debugf("skipping override for unpopulated relation %q", ov.Relation)
				continue
			}

			err = sess.SetDisposition(ov.Relation, ov.Value, ov.Disposition)
			if err != nil {
				return rec, err
			}
		}
	}

	err = sess.EnqueueInsert(&rec)
	if err != nil {
		return rec, err
	}

	err = sess.Commit(ctx)
	if err != nil {
		return rec, err
	}

	return rec, nil
}

// Update writes every field of rec to its existing row, identified by the
// record's key. No field-level diff is computed; the whole record is
// considered dirty.
//
// An error matching ErrNotFound is returned if no row with rec's key exists.
// Backends with version checking configured return an error matching
// ErrConcurrency if the row changed since rec was read.
func (rs *RecordStore[ID, T]) Update(ctx context.Context, rec T, conn string) error {
	sess, err := rs.open(conn)
	if err != nil {
		return err
	}
	defer rs.release(sess)

	err = sess.MarkModified(&rec)
	if err != nil {
		return err
	}

	return sess.Commit(ctx)
}

func (rs *RecordStore[ID, T]) release(sess Session[ID, T]) {
	if err := sess.Close(); err != nil {
		rs.log.Warnf("close session: %v", err)
	}
}
