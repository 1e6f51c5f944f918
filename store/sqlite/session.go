package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kettisen/stratum/store"
)

// NewSessionFactory returns a store.SessionFactory producing sessions over
// the given table. An empty connection descriptor opens a session on db; a
// non-empty descriptor is treated as a storage directory path, and a
// dedicated DB handle is opened for the session and closed with it.
//
// db may be nil if every call will carry its own descriptor.
func NewSessionFactory[ID comparable, T store.Record[ID]](db *sql.DB, table Table[ID, T]) store.SessionFactory[ID, T] {
	table = table.fillDefaults()

	return func(descriptor string) (store.Session[ID, T], error) {
		if descriptor == "" {
			if db == nil {
				return nil, fmt.Errorf("%w: no default connection configured", store.ErrConnection)
			}
			return newSession(db, false, table), nil
		}

		adHoc, err := Open(descriptor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrConnection, err)
		}

		return newSession(adHoc, true, table), nil
	}
}

type session[ID comparable, T store.Record[ID]] struct {
	db    *sql.DB
	owned bool
	table Table[ID, T]

	inserts []*T
	updates []*T
	disps   map[string]store.Disposition
}

func newSession[ID comparable, T store.Record[ID]](db *sql.DB, owned bool, table Table[ID, T]) *session[ID, T] {
	return &session[ID, T]{
		db:    db,
		owned: owned,
		table: table,
		disps: make(map[string]store.Disposition),
	}
}

func (s *session[ID, T]) Select(ctx context.Context) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, s.table.selectSQL())
	if err != nil {
		return nil, WrapDBError(err)
	}
	defer rows.Close()

	var all []T

	for rows.Next() {
		rec, err := s.table.Scan(rows)
		if err != nil {
			return nil, WrapDBError(err)
		}
		all = append(all, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, WrapDBError(err)
	}

	return all, nil
}

func (s *session[ID, T]) LoadRelation(ctx context.Context, recs []T, relation string) ([]T, error) {
	rel, ok := s.table.relation(relation)
	if !ok || rel.Load == nil {
		return nil, fmt.Errorf("relation %q cannot be loaded: %w", relation, store.ErrQuery)
	}

	return rel.Load(ctx, s.db, recs)
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", WrapDBError(err))
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	for _, rec := range s.inserts {
		if err := s.commitInsert(ctx, tx, rec); err != nil {
			return err
		}
	}
	for _, rec := range s.updates {
		if err := s.commitUpdate(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return WrapDBError(err)
	}
	committed = true

	s.inserts = nil
	s.updates = nil
	s.disps = make(map[string]store.Disposition)

	return nil
}

func (s *session[ID, T]) commitInsert(ctx context.Context, tx *sql.Tx, rec *T) error {
	for _, rel := range s.table.Relations {
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
				if err := rel.Insert(ctx, tx, rec); err != nil {
					return err
				}
			}
		case store.Modified:
			if rel.Update != nil {
				if err := rel.Update(ctx, tx, rec); err != nil {
					return err
				}
			}
		case store.Deleted:
			if rel.Delete != nil {
				if err := rel.Delete(ctx, tx, rec); err != nil {
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

	if s.table.AssignKey != nil {
		s.table.AssignKey(rec)
	}
	if s.table.Version != nil {
		*s.table.Version(rec) = 1
	}

	var args []any
	if s.table.SetRowKey == nil {
		args = append(args, s.table.Key(*rec))
	}
	args = append(args, s.table.Args(*rec)...)
	if s.table.Version != nil {
		args = append(args, *s.table.Version(rec))
	}

	res, err := tx.ExecContext(ctx, s.table.insertSQL(), args...)
	if err != nil {
		return WrapDBError(err)
	}

	if s.table.SetRowKey != nil {
		id, err := res.LastInsertId()
		if err != nil {
			return WrapDBError(err)
		}
		s.table.SetRowKey(rec, id)
	}

	return nil
}

func (s *session[ID, T]) commitUpdate(ctx context.Context, tx *sql.Tx, rec *T) error {
	args := s.table.Args(*rec)
	args = append(args, s.table.Key(*rec))

	var ver int64
	if s.table.Version != nil {
		ver = *s.table.Version(rec)
		args = append(args, ver)
	}

	res, err := tx.ExecContext(ctx, s.table.updateSQL(), args...)
	if err != nil {
		return WrapDBError(err)
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return WrapDBError(err)
	}

	if rowsAff < 1 {
		if s.table.Version == nil {
			return store.ErrNotFound
		}

		// either the row is gone or somebody else bumped the version
		var one int
		err := tx.QueryRowContext(ctx, s.table.existsSQL(), s.table.Key(*rec)).Scan(&one)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return WrapDBError(err)
		}
		return store.ErrConcurrency
	}

	if s.table.Version != nil {
		*s.table.Version(rec) = ver + 1
	}

	return nil
}

func (s *session[ID, T]) Close() error {
	s.inserts = nil
	s.updates = nil

	if !s.owned {
		return nil
	}
	return s.db.Close()
}
