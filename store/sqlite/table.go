package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kettisen/stratum/store"
)

// Scanner is the subset of *sql.Row and *sql.Rows used to read a record's
// columns.
type Scanner interface {
	Scan(dest ...any) error
}

// Querier is the subset of *sql.DB and *sql.Tx used by relation Load hooks.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Table describes how one record type maps onto a SQLite table. It is
// declared once per record type and given to NewSessionFactory.
type Table[ID comparable, T store.Record[ID]] struct {
	// Name is the table name.
	Name string

	// KeyColumn is the primary key column. Defaults to "id".
	KeyColumn string

	// Columns are the non-key scalar columns, in the order Scan reads them
	// and Args produces them.
	Columns []string

	// Scan reads the key column followed by Columns from sc into a new
	// record.
	Scan func(sc Scanner) (T, error)

	// Args returns the DB values for Columns, in the same order.
	Args func(rec T) []any

	// Key returns the DB value of the record's key.
	Key func(rec T) any

	// AssignKey, if set, generates and sets a new key on the record before
	// insert. Used for client-side keys such as UUIDs. When set, the key
	// column is included in the INSERT.
	AssignKey func(rec *T)

	// SetRowKey, if set, writes the store-generated rowid back into the
	// record after insert. When set, the key column is omitted from the
	// INSERT so the store assigns it.
	SetRowKey func(rec *T, id int64)

	// Version, if set, enables optimistic concurrency checking. It returns a
	// pointer to the record's version counter, stored in VersionColumn. The
	// counter is set to 1 on insert, checked and incremented on update.
	Version func(rec *T) *int64

	// VersionColumn is the column holding the version counter. Defaults to
	// "version". Only consulted when Version is set.
	VersionColumn string

	// Relations are the record type's navigable relations and the hooks that
	// persist and load them.
	Relations []Relation[ID, T]

	// InitSQL, if set, is executed by Init to create the table.
	InitSQL string
}

// Relation holds the SQLite-side hooks for one relation of a record type.
// The hooks that do not apply to a particular relation may be left nil.
type Relation[ID comparable, T store.Record[ID]] struct {
	// Name is the relation's name, matching its entry in the record type's
	// store.Relations registry.
	Name string

	// Value returns the related value held by rec, or untyped nil when the
	// relation is unpopulated.
	Value func(rec T) any

	// Attach copies the related value's key into the record's foreign key
	// field. It runs after the related value is persisted (for Added) and
	// before the record's own row is written. It is skipped for the Deleted
	// and Detached dispositions.
	Attach func(rec *T)

	// Insert persists the related value as a new row, writing any generated
	// key back into it. Runs inside the record's transaction.
	Insert func(ctx context.Context, tx *sql.Tx, rec *T) error

	// Update writes every field of the related value to its existing row.
	Update func(ctx context.Context, tx *sql.Tx, rec *T) error

	// Delete removes the related value's row.
	Delete func(ctx context.Context, tx *sql.Tx, rec *T) error

	// Load populates the relation on every record in recs and returns the
	// updated records.
	Load func(ctx context.Context, q Querier, recs []T) ([]T, error)
}

// Init creates the table if InitSQL is set. It should be called once when the
// backing DB is first opened.
func (t Table[ID, T]) Init(ctx context.Context, db *sql.DB) error {
	if t.InitSQL == "" {
		return nil
	}

	_, err := db.ExecContext(ctx, t.InitSQL)
	if err != nil {
		return WrapDBError(err)
	}

	return nil
}

func (t Table[ID, T]) fillDefaults() Table[ID, T] {
	newT := t

	if newT.KeyColumn == "" {
		newT.KeyColumn = "id"
	}
	if newT.VersionColumn == "" {
		newT.VersionColumn = "version"
	}

	return newT
}

func (t Table[ID, T]) relation(name string) (Relation[ID, T], bool) {
	for _, rel := range t.Relations {
		if rel.Name == name {
			return rel, true
		}
	}
	return Relation[ID, T]{}, false
}

func (t Table[ID, T]) selectSQL() string {
	cols := append([]string{t.KeyColumn}, t.Columns...)
	return fmt.Sprintf("SELECT %s FROM %s;", strings.Join(cols, ", "), t.Name)
}

func (t Table[ID, T]) insertSQL() string {
	var cols []string

	// store-assigned rowids are not inserted; client-assigned keys are
	if t.SetRowKey == nil {
		cols = append(cols, t.KeyColumn)
	}
	cols = append(cols, t.Columns...)
	if t.Version != nil {
		cols = append(cols, t.VersionColumn)
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", t.Name, strings.Join(cols, ", "), marks)
}

func (t Table[ID, T]) updateSQL() string {
	sets := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		sets[i] = col + " = ?"
	}

	if t.Version == nil {
		return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?;", t.Name, strings.Join(sets, ", "), t.KeyColumn)
	}

	sets = append(sets, fmt.Sprintf("%s = %s + 1", t.VersionColumn, t.VersionColumn))
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ? AND %s = ?;", t.Name, strings.Join(sets, ", "), t.KeyColumn, t.VersionColumn)
}

func (t Table[ID, T]) existsSQL() string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?;", t.Name, t.KeyColumn)
}
