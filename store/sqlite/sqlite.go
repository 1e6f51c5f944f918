// Package sqlite provides a SQLite-backed session implementation for the
// stratum store.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kettisen/stratum/store"
	"modernc.org/sqlite"
)

// DataFileName is the name of the DB file kept inside the storage directory
// given to Open.
const DataFileName = "data.db"

// Open opens the SQLite database kept in the given storage directory,
// creating the directory and the DB file if needed. The caller owns the
// returned handle and must Close it.
func Open(storageDir string) (*sql.DB, error) {
	err := os.MkdirAll(storageDir, 0770)
	if err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	fileName := filepath.Join(storageDir, DataFileName)

	db, err := sql.Open("sqlite", fileName)
	if err != nil {
		return nil, WrapDBError(err)
	}

	return db, nil
}

// WrapDBError wraps an error from the SQLite engine into an error useable by
// the rest of the stratum packages. It should be called on any error returned
// from SQLite before a session passes the error back to a caller.
func WrapDBError(err error) error {
	sqliteErr := &sqlite.Error{}
	if errors.As(err, &sqliteErr) {
		primaryCode := sqliteErr.Code() & 0xff
		if primaryCode == 19 {
			return fmt.Errorf("%w: %s", store.ErrValidation, err.Error())
		}
		if primaryCode == 1 {
			// this is a generic error and thus the string is not descriptive,
			// so preserve the original error instead
			return err
		}
		return fmt.Errorf("%s", sqlite.ErrorCodeString[sqliteErr.Code()])
	} else if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
