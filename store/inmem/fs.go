package inmem

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dekarrin/rezi/v2"
	"github.com/kettisen/stratum/store"
)

// fs.go provides the snapshot persistence layer for a [Datastore]. The
// functions in this file are mostly called internally by methods of
// Datastore.

// Open creates a Datastore that persists itself to the given snapshot file.
// If the file already exists, its entire contents are loaded into the new
// Datastore. If it does not exist, it will be created.
//
// The returned Datastore will have its DataFile member set to the given
// file. This does not make it so the Datastore automatically saves its
// contents to disk; rather [Datastore.Persist] or [Datastore.Close] must be
// called to flush it.
//
// If file is set to the empty string, the Datastore is opened in in-memory
// mode and calls to Persist and Close will not write to disk.
//
// The table must have both Encode and Decode hooks set for any file-backed
// use.
func Open[ID comparable, T store.Record[ID]](table Table[ID, T], file string) (*Datastore[ID, T], error) {
	ds := NewDatastore(table)
	if file == "" {
		return ds, nil
	}

	if table.Encode == nil || table.Decode == nil {
		return nil, fmt.Errorf("table has no Encode/Decode hooks; cannot persist to %q", file)
	}
	ds.DataFile = file

	data, err := os.ReadFile(file)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read file: %w", err)
	}

	if err == nil {
		if len(data) > 0 {
			if err := ds.UnmarshalBinary(data); err != nil {
				return nil, fmt.Errorf("%w: load data: %v", store.ErrStore, err)
			}
		}
	} else {
		// quick check to see if later writing would fail due to permissions.
		f, err := os.Create(file)
		if err != nil {
			return nil, fmt.Errorf("create new: %w", err)
		}
		defer f.Close()
	}

	return ds, nil
}

// MarshalBinary converts the Datastore's records to a binary representation
// that can later be loaded with UnmarshalBinary.
//
// This function is not concurrent safe and requires a read lock. Users of
// Datastore should prefer calling [Datastore.Persist], which safely obtains
// one and handles any other required operations.
func (ds *Datastore[ID, T]) MarshalBinary() ([]byte, error) {
	if ds.table.Encode == nil {
		return nil, fmt.Errorf("table has no Encode hook")
	}

	blobs := make([][]byte, len(ds.order))
	for i, id := range ds.order {
		b, err := ds.table.Encode(ds.recs[id])
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
		blobs[i] = b
	}

	return rezi.Enc(blobs)
}

// UnmarshalBinary replaces the Datastore's records with those decoded from a
// binary representation produced by MarshalBinary.
//
// This function is not concurrent safe and requires a write lock. Users of
// Datastore should prefer calling [Open] to create a Datastore from a
// snapshot file.
func (ds *Datastore[ID, T]) UnmarshalBinary(data []byte) error {
	if ds.table.Decode == nil {
		return fmt.Errorf("table has no Decode hook")
	}

	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var blobs [][]byte
	err = rr.Dec(&blobs)
	if err != nil {
		return rezi.Wrapf(0, "records: %s", err)
	}

	ds.recs = make(map[ID]T)
	ds.order = nil
	for i, b := range blobs {
		rec, err := ds.table.Decode(b)
		if err != nil {
			return fmt.Errorf("decode record %d: %w", i, err)
		}
		ds.putUnsafe(rec)
	}

	return nil
}

// Persist saves the Datastore's records, generally to disk. Persistence to
// disk will occur if DataFile is set to a non-empty string; if it is empty
// Persist does nothing.
//
// Persist is not automatically called on writes; the user must do so
// themselves at the correct frequency. It is recommended it be called after
// each logical batch of operations.
func (ds *Datastore[ID, T]) Persist() error {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()

	return ds.persistUnsafe()
}

// persistUnsafe does the actual work of Persist. It assumes the caller has
// acquired a write lock.
func (ds *Datastore[ID, T]) persistUnsafe() error {
	if ds.closed {
		return fmt.Errorf("operation called on closed *Datastore")
	}

	if ds.DataFile == "" {
		// nowhere to persist to. done.
		return nil
	}

	// first, copy the old file so we have a backup in case something goes
	// wrong
	buFile, err := createFileBackup(ds.DataFile)
	if err != nil {
		if os.IsNotExist(err) {
			// that's fine actually, but set buFile to empty so we know we
			// don't have one to delete later
			buFile = ""
		} else {
			return fmt.Errorf("create backup: %w", err)
		}
	}

	wf, err := os.Create(ds.DataFile)
	if err != nil {
		return fmt.Errorf("create data file: %w", err)
	}
	defer wf.Close()
	w := bufio.NewWriter(wf)

	dataBytes, err := ds.MarshalBinary()
	if err != nil {
		return fmt.Errorf("get data bytes: %w", err)
	}

	_, err = w.Write(dataBytes)
	if err != nil {
		return fmt.Errorf("write data file: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush data file: %w", err)
	}

	// at end of everything, if successful, remove the backup.
	if buFile != "" {
		os.Remove(buFile)
	}

	return nil
}

// Close ends the Datastore. It automatically persists any unflushed records
// (if persistence is configured via the DataFile member) and then marks the
// Datastore closed; sessions can no longer be opened on it.
func (ds *Datastore[ID, T]) Close() error {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()

	if ds.closed {
		return nil
	}

	err := ds.persistUnsafe()
	ds.closed = true
	if err != nil {
		return fmt.Errorf("persist data to disk: %w", err)
	}

	return nil
}

// createFileBackup makes a duplicate of file in the same location with
// '.bak' appended to its filename. Any existing backup is overwritten.
//
// returns path to new backup file and any error that occurred.
func createFileBackup(file string) (string, error) {
	backupDir := filepath.Dir(file)
	backupName := filepath.Base(file) + ".bak"

	buPath := filepath.Join(backupDir, backupName)

	// underlying io
	rf, err := os.Open(file)
	if err != nil {
		return buPath, fmt.Errorf("open original: %w", err)
	}
	defer rf.Close()
	wf, err := os.Create(buPath)
	if err != nil {
		return buPath, fmt.Errorf("create backup: %w", err)
	}
	defer wf.Close()

	// buffered io
	r := bufio.NewReader(rf)
	w := bufio.NewWriter(wf)

	_, err = io.Copy(w, r)
	if err != nil {
		return buPath, fmt.Errorf("copy data to backup: %w", err)
	}
	if err := w.Flush(); err != nil {
		return buPath, fmt.Errorf("flush backup: %w", err)
	}

	return buPath, nil
}
