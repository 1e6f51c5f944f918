/*
Stratumcheck probes the record store named in a stratum configuration file and
reports whether it can be reached. It is intended as a smoke test for
deployments: run it against the same configuration the real tooling will use
and it will open the store, perform a trivial read, and exit.

Usage:

	stratumcheck [flags]

The exit code is 0 if the store is reachable and non-zero otherwise.

The flags are:

	-c, --conf PATH
		Use the given file for the configuration instead of './stratum.yml'.
		The file must be in JSON or YAML format.

	-d, --db CONNSTRING
		Probe the store described by the given connection string instead of
		the one in the configuration file. Accepts the same format as
		stratum.ParseDBConnString, e.g. "sqlite:/var/lib/app/data" or
		"inmem:file=snapshot.db".
*/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kettisen/stratum"
	"github.com/kettisen/stratum/store/inmem"
	"github.com/kettisen/stratum/store/sqlite"
)

const (
	exitSuccess = 0
	exitError   = 1
	exitPanic   = 2
)

var exitCode int

var (
	flagConf = pflag.StringP("conf", "c", "stratum.yml", "Path to configuration file")
	flagDB   = pflag.StringP("db", "d", "", "Connection string of the store to probe, overriding the configuration file")
)

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			fmt.Fprintf(os.Stderr, "fatal panic: %v\n", panicErr)
			exitCode = exitPanic
		}
		os.Exit(exitCode)
	}()

	pflag.Parse()

	var cfg stratum.Config
	var err error

	if *flagDB != "" {
		cfg.DB, err = stratum.ParseDBConnString(*flagDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
			exitCode = exitError
			return
		}
	} else {
		cfg, err = stratum.Load(*flagConf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
			exitCode = exitError
			return
		}
	}

	cfg = cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
		return
	}

	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Infof("Probing %s store...", cfg.DB.Type.String())
	if err := probe(ctx, cfg.DB); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
		return
	}

	log.Info("Store is reachable")
	fmt.Println("OK")
}

func probe(ctx context.Context, db stratum.Database) error {
	switch db.Type {
	case stratum.DatabaseSQLite:
		return probeSQLite(ctx, db.DataDir)
	case stratum.DatabaseInMemory:
		return probeInMemory(ctx, db.DataFile)
	default:
		return fmt.Errorf("cannot probe %q store", db.Type.String())
	}
}

func probeSQLite(ctx context.Context, dataDir string) error {
	sqlDB, err := sqlite.Open(dataDir)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return sqlite.WrapDBError(err)
	}

	return nil
}

// probeRecord is a throwaway record type used to exercise an in-memory store
// end to end.
type probeRecord struct {
	ID string
}

func (r probeRecord) RecordID() string {
	return r.ID
}

func probeInMemory(ctx context.Context, dataFile string) error {
	table := inmem.Table[string, probeRecord]{}
	if dataFile != "" {
		table.Encode = func(rec probeRecord) ([]byte, error) {
			return []byte(rec.ID), nil
		}
		table.Decode = func(data []byte) (probeRecord, error) {
			return probeRecord{ID: string(data)}, nil
		}
	}

	ds, err := inmem.Open(table, dataFile)
	if err != nil {
		return err
	}
	defer ds.Close()

	sess, err := ds.Factory()("")
	if err != nil {
		return err
	}
	defer sess.Close()

	_, err = sess.Select(ctx)
	return err
}
