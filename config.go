package stratum

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kettisen/stratum/logging"
)

// DBType is the type of a Database connection.
type DBType string

func (dbt DBType) String() string {
	return string(dbt)
}

const (
	DatabaseNone     DBType = "none"
	DatabaseSQLite   DBType = "sqlite"
	DatabaseInMemory DBType = "inmem"
)

// ParseDBType parses a string found in a connection string into a DBType.
func ParseDBType(s string) (DBType, error) {
	sLower := strings.ToLower(s)

	switch sLower {
	case DatabaseSQLite.String():
		return DatabaseSQLite, nil
	case DatabaseInMemory.String():
		return DatabaseInMemory, nil
	default:
		return DatabaseNone, fmt.Errorf("DB type not one of 'sqlite' or 'inmem': %q", s)
	}
}

// Database contains configuration settings for connecting to a persistence
// layer.
type Database struct {
	// Type is the type of database the config refers to. It also determines
	// which of its other fields are valid.
	Type DBType

	// DataDir is the path on disk to a directory to use to store data in.
	// This is only applicable for the SQLite DB type.
	DataDir string

	// DataFile is the path of the snapshot file to use for a file-backed
	// in-memory store. If empty, the store is memory-only. This is only
	// applicable for the in-memory DB type.
	DataFile string
}

// Validate returns an error if the Database does not have the correct fields
// set. Its type will be checked to ensure that it is a valid type to use and
// any fields necessary for connecting to that type of DB are also checked.
func (db Database) Validate() error {
	switch db.Type {
	case DatabaseInMemory:
		// nothing else to check
		return nil
	case DatabaseSQLite:
		if db.DataDir == "" {
			return fmt.Errorf("DataDir not set to path")
		}
		return nil
	case DatabaseNone:
		return fmt.Errorf("'none' DB is not valid")
	default:
		return fmt.Errorf("unknown database type: %q", db.Type.String())
	}
}

// ParseDBConnString parses a database connection string of the form
// "engine:params" (or just "engine" if no other params are required) into a
// valid Database config object.
//
// Supported database types and a sample string containing valid configurations
// for each are shown below. Placeholder values are between angle brackets,
// optional parts are between square brackets. Ordering of parameters does not
// matter.
//
// * In-memory store: "inmem[:file=<path/to/snapshot.db>]"
// * SQLite3 DB file: "sqlite:</path/to/db/dir>"
func ParseDBConnString(s string) (Database, error) {
	var paramStr string
	dbParts := strings.SplitN(s, ":", 2)

	if len(dbParts) == 2 {
		paramStr = strings.TrimSpace(dbParts[1])
	}

	// parse the first section into a type, from there we can determine if
	// further params are required.
	dbEng, err := ParseDBType(strings.TrimSpace(dbParts[0]))
	if err != nil {
		return Database{}, fmt.Errorf("unsupported DB engine: %w", err)
	}

	switch dbEng {
	case DatabaseInMemory:
		if paramStr == "" {
			return Database{Type: DatabaseInMemory}, nil
		}

		params, err := parseParamsMap(paramStr)
		if err != nil {
			return Database{}, err
		}

		db := Database{Type: DatabaseInMemory}
		for k, v := range params {
			switch k {
			case "file":
				db.DataFile = filepath.FromSlash(v)
			default:
				return Database{}, fmt.Errorf("unsupported param for in-memory DB engine: %q", k)
			}
		}
		return db, nil
	case DatabaseSQLite:
		// there must be options
		if paramStr == "" {
			return Database{}, fmt.Errorf("sqlite DB engine requires path to data directory after ':'")
		}

		// the only option is the DB path, as long as the param str isn't
		// literally blank, it can be used.

		// convert slashes to correct type
		dd := filepath.FromSlash(paramStr)
		return Database{Type: DatabaseSQLite, DataDir: dd}, nil
	case DatabaseNone:
		// not allowed
		return Database{}, fmt.Errorf("cannot specify DB engine 'none' (perhaps you wanted 'inmem'?)")
	default:
		// unknown
		return Database{}, fmt.Errorf("unknown DB engine: %q", dbEng.String())
	}
}

func parseParamsMap(paramStr string) (map[string]string, error) {
	seqs := splitWithEscaped(paramStr, ",")
	if len(seqs) < 1 {
		return nil, fmt.Errorf("not a map format string: %q", paramStr)
	}

	params := map[string]string{}
	for idx, kv := range seqs {
		parsed := splitWithEscaped(kv, "=")
		if len(parsed) != 2 {
			return nil, fmt.Errorf("param %d: not a kv-pair: %q", idx, kv)
		}
		k := parsed[0]
		v := parsed[1]
		params[strings.ToLower(k)] = v
	}

	return params, nil
}

// splitWithEscaped splits s on sep, treating any backslash-prefixed character
// in s as a literal. The backslashes themselves are dropped from the result.
func splitWithEscaped(s, sep string) []string {
	var split []string
	var cur strings.Builder

	sr := []rune(s)
	for i := 0; i < len(sr); i++ {
		ch := sr[i]

		if ch == '\\' && i+1 < len(sr) {
			cur.WriteRune(sr[i+1])
			i++
			continue
		}

		if strings.HasPrefix(string(sr[i:]), sep) {
			split = append(split, cur.String())
			cur.Reset()
			i += len([]rune(sep)) - 1
			continue
		}

		cur.WriteRune(ch)
	}

	split = append(split, cur.String())
	return split
}

// Config is the configuration for the stratum command-line tools. It holds
// the persistence settings along with logging options.
type Config struct {
	// DB is the configuration of the store that tools should connect to.
	DB Database

	// LogProvider selects the logging implementation. If it is
	// logging.None, logging is disabled.
	LogProvider logging.Provider

	// LogFile is the path of a file to log to in addition to stderr. It is
	// ignored when LogProvider is logging.None.
	LogFile string
}

// FillDefaults returns a copy of the Config with all unset values set to
// their defaults.
func (cfg Config) FillDefaults() Config {
	newCFG := cfg

	if newCFG.DB.Type == DatabaseNone || newCFG.DB.Type == "" {
		newCFG.DB = Database{Type: DatabaseInMemory}
	}

	return newCFG
}

// Validate returns an error if the Config has invalid field values set.
// Empty and unset values are considered invalid; if defaults are intended to
// be used, call Validate on the return value of FillDefaults.
func (cfg Config) Validate() error {
	if err := cfg.DB.Validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}

	return nil
}

// Logger creates a logger from the Config's logging options. If LogProvider
// is logging.None, a no-op logger is returned.
func (cfg Config) Logger() (logging.Logger, error) {
	if cfg.LogProvider == logging.None {
		return logging.NoOpLogger{}, nil
	}

	return logging.New(cfg.LogProvider, cfg.LogFile)
}
