package stratum

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kettisen/stratum/logging"
)

type marshaledDatabase struct {
	Type string `yaml:"type" json:"type"`
	Dir  string `yaml:"dir" json:"dir"`
	File string `yaml:"file" json:"file"`
}

type marshaledConfig struct {
	DB      marshaledDatabase `yaml:"db" json:"db"`
	Logging marshaledLogging  `yaml:"logging" json:"logging"`
}

type marshaledLogging struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Provider string `yaml:"provider" json:"provider"`
	File     string `yaml:"file" json:"file"`
}

// Load loads a configuration from a JSON or YAML file. The format of the file
// is determined by examining its extension; files ending in .json are parsed
// as JSON files, and files ending in .yaml or .yml are parsed as YAML files.
// Other extensions are not supported. The extension is not case-sensitive.
func Load(file string) (Config, error) {
	var cfg Config
	var mc marshaledConfig

	switch filepath.Ext(strings.ToLower(file)) {
	case ".json":
		// json file
		data, err := os.ReadFile(file)
		if err != nil {
			return cfg, fmt.Errorf("%q: %w", file, err)
		}
		err = json.Unmarshal(data, &mc)
		if err != nil {
			return cfg, fmt.Errorf("%q: %w", file, err)
		}
	case ".yaml", ".yml":
		// yaml file
		data, err := os.ReadFile(file)
		if err != nil {
			return cfg, fmt.Errorf("%q: %w", file, err)
		}
		err = yaml.Unmarshal(data, &mc)
		if err != nil {
			return cfg, fmt.Errorf("%q: %w", file, err)
		}
	default:
		return cfg, fmt.Errorf("%q: incompatible format; must be .json, .yml, or .yaml file", file)
	}

	err := cfg.unmarshal(mc)
	return cfg, err
}

// unmarshal completely replaces all attributes.
//
// does no validation except that which is required for parsing.
func (cfg *Config) unmarshal(m marshaledConfig) error {
	if err := cfg.DB.unmarshal(m.DB); err != nil {
		return fmt.Errorf("db: %w", err)
	}

	cfg.LogProvider = logging.None
	cfg.LogFile = ""
	if m.Logging.Enabled {
		provStr := m.Logging.Provider
		if provStr == "" {
			provStr = logging.Jellog.String()
		}
		prov, err := logging.ParseProvider(provStr)
		if err != nil {
			return fmt.Errorf("logging: provider: %w", err)
		}
		cfg.LogProvider = prov
		cfg.LogFile = m.Logging.File
	}

	return nil
}

// unmarshal completely replaces all attributes.
//
// does no validation except that which is required for parsing.
func (db *Database) unmarshal(m marshaledDatabase) error {
	if m.Type == "" {
		db.Type = DatabaseNone
	} else {
		var err error
		db.Type, err = ParseDBType(m.Type)
		if err != nil {
			return fmt.Errorf("type: %w", err)
		}
	}

	db.DataDir = m.Dir
	db.DataFile = m.File

	return nil
}
