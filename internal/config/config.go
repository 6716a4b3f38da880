// Package config loads the optional .scopegrep.yml file at a search
// root. A missing file is not an error; flags always win over file
// values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up at the search root.
const FileName = ".scopegrep.yml"

// Config holds per-project search settings.
type Config struct {
	// Languages restricts the search to the named languages. Empty
	// means all supported languages.
	Languages []string `yaml:"languages"`

	// Ignore lists extra directory names skipped during discovery, on
	// top of the built-in set.
	Ignore []string `yaml:"ignore"`

	// DB is the result cache path. Empty disables caching unless the
	// --db flag supplies one.
	DB string `yaml:"db"`
}

// Load reads FileName under root. A missing file yields the zero Config
// and no error; a present but malformed file is an error.
func Load(root string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(filepath.Join(root, FileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", FileName, err)
	}
	return cfg, nil
}
