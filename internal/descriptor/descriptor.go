// Package descriptor loads the on-disk bundle descriptor cmd/bundlesh uses
// to know which bundles to auto-install at start up. File-system discovery
// of bundle archives is a named Non-goal of the core (spec.md §1); this
// lives entirely in the front end and never touches framework internals
// directly — it only produces data the front end feeds to
// BundleContext.InstallBundle.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// BundleSpec names one bundle the front end should install (and optionally
// start) on launch.
type BundleSpec struct {
	SymbolicName string `toml:"symbolic_name" yaml:"symbolicName"`
	AutoStart    bool   `toml:"auto_start" yaml:"autoStart"`
}

// Descriptor is the root of a bundle descriptor file.
type Descriptor struct {
	LogLevel string       `toml:"log_level" yaml:"logLevel"`
	Bundles  []BundleSpec `toml:"bundles" yaml:"bundles"`
}

// Load reads and parses path, dispatching on its extension: .toml uses
// BurntSushi/toml, .yaml/.yml uses gopkg.in/yaml.v3.
func Load(path string) (*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("descriptor: read %s: %w", path, err)
	}

	var d Descriptor
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(raw), &d); err != nil {
			return nil, fmt.Errorf("descriptor: decode toml %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("descriptor: decode yaml %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("descriptor: unrecognized extension %q", ext)
	}
	return &d, nil
}
