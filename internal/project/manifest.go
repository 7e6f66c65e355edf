package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// Manifest is the parsed kiln.toml.
type Manifest struct {
	Package PackageSection `toml:"package"`
	Build   BuildSection   `toml:"build"`

	// Root is the directory containing the manifest. Unit globs
	// resolve against it.
	Root string `toml:"-"`
}

// PackageSection names the project.
type PackageSection struct {
	Name string `toml:"name"`
}

// BuildSection configures lowering runs started from the manifest.
type BuildSection struct {
	// Target is an LLVM-style triple, e.g. x86_64-unknown-linux-gnu.
	Target string `toml:"target"`
	// Jobs caps parallel unit lowering. Zero means one per CPU.
	Jobs int `toml:"jobs"`
	// Units are unit file paths or globs relative to the project root.
	Units []string `toml:"units"`
	// NoCache disables the on-disk unit cache for this project.
	NoCache bool `toml:"no_cache"`
	// PoisonVPtrs enables vptr clobbering in complete destructors.
	PoisonVPtrs bool `toml:"poison_vptrs"`
}

// ErrPackageSectionMissing indicates that [package] is missing.
var ErrPackageSectionMissing = errors.New("missing [package]")

// LoadManifest parses the kiln.toml at path.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") || m.Package.Name == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrPackageSectionMissing)
	}
	m.Root = filepath.Dir(path)
	return &m, nil
}

// UnitPaths expands the build unit globs into a sorted, deduplicated
// list of file paths. Literal entries are kept even when the file does
// not exist, so the driver can report the missing unit itself.
func (m *Manifest) UnitPaths() ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}

	for _, pattern := range m.Build.Units {
		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(m.Root, pattern)
		}
		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, fmt.Errorf("bad unit pattern %q: %w", pattern, err)
		}
		if matches == nil {
			add(full)
			continue
		}
		for _, match := range matches {
			add(match)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
