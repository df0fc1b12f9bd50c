// Package lock reads pixi lock files.
package lock

import (
	"os"
	"slices"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/plandes/relpo/internal/relerr"
)

// SupportedVersion is the only lock file format version understood.
const SupportedVersion = 6

// Dependency types an environment entry may be tagged with.
const (
	TypeConda = "conda"
	TypePyPI  = "pypi"
)

// Entry is one package of a platform, a single `<type>: <locator>` pair.
type Entry map[string]string

// Locator returns the entry's dependency type and locator. ok is false when
// the entry does not hold exactly one pair.
func (e Entry) Locator() (typ, locator string, ok bool) {
	if len(e) != 1 {
		return "", "", false
	}
	for k, v := range e {
		typ, locator = k, v
	}
	return typ, locator, true
}

// Environment is one named environment of the lock file.
type Environment struct {
	Packages map[string][]Entry `yaml:"packages"`
}

// Platforms returns the platform names the environment provides, sorted.
func (e Environment) Platforms() []string {
	names := make([]string, 0, len(e.Packages))
	for name := range e.Packages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// File is a parsed lock file.
type File struct {
	Path         string                 `yaml:"-"`
	Version      any                    `yaml:"version"`
	Environments map[string]Environment `yaml:"environments"`
}

// Load reads and parses the lock file at path. It does not validate it.
func Load(fs afero.Fs, path string) (*File, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, relerr.Configf(relerr.ErrNotFound, "lock file not found: %s", path)
		}
		return nil, relerr.Configf(err, "reading lock file %s: %v", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	f.Path = path
	return f, nil
}

// Parse parses lock file content.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, relerr.Formatf(relerr.ErrMalformedDocument, "malformed lock file: %v", err)
	}
	return &f, nil
}

// Validate checks the format version and that env is declared.
func (f *File) Validate(env string) error {
	if v, ok := f.Version.(int); !ok || v != SupportedVersion {
		return relerr.Formatf(relerr.ErrUnsupportedLockVersion,
			"lock file version %d supported, got: %v", SupportedVersion, f.Version)
	}
	if _, ok := f.Environments[env]; !ok {
		return relerr.Resolutionf(relerr.ErrUnknownEnvironment,
			"environment %s is not provided", env)
	}
	return nil
}

// Environment returns the named environment.
func (f *File) Environment(name string) (Environment, bool) {
	env, ok := f.Environments[name]
	return env, ok
}
