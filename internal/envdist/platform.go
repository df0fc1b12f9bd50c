package envdist

import "fmt"

// PyPISubdir is the stage and cache subdirectory of platform independent
// dependencies.
const PyPISubdir = "pypi"

// Platform is one target platform of a lock file environment.
type Platform struct {
	Name         string
	Dependencies []*Dependency
}

// Subdir is where dep is cached and staged: `pypi` for platform independent
// dependencies, otherwise the platform name.
func (p *Platform) Subdir(dep *Dependency) string {
	if dep.IsPlatformIndependent() {
		return PyPISubdir
	}
	return p.Name
}

// Len is the number of dependencies.
func (p *Platform) Len() int {
	return len(p.Dependencies)
}

func (p *Platform) String() string {
	return fmt.Sprintf("%s (%d deps)", p.Name, p.Len())
}

// Environment is a lock file environment resolved for the requested
// platforms. Platforms are ordered by name.
type Environment struct {
	Name      string
	Platforms []*Platform
}

// Platform returns the named platform.
func (e *Environment) Platform(name string) (*Platform, bool) {
	for _, p := range e.Platforms {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Len is the dependency count across all platforms.
func (e *Environment) Len() int {
	n := 0
	for _, p := range e.Platforms {
		n += p.Len()
	}
	return n
}

func (e *Environment) String() string {
	names := make([]string, len(e.Platforms))
	for i, p := range e.Platforms {
		names[i] = p.Name
	}
	return fmt.Sprintf("environment '%s' (platform(s): %v)", e.Name, names)
}
