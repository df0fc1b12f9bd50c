package envdist

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

const (
	// ManifestFile is the conda environment file written per platform.
	ManifestFile = "environment.yml"

	// ManifestNameTemplate names the environment after the project and
	// platform.
	ManifestNameTemplate = "{{ .config.project.name }}-{{ .platform.Name }}"

	noDefaultsChannel = "nodefaults"
)

// Manifest is a conda environment file. Dependencies hold the conda paths,
// then `pip`, then a `{pip: [...]}` mapping of the PyPI paths.
type Manifest struct {
	Name         string   `yaml:"name"`
	Channels     []string `yaml:"channels"`
	Dependencies []any    `yaml:"dependencies"`
}

// NewManifest creates the manifest of a platform. Paths are relative to the
// stage root.
func NewManifest(p *Platform) *Manifest {
	var deps []any
	pdeps := []string{}
	for _, dep := range p.Dependencies {
		if dep.IsConda() {
			deps = append(deps, dep.relPath(p.Subdir(dep)))
		} else {
			pdeps = append(pdeps, dep.relPath(p.Subdir(dep)))
		}
	}
	deps = append(deps, "pip", map[string][]string{"pip": pdeps})
	return &Manifest{
		Name:         ManifestNameTemplate,
		Channels:     []string{noDefaultsChannel},
		Dependencies: deps,
	}
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
