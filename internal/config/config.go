// Package config loads and merges the relpo configuration sources.
//
// Each source is rendered as a template (with `date` and `env`) and then
// decoded as YAML or TOML depending on its extension. When several sources
// are given, earlier sources win on scalar conflicts and nested mappings are
// merged recursively.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/plandes/relpo/internal/relerr"
	"github.com/plandes/relpo/internal/template"
)

const (
	// DefaultFile is used when no config source is given.
	DefaultFile = "relpo.yml"

	defaultProjectDir    = "."
	defaultChangeLogFile = "CHANGELOG.md"
)

// BuildConfig is the `build` section.
type BuildConfig struct {
	ProjectDir             string   `yaml:"project_dir" toml:"project_dir"`
	TemplateDir            string   `yaml:"template_dir" toml:"template_dir"`
	ChangeLogFileName      string   `yaml:"change_log_file_name" toml:"change_log_file_name"`
	PyProjectTemplateFiles []string `yaml:"pyproject_template_files" toml:"pyproject_template_files"`
}

// Inject is a local file added to the environment distribution.
type Inject struct {
	Source string `yaml:"source" toml:"source"`
	Dest   string `yaml:"dest" toml:"dest"`
}

// EnvDistConfig is the `envdist` section.
type EnvDistConfig struct {
	CacheDir    string   `yaml:"cache_dir" toml:"cache_dir"`
	LockFile    string   `yaml:"pixi_lock_file" toml:"pixi_lock_file"`
	Environment string   `yaml:"environment" toml:"environment"`
	Platforms   []string `yaml:"platforms" toml:"platforms"`
	Injects     []Inject `yaml:"injects" toml:"injects"`
}

type settings struct {
	Build   BuildConfig   `yaml:"build" toml:"build"`
	EnvDist EnvDistConfig `yaml:"envdist" toml:"envdist"`
}

// Config is the merged configuration.
type Config struct {
	Build   BuildConfig
	EnvDist EnvDistConfig

	// Data is the merged raw document, available to templates as `config`.
	Data map[string]any

	// Sources are the files the configuration was read from.
	Sources []string
}

// Load reads, merges and validates the config sources in precedence order.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = []string{DefaultFile}
	}

	var raws []map[string]any
	var merged settings
	for i, path := range paths {
		raw, typed, err := readSource(path)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
		if i == 0 {
			merged = typed
			continue
		}
		if err := mergo.Merge(&merged, typed); err != nil {
			return nil, fmt.Errorf("merging %s: %w", path, err)
		}
	}

	cfg := &Config{
		Build:   merged.Build,
		EnvDist: merged.EnvDist,
		Data:    MergeMaps(raws...),
		Sources: paths,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readSource(path string) (map[string]any, settings, error) {
	var typed settings
	if _, err := os.Stat(path); err != nil {
		return nil, typed, relerr.Configf(relerr.ErrNotFound, "config file not found: %s", path)
	}
	content, err := template.RenderFile(path, template.BaseParams())
	if err != nil {
		return nil, typed, relerr.Configf(err, "config %s: %v", path, err)
	}

	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(content, &raw); err != nil {
			return nil, typed, relerr.Formatf(relerr.ErrMalformedDocument, "config %s: %v", path, err)
		}
		if _, err := toml.Decode(content, &typed); err != nil {
			return nil, typed, relerr.Formatf(relerr.ErrMalformedDocument, "config %s: %v", path, err)
		}
	default:
		if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
			return nil, typed, relerr.Formatf(relerr.ErrMalformedDocument, "config %s: %v", path, err)
		}
		if len(bytes.TrimSpace([]byte(content))) > 0 {
			if err := yaml.Unmarshal([]byte(content), &typed); err != nil {
				return nil, typed, relerr.Formatf(relerr.ErrMalformedDocument, "config %s: %v", path, err)
			}
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, typed, nil
}

func (c *Config) validate() error {
	if _, ok := c.Data["build"].(map[string]any); !ok {
		return relerr.Configf(relerr.ErrMissingKey, "missing top-level 'build' from config")
	}
	if c.Build.ProjectDir == "" {
		c.Build.ProjectDir = defaultProjectDir
	}
	if c.Build.ChangeLogFileName == "" {
		c.Build.ChangeLogFileName = defaultChangeLogFile
	}
	if c.Build.TemplateDir != "" {
		info, err := os.Stat(c.Build.TemplateDir)
		if err != nil || !info.IsDir() {
			return relerr.Configf(relerr.ErrNotFound, "no such template directory: %s", c.Build.TemplateDir)
		}
	}
	return nil
}

// ChangeLogPath returns the change log file path.
func (c *Config) ChangeLogPath() string {
	return filepath.Join(c.Build.ProjectDir, c.Build.ChangeLogFileName)
}

// Validate checks the keys needed to build an environment distribution.
func (e EnvDistConfig) Validate() error {
	required := []struct {
		key, desc, val string
	}{
		{"cache_dir", "cached directory for library files", e.CacheDir},
		{"pixi_lock_file", "the pixi lock file (pixi.lock)", e.LockFile},
		{"environment", "environment to export", e.Environment},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			return relerr.Configf(relerr.ErrMissingKey, "missing %s key 'envdist.%s'", r.desc, r.key)
		}
	}
	for i, inj := range e.Injects {
		if inj.Source == "" {
			return relerr.Configf(relerr.ErrMissingKey, "missing key 'envdist.injects[%d].source'", i)
		}
	}
	return nil
}

// MergeMaps deep merges sources into a new map. Earlier sources win on
// scalar conflicts; nested mappings are merged recursively. The sources are
// not modified.
func MergeMaps(sources ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, src := range sources {
		mergeInto(out, src)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for key, sv := range src {
		dv, ok := dst[key]
		if !ok {
			dst[key] = cloneValue(sv)
			continue
		}
		dm, dok := dv.(map[string]any)
		sm, sok := sv.(map[string]any)
		if dok && sok {
			mergeInto(dm, sm)
		}
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = cloneValue(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = cloneValue(v)
		}
		return out
	default:
		return v
	}
}
