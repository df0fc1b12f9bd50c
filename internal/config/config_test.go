package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/plandes/relpo/internal/relerr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relpo.yml", `
build:
  project_dir: proj
project:
  name: relpo
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Build.ProjectDir != "proj" {
		t.Errorf("ProjectDir = %q, want proj", cfg.Build.ProjectDir)
	}
	if cfg.Build.ChangeLogFileName != "CHANGELOG.md" {
		t.Errorf("ChangeLogFileName = %q, want CHANGELOG.md", cfg.Build.ChangeLogFileName)
	}
	if got := cfg.ChangeLogPath(); got != filepath.Join("proj", "CHANGELOG.md") {
		t.Errorf("ChangeLogPath() = %q", got)
	}
	project, _ := cfg.Data["project"].(map[string]any)
	if project["name"] != "relpo" {
		t.Errorf("Data[project][name] = %v, want relpo", project["name"])
	}
}

func TestLoad_MergeFirstSourceWins(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "relpo.yml", `
build:
  project_dir: first
project:
  name: first-name
  python:
    version: "3.11"
`)
	second := writeFile(t, dir, "defaults.toml", `
[build]
project_dir = "second"
change_log_file_name = "CHANGES.md"

[project]
name = "second-name"
domain = "zensols"

[project.python]
version = "3.12"
min = "3.10"

[envdist]
environment = "default"
platforms = ["linux-64", "osx-arm64"]
`)

	cfg, err := Load(first, second)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Build.ProjectDir != "first" {
		t.Errorf("ProjectDir = %q, want first (earlier source wins)", cfg.Build.ProjectDir)
	}
	if cfg.Build.ChangeLogFileName != "CHANGES.md" {
		t.Errorf("ChangeLogFileName = %q, want CHANGES.md (filled from later source)", cfg.Build.ChangeLogFileName)
	}
	if cfg.EnvDist.Environment != "default" || len(cfg.EnvDist.Platforms) != 2 {
		t.Errorf("EnvDist = %+v", cfg.EnvDist)
	}

	want := map[string]any{
		"name":   "first-name",
		"domain": "zensols",
		"python": map[string]any{"version": "3.11", "min": "3.10"},
	}
	if got := cfg.Data["project"]; !reflect.DeepEqual(got, want) {
		t.Errorf("Data[project] = %#v, want %#v", got, want)
	}
	if !reflect.DeepEqual(cfg.Sources, []string{first, second}) {
		t.Errorf("Sources = %v", cfg.Sources)
	}
}

func TestLoad_RendersTemplate(t *testing.T) {
	t.Setenv("RELPO_CACHE", "/var/cache/relpo")
	dir := t.TempDir()
	path := writeFile(t, dir, "relpo.yml", `
build: {}
envdist:
  cache_dir: {{ index .env "RELPO_CACHE" }}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EnvDist.CacheDir != "/var/cache/relpo" {
		t.Errorf("CacheDir = %q", cfg.EnvDist.CacheDir)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		path    string
		wantErr error
		kind    relerr.Kind
	}{
		{"missing file", filepath.Join(dir, "nope.yml"), relerr.ErrNotFound, relerr.Config},
		{"missing build", writeFile(t, dir, "nobuild.yml", "project:\n  name: x"), relerr.ErrMissingKey, relerr.Config},
		{"bad template dir", writeFile(t, dir, "tmpl.yml", "build:\n  template_dir: "+filepath.Join(dir, "absent")), relerr.ErrNotFound, relerr.Config},
		{"malformed yaml", writeFile(t, dir, "bad.yml", "build: [unclosed"), relerr.ErrMalformedDocument, relerr.Format},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
			if relerr.KindOf(err) != tt.kind {
				t.Errorf("kind = %v, want %v", relerr.KindOf(err), tt.kind)
			}
		})
	}
}

func TestEnvDistConfig_Validate(t *testing.T) {
	valid := EnvDistConfig{CacheDir: "cache", LockFile: "pixi.lock", Environment: "default"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	missing := valid
	missing.LockFile = ""
	err := missing.Validate()
	if !errors.Is(err, relerr.ErrMissingKey) {
		t.Fatalf("Validate() error = %v, want ErrMissingKey", err)
	}
	if !strings.Contains(err.Error(), "envdist.pixi_lock_file") {
		t.Errorf("error %q should name the key", err)
	}

	badInject := valid
	badInject.Injects = []Inject{{Dest: "x"}}
	if err := badInject.Validate(); !errors.Is(err, relerr.ErrMissingKey) {
		t.Errorf("Validate() error = %v, want ErrMissingKey", err)
	}
}

func TestMergeMaps_DoesNotMutateSources(t *testing.T) {
	a := map[string]any{"x": map[string]any{"y": 1}}
	b := map[string]any{"x": map[string]any{"z": 2}, "w": 3}

	got := MergeMaps(a, b)

	want := map[string]any{"x": map[string]any{"y": 1, "z": 2}, "w": 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeMaps() = %#v, want %#v", got, want)
	}
	if _, ok := a["x"].(map[string]any)["z"]; ok {
		t.Error("MergeMaps() mutated the first source")
	}
}
