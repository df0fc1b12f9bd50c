package lock

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/plandes/relpo/internal/relerr"
)

const sample = `version: 6
environments:
  default:
    channels:
    - url: https://conda.anaconda.org/conda-forge/
    packages:
      osx-arm64:
      - conda: https://conda.anaconda.org/conda-forge/osx-arm64/numpy-1.26.0-py310h123.tar.bz2
      linux-64:
      - conda: https://conda.anaconda.org/conda-forge/linux-64/numpy-1.26.0-py310h123.tar.bz2
      - pypi: https://files.pythonhosted.org/packages/pkg-2.0.0-py3-none-any.whl
packages:
- conda: https://conda.anaconda.org/conda-forge/linux-64/numpy-1.26.0-py310h123.tar.bz2
  sha256: abc
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := f.Validate("default"); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	env, ok := f.Environment("default")
	if !ok {
		t.Fatal("default environment missing")
	}
	if got, want := env.Platforms(), []string{"linux-64", "osx-arm64"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Platforms() = %v, want %v", got, want)
	}

	typ, loc, ok := env.Packages["linux-64"][1].Locator()
	if !ok || typ != TypePyPI || !strings.HasSuffix(loc, "pkg-2.0.0-py3-none-any.whl") {
		t.Errorf("Locator() = %q, %q, %v", typ, loc, ok)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		env     string
		wantErr error
		kind    relerr.Kind
	}{
		{"old version", "version: 5\nenvironments: {default: {}}\n", "default", relerr.ErrUnsupportedLockVersion, relerr.Format},
		{"string version", "version: '6'\nenvironments: {default: {}}\n", "default", relerr.ErrUnsupportedLockVersion, relerr.Format},
		{"missing version", "environments: {default: {}}\n", "default", relerr.ErrUnsupportedLockVersion, relerr.Format},
		{"unknown environment", "version: 6\nenvironments: {default: {}}\n", "test", relerr.ErrUnknownEnvironment, relerr.Resolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.doc))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			err = f.Validate(tt.env)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if got := relerr.KindOf(err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestValidate_NamesVersions(t *testing.T) {
	f, _ := Parse([]byte("version: 4\n"))
	err := f.Validate("default")
	if err == nil || !strings.Contains(err.Error(), "6") || !strings.Contains(err.Error(), "4") {
		t.Errorf("error %v should name the supported and received versions", err)
	}
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/proj/pixi.lock", []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(fs, "/proj/pixi.lock")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.Path != "/proj/pixi.lock" {
		t.Errorf("Path = %q", f.Path)
	}

	_, err = Load(fs, "/proj/missing.lock")
	if !errors.Is(err, relerr.ErrNotFound) {
		t.Errorf("Load() missing error = %v, want ErrNotFound", err)
	}

	if err := afero.WriteFile(fs, "/proj/bad.lock", []byte("version: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = Load(fs, "/proj/bad.lock")
	if !errors.Is(err, relerr.ErrMalformedDocument) {
		t.Errorf("Load() malformed error = %v, want ErrMalformedDocument", err)
	}
}

func TestEntry_Locator(t *testing.T) {
	if _, _, ok := (Entry{"conda": "a", "pypi": "b"}).Locator(); ok {
		t.Error("two pairs should not be a locator")
	}
	if _, _, ok := (Entry{}).Locator(); ok {
		t.Error("empty entry should not be a locator")
	}
}
