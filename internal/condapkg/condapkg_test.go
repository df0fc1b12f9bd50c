package condapkg

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"github.com/plandes/relpo/internal/relerr"
)

func tarZst(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(zw)
	for name, content := range files {
		hdr := &tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// createTestPackage writes a .conda zip with the given members.
func createTestPackage(t *testing.T, fs afero.Fs, path string, members map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestPackage_Conda(t *testing.T) {
	tests := []struct {
		name     string
		meta     string
		platform string
		noarch   bool
	}{
		{
			name:     "noarch",
			meta:     "package:\n  name: setuptools\nbuild:\n  noarch: python\n  number: 0\n",
			platform: "linux-64",
			noarch:   true,
		},
		{
			name:     "native",
			meta:     "package:\n  name: numpy\nbuild:\n  number: 1\n",
			platform: "osx-arm64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			fs := afero.NewMemMapFs()
			info := tarZst(t, map[string]string{
				"info/index.json":                     "{}",
				"info/recipe/meta.yaml":               tt.meta,
				"info/recipe/conda_build_config.yaml": "target_platform: " + tt.platform + "\n",
			})
			createTestPackage(t, fs, "/pkgs/p-1.0-0.conda", map[string][]byte{
				"metadata.json":        []byte(`{"conda_pkg_format_version": 2}`),
				"info-p-1.0-0.tar.zst": info,
				"pkg-p-1.0-0.tar.zst":  tarZst(t, map[string]string{"lib/p.py": ""}),
			})
			pkg := Open(fs, "/pkgs/p-1.0-0.conda")

			// Act
			noarch, err := pkg.IsNoarch()
			if err != nil {
				t.Fatalf("IsNoarch() error = %v", err)
			}
			platform, err := pkg.TargetPlatform()
			if err != nil {
				t.Fatalf("TargetPlatform() error = %v", err)
			}

			// Assert
			if noarch != tt.noarch {
				t.Errorf("IsNoarch() = %v, want %v", noarch, tt.noarch)
			}
			if platform != tt.platform {
				t.Errorf("TargetPlatform() = %q, want %q", platform, tt.platform)
			}
			md, _ := pkg.Metadata()
			if _, ok := md["lib/p.py"]; ok {
				t.Error("metadata should only hold the info archive")
			}
		})
	}
}

func TestPackage_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	createTestPackage(t, fs, "/pkgs/none.conda", map[string][]byte{
		"pkg-p-1.0-0.tar.zst": tarZst(t, nil),
	})
	createTestPackage(t, fs, "/pkgs/two.conda", map[string][]byte{
		"info-a.tar.zst": tarZst(t, nil),
		"info-b.tar.zst": tarZst(t, nil),
	})
	createTestPackage(t, fs, "/pkgs/nometa.conda", map[string][]byte{
		"info-p.tar.zst": tarZst(t, map[string]string{
			"info/recipe/conda_build_config.yaml": "c_compiler: gcc\n",
		}),
	})

	tests := []struct {
		path    string
		call    func(*Package) error
		wantErr error
	}{
		{"/pkgs/none.conda", func(p *Package) error { _, err := p.Metadata(); return err }, relerr.ErrMalformedDocument},
		{"/pkgs/two.conda", func(p *Package) error { _, err := p.Metadata(); return err }, relerr.ErrMalformedDocument},
		{"/pkgs/nometa.conda", func(p *Package) error { _, err := p.IsNoarch(); return err }, relerr.ErrMissingKey},
		{"/pkgs/nometa.conda", func(p *Package) error { _, err := p.TargetPlatform(); return err }, relerr.ErrMissingKey},
		{"/pkgs/p.whl", func(p *Package) error { _, err := p.Metadata(); return err }, relerr.ErrMalformedDocument},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := tt.call(Open(fs, tt.path))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if relerr.KindOf(err) != relerr.Format {
				t.Errorf("KindOf() = %v, want format", relerr.KindOf(err))
			}
		})
	}
}
