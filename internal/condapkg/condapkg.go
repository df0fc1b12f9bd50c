// Package condapkg reads the metadata of conda package files.
package condapkg

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/plandes/relpo/internal/relerr"
)

const (
	metaFile        = "info/recipe/meta.yaml"
	buildConfigFile = "info/recipe/conda_build_config.yaml"
)

// Package is a conda package file, either the `.conda` zip format or the
// legacy `.tar.bz2` format.
type Package struct {
	Path string

	fs       afero.Fs
	metadata map[string][]byte
}

// Open creates a package for the file at path. Nothing is read until
// metadata is requested.
func Open(fs afero.Fs, path string) *Package {
	return &Package{Path: path, fs: fs}
}

// Metadata returns the content of every file of the package's info
// archive keyed by its path (`info/...`).
func (p *Package) Metadata() (map[string][]byte, error) {
	if p.metadata != nil {
		return p.metadata, nil
	}
	var md map[string][]byte
	var err error
	switch {
	case strings.HasSuffix(p.Path, ".conda"):
		md, err = p.readConda()
	case strings.HasSuffix(p.Path, ".tar.bz2"):
		md, err = p.readTarBz2()
	default:
		return nil, relerr.Formatf(relerr.ErrMalformedDocument, "not a conda package: %s", p.Path)
	}
	if err != nil {
		return nil, err
	}
	p.metadata = md
	return p.metadata, nil
}

// readConda reads the single `info-*.tar.zst` member of a `.conda` zip.
func (p *Package) readConda() (md map[string][]byte, err error) {
	f, err := p.fs.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("opening package: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("opening package: %w", err)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, relerr.Formatf(relerr.ErrMalformedDocument, "reading conda package %s: %v", p.Path, err)
	}

	var infos []*zip.File
	for _, zf := range zr.File {
		if strings.HasPrefix(zf.Name, "info") && strings.HasSuffix(zf.Name, ".tar.zst") {
			infos = append(infos, zf)
		}
	}
	if len(infos) != 1 {
		return nil, relerr.Formatf(relerr.ErrMalformedDocument,
			"expecting exactly one info file but got %d in conda package file: %s", len(infos), p.Path)
	}

	rc, err := infos[0].Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", infos[0].Name, err)
	}
	defer func() { err = multierr.Append(err, rc.Close()) }()
	dec, err := zstd.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", infos[0].Name, err)
	}
	defer dec.Close()
	return readTar(dec, "")
}

// readTarBz2 reads the `info/` members of a legacy package.
func (p *Package) readTarBz2() (md map[string][]byte, err error) {
	f, err := p.fs.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("opening package: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return readTar(bzip2.NewReader(f), "info/")
}

func readTar(r io.Reader, prefix string) (map[string][]byte, error) {
	tr := tar.NewReader(r)
	files := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, relerr.Formatf(relerr.ErrMalformedDocument, "reading package archive: %v", err)
		}
		name := path.Clean(hdr.Name)
		if hdr.Typeflag != tar.TypeReg || !strings.HasPrefix(name, prefix) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		files[name] = data
	}
	return files, nil
}

func (p *Package) missing(desc, key string) error {
	return relerr.Formatf(relerr.ErrMissingKey,
		"missing %s (%s) in conda package file %s", desc, key, p.Path)
}

func (p *Package) yamlFile(name, desc string) (map[string]any, error) {
	md, err := p.Metadata()
	if err != nil {
		return nil, err
	}
	content, ok := md[name]
	if !ok {
		return nil, p.missing(desc, name)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, relerr.Formatf(relerr.ErrMalformedDocument, "%s in %s: %v", name, p.Path, err)
	}
	return doc, nil
}

// BuildMetadata is the `build` mapping of the recipe metadata.
func (p *Package) BuildMetadata() (map[string]any, error) {
	meta, err := p.yamlFile(metaFile, "recipe metadata")
	if err != nil {
		return nil, err
	}
	build, ok := meta["build"].(map[string]any)
	if !ok {
		return nil, p.missing("build metadata", "build")
	}
	return build, nil
}

// BuildConfig is the recipe build configuration.
func (p *Package) BuildConfig() (map[string]any, error) {
	return p.yamlFile(buildConfigFile, "recipe build")
}

// IsNoarch reports whether the package was built as noarch.
func (p *Package) IsNoarch() (bool, error) {
	build, err := p.BuildMetadata()
	if err != nil {
		return false, err
	}
	return build["noarch"] != nil, nil
}

// TargetPlatform is the platform the package was built for. Some noarch
// packages still name a concrete platform.
func (p *Package) TargetPlatform() (string, error) {
	cfg, err := p.BuildConfig()
	if err != nil {
		return "", err
	}
	plat, ok := cfg["target_platform"]
	if !ok || plat == nil {
		return "", p.missing("platform meta", "target_platform")
	}
	return fmt.Sprint(plat), nil
}
