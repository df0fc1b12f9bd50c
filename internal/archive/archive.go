// Package archive writes directory trees to reproducible gzipped tarballs.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// ModTime is the modification time of every archive entry.
var ModTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Write archives the contents of srcDir to dest as a tar.gz. Entries are
// relative to srcDir and written in lexical order with fixed times and
// modes, so the same tree always yields the same bytes.
func Write(fs afero.Fs, srcDir, dest string) (err error) {
	if err := fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	out, err := fs.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer func() { err = multierr.Append(err, out.Close()) }()

	gw := gzip.NewWriter(out)
	gw.ModTime = time.Time{}
	tw := tar.NewWriter(gw)

	walkErr := afero.Walk(fs, srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return addEntry(fs, tw, path, filepath.ToSlash(rel), info)
	})

	err = multierr.Combine(walkErr, tw.Close(), gw.Close())
	if err != nil {
		return fmt.Errorf("writing archive %s: %w", dest, err)
	}
	return nil
}

func addEntry(fs afero.Fs, tw *tar.Writer, path, name string, info os.FileInfo) error {
	hdr := &tar.Header{
		Name:    name,
		ModTime: ModTime,
	}
	switch {
	case info.IsDir():
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
		hdr.Mode = 0755
		return tw.WriteHeader(hdr)
	case info.Mode().IsRegular():
		hdr.Typeflag = tar.TypeReg
		hdr.Mode = 0644
		hdr.Size = info.Size()
	default:
		return fmt.Errorf("unsupported file type: %s", path)
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return multierr.Append(err, f.Close())
}

// List returns the entry names of a tar.gz archive in archive order.
func List(fs afero.Fs, path string) (names []string, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompressing archive: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		names = append(names, hdr.Name)
	}
	return names, nil
}
