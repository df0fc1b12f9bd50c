// Package downloader fetches files over HTTP into an append-only cache.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Job is a single file to fetch.
type Job struct {
	URL      string
	DestPath string
}

// Result is the outcome of a successful fetch.
type Result struct {
	Job Job

	// Cached is true when DestPath already existed and nothing was fetched.
	Cached bool

	// Size is the number of bytes written, zero when cached.
	Size int64
}

// Downloader fetches files one at a time. Existing destination files are
// never overwritten.
type Downloader struct {
	fs     afero.Fs
	client *http.Client
	logger *zap.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Downloader) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDownloader creates a downloader writing to fs.
func NewDownloader(fs afero.Fs, opts ...Option) *Downloader {
	d := &Downloader{
		fs:     fs,
		client: &http.Client{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downloading %s: HTTP %d", e.URL, e.StatusCode)
}

// Fetch downloads job.URL to job.DestPath unless the destination exists.
func (d *Downloader) Fetch(ctx context.Context, job Job) (Result, error) {
	// Check if already cached
	if _, err := d.fs.Stat(job.DestPath); err == nil {
		d.logger.Debug("cache hit", zap.String("path", job.DestPath))
		return Result{Job: job, Cached: true}, nil
	}

	if err := d.fs.MkdirAll(filepath.Dir(job.DestPath), 0755); err != nil {
		return Result{Job: job}, fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return Result{Job: job}, fmt.Errorf("downloading %s: %w", job.URL, err)
	}
	d.logger.Debug("downloading", zap.String("url", job.URL))
	resp, err := d.client.Do(req)
	if err != nil {
		return Result{Job: job}, fmt.Errorf("downloading %s: %w", job.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Job: job}, &StatusError{URL: job.URL, StatusCode: resp.StatusCode}
	}

	size, err := d.write(job.DestPath, resp.Body)
	if err != nil {
		return Result{Job: job}, err
	}
	d.logger.Info("downloaded",
		zap.String("url", job.URL),
		zap.String("size", units.HumanSize(float64(size))))
	return Result{Job: job, Size: size}, nil
}

// write copies r to a temp file first, then renames it to path.
func (d *Downloader) write(path string, r io.Reader) (int64, error) {
	tmpPath := path + ".tmp"
	out, err := d.fs.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}

	n, err := io.Copy(out, r)
	err = multierr.Append(err, out.Close())
	if err != nil {
		_ = d.fs.Remove(tmpPath)
		return 0, fmt.Errorf("writing file: %w", err)
	}

	if err := d.fs.Rename(tmpPath, path); err != nil {
		_ = d.fs.Remove(tmpPath)
		return 0, fmt.Errorf("renaming file: %w", err)
	}
	return n, nil
}
