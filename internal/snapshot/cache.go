package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/plandes/relpo/internal/logging"
	"github.com/plandes/relpo/internal/project"
)

// FileName is the snapshot file in the temporary directory.
const FileName = "build.yml"

// Cache is a snapshot file that is stale once any of its sources changes.
type Cache struct {
	fs      afero.Fs
	path    string
	sources []string
	logger  *zap.Logger
}

// NewCache creates a cache in dir invalidated by the modification times of
// sources.
func NewCache(fs afero.Fs, dir string, logger *zap.Logger, sources ...string) *Cache {
	return &Cache{
		fs:      fs,
		path:    filepath.Join(dir, FileName),
		sources: sources,
		logger:  logging.OrNop(logger),
	}
}

// Path is the snapshot file.
func (c *Cache) Path() string {
	return c.path
}

// isCacheValid reports whether the snapshot exists and no source was
// modified after it was written.
func (c *Cache) isCacheValid() bool {
	info, err := c.fs.Stat(c.path)
	if err != nil {
		return false
	}
	for _, src := range c.sources {
		si, err := c.fs.Stat(src)
		if err != nil {
			continue
		}
		if si.ModTime().After(info.ModTime()) {
			c.logger.Debug("snapshot is stale", zap.String("source", src))
			return false
		}
	}
	return true
}

// Get returns the cached summary, or computes, stores and returns a new one
// when the snapshot is missing or stale.
func (c *Cache) Get(compute func() (*project.Summary, error)) (*project.Summary, error) {
	if c.isCacheValid() {
		s, err := c.load()
		if err == nil {
			c.logger.Debug("using snapshot", zap.String("path", c.path))
			return s, nil
		}
		c.logger.Warn("ignoring unreadable snapshot", zap.String("path", c.path), zap.Error(err))
	}
	s, err := compute()
	if err != nil {
		return nil, err
	}
	if err := c.store(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset removes the snapshot.
func (c *Cache) Reset() error {
	if err := c.fs.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing snapshot: %w", err)
	}
	return nil
}

func (c *Cache) load() (s *project.Summary, err error) {
	f, err := c.fs.Open(c.path)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return NewParser(f).Parse()
}

func (c *Cache) store(s *project.Summary) (err error) {
	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := c.fs.Create(c.path)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	if err := NewEmitter(f).Emit(s); err != nil {
		return err
	}
	c.logger.Info("wrote snapshot", zap.String("path", c.path))
	return nil
}
