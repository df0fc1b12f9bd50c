// Package envdist builds environment distributions: every dependency of a
// pixi lock file environment fetched, staged with a conda environment file
// per platform and archived.
//
// A build moves through its states in order, each computed once per
// Builder: the lock file is read and validated, the environment is
// resolved, dependencies are fetched and finally staged.
package envdist

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/plandes/relpo/internal/archive"
	"github.com/plandes/relpo/internal/config"
	"github.com/plandes/relpo/internal/downloader"
	"github.com/plandes/relpo/internal/lock"
	"github.com/plandes/relpo/internal/logging"
	"github.com/plandes/relpo/internal/progress"
	"github.com/plandes/relpo/internal/relerr"
	"github.com/plandes/relpo/internal/template"
)

// Fetcher downloads a file unless it is already present.
type Fetcher interface {
	Fetch(ctx context.Context, job downloader.Job) (downloader.Result, error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithFs sets the filesystem for the cache, stage and archive.
func WithFs(fs afero.Fs) Option {
	return func(b *Builder) { b.fs = fs }
}

// WithFetcher sets the fetcher. It defaults to a downloader on the
// builder's filesystem.
func WithFetcher(f Fetcher) Option {
	return func(b *Builder) { b.fetcher = f }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = logging.OrNop(l) }
}

// WithProgress sets the progress tracker.
func WithProgress(t progress.Tracker) Option {
	return func(b *Builder) { b.progress = t }
}

// WithTemplateParams sets the parameters the manifest name is rendered
// with. `platform` is added per platform.
func WithTemplateParams(p template.Params) Option {
	return func(b *Builder) { b.params = p }
}

// WithOutputFile archives the stage directory to file after staging.
func WithOutputFile(file string) Option {
	return func(b *Builder) { b.outputFile = file }
}

// Builder creates an environment distribution. A Builder is not safe for
// concurrent use.
type Builder struct {
	cfg        config.EnvDistConfig
	stageDir   string
	outputFile string

	fs       afero.Fs
	fetcher  Fetcher
	logger   *zap.Logger
	progress progress.Tracker
	params   template.Params

	lock    *lock.File
	env     *Environment
	fetched bool
}

// NewBuilder creates a builder that stages into stageDir.
func NewBuilder(cfg config.EnvDistConfig, stageDir string, opts ...Option) *Builder {
	b := &Builder{
		cfg:      cfg,
		stageDir: stageDir,
		fs:       afero.NewOsFs(),
		logger:   zap.NewNop(),
		progress: progress.Nop{},
		params:   template.Params{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.fetcher == nil {
		b.fetcher = downloader.NewDownloader(b.fs, downloader.WithLogger(b.logger))
	}
	return b
}

// StageDir is the directory the distribution is staged in.
func (b *Builder) StageDir() string {
	return b.stageDir
}

// Lock returns the parsed and validated lock file.
func (b *Builder) Lock() (*lock.File, error) {
	if b.lock != nil {
		return b.lock, nil
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	f, err := lock.Load(b.fs, b.cfg.LockFile)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(b.cfg.Environment); err != nil {
		return nil, err
	}
	b.lock = f
	return b.lock, nil
}

// Environment resolves the configured environment for the requested
// platforms, or every platform of the lock file when none are configured.
func (b *Builder) Environment() (*Environment, error) {
	if b.env != nil {
		return b.env, nil
	}
	f, err := b.Lock()
	if err != nil {
		return nil, err
	}
	lenv, _ := f.Environment(b.cfg.Environment)

	names := lenv.Platforms()
	if len(b.cfg.Platforms) > 0 {
		var missing []string
		for _, name := range b.cfg.Platforms {
			if _, ok := lenv.Packages[name]; !ok {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			return nil, relerr.Resolutionf(relerr.ErrMissingPlatform,
				"exported platforms requested but unavailable: %s", strings.Join(slices.Compact(missing), ", "))
		}
		names = slices.Compact(slices.Sorted(slices.Values(b.cfg.Platforms)))
	}

	env := &Environment{Name: b.cfg.Environment}
	for _, name := range names {
		plat := &Platform{Name: name}
		for i, entry := range lenv.Packages[name] {
			typ, loc, ok := entry.Locator()
			if !ok {
				return nil, relerr.Formatf(relerr.ErrMalformedDocument,
					"platform %s entry %d: expected one dependency type, got %d", name, i, len(entry))
			}
			switch typ {
			case lock.TypeConda, lock.TypePyPI:
			default:
				return nil, relerr.Resolutionf(relerr.ErrUnknownDependencyType,
					"unknown dependency type: %s", typ)
			}
			plat.Dependencies = append(plat.Dependencies, NewDependency(typ == lock.TypeConda, loc))
		}
		env.Platforms = append(env.Platforms, plat)
	}
	b.logger.Info("resolved environment",
		zap.String("environment", env.Name),
		zap.Int("platforms", len(env.Platforms)),
		zap.Int("deps", env.Len()))
	b.env = env
	return b.env, nil
}

// Fetch binds every dependency to a local file, downloading those not yet
// in the cache. Platforms are visited in order, then dependencies in lock
// file order.
func (b *Builder) Fetch(ctx context.Context) error {
	env, err := b.Environment()
	if err != nil {
		return err
	}
	if b.fetched {
		return nil
	}
	for _, plat := range env.Platforms {
		b.logger.Info("fetching", zap.String("platform", plat.Name), zap.Int("deps", plat.Len()))
		for _, dep := range plat.Dependencies {
			if err := b.fetch(ctx, plat, dep); err != nil {
				return err
			}
			b.progress.Step("down " + plat.Name)
		}
	}
	b.fetched = true
	return nil
}

func (b *Builder) fetch(ctx context.Context, plat *Platform, dep *Dependency) error {
	if dep.IsFile() {
		dep.bind(dep.NativeFile())
		return nil
	}
	if _, ok := dep.LocalFile(); ok {
		return nil
	}
	dest := filepath.Join(b.cfg.CacheDir, plat.Subdir(dep), dep.SourceFile())
	b.logger.Debug("fetch", zap.String("url", dep.URL()), zap.String("dest", dest))
	if _, err := b.fetcher.Fetch(ctx, downloader.Job{URL: dep.URL(), DestPath: dest}); err != nil {
		return relerr.Transferf(relerr.ErrDependencyFetch, "dependency download fail: %s: %v", dep, err)
	}
	dep.bind(dest)
	b.logger.Debug("bound", zap.Any("dependency", dep.Summary()))
	return nil
}

// EnvironmentFile returns the conda environment file of a platform.
func (b *Builder) EnvironmentFile(platform string) ([]byte, error) {
	env, err := b.Environment()
	if err != nil {
		return nil, err
	}
	plat, ok := env.Platform(platform)
	if !ok {
		return nil, relerr.Resolutionf(relerr.ErrMissingPlatform, "no such platform: %s", platform)
	}
	m := NewManifest(plat)
	name, err := template.Render("manifest", m.Name, b.params.With("platform", plat))
	if err != nil {
		return nil, relerr.Configf(err, "manifest name: %v", err)
	}
	m.Name = name
	return m.Marshal()
}

// Stage recreates the stage directory and fills it with a conda
// environment file per platform, every dependency and the injected files.
func (b *Builder) Stage() error {
	env, err := b.Environment()
	if err != nil {
		return err
	}
	if !b.fetched {
		return relerr.Configf(nil, "dependencies must be fetched before staging")
	}

	if ok, _ := afero.DirExists(b.fs, b.stageDir); ok {
		b.logger.Info("removing existing stage", zap.String("dir", b.stageDir))
		if err := b.fs.RemoveAll(b.stageDir); err != nil {
			return relerr.Configf(err, "removing stage %s: %v", b.stageDir, err)
		}
	}
	if err := b.fs.MkdirAll(b.stageDir, 0755); err != nil {
		return relerr.Configf(err, "creating stage %s: %v", b.stageDir, err)
	}

	for _, plat := range env.Platforms {
		content, err := b.EnvironmentFile(plat.Name)
		if err != nil {
			return err
		}
		file := filepath.Join(b.stageDir, plat.Name, ManifestFile)
		if err := b.writeFile(file, content); err != nil {
			return err
		}
		b.logger.Info("wrote", zap.String("file", file))
		b.progress.Step("arch " + plat.Name)

		for _, dep := range plat.Dependencies {
			src, _ := dep.LocalFile()
			dst := filepath.Join(b.stageDir, filepath.FromSlash(dep.relPath(plat.Subdir(dep))))
			b.logger.Debug("copy", zap.String("src", src), zap.String("dst", dst))
			if err := b.copyFile(src, dst); err != nil {
				return err
			}
			b.progress.Step("arch " + plat.Name)
		}
	}

	for _, inj := range b.cfg.Injects {
		dest := inj.Dest
		if dest == "" {
			dest = filepath.Base(inj.Source)
		}
		dst := filepath.Join(b.stageDir, filepath.Clean("/"+dest))
		if err := b.copyFile(inj.Source, dst); err != nil {
			return err
		}
		b.progress.Step("inject")
	}
	return nil
}

// Archive writes the stage directory to the output file, if one was given.
func (b *Builder) Archive() error {
	if b.outputFile == "" {
		return nil
	}
	if err := archive.Write(b.fs, b.stageDir, b.outputFile); err != nil {
		if relerr.KindOf(err) != relerr.Unknown {
			return err
		}
		return relerr.Configf(err, "archive %s: %v", b.outputFile, err)
	}
	b.logger.Info("wrote", zap.String("file", b.outputFile))
	return nil
}

// Steps is the number of progress units a full build takes.
func (b *Builder) Steps() (int, error) {
	env, err := b.Environment()
	if err != nil {
		return 0, err
	}
	return 2*env.Len() + len(env.Platforms) + len(b.cfg.Injects), nil
}

// Generate runs the whole build.
func (b *Builder) Generate(ctx context.Context) error {
	env, err := b.Environment()
	if err != nil {
		return err
	}
	total, _ := b.Steps()
	b.logger.Info("creating distribution", zap.Stringer("environment", env), zap.Int("deps", env.Len()))
	b.progress.Start(total)
	defer b.progress.Finish()

	if err := b.Fetch(ctx); err != nil {
		return err
	}
	if err := b.Stage(); err != nil {
		return err
	}
	return b.Archive()
}

func (b *Builder) writeFile(file string, content []byte) error {
	if err := b.fs.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return relerr.Configf(err, "creating directory: %v", err)
	}
	if err := afero.WriteFile(b.fs, file, content, 0644); err != nil {
		return relerr.Configf(err, "writing %s: %v", file, err)
	}
	return nil
}

func (b *Builder) copyFile(src, dst string) (err error) {
	in, err := b.fs.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return relerr.Configf(relerr.ErrNotFound, "file not found: %s", src)
		}
		return relerr.Configf(err, "opening %s: %v", src, err)
	}
	defer func() { err = multierr.Append(err, in.Close()) }()

	if err := b.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return relerr.Configf(err, "creating directory: %v", err)
	}
	out, err := b.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return relerr.Configf(err, "creating %s: %v", dst, err)
	}
	_, err = io.Copy(out, in)
	if err = multierr.Append(err, out.Close()); err != nil {
		return relerr.Configf(err, "copying %s: %v", src, err)
	}
	return nil
}
