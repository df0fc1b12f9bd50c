// Package project reconciles repository tags with change log entries into
// releases and decides whether the project is releasable.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/plandes/relpo/internal/changelog"
	"github.com/plandes/relpo/internal/config"
	"github.com/plandes/relpo/internal/logging"
	"github.com/plandes/relpo/internal/repo"
	"github.com/plandes/relpo/internal/template"
	"github.com/plandes/relpo/internal/version"
)

// Repository is the version control view a project reconciles against.
// *repo.ProjectRepo implements it.
type Repository interface {
	Tags() ([]repo.Tag, error)
	Commits() ([]repo.Commit, error)
	TagSha(name string) (string, error)
	Summary() (repo.Summary, error)
}

// Option configures a Project.
type Option func(*Project)

// WithRepository uses r instead of opening the project directory.
func WithRepository(r Repository) Option {
	return func(p *Project) { p.repo = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Project) { p.logger = logging.OrNop(l) }
}

// Project is a source repository with its change log and configuration.
// The repository, change log and releases are loaded on first use and
// cached. A
// Project is not safe for concurrent use.
type Project struct {
	cfg       *config.Config
	repo      Repository
	changeLog *changelog.ChangeLog
	releases  []Release
	logger    *zap.Logger
}

// New creates a project from a loaded configuration.
func New(cfg *config.Config, opts ...Option) *Project {
	p := &Project{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the merged configuration.
func (p *Project) Config() *config.Config {
	return p.cfg
}

// Dir returns the absolute project directory.
func (p *Project) Dir() string {
	abs, err := filepath.Abs(p.cfg.Build.ProjectDir)
	if err != nil {
		return p.cfg.Build.ProjectDir
	}
	return abs
}

// dirIssue reports why the project directory cannot be used, if at all.
func (p *Project) dirIssue() string {
	dir := p.cfg.Build.ProjectDir
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Sprintf("project directory missing or not a directory: %s", p.Dir())
	}
	if info, err := os.Stat(filepath.Join(dir, ".git")); err != nil || !info.IsDir() {
		return fmt.Sprintf("git directory missing: %s", p.Dir())
	}
	return ""
}

// Repo returns the project's repository.
func (p *Project) Repo() (Repository, error) {
	if p.repo != nil {
		return p.repo, nil
	}
	if reason := p.dirIssue(); reason != "" {
		return nil, repoError(reason)
	}
	r, err := repo.Open(p.cfg.Build.ProjectDir)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("opened repository", zap.String("dir", p.Dir()))
	p.repo = r
	return p.repo, nil
}

// ChangeLog returns the parsed change log.
func (p *Project) ChangeLog() (*changelog.ChangeLog, error) {
	if p.changeLog != nil {
		return p.changeLog, nil
	}
	cl, err := changelog.Load(p.cfg.ChangeLogPath())
	if err != nil {
		return nil, err
	}
	p.logger.Debug("parsed change log",
		zap.String("path", cl.Path), zap.Int("entries", len(cl.Entries)))
	p.changeLog = cl
	return p.changeLog, nil
}

// Releases returns a release for every version that has both a tag and a
// change log entry, ascending by version. Versions found in only one of
// the two are not releases.
func (p *Project) Releases() ([]Release, error) {
	if p.releases != nil {
		return p.releases, nil
	}
	r, err := p.Repo()
	if err != nil {
		return nil, err
	}
	cl, err := p.ChangeLog()
	if err != nil {
		return nil, err
	}
	tags, err := r.Tags()
	if err != nil {
		return nil, err
	}

	entries := make(map[version.Version]changelog.Entry, len(cl.Entries))
	for _, e := range cl.Entries {
		entries[e.Version] = e
	}
	byVersion := make(map[version.Version]repo.Tag, len(tags))
	for _, t := range tags {
		byVersion[t.Version] = t
	}

	var matched []version.Version
	for v := range byVersion {
		if _, ok := entries[v]; ok {
			matched = append(matched, v)
		}
	}
	slices.SortFunc(matched, version.Compare)

	releases := make([]Release, 0, len(matched))
	for _, v := range matched {
		tag := byVersion[v]
		head, err := r.TagSha(tag.Name)
		if err != nil {
			return nil, err
		}
		releases = append(releases, NewRelease(tag, entries[v], head))
	}
	p.releases = releases
	return p.releases, nil
}

// LastRelease returns the most recent release, or nil when there is none.
func (p *Project) LastRelease() (*Release, error) {
	rels, err := p.Releases()
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return nil, nil
	}
	return &rels[len(rels)-1], nil
}

// Issue returns the human readable reason the project is not releasable,
// or an empty string when it is. Checks run from the most fundamental to
// the most specific and the first failing check is reported.
func (p *Project) Issue() (string, error) {
	if reason := p.dirIssue(); reason != "" {
		return reason, nil
	}
	r, err := p.Repo()
	if err != nil {
		return "", err
	}
	commits, err := r.Commits()
	if err != nil {
		return "", err
	}
	if len(commits) == 0 {
		return "nothing to release", nil
	}
	cl, err := p.ChangeLog()
	if err != nil {
		return "", err
	}
	if len(cl.Entries) == 0 {
		return "no change log entries", nil
	}
	tags, err := r.Tags()
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "no tag entries", nil
	}
	lastTag := tags[len(tags)-1]
	if lastTag.Sha != commits[len(commits)-1].Sha {
		return "there is no tag for the latest commit", nil
	}
	if lastEntry, _ := cl.Latest(); lastTag.Version.Less(lastEntry.Version) {
		return "there is no tag for latest change log", nil
	}
	last, err := p.LastRelease()
	if err != nil {
		return "", err
	}
	if last == nil {
		return "no matching releases", nil
	}
	return last.Issue(), nil
}

// NextVersion returns the latest tag version incremented by c, or the zero
// version incremented when nothing is tagged.
func (p *Project) NextVersion(c version.Component) (version.Version, error) {
	if _, err := version.ParseComponent(string(c)); err != nil {
		return version.Version{}, err
	}
	r, err := p.Repo()
	if err != nil {
		return version.Version{}, err
	}
	tags, err := r.Tags()
	if err != nil {
		return version.Version{}, err
	}
	var cur version.Version
	if len(tags) > 0 {
		cur = tags[len(tags)-1].Version
	}
	return cur.Increment(c), nil
}

// TemplateParams returns the parameters project templates are rendered with:
// `project`, `date`, `env` and `config`.
func (p *Project) TemplateParams() template.Params {
	return template.BaseParams().
		With("project", p).
		With("config", p.cfg.Data)
}
