// Package repo exposes the tags and commits of a git working directory as
// ordered sequences.
package repo

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/plandes/relpo/internal/relerr"
	"github.com/plandes/relpo/internal/version"
)

// Commit identifies one commit.
type Commit struct {
	Sha  string    `json:"sha" yaml:"sha"`
	Time time.Time `json:"date" yaml:"date"`
}

// Tag is a version shaped tag and the commit it points to.
type Tag struct {
	Sha     string          `json:"sha" yaml:"sha"`
	Name    string          `json:"name" yaml:"name"`
	Version version.Version `json:"version" yaml:"version"`
	Time    time.Time       `json:"date" yaml:"date"`
}

// ProjectRepo is a read-only view of a git working directory. Tags and
// commits are read once and cached for the life of the instance.
type ProjectRepo struct {
	dir     string
	r       *git.Repository
	tags    []Tag
	commits []Commit
	loaded  bool
}

// Open opens the git working directory dir.
func Open(dir string) (*ProjectRepo, error) {
	r, err := git.PlainOpen(dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, relerr.Repositoryf(relerr.ErrNotRepository, "not a git working directory: %s", dir)
		}
		return nil, relerr.Repositoryf(err, "opening repository %s: %v", dir, err)
	}
	return &ProjectRepo{dir: dir, r: r}, nil
}

// Dir returns the working directory.
func (p *ProjectRepo) Dir() string {
	return p.dir
}

// Tags returns the version shaped tags ascending by version. Tags whose
// names do not parse as a version are left out.
func (p *ProjectRepo) Tags() ([]Tag, error) {
	if err := p.load(); err != nil {
		return nil, err
	}
	return p.tags, nil
}

// Commits returns the commits reachable from HEAD, oldest first.
func (p *ProjectRepo) Commits() ([]Commit, error) {
	if err := p.load(); err != nil {
		return nil, err
	}
	return p.commits, nil
}

// TagSha returns the commit the named tag currently points to, or an empty
// string when the tag no longer exists.
func (p *ProjectRepo) TagSha(name string) (string, error) {
	ref, err := p.r.Tag(name)
	if err != nil {
		if errors.Is(err, git.ErrTagNotFound) {
			return "", nil
		}
		return "", relerr.Repositoryf(err, "resolving tag %s: %v", name, err)
	}
	commit, _, err := p.peel(ref)
	if err != nil {
		return "", err
	}
	return commit.Hash.String(), nil
}

func (p *ProjectRepo) load() error {
	if p.loaded {
		return nil
	}
	tags, err := p.readTags()
	if err != nil {
		return err
	}
	commits, err := p.readCommits()
	if err != nil {
		return err
	}
	p.tags, p.commits, p.loaded = tags, commits, true
	return nil
}

func (p *ProjectRepo) readTags() ([]Tag, error) {
	iter, err := p.r.Tags()
	if err != nil {
		return nil, relerr.Repositoryf(err, "listing tags: %v", err)
	}
	defer iter.Close()

	var tags []Tag
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		ver, err := version.Parse(name)
		if err != nil {
			return nil
		}
		commit, when, err := p.peel(ref)
		if err != nil {
			return err
		}
		tags = append(tags, Tag{
			Sha:     commit.Hash.String(),
			Name:    name,
			Version: ver,
			Time:    when,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(tags, func(a, b Tag) int {
		return a.Version.Compare(b.Version)
	})
	return tags, nil
}

// peel resolves a tag reference to its commit. Annotated tags report the
// tagger time, lightweight tags the commit time.
func (p *ProjectRepo) peel(ref *plumbing.Reference) (*object.Commit, time.Time, error) {
	name := ref.Name().Short()
	tagObj, err := p.r.TagObject(ref.Hash())
	switch {
	case err == nil:
		commit, err := tagObj.Commit()
		if err != nil {
			return nil, time.Time{}, relerr.Repositoryf(err, "tag %s does not point to a commit: %v", name, err)
		}
		return commit, tagObj.Tagger.When, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		commit, err := p.r.CommitObject(ref.Hash())
		if err != nil {
			return nil, time.Time{}, relerr.Repositoryf(err, "tag %s does not point to a commit: %v", name, err)
		}
		return commit, commit.Committer.When, nil
	default:
		return nil, time.Time{}, relerr.Repositoryf(err, "reading tag %s: %v", name, err)
	}
}

func (p *ProjectRepo) readCommits() ([]Commit, error) {
	head, err := p.r.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, relerr.Repositoryf(err, "reading HEAD: %v", err)
	}

	iter, err := p.r.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, relerr.Repositoryf(err, "reading commit log: %v", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, Commit{Sha: c.Hash.String(), Time: c.Committer.When})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating commits: %w", err)
	}

	slices.Reverse(commits)
	return commits, nil
}

// Summary is the serializable form of a repository.
type Summary struct {
	Path    string `json:"path" yaml:"path"`
	Head    string `json:"head,omitempty" yaml:"head,omitempty"`
	Commits int    `json:"commits" yaml:"commits"`
	Tags    []Tag  `json:"tags" yaml:"tags"`
}

// Summary returns the serializable form.
func (p *ProjectRepo) Summary() (Summary, error) {
	tags, err := p.Tags()
	if err != nil {
		return Summary{}, err
	}
	commits, err := p.Commits()
	if err != nil {
		return Summary{}, err
	}
	abs, err := filepath.Abs(p.dir)
	if err != nil {
		abs = p.dir
	}
	s := Summary{Path: abs, Commits: len(commits), Tags: tags}
	if len(commits) > 0 {
		s.Head = commits[len(commits)-1].Sha
	}
	return s, nil
}
