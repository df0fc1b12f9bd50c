// Package repotest builds throwaway git repositories for tests.
package repotest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Epoch is the time of the first fixture commit. Each further commit is one
// hour later so committer-time ordering is unambiguous.
var Epoch = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

// Fixture is a git working directory under construction.
type Fixture struct {
	tb   testing.TB
	Dir  string
	Repo *git.Repository
	n    int
}

// Init creates an empty repository in dir.
func Init(tb testing.TB, dir string) *Fixture {
	tb.Helper()
	r, err := git.PlainInit(dir, false)
	if err != nil {
		tb.Fatalf("git init %s: %v", dir, err)
	}
	return &Fixture{tb: tb, Dir: dir, Repo: r}
}

func (f *Fixture) signature() *object.Signature {
	return &object.Signature{
		Name:  "Release Bot",
		Email: "bot@example.com",
		When:  Epoch.Add(time.Duration(f.n) * time.Hour),
	}
}

// Commit writes a file and commits it, returning the commit sha.
func (f *Fixture) Commit(msg string) string {
	f.tb.Helper()
	f.n++
	wt, err := f.Repo.Worktree()
	if err != nil {
		f.tb.Fatalf("worktree: %v", err)
	}
	name := fmt.Sprintf("file-%d.txt", f.n)
	if err := os.WriteFile(filepath.Join(f.Dir, name), []byte(msg+"\n"), 0644); err != nil {
		f.tb.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		f.tb.Fatalf("add %s: %v", name, err)
	}
	sig := f.signature()
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		f.tb.Fatalf("commit: %v", err)
	}
	return hash.String()
}

// Tag creates a lightweight tag on sha.
func (f *Fixture) Tag(name, sha string) {
	f.tb.Helper()
	if _, err := f.Repo.CreateTag(name, plumbing.NewHash(sha), nil); err != nil {
		f.tb.Fatalf("tag %s: %v", name, err)
	}
}

// AnnotatedTag creates an annotated tag on sha.
func (f *Fixture) AnnotatedTag(name, sha string) {
	f.tb.Helper()
	opts := &git.CreateTagOptions{Tagger: f.signature(), Message: "release " + name}
	if _, err := f.Repo.CreateTag(name, plumbing.NewHash(sha), opts); err != nil {
		f.tb.Fatalf("tag %s: %v", name, err)
	}
}

// DeleteTag removes a tag.
func (f *Fixture) DeleteTag(name string) {
	f.tb.Helper()
	if err := f.Repo.DeleteTag(name); err != nil {
		f.tb.Fatalf("delete tag %s: %v", name, err)
	}
}
