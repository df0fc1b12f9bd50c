package snapshot

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/plandes/relpo/internal/changelog"
	"github.com/plandes/relpo/internal/project"
	"github.com/plandes/relpo/internal/relerr"
	"github.com/plandes/relpo/internal/repo"
	"github.com/plandes/relpo/internal/version"
)

func sampleSummary() *project.Summary {
	issue := "there is no tag for the latest commit"
	v := version.New(0, 2, 0)
	date := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	return &project.Summary{
		Date: time.Date(2025, 4, 3, 10, 0, 0, 0, time.UTC),
		Path: "/src/relpo",
		Repo: repo.Summary{
			Path:    "/src/relpo",
			Head:    "2222222222222222222222222222222222222222",
			Commits: 3,
			Tags:    []repo.Tag{{Sha: "1111111111111111111111111111111111111111", Name: "v0.2.0", Version: v, Time: date}},
		},
		ChangeLog: changelog.Summary{
			Path:    "CHANGELOG.md",
			Entries: []changelog.Entry{{Version: v, Date: date, Body: "- Second release"}},
		},
		Issue:  &issue,
		Config: map[string]any{"project": map[string]any{"name": "relpo"}},
	}
}

func TestEmitParse(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	want := sampleSummary()

	// Act
	if err := NewEmitter(&buf).Emit(want); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	got, err := NewParser(&buf).Parse()

	// Assert
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got.Path != want.Path || !got.Date.Equal(want.Date) {
		t.Errorf("summary = %+v", got)
	}
	if got.Issue == nil || *got.Issue != *want.Issue {
		t.Errorf("Issue = %v, want %q", got.Issue, *want.Issue)
	}
	if len(got.Repo.Tags) != 1 || got.Repo.Tags[0].Version != want.Repo.Tags[0].Version {
		t.Errorf("Repo.Tags = %+v", got.Repo.Tags)
	}
	if len(got.ChangeLog.Entries) != 1 || got.ChangeLog.Entries[0].Body != "- Second release" {
		t.Errorf("ChangeLog = %+v", got.ChangeLog)
	}
	if got.LastRelease != nil {
		t.Errorf("LastRelease = %+v, want nil", got.LastRelease)
	}
}

func TestParser_NotSnapshot(t *testing.T) {
	_, err := NewParser(strings.NewReader("path: /src\n")).Parse()
	if !errors.Is(err, relerr.ErrMalformedDocument) {
		t.Errorf("Parse() error = %v, want ErrMalformedDocument", err)
	}
}

func TestCache(t *testing.T) {
	// Arrange
	fs := afero.NewMemMapFs()
	old := time.Now().Add(-time.Hour)
	if err := afero.WriteFile(fs, "/src/relpo.yml", []byte("build: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := fs.Chtimes("/src/relpo.yml", old, old); err != nil {
		t.Fatal(err)
	}
	cache := NewCache(fs, "/target", nil, "/src/relpo.yml", "/src/missing")

	computed := 0
	compute := func() (*project.Summary, error) {
		computed++
		return sampleSummary(), nil
	}

	// Act
	for i := 0; i < 2; i++ {
		if _, err := cache.Get(compute); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}

	// Assert
	if computed != 1 {
		t.Errorf("computed %d times, want 1", computed)
	}
	if ok, _ := afero.Exists(fs, "/target/build.yml"); !ok {
		t.Error("snapshot file was not written")
	}

	// a newer source invalidates the snapshot
	future := time.Now().Add(time.Hour)
	if err := fs.Chtimes("/src/relpo.yml", future, future); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(compute); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if computed != 2 {
		t.Errorf("computed %d times after source change, want 2", computed)
	}

	if err := cache.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if ok, _ := afero.Exists(fs, cache.Path()); ok {
		t.Error("Reset() did not remove the snapshot")
	}
	if err := cache.Reset(); err != nil {
		t.Errorf("Reset() of a missing snapshot error = %v", err)
	}
}
