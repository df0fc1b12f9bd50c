package project

import (
	"fmt"

	"github.com/plandes/relpo/internal/changelog"
	"github.com/plandes/relpo/internal/repo"
	"github.com/plandes/relpo/internal/version"
)

// Release pairs a tag with the change log entry of the same version.
type Release struct {
	Tag   repo.Tag
	Entry changelog.Entry

	// head is the commit the repository currently reports for the tag.
	head string
}

// NewRelease creates a release. head is the sha the repository currently
// resolves the tag to (empty when the tag no longer exists).
func NewRelease(tag repo.Tag, entry changelog.Entry, head string) Release {
	return Release{Tag: tag, Entry: entry, head: head}
}

// Version is the version shared by the tag and the entry.
func (r Release) Version() version.Version {
	return r.Tag.Version
}

// Issue returns why the release is not valid, or an empty string.
func (r Release) Issue() string {
	switch {
	case r.Tag.Version != r.Entry.Version:
		return fmt.Sprintf("tag %s does not match change log entry %s", r.Tag.Version, r.Entry.Version)
	case r.head == "":
		return fmt.Sprintf("tag %s no longer exists in the repository", r.Tag.Name)
	case r.head != r.Tag.Sha:
		return fmt.Sprintf("tag %s points to %s, expected %s", r.Tag.Name, short(r.head), short(r.Tag.Sha))
	}
	return ""
}

// ReleaseSummary is the serializable form of a release.
type ReleaseSummary struct {
	Version version.Version `json:"version" yaml:"version"`
	Tag     repo.Tag        `json:"tag" yaml:"tag"`
	Entry   changelog.Entry `json:"change_log_entry" yaml:"change_log_entry"`
	Issue   *string         `json:"issue" yaml:"issue"`
}

// Summary returns the serializable form.
func (r Release) Summary() ReleaseSummary {
	s := ReleaseSummary{Version: r.Version(), Tag: r.Tag, Entry: r.Entry}
	if issue := r.Issue(); issue != "" {
		s.Issue = &issue
	}
	return s
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
