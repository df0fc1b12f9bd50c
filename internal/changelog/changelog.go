package changelog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/plandes/relpo/internal/relerr"
	"github.com/plandes/relpo/internal/version"
)

// DateLayout is the entry date format.
const DateLayout = "2006-01-02"

var (
	sectionRe = regexp.MustCompile(`^##\s+(.*)$`)
	entryRe   = regexp.MustCompile(`^\[?(v?\d+\.\d+\.\d+)\]?(.*)$`)
	// yanked releases keep their entry
	dateRe    = regexp.MustCompile(`^\s*-\s*(\S+)(?:\s+\[YANKED\])?\s*$`)
)

// Entry is one released version in the change log.
type Entry struct {
	Version version.Version `json:"version" yaml:"version"`
	Date    time.Time       `json:"date" yaml:"date"`
	Body    string          `json:"body" yaml:"body"`
}

// ChangeLog is a parsed change log document.
type ChangeLog struct {
	Path    string
	Entries []Entry
}

// Load parses the change log file at path.
func Load(path string) (*ChangeLog, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, relerr.Configf(relerr.ErrNotFound, "change log not found: %s", path)
		}
		return nil, relerr.Configf(err, "opening change log: %v", err)
	}
	defer file.Close()

	entries, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ChangeLog{Path: path, Entries: entries}, nil
}

// Parse reads entries in document order. Entries are level two headings of
// the form `## [X.Y.Z] - YYYY-MM-DD`, optionally followed by `[YANKED]`.
// Level two headings without a version such as `## [Unreleased]` are skipped
// along with their bodies; a versioned heading without a valid date is an
// error.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	var current *Entry
	var body []string

	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(strings.Join(body, "\n"))
			entries = append(entries, *current)
		}
		current = nil
		body = nil
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		lineNo++

		section := sectionRe.FindStringSubmatch(line)
		if section == nil {
			if current != nil {
				body = append(body, line)
			}
			continue
		}

		flush()
		matches := entryRe.FindStringSubmatch(strings.TrimSpace(section[1]))
		if matches == nil {
			continue
		}
		ver, err := version.Parse(matches[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		dm := dateRe.FindStringSubmatch(matches[2])
		if dm == nil {
			return nil, relerr.Formatf(relerr.ErrMalformedDocument,
				"line %d: malformed heading for %s: %q, expected `- %s`", lineNo, ver, strings.TrimSpace(matches[2]), DateLayout)
		}
		date, err := time.Parse(DateLayout, dm[1])
		if err != nil {
			return nil, relerr.Formatf(relerr.ErrMalformedDocument,
				"line %d: invalid date %q for %s, expected %s", lineNo, dm[1], ver, DateLayout)
		}
		current = &Entry{Version: ver, Date: date}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading change log: %w", err)
	}

	return entries, nil
}

// Latest returns the last entry in document order.
func (c *ChangeLog) Latest() (Entry, bool) {
	if len(c.Entries) == 0 {
		return Entry{}, false
	}
	return c.Entries[len(c.Entries)-1], true
}

// Summary is the serializable form of a change log.
type Summary struct {
	Path    string  `json:"path" yaml:"path"`
	Entries []Entry `json:"entries" yaml:"entries"`
}

// Summary returns the serializable form.
func (c *ChangeLog) Summary() Summary {
	return Summary{Path: c.Path, Entries: c.Entries}
}
