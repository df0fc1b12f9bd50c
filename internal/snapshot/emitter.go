// Package snapshot caches the last project summary on disk.
package snapshot

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/plandes/relpo/internal/project"
)

const header = "# relpo project snapshot: version 1\n"

// Emitter writes snapshot files.
type Emitter struct {
	w io.Writer
}

// NewEmitter creates a new snapshot emitter.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes the header followed by the summary as YAML.
func (e *Emitter) Emit(s *project.Summary) error {
	if _, err := fmt.Fprint(e.w, header); err != nil {
		return err
	}
	enc := yaml.NewEncoder(e.w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return enc.Close()
}
