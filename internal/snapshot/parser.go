package snapshot

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/plandes/relpo/internal/project"
	"github.com/plandes/relpo/internal/relerr"
)

// Parser reads snapshot files.
type Parser struct {
	r *bufio.Reader
}

// NewParser creates a new snapshot parser.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReader(r)}
}

// Parse reads a summary written by Emitter.
func (p *Parser) Parse() (*project.Summary, error) {
	line, err := p.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	if line != header {
		return nil, relerr.Formatf(relerr.ErrMalformedDocument, "not a project snapshot")
	}

	var s project.Summary
	if err := yaml.NewDecoder(p.r).Decode(&s); err != nil {
		return nil, relerr.Formatf(relerr.ErrMalformedDocument, "parsing snapshot: %v", err)
	}
	return &s, nil
}
