package project

import (
	"time"

	"github.com/plandes/relpo/internal/changelog"
	"github.com/plandes/relpo/internal/repo"
)

// Summary is the machine readable project report.
type Summary struct {
	Date        time.Time         `json:"date" yaml:"date"`
	Path        string            `json:"path" yaml:"path"`
	Repo        repo.Summary      `json:"repo" yaml:"repo"`
	ChangeLog   changelog.Summary `json:"change_log" yaml:"change_log"`
	LastRelease *ReleaseSummary   `json:"last_release" yaml:"last_release"`
	Issue       *string           `json:"issue" yaml:"issue"`
	Config      map[string]any    `json:"config" yaml:"config"`
}

// Summary builds the project report.
func (p *Project) Summary() (*Summary, error) {
	issue, err := p.Issue()
	if err != nil {
		return nil, err
	}
	r, err := p.Repo()
	if err != nil {
		return nil, err
	}
	rs, err := r.Summary()
	if err != nil {
		return nil, err
	}
	cl, err := p.ChangeLog()
	if err != nil {
		return nil, err
	}
	last, err := p.LastRelease()
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Date:      time.Now(),
		Path:      p.Dir(),
		Repo:      rs,
		ChangeLog: cl.Summary(),
		Config:    p.cfg.Data,
	}
	if last != nil {
		ls := last.Summary()
		s.LastRelease = &ls
	}
	if issue != "" {
		s.Issue = &issue
	}
	return s, nil
}
