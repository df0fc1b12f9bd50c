// Package progress reports completion of long running builds.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// Tracker observes completed units of work.
type Tracker interface {
	// Start resets the tracker for total units.
	Start(total int)

	// Step records one completed unit described by desc.
	Step(desc string)

	// Finish ends tracking.
	Finish()
}

// Counter is a Tracker that only counts.
type Counter struct {
	total int
	done  int
	desc  string
}

func (c *Counter) Start(total int) {
	c.total, c.done, c.desc = total, 0, ""
}

func (c *Counter) Step(desc string) {
	c.done++
	c.desc = desc
}

func (c *Counter) Finish() {}

// Total is the number of units given to Start.
func (c *Counter) Total() int { return c.total }

// Done is the number of completed units.
func (c *Counter) Done() int { return c.done }

// Desc is the description of the last completed unit.
func (c *Counter) Desc() string { return c.desc }

// Spinner is a Tracker that shows a terminal spinner with the count.
type Spinner struct {
	Counter
	s *spinner.Spinner
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{
		s: spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(w)),
	}
}

func (s *Spinner) Start(total int) {
	s.Counter.Start(total)
	s.update()
	s.s.Start()
}

func (s *Spinner) Step(desc string) {
	s.Counter.Step(desc)
	s.update()
}

func (s *Spinner) Finish() {
	s.s.Stop()
}

func (s *Spinner) update() {
	s.s.Lock()
	s.s.Suffix = fmt.Sprintf(" %s %d/%d", s.Desc(), s.Done(), s.Total())
	s.s.Unlock()
}

// Nop is a Tracker that does nothing.
type Nop struct{}

func (Nop) Start(int)   {}
func (Nop) Step(string) {}
func (Nop) Finish()     {}
