package report

import (
	"fmt"
	"io"
	"time"

	"github.com/sofmeright/imagefreight/src/build"
	"github.com/sofmeright/imagefreight/src/output"
)

// Summary counts outcomes by kind.
type Summary struct {
	Total       int // tasks expected
	Succeeded   int
	Skipped     int
	BuildFailed int
	PushFailed  int
}

func (s *Summary) add(o build.Outcome) {
	switch o.Kind {
	case build.Succeeded:
		s.Succeeded++
	case build.Skipped:
		s.Skipped++
	case build.BuildFailed:
		s.BuildFailed++
	case build.PushFailed:
		s.PushFailed++
	}
}

// Recorded is the number of outcomes counted.
func (s Summary) Recorded() int {
	return s.Succeeded + s.Skipped + s.BuildFailed + s.PushFailed
}

// Failed is the number of tasks that neither succeeded nor were skipped.
func (s Summary) Failed() int {
	return s.BuildFailed + s.PushFailed
}

// Err returns nil when every task succeeded or was skipped.
func (s Summary) Err() error {
	if s.Failed() == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d build failure(s), %d push failure(s) out of %d",
		ErrTasksFailed, s.BuildFailed, s.PushFailed, s.Total)
}

// Render writes the Summary section.
func (s Summary) Render(w io.Writer, elapsed time.Duration, color bool) {
	sec := output.NewSection(w, "Summary", 0, color)
	sec.Count("succeeded", s.Succeeded, output.StatusSuccess)
	sec.Count("skipped", s.Skipped, output.StatusSkipped)
	sec.Count("build failed", s.BuildFailed, output.StatusOf(s.BuildFailed))
	sec.Count("push failed", s.PushFailed, output.StatusOf(s.PushFailed))
	sec.Separator()
	sec.Total(elapsed, output.StatusOf(s.Failed()))
	sec.Close()
}
