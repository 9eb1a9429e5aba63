// Package report aggregates task outcomes into per-task status lines,
// outcome log files, a run summary and a JUnit report.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sofmeright/imagefreight/src/build"
	"github.com/sofmeright/imagefreight/src/output"
)

// Outcome log files written by OpenLogs.
const (
	SucceededLog = "build_succeeded.log"
	FailedLog    = "build_failed.log"
)

// ErrTasksFailed is returned by Summary.Err when any task failed.
var ErrTasksFailed = errors.New("one or more images failed")

// Entry is one recorded task outcome.
type Entry struct {
	Task    build.Task
	Outcome build.Outcome
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithColor enables ANSI colors on the console stream.
func WithColor(color bool) Option {
	return func(r *Reporter) { r.color = color }
}

// WithOutputTail prints the last n lines of a failed invocation's output
// below its status line on the console. Zero disables it.
func WithOutputTail(n int) Option {
	return func(r *Reporter) { r.tail = n }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// Reporter records outcomes as tasks finish. All methods are safe for
// concurrent use; lines from different tasks never interleave.
type Reporter struct {
	mu      sync.Mutex
	w       io.Writer
	total   int
	color   bool
	tail    int
	now     func() time.Time
	okLog   io.WriteCloser
	failLog io.WriteCloser
	entries []Entry
	summary Summary
}

// New creates a Reporter for a run of total tasks writing to w.
func New(w io.Writer, total int, opts ...Option) *Reporter {
	r := &Reporter{
		w:       w,
		total:   total,
		now:     time.Now,
		summary: Summary{Total: total},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OpenLogs truncates and opens the succeeded/failed log files in dir.
func (r *Reporter) OpenLogs(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: creating log dir: %w", err)
	}
	ok, err := os.Create(filepath.Join(dir, SucceededLog))
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	fail, err := os.Create(filepath.Join(dir, FailedLog))
	if err != nil {
		ok.Close()
		return fmt.Errorf("report: %w", err)
	}

	r.mu.Lock()
	r.okLog, r.failLog = ok, fail
	r.mu.Unlock()
	return nil
}

// Close closes any open log files.
func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, c := range []io.Closer{r.okLog, r.failLog} {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	r.okLog, r.failLog = nil, nil
	return errors.Join(errs...)
}

// Record writes the status line for one finished task and counts it.
func (r *Reporter) Record(t build.Task, o build.Outcome) {
	level, msg := r.describe(t, o)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{Task: t, Outcome: o})
	r.summary.add(o)

	fmt.Fprintln(r.w, output.FormatLine(now, level, msg, r.color))
	if o.Failed() && r.tail > 0 && o.Output != "" {
		for _, l := range tailLines(o.Output, r.tail) {
			fmt.Fprintf(r.w, "    │ %s\n", l)
		}
	}

	plain := output.FormatLine(now, level, msg, false)
	if o.Failed() {
		if r.failLog != nil {
			fmt.Fprintln(r.failLog, plain)
			for _, l := range tailLines(o.Output, 0) {
				fmt.Fprintf(r.failLog, "    %s\n", l)
			}
		}
	} else if r.okLog != nil {
		fmt.Fprintln(r.okLog, plain)
	}
}

// describe renders the status message for a task outcome.
func (r *Reporter) describe(t build.Task, o build.Outcome) (output.Level, string) {
	pos := fmt.Sprintf("%d/%d", t.Seq, r.total)
	switch o.Kind {
	case build.Skipped:
		return output.LevelWarn, fmt.Sprintf("%s, build skipped: %s", pos, t.Tag)
	case build.Succeeded:
		if o.Pushed {
			return output.LevelSuccess, fmt.Sprintf("%s, build and push succeeded: %s", pos, t.Tag)
		}
		return output.LevelSuccess, fmt.Sprintf("%s, build succeeded: %s", pos, t.Tag)
	case build.PushFailed:
		return output.LevelError, fmt.Sprintf("%s, push failed: %s (%s)", pos, t.Tag, o.Command)
	default:
		if o.Command != "" {
			return output.LevelError, fmt.Sprintf("%s, build failed: %s", pos, o.Command)
		}
		return output.LevelError, fmt.Sprintf("%s, build failed: %s: %v", pos, t.Tag, o.Err)
	}
}

// Entries returns a copy of everything recorded so far, in record order.
func (r *Reporter) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Summary returns the counts recorded so far.
func (r *Reporter) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// tailLines returns the last n non-empty-trailing lines of s; n <= 0 returns all.
func tailLines(s string, n int) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
