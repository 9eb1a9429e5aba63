// Package executor runs independent build tasks on a fixed-width worker pool.
//
// Every task yields exactly one Result. A failing or panicking task never
// stops its siblings; the executor only returns once every dispatched task
// has finished.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sofmeright/imagefreight/src/build"
)

// ErrNoTasks is returned by callers when expansion produced nothing to run.
var ErrNoTasks = errors.New("no images found that match your request")

// Handler processes one task to completion.
type Handler func(ctx context.Context, t build.Task) build.Outcome

// Result pairs a task with its outcome.
type Result struct {
	Task    build.Task
	Outcome build.Outcome
}

// TaskFault is the error recorded when a handler panics.
type TaskFault struct {
	Value any
	Stack []byte
}

func (f *TaskFault) Error() string {
	return fmt.Sprintf("task fault: %v", f.Value)
}

// Option configures an Executor.
type Option func(*Executor)

// WithObserver registers fn to receive each result as soon as its task
// finishes. fn is called from worker goroutines and must be safe for
// concurrent use.
func WithObserver(fn func(Result)) Option {
	return func(e *Executor) {
		e.observers = append(e.observers, fn)
	}
}

// WithLogger sets the logger for worker lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// Executor bounds the number of concurrently running handlers.
type Executor struct {
	width     int
	observers []func(Result)
	logger    *slog.Logger
}

// DefaultWidth is half the available CPUs, at least 1.
func DefaultWidth() int {
	return max(1, runtime.NumCPU()/2)
}

// EffectiveWidth normalizes a requested width; n <= 0 means DefaultWidth.
func EffectiveWidth(n int) int {
	if n <= 0 {
		return DefaultWidth()
	}
	return n
}

// New creates an Executor running at most width handlers at once.
// A width <= 0 is normalized to DefaultWidth.
func New(width int, opts ...Option) *Executor {
	e := &Executor{width: width}
	for _, opt := range opts {
		opt(e)
	}
	e.width = EffectiveWidth(e.width)
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Width returns the effective pool width.
func (e *Executor) Width() int {
	return e.width
}

// Run executes handler once per task and returns one result per task in
// completion order. An empty task list returns immediately.
func (e *Executor) Run(ctx context.Context, tasks []build.Task, handler Handler) []Result {
	if len(tasks) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(tasks))
		wg      sync.WaitGroup
	)

	sem := semaphore.NewWeighted(int64(e.width))
	// Slot acquisition ignores cancellation: once queued, every task runs.
	acquireCtx := context.WithoutCancel(ctx)

	e.logger.Debug("dispatching tasks", "tasks", len(tasks), "width", e.width)
	for _, task := range tasks {
		// Only fails on a done context, which acquireCtx never is.
		_ = sem.Acquire(acquireCtx, 1)
		wg.Add(1)
		go func(t build.Task) {
			defer wg.Done()
			defer sem.Release(1)

			res := Result{Task: t, Outcome: e.invoke(ctx, t, handler)}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()

			for _, fn := range e.observers {
				fn(res)
			}
		}(task)
	}

	wg.Wait()
	return results
}

// invoke calls handler, turning a panic into a BuildFailed outcome.
func (e *Executor) invoke(ctx context.Context, t build.Task, handler Handler) (out build.Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			fault := &TaskFault{Value: r, Stack: debug.Stack()}
			e.logger.Error("task panicked", "seq", t.Seq, "tag", t.Tag, "panic", r)
			out = build.Outcome{
				Kind:     build.BuildFailed,
				Err:      fault,
				Duration: time.Since(start),
			}
		}
	}()
	return handler(ctx, t)
}
