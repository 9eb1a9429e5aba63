package build

import (
	"context"
	"strings"
	"sync"
)

// fakeRunner answers invocations by their docker subcommand and records
// every call.
type fakeRunner struct {
	mu    sync.Mutex
	calls []Invocation

	images   string // stdout of "images -q"
	imageErr error
	build    int // exit code of "build"
	buildErr error
	push     int // exit code of "push"
}

func (f *fakeRunner) Run(_ context.Context, inv Invocation) (RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()

	switch inv.Args[0] {
	case "images":
		return RunResult{Output: []byte(f.images)}, f.imageErr
	case "build":
		return RunResult{ExitCode: f.build, Output: []byte("step 1/3\nerror: boom\n")}, f.buildErr
	case "push":
		return RunResult{ExitCode: f.push}, nil
	}
	return RunResult{ExitCode: 127}, nil
}

func (f *fakeRunner) subcommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Args[0])
	}
	return out
}

func (f *fakeRunner) lastCall(sub string) (Invocation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Args[0] == sub {
			return f.calls[i], true
		}
	}
	return Invocation{}, false
}

func joined(s []string) string { return strings.Join(s, ",") }
