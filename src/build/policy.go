package build

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Policy decides, per task, whether to skip, build, and push.
// A Policy holds no per-task state and is safe for concurrent use as long as
// its Runner is.
type Policy struct {
	Runner   Runner
	Commands Commands
	Force    bool // rebuild even when the image exists locally
	Push     bool // push after a successful build
	Logger   *slog.Logger
}

// Handle runs one task through exists → build → push. Every step runs at
// most once; nothing is retried.
func (p *Policy) Handle(ctx context.Context, t Task) Outcome {
	start := time.Now()
	log := p.logger().With("seq", t.Seq, "tag", t.Tag)

	if !p.Force && p.exists(ctx, t, log) {
		return Outcome{Kind: Skipped, Duration: time.Since(start)}
	}

	buildInv := p.Commands.Build(t)
	log.Debug("building", "cmd", buildInv.String())
	if out, err := p.run(ctx, buildInv); err != nil {
		return Outcome{
			Kind:     BuildFailed,
			Command:  buildInv.String(),
			Output:   out,
			Err:      err,
			Duration: time.Since(start),
		}
	}

	if !p.Push {
		return Outcome{Kind: Succeeded, Duration: time.Since(start)}
	}

	for _, inv := range p.Commands.Push(t) {
		log.Debug("pushing", "cmd", inv.String())
		if out, err := p.run(ctx, inv); err != nil {
			return Outcome{
				Kind:     PushFailed,
				Command:  inv.String(),
				Output:   out,
				Err:      err,
				Duration: time.Since(start),
			}
		}
	}

	return Outcome{Kind: Succeeded, Pushed: true, Duration: time.Since(start)}
}

// exists reports whether the primary tag is already present locally.
// A failing query counts as absent so the task still builds.
func (p *Policy) exists(ctx context.Context, t Task, log *slog.Logger) bool {
	inv := p.Commands.Exists(t)
	res, err := p.Runner.Run(ctx, inv)
	if err != nil {
		log.Warn("existence check failed", "cmd", inv.String(), "error", err)
		return false
	}
	if res.ExitCode != 0 {
		log.Warn("existence check failed", "cmd", inv.String(), "exit", res.ExitCode)
		return false
	}
	return strings.TrimSpace(string(res.Output)) != ""
}

// run executes inv and converts a runner error or non-zero exit into an error.
func (p *Policy) run(ctx context.Context, inv Invocation) (string, error) {
	res, err := p.Runner.Run(ctx, inv)
	out := string(res.Output)
	if err != nil {
		return out, err
	}
	if res.ExitCode != 0 {
		return out, fmt.Errorf("%s exited with status %d", inv.Name, res.ExitCode)
	}
	return out, nil
}

func (p *Policy) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}
