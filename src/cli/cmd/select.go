package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/sofmeright/imagefreight/src/build"
	"github.com/sofmeright/imagefreight/src/config"
	"github.com/sofmeright/imagefreight/src/delta"
	"github.com/sofmeright/imagefreight/src/output"
)

// runEnv is the root-level state shared by build and plan.
type runEnv struct {
	Index  *config.Index
	Root   string // library directory root, also the build context
	Set    string
	Logger *slog.Logger
}

// selection narrows what gets expanded.
type selection struct {
	Libraries    []string // allow-list
	Versions     []string // regex, dots literal
	Constraints  []string // semver ranges
	Registry     string   // tag prefix; empty disables push
	Changed      bool     // only libraries with git changes
	TargetBranch string
}

func addSelectionFlags(fs *pflag.FlagSet, s *selection) {
	fs.StringArrayVarP(&s.Libraries, "library", "l", nil, "build only this library (repeatable)")
	fs.StringArrayVar(&s.Versions, "version", nil, "build only versions matching this regex, dots are literal (repeatable)")
	fs.StringArrayVar(&s.Constraints, "constraint", nil, "build only versions satisfying this semver constraint (repeatable)")
	fs.StringVarP(&s.Registry, "deploy", "d", "", "registry prefix to tag and push to, e.g. ghcr.io/acme/ (empty: no push)")
	fs.BoolVar(&s.Changed, "changed", false, "build only libraries with changes relative to the target branch")
	fs.StringVar(&s.TargetBranch, "target-branch", "", "branch to diff against for --changed (default: auto-detect)")
}

// runPlan is the expanded, validated work for one invocation.
type runPlan struct {
	Libraries []config.NamedLibrary
	Tasks     []build.Task
	Warnings  []string
}

// resolvePlan loads the selected libraries and expands them into tasks.
// Configuration problems are returned as errors before anything runs.
func resolvePlan(ctx context.Context, env *runEnv, sel selection) (*runPlan, error) {
	names, err := env.Index.Libraries(env.Set)
	if err != nil {
		return nil, err
	}

	plan := &runPlan{}
	selected, unknown := config.SelectLibraries(names, sel.Libraries)
	for _, u := range unknown {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("library %q is not in set %q", u, env.Set))
	}

	if sel.Changed {
		d := &delta.Delta{RootDir: env.Root, TargetBranch: sel.TargetBranch, Logger: env.Logger}
		selected, err = d.ChangedLibraries(ctx, env.Root, selected)
		if err != nil {
			return nil, err
		}
	}

	plan.Libraries, err = config.LoadLibraries(env.Root, selected)
	if err != nil {
		return nil, err
	}
	for _, l := range plan.Libraries {
		for _, w := range l.Warnings {
			plan.Warnings = append(plan.Warnings, l.Name+": "+w)
		}
	}

	filter, err := build.NewVersionFilter(sel.Versions, sel.Constraints)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}

	exp := build.NewExpander(sel.Registry, build.WithVersionFilter(filter))
	plan.Tasks = exp.ExpandAll(plan.Libraries)

	warnings, err := build.CheckTasks(plan.Tasks, plan.Libraries)
	plan.Warnings = append(plan.Warnings, warnings...)
	if err != nil {
		return nil, err
	}

	warnings, err = build.Preflight(env.Root, plan.Tasks)
	plan.Warnings = append(plan.Warnings, warnings...)
	if err != nil {
		return nil, err
	}

	return plan, nil
}

// renderPlan writes the Plan section.
func renderPlan(w io.Writer, plan *runPlan, sel selection, extra []output.KV, color bool) {
	sec := output.NewSection(w, "Plan", 0, color)
	for _, l := range plan.Libraries {
		n := 0
		for _, t := range plan.Tasks {
			if t.Library == l.Name {
				n++
			}
		}
		sec.KV(l.Name, fmt.Sprintf("%d group(s), %d image(s)", len(l.Config.BuildGroups), n))
	}
	if len(plan.Libraries) > 0 {
		sec.Separator()
	}
	sec.KV("images", fmt.Sprintf("%d", len(plan.Tasks)))
	if sel.Registry != "" {
		sec.KV("registry", sel.Registry)
	} else {
		sec.KV("registry", "(local only, no push)")
	}
	for _, kv := range extra {
		sec.KV(kv.Key, kv.Value)
	}
	for _, warn := range plan.Warnings {
		sec.Warn(warn)
	}
	sec.Close()
}
