package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/imagefreight/src/build"
	"github.com/sofmeright/imagefreight/src/delta"
	"github.com/sofmeright/imagefreight/src/executor"
	"github.com/sofmeright/imagefreight/src/output"
	"github.com/sofmeright/imagefreight/src/report"
	"github.com/sofmeright/imagefreight/src/version"
)

// buildOptions are the run-level options of the build command.
type buildOptions struct {
	selection
	Parallel int
	Force    bool
	Docker   string
	LogDir   string
	JUnitDir string
	Color    bool
	Verbose  bool
}

var buildOpts buildOptions

// newRunner is swapped out by tests.
var newRunner = func() build.Runner { return build.ExecRunner{} }

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build (and optionally push) every image of the selected libraries",
	Long: `Expand the selected libraries into one image per build group, version
and instance, then build them with docker in parallel.

Images that already exist locally are skipped unless --force-rebuild is set.
With --deploy, successful builds are pushed under the given registry prefix.
Exits non-zero if no image matched the selection or any build or push failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := buildOpts
		opts.Color = output.UseColor()
		opts.Verbose = verbose
		return runBuild(cmd.Context(), cmd.OutOrStdout(), currentEnv(), opts)
	},
}

func init() {
	f := buildCmd.Flags()
	addSelectionFlags(f, &buildOpts.selection)
	f.IntVarP(&buildOpts.Parallel, "parallel", "p", executor.DefaultWidth(), "number of parallel docker builds")
	f.BoolVarP(&buildOpts.Force, "force-rebuild", "f", false, "build images even if they already exist")
	f.StringVar(&buildOpts.Docker, "docker", build.DefaultDocker, "docker-compatible CLI to invoke")
	f.StringVar(&buildOpts.LogDir, "log-dir", "", "directory for "+report.SucceededLog+" and "+report.FailedLog+" (default: library root)")
	f.StringVar(&buildOpts.JUnitDir, "junit", "", "write a JUnit report to this directory")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(ctx context.Context, w io.Writer, env *runEnv, opts buildOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	color := opts.Color
	pipelineStart := time.Now()

	sha, branch := (&delta.Delta{RootDir: env.Root}).Head()
	output.Banner(w, output.NewBannerInfo(version.Version, sha, branch), color)
	output.ContextBlock(w, output.ContextKV())

	// --- Plan ---
	output.SectionStartCollapsed(w, "if_plan", "Plan")
	plan, err := resolvePlan(ctx, env, opts.selection)
	if err != nil {
		output.SectionEnd(w, "if_plan")
		return err
	}

	width := executor.EffectiveWidth(opts.Parallel)
	renderPlan(w, plan, opts.selection, []output.KV{
		{Key: "parallel", Value: strconv.Itoa(width)},
		{Key: "force", Value: strconv.FormatBool(opts.Force)},
	}, color)
	output.SectionEnd(w, "if_plan")

	if len(plan.Tasks) == 0 {
		output.Line(w, output.LevelError, "No images found that match your request...", color)
		return executor.ErrNoTasks
	}

	// --- Build ---
	tail := 0
	if opts.Verbose {
		tail = 20
	}
	rep := report.New(w, len(plan.Tasks), report.WithColor(color), report.WithOutputTail(tail))
	logDir := opts.LogDir
	if logDir == "" {
		logDir = env.Root
	}
	if err := rep.OpenLogs(logDir); err != nil {
		return err
	}
	defer func() {
		if err := rep.Close(); err != nil {
			env.Logger.Warn("failed to close outcome logs", "dir", logDir, "error", err)
		}
	}()

	policy := &build.Policy{
		Runner:   newRunner(),
		Commands: build.Commands{Docker: opts.Docker, Dir: env.Root},
		Force:    opts.Force,
		Push:     opts.Registry != "",
		Logger:   env.Logger,
	}
	ex := executor.New(width,
		executor.WithLogger(env.Logger),
		executor.WithObserver(func(r executor.Result) {
			rep.Record(r.Task, r.Outcome)
		}),
	)

	output.SectionStart(w, "if_build", "Build")
	fmt.Fprintln(w)
	ex.Run(ctx, plan.Tasks, policy.Handle)
	output.SectionEnd(w, "if_build")

	// --- Summary ---
	elapsed := time.Since(pipelineStart)
	summary := rep.Summary()
	summary.Render(w, elapsed, color)

	if opts.JUnitDir != "" {
		if err := rep.WriteJUnit(opts.JUnitDir, elapsed); err != nil {
			env.Logger.Warn("failed to write junit report", "error", err)
		}
	}

	return summary.Err()
}
