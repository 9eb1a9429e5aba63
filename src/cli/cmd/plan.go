package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sofmeright/imagefreight/src/build"
	"github.com/sofmeright/imagefreight/src/executor"
	"github.com/sofmeright/imagefreight/src/output"
)

var (
	planSel      selection
	planCommands bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the images a build would produce, without building",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlanCmd(cmd.Context(), cmd.OutOrStdout(), currentEnv(), planSel, planCommands, output.UseColor())
	},
}

func init() {
	addSelectionFlags(planCmd.Flags(), &planSel)
	planCmd.Flags().BoolVar(&planCommands, "commands", false, "print the docker commands of every image")

	rootCmd.AddCommand(planCmd)
}

func runPlanCmd(ctx context.Context, w io.Writer, env *runEnv, sel selection, commands bool, color bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	plan, err := resolvePlan(ctx, env, sel)
	if err != nil {
		return err
	}
	renderPlan(w, plan, sel, nil, color)

	if len(plan.Tasks) == 0 {
		output.Line(w, output.LevelError, "No images found that match your request...", color)
		return executor.ErrNoTasks
	}

	total := len(plan.Tasks)
	sec := output.NewSection(w, "Images", 0, color)
	cmds := build.Commands{Dir: env.Root}
	for _, t := range plan.Tasks {
		tags := t.Tag
		if t.TagLatest {
			tags += ", " + output.Bold("latest", color)
		}
		sec.Row("%*d/%d  %-44s %s", len(fmt.Sprint(total)), t.Seq, total, tags, output.Dimmed(t.Dockerfile, color))
		if commands {
			sec.Row("      %s", cmds.Build(t).String())
			if sel.Registry != "" {
				for _, inv := range cmds.Push(t) {
					sec.Row("      %s", inv.String())
				}
			}
		}
	}
	sec.Close()

	if len(plan.Warnings) > 0 {
		fmt.Fprintf(w, "\n    %d warning(s): %s\n", len(plan.Warnings), strings.Join(plan.Warnings, "; "))
	}
	return nil
}
