package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/taskflow-go/flow"
	"github.com/dshills/taskflow-go/internal/demo"
)

func newGraphCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "graph [statistics|pipeline]",
		Short:     "Print the structure of a demo graph",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"statistics", "pipeline"},
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := demo.Statistics(demo.StatisticsOptions{Values: []int{}})
			if len(args) == 1 && args[0] == "pipeline" {
				entry = demo.Pipeline(demo.PipelineOptions{})
			}
			return render(cmd.OutOrStdout(), entry)
		},
	}
}

// render prints one line per step, indented by nesting depth.
func render(w io.Writer, entry flow.Step) error {
	return flow.Walk(entry, func(step flow.Step, depth int) error {
		line := fmt.Sprintf("%s%s", strings.Repeat("  ", depth), step.Kind())
		if id := step.ID(); id != "" {
			line += " " + id
		}
		if node, ok := step.(*flow.Node); ok {
			if in := node.Inputs(); len(in) > 0 {
				line += fmt.Sprintf(" in=%v", in)
			}
			if out := node.Outputs(); len(out) > 0 {
				line += fmt.Sprintf(" out=%v", out)
			}
		}
		_, err := fmt.Fprintln(w, line)
		return err
	})
}
