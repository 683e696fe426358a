package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow"
	"github.com/dshills/taskflow-go/internal/demo"
)

func newRunCommand(c *cli) *cobra.Command {
	var (
		values    []int
		threshold int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the statistics graph",
		Long: `Run the statistics graph:

  seed -> parallel(sum -> max, even) -> b -> if sum > threshold: alert else normal

and print the final results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, c.cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeEnv(e)

			entry := demo.Statistics(demo.StatisticsOptions{
				Values:     values,
				Threshold:  threshold,
				Middleware: append(e.middleware(), e.cached(true)...),
			})
			return runFlow(ctx, cmd.OutOrStdout(), entry, e)
		},
	}

	cmd.Flags().IntSliceVar(&values, "values", []int{2, 5, 8, 13, 21}, "numbers to analyse")
	cmd.Flags().IntVar(&threshold, "threshold", 40, "alert when the sum exceeds this")
	return cmd
}

func newPipelineCommand(c *cli) *cobra.Command {
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run the processing pipeline",
		Long: `Run the processing pipeline:

  gen -> parallel(proc1 -> sum1, proc2 -> sum2) -> out

and print the final results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, c.cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeEnv(e)

			mws := e.middleware()
			entry := demo.Pipeline(demo.PipelineOptions{
				Delay:               delay,
				GeneratorMiddleware: mws,
				Middleware:          append(mws, e.cached(false)...),
			})
			return runFlow(ctx, cmd.OutOrStdout(), entry, e)
		},
	}

	cmd.Flags().DurationVar(&delay, "delay", 0, "simulated work per node")
	return cmd
}

func runFlow(ctx context.Context, out io.Writer, entry flow.Step, e *env) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f, err := flow.New(entry, e.options...)
	if err != nil {
		return err
	}
	results, runErr := f.Run(ctx)
	if err := printResults(out, results); err != nil {
		return err
	}
	return runErr
}

func printResults(w io.Writer, results *flow.Results) error {
	for _, tag := range results.Tags() {
		value, _ := results.Get(tag)
		producer, _ := results.Producer(tag)
		encoded, err := json.Marshal(value)
		if err != nil {
			encoded = []byte(fmt.Sprintf("%q", fmt.Sprint(value)))
		}
		if _, err := fmt.Fprintf(w, "%s = %s (%s)\n", tag, encoded, producer); err != nil {
			return err
		}
	}
	return nil
}

func closeEnv(e *env) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Close(ctx); err != nil {
		e.logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
