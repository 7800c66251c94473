package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/wdm0006/nimbus/internal/service"
	"github.com/wdm0006/nimbus/pkg/forecast"
	"github.com/wdm0006/nimbus/pkg/pipeline"
	"github.com/wdm0006/nimbus/pkg/profile"
	"github.com/wdm0006/nimbus/pkg/registry"
)

var (
	inputPath  string
	outputPath string
	stepsPath  string
	horizon    int
	topK       int
)

func newExecutor(obs pipeline.Observer) *pipeline.Executor {
	reg := registry.New(registry.Options{FillValue: cfg.FillValue, Logger: logger})
	return pipeline.New(reg, pipeline.Options{Logger: logger, Observer: obs})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply a steps file to a table and write the cleaned result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := loadSteps(stepsPath)
		if err != nil {
			return err
		}
		_, err = runSteps(cmd.Context(), cmd.ErrOrStderr(), ops, inputPath, outputPath)
		return err
	},
}

// runSteps applies ops to the table at in, best effort, writes the result to
// out and a per-step report to w. It returns the number of skipped steps.
func runSteps(ctx context.Context, w io.Writer, ops []registry.Operation, in, out string) (int, error) {
	f, err := service.LoadTable(in, logger)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	res, summary, outcomes := newExecutor(nil).RunDetailed(ctx, ops, f)
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	if err := writeTable(out, res); err != nil {
		return failed, err
	}
	logger.Info("run finished",
		"rows_in", f.Rows(), "rows_out", res.Rows(),
		"steps", len(ops), "failed", failed, "duration", time.Since(start))
	return failed, printSummary(w, summary, outcomes)
}

func printSummary(w io.Writer, s pipeline.Summary, outcomes []pipeline.Outcome) error {
	for _, o := range outcomes {
		status := "ok"
		if o.Err != nil {
			status = "skipped: " + o.Err.Error()
		}
		desc, _ := s.Get(o.Operation)
		if _, err := fmt.Fprintf(w, "%d. %s (%d -> %d rows) %s\n   %s\n", o.Step+1, o.Operation, o.RowsBefore, o.RowsAfter, status, desc); err != nil {
			return err
		}
	}
	return nil
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Trace a steps file over a table and print the rows as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := loadSteps(stepsPath)
		if err != nil {
			return err
		}
		f, err := service.LoadTable(inputPath, logger)
		if err != nil {
			return err
		}
		p := newExecutor(nil).Trace(cmd.Context(), ops, f)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"preview": p}); err != nil {
			return err
		}
		if p.Failed() {
			return p.Err
		}
		return nil
	},
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Fit a linear trend over date/value columns and print daily predictions",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := service.LoadTable(inputPath, logger)
		if err != nil {
			return err
		}
		h := horizon
		if h <= 0 {
			h = cfg.ForecastHorizon
		}
		res, err := forecast.Forecast(f, h)
		if err != nil {
			return err
		}
		for _, p := range res {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%g\n", p.Date, p.Value)
		}
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print a column profile of a table",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := service.LoadTable(inputPath, logger)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), profile.Of(f, topK).Text())
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, previewCmd, forecastCmd, profileCmd} {
		c.Flags().StringVarP(&inputPath, "input", "i", "", "input table (.csv, .csv.gz, .jsonl, .parquet)")
		_ = c.MarkFlagRequired("input")
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{runCmd, previewCmd} {
		c.Flags().StringVarP(&stepsPath, "steps", "s", "", "pipeline steps file (.yaml, .toml or .json)")
		_ = c.MarkFlagRequired("steps")
	}
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "-", "output table; format follows the extension, - for CSV on stdout")
	forecastCmd.Flags().IntVar(&horizon, "horizon", 0, "days to predict (default from config)")
	profileCmd.Flags().IntVar(&topK, "top", profile.DefaultTopK, "most frequent values listed per text column")
}
