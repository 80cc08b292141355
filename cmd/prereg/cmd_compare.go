package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"prereg/internal/format"
	"prereg/internal/inference"
	"prereg/internal/pipeline"
	"prereg/internal/report"
)

type compareFlags struct {
	inferenceFlags
	predictions string
	runID       string
	output      string
}

func newCompareCmd(a *app) *cobra.Command {
	var flags compareFlags
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Score archived predictions against a finished run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompare(cmd, a, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.predictions, "predictions", "", "Registration document: local path or artifact key (required)")
	f.StringVar(&flags.runID, "run-id", "", "Simulation run UUID (required)")
	f.StringVar(&flags.output, "output", "", "Local path for the Markdown report; the JSON document is written beside it and both are replaced on rerun")
	flags.bind(cmd)

	_ = cmd.MarkFlagRequired("predictions")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}

func runCompare(cmd *cobra.Command, a *app, flags compareFlags) error {
	start := time.Now()
	s, err := a.open(cmd.Context(), flags.inferenceFlags, inference.ComparisonSiteName)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.pipeline.Compare(cmd.Context(), pipeline.CompareRequest{
		Predictions: flags.predictions,
		RunID:       flags.runID,
		Model:       flags.model,
		Output:      flags.output,
		SaveToDB:    flags.saveToDB,
	})
	if err != nil {
		return err
	}
	printComparison(cmd.OutOrStdout(), res, flags.saveToDB, time.Since(start))
	return nil
}

func printComparison(w io.Writer, res pipeline.CompareResult, saveToDB bool, elapsed time.Duration) {
	doc := res.Document
	_, _ = fmt.Fprintf(w, "Comparison report: %s\n", res.ReportArtifact.Location)
	_, _ = fmt.Fprintf(w, "Comparison data: %s\n", res.DocumentArtifact.Location)
	_, _ = fmt.Fprintf(w, "Run: %s (%s)\n", doc.RunID, doc.Outcomes.Run.Status)
	_, _ = fmt.Fprintf(w, "Elapsed: %s\n\n", format.FmtDuration(elapsed))

	for _, c := range doc.Comparison.Comparisons {
		surprise := c.SurpriseFactor.String()
		if surprise == "" {
			surprise = "?"
		}
		verdict := c.Verdict
		if verdict == "" {
			verdict = "unknown"
		}
		_, _ = fmt.Fprintf(w, "  [%s] %s (surprise: %s/5)\n", strings.ToUpper(verdict), c.QuestionID, surprise)
	}

	tb := format.NewTable(format.ASCII)
	tb.Header("Verdict", "Count")
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	for _, vc := range report.Tally(doc.Comparison.Comparisons) {
		tb.Row(vc.Verdict, vc.Count)
	}
	_, _ = fmt.Fprintf(w, "\n%s\n", tb.String())

	if saveToDB && len(res.Warnings) == 0 {
		if res.Linked == 0 {
			_, _ = fmt.Fprintln(w, "\nNo matching pre_registrations record found to update.")
		} else {
			_, _ = fmt.Fprintf(w, "\nLinked %d pre_registrations record(s) to run %s.\n", res.Linked, doc.RunID)
		}
	}
	printNotes(w, len(res.Advisories), res.Warnings)
}
