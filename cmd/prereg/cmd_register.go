package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"prereg/internal/config"
	"prereg/internal/format"
	"prereg/internal/inference"
	"prereg/internal/pipeline"
	"prereg/pkg/domain"
)

type registerFlags struct {
	inferenceFlags
	configPath string
	agents     int
	ticks      int
}

func newRegisterCmd(a *app) *cobra.Command {
	var flags registerFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Generate and archive predictions before a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRegister(cmd, a, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "Experiment YAML (defaults apply when omitted)")
	f.IntVar(&flags.agents, "agents", 0, "Number of agents in the run (required)")
	f.IntVar(&flags.ticks, "ticks", 0, "Number of ticks in the run (required)")
	flags.bind(cmd)

	_ = cmd.MarkFlagRequired("agents")
	_ = cmd.MarkFlagRequired("ticks")
	return cmd
}

func runRegister(cmd *cobra.Command, a *app, flags registerFlags) error {
	var (
		cfg domain.ExperimentConfig
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadExperiment(flags.configPath, flags.agents, flags.ticks)
	} else {
		cfg, err = config.ParseExperiment(nil, flags.agents, flags.ticks)
	}
	if err != nil {
		return err
	}

	start := time.Now()
	s, err := a.open(cmd.Context(), flags.inferenceFlags, inference.RegistrationSiteName)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.pipeline.Register(cmd.Context(), pipeline.RegisterRequest{
		Config:   cfg,
		Model:    flags.model,
		SaveToDB: flags.saveToDB,
	})
	if err != nil {
		return err
	}
	printRegistration(cmd.OutOrStdout(), res, time.Since(start))
	return nil
}

func printRegistration(w io.Writer, res pipeline.RegisterResult, elapsed time.Duration) {
	doc := res.Document
	_, _ = fmt.Fprintf(w, "Pre-registration saved: %s\n", res.Artifact.Location)
	_, _ = fmt.Fprintf(w, "Model: %s\n", doc.ModelID)
	_, _ = fmt.Fprintf(w, "Questions: %d applicable, %d excluded at %d agents\n",
		len(doc.ApplicableQuestions), res.Excluded, doc.ExperimentConfig.AgentCount)
	_, _ = fmt.Fprintf(w, "Elapsed: %s\n", format.FmtDuration(elapsed))
	if res.Record != nil {
		state := "stored"
		if !res.Record.Created {
			state = "already stored"
		}
		_, _ = fmt.Fprintf(w, "Database record: %s (%s)\n", res.Record.ID, state)
	}

	tb := format.NewTable(format.ASCII)
	tb.Header("Question", "Confidence", "Ticks", "Prediction")
	tb.Columns(format.ColumnConfig{Number: 4, MaxWidth: 70})
	for _, p := range doc.Predictions {
		ticks := "-"
		if p.ExpectedTickRange != nil {
			ticks = p.ExpectedTickRange.String()
		}
		tb.Row(p.QuestionID, p.Confidence, ticks, format.Truncate(format.OneLine(p.Prediction), 140))
	}
	_, _ = fmt.Fprintf(w, "\n%s\n", tb.String())
	printNotes(w, len(res.Advisories), res.Warnings)
}

func printNotes(w io.Writer, advisories int, warnings []string) {
	if advisories > 0 {
		_, _ = fmt.Fprintf(w, "\n%d normalization advisories (see log)\n", advisories)
	}
	if len(warnings) > 0 {
		_, _ = fmt.Fprintf(w, "\nWarnings:\n  %s\n", strings.Join(warnings, "\n  "))
	}
}
