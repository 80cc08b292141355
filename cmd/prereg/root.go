package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prereg/internal/archive"
	"prereg/internal/blob"
	"prereg/internal/catalog"
	"prereg/internal/config"
	"prereg/internal/inference"
	"prereg/internal/logging"
	"prereg/internal/metrics"
	"prereg/internal/pipeline"
	"prereg/internal/storage"
	"prereg/pkg/domain"
)

// version is set at build time via -ldflags.
var version = "dev"

// app carries what the subcommands share. Tests substitute env, now, logger
// and httpClient.
type app struct {
	env        config.Env
	now        func() time.Time
	logger     *zap.Logger
	httpClient *http.Client
	verbose    bool
	logFormat  string
}

// inferenceFlags are accepted by both phases.
type inferenceFlags struct {
	model           string
	apiURL          string
	saveToDB        bool
	metricsTextfile string
}

func (f *inferenceFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.model, "model", inference.DefaultModel, "Model identifier")
	fl.StringVar(&f.apiURL, "api-url", inference.DefaultBaseURL, "Chat-completions API base URL")
	fl.BoolVar(&f.saveToDB, "save-to-db", false, "Also persist to the datastore (requires DATABASE_URL)")
	fl.StringVar(&f.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "prereg",
		Short: "Pre-register predictions for a simulation run and compare them with its outcome",
		Long: "prereg asks a model to predict how a simulation will unfold before it runs,\n" +
			"then scores those predictions against what actually happened.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "json", "Log encoding on stderr: json or console")
	root.AddCommand(newRegisterCmd(a), newCompareCmd(a))
	return root
}

// session is one wired pipeline plus what must be flushed when it ends.
type session struct {
	pipeline *pipeline.Pipeline
	recorder *metrics.Recorder
	logger   *zap.Logger
	textfile string
}

// buildLogger returns the injected logger or one built from the log flags.
func (a *app) buildLogger() (*zap.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}
	opts := logging.Options{Verbose: a.verbose}
	switch a.logFormat {
	case "", "json":
	case "console":
		opts.Development = true
	default:
		return nil, domain.ConfigError{Key: "log-format", Reason: fmt.Sprintf("%q is not json or console", a.logFormat)}
	}
	return logging.New(opts)
}

// open validates every credential and setting the phase will need, then
// wires the pipeline. siteName is sent as the provider's X-Title. Nothing
// external is contacted here.
func (a *app) open(ctx context.Context, flags inferenceFlags, siteName string) (*session, error) {
	logger, err := a.buildLogger()
	if err != nil {
		return nil, err
	}

	apiKey, err := a.env.APIKey()
	if err != nil {
		return nil, err
	}
	artifacts, err := a.env.Artifacts()
	if err != nil {
		return nil, err
	}
	opener, err := a.datastoreOpener()
	if err != nil {
		return nil, err
	}
	store, err := blob.Open(ctx, artifacts)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()
	client, err := inference.New(inference.Config{
		APIKey:     apiKey,
		BaseURL:    flags.apiURL,
		SiteName:   siteName,
		HTTPClient: a.httpClient,
		Observer:   recorder,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	p := pipeline.New(pipeline.Deps{
		Catalog:       catalog.V1(),
		Inference:     client,
		Archive:       archive.New(store),
		OpenDatastore: opener,
		Observer:      recorder,
		Logger:        logger,
		Now:           a.now,
	})
	return &session{pipeline: p, recorder: recorder, logger: logger, textfile: flags.metricsTextfile}, nil
}

// datastoreOpener returns nil when DATABASE_URL is unset; the pipeline then
// refuses any phase that needs the datastore.
func (a *app) datastoreOpener() (pipeline.DatastoreOpener, error) {
	dsn, err := a.env.DatabaseURL()
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return nil, nil
	case err != nil:
		return nil, err
	}
	driver, err := a.env.StorageDriver()
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (*storage.Datastore, error) {
		return storage.Open(ctx, driver, dsn)
	}, nil
}

func (s *session) close() {
	if err := s.recorder.WriteTextfile(s.textfile); err != nil {
		s.logger.Warn("metrics textfile not written", zap.Error(err))
	}
	_ = s.logger.Sync()
}
