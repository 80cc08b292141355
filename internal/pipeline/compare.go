package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prereg/internal/archive"
	"prereg/internal/blob"
	"prereg/internal/inference"
	"prereg/internal/normalize"
	"prereg/internal/outcome"
	"prereg/internal/prompt"
	"prereg/internal/registry"
	"prereg/internal/report"
	"prereg/internal/storage"
	"prereg/pkg/domain"
)

// CompareRequest describes one comparison.
type CompareRequest struct {
	// Predictions is a local path or artifact key of a registration document.
	Predictions string
	RunID       string
	Model       string
	// Output is a local path for the report, written with its .json sibling
	// in place of the timestamped artifacts and replaced on every run.
	Output   string
	SaveToDB bool
}

// CompareResult is what a comparison produced.
type CompareResult struct {
	Registration     domain.RegistrationDocument
	Document         domain.ComparisonDocument
	Report           string
	ReportArtifact   blob.Info
	DocumentArtifact blob.Info
	Advisories       []normalize.Advisory
	// Linked counts pre_registrations rows updated with the comparison.
	Linked   int64
	Warnings []string
}

// Compare loads a registration, extracts the run's outcomes, asks the model
// for verdicts, and archives the report and comparison document. With
// SaveToDB the matching pre_registrations rows are linked to the run.
func (p *Pipeline) Compare(ctx context.Context, req CompareRequest) (res CompareResult, err error) {
	start := time.Now()
	defer p.observe(ctx, PhaseCompare, start, &err)

	if err := archive.CheckOutput(req.Output); err != nil {
		return CompareResult{}, err
	}
	if err := p.requireDatastore(); err != nil {
		return CompareResult{}, err
	}
	reg, source, err := p.archive.LoadRegistration(ctx, req.Predictions)
	if err != nil {
		return CompareResult{}, err
	}
	if len(reg.Predictions) == 0 {
		return CompareResult{}, domain.ConfigError{Key: "predictions", Reason: "no predictions found in " + source}
	}
	p.logger.Info("registration loaded", zap.String("source", source), zap.Int("predictions", len(reg.Predictions)))

	ds, err := p.openDatastore(ctx)
	if err != nil {
		return CompareResult{}, err
	}
	defer func() { _ = ds.Close() }()

	snapshot, err := outcome.NewExtractor(ds, p.logger).Extract(ctx, req.RunID)
	if err != nil {
		return CompareResult{}, err
	}
	text, err := prompt.Comparison(reg.Predictions, snapshot)
	if err != nil {
		return CompareResult{}, err
	}
	resp, err := p.inference.Complete(ctx, inference.Request{
		Model:       req.Model,
		System:      prompt.ComparisonSystem,
		Prompt:      text,
		Temperature: ComparisonTemperature,
		MaxTokens:   inference.DefaultMaxTokens,
	})
	if err != nil {
		return CompareResult{}, err
	}
	model := req.Model
	if model == "" {
		model = resp.Model
	}

	doc, advisories, err := normalize.AssembleComparison(normalize.ComparisonInput{
		CreatedAt:         p.now(),
		PredictionsSource: source,
		RunID:             snapshot.Run.ID,
		ModelID:           model,
		Registration:      reg,
		Outcomes:          snapshot,
	}, resp.Content)
	if err != nil {
		return CompareResult{}, err
	}
	p.logAdvisories(PhaseCompare, advisories)

	rendered := report.Render(doc, reg)
	reportInfo, docInfo, err := p.archive.SaveComparison(ctx, doc, rendered, req.Output)
	if err != nil {
		return CompareResult{}, err
	}
	p.logger.Info("comparison saved", zap.String("report", reportInfo.Key), zap.String("document", docInfo.Key))

	res = CompareResult{
		Registration:     reg,
		Document:         doc,
		Report:           rendered,
		ReportArtifact:   reportInfo,
		DocumentArtifact: docInfo,
		Advisories:       advisories,
	}
	if req.SaveToDB {
		res.Linked, res.Warnings = p.linkComparison(ctx, ds, reg, doc)
	}
	return res, nil
}

func (p *Pipeline) linkComparison(ctx context.Context, ds *storage.Datastore, reg domain.RegistrationDocument, doc domain.ComparisonDocument) (int64, []string) {
	n, err := registry.New(ds).LinkComparison(ctx, reg, doc)
	if err != nil {
		p.logger.Warn("database update failed", zap.Error(err))
		return 0, []string{"failed to update database: " + err.Error()}
	}
	if n == 0 {
		p.logger.Info("no matching pre_registrations record found to update")
		return 0, nil
	}
	p.logger.Info("pre_registrations record linked", zap.Int64("rows", n))
	return n, nil
}
