package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prereg/internal/blob"
	"prereg/internal/inference"
	"prereg/internal/normalize"
	"prereg/internal/prompt"
	"prereg/internal/registry"
	"prereg/pkg/domain"
)

// RegisterRequest describes one registration.
type RegisterRequest struct {
	Config   domain.ExperimentConfig
	Model    string
	SaveToDB bool
}

// RegisterResult is what a registration produced.
type RegisterResult struct {
	Document   domain.RegistrationDocument
	Artifact   blob.Info
	Excluded   int
	Advisories []normalize.Advisory
	// Record is set when the document was saved to the datastore.
	Record *registry.Record
	// Warnings are datastore failures that did not abort the phase.
	Warnings []string
}

// Register selects the applicable questions, asks the model for predictions,
// and archives the registration document. With SaveToDB the document is also
// upserted into pre_registrations; failures there are warnings.
func (p *Pipeline) Register(ctx context.Context, req RegisterRequest) (res RegisterResult, err error) {
	start := time.Now()
	defer p.observe(ctx, PhaseRegister, start, &err)

	if req.SaveToDB {
		if err := p.requireDatastore(); err != nil {
			return RegisterResult{}, err
		}
	}
	questions, excluded, err := p.catalog.Applicable(req.Config.AgentCount)
	if err != nil {
		return RegisterResult{}, err
	}
	p.logger.Info("research questions selected",
		zap.String("catalog_version", p.catalog.Version),
		zap.Int("agents", req.Config.AgentCount),
		zap.Int("applicable", len(questions)),
		zap.Int("excluded", excluded))

	resp, err := p.inference.Complete(ctx, inference.Request{
		Model:       req.Model,
		System:      prompt.RegistrationSystem,
		Prompt:      prompt.Registration(req.Config, questions),
		Temperature: RegistrationTemperature,
		MaxTokens:   inference.DefaultMaxTokens,
	})
	if err != nil {
		return RegisterResult{}, err
	}
	model := req.Model
	if model == "" {
		model = resp.Model
	}

	doc, advisories, err := normalize.AssembleRegistration(normalize.RegistrationInput{
		CreatedAt:      p.now(),
		ModelID:        model,
		CatalogVersion: p.catalog.Version,
		Config:         req.Config,
		Questions:      questions,
	}, resp.Content)
	if err != nil {
		return RegisterResult{}, err
	}
	p.logAdvisories(PhaseRegister, advisories)

	info, err := p.archive.SaveRegistration(ctx, doc)
	if err != nil {
		return RegisterResult{}, err
	}
	p.logger.Info("registration saved", zap.String("key", info.Key), zap.Int("predictions", len(doc.Predictions)))

	res = RegisterResult{Document: doc, Artifact: info, Excluded: excluded, Advisories: advisories}
	if req.SaveToDB {
		rec, warning := p.saveRegistration(ctx, doc)
		res.Record = rec
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
	}
	return res, nil
}

func (p *Pipeline) saveRegistration(ctx context.Context, doc domain.RegistrationDocument) (*registry.Record, string) {
	ds, err := p.openDatastore(ctx)
	if err != nil {
		p.logger.Warn("skipping database save", zap.Error(err))
		return nil, "failed to save to database: " + err.Error()
	}
	defer func() { _ = ds.Close() }()

	repo := registry.New(ds)
	if err := repo.EnsureSchema(ctx); err != nil {
		p.logger.Warn("skipping database save", zap.Error(err))
		return nil, "failed to save to database: " + err.Error()
	}
	rec, err := repo.Save(ctx, doc)
	if err != nil {
		p.logger.Warn("database save failed", zap.Error(err))
		return nil, "failed to save to database: " + err.Error()
	}
	p.logger.Info("registration stored", zap.String("id", rec.ID), zap.Bool("created", rec.Created))
	return &rec, ""
}
