// Package pipeline runs the two protocol phases end to end: registration
// before a simulation run and comparison after it.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prereg/internal/archive"
	"prereg/internal/catalog"
	"prereg/internal/inference"
	"prereg/internal/logging"
	"prereg/internal/normalize"
	"prereg/internal/storage"
	"prereg/pkg/domain"
)

// Sampling parameters per phase.
const (
	RegistrationTemperature = 0.3
	ComparisonTemperature   = 0.2
)

// Phase names used for metrics and logs.
const (
	PhaseRegister = "register"
	PhaseCompare  = "compare"
)

// DatastoreOpener connects to the datastore. It is called at most once per
// phase and the caller closes what it returns.
type DatastoreOpener func(ctx context.Context) (*storage.Datastore, error)

// PhaseObserver receives per-phase timings and advisory counts.
type PhaseObserver interface {
	Observe(ctx context.Context, phase string, success bool, duration time.Duration)
	AddAdvisories(phase string, n int)
}

// Deps are the collaborators of a Pipeline. Catalog, Inference and Archive
// are required; OpenDatastore is nil when no datastore is configured.
type Deps struct {
	Catalog       catalog.Catalog
	Inference     inference.Completer
	Archive       *archive.Archive
	OpenDatastore DatastoreOpener
	Observer      PhaseObserver
	Logger        *zap.Logger
	Now           func() time.Time
}

// Pipeline executes registration and comparison.
type Pipeline struct {
	catalog       catalog.Catalog
	inference     inference.Completer
	archive       *archive.Archive
	openDatastore DatastoreOpener
	observer      PhaseObserver
	logger        *zap.Logger
	now           func() time.Time
}

// New builds a Pipeline from deps.
func New(deps Deps) *Pipeline {
	p := &Pipeline{
		catalog:       deps.Catalog,
		inference:     deps.Inference,
		archive:       deps.Archive,
		openDatastore: deps.OpenDatastore,
		observer:      deps.Observer,
		logger:        logging.OrNop(deps.Logger).Named("pipeline"),
		now:           deps.Now,
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

func (p *Pipeline) observe(ctx context.Context, phase string, start time.Time, err *error) {
	if p.observer != nil {
		p.observer.Observe(ctx, phase, *err == nil, time.Since(start))
	}
}

func (p *Pipeline) logAdvisories(phase string, advisories []normalize.Advisory) {
	for _, a := range advisories {
		p.logger.Warn("normalization advisory", zap.String("phase", phase), zap.String("question_id", a.QuestionID), zap.String("advisory", a.Message))
	}
	if p.observer != nil {
		p.observer.AddAdvisories(phase, len(advisories))
	}
}

func (p *Pipeline) requireDatastore() error {
	if p.openDatastore == nil {
		return domain.ConfigError{Key: "DATABASE_URL", Reason: "no datastore configured"}
	}
	return nil
}
