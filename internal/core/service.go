package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"autoinspect/internal/blob"
	"autoinspect/pkg/domain"
)

// Preference keys stored alongside inspection records.
const (
	prefDefaultAgentName  = "default_agent_name"
	prefLegacyMigrated    = "legacy_migration_completed"
	prefLegacyMigratedVal = "true"
)

// Service is the repository boundary between raw storage records and the
// canonical entity shape. Reads repair shape drift, writes strip transient
// fields, and every hand-off is a deep copy.
type Service struct {
	store     PersistentStore
	artifacts blob.Store
	previews  *previewRegistry
	renderer  ReportRenderer
	logger    Logger
	clock     Clock
	metrics   MetricsRecorder
	tracer    Tracer
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger installs a logger; the default discards everything.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source for deterministic tests.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetrics installs a metrics recorder for operation outcomes.
func WithMetrics(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = recorder }
}

// WithTracer installs a tracer wrapping each operation in a span.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) { s.tracer = tracer }
}

// WithRenderer overrides the report renderer.
func WithRenderer(renderer ReportRenderer) ServiceOption {
	return func(s *Service) {
		if renderer != nil {
			s.renderer = renderer
		}
	}
}

// WithArtifactStore sets the store generated reports are written to.
// Defaults to an in-memory store until one is supplied.
func WithArtifactStore(store blob.Store) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.artifacts = store
		}
	}
}

// NewService constructs a service over the supplied persistent store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		artifacts: blob.NewMemory(),
		previews:  newPreviewRegistry(),
		logger:    noopLogger{},
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = defaultRenderer()
	}
	return s
}

// Store returns the underlying persistent store.
func (s *Service) Store() PersistentStore { return s.store }

// instrument wraps an operation in tracing, metrics, and error logging.
func (s *Service) instrument(ctx context.Context, op string, fn func(context.Context) error) error {
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
	}
	start := s.clock()
	err := fn(ctx)
	if s.metrics != nil {
		s.metrics.Observe(ctx, op, err == nil, s.clock().Sub(start))
	}
	if span != nil {
		span.End(err)
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err)
	}
	return err
}

// ListInspections returns every stored record with its shape repaired,
// sorted by inspection date descending.
func (s *Service) ListInspections(ctx context.Context) ([]SavedInspection, error) {
	var out []SavedInspection
	err := s.instrument(ctx, "list_inspections", func(context.Context) error {
		recs := s.store.ListInspections()
		out = make([]SavedInspection, 0, len(recs))
		for _, rec := range recs {
			out = append(out, repairRecord(rec))
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].InspectionDate.After(out[j].InspectionDate)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetInspection looks up a record by id, repaired. Absence is not an error.
func (s *Service) GetInspection(ctx context.Context, id string) (SavedInspection, bool, error) {
	var (
		out   SavedInspection
		found bool
	)
	err := s.instrument(ctx, "get_inspection", func(context.Context) error {
		rec, ok := s.store.GetInspection(id)
		if !ok {
			return nil
		}
		out = repairRecord(rec)
		found = true
		return nil
	})
	if err != nil {
		return SavedInspection{}, false, err
	}
	return out, found, nil
}

// SaveInspection strips transient fields from a deep copy of rec and writes
// it through the store. The caller's value is never mutated. Quota failures
// surface as *domain.QuotaExceededError.
func (s *Service) SaveInspection(ctx context.Context, rec SavedInspection) (Result, error) {
	var result Result
	err := s.instrument(ctx, "save_inspection", func(ctx context.Context) error {
		stored := stripForStorage(rec)
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.PutInspection(stored)
			return err
		})
		result = res
		return err
	})
	return result, err
}

// DeleteInspection removes a record, reporting whether it existed. Deleting
// an absent id is a no-op, not an error.
func (s *Service) DeleteInspection(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.instrument(ctx, "delete_inspection", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			deleted, err = tx.DeleteInspection(id)
			return err
		})
		return err
	})
	return deleted, err
}

// OverwriteAllInspections atomically replaces the whole record set. Each
// record is stripped the same way SaveInspection strips a single one.
func (s *Service) OverwriteAllInspections(ctx context.Context, recs []SavedInspection) (Result, error) {
	var result Result
	err := s.instrument(ctx, "overwrite_all_inspections", func(ctx context.Context) error {
		stored := make([]SavedInspection, 0, len(recs))
		for _, rec := range recs {
			stored = append(stored, stripForStorage(rec))
		}
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.ReplaceInspections(stored)
		})
		result = res
		return err
	})
	return result, err
}

// DefaultAgentName returns the stored agent-name preference, empty when unset.
func (s *Service) DefaultAgentName(ctx context.Context) (string, error) {
	var name string
	err := s.instrument(ctx, "default_agent_name", func(context.Context) error {
		name, _ = s.store.Preference(prefDefaultAgentName)
		return nil
	})
	return name, err
}

// SaveDefaultAgentName persists the agent-name preference.
func (s *Service) SaveDefaultAgentName(ctx context.Context, name string) error {
	return s.instrument(ctx, "save_default_agent_name", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.SetPreference(prefDefaultAgentName, name)
		})
		return err
	})
}

// NewInspection returns a blank working inspection: one blank vehicle, the
// current timestamp, and the agent field prefilled from the stored
// preference. The id stays empty until the first report generation.
func (s *Service) NewInspection(ctx context.Context) (Inspection, error) {
	agent, err := s.DefaultAgentName(ctx)
	if err != nil {
		return Inspection{}, fmt.Errorf("read agent preference: %w", err)
	}
	return Inspection{
		AgentName:      agent,
		InspectionDate: s.clock().UTC(),
		Vehicles:       []Vehicle{domain.NewVehicle()},
	}, nil
}
