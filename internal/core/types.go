// Package core implements the inspection repository: shape repair on read,
// transient stripping on write, the legacy-store migration, and the
// save-and-generate report workflow.
package core

import (
	"context"
	"time"

	"autoinspect/pkg/domain"
)

type (
	// Inspection aliases domain.Inspection.
	Inspection = domain.Inspection
	// Vehicle aliases domain.Vehicle.
	Vehicle = domain.Vehicle
	// Photo aliases domain.Photo.
	Photo = domain.Photo
	// PhotoCategory aliases domain.PhotoCategory.
	PhotoCategory = domain.PhotoCategory
	// SavedInspection aliases domain.SavedInspection.
	SavedInspection = domain.SavedInspection
	// Result aliases domain.Result.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
)

// Logger captures the leveled logging surface the service depends on. It is
// satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// MetricsRecorder observes service operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span started by a Tracer.
type TraceSpan interface {
	End(err error)
}
