package domain

import "context"

// Transaction exposes the record operations a persistence implementation must
// support within an atomic scope.
type Transaction interface {
	// PutInspection inserts or replaces a record keyed by its ID.
	PutInspection(SavedInspection) (SavedInspection, error)
	// DeleteInspection removes a record, reporting whether it existed.
	DeleteInspection(id string) (bool, error)
	// ReplaceInspections atomically swaps the entire inspection set.
	ReplaceInspections([]SavedInspection) error
	// SetPreference stores a scalar preference value.
	SetPreference(key, value string) error
	FindInspection(id string) (SavedInspection, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// callers that only inspect state.
type TransactionView interface {
	ListInspections() []SavedInspection
	FindInspection(id string) (SavedInspection, bool)
	Preference(key string) (string, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetInspection(id string) (SavedInspection, bool)
	ListInspections() []SavedInspection
	Preference(key string) (string, bool)
}
