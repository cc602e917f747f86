// Package memory provides an in-memory implementation of the persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"autoinspect/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// SavedInspection aliases domain.SavedInspection for persistence operations.
	SavedInspection = domain.SavedInspection
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	inspections map[string]SavedInspection
	preferences map[string]string
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Inspections map[string]SavedInspection `json:"inspections"`
	Preferences map[string]string          `json:"preferences"`
}

func newMemoryState() memoryState {
	return memoryState{
		inspections: make(map[string]SavedInspection),
		preferences: make(map[string]string),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.inspections {
		cloned.inspections[k] = domain.CloneSavedInspection(v)
	}
	for k, v := range s.preferences {
		cloned.preferences[k] = v
	}
	return cloned
}

// Store provides an in-memory transactional store for inspection records.
type Store struct {
	mu         sync.RWMutex
	state      memoryState
	engine     *RulesEngine
	limitBytes int64
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{state: newMemoryState(), engine: engine}
}

// SetCapacityLimit bounds the serialized snapshot size; commits that would
// exceed it fail with domain.QuotaExceededError. Zero disables the limit.
func (s *Store) SetCapacityLimit(bytes int64) {
	s.mu.Lock()
	s.limitBytes = bytes
	s.mu.Unlock()
}

type transaction struct {
	state   *memoryState
	changes []Change
}

var _ Transaction = (*transaction)(nil)

type view struct {
	state *memoryState
}

var _ TransactionView = view{}
var _ domain.RuleView = view{}

// ListInspections returns all records within the snapshot.
func (v view) ListInspections() []SavedInspection {
	out := make([]SavedInspection, 0, len(v.state.inspections))
	for _, rec := range v.state.inspections {
		out = append(out, domain.CloneSavedInspection(rec))
	}
	return out
}

// FindInspection retrieves a record by ID from the snapshot.
func (v view) FindInspection(id string) (SavedInspection, bool) {
	rec, ok := v.state.inspections[id]
	if !ok {
		return SavedInspection{}, false
	}
	return domain.CloneSavedInspection(rec), true
}

// Preference returns a scalar preference value from the snapshot.
func (v view) Preference(key string) (string, bool) {
	val, ok := v.state.preferences[key]
	return val, ok
}

func (tx *transaction) record(change Change) {
	tx.changes = append(tx.changes, change)
}

// PutInspection inserts or replaces a record keyed by its ID.
func (tx *transaction) PutInspection(rec SavedInspection) (SavedInspection, error) {
	if rec.ID == "" {
		return SavedInspection{}, errEmptyID
	}
	var before any
	if prev, ok := tx.state.inspections[rec.ID]; ok {
		before = domain.CloneSavedInspection(prev)
	}
	stored := domain.CloneSavedInspection(rec)
	tx.state.inspections[rec.ID] = stored
	tx.record(Change{Entity: domain.EntityInspection, Action: domain.ActionPut, Before: before, After: domain.CloneSavedInspection(stored)})
	return domain.CloneSavedInspection(stored), nil
}

// DeleteInspection removes a record, reporting whether it existed.
func (tx *transaction) DeleteInspection(id string) (bool, error) {
	prev, ok := tx.state.inspections[id]
	if !ok {
		return false, nil
	}
	delete(tx.state.inspections, id)
	tx.record(Change{Entity: domain.EntityInspection, Action: domain.ActionDelete, Before: domain.CloneSavedInspection(prev)})
	return true, nil
}

// ReplaceInspections swaps the entire record set within the transaction.
func (tx *transaction) ReplaceInspections(recs []SavedInspection) error {
	next := make(map[string]SavedInspection, len(recs))
	after := make([]SavedInspection, 0, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			return errEmptyID
		}
		cloned := domain.CloneSavedInspection(rec)
		next[rec.ID] = cloned
		after = append(after, domain.CloneSavedInspection(cloned))
	}
	tx.state.inspections = next
	tx.record(Change{Entity: domain.EntityInspection, Action: domain.ActionReplaceAll, After: after})
	return nil
}

// SetPreference stores a scalar preference value.
func (tx *transaction) SetPreference(key, value string) error {
	if key == "" {
		return errEmptyKey
	}
	before := tx.state.preferences[key]
	tx.state.preferences[key] = value
	tx.record(Change{Entity: domain.EntityPreference, Action: domain.ActionPut, Before: before, After: value})
	return nil
}

// FindInspection retrieves a record by ID from the transaction state.
func (tx *transaction) FindInspection(id string) (SavedInspection, bool) {
	return view{state: tx.state}.FindInspection(id)
}

// RunInTransaction executes fn within a transactional copy of the store
// state. The copy is swapped in only when fn succeeds, rules pass, and the
// resulting snapshot fits the configured capacity.
func (s *Store) RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	tx := &transaction{state: &next}
	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &next}, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.limitBytes > 0 {
		size, err := snapshotSize(next)
		if err != nil {
			return Result{}, err
		}
		if size > s.limitBytes {
			return Result{}, &domain.QuotaExceededError{Op: "commit"}
		}
	}

	s.state = next
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := s.state.clone()
	return fn(view{state: &snapshot})
}

// GetInspection retrieves a record by ID from committed state.
func (s *Store) GetInspection(id string) (SavedInspection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.inspections[id]
	if !ok {
		return SavedInspection{}, false
	}
	return domain.CloneSavedInspection(rec), true
}

// ListInspections returns all records from committed state.
func (s *Store) ListInspections() []SavedInspection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SavedInspection, 0, len(s.state.inspections))
	for _, rec := range s.state.inspections {
		out = append(out, domain.CloneSavedInspection(rec))
	}
	return out
}

// Preference returns a scalar preference value from committed state.
func (s *Store) Preference(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.state.preferences[key]
	return val, ok
}

// ExportState returns a deep snapshot of committed state for durable backends.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cloned := s.state.clone()
	return Snapshot{Inspections: cloned.inspections, Preferences: cloned.preferences}
}

// ImportState replaces committed state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := newMemoryState()
	for k, v := range snapshot.Inspections {
		next.inspections[k] = domain.CloneSavedInspection(v)
	}
	for k, v := range snapshot.Preferences {
		next.preferences[k] = v
	}
	s.state = next
}

func snapshotSize(state memoryState) (int64, error) {
	data, err := json.Marshal(Snapshot{Inspections: state.inspections, Preferences: state.preferences})
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

type storeError string

func (e storeError) Error() string { return string(e) }

const (
	errEmptyID  = storeError("inspection id must not be empty")
	errEmptyKey = storeError("preference key must not be empty")
)
