package blob

import (
	"autoinspect/internal/infra/blob/memory"
)

// NewMemory constructs an in-memory blob.Store, primarily for tests.
func NewMemory() Store {
	return memory.New()
}
