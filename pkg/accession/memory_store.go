package accession

import (
	"context"
	"sync"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// MemoryStore is a process-local CounterStore. Counters are lost on restart,
// so it only backs tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[types.ModalityCode]int64
}

// NewMemoryStore creates an empty in-memory counter store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[types.ModalityCode]int64)}
}

// Increment implements CounterStore
func (s *MemoryStore) Increment(ctx context.Context, modality types.ModalityCode) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[modality]++
	return s.counters[modality], nil
}
