//go:build integration

package accession

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RouteToVasanth/Quantum-Care/pkg/database/dbtest"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

func TestPostgresStore_ConcurrentIncrements(t *testing.T) {
	db := dbtest.StartPostgres(t)
	s := newTestSequencer(NewPostgresStore(db))

	const callers = 40
	seen := make(map[string]bool)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc, err := s.Next(context.Background(), types.ExamCT)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[acc] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, callers)
	for i := 1; i <= callers; i++ {
		assert.True(t, seen[Format(2024, types.ModalityCT, int64(i))])
	}

	// A second store over the same table continues the sequence.
	next, err := newTestSequencer(NewPostgresStore(db)).Next(context.Background(), types.ExamCT)
	require.NoError(t, err)
	assert.Equal(t, Format(2024, types.ModalityCT, callers+1), next)
}
