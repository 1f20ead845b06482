package accession

import (
	"context"
	"fmt"
	"time"

	"github.com/RouteToVasanth/Quantum-Care/pkg/database"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

const incrementCounterQuery = `
	INSERT INTO accession_counters (modality, last_seq, updated_at)
	VALUES ($1, 1, NOW())
	ON CONFLICT (modality) DO UPDATE
	SET last_seq = accession_counters.last_seq + 1, updated_at = NOW()
	RETURNING last_seq`

// PostgresStore keeps counters in the accession_counters table. The upsert
// runs as one statement, so concurrent callers serialize on the row lock.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a counter store over db
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Increment implements CounterStore
func (s *PostgresStore) Increment(ctx context.Context, modality types.ModalityCode) (int64, error) {
	start := time.Now()

	var seq int64
	err := s.db.QueryRowContext(ctx, incrementCounterQuery, string(modality)).Scan(&seq)
	s.db.Observe(ctx, "upsert", "accession_counters", start, 1, err,
		map[string]interface{}{"modality": string(modality)})
	if err != nil {
		return 0, fmt.Errorf("failed to increment accession counter: %w", err)
	}
	return seq, nil
}
