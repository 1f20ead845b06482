// Package accession issues imaging-study accession numbers of the form
// {year}-{modality}-{seq}. Sequences are kept per modality in a durable
// counter store and are never reused.
package accession

import (
	"context"
	"fmt"
	"time"

	"github.com/RouteToVasanth/Quantum-Care/pkg/logger"
	"github.com/RouteToVasanth/Quantum-Care/pkg/monitoring"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// CounterStore atomically increments and returns the counter for a modality.
// The first increment of a fresh counter returns 1.
type CounterStore interface {
	Increment(ctx context.Context, modality types.ModalityCode) (int64, error)
}

// Sequencer turns counter values into accession numbers
type Sequencer struct {
	store   CounterStore
	logger  *logger.Logger
	metrics *monitoring.MetricsCollector
	now     func() time.Time
}

// NewSequencer creates a sequencer over store. metrics may be nil.
func NewSequencer(store CounterStore, log *logger.Logger, metrics *monitoring.MetricsCollector) *Sequencer {
	return &Sequencer{
		store:   store,
		logger:  log,
		metrics: metrics,
		now:     time.Now,
	}
}

// Next issues the next accession number for an exam type
func (s *Sequencer) Next(ctx context.Context, exam types.ExamType) (string, error) {
	code, ok := exam.Modality()
	if !ok {
		return "", types.NewUnknownModalityError(string(exam))
	}
	return s.NextForModality(ctx, code)
}

// NextForModality issues the next accession number for a modality code.
// Unknown codes fail without touching the store.
func (s *Sequencer) NextForModality(ctx context.Context, code types.ModalityCode) (string, error) {
	if !code.Valid() {
		return "", types.NewUnknownModalityError(string(code))
	}

	seq, err := s.store.Increment(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to increment %s counter: %w", code, err)
	}

	accession := Format(s.now().Year(), code, seq)
	s.logger.AccessionIssued(ctx, string(code), accession)
	s.metrics.RecordAccession(string(code))
	return accession, nil
}

// Format renders an accession number. Sequences above 9999 widen.
func Format(year int, code types.ModalityCode, seq int64) string {
	return fmt.Sprintf("%d-%s-%04d", year, code, seq)
}
