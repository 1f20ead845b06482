package interfaces

import (
	"context"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// WorklistService drives radiology orders through Pending → Success | Error
type WorklistService interface {
	CreateOrder(ctx context.Context, patientID string, order types.RadiologyOrder) (*types.WorklistEntry, error)
	Resolve(ctx context.Context, res *types.WorklistResolution) error

	// CancelOrder withdraws an entry that is still Pending
	CancelOrder(ctx context.Context, entry *types.WorklistEntry) error

	GetModalityEntry(ctx context.Context, patientID string) (*types.ModalityEntry, error)
	GetArchivedStudies(ctx context.Context, patientID string) ([]types.ArchivedStudy, error)
}

// WorklistRepository defines the interface for worklist persistence
type WorklistRepository interface {
	CreateEntry(ctx context.Context, entry *types.WorklistEntry) error
	GetPendingEntry(ctx context.Context, patientID string) (*types.WorklistEntry, error)

	// ResolveEntry moves the patient's Pending entry to a terminal status in
	// a single conditional write. It fails with ConcurrentStateConflict when
	// no Pending entry exists.
	ResolveEntry(ctx context.Context, res *types.WorklistResolution) error

	DeletePendingEntry(ctx context.Context, id int64) error
	GetModalityEntry(ctx context.Context, patientID string) (*types.ModalityEntry, error)
	GetArchivedStudies(ctx context.Context, patientID string) ([]types.ArchivedStudy, error)
}
