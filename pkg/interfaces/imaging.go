package interfaces

import (
	"context"
	"io"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// AccessionIssuer hands out accession numbers
type AccessionIssuer interface {
	Next(ctx context.Context, exam types.ExamType) (string, error)
}

// TagEditor rewrites tags of a DICOM file in place
type TagEditor interface {
	Apply(ctx context.Context, path string, tags types.TagSet) error
}

// ImageArchive stores DICOM instances in the PACS
type ImageArchive interface {
	Store(ctx context.Context, instance io.Reader) (*types.ArchivedStudy, error)
}

// ImagingPipeline accepts an acquired image for a patient's pending order
type ImagingPipeline interface {
	Ingest(ctx context.Context, patientID, path string) (*types.IngestResult, error)
}
