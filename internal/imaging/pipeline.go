package imaging

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/RouteToVasanth/Quantum-Care/pkg/interfaces"
	"github.com/RouteToVasanth/Quantum-Care/pkg/logger"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// Pipeline implements the ImagingPipeline interface
type Pipeline struct {
	worklist  interfaces.WorklistService
	accession interfaces.AccessionIssuer
	editor    interfaces.TagEditor
	archive   interfaces.ImageArchive
	logger    *logger.Logger
}

// NewPipeline wires the ingest steps together
func NewPipeline(
	worklist interfaces.WorklistService,
	accession interfaces.AccessionIssuer,
	editor interfaces.TagEditor,
	archive interfaces.ImageArchive,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		worklist:  worklist,
		accession: accession,
		editor:    editor,
		archive:   archive,
		logger:    log,
	}
}

// Ingest tags the image at path with the patient's pending order, archives
// it and resolves the worklist entry. A tag edit failure leaves the entry
// Pending so the image can be sent again; an archive failure resolves it
// to Error.
func (p *Pipeline) Ingest(ctx context.Context, patientID, path string) (*types.IngestResult, error) {
	entry, err := p.worklist.GetModalityEntry(ctx, patientID)
	if err != nil {
		return nil, err
	}

	accession, err := p.accession.Next(ctx, entry.ExamType)
	if err != nil {
		return nil, fmt.Errorf("failed to issue accession number: %w", err)
	}

	order := entry.ExamOrder()
	order.AccessionNumber = accession
	tags, err := MapTags(order)
	if err != nil {
		return nil, err
	}

	if err := p.editor.Apply(ctx, path, tags); err != nil {
		return nil, err
	}

	result := &types.IngestResult{
		PatientID:       patientID,
		AccessionNumber: accession,
		Tags:            tags,
	}

	study, archiveErr := p.archiveFile(ctx, path)
	res := &types.WorklistResolution{
		PatientID:       patientID,
		AccessionNumber: accession,
	}
	if archiveErr != nil {
		res.Status = types.WorklistError
	} else {
		res.Status = types.WorklistSuccess
		res.SOPID = study.SOPID
		res.StudyInstanceUID = study.StudyInstanceUID
	}

	if err := p.worklist.Resolve(ctx, res); err != nil {
		if archiveErr != nil {
			return nil, errors.Join(archiveErr, err)
		}
		return nil, err
	}
	if archiveErr != nil {
		return nil, archiveErr
	}

	result.Status = res.Status
	result.SOPID = res.SOPID
	result.StudyInstanceUID = res.StudyInstanceUID

	p.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"patient_id": patientID,
		"accession":  accession,
		"sop_id":     result.SOPID,
	}).Info("Study archived")
	return result, nil
}

func (p *Pipeline) archiveFile(ctx context.Context, path string) (*types.ArchivedStudy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open edited image: %w", err)
	}
	defer f.Close()
	return p.archive.Store(ctx, f)
}
