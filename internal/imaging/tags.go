// Package imaging carries an acquired DICOM image from the modality into
// the PACS: it derives tag edits from the worklist order, rewrites the file
// with dcmodify, archives it in Orthanc and resolves the worklist entry.
package imaging

import (
	"fmt"
	"strings"
	"time"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// tagRule decides whether an attribute is written for an exam type
type tagRule struct {
	tag     tag.Tag
	keyword string
	exams   map[types.ExamType]bool
	value   func(o *types.ExamOrder, m types.ModalityCode) string
}

func exams(e ...types.ExamType) map[types.ExamType]bool {
	set := make(map[types.ExamType]bool, len(e))
	for _, x := range e {
		set[x] = true
	}
	return set
}

var allExams = exams(types.ExamMRI, types.ExamCT, types.ExamXRay, types.ExamUltrasound)

// tagRules lists the edits in the order they are passed to the editor
var tagRules = []tagRule{
	{tag.PatientName, "PatientName", allExams, func(o *types.ExamOrder, _ types.ModalityCode) string {
		return o.FirstName + " " + o.LastName
	}},
	{tag.Modality, "Modality", allExams, func(_ *types.ExamOrder, m types.ModalityCode) string {
		return string(m)
	}},
	{tag.StudyDate, "StudyDate", allExams, func(o *types.ExamOrder, _ types.ModalityCode) string {
		return dicomDate(o.PreferredDate)
	}},
	// PreferredTime is already in TM form here, see MapTags.
	{tag.StudyTime, "StudyTime", allExams, func(o *types.ExamOrder, _ types.ModalityCode) string {
		return o.PreferredTime
	}},
	{tag.PatientID, "PatientID", exams(types.ExamMRI, types.ExamCT, types.ExamXRay), func(o *types.ExamOrder, _ types.ModalityCode) string {
		return o.PatientID
	}},
	{tag.PatientBirthDate, "PatientBirthDate", exams(types.ExamCT, types.ExamMRI), func(o *types.ExamOrder, _ types.ModalityCode) string {
		return dicomDate(o.BirthDate)
	}},
	{tag.PatientSex, "PatientSex", exams(types.ExamCT, types.ExamMRI), func(o *types.ExamOrder, _ types.ModalityCode) string {
		return types.GenderCode(o.Gender)
	}},
	{tag.StudyDescription, "StudyDescription", exams(types.ExamMRI, types.ExamUltrasound, types.ExamXRay), func(o *types.ExamOrder, _ types.ModalityCode) string {
		return o.AdmitReason
	}},
	{tag.AccessionNumber, "AccessionNumber", exams(types.ExamCT, types.ExamMRI, types.ExamXRay), func(o *types.ExamOrder, _ types.ModalityCode) string {
		return o.AccessionNumber
	}},
	{tag.ReferringPhysicianName, "ReferringPhysicianName", exams(types.ExamCT, types.ExamMRI, types.ExamXRay), func(o *types.ExamOrder, _ types.ModalityCode) string {
		return o.Doctor
	}},
}

// MapTags derives the attribute edits for an exam order. It performs no I/O.
func MapTags(order types.ExamOrder) (types.TagSet, error) {
	exam, ok := types.ParseExamType(string(order.ExamType))
	if !ok {
		return nil, types.NewUnknownModalityError(string(order.ExamType))
	}
	modality, _ := exam.Modality()

	if err := validateOrder(&order, exam); err != nil {
		return nil, err
	}
	studyTime, err := dicomTime(order.PreferredTime)
	if err != nil {
		return nil, err
	}
	order.PreferredTime = studyTime

	set := make(types.TagSet, 0, len(tagRules))
	for _, r := range tagRules {
		if !r.exams[exam] {
			continue
		}
		set = append(set, types.TagEdit{
			Tag:     r.tag.String(),
			Keyword: r.keyword,
			Value:   r.value(&order, modality),
		})
	}
	return set, nil
}

type requiredField struct {
	name  string
	value string
}

func validateOrder(o *types.ExamOrder, exam types.ExamType) error {
	required := []requiredField{
		{"firstname", o.FirstName},
		{"lastname", o.LastName},
		{"preferredDate", o.PreferredDate},
		{"preferredTime", o.PreferredTime},
	}
	// Ultrasound images carry neither patient ID nor accession number.
	if exam != types.ExamUltrasound {
		required = append(required,
			requiredField{"patientid", o.PatientID},
			requiredField{"accessionNumber", o.AccessionNumber})
	}

	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return types.NewMissingFieldError(f.name)
		}
	}
	return nil
}

// dicomDate turns 2024-03-20 into the DA form 20240320
func dicomDate(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "-", "")
}

// timeLayouts are the accepted preferred-time forms
var timeLayouts = []string{"15:04", "15:04:05", "1504", "150405"}

// dicomTime turns 9:30 or 09:30:15 into the TM form 093000. Seconds are
// always written as 00.
func dicomTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return fmt.Sprintf("%02d%02d00", t.Hour(), t.Minute()), nil
		}
	}
	return "", types.NewValidationError(types.ErrCodeInvalidInput,
		fmt.Sprintf("invalid preferred time %q", s),
		map[string]interface{}{"field": "preferredTime"})
}
