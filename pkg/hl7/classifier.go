package hl7

import (
	"fmt"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// Classification is the outcome of classifying a lifecycle event. It is
// passed explicitly into NewEvent; nothing here is kept between calls.
type Classification struct {
	PatientClass    types.PatientClass
	HospitalService types.HospitalService
	Trigger         types.TriggerCode
}

type patientCategory struct {
	class   types.PatientClass
	service types.HospitalService
}

var patientCategories = map[string]patientCategory{
	types.PatientTypeInpatient:  {types.PatientClassInpatient, types.ServiceMedicine},
	types.PatientTypeOutpatient: {types.PatientClassOutpatient, types.ServiceMedicine},
	types.PatientTypeEmergency:  {types.PatientClassEmergency, types.ServiceSurgery},
	types.PatientTypeObstetrics: {types.PatientClassObstetrics, types.ServiceObstetrics},
}

// Classify maps a patient type and operation to the patient class, hospital
// service and ADT trigger for the message.
func Classify(patientType string, op types.Operation) (Classification, error) {
	cat, ok := patientCategories[patientType]
	if !ok {
		return Classification{}, types.NewUnknownPatientTypeError(patientType)
	}

	c := Classification{PatientClass: cat.class, HospitalService: cat.service}
	switch op {
	case types.OperationEdit:
		c.Trigger = types.TriggerUpdateInfo
	case types.OperationTransfer:
		c.Trigger = types.TriggerTransfer
	case types.OperationDischarge:
		c.Trigger = types.TriggerDischarge
	case types.OperationNew, types.OperationSubmit:
		if cat.class == types.PatientClassOutpatient {
			c.Trigger = types.TriggerRegister
		} else {
			c.Trigger = types.TriggerAdmit
		}
	default:
		return Classification{}, types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("unknown operation %q", op), map[string]interface{}{"operation": string(op)})
	}
	return c, nil
}

// NewEvent builds the clinical event for a snapshot. The prior department is
// only carried on transfers.
func NewEvent(s types.PatientSnapshot, c Classification) types.ClinicalEvent {
	ev := types.ClinicalEvent{
		Trigger:         c.Trigger,
		PatientClass:    c.PatientClass,
		HospitalService: c.HospitalService,
		PatientID:       s.PatientID,
		FirstName:       s.FirstName,
		LastName:        s.LastName,
		Gender:          s.Gender,
		Address:         s.Address,
		VisitNumber:     s.VisitNumber,
		Department:      s.Department,
		Doctor:          s.Doctor,
		AdmitReason:     s.AdmitReason,
	}
	if c.Trigger == types.TriggerTransfer {
		ev.PriorDepartment = s.PriorDepartment
	}
	return ev
}
