package admission

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RouteToVasanth/Quantum-Care/pkg/config"
	"github.com/RouteToVasanth/Quantum-Care/pkg/logger"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// MockAdmissionRepository is a mock implementation of AdmissionRepository
type MockAdmissionRepository struct {
	mock.Mock
}

func (m *MockAdmissionRepository) RecordRegistration(ctx context.Context, patient *types.Patient, msg *types.StoredMessage, event *types.ClinicalEvent) error {
	args := m.Called(ctx, patient, msg, event)
	return args.Error(0)
}

func (m *MockAdmissionRepository) RecordEvent(ctx context.Context, patient *types.Patient, msg *types.StoredMessage, event *types.ClinicalEvent) error {
	args := m.Called(ctx, patient, msg, event)
	return args.Error(0)
}

func (m *MockAdmissionRepository) GetLatestEvent(ctx context.Context, patientID string) (*types.StoredEvent, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.StoredEvent), args.Error(1)
}

// MockPatientStore is a mock implementation of PatientStore
type MockPatientStore struct {
	mock.Mock
}

func (m *MockPatientStore) Create(ctx context.Context, patient *types.Patient) error {
	args := m.Called(ctx, patient)
	return args.Error(0)
}

func (m *MockPatientStore) Delete(ctx context.Context, patientID string) error {
	args := m.Called(ctx, patientID)
	return args.Error(0)
}

func (m *MockPatientStore) Restore(ctx context.Context, patient *types.Patient) error {
	args := m.Called(ctx, patient)
	return args.Error(0)
}

func (m *MockPatientStore) Get(ctx context.Context, patientID string) (*types.Patient, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Patient), args.Error(1)
}

func (m *MockPatientStore) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockPatientStore) Update(ctx context.Context, patientID string, updates *types.PatientUpdates) (*types.Patient, error) {
	args := m.Called(ctx, patientID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Patient), args.Error(1)
}

func (m *MockPatientStore) BeginVisit(ctx context.Context, patientID string, req *types.VisitRequest) (*types.Patient, error) {
	args := m.Called(ctx, patientID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Patient), args.Error(1)
}

func (m *MockPatientStore) MoveDepartment(ctx context.Context, patientID string, req *types.TransferRequest) (*types.Patient, error) {
	args := m.Called(ctx, patientID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Patient), args.Error(1)
}

// MockWorklistService is a mock implementation of WorklistService
type MockWorklistService struct {
	mock.Mock
}

func (m *MockWorklistService) CreateOrder(ctx context.Context, patientID string, order types.RadiologyOrder) (*types.WorklistEntry, error) {
	args := m.Called(ctx, patientID, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.WorklistEntry), args.Error(1)
}

func (m *MockWorklistService) Resolve(ctx context.Context, res *types.WorklistResolution) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

func (m *MockWorklistService) CancelOrder(ctx context.Context, entry *types.WorklistEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockWorklistService) GetModalityEntry(ctx context.Context, patientID string) (*types.ModalityEntry, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ModalityEntry), args.Error(1)
}

func (m *MockWorklistService) GetArchivedStudies(ctx context.Context, patientID string) ([]types.ArchivedStudy, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ArchivedStudy), args.Error(1)
}

// MockImagingPipeline is a mock implementation of ImagingPipeline
type MockImagingPipeline struct {
	mock.Mock
}

func (m *MockImagingPipeline) Ingest(ctx context.Context, patientID, path string) (*types.IngestResult, error) {
	args := m.Called(ctx, patientID, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.IngestResult), args.Error(1)
}

// MockPublisher is a mock implementation of MessagePublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msg *types.StoredMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type serviceMocks struct {
	repo      *MockAdmissionRepository
	patients  *MockPatientStore
	worklist  *MockWorklistService
	imaging   *MockImagingPipeline
	publisher *MockPublisher
}

func setupTestService() (*Service, *serviceMocks) {
	m := &serviceMocks{
		repo:      new(MockAdmissionRepository),
		patients:  new(MockPatientStore),
		worklist:  new(MockWorklistService),
		imaging:   new(MockImagingPipeline),
		publisher: new(MockPublisher),
	}
	cfg := &config.Config{HL7: config.HL7Config{Version: "2.8"}}
	svc := New(cfg, logger.New("error"), Dependencies{
		Repository: m.repo,
		Patients:   m.patients,
		Worklist:   m.worklist,
		Imaging:    m.imaging,
		Publisher:  m.publisher,
	})
	svc.newPatientID = func() string { return "3fa9c21b" }
	return svc, m
}

func newPatient(patientType, department string) *types.Patient {
	return &types.Patient{
		FirstName:    "Asha",
		LastName:     "Menon",
		BirthDate:    "1988-07-04",
		Gender:       "female",
		AddressLine1: "12 MG Road",
		City:         "Kochi",
		State:        "Kerala",
		ZipCode:      "682016",
		Email:        "asha@example.com",
		PatientType:  patientType,
		Department:   department,
		Doctor:       "Dr. Rao",
		AdmitReason:  "Chest pain",
	}
}

func registeredPatient(patientType, department string) *types.Patient {
	p := newPatient(patientType, department)
	p.PID = "3fa9c21b"
	p.Visit = 1
	return p
}

func segment(raw, tag string) []string {
	for _, line := range strings.Split(raw, "\r") {
		if strings.HasPrefix(line, tag+"|") {
			return strings.Split(line, "|")
		}
	}
	return nil
}

func expectEventLog(m *serviceMocks) {
	m.repo.On("RecordEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
}

func TestService_RegisterPatient_Outpatient(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	m.patients.On("EmailExists", ctx, "asha@example.com").Return(false, nil)
	m.patients.On("Create", ctx, mock.AnythingOfType("*types.Patient")).Return(nil)
	m.repo.On("RecordRegistration", ctx, mock.Anything,
		mock.MatchedBy(func(msg *types.StoredMessage) bool {
			return msg.MessageType == "ADT^A04" && msg.PatientID == "3fa9c21b"
		}),
		mock.MatchedBy(func(ev *types.ClinicalEvent) bool {
			return ev.Trigger == types.TriggerRegister && ev.PatientClass == types.PatientClassOutpatient
		}),
	).Return(nil)
	m.publisher.On("Publish", ctx, mock.Anything).Return(nil)

	result, err := svc.RegisterPatient(ctx, newPatient(types.PatientTypeOutpatient, "Cardiology"))

	require.NoError(t, err)
	assert.Equal(t, "3fa9c21b", result.Patient.PID)
	assert.Equal(t, 1, result.Patient.Visit)
	assert.Equal(t, types.TriggerRegister, result.Event.Trigger)
	assert.Equal(t, types.ServiceMedicine, result.Event.HospitalService)
	assert.Equal(t, 1, result.Event.VisitNumber)
	assert.Nil(t, result.WorklistEntry)

	pv1 := segment(result.Message, "PV1")
	require.NotNil(t, pv1)
	assert.Equal(t, "1", pv1[1])
	assert.Equal(t, "O", pv1[2])
	assert.Equal(t, "MED", pv1[10])
	assert.Equal(t, "ADT^A04", segment(result.Message, "MSH")[8])

	m.worklist.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	m.repo.AssertExpectations(t)
}

func TestService_RegisterPatient_RadiologyOpensOrder(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	p := newPatient(types.PatientTypeInpatient, types.DepartmentRadiology)
	p.ExamType = "CT"
	p.PreferredDate = "2024-03-20"
	p.PreferredTime = "09:30"

	m.patients.On("EmailExists", ctx, p.Email).Return(false, nil)
	m.patients.On("Create", ctx, p).Return(nil)
	m.repo.On("RecordRegistration", ctx, p, mock.Anything, mock.Anything).Return(nil)
	m.worklist.On("CreateOrder", ctx, "3fa9c21b", types.RadiologyOrder{
		ExamType: "CT", PreferredDate: "2024-03-20", PreferredTime: "09:30",
	}).Return(&types.WorklistEntry{ID: 5, Status: types.WorklistPending}, nil)
	m.publisher.On("Publish", ctx, mock.Anything).Return(nil)

	result, err := svc.RegisterPatient(ctx, p)

	require.NoError(t, err)
	assert.Equal(t, types.TriggerAdmit, result.Event.Trigger)
	require.NotNil(t, result.WorklistEntry)
	assert.Equal(t, types.WorklistPending, result.WorklistEntry.Status)
}

func TestService_RegisterPatient_Rejections(t *testing.T) {
	t.Run("duplicate email", func(t *testing.T) {
		svc, m := setupTestService()
		m.patients.On("EmailExists", mock.Anything, "asha@example.com").Return(true, nil)

		_, err := svc.RegisterPatient(context.Background(), newPatient(types.PatientTypeInpatient, "Cardiology"))

		assert.True(t, errors.Is(err, types.ErrDuplicateEmail))
		m.patients.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unknown patient type", func(t *testing.T) {
		svc, m := setupTestService()

		_, err := svc.RegisterPatient(context.Background(), newPatient("Daycare", "Cardiology"))

		assert.True(t, errors.Is(err, types.ErrUnknownPatientType))
		m.patients.AssertNotCalled(t, "EmailExists", mock.Anything, mock.Anything)
	})

	t.Run("radiology without exam type", func(t *testing.T) {
		svc, m := setupTestService()

		_, err := svc.RegisterPatient(context.Background(), newPatient(types.PatientTypeInpatient, types.DepartmentRadiology))

		assert.True(t, errors.Is(err, types.ErrMissingRequiredField))
		m.patients.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("missing last name", func(t *testing.T) {
		svc, _ := setupTestService()
		p := newPatient(types.PatientTypeInpatient, "Cardiology")
		p.LastName = ""

		_, err := svc.RegisterPatient(context.Background(), p)

		assert.True(t, errors.Is(err, types.ErrMissingRequiredField))
	})
}

func TestService_SubmitVisit_IncrementsVisit(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	req := &types.VisitRequest{
		PatientType: types.PatientTypeEmergency,
		Department:  "Surgery",
		Doctor:      "Dr. Iyer",
		AdmitReason: "Fracture",
	}
	after := registeredPatient(types.PatientTypeEmergency, "Surgery")
	after.Visit = 2
	after.Doctor = "Dr. Iyer"

	m.patients.On("Get", ctx, "3fa9c21b").Return(registeredPatient(types.PatientTypeInpatient, "Cardiology"), nil)
	m.patients.On("BeginVisit", ctx, "3fa9c21b", req).Return(after, nil)
	expectEventLog(m)

	result, err := svc.SubmitVisit(ctx, "3fa9c21b", req)

	require.NoError(t, err)
	assert.Equal(t, types.TriggerAdmit, result.Event.Trigger)
	assert.Equal(t, types.PatientClassEmergency, result.Event.PatientClass)
	assert.Equal(t, types.ServiceSurgery, result.Event.HospitalService)
	assert.Equal(t, 2, result.Event.VisitNumber)
	m.repo.AssertCalled(t, "RecordEvent", ctx, after, mock.Anything, mock.Anything)
	m.worklist.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_SubmitVisit_PendingOrderConflict(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	req := &types.VisitRequest{
		PatientType: types.PatientTypeOutpatient,
		Department:  types.DepartmentRadiology,
		ExamType:    "MRI",
	}
	m.patients.On("Get", ctx, "3fa9c21b").Return(registeredPatient(types.PatientTypeOutpatient, "Cardiology"), nil)
	m.worklist.On("CreateOrder", ctx, "3fa9c21b", req.Order()).
		Return(nil, types.NewConflictError("patient already has a pending worklist entry", nil))

	_, err := svc.SubmitVisit(ctx, "3fa9c21b", req)

	assert.True(t, errors.Is(err, types.ErrConcurrentStateConflict))
	m.patients.AssertNotCalled(t, "BeginVisit", mock.Anything, mock.Anything, mock.Anything)
	m.repo.AssertNotCalled(t, "RecordEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_TransferPatient_ToRadiology(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	req := &types.TransferRequest{
		Department:    types.DepartmentRadiology,
		Doctor:        "Dr. Varghese",
		ExamType:      "XRay",
		PreferredDate: "2024-03-21",
		PreferredTime: "11:00",
	}
	before := registeredPatient(types.PatientTypeInpatient, "Cardiology")
	before.Visit = 3

	m.patients.On("Get", ctx, "3fa9c21b").Return(before, nil)
	m.worklist.On("CreateOrder", ctx, "3fa9c21b", req.Order()).
		Return(&types.WorklistEntry{ID: 9, Status: types.WorklistPending}, nil)
	m.patients.On("MoveDepartment", ctx, "3fa9c21b", req).Return(before, nil)
	expectEventLog(m)

	result, err := svc.TransferPatient(ctx, "3fa9c21b", req)

	require.NoError(t, err)
	assert.Equal(t, types.TriggerTransfer, result.Event.Trigger)
	assert.Equal(t, "Cardiology", result.Event.PriorDepartment)
	assert.Equal(t, types.DepartmentRadiology, result.Event.Department)
	assert.Equal(t, 3, result.Event.VisitNumber, "transfers stay within the current visit")
	assert.Equal(t, "Dr. Varghese", result.Patient.Doctor)
	require.NotNil(t, result.WorklistEntry)

	pv1 := segment(result.Message, "PV1")
	assert.Equal(t, "Radiology^^Quantum Care Hospital", pv1[3])
	assert.Equal(t, "Cardiology", pv1[6])
}

// A failed event-log write must not leave an orphan Pending order or a moved
// patient document behind.
func TestService_TransferPatient_EventLogFailureUndoesWrites(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	req := &types.TransferRequest{Department: types.DepartmentRadiology, Doctor: "Dr. Varghese", ExamType: "CT"}
	before := registeredPatient(types.PatientTypeInpatient, "Cardiology")
	entry := &types.WorklistEntry{ID: 9, PatientID: "3fa9c21b", Status: types.WorklistPending}
	dbErr := errors.New("pq: could not serialize access")

	m.patients.On("Get", ctx, "3fa9c21b").Return(before, nil)
	m.worklist.On("CreateOrder", ctx, "3fa9c21b", req.Order()).Return(entry, nil)
	m.patients.On("MoveDepartment", ctx, "3fa9c21b", req).Return(before, nil)
	m.repo.On("RecordEvent", ctx, mock.Anything, mock.Anything, mock.Anything).Return(dbErr)

	var undone []string
	m.patients.On("Restore", mock.Anything, before).Run(func(mock.Arguments) {
		undone = append(undone, "restore")
	}).Return(nil)
	m.worklist.On("CancelOrder", mock.Anything, entry).Run(func(mock.Arguments) {
		undone = append(undone, "cancel")
	}).Return(nil)

	_, err := svc.TransferPatient(ctx, "3fa9c21b", req)

	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, []string{"restore", "cancel"}, undone, "undo runs newest first")
	m.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestService_SubmitVisit_EventLogFailureUndoesWrites(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	req := &types.VisitRequest{PatientType: types.PatientTypeOutpatient, Department: types.DepartmentRadiology, ExamType: "MRI"}
	current := registeredPatient(types.PatientTypeOutpatient, "Cardiology")
	after := registeredPatient(types.PatientTypeOutpatient, types.DepartmentRadiology)
	after.Visit = 2
	entry := &types.WorklistEntry{ID: 4, PatientID: "3fa9c21b", Status: types.WorklistPending}

	m.patients.On("Get", ctx, "3fa9c21b").Return(current, nil)
	m.worklist.On("CreateOrder", ctx, "3fa9c21b", req.Order()).Return(entry, nil)
	m.patients.On("BeginVisit", ctx, "3fa9c21b", req).Return(after, nil)
	m.repo.On("RecordEvent", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	m.patients.On("Restore", mock.Anything, current).Return(nil)
	m.worklist.On("CancelOrder", mock.Anything, entry).Return(nil)

	_, err := svc.SubmitVisit(ctx, "3fa9c21b", req)

	require.Error(t, err)
	m.patients.AssertCalled(t, "Restore", mock.Anything, current)
	m.worklist.AssertCalled(t, "CancelOrder", mock.Anything, entry)
}

// A patient store failure after the order was opened withdraws the order.
func TestService_SubmitVisit_BeginVisitFailureCancelsOrder(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	req := &types.VisitRequest{PatientType: types.PatientTypeOutpatient, Department: types.DepartmentRadiology, ExamType: "CT"}
	entry := &types.WorklistEntry{ID: 4, PatientID: "3fa9c21b", Status: types.WorklistPending}

	m.patients.On("Get", ctx, "3fa9c21b").Return(registeredPatient(types.PatientTypeOutpatient, "Cardiology"), nil)
	m.worklist.On("CreateOrder", ctx, "3fa9c21b", req.Order()).Return(entry, nil)
	m.patients.On("BeginVisit", ctx, "3fa9c21b", req).Return(nil, errors.New("mongo: server selection timeout"))
	m.worklist.On("CancelOrder", mock.Anything, entry).Return(nil)

	_, err := svc.SubmitVisit(ctx, "3fa9c21b", req)

	require.Error(t, err)
	m.worklist.AssertCalled(t, "CancelOrder", mock.Anything, entry)
	m.patients.AssertNotCalled(t, "Restore", mock.Anything, mock.Anything)
	m.repo.AssertNotCalled(t, "RecordEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RegisterPatient_RecordFailureUndoesWrites(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	p := newPatient(types.PatientTypeInpatient, types.DepartmentRadiology)
	p.ExamType = "CT"
	entry := &types.WorklistEntry{ID: 5, PatientID: "3fa9c21b", Status: types.WorklistPending}
	dbErr := errors.New("pq: duplicate key value violates unique constraint \"patients_pkey\"")

	m.patients.On("EmailExists", ctx, p.Email).Return(false, nil)
	m.worklist.On("CreateOrder", ctx, "3fa9c21b", mock.Anything).Return(entry, nil)
	m.patients.On("Create", ctx, p).Return(nil)
	m.repo.On("RecordRegistration", ctx, p, mock.Anything, mock.Anything).Return(dbErr)
	m.patients.On("Delete", mock.Anything, "3fa9c21b").Return(nil)
	m.worklist.On("CancelOrder", mock.Anything, entry).Return(nil)

	_, err := svc.RegisterPatient(ctx, p)

	assert.ErrorIs(t, err, dbErr)
	m.patients.AssertCalled(t, "Delete", mock.Anything, "3fa9c21b")
	m.worklist.AssertCalled(t, "CancelOrder", mock.Anything, entry)
	m.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

// The original error is returned even when an undo step fails too.
func TestService_RegisterPatient_UndoFailureKeepsCause(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	p := newPatient(types.PatientTypeOutpatient, "Cardiology")
	dbErr := errors.New("pq: connection refused")

	m.patients.On("EmailExists", ctx, p.Email).Return(false, nil)
	m.patients.On("Create", ctx, p).Return(nil)
	m.repo.On("RecordRegistration", ctx, p, mock.Anything, mock.Anything).Return(dbErr)
	m.patients.On("Delete", mock.Anything, "3fa9c21b").Return(errors.New("mongo: not primary"))

	_, err := svc.RegisterPatient(ctx, p)

	assert.ErrorIs(t, err, dbErr)
	m.worklist.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything)
}

func TestService_EditPatient_EventLogFailureRestoresDocument(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	city := "Thrissur"
	updates := &types.PatientUpdates{City: &city}
	current := registeredPatient(types.PatientTypeInpatient, "Cardiology")
	updated := registeredPatient(types.PatientTypeInpatient, "Cardiology")
	updated.City = city

	m.patients.On("Get", ctx, "3fa9c21b").Return(current, nil)
	m.patients.On("Update", ctx, "3fa9c21b", updates).Return(updated, nil)
	m.repo.On("RecordEvent", ctx, updated, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	m.patients.On("Restore", mock.Anything, current).Return(nil)

	_, err := svc.EditPatient(ctx, "3fa9c21b", updates)

	require.Error(t, err)
	m.patients.AssertCalled(t, "Restore", mock.Anything, current)
}

func TestService_DischargePatient(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	m.patients.On("Get", ctx, "3fa9c21b").Return(registeredPatient(types.PatientTypeObstetrics, "Maternity"), nil)
	expectEventLog(m)

	result, err := svc.DischargePatient(ctx, "3fa9c21b")

	require.NoError(t, err)
	assert.Equal(t, types.TriggerDischarge, result.Event.Trigger)
	assert.Equal(t, types.PatientClassObstetrics, result.Event.PatientClass)
	assert.Equal(t, types.ServiceObstetrics, result.Event.HospitalService)
	assert.Empty(t, segment(result.Message, "PV1")[6])
}

func TestService_DischargePatient_NotFound(t *testing.T) {
	svc, m := setupTestService()
	m.patients.On("Get", mock.Anything, "deadbeef").Return(nil, types.NewNotFoundError("patient deadbeef not found"))

	_, err := svc.DischargePatient(context.Background(), "deadbeef")

	assert.True(t, errors.Is(err, types.ErrNotFound))
	m.repo.AssertNotCalled(t, "RecordEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_EditPatient(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	city := "Thrissur"
	updates := &types.PatientUpdates{City: &city}
	updated := registeredPatient(types.PatientTypeInpatient, "Cardiology")
	updated.City = city

	m.patients.On("Get", ctx, "3fa9c21b").Return(registeredPatient(types.PatientTypeInpatient, "Cardiology"), nil)
	m.patients.On("Update", ctx, "3fa9c21b", updates).Return(updated, nil)
	expectEventLog(m)

	result, err := svc.EditPatient(ctx, "3fa9c21b", updates)

	require.NoError(t, err)
	assert.Equal(t, types.TriggerUpdateInfo, result.Event.Trigger)
	assert.Equal(t, "Thrissur", result.Event.Address.City)
	m.repo.AssertCalled(t, "RecordEvent", ctx, updated, mock.Anything, mock.Anything)
}

func TestService_EditPatient_RejectsUnknownPatientType(t *testing.T) {
	svc, m := setupTestService()
	bad := "Visitor"

	_, err := svc.EditPatient(context.Background(), "3fa9c21b", &types.PatientUpdates{PatientType: &bad})

	assert.True(t, errors.Is(err, types.ErrUnknownPatientType))
	m.patients.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

// The same patient renders the same PID-8 whatever the trigger.
func TestService_GenderConsistentAcrossTriggers(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	p := registeredPatient(types.PatientTypeInpatient, "Cardiology")
	p.Gender = "Male"
	m.patients.On("Get", ctx, "3fa9c21b").Return(p, nil)
	m.patients.On("Update", ctx, "3fa9c21b", mock.Anything).Return(p, nil)
	m.patients.On("MoveDepartment", ctx, "3fa9c21b", mock.Anything).Return(p, nil)
	expectEventLog(m)

	discharge, err := svc.DischargePatient(ctx, "3fa9c21b")
	require.NoError(t, err)
	edit, err := svc.EditPatient(ctx, "3fa9c21b", &types.PatientUpdates{})
	require.NoError(t, err)
	transfer, err := svc.TransferPatient(ctx, "3fa9c21b", &types.TransferRequest{Department: "Neurology"})
	require.NoError(t, err)

	for _, r := range []*types.AdmissionResult{discharge, edit, transfer} {
		assert.Equal(t, "M", segment(r.Message, "PID")[8], string(r.Event.Trigger))
		assert.Equal(t, "male", r.Event.Gender)
	}
}

func TestService_PublishFailureDoesNotFailOperation(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	m.patients.On("Get", ctx, "3fa9c21b").Return(registeredPatient(types.PatientTypeInpatient, "Cardiology"), nil)
	m.repo.On("RecordEvent", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.publisher.On("Publish", ctx, mock.Anything).Return(errors.New("kafka: leader not available"))

	_, err := svc.DischargePatient(ctx, "3fa9c21b")

	assert.NoError(t, err)
	m.publisher.AssertExpectations(t)
}

func TestService_GetPatient(t *testing.T) {
	svc, m := setupTestService()
	ctx := context.Background()

	m.patients.On("Get", ctx, "3fa9c21b").Return(registeredPatient(types.PatientTypeInpatient, "Cardiology"), nil)
	m.repo.On("GetLatestEvent", ctx, "3fa9c21b").Return(nil, types.NewNotFoundError("no ADT events"))
	m.worklist.On("GetArchivedStudies", ctx, "3fa9c21b").Return([]types.ArchivedStudy{
		{SOPID: "5e1c7a2f", StudyInstanceUID: "1.2.840.1"},
	}, nil)

	record, err := svc.GetPatient(ctx, "3fa9c21b")

	require.NoError(t, err)
	assert.Nil(t, record.LatestEvent)
	assert.Len(t, record.Studies, 1)
}

func TestService_ParseMessage(t *testing.T) {
	svc, _ := setupTestService()

	_, err := svc.ParseMessage(context.Background(), "EVN||20240315103000")
	assert.True(t, errors.Is(err, types.ErrMalformedMessage))

	raw := strings.Join([]string{
		`MSH|^~\&|QuantumCare|Quantum Care Hospital|Selene EHR|SeleneHospital|20240315103000||ADT^A03|a1b2c3|P|2.8`,
		"EVN||20240315103000",
		"PID|1||3fa9c21b^^^^PI||Menon^Asha|||F|||12 MG Road^^Kochi^Kerala^682016^IND",
		"PV1|2|I|Cardiology^^Quantum Care Hospital||||Dr. Rao|||MED",
		"PV2|||Chest pain",
	}, "\r")
	event, err := svc.ParseMessage(context.Background(), raw)

	require.NoError(t, err)
	assert.Equal(t, types.TriggerDischarge, event.Trigger)
	assert.Equal(t, "female", event.Gender)
	assert.Equal(t, 2, event.VisitNumber)
}
