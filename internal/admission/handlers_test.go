package admission

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

func serve(svc *Service, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandlers_RegisterPatient(t *testing.T) {
	svc, m := setupTestService()

	m.patients.On("EmailExists", mock.Anything, "asha@example.com").Return(false, nil)
	m.patients.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.repo.On("RecordRegistration", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	payload, err := json.Marshal(newPatient(types.PatientTypeOutpatient, "Cardiology"))
	require.NoError(t, err)
	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/patients", bytes.NewReader(payload)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["hl7_message"], "ADT^A04")
	assert.Equal(t, "A04", body["parsed_message"].(map[string]interface{})["trigger"])
}

func TestHandlers_RegisterPatient_DuplicateEmail(t *testing.T) {
	svc, m := setupTestService()
	m.patients.On("EmailExists", mock.Anything, "asha@example.com").Return(true, nil)

	payload, _ := json.Marshal(newPatient(types.PatientTypeOutpatient, "Cardiology"))
	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/patients", bytes.NewReader(payload)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, types.ErrCodeDuplicateEmail, body["code"])
	assert.Equal(t, "Email already exists", body["details"])
}

func TestHandlers_RegisterPatient_InvalidJSON(t *testing.T) {
	svc, _ := setupTestService()

	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_GetPatient_NotFound(t *testing.T) {
	svc, m := setupTestService()
	m.patients.On("Get", mock.Anything, "deadbeef").Return(nil, types.NewNotFoundError("patient deadbeef not found"))

	rec := serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/patients/deadbeef", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_TransferPatient_PendingConflict(t *testing.T) {
	svc, m := setupTestService()
	m.patients.On("Get", mock.Anything, "3fa9c21b").Return(registeredPatient(types.PatientTypeInpatient, "Cardiology"), nil)
	m.worklist.On("CreateOrder", mock.Anything, "3fa9c21b", mock.Anything).
		Return(nil, types.NewConflictError("patient already has a pending worklist entry", nil))

	payload := `{"newDepartment":"Radiology","newDoctor":"Dr. Varghese","examType":"CT"}`
	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/patients/3fa9c21b/transfers", strings.NewReader(payload)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, types.ErrCodeConcurrentStateConflict, decodeBody(t, rec)["code"])
}

func TestHandlers_ModalityEntry(t *testing.T) {
	svc, m := setupTestService()
	m.worklist.On("GetModalityEntry", mock.Anything, "3fa9c21b").Return(&types.ModalityEntry{
		PatientID: "3fa9c21b", ExamType: types.ExamCT, FirstName: "Asha",
	}, nil)

	rec := serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/worklist/3fa9c21b", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CT", decodeBody(t, rec)["examType"])
}

func TestHandlers_ArchivedStudies(t *testing.T) {
	svc, m := setupTestService()
	m.worklist.On("GetArchivedStudies", mock.Anything, "3fa9c21b").Return([]types.ArchivedStudy{
		{SOPID: "5e1c7a2f", StudyInstanceUID: "1.2.840.1"},
		{SOPID: "9b0d3e11", StudyInstanceUID: "1.2.840.2"},
	}, nil)

	rec := serve(svc, httptest.NewRequest(http.MethodGet, "/api/v1/patients/3fa9c21b/studies", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"])
}

func TestHandlers_IngestStudy(t *testing.T) {
	svc, m := setupTestService()
	svc.config.Server.UploadDir = t.TempDir()

	var uploaded string
	m.imaging.On("Ingest", mock.Anything, "3fa9c21b", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			uploaded = args.String(2)
			data, err := os.ReadFile(uploaded)
			require.NoError(t, err)
			assert.Equal(t, "DICM", string(data))
		}).
		Return(&types.IngestResult{PatientID: "3fa9c21b", Status: types.WorklistSuccess, AccessionNumber: "2024-CT-0001"}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("dicomFile", "image.dcm")
	require.NoError(t, err)
	_, err = part.Write([]byte("DICM"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/worklist/3fa9c21b/studies", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := serve(svc, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-CT-0001", decodeBody(t, rec)["accession_number"])
	_, err = os.Stat(uploaded)
	assert.True(t, os.IsNotExist(err), "upload should be removed after ingest")
}

func TestHandlers_IngestStudy_MissingFile(t *testing.T) {
	svc, m := setupTestService()

	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/worklist/3fa9c21b/studies", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m.imaging.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlers_IngestStudy_ArchiveFailure(t *testing.T) {
	svc, m := setupTestService()
	svc.config.Server.UploadDir = t.TempDir()
	m.imaging.On("Ingest", mock.Anything, "3fa9c21b", mock.Anything).
		Return(nil, types.NewExternalToolError("orthanc", "failed to upload file or retrieve ID", nil))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("dicomFile", "image.dcm")
	part.Write([]byte("DICM"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/worklist/3fa9c21b/studies", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := serve(svc, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, types.ErrCodeExternalToolFailure, decodeBody(t, rec)["code"])
}

func TestHandlers_ParseMessage(t *testing.T) {
	svc, _ := setupTestService()

	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/hl7/parse", strings.NewReader("PID|1||x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, types.ErrCodeMalformedMessage, decodeBody(t, rec)["code"])

	raw := "MSH|^~\\&|QuantumCare|Quantum Care Hospital|Selene EHR|SeleneHospital|20240315103000||ADT^A08|a1b2c3|P|2.8\n" +
		"PID|1||3fa9c21b^^^^PI||Menon^Asha|||F\n"
	rec = serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/hl7/parse", strings.NewReader(raw)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A08", decodeBody(t, rec)["trigger"])
}

func TestHandlers_ParseMessage_TooLarge(t *testing.T) {
	svc, _ := setupTestService()

	raw := "MSH|^~\\&|QuantumCare|Quantum Care Hospital|Selene EHR|SeleneHospital|20240315103000||ADT^A08|a1b2c3|P|2.8\n" +
		"PID|1||3fa9c21b^^^^PI||Menon^Asha|||F\n" +
		"NTE|1||" + strings.Repeat("x", maxMessageBytes)
	rec := serve(svc, httptest.NewRequest(http.MethodPost, "/api/v1/hl7/parse", strings.NewReader(raw)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "HL7 message too large", decodeBody(t, rec)["error"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{types.NewMissingFieldError("fname"), http.StatusBadRequest},
		{types.NewNotFoundError("x"), http.StatusNotFound},
		{types.NewConflictError("x", nil), http.StatusConflict},
		{types.NewExternalToolError("dcmodify", "exit status 1", nil), http.StatusBadGateway},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
