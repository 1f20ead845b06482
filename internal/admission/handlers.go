package admission

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

const (
	maxMessageBytes = 1 << 20
	maxUploadBytes  = 512 << 20
)

// Router returns a mux router carrying the admission, worklist and HL7 routes
func (s *Service) Router() *mux.Router {
	router := mux.NewRouter()
	s.setupRoutes(router)
	return router
}

// setupRoutes configures HTTP routes for the admission service
func (s *Service) setupRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Patient lifecycle
	api.HandleFunc("/patients", s.registerPatientHandler).Methods("POST")
	api.HandleFunc("/patients/{pid}", s.getPatientHandler).Methods("GET")
	api.HandleFunc("/patients/{pid}", s.editPatientHandler).Methods("PUT")
	api.HandleFunc("/patients/{pid}/visits", s.submitVisitHandler).Methods("POST")
	api.HandleFunc("/patients/{pid}/transfers", s.transferPatientHandler).Methods("POST")
	api.HandleFunc("/patients/{pid}/discharge", s.dischargePatientHandler).Methods("POST")
	api.HandleFunc("/patients/{pid}/studies", s.getArchivedStudiesHandler).Methods("GET")

	// Modality worklist
	api.HandleFunc("/worklist/{pid}", s.getModalityEntryHandler).Methods("GET")
	api.HandleFunc("/worklist/{pid}/studies", s.ingestStudyHandler).Methods("POST")

	// HL7
	api.HandleFunc("/hl7/parse", s.parseMessageHandler).Methods("POST")

	s.logger.Info("Admission service routes configured")
}

func (s *Service) registerPatientHandler(w http.ResponseWriter, r *http.Request) {
	var patient types.Patient
	if err := json.NewDecoder(r.Body).Decode(&patient); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid patient details", err)
		return
	}

	result, err := s.RegisterPatient(r.Context(), &patient)
	if err != nil {
		s.writeServiceError(w, "Failed to register patient", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, result)
}

func (s *Service) getPatientHandler(w http.ResponseWriter, r *http.Request) {
	record, err := s.GetPatient(r.Context(), mux.Vars(r)["pid"])
	if err != nil {
		s.writeServiceError(w, "Failed to get patient", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, record)
}

func (s *Service) editPatientHandler(w http.ResponseWriter, r *http.Request) {
	var updates types.PatientUpdates
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := s.EditPatient(r.Context(), mux.Vars(r)["pid"], &updates)
	if err != nil {
		s.writeServiceError(w, "Failed to update patient", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, result)
}

func (s *Service) submitVisitHandler(w http.ResponseWriter, r *http.Request) {
	var req types.VisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := s.SubmitVisit(r.Context(), mux.Vars(r)["pid"], &req)
	if err != nil {
		s.writeServiceError(w, "Failed to submit patient details", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, result)
}

func (s *Service) transferPatientHandler(w http.ResponseWriter, r *http.Request) {
	var req types.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := s.TransferPatient(r.Context(), mux.Vars(r)["pid"], &req)
	if err != nil {
		s.writeServiceError(w, "Failed to transfer patient", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, result)
}

func (s *Service) dischargePatientHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.DischargePatient(r.Context(), mux.Vars(r)["pid"])
	if err != nil {
		s.writeServiceError(w, "Failed to discharge patient", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, result)
}

func (s *Service) getArchivedStudiesHandler(w http.ResponseWriter, r *http.Request) {
	studies, err := s.worklist.GetArchivedStudies(r.Context(), mux.Vars(r)["pid"])
	if err != nil {
		s.writeServiceError(w, "Failed to get archived studies", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"studies": studies,
		"count":   len(studies),
	})
}

func (s *Service) getModalityEntryHandler(w http.ResponseWriter, r *http.Request) {
	entry, err := s.worklist.GetModalityEntry(r.Context(), mux.Vars(r)["pid"])
	if err != nil {
		s.writeServiceError(w, "Failed to get worklist entry", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, entry)
}

// ingestStudyHandler accepts a multipart upload in the dicomFile field
func (s *Service) ingestStudyHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("dicomFile")
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "DICOM file is required", err)
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp(s.config.Server.UploadDir, "upload-*.dcm")
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to store upload", err)
		return
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, file)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to store upload", err)
		return
	}

	result, err := s.imaging.Ingest(r.Context(), mux.Vars(r)["pid"], tmp.Name())
	if err != nil {
		s.writeServiceError(w, "Failed to archive study", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, result)
}

func (s *Service) parseMessageHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, http.StatusRequestEntityTooLarge, "HL7 message too large", err)
			return
		}
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	event, err := s.ParseMessage(r.Context(), string(body))
	if err != nil {
		s.writeServiceError(w, "Failed to parse HL7 message", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, event)
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	entry := s.logger.WithField("status", statusCode)
	if err != nil {
		entry = entry.WithError(err)
	}
	if statusCode >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Warn(message)
	}

	response := map[string]interface{}{
		"error":  message,
		"status": statusCode,
	}

	var ce *types.CoreError
	if errors.As(err, &ce) {
		response["code"] = ce.Code
		response["details"] = ce.Message
	} else if err != nil && statusCode < http.StatusInternalServerError {
		response["details"] = err.Error()
	}

	s.writeJSONResponse(w, statusCode, response)
}

// writeServiceError maps a service error to its HTTP status
func (s *Service) writeServiceError(w http.ResponseWriter, message string, err error) {
	s.writeErrorResponse(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch types.ErrorTypeOf(err) {
	case types.ErrorTypeValidation:
		return http.StatusBadRequest
	case types.ErrorTypeNotFound:
		return http.StatusNotFound
	case types.ErrorTypeConflict:
		return http.StatusConflict
	case types.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
