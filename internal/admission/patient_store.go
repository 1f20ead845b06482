package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// MongoPatientStore keeps patient registration documents keyed by pid
type MongoPatientStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoPatientStore creates a patient store over the given collection
func NewMongoPatientStore(collection *mongo.Collection) *MongoPatientStore {
	return &MongoPatientStore{collection: collection, now: time.Now}
}

// Create inserts a new registration document
func (s *MongoPatientStore) Create(ctx context.Context, patient *types.Patient) error {
	now := s.now()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	if _, err := s.collection.InsertOne(ctx, patient); err != nil {
		return fmt.Errorf("failed to insert patient document: %w", err)
	}
	return nil
}

// Delete removes a registration document
func (s *MongoPatientStore) Delete(ctx context.Context, patientID string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"pid": patientID})
	if err != nil {
		return fmt.Errorf("failed to delete patient %s: %w", patientID, err)
	}
	if res.DeletedCount == 0 {
		return types.NewNotFoundError(fmt.Sprintf("patient %s not found", patientID))
	}
	return nil
}

// Restore replaces the stored document with patient, as read earlier
func (s *MongoPatientStore) Restore(ctx context.Context, patient *types.Patient) error {
	res, err := s.collection.ReplaceOne(ctx, bson.M{"pid": patient.PID}, patient)
	if err != nil {
		return fmt.Errorf("failed to restore patient %s: %w", patient.PID, err)
	}
	if res.MatchedCount == 0 {
		return types.NewNotFoundError(fmt.Sprintf("patient %s not found", patient.PID))
	}
	return nil
}

// Get returns the registration document for a patient
func (s *MongoPatientStore) Get(ctx context.Context, patientID string) (*types.Patient, error) {
	var p types.Patient
	err := s.collection.FindOne(ctx, bson.M{"pid": patientID}).Decode(&p)
	if err != nil {
		return nil, s.wrap(err, patientID, "get")
	}
	return &p, nil
}

// EmailExists reports whether a registration already uses email
func (s *MongoPatientStore) EmailExists(ctx context.Context, email string) (bool, error) {
	opts := options.FindOne().SetProjection(bson.M{"pid": 1})
	err := s.collection.FindOne(ctx, bson.M{"email": email}, opts).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return false, nil
	default:
		return false, fmt.Errorf("failed to look up email: %w", err)
	}
}

// Update applies demographic changes and returns the updated document
func (s *MongoPatientStore) Update(ctx context.Context, patientID string, updates *types.PatientUpdates) (*types.Patient, error) {
	set := bson.M{"updatedAt": s.now()}
	fields := []struct {
		key   string
		value *string
	}{
		{"fname", updates.FirstName},
		{"lname", updates.LastName},
		{"bdate", updates.BirthDate},
		{"addressLine1", updates.AddressLine1},
		{"addressLine2", updates.AddressLine2},
		{"city", updates.City},
		{"state", updates.State},
		{"zipCode", updates.ZipCode},
		{"phoneNumber", updates.PhoneNumber},
		{"email", updates.Email},
		{"patientType", updates.PatientType},
		{"admitreason", updates.AdmitReason},
	}
	for _, f := range fields {
		if f.value != nil {
			set[f.key] = *f.value
		}
	}
	if updates.Gender != nil {
		set["gender"] = types.GenderFromCode(types.GenderCode(*updates.Gender))
	}

	return s.findAndModify(ctx, patientID, bson.M{"$set": set}, options.After, "update")
}

// BeginVisit increments the visit number and records the new visit details
func (s *MongoPatientStore) BeginVisit(ctx context.Context, patientID string, req *types.VisitRequest) (*types.Patient, error) {
	update := bson.M{
		"$inc": bson.M{"pv": 1},
		"$set": bson.M{
			"patientType":   req.PatientType,
			"department":    req.Department,
			"doctor":        req.Doctor,
			"admitreason":   req.AdmitReason,
			"examType":      req.ExamType,
			"preferredDate": req.PreferredDate,
			"preferredTime": req.PreferredTime,
			"updatedAt":     s.now(),
		},
	}
	return s.findAndModify(ctx, patientID, update, options.After, "begin visit")
}

// MoveDepartment records a transfer and returns the document as it was
// before, which carries the prior department.
func (s *MongoPatientStore) MoveDepartment(ctx context.Context, patientID string, req *types.TransferRequest) (*types.Patient, error) {
	update := bson.M{
		"$set": bson.M{
			"department":    req.Department,
			"doctor":        req.Doctor,
			"examType":      req.ExamType,
			"preferredDate": req.PreferredDate,
			"preferredTime": req.PreferredTime,
			"updatedAt":     s.now(),
		},
	}
	return s.findAndModify(ctx, patientID, update, options.Before, "transfer")
}

func (s *MongoPatientStore) findAndModify(ctx context.Context, patientID string, update bson.M, doc options.ReturnDocument, op string) (*types.Patient, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(doc)

	var p types.Patient
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"pid": patientID}, update, opts).Decode(&p)
	if err != nil {
		return nil, s.wrap(err, patientID, op)
	}
	return &p, nil
}

func (s *MongoPatientStore) wrap(err error, patientID, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.NewNotFoundError(fmt.Sprintf("patient %s not found", patientID))
	}
	return fmt.Errorf("failed to %s patient %s: %w", op, patientID, err)
}
