package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

func namespace(mt *mtest.T) string {
	return mt.DB.Name() + "." + mt.Coll.Name()
}

func patientDoc(visit int32, department string) bson.D {
	return bson.D{
		{Key: "pid", Value: "3fa9c21b"},
		{Key: "pv", Value: visit},
		{Key: "fname", Value: "Asha"},
		{Key: "lname", Value: "Menon"},
		{Key: "gender", Value: "female"},
		{Key: "patientType", Value: types.PatientTypeInpatient},
		{Key: "department", Value: department},
	}
}

func newTestStore(mt *mtest.T) *MongoPatientStore {
	s := NewMongoPatientStore(mt.Coll)
	s.now = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }
	return s
}

func TestMongoPatientStore_Get(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, patientDoc(2, "Cardiology")))

		p, err := newTestStore(mt).Get(context.Background(), "3fa9c21b")

		require.NoError(t, err)
		assert.Equal(t, "Asha", p.FirstName)
		assert.Equal(t, 2, p.Visit)
		assert.Equal(t, "Cardiology", p.Department)
	})

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := newTestStore(mt).Get(context.Background(), "deadbeef")

		assert.True(t, errors.Is(err, types.ErrNotFound))
	})
}

func TestMongoPatientStore_EmailExists(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("taken", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "pid", Value: "3fa9c21b"}}))

		exists, err := newTestStore(mt).EmailExists(context.Background(), "asha@example.com")

		require.NoError(t, err)
		assert.True(t, exists)
	})

	mt.Run("free", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		exists, err := newTestStore(mt).EmailExists(context.Background(), "new@example.com")

		require.NoError(t, err)
		assert.False(t, exists)
	})

	mt.Run("server error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 13, Name: "Unauthorized", Message: "not authorized",
		}))

		_, err := newTestStore(mt).EmailExists(context.Background(), "asha@example.com")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to look up email")
	})
}

func TestMongoPatientStore_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("stamps timestamps", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		p := registeredPatient(types.PatientTypeOutpatient, "Cardiology")

		require.NoError(t, newTestStore(mt).Create(context.Background(), p))

		assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), p.CreatedAt)
		assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	})

	mt.Run("write error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))

		err := newTestStore(mt).Create(context.Background(), registeredPatient(types.PatientTypeOutpatient, "Cardiology"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert patient document")
	})
}

func TestMongoPatientStore_BeginVisit(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("increments visit", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: patientDoc(3, "Surgery")},
		))

		p, err := newTestStore(mt).BeginVisit(context.Background(), "3fa9c21b", &types.VisitRequest{
			PatientType: types.PatientTypeEmergency, Department: "Surgery",
		})

		require.NoError(t, err)
		assert.Equal(t, 3, p.Visit)

		cmd := mt.GetStartedEvent().Command
		_, err = cmd.LookupErr("update", "$inc", "pv")
		assert.NoError(t, err)
		assert.Equal(t, "Surgery", cmd.Lookup("update", "$set", "department").StringValue())
	})

	mt.Run("unknown patient", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		_, err := newTestStore(mt).BeginVisit(context.Background(), "deadbeef", &types.VisitRequest{})

		assert.True(t, errors.Is(err, types.ErrNotFound))
	})
}

func TestMongoPatientStore_MoveDepartment(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns prior document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: patientDoc(2, "Cardiology")},
		))

		prior, err := newTestStore(mt).MoveDepartment(context.Background(), "3fa9c21b", &types.TransferRequest{
			Department: types.DepartmentRadiology, Doctor: "Dr. Varghese",
		})

		require.NoError(t, err)
		assert.Equal(t, "Cardiology", prior.Department)

		cmd := mt.GetStartedEvent().Command
		assert.False(t, cmd.Lookup("new").Boolean())
		_, err = cmd.LookupErr("update", "$inc")
		assert.Error(t, err, "transfers must not start a new visit")
	})
}

func TestMongoPatientStore_Update(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sets only supplied fields", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: patientDoc(1, "Cardiology")},
		))
		city := "Thrissur"
		gender := "F"

		_, err := newTestStore(mt).Update(context.Background(), "3fa9c21b", &types.PatientUpdates{
			City: &city, Gender: &gender,
		})
		require.NoError(t, err)

		set := mt.GetStartedEvent().Command.Lookup("update", "$set").Document()
		assert.Equal(t, "Thrissur", set.Lookup("city").StringValue())
		assert.Equal(t, "female", set.Lookup("gender").StringValue())
		_, err = set.LookupErr("fname")
		assert.Error(t, err)
	})
}

func TestMongoPatientStore_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("removes document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		require.NoError(t, newTestStore(mt).Delete(context.Background(), "3fa9c21b"))

		cmd := mt.GetStartedEvent().Command
		assert.Equal(t, "3fa9c21b", cmd.Lookup("deletes", "0", "q", "pid").StringValue())
	})

	mt.Run("already gone", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := newTestStore(mt).Delete(context.Background(), "3fa9c21b")

		assert.True(t, errors.Is(err, types.ErrNotFound))
	})
}

func TestMongoPatientStore_Restore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("replaces document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1},
		))
		prior := registeredPatient(types.PatientTypeInpatient, "Cardiology")

		require.NoError(t, newTestStore(mt).Restore(context.Background(), prior))

		update := mt.GetStartedEvent().Command.Lookup("updates", "0", "u").Document()
		assert.Equal(t, "Cardiology", update.Lookup("department").StringValue())
		assert.Equal(t, "3fa9c21b", update.Lookup("pid").StringValue())
	})

	mt.Run("missing document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0},
		))

		err := newTestStore(mt).Restore(context.Background(), registeredPatient(types.PatientTypeInpatient, "Cardiology"))

		assert.True(t, errors.Is(err, types.ErrNotFound))
	})
}
