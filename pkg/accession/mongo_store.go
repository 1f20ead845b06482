package accession

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// MongoStore keeps one document per modality, {_id: "CT", seq: n}, and
// increments it with a single findAndModify.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a counter store over the given collection
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

type counterDocument struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// Increment implements CounterStore
func (s *MongoStore) Increment(ctx context.Context, modality types.ModalityCode) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDocument
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": string(modality)},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s counter: %w", modality, err)
	}
	return doc.Seq, nil
}
