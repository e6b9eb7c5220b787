// Package mongostore keeps the knowledge graph in two MongoDB collections:
// kg_entities (unique by name) and kg_relations (unique by subject,
// predicate and object, ordered by an insertion sequence).
package mongostore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"skyquery-bot/internal/kg"
	"skyquery-bot/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	EntitiesCollection  = "kg_entities"
	RelationsCollection = "kg_relations"
	countersCollection  = "kg_counters"
)

type relationDoc struct {
	Subject   string    `bson:"subject"`
	Predicate string    `bson:"predicate"`
	Object    string    `bson:"object"`
	Seq       int64     `bson:"seq"`
	CreatedAt time.Time `bson:"created_at"`
}

type Store struct {
	client    *mongo.Client
	entities  *mongo.Collection
	relations *mongo.Collection
	counters  *mongo.Collection
}

// New opens the graph collections in db and ensures their indexes.
func New(ctx context.Context, client *mongo.Client, dbName string) (*Store, error) {
	db := client.Database(dbName)
	s := &Store{
		client:    client,
		entities:  db.Collection(EntitiesCollection),
		relations: db.Collection(RelationsCollection),
		counters:  db.Collection(countersCollection),
	}
	if err := s.createIndexes(ctx); err != nil {
		return nil, kg.Unavailable("create indexes", err)
	}
	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.entities.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = s.relations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "subject", Value: 1}, {Key: "predicate", Value: 1}, {Key: "object", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "seq", Value: 1}}},
	})
	return err
}

func (s *Store) UpsertEntity(ctx context.Context, name, label string) error {
	_, err := s.entities.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$setOnInsert": bson.M{
			"name":       name,
			"label":      label,
			"created_at": time.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	// a concurrent upsert of the same name won the race
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return kg.Unavailable("upsert entity", err)
	}
	return nil
}

func (s *Store) UpsertRelation(ctx context.Context, subject, predicate, object string) error {
	names := []string{subject}
	if object != subject {
		names = append(names, object)
	}
	n, err := s.entities.CountDocuments(ctx, bson.M{"name": bson.M{"$in": names}})
	if err != nil {
		return kg.Unavailable("check relation endpoints", err)
	}
	if n < int64(len(names)) {
		return nil
	}

	filter := bson.M{"subject": subject, "predicate": predicate, "object": object}
	if err := s.relations.FindOne(ctx, filter).Err(); err == nil {
		return nil
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return kg.Unavailable("find relation", err)
	}

	seq, err := s.nextSeq(ctx)
	if err != nil {
		return kg.Unavailable("allocate relation seq", err)
	}

	_, err = s.relations.UpdateOne(ctx, filter,
		bson.M{"$setOnInsert": relationDoc{
			Subject:   subject,
			Predicate: predicate,
			Object:    object,
			Seq:       seq,
			CreatedAt: time.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return kg.Unavailable("upsert relation", err)
	}
	return nil
}

func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": RelationsCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.Seq, err
}

func (s *Store) FindOutgoingEdge(ctx context.Context, keyword string) (*models.Edge, error) {
	filter := bson.M{"subject": primitive.Regex{Pattern: regexp.QuoteMeta(keyword), Options: "i"}}
	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: 1}})

	var doc relationDoc
	err := s.relations.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, kg.Unavailable("find outgoing edge", err)
	}
	return &models.Edge{Subject: doc.Subject, Predicate: doc.Predicate, Object: doc.Object}, nil
}

// Counts returns the number of stored entities and relations.
func (s *Store) Counts(ctx context.Context) (entities, relations int64, err error) {
	if entities, err = s.entities.EstimatedDocumentCount(ctx); err != nil {
		return 0, 0, kg.Unavailable("count entities", err)
	}
	if relations, err = s.relations.EstimatedDocumentCount(ctx); err != nil {
		return 0, 0, kg.Unavailable("count relations", err)
	}
	return entities, relations, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
