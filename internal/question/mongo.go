package question

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSource serves questions from a MongoDB collection.
type MongoSource struct {
	collection *mongo.Collection
	answered   AnsweredLister
}

// ConnectMongo dials uri and returns a client. The caller disconnects it.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// NewMongoSource reads from database.questions.
func NewMongoSource(client *mongo.Client, database string, answered AnsweredLister) *MongoSource {
	return &MongoSource{
		collection: client.Database(database).Collection("questions"),
		answered:   answered,
	}
}

func (s *MongoSource) Get(ctx context.Context, id string) (*Question, error) {
	var q Question
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&q)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find question %s: %w", id, err)
	}
	return &q, nil
}

// RandomUnanswered samples one matching question with $sample.
func (s *MongoSource) RandomUnanswered(ctx context.Context, userID string, f Filter) (string, error) {
	match := filterDoc(f)
	if s.answered != nil {
		ids, err := s.answered.AnsweredQuestionIDs(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("list answered questions: %w", err)
		}
		if len(ids) > 0 {
			match["_id"] = bson.M{"$nin": ids}
		}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: 1}}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return "", fmt.Errorf("sample question: %w", err)
	}
	defer cursor.Close(ctx)

	var picked []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &picked); err != nil {
		return "", fmt.Errorf("decode sampled question: %w", err)
	}
	if len(picked) == 0 {
		return "", ErrNoneAvailable
	}
	return picked[0].ID, nil
}

// Insert upserts questions, keyed by ID.
func (s *MongoSource) Insert(ctx context.Context, qs ...*Question) error {
	for _, q := range qs {
		if err := q.Validate(); err != nil {
			return err
		}
		_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": q.ID}, q, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("upsert question %s: %w", q.ID, err)
		}
	}
	return nil
}

func filterDoc(f Filter) bson.M {
	m := bson.M{}
	add := func(field string, values []string) {
		if len(values) > 0 {
			m[field] = bson.M{"$in": values}
		}
	}
	add("topic", f.Topics)
	add("system", f.Systems)
	add("category", f.Categories)
	add("difficulty", f.Difficulties)
	add("step", f.Steps)
	return m
}
