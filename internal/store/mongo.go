package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledgebot/internal/database"
)

// MongoStore keeps each table in its own collection
type MongoStore struct {
	db *database.MongoDB
}

// NewMongoStore creates a record store over db
func NewMongoStore(db *database.MongoDB) *MongoStore {
	return &MongoStore{db: db}
}

// Query returns documents whose fields equal every filter value
func (s *MongoStore) Query(ctx context.Context, table string, filter Fields) ([]Record, error) {
	if err := validateFilter(table, filter); err != nil {
		return nil, err
	}

	query := bson.M{}
	for k, v := range filter {
		query[k] = v
	}

	cursor, err := s.db.Collection(table).Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer cursor.Close(ctx)

	var records []Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", table, err)
		}
		records = append(records, recordFromDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return records, nil
}

// Create inserts fields as a new document
func (s *MongoStore) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Record{}, err
	}

	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	oid := primitive.NewObjectID()
	doc["_id"] = oid

	if _, err := s.db.Collection(table).InsertOne(ctx, doc); err != nil {
		return Record{}, fmt.Errorf("failed to create %s record: %w", table, err)
	}
	return Record{ID: oid.Hex(), Fields: copyFields(fields)}, nil
}

// Update sets fields on the document with id and returns the result
func (s *MongoStore) Update(ctx context.Context, table, id string, fields Fields) (Record, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Record{}, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Record{}, fmt.Errorf("invalid record id %q: %w", id, ErrRecordNotFound)
	}

	set := bson.M{}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		set[k] = v
	}

	var updated bson.M
	err = s.db.Collection(table).FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to update %s record: %w", table, err)
	}
	return recordFromDocument(updated), nil
}

// Ping checks the connection
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func recordFromDocument(doc bson.M) Record {
	rec := Record{Fields: Fields{}}
	for k, v := range doc {
		if k == "_id" {
			switch id := v.(type) {
			case primitive.ObjectID:
				rec.ID = id.Hex()
			default:
				rec.ID = fmt.Sprint(id)
			}
			continue
		}
		rec.Fields[k] = normalizeBSON(v)
	}
	return rec
}

// normalizeBSON maps driver types onto the plain values Fields promises
func normalizeBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = normalizeBSON(item)
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = normalizeBSON(item)
		}
		return out
	case primitive.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	case primitive.ObjectID:
		return t.Hex()
	}
	return v
}

func copyFields(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
