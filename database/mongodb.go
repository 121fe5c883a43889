package database

import (
	"context"
	"log"
	"time"

	"github.com/smartfarmlink/smartfarm-backend-go/config"
	"github.com/smartfarmlink/smartfarm-backend-go/errs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectDB(cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	// Ping the database
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, err
	}

	log.Println("🗄️ Connected to MongoDB!")
	return client, nil
}

// MongoStore keeps every document path "collection/id" as a Mongo document
// {_id: id, version, data, updatedAt} in the collection of the same name.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

type mongoDocument struct {
	ID      string   `bson:"_id"`
	Version int64    `bson:"version"`
	Data    bson.Raw `bson:"data"`
}

func (s *MongoStore) Get(ctx context.Context, path string) (Document, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return Document{}, errs.Validation("%v", err)
	}

	var doc mongoDocument
	err = s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, errs.Storage("get "+path, err)
	}

	return Document{
		Exists:  true,
		Version: doc.Version,
		decode: func(v any) error {
			return bson.Unmarshal(doc.Data, v)
		},
	}, nil
}

func (s *MongoStore) Set(ctx context.Context, path string, value any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return errs.Validation("%v", err)
	}

	update := bson.M{
		"$set": bson.M{
			"data":      value,
			"updatedAt": time.Now(),
		},
		"$inc": bson.M{"version": 1},
	}
	_, err = s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return errs.Storage("set "+path, err)
	}
	return nil
}

func (s *MongoStore) CompareAndSet(ctx context.Context, path string, expectedVersion int64, value any) (int64, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return 0, errs.Validation("%v", err)
	}
	coll := s.db.Collection(collection)

	if expectedVersion == 0 {
		_, err := coll.InsertOne(ctx, bson.M{
			"_id":       id,
			"version":   int64(1),
			"data":      value,
			"updatedAt": time.Now(),
		})
		if mongo.IsDuplicateKeyError(err) {
			return 0, errs.Conflict(path)
		}
		if err != nil {
			return 0, errs.Storage("create "+path, err)
		}
		return 1, nil
	}

	next := expectedVersion + 1
	result, err := coll.UpdateOne(ctx,
		bson.M{"_id": id, "version": expectedVersion},
		bson.M{"$set": bson.M{
			"data":      value,
			"version":   next,
			"updatedAt": time.Now(),
		}},
	)
	if err != nil {
		return 0, errs.Storage("update "+path, err)
	}
	if result.MatchedCount == 0 {
		return 0, errs.Conflict(path)
	}
	return next, nil
}
