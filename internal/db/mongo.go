package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection provides generic CRUD operations over one MongoDB collection.
// Documents use caller-assigned string ids so that client-generated message
// ids (optimistic echoes) survive round trips unchanged.
type Collection[T any] struct {
	col *mongo.Collection
}

// NewCollection creates a generic collection wrapper.
func NewCollection[T any](database *mongo.Database, name string) *Collection[T] {
	return &Collection[T]{col: database.Collection(name)}
}

func OpenConnection(uri string, database string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return client.Database(database), nil
}

// Insert stores a new document.
func (c *Collection[T]) Insert(ctx context.Context, document T) error {
	_, err := c.col.InsertOne(ctx, document)
	return err
}

// FindByID finds a document by its string id. Returns (nil, nil) when the
// document does not exist.
func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var result T
	err := c.col.FindOne(ctx, bson.M{"_id": id}).Decode(&result)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindOne finds a single document matching the filter, (nil, nil) when none
// matches.
func (c *Collection[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	var result T
	err := c.col.FindOne(ctx, filter).Decode(&result)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindAll finds all documents matching the filter, sorted by sortBy when it
// is non-empty.
func (c *Collection[T]) FindAll(ctx context.Context, filter bson.M, sortBy string, descending bool) ([]T, error) {
	opts := options.Find()
	if sortBy != "" {
		order := 1
		if descending {
			order = -1
		}
		opts.SetSort(bson.D{{Key: sortBy, Value: order}})
	}

	cursor, err := c.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []T
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateByID applies a $set update to one document.
func (c *Collection[T]) UpdateByID(ctx context.Context, id string, update bson.M) (int64, error) {
	res, err := c.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// UpdateMany applies a $set update to every document matching the filter.
func (c *Collection[T]) UpdateMany(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	res, err := c.col.UpdateMany(ctx, filter, bson.M{"$set": update})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Upsert replaces the document matching the filter, inserting when absent.
func (c *Collection[T]) Upsert(ctx context.Context, filter bson.M, document T) error {
	opts := options.Replace().SetUpsert(true)
	_, err := c.col.ReplaceOne(ctx, filter, document, opts)
	return err
}

// DeleteByID removes one document; deleted reports whether a document
// actually existed.
func (c *Collection[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := c.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// DeleteMany removes every document matching the filter and returns how many
// went away.
func (c *Collection[T]) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.col.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Count counts documents matching the filter.
func (c *Collection[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	return c.col.CountDocuments(ctx, filter)
}
