// Package mongodb connects to the document store and prepares the
// collections used by the mongo repository adapters.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	CollectionUsers        = "user"
	CollectionAPIKeys      = "apiKey"
	CollectionKilledTokens = "killedToken"
	CollectionEvents       = "event"
	CollectionAttendees    = "attendee"
	CollectionTasks        = "task"
	CollectionReminders    = "reminder"
)

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client, nil
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	indexes := map[string][]mongo.IndexModel{
		CollectionUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		CollectionAPIKeys: {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		CollectionAttendees: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "eventId", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "eventId", Value: 1}}},
		},
		CollectionEvents: {
			{Keys: bson.D{{Key: "host", Value: 1}}},
			{Keys: bson.D{{Key: "attendeeIds", Value: 1}}},
		},
		CollectionTasks: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "time", Value: 1}}},
		},
		CollectionReminders: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "time", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}

	return nil
}
