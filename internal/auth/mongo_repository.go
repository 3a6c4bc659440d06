package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/redmonkez12/agenda-api/internal/mongodb"
)

type apiKeyDocument struct {
	ID        string    `bson:"_id"`
	Key       string    `bson:"key"`
	Email     string    `bson:"email"`
	ValidFrom time.Time `bson:"validFrom"`
	ExpiresAt time.Time `bson:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt"`
}

type killedTokenDocument struct {
	Token     string    `bson:"_id"`
	CreatedAt time.Time `bson:"createdAt"`
}

// MongoAPIKeyRepository stores API keys in the "apiKey" collection.
type MongoAPIKeyRepository struct {
	coll *mongo.Collection
}

func NewMongoAPIKeyRepository(db *mongo.Database) *MongoAPIKeyRepository {
	return &MongoAPIKeyRepository{coll: db.Collection(mongodb.CollectionAPIKeys)}
}

func (r *MongoAPIKeyRepository) GetByKey(ctx context.Context, key string) (*APIKey, error) {
	return r.findOne(ctx, bson.M{"key": key})
}

func (r *MongoAPIKeyRepository) GetByEmail(ctx context.Context, email string) (*APIKey, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoAPIKeyRepository) findOne(ctx context.Context, filter bson.M) (*APIKey, error) {
	var doc apiKeyDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to find api key: %w", err)
	}
	k := APIKey(doc)
	return &k, nil
}

func (r *MongoAPIKeyRepository) Upsert(ctx context.Context, k *APIKey) error {
	update := bson.M{
		"$set": bson.M{
			"key":       k.Key,
			"validFrom": k.ValidFrom,
			"expiresAt": k.ExpiresAt,
		},
		"$setOnInsert": bson.M{
			"_id":       k.ID,
			"createdAt": k.CreatedAt,
		},
	}

	_, err := r.coll.UpdateOne(ctx, bson.M{"email": k.Email}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert api key: %w", err)
	}
	return nil
}

// MongoLedger keeps killed tokens in the "killedToken" collection, keyed by the token.
type MongoLedger struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoLedger(db *mongo.Database) *MongoLedger {
	return &MongoLedger{coll: db.Collection(mongodb.CollectionKilledTokens), now: time.Now}
}

func (l *MongoLedger) Kill(ctx context.Context, token string) error {
	_, err := l.coll.InsertOne(ctx, killedTokenDocument{Token: token, CreatedAt: l.now()})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to kill token: %w", err)
	}
	return nil
}

func (l *MongoLedger) IsKilled(ctx context.Context, token string) (bool, error) {
	n, err := l.coll.CountDocuments(ctx, bson.M{"_id": token}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check killed token: %w", err)
	}
	return n > 0, nil
}

func (l *MongoLedger) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.coll.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete killed tokens: %w", err)
	}
	return res.DeletedCount, nil
}
