package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/redmonkez12/agenda-api/internal/mongodb"
)

func TestMongoAPIKeyRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("upsert keys on email", func(mt *mtest.T) {
		repo := NewMongoAPIKeyRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 0}))

		key := &APIKey{
			ID:        "key-1",
			Key:       testAPIKey,
			Email:     "client@example.com",
			ValidFrom: testNow,
			ExpiresAt: testNow.Add(24 * time.Hour),
			CreatedAt: testNow,
		}
		require.NoError(mt, repo.Upsert(context.Background(), key))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, mongodb.CollectionAPIKeys, evt.Command.Lookup("update").StringValue())

		update := evt.Command.Lookup("updates", "0")
		assert.Equal(mt, "client@example.com", update.Document().Lookup("q", "email").StringValue())
		assert.True(mt, update.Document().Lookup("upsert").Boolean())
		assert.Equal(mt, testAPIKey, update.Document().Lookup("u", "$set", "key").StringValue())
		assert.Equal(mt, "key-1", update.Document().Lookup("u", "$setOnInsert", "_id").StringValue())
		assert.True(mt, testNow.Equal(update.Document().Lookup("u", "$setOnInsert", "createdAt").Time()))
		_, err := update.Document().LookupErr("u", "$set", "_id")
		assert.Error(mt, err, "a re-issued key keeps its id")
	})

	mt.Run("unknown key", func(mt *mtest.T) {
		repo := NewMongoAPIKeyRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"."+mongodb.CollectionAPIKeys, mtest.FirstBatch))

		_, err := repo.GetByKey(context.Background(), "NoSuchKey1234567")
		assert.ErrorIs(mt, err, ErrAPIKeyNotFound)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "NoSuchKey1234567", evt.Command.Lookup("filter", "key").StringValue())
	})
}

func TestMongoLedger(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("kill twice", func(mt *mtest.T) {
		ledger := NewMongoLedger(mt.DB)
		ledger.now = func() time.Time { return testNow }
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
		)

		require.NoError(mt, ledger.Kill(context.Background(), "tok"))
		require.NoError(mt, ledger.Kill(context.Background(), "tok"), "killing a killed token is not an error")

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, mongodb.CollectionKilledTokens, evt.Command.Lookup("insert").StringValue())
		assert.Equal(mt, "tok", evt.Command.Lookup("documents", "0", "_id").StringValue())
		assert.True(mt, testNow.Equal(evt.Command.Lookup("documents", "0", "createdAt").Time()))
	})

	mt.Run("is killed counts by token", func(mt *mtest.T) {
		ledger := NewMongoLedger(mt.DB)
		ns := mt.DB.Name() + "." + mongodb.CollectionKilledTokens
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "_id", Value: 1}, {Key: "n", Value: 1}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)

		killed, err := ledger.IsKilled(context.Background(), "tok")
		require.NoError(mt, err)
		assert.True(mt, killed)

		killed, err = ledger.IsKilled(context.Background(), "other")
		require.NoError(mt, err)
		assert.False(mt, killed)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "aggregate", evt.CommandName)
		assert.Equal(mt, "tok", evt.Command.Lookup("pipeline", "0", "$match", "_id").StringValue())
	})

	mt.Run("sweep", func(mt *mtest.T) {
		ledger := NewMongoLedger(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}))

		n, err := ledger.DeleteCreatedBefore(context.Background(), testNow)
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), n)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.True(mt, testNow.Equal(evt.Command.Lookup("deletes", "0", "q", "createdAt", "$lt").Time()))
	})
}
