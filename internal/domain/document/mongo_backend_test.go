package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
	"github.com/IcodeNet/employee-scheduling-api/pkg/mongox"
)

// setupTestMongo connects to MONGODB_URI or skips
func setupTestMongo(t *testing.T) *mongo.Client {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI environment variable not set, skipping MongoDB integration tests")
	}

	client, err := mongox.Connect(context.Background(), uri, 5*time.Second, logger.NewNop())
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { _ = mongox.Disconnect(client, 5*time.Second) })
	return client
}

func TestMongoBackend_Contract(t *testing.T) {
	client := setupTestMongo(t)
	db := client.Database(fmt.Sprintf("documents_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = db.Drop(context.Background()) })

	n := 0
	runRepositoryContract(t, func(t *testing.T) Backend {
		n++
		backend := NewMongoBackend(db.Collection(fmt.Sprintf("contract_%d", n)))
		require.NoError(t, backend.EnsureIndexes(context.Background()))
		return backend
	})
}

func TestMongoBackend_NextCASIsMonotonic(t *testing.T) {
	fixed := time.Unix(0, 100)
	backend := &MongoBackend{now: func() time.Time { return fixed }}

	assert.Equal(t, int64(100), backend.nextCAS(0))
	assert.Equal(t, int64(101), backend.nextCAS(100))
	assert.Equal(t, int64(501), backend.nextCAS(500))
}

func TestMongoDocument_RecordNormalizesValues(t *testing.T) {
	d := mongoDocument{ID: "a", CAS: 3, Doc: map[string]interface{}{
		"type":  "setting",
		"count": int32(2),
		"tags":  []interface{}{"x"},
	}}

	rec, err := d.record()
	require.NoError(t, err)
	assert.Equal(t, Version(3), rec.Version)
	assert.Equal(t, float64(2), rec.Body["count"])
	assert.Equal(t, []interface{}{"x"}, rec.Body["tags"])
}

func TestUnconfirmedWrite(t *testing.T) {
	wcTimeout := mongo.WriteException{
		WriteConcernError: &mongo.WriteConcernError{Code: 64, Name: "WriteConcernFailed", Message: "waiting for replication timed out"},
	}
	err := unconfirmedWrite(wcTimeout)
	assert.ErrorIs(t, err, ErrDurabilityUnconfirmed)
	assert.True(t, IsDurabilityUnconfirmed(translate("insert", "setting", "s1", err)))
	assert.True(t, IsBackend(translate("insert", "setting", "s1", err)))

	writeFailed := mongo.WriteException{
		WriteErrors:       mongo.WriteErrors{{Code: 121, Message: "document failed validation"}},
		WriteConcernError: &mongo.WriteConcernError{Code: 64, Message: "waiting for replication timed out"},
	}
	assert.NotErrorIs(t, unconfirmedWrite(writeFailed), ErrDurabilityUnconfirmed)

	plain := errors.New("connection reset")
	assert.Same(t, plain, unconfirmedWrite(plain))
}
