package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// mongoDocument is the stored shape: metadata at the top level, the body
// (fields plus type) under "doc"
type mongoDocument struct {
	ID  string `bson:"_id"`
	CAS int64  `bson:"cas"`
	Doc bson.M `bson:"doc"`
}

// MongoBackend stores documents in a single MongoDB collection
type MongoBackend struct {
	col *mongo.Collection
	now func() time.Time
}

// NewMongoBackend creates a backend on col. Call EnsureIndexes once at startup.
func NewMongoBackend(col *mongo.Collection) *MongoBackend {
	return &MongoBackend{col: col, now: time.Now}
}

// EnsureIndexes creates the index the type query relies on
func (m *MongoBackend) EnsureIndexes(ctx context.Context) error {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "doc.type", Value: 1}},
		Options: options.Index().SetName("doc_type"),
	}
	if _, err := m.col.Indexes().CreateOne(ctx, idx); err != nil {
		return fmt.Errorf("create doc.type index: %w", err)
	}
	return nil
}

func (m *MongoBackend) Get(ctx context.Context, id string) (Record, error) {
	var d mongoDocument
	if err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Record{}, ErrKeyNotFound
		}
		return Record{}, err
	}
	return d.record()
}

func (m *MongoBackend) Query(ctx context.Context, docType string) ([]Record, error) {
	cur, err := m.col.Find(ctx, bson.M{"doc.type": docType})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Record{}
	for cur.Next(ctx) {
		var d mongoDocument
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		rec, err := d.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoBackend) Insert(ctx context.Context, id string, body Fields, d Durability) (Version, error) {
	col, err := m.collection(d)
	if err != nil {
		return 0, err
	}

	cas := m.nextCAS(0)
	_, err = col.InsertOne(ctx, mongoDocument{ID: id, CAS: cas, Doc: bson.M(body)})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, ErrKeyExists
		}
		return 0, unconfirmedWrite(err)
	}
	return Version(cas), nil
}

func (m *MongoBackend) Replace(ctx context.Context, id string, body Fields, expected Version, d Durability) (Version, error) {
	col, err := m.collection(d)
	if err != nil {
		return 0, err
	}

	cas := m.nextCAS(int64(expected))
	filter := bson.M{"_id": id, "cas": int64(expected)}
	res, err := col.ReplaceOne(ctx, filter, mongoDocument{ID: id, CAS: cas, Doc: bson.M(body)})
	if err != nil {
		return 0, unconfirmedWrite(err)
	}
	if res.MatchedCount == 0 {
		n, err := m.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrKeyNotFound
		}
		return 0, ErrCASMismatch
	}
	return Version(cas), nil
}

func (m *MongoBackend) Remove(ctx context.Context, id string, d Durability) error {
	col, err := m.collection(d)
	if err != nil {
		return err
	}

	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return unconfirmedWrite(err)
	}
	if res.DeletedCount == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (m *MongoBackend) Ping(ctx context.Context) error {
	return m.col.Database().Client().Ping(ctx, nil)
}

// nextCAS issues a wall-clock based version that is always above prev, so a
// removed and re-inserted id never sees an old version again
func (m *MongoBackend) nextCAS(prev int64) int64 {
	cas := m.now().UnixNano()
	if cas <= prev {
		cas = prev + 1
	}
	return cas
}

func (m *MongoBackend) collection(d Durability) (*mongo.Collection, error) {
	wc := writeConcernFor(d)
	if wc == nil {
		return m.col, nil
	}
	return m.col.Clone(options.Collection().SetWriteConcern(wc))
}

// unconfirmedWrite marks a write concern failure without write errors: the
// primary applied the write but the requested acknowledgement never came
func unconfirmedWrite(err error) error {
	var we mongo.WriteException
	if errors.As(err, &we) && we.WriteConcernError != nil && len(we.WriteErrors) == 0 {
		return fmt.Errorf("%w: %w", ErrDurabilityUnconfirmed, err)
	}
	return err
}

// writeConcernFor maps the durability policy onto a MongoDB write concern
func writeConcernFor(d Durability) *writeconcern.WriteConcern {
	if !d.RequiresAck() {
		return nil
	}

	journal := true
	wc := &writeconcern.WriteConcern{WTimeout: d.Timeout}
	switch d.Level {
	case DurabilityMajority:
		wc.W = "majority"
	case DurabilityPersistToMajority:
		wc.W = "majority"
		wc.Journal = &journal
	default:
		wc.W = d.ReplicateTo + 1
	}
	if d.PersistTo > 0 {
		wc.Journal = &journal
	}
	return wc
}

// record converts the decoded BSON body into plain JSON-compatible values,
// matching what the other backends return
func (d mongoDocument) record() (Record, error) {
	raw, err := json.Marshal(d.Doc)
	if err != nil {
		return Record{}, fmt.Errorf("failed to normalize document %s: %w", d.ID, err)
	}
	var body Fields
	if err := json.Unmarshal(raw, &body); err != nil {
		return Record{}, fmt.Errorf("failed to normalize document %s: %w", d.ID, err)
	}
	return Record{ID: d.ID, Version: Version(d.CAS), Body: body}, nil
}
