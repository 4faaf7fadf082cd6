package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// seqField orders records by insertion when no sort key decides.
const seqField = "_seq"

// MongoDBStore maps each record collection onto a Mongo collection.
type MongoDBStore struct {
	client       *mongo.Client
	db           *mongo.Database
	queryTimeout time.Duration
	seq          atomic.Int64

	indexMu sync.Mutex
	indexed map[string]bool
}

// NewMongoDBStore connects and pings the server.
func NewMongoDBStore(connectionString, database string, queryTimeout time.Duration) (*MongoDBStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &MongoDBStore{
		client:       client,
		db:           client.Database(database),
		queryTimeout: queryTimeout,
		indexed:      make(map[string]bool),
	}
	s.seq.Store(time.Now().UnixNano())
	return s, nil
}

// collection returns the Mongo collection, creating the insertion-order
// index the first time it is touched.
func (s *MongoDBStore) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	col := s.db.Collection(name)

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.indexed[name] {
		return col, nil
	}
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: seqField, Value: 1}}})
	if err != nil {
		return nil, fmt.Errorf("create %s indexes: %w", name, err)
	}
	s.indexed[name] = true
	return col, nil
}

// Insert implements RecordStore.
func (s *MongoDBStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	normalized, err := normalizeDocument(doc)
	if err != nil {
		return "", err
	}
	col, err := s.collection(ctx, collection)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	body := bson.M{"_id": id, seqField: s.seq.Add(1)}
	for k, v := range normalized {
		body[k] = v
	}
	if _, err := col.InsertOne(ctx, body); err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	return id, nil
}

// Get implements RecordStore.
func (s *MongoDBStore) Get(ctx context.Context, collection, id string) (Record, error) {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	raw, err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeMongoRecord(raw)
}

// Query implements RecordStore.
func (s *MongoDBStore) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	q, err := q.validate()
	if err != nil {
		return nil, err
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(buildMongoSort(q.OrderBy))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, buildMongoFilter(q.Filters), opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var out []Record
	for cursor.Next(ctx) {
		rec, err := decodeMongoRecord(cursor.Current)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, cursor.Err()
}

// Update implements RecordStore.
func (s *MongoDBStore) Update(ctx context.Context, collection, id string, patch Document) error {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	normalized, err := normalizeDocument(patch)
	if err != nil {
		return err
	}
	delete(normalized, "_id")
	delete(normalized, seqField)

	filter := bson.M{"_id": id}
	if len(normalized) == 0 {
		n, err := s.db.Collection(collection).CountDocuments(ctx, filter)
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, filter, bson.M{"$set": bson.M(normalized)})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements RecordStore.
func (s *MongoDBStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping implements RecordStore.
func (s *MongoDBStore) Ping(ctx context.Context) error {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoDBStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// decodeMongoRecord converts a BSON document to a Record via relaxed
// extended JSON so numbers and nested documents normalise exactly like the
// other backends.
func decodeMongoRecord(raw bson.Raw) (Record, error) {
	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return Record{}, fmt.Errorf("convert mongo document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(ext, &doc); err != nil {
		return Record{}, fmt.Errorf("convert mongo document: %w", err)
	}
	id, _ := doc["_id"].(string)
	delete(doc, "_id")
	delete(doc, seqField)
	return Record{ID: id, Data: doc}, nil
}

var mongoOps = map[Op]string{
	OpEq:  "$eq",
	OpNe:  "$ne",
	OpLt:  "$lt",
	OpLte: "$lte",
	OpGt:  "$gt",
	OpGte: "$gte",
	OpIn:  "$in",
}

func mongoField(field string) string {
	if field == "id" {
		return "_id"
	}
	return field
}

// buildMongoFilter compiles validated filters. Several filters on the same
// field are combined with $and.
func buildMongoFilter(filters []Filter) bson.M {
	if len(filters) == 0 {
		return bson.M{}
	}
	clauses := make(bson.A, 0, len(filters))
	for _, f := range filters {
		clauses = append(clauses, bson.M{mongoField(f.Field): bson.M{mongoOps[f.Op]: f.Value}})
	}
	if len(clauses) == 1 {
		return clauses[0].(bson.M)
	}
	return bson.M{"$and": clauses}
}

func buildMongoSort(orders []Order) bson.D {
	sort := make(bson.D, 0, len(orders)+1)
	for _, o := range orders {
		dir := 1
		if o.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: mongoField(o.Field), Value: dir})
	}
	return append(sort, bson.E{Key: seqField, Value: 1})
}
