package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo implements Store on a MongoDB database. Subscribe uses change
// streams, which require a replica set deployment.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to MongoDB and pings it.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetTimeout(10*time.Second))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return &Mongo{client: client, db: client.Database(database)}, nil
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (Doc, error) {
	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return docFromBson(raw), nil
}

func (m *Mongo) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	filter := bson.M{}
	for _, f := range q.Filters {
		field := f.Field
		if field == "id" {
			field = "_id"
		}
		switch f.Op {
		case "", "==":
			filter[field] = f.Value
		case "<":
			filter[field] = bson.M{"$lt": f.Value}
		case "<=":
			filter[field] = bson.M{"$lte": f.Value}
		case ">":
			filter[field] = bson.M{"$gt": f.Value}
		case ">=":
			filter[field] = bson.M{"$gte": f.Value}
		}
	}

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		field := q.OrderBy
		if field == "id" {
			field = "_id"
		}
		opts.SetSort(bson.D{{Key: field, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := m.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var res []Doc
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		res = append(res, docFromBson(raw))
	}
	return res, cur.Err()
}

func (m *Mongo) Create(ctx context.Context, collection string, data Doc) (string, error) {
	id := uuid.NewString()
	if _, err := m.db.Collection(collection).InsertOne(ctx, bsonFromDoc(data, id)); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Mongo) Set(ctx context.Context, collection, id string, data Doc) error {
	opts := options.Replace().SetUpsert(true)
	_, err := m.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, bsonFromDoc(data, id), opts)
	return err
}

func (m *Mongo) Update(ctx context.Context, collection, id string, fields Doc) error {
	set := bson.M{}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		set[k] = v
	}
	res, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Subscribe(ctx context.Context, collection string, fn func(Event)) (UnsubscribeFunc, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := m.db.Collection(collection).Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cs.Close(context.Background())
		for cs.Next(streamCtx) {
			var change struct {
				OperationType string `bson:"operationType"`
				DocumentKey   struct {
					ID string `bson:"_id"`
				} `bson:"documentKey"`
				FullDocument bson.M `bson:"fullDocument"`
			}
			if err := cs.Decode(&change); err != nil {
				log.Printf("store: change stream decode on %s: %v", collection, err)
				continue
			}
			evt := Event{
				Collection: collection,
				ID:         change.DocumentKey.ID,
				Data:       docFromBson(change.FullDocument),
			}
			switch change.OperationType {
			case "insert":
				evt.Type = EventCreated
			case "delete":
				evt.Type = EventDeleted
			default:
				evt.Type = EventUpdated
			}
			fn(evt)
		}
		if err := cs.Err(); err != nil && streamCtx.Err() == nil {
			log.Printf("store: change stream on %s ended: %v", collection, err)
		}
	}()

	return func() { cancel() }, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func bsonFromDoc(d Doc, id string) bson.M {
	out := bson.M{"_id": id}
	for k, v := range d {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}

func docFromBson(raw bson.M) Doc {
	if raw == nil {
		return nil
	}
	out := make(Doc, len(raw))
	for k, v := range raw {
		if k == "_id" {
			out["id"] = normalize(v)
			continue
		}
		out[k] = normalize(v)
	}
	return out
}

// normalize maps driver types back to the plain values Doc callers expect.
func normalize(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case bson.M:
		out := make(Doc, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case int32:
		return int(t)
	default:
		return v
	}
}
