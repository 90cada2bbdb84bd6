package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/percussion/deployer/pkg/errors"
)

// DefaultMongoDatabase is used when no database name is configured.
const DefaultMongoDatabase = "deployer"

// Mongo is a MongoDB-backed Store with one collection per kind.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

// NewMongo connects to the MongoDB deployment at uri and verifies the
// connection with a ping.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New(errors.ErrCodeConfiguration, "mongo store requires a connection uri")
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "ping mongo")
	}
	return &Mongo{client: client, db: client.Database(database), now: time.Now}, nil
}

func (m *Mongo) collection(kind string) *mongo.Collection {
	return m.db.Collection(strings.ToLower(kind))
}

func (m *Mongo) Get(ctx context.Context, kind, id string) (*Object, error) {
	var o Object
	err := m.collection(kind).FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if err == mongo.ErrNoDocuments {
		return nil, notFound(kind, id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "find %s %q", kind, id)
	}
	return &o, nil
}

func (m *Mongo) Put(ctx context.Context, obj *Object) error {
	if err := obj.Validate(); err != nil {
		return err
	}
	c := obj.Clone()
	c.Updated = m.now().UTC()
	_, err := m.collection(c.Kind).ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "store %s %q", c.Kind, c.ID)
	}
	return nil
}

func (m *Mongo) List(ctx context.Context, kind string) ([]*Object, error) {
	cur, err := m.collection(kind).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list %s", kind)
	}
	var out []*Object
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list %s", kind)
	}
	return out, nil
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

var _ Store = (*Mongo)(nil)
