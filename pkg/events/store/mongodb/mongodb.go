/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mongodb

import (
	"context"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scoir/canis-webhooks/pkg/events"
	"github.com/scoir/canis-webhooks/pkg/events/store"
)

const (
	defaultCollection = "webhook_events"
	opTimeout         = 10 * time.Second
)

type Config struct {
	URL        string `mapstructure:"url"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// Provider represents a Mongo DB implementation of the store.Provider interface
type Provider struct {
	config    *Config
	retention time.Duration
	maxEvents int
}

// NewProvider instantiates Provider
func NewProvider(config *Config, retention time.Duration, maxEvents int) (*Provider, error) {
	if config == nil {
		return nil, errors.New("config missing")
	}
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}

	return &Provider{config: config, retention: retention, maxEvents: maxEvents}, nil
}

// Open connects to mongo and ensures the bucket and TTL indexes exist.
func (p *Provider) Open() (store.Store, error) {
	tM := reflect.TypeOf(bson.M{})
	reg := bson.NewRegistryBuilder().RegisterTypeMapEntry(bsontype.EmbeddedDocument, tM).Build()
	clientOpts := options.Client().SetRegistry(reg).ApplyURI(p.config.URL)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to mongo")
	}

	name := p.config.Collection
	if name == "" {
		name = defaultCollection
	}

	st := &Store{
		client:     client,
		collection: client.Database(p.config.Database).Collection(name),
		retention:  p.retention,
		maxEvents:  p.maxEvents,
	}

	err = st.ensureIndexes(ctx)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return st, nil
}

// Store keeps events in a single collection, expired by a TTL index on received_at.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	retention  time.Duration
	maxEvents  int
}

func (r *Store) ensureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "wallet_id", Value: 1}, {Key: "topic", Value: 1}, {Key: "received_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "received_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(r.retention.Seconds())),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return errors.Wrap(err, "unable to create event indexes")
}

func (r *Store) Append(ev *events.Event) error {
	if ev == nil || ev.WalletID == "" {
		return errors.New("event has no wallet")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, ev)
	if err != nil {
		return errors.Wrap(err, "unable to insert event")
	}

	if r.maxEvents > 0 {
		return r.trim(ctx, ev.WalletID, ev.Topic)
	}

	return nil
}

// trim removes everything older than the newest maxEvents events of a bucket.
func (r *Store) trim(ctx context.Context, walletID string, topic events.Topic) error {
	bucket := bson.M{"wallet_id": walletID, "topic": topic}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetSkip(int64(r.maxEvents)).
		SetProjection(bson.M{"received_at": 1})

	surplus := &events.Event{}
	err := r.collection.FindOne(ctx, bucket, opts).Decode(surplus)
	if err == mongo.ErrNoDocuments {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "unable to find surplus events")
	}

	bucket["received_at"] = bson.M{"$lte": surplus.ReceivedAt}
	_, err = r.collection.DeleteMany(ctx, bucket)
	return errors.Wrap(err, "unable to trim events")
}

func (r *Store) Query(walletID string, topic events.Topic, filter events.Filter, since time.Time) (*events.Event, error) {
	q, err := r.bucketQuery(walletID, topic, since)
	if err != nil {
		return nil, err
	}

	if filter.Field != "" {
		if strings.ContainsAny(filter.Field, "$.") {
			return nil, errors.Errorf("invalid field name %q", filter.Field)
		}
		q["payload."+filter.Field] = bson.M{"$in": fieldValues(filter.FieldID)}
	}
	if filter.DesiredState != "" {
		q["payload.state"] = filter.DesiredState
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	ev := &events.Event{}
	opts := options.FindOne().SetSort(bson.D{{Key: "received_at", Value: -1}})
	err = r.collection.FindOne(ctx, q, opts).Decode(ev)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to query events")
	}

	return ev, nil
}

func (r *Store) List(walletID string, topic events.Topic, since time.Time) ([]*events.Event, error) {
	q, err := r.bucketQuery(walletID, topic, since)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: 1}})
	cur, err := r.collection.Find(ctx, q, opts)
	if err != nil {
		return nil, errors.Wrap(err, "unable to list events")
	}
	defer cur.Close(ctx)

	out := []*events.Event{}
	for cur.Next(ctx) {
		ev := &events.Event{}
		err = cur.Decode(ev)
		if err != nil {
			return nil, errors.Wrap(err, "unable to decode event")
		}
		out = append(out, ev)
	}

	return out, errors.Wrap(cur.Err(), "event cursor failed")
}

// Purge removes expired events ahead of the TTL monitor.
func (r *Store) Purge() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.collection.DeleteMany(ctx, bson.M{"received_at": bson.M{"$lt": time.Now().Add(-r.retention)}})
	return errors.Wrap(err, "unable to purge events")
}

func (r *Store) Close() error {
	return r.client.Disconnect(context.Background())
}

func (r *Store) bucketQuery(walletID string, topic events.Topic, since time.Time) (bson.M, error) {
	if walletID == "" {
		return nil, errors.New("wallet id is required")
	}

	oldest := time.Now().Add(-r.retention)
	if since.Before(oldest) {
		since = oldest
	}

	q := bson.M{"wallet_id": walletID, "received_at": bson.M{"$gte": since}}
	if topic != events.All {
		q["topic"] = topic
	}

	return q, nil
}

// fieldValues lists the stored values that format to id, so numeric and bool
// fields match the way events.Payload.String renders them.
func fieldValues(id string) []interface{} {
	vals := []interface{}{id}

	if f, err := strconv.ParseFloat(id, 64); err == nil {
		vals = append(vals, f)
	}

	switch id {
	case "true":
		vals = append(vals, true)
	case "false":
		vals = append(vals, false)
	}

	return vals
}
