package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ChangeFeed reports document changes per collection. The mongo backend
// uses it to know when a standing query must be re-run; the CDC pipeline
// provides the production implementation.
type ChangeFeed interface {
	Listen(collection string, fn func()) (Unsubscribe, error)
}

// MongoStore implements Store on top of a mongo database. Realtime
// subscriptions re-run their query and re-deliver the full matching set
// whenever the change feed reports activity on the collection.
type MongoStore struct {
	db     *mongo.Database
	feed   ChangeFeed
	logger *zap.SugaredLogger
}

func NewMongoStore(db *mongo.Database, feed ChangeFeed, logger *zap.SugaredLogger) *MongoStore {
	return &MongoStore{
		db:     db,
		feed:   feed,
		logger: logger,
	}
}

func (m *MongoStore) GetDocument(ctx context.Context, collection, id string) (Document, error) {
	result := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id})
	raw, err := result.DecodeBytes()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return Document{ID: id, Data: cloneRaw(raw)}, nil
}

func (m *MongoStore) SetDocument(ctx context.Context, collection, id string, data interface{}, opts ...SetOption) error {
	o := setOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	coll := m.db.Collection(collection)
	if o.merge {
		fields, err := documentFields(data)
		if err != nil {
			return err
		}
		_, err = coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, options.Update().SetUpsert(true))
		return err
	}

	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, data, options.Replace().SetUpsert(true))
	return err
}

func (m *MongoStore) UpdateDocument(ctx context.Context, collection, id string, fields interface{}) error {
	set, err := documentFields(fields)
	if err != nil {
		return err
	}
	result, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) DeleteDocument(ctx context.Context, collection, id string) error {
	_, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (m *MongoStore) Query(ctx context.Context, collection string, predicates ...Predicate) (Snapshot, error) {
	cursor, err := m.db.Collection(collection).Find(ctx, mongoFilter(predicates), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	snapshot := Snapshot{}
	for cursor.Next(ctx) {
		raw := cloneRaw(cursor.Current)
		id, ok := raw.Lookup("_id").StringValueOK()
		if !ok {
			return nil, fmt.Errorf("store: document in %s has a non-string _id", collection)
		}
		snapshot = append(snapshot, Document{ID: id, Data: raw})
	}
	return snapshot, cursor.Err()
}

func (m *MongoStore) Subscribe(ctx context.Context, collection string, predicates []Predicate, fn func(Snapshot)) (Unsubscribe, error) {
	state := &delivery{}

	deliver := func(seq uint64, snapshot Snapshot) {
		if reason := state.push(seq, fn, snapshot); reason != nil {
			m.logger.Errorw("subscription callback panicked", "collection", collection, "reason", reason)
		}
	}

	refresh := func() {
		seq := state.next()
		snapshot, err := m.Query(context.Background(), collection, predicates...)
		if err != nil {
			m.logger.Errorw("unable to refresh subscription", "collection", collection, zap.Error(err))
			return
		}
		deliver(seq, snapshot)
	}

	detach, err := m.feed.Listen(collection, refresh)
	if err != nil {
		return nil, err
	}

	// The ticket sequences the initial result set against refreshes that
	// raced in after Listen, so a stale set is dropped instead of
	// overwriting a newer delivery.
	seq := state.next()
	initial, err := m.Query(ctx, collection, predicates...)
	if err != nil {
		detach()
		return nil, err
	}
	deliver(seq, initial)

	return detach, nil
}

func (m *MongoStore) Batch() Batch {
	return &mongoBatch{store: m}
}

type mongoBatch struct {
	store *MongoStore
	ops   []batchOp
	err   error
}

func (b *mongoBatch) Set(collection, id string, data interface{}) Batch {
	raw, err := marshalDocument(data)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.ops = append(b.ops, batchOp{collection: collection, id: id, data: raw})
	return b
}

func (b *mongoBatch) Delete(collection, id string) Batch {
	b.ops = append(b.ops, batchOp{delete: true, collection: collection, id: id})
	return b
}

func (b *mongoBatch) Commit(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}

	session, err := b.store.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, op := range b.ops {
			coll := b.store.db.Collection(op.collection)
			if op.delete {
				if _, err := coll.DeleteOne(sc, bson.M{"_id": op.id}); err != nil {
					return nil, err
				}
				continue
			}
			if _, err := coll.ReplaceOne(sc, bson.M{"_id": op.id}, op.data, options.Replace().SetUpsert(true)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

var mongoOperators = map[Operator]string{
	OpEqual:          "$eq",
	OpNotEqual:       "$ne",
	OpLess:           "$lt",
	OpLessOrEqual:    "$lte",
	OpGreater:        "$gt",
	OpGreaterOrEqual: "$gte",
	OpIn:             "$in",
}

func mongoFilter(predicates []Predicate) bson.M {
	filter := bson.M{}
	for _, p := range predicates {
		operator := mongoOperators[p.Op]
		if conditions, ok := filter[p.Field].(bson.M); ok {
			conditions[operator] = p.Value
			continue
		}
		filter[p.Field] = bson.M{operator: p.Value}
	}
	return filter
}

// documentFields flattens a document into its top-level fields, dropping
// _id so a partial update can never rewrite the document key.
func documentFields(data interface{}) (bson.M, error) {
	raw, err := marshalDocument(data)
	if err != nil {
		return nil, err
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "_id")
	return fields, nil
}

func cloneRaw(raw bson.Raw) bson.Raw {
	clone := make(bson.Raw, len(raw))
	copy(clone, raw)
	return clone
}
