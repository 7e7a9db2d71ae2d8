package store

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// MemoryStore is a map-backed Store implementation. It backs the test
// suites and embedded deployments, and is the reference implementation of
// the subscription delivery semantics.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]bson.Raw
	subs        map[uint64]*memorySub
	nextSubID   uint64
}

type memorySub struct {
	collection string
	predicates []Predicate
	fn         func(Snapshot)
	state      delivery
}

func (s *memorySub) deliver(seq uint64, snapshot Snapshot) {
	_ = s.state.push(seq, s.fn, snapshot)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]bson.Raw),
		subs:        make(map[uint64]*memorySub),
	}
}

func (m *MemoryStore) GetDocument(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: raw}, nil
}

func (m *MemoryStore) SetDocument(_ context.Context, collection, id string, data interface{}, opts ...SetOption) error {
	options := setOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	raw, err := marshalDocument(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if options.merge {
		if existing, ok := m.collections[collection][id]; ok {
			merged, err := mergeDocuments(existing, raw)
			if err != nil {
				m.mu.Unlock()
				return err
			}
			raw = merged
		}
	}
	m.putLocked(collection, id, raw)
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

func (m *MemoryStore) UpdateDocument(_ context.Context, collection, id string, fields interface{}) error {
	raw, err := marshalDocument(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	existing, ok := m.collections[collection][id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	merged, err := mergeDocuments(existing, raw)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.putLocked(collection, id, merged)
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

func (m *MemoryStore) DeleteDocument(_ context.Context, collection, id string) error {
	m.mu.Lock()
	delete(m.collections[collection], id)
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

func (m *MemoryStore) Query(_ context.Context, collection string, predicates ...Predicate) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(collection, predicates), nil
}

func (m *MemoryStore) Subscribe(_ context.Context, collection string, predicates []Predicate, fn func(Snapshot)) (Unsubscribe, error) {
	sub := &memorySub{
		collection: collection,
		predicates: predicates,
		fn:         fn,
	}

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = sub
	seq := sub.state.next()
	initial := m.queryLocked(collection, predicates)
	m.mu.Unlock()

	sub.deliver(seq, initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}, nil
}

func (m *MemoryStore) Batch() Batch {
	return &memoryBatch{store: m}
}

func (m *MemoryStore) putLocked(collection, id string, raw bson.Raw) {
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]bson.Raw)
		m.collections[collection] = docs
	}
	docs[id] = raw
}

func (m *MemoryStore) queryLocked(collection string, predicates []Predicate) Snapshot {
	snapshot := Snapshot{}
	for id, raw := range m.collections[collection] {
		if matchesAll(raw, predicates) {
			snapshot = append(snapshot, Document{ID: id, Data: raw})
		}
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
	return snapshot
}

// notify re-runs every standing query over the changed collection and
// delivers the full matching set to subscriptions whose result changed.
func (m *MemoryStore) notify(collection string) {
	m.mu.RLock()
	var pending []*memorySub
	var seqs []uint64
	var snapshots []Snapshot
	for _, sub := range m.subs {
		if sub.collection != collection {
			continue
		}
		pending = append(pending, sub)
		seqs = append(seqs, sub.state.next())
		snapshots = append(snapshots, m.queryLocked(collection, sub.predicates))
	}
	m.mu.RUnlock()

	for i, sub := range pending {
		sub.deliver(seqs[i], snapshots[i])
	}
}

type batchOp struct {
	delete     bool
	collection string
	id         string
	data       bson.Raw
}

type memoryBatch struct {
	store *MemoryStore
	ops   []batchOp
	err   error
}

func (b *memoryBatch) Set(collection, id string, data interface{}) Batch {
	raw, err := marshalDocument(data)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.ops = append(b.ops, batchOp{collection: collection, id: id, data: raw})
	return b
}

func (b *memoryBatch) Delete(collection, id string) Batch {
	b.ops = append(b.ops, batchOp{delete: true, collection: collection, id: id})
	return b
}

func (b *memoryBatch) Commit(_ context.Context) error {
	if b.err != nil {
		return b.err
	}

	b.store.mu.Lock()
	touched := make(map[string]struct{})
	for _, op := range b.ops {
		if op.delete {
			delete(b.store.collections[op.collection], op.id)
		} else {
			b.store.putLocked(op.collection, op.id, op.data)
		}
		touched[op.collection] = struct{}{}
	}
	b.store.mu.Unlock()

	for collection := range touched {
		b.store.notify(collection)
	}
	return nil
}

func marshalDocument(data interface{}) (bson.Raw, error) {
	raw, err := bson.Marshal(data)
	if err != nil {
		return nil, err
	}
	return bson.Raw(raw), nil
}

// mergeDocuments overlays the top-level fields of patch onto base.
func mergeDocuments(base, patch bson.Raw) (bson.Raw, error) {
	var merged bson.M
	if err := bson.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	var fields bson.M
	if err := bson.Unmarshal(patch, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return marshalDocument(merged)
}

func matchesAll(raw bson.Raw, predicates []Predicate) bool {
	for _, p := range predicates {
		if !matchesPredicate(raw, p) {
			return false
		}
	}
	return true
}

// matchesPredicate evaluates one predicate against a stored document.
// Documents missing the field never match, mirroring how the production
// backend treats absent indexed fields.
func matchesPredicate(raw bson.Raw, p Predicate) bool {
	value, err := raw.LookupErr(p.Field)
	if err != nil {
		return false
	}

	switch p.Op {
	case OpEqual:
		c, ok := compareValue(value, p.Value)
		return ok && c == 0
	case OpNotEqual:
		c, ok := compareValue(value, p.Value)
		return ok && c != 0
	case OpLess:
		c, ok := compareValue(value, p.Value)
		return ok && c < 0
	case OpLessOrEqual:
		c, ok := compareValue(value, p.Value)
		return ok && c <= 0
	case OpGreater:
		c, ok := compareValue(value, p.Value)
		return ok && c > 0
	case OpGreaterOrEqual:
		c, ok := compareValue(value, p.Value)
		return ok && c >= 0
	case OpIn:
		for _, candidate := range inCandidates(p.Value) {
			if c, ok := compareValue(value, candidate); ok && c == 0 {
				return true
			}
		}
		return false
	}
	return false
}

func inCandidates(value interface{}) []interface{} {
	switch v := value.(type) {
	case []interface{}:
		return v
	case []string:
		candidates := make([]interface{}, len(v))
		for i, s := range v {
			candidates[i] = s
		}
		return candidates
	}
	return nil
}

// compareValue compares a stored BSON value against a predicate operand.
// The second return value reports whether the two are comparable at all.
func compareValue(stored bson.RawValue, want interface{}) (int, bool) {
	switch w := want.(type) {
	case string:
		if stored.Type != bsontype.String {
			return 0, false
		}
		return bytes.Compare([]byte(stored.StringValue()), []byte(w)), true
	case bool:
		if stored.Type != bsontype.Boolean {
			return 0, false
		}
		if stored.Boolean() == w {
			return 0, true
		}
		return 1, true
	case time.Time:
		if stored.Type != bsontype.DateTime {
			return 0, false
		}
		return stored.Time().UTC().Compare(w.UTC()), true
	case int:
		return compareInt64(stored, int64(w))
	case int32:
		return compareInt64(stored, int64(w))
	case int64:
		return compareInt64(stored, w)
	case float64:
		return compareFloat64(stored, w)
	}
	return 0, false
}

func compareInt64(stored bson.RawValue, want int64) (int, bool) {
	value, ok := stored.AsInt64OK()
	if !ok {
		return 0, false
	}
	switch {
	case value < want:
		return -1, true
	case value > want:
		return 1, true
	}
	return 0, true
}

func compareFloat64(stored bson.RawValue, want float64) (int, bool) {
	var value float64
	switch stored.Type {
	case bsontype.Double:
		value = stored.Double()
	case bsontype.Int32, bsontype.Int64:
		i, _ := stored.AsInt64OK()
		value = float64(i)
	default:
		return 0, false
	}
	switch {
	case value < want:
		return -1, true
	case value > want:
		return 1, true
	}
	return 0, true
}

func snapshotEqual(a, b Snapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !bytes.Equal(a[i].Data, b[i].Data) {
			return false
		}
	}
	return true
}
