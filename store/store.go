// Package store defines the document database contract the rest of the
// worker is written against: keyed documents grouped in collections,
// predicate queries over indexed fields, standing subscriptions that
// re-deliver the full matching set on every change, and all-or-nothing
// multi-document batches.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrNotFound is returned by GetDocument when no document exists under
// the requested id.
var ErrNotFound = errors.New("store: document not found")

type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpIn             Operator = "in"
)

// Predicate is an equality, range or inclusion condition over a single
// indexed field. Substring matching is deliberately absent from the
// contract; free-text filtering happens client side.
type Predicate struct {
	Field string
	Op    Operator
	Value interface{}
}

func Where(field string, op Operator, value interface{}) Predicate {
	return Predicate{Field: field, Op: op, Value: value}
}

// Document is a single stored document. Data holds the document body in
// its wire encoding, including the _id field.
type Document struct {
	ID   string
	Data bson.Raw
}

func (d Document) DataTo(out interface{}) error {
	return bson.Unmarshal(d.Data, out)
}

// Snapshot is the full result set of a query or a subscription delivery.
type Snapshot []Document

// DecodeAll decodes every document of a snapshot into a slice of T,
// preserving order.
func DecodeAll[T any](s Snapshot) ([]T, error) {
	result := make([]T, 0, len(s))
	for _, doc := range s {
		var item T
		if err := doc.DataTo(&item); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, nil
}

// Unsubscribe detaches a subscription. Implementations guarantee it is
// safe to call more than once; only the first call has any effect.
type Unsubscribe func()

type setOptions struct {
	merge bool
}

type SetOption func(*setOptions)

// Merge makes SetDocument patch the named fields into an existing
// document instead of replacing it. The document is created when absent.
func Merge() SetOption {
	return func(o *setOptions) {
		o.merge = true
	}
}

type Store interface {
	// GetDocument returns the document stored under id, or ErrNotFound.
	GetDocument(ctx context.Context, collection, id string) (Document, error)

	// SetDocument writes the full document body under id, creating or
	// replacing it. With Merge only the fields present in data are patched.
	SetDocument(ctx context.Context, collection, id string, data interface{}, opts ...SetOption) error

	// UpdateDocument patches the named fields of an existing document.
	// Returns ErrNotFound when the document does not exist.
	UpdateDocument(ctx context.Context, collection, id string, fields interface{}) error

	DeleteDocument(ctx context.Context, collection, id string) error

	// Query returns every document of the collection matching all
	// predicates. Predicates operate on indexed fields only.
	Query(ctx context.Context, collection string, predicates ...Predicate) (Snapshot, error)

	// Subscribe registers a standing query. The callback receives the full
	// current matching set immediately and again after every change to any
	// matching document. Deliveries are ordered within one subscription;
	// there is no ordering across subscriptions.
	Subscribe(ctx context.Context, collection string, predicates []Predicate, fn func(Snapshot)) (Unsubscribe, error)

	// Batch starts an all-or-nothing multi-document write.
	Batch() Batch
}

type Batch interface {
	Set(collection, id string, data interface{}) Batch
	Delete(collection, id string) Batch

	// Commit applies every queued operation atomically. On failure no
	// operation is applied.
	Commit(ctx context.Context) error
}
