// Package storetest provides store decorators with injectable failures
// for exercising the error paths of write-through stores.
package storetest

import (
	"context"

	"github.com/medipass/hospital-worker/store"
)

// CountingStore wraps a Store and counts backend reads.
type CountingStore struct {
	store.Store

	Queries int
	Gets    int
}

func (s *CountingStore) Query(ctx context.Context, collection string, predicates ...store.Predicate) (store.Snapshot, error) {
	s.Queries++
	return s.Store.Query(ctx, collection, predicates...)
}

func (s *CountingStore) GetDocument(ctx context.Context, collection, id string) (store.Document, error) {
	s.Gets++
	return s.Store.GetDocument(ctx, collection, id)
}

// FailingStore wraps a Store and fails selected operations with the
// configured errors. A nil error leaves the operation untouched.
type FailingStore struct {
	store.Store

	WriteErr  error
	DeleteErr error
	BatchErr  error
}

func (s *FailingStore) SetDocument(ctx context.Context, collection, id string, data interface{}, opts ...store.SetOption) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	return s.Store.SetDocument(ctx, collection, id, data, opts...)
}

func (s *FailingStore) UpdateDocument(ctx context.Context, collection, id string, fields interface{}) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	return s.Store.UpdateDocument(ctx, collection, id, fields)
}

func (s *FailingStore) DeleteDocument(ctx context.Context, collection, id string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	return s.Store.DeleteDocument(ctx, collection, id)
}

func (s *FailingStore) Batch() store.Batch {
	return &failingBatch{delegate: s.Store.Batch(), parent: s}
}

type failingBatch struct {
	delegate store.Batch
	parent   *FailingStore
}

func (b *failingBatch) Set(collection, id string, data interface{}) store.Batch {
	b.delegate.Set(collection, id, data)
	return b
}

func (b *failingBatch) Delete(collection, id string) store.Batch {
	b.delegate.Delete(collection, id)
	return b
}

func (b *failingBatch) Commit(ctx context.Context) error {
	if b.parent.BatchErr != nil {
		return b.parent.BatchErr
	}
	return b.delegate.Commit(ctx)
}
