package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/medipass/hospital-worker/store"
)

type record struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	IsActive  bool      `bson:"isActive"`
	Status    string    `bson:"status,omitempty"`
	Count     int       `bson:"count"`
	CreatedAt time.Time `bson:"createdAt"`
}

var _ = Describe("MemoryStore", func() {
	var memory *store.MemoryStore
	var ctx context.Context

	BeforeEach(func() {
		memory = store.NewMemoryStore()
		ctx = context.Background()
	})

	Describe("Documents", func() {
		It("returns ErrNotFound for a missing document", func() {
			_, err := memory.GetDocument(ctx, "records", "missing")
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("round-trips a document", func() {
			written := record{ID: "a", Name: "first", IsActive: true, Count: 3}
			Expect(memory.SetDocument(ctx, "records", "a", written)).To(Succeed())

			document, err := memory.GetDocument(ctx, "records", "a")
			Expect(err).ToNot(HaveOccurred())

			read := record{}
			Expect(document.DataTo(&read)).To(Succeed())
			Expect(read.Name).To(Equal("first"))
			Expect(read.IsActive).To(BeTrue())
			Expect(read.Count).To(Equal(3))
		})

		It("replaces the whole document on a plain set", func() {
			Expect(memory.SetDocument(ctx, "records", "a", record{ID: "a", Name: "first", Status: "active"})).To(Succeed())
			Expect(memory.SetDocument(ctx, "records", "a", record{ID: "a", Name: "second"})).To(Succeed())

			document, err := memory.GetDocument(ctx, "records", "a")
			Expect(err).ToNot(HaveOccurred())

			read := record{}
			Expect(document.DataTo(&read)).To(Succeed())
			Expect(read.Name).To(Equal("second"))
			Expect(read.Status).To(BeEmpty())
		})

		It("patches only the supplied fields on a merge set", func() {
			Expect(memory.SetDocument(ctx, "records", "a", record{ID: "a", Name: "first", Status: "active"})).To(Succeed())
			Expect(memory.SetDocument(ctx, "records", "a", map[string]interface{}{"name": "patched"}, store.Merge())).To(Succeed())

			document, err := memory.GetDocument(ctx, "records", "a")
			Expect(err).ToNot(HaveOccurred())

			read := record{}
			Expect(document.DataTo(&read)).To(Succeed())
			Expect(read.Name).To(Equal("patched"))
			Expect(read.Status).To(Equal("active"))
		})

		It("refuses to update a missing document", func() {
			err := memory.UpdateDocument(ctx, "records", "missing", map[string]interface{}{"name": "x"})
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("deletes documents", func() {
			Expect(memory.SetDocument(ctx, "records", "a", record{ID: "a"})).To(Succeed())
			Expect(memory.DeleteDocument(ctx, "records", "a")).To(Succeed())

			_, err := memory.GetDocument(ctx, "records", "a")
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("Query", func() {
		BeforeEach(func() {
			Expect(memory.SetDocument(ctx, "records", "a", record{ID: "a", Name: "alpha", IsActive: true, Status: "active", Count: 1})).To(Succeed())
			Expect(memory.SetDocument(ctx, "records", "b", record{ID: "b", Name: "beta", IsActive: false, Status: "inactive", Count: 5})).To(Succeed())
			Expect(memory.SetDocument(ctx, "records", "c", record{ID: "c", Name: "gamma", IsActive: true, Count: 9})).To(Succeed())
		})

		It("returns all documents without predicates, sorted by id", func() {
			snapshot, err := memory.Query(ctx, "records")
			Expect(err).ToNot(HaveOccurred())
			Expect(snapshot).To(HaveLen(3))
			Expect(snapshot[0].ID).To(Equal("a"))
			Expect(snapshot[2].ID).To(Equal("c"))
		})

		It("matches equality predicates", func() {
			snapshot, err := memory.Query(ctx, "records", store.Where("isActive", store.OpEqual, true))
			Expect(err).ToNot(HaveOccurred())
			Expect(snapshot).To(HaveLen(2))
		})

		It("combines predicates conjunctively", func() {
			snapshot, err := memory.Query(ctx, "records",
				store.Where("isActive", store.OpEqual, true),
				store.Where("count", store.OpGreater, 5),
			)
			Expect(err).ToNot(HaveOccurred())
			Expect(snapshot).To(HaveLen(1))
			Expect(snapshot[0].ID).To(Equal("c"))
		})

		It("never matches documents that omit the predicate field", func() {
			snapshot, err := memory.Query(ctx, "records", store.Where("status", store.OpNotEqual, "active"))
			Expect(err).ToNot(HaveOccurred())
			Expect(snapshot).To(HaveLen(1))
			Expect(snapshot[0].ID).To(Equal("b"))
		})

		It("matches in predicates against any candidate", func() {
			snapshot, err := memory.Query(ctx, "records", store.Where("name", store.OpIn, []string{"alpha", "gamma"}))
			Expect(err).ToNot(HaveOccurred())
			Expect(snapshot).To(HaveLen(2))
		})

		It("matches time range predicates", func() {
			cutoff := time.Now().UTC()
			Expect(memory.SetDocument(ctx, "records", "d", record{ID: "d", Name: "delta", CreatedAt: cutoff.Add(time.Hour)})).To(Succeed())

			snapshot, err := memory.Query(ctx, "records", store.Where("createdAt", store.OpGreaterOrEqual, cutoff))
			Expect(err).ToNot(HaveOccurred())
			Expect(snapshot).To(HaveLen(1))
			Expect(snapshot[0].ID).To(Equal("d"))
		})
	})

	Describe("Subscribe", func() {
		It("delivers the current matching set immediately, even when empty", func() {
			var deliveries []store.Snapshot
			_, err := memory.Subscribe(ctx, "records", nil, func(snapshot store.Snapshot) {
				deliveries = append(deliveries, snapshot)
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(deliveries).To(HaveLen(1))
			Expect(deliveries[0]).To(BeEmpty())
		})

		It("re-delivers the full matching set on every change", func() {
			var deliveries []store.Snapshot
			_, err := memory.Subscribe(ctx, "records", []store.Predicate{
				store.Where("isActive", store.OpEqual, true),
			}, func(snapshot store.Snapshot) {
				deliveries = append(deliveries, snapshot)
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(memory.SetDocument(ctx, "records", "a", record{ID: "a", IsActive: true})).To(Succeed())
			Expect(memory.SetDocument(ctx, "records", "b", record{ID: "b", IsActive: true})).To(Succeed())

			Expect(deliveries).To(HaveLen(3))
			Expect(deliveries[1]).To(HaveLen(1))
			Expect(deliveries[2]).To(HaveLen(2))
		})

		It("skips deliveries whose result did not change", func() {
			var count int
			_, err := memory.Subscribe(ctx, "records", []store.Predicate{
				store.Where("isActive", store.OpEqual, true),
			}, func(store.Snapshot) {
				count++
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(memory.SetDocument(ctx, "other", "x", record{ID: "x", IsActive: true})).To(Succeed())
			Expect(memory.SetDocument(ctx, "records", "b", record{ID: "b", IsActive: false})).To(Succeed())

			Expect(count).To(Equal(1))
		})

		It("stops delivering after unsubscribe", func() {
			var count int
			detach, err := memory.Subscribe(ctx, "records", nil, func(store.Snapshot) {
				count++
			})
			Expect(err).ToNot(HaveOccurred())

			detach()
			detach()
			Expect(memory.SetDocument(ctx, "records", "a", record{ID: "a"})).To(Succeed())

			Expect(count).To(Equal(1))
		})

		It("survives a panicking callback", func() {
			_, err := memory.Subscribe(ctx, "records", nil, func(snapshot store.Snapshot) {
				if len(snapshot) > 0 {
					panic("boom")
				}
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(memory.SetDocument(ctx, "records", "a", record{ID: "a"})).To(Succeed())
			Expect(memory.SetDocument(ctx, "records", "b", record{ID: "b"})).To(Succeed())
		})
	})

	Describe("Batch", func() {
		It("applies all operations together", func() {
			Expect(memory.SetDocument(ctx, "records", "old", record{ID: "old"})).To(Succeed())

			err := memory.Batch().
				Set("records", "new", record{ID: "new", Name: "fresh"}).
				Delete("records", "old").
				Commit(ctx)
			Expect(err).ToNot(HaveOccurred())

			_, err = memory.GetDocument(ctx, "records", "old")
			Expect(err).To(MatchError(store.ErrNotFound))
			_, err = memory.GetDocument(ctx, "records", "new")
			Expect(err).ToNot(HaveOccurred())
		})

		It("notifies subscriptions once per touched collection", func() {
			Expect(memory.SetDocument(ctx, "records", "a", record{ID: "a"})).To(Succeed())

			var count int
			_, err := memory.Subscribe(ctx, "records", nil, func(store.Snapshot) {
				count++
			})
			Expect(err).ToNot(HaveOccurred())

			err = memory.Batch().
				Set("records", "b", record{ID: "b"}).
				Set("records", "c", record{ID: "c"}).
				Commit(ctx)
			Expect(err).ToNot(HaveOccurred())

			Expect(count).To(Equal(2))
		})
	})
})
