package hospitals_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/hospitals"
	"github.com/medipass/hospital-worker/store"
	"github.com/medipass/hospital-worker/store/storetest"
)

var _ = Describe("Store", func() {
	var backend *storetest.CountingStore
	var hospitalsStore *hospitals.Store
	var ctx context.Context

	BeforeEach(func() {
		backend = &storetest.CountingStore{Store: store.NewMemoryStore()}
		hospitalsStore = hospitals.New(hospitals.Params{
			Store:  backend,
			Logger: zap.NewNop().Sugar(),
		})
		ctx = context.Background()
	})

	Describe("Fetch", func() {
		It("is a no-op when the cache is already populated", func() {
			_, err := hospitalsStore.Add(ctx, hospitals.NewHospitalParams{Name: "General"})
			Expect(err).ToNot(HaveOccurred())

			Expect(hospitalsStore.Fetch(ctx)).To(Succeed())
			Expect(hospitalsStore.Fetch(ctx)).To(Succeed())
			Expect(backend.Queries).To(BeZero())
		})

		It("loads hospitals from the backend exactly once", func() {
			Expect(backend.SetDocument(ctx, hospitals.Collection, "h1", hospitals.Hospital{ID: "h1", Name: "General"})).To(Succeed())

			Expect(hospitalsStore.Fetch(ctx)).To(Succeed())
			Expect(hospitalsStore.Fetch(ctx)).To(Succeed())

			Expect(backend.Queries).To(Equal(1))
			Expect(hospitalsStore.Hospitals()).To(HaveLen(1))
			Expect(hospitalsStore.Loading()).To(BeFalse())
		})
	})

	Describe("Add", func() {
		It("stores an active hospital with a creation timestamp", func() {
			hospital, err := hospitalsStore.Add(ctx, hospitals.NewHospitalParams{Name: "General"})
			Expect(err).ToNot(HaveOccurred())
			Expect(hospital.IsActive).To(BeTrue())
			Expect(hospital.CreatedAt).ToNot(BeZero())

			document, err := backend.GetDocument(ctx, hospitals.Collection, hospital.ID)
			Expect(err).ToNot(HaveOccurred())

			stored := hospitals.Hospital{}
			Expect(document.DataTo(&stored)).To(Succeed())
			Expect(stored.IsActive).To(BeTrue())
			Expect(stored.CreatedAt).ToNot(BeZero())
		})

		It("appears in local state immediately", func() {
			hospital, err := hospitalsStore.Add(ctx, hospitals.NewHospitalParams{Name: "General"})
			Expect(err).ToNot(HaveOccurred())

			cached, ok := hospitalsStore.Get(hospital.ID)
			Expect(ok).To(BeTrue())
			Expect(cached.Name).To(Equal("General"))
		})

		It("does not patch the cache when the write fails", func() {
			failing := &storetest.FailingStore{Store: backend, WriteErr: errors.New("down")}
			broken := hospitals.New(hospitals.Params{Store: failing, Logger: zap.NewNop().Sugar()})

			_, err := broken.Add(ctx, hospitals.NewHospitalParams{Name: "General"})
			Expect(err).To(HaveOccurred())
			Expect(broken.Hospitals()).To(BeEmpty())
		})
	})

	Describe("Update", func() {
		It("patches the backend and the cache", func() {
			hospital, err := hospitalsStore.Add(ctx, hospitals.NewHospitalParams{Name: "General"})
			Expect(err).ToNot(HaveOccurred())

			name := "Central"
			Expect(hospitalsStore.Update(ctx, hospital.ID, hospitals.Update{Name: &name})).To(Succeed())

			cached, ok := hospitalsStore.Get(hospital.ID)
			Expect(ok).To(BeTrue())
			Expect(cached.Name).To(Equal("Central"))
			Expect(cached.UpdatedAt).ToNot(BeZero())

			document, err := backend.GetDocument(ctx, hospitals.Collection, hospital.ID)
			Expect(err).ToNot(HaveOccurred())
			stored := hospitals.Hospital{}
			Expect(document.DataTo(&stored)).To(Succeed())
			Expect(stored.Name).To(Equal("Central"))
		})
	})

	Describe("ToggleStatus", func() {
		It("flips the active flag", func() {
			hospital, err := hospitalsStore.Add(ctx, hospitals.NewHospitalParams{Name: "General"})
			Expect(err).ToNot(HaveOccurred())

			Expect(hospitalsStore.ToggleStatus(ctx, hospital.ID)).To(Succeed())
			cached, _ := hospitalsStore.Get(hospital.ID)
			Expect(cached.IsActive).To(BeFalse())

			Expect(hospitalsStore.ToggleStatus(ctx, hospital.ID)).To(Succeed())
			cached, _ = hospitalsStore.Get(hospital.ID)
			Expect(cached.IsActive).To(BeTrue())
		})

		It("fails for a hospital missing from the cache", func() {
			Expect(hospitalsStore.ToggleStatus(ctx, "missing")).To(HaveOccurred())
		})
	})

	Describe("Delete", func() {
		It("removes the record and leaves dependents untouched", func() {
			hospital, err := hospitalsStore.Add(ctx, hospitals.NewHospitalParams{Name: "General"})
			Expect(err).ToNot(HaveOccurred())
			Expect(backend.SetDocument(ctx, "users", "u1", map[string]interface{}{"_id": "u1", "hospitalId": hospital.ID})).To(Succeed())

			Expect(hospitalsStore.Delete(ctx, hospital.ID)).To(Succeed())

			_, ok := hospitalsStore.Get(hospital.ID)
			Expect(ok).To(BeFalse())

			_, err = backend.GetDocument(ctx, "users", "u1")
			Expect(err).ToNot(HaveOccurred())
		})
	})
})
