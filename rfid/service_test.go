package rfid_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/rfid"
	"github.com/medipass/hospital-worker/store"
)

var _ = Describe("Service", func() {
	var memory *store.MemoryStore
	var service *rfid.Service
	var ctx context.Context

	BeforeEach(func() {
		memory = store.NewMemoryStore()
		service = rfid.New(rfid.Params{
			Store:  memory,
			Logger: zap.NewNop().Sugar(),
		})
		ctx = context.Background()
	})

	Describe("Validate", func() {
		It("accepts an unknown uid", func() {
			Expect(service.Validate(ctx, "tag-1")).To(Succeed())
		})

		It("rejects a uid held by an active card", func() {
			_, err := service.Create(ctx, "tag-1", "h1", "p1")
			Expect(err).ToNot(HaveOccurred())

			Expect(service.Validate(ctx, "tag-1")).To(MatchError(rfid.ErrCardInUse))
		})

		It("accepts a uid whose card was deactivated", func() {
			card, err := service.Create(ctx, "tag-1", "h1", "p1")
			Expect(err).ToNot(HaveOccurred())
			Expect(service.Deactivate(ctx, card.ID)).To(Succeed())

			Expect(service.Validate(ctx, "tag-1")).To(Succeed())
		})

		It("reports a not-yet-committed uid as usable to every caller", func() {
			// The check is a plain read with no reservation. Until one of
			// the racing registrations commits, both pass validation.
			Expect(service.Validate(ctx, "tag-1")).To(Succeed())
			Expect(service.Validate(ctx, "tag-1")).To(Succeed())
		})
	})

	Describe("Create", func() {
		It("re-runs the uniqueness check before inserting", func() {
			_, err := service.Create(ctx, "tag-1", "h1", "p1")
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Create(ctx, "tag-1", "h1", "p2")
			Expect(err).To(MatchError(rfid.ErrCardInUse))

			snapshot, err := memory.Query(ctx, rfid.Collection)
			Expect(err).ToNot(HaveOccurred())
			Expect(snapshot).To(HaveLen(1))
		})

		It("stores an active card bound to the patient", func() {
			card, err := service.Create(ctx, "tag-1", "h1", "p1")
			Expect(err).ToNot(HaveOccurred())
			Expect(card.IsActive).To(BeTrue())
			Expect(card.PatientID).To(Equal("p1"))
			Expect(card.HospitalID).To(Equal("h1"))
		})
	})

	Describe("AssignToUser", func() {
		It("binds the card to a staff member", func() {
			card, err := service.AssignToUser(ctx, "tag-2", "h1", "u1")
			Expect(err).ToNot(HaveOccurred())
			Expect(card.UserID).To(Equal("u1"))
			Expect(card.PatientID).To(BeEmpty())

			cards, err := service.CardsForUser(ctx, "u1")
			Expect(err).ToNot(HaveOccurred())
			Expect(cards).To(HaveLen(1))
		})
	})
})
