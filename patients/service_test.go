package patients_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/patients"
	"github.com/medipass/hospital-worker/store"
)

var _ = Describe("Service", func() {
	var memory *store.MemoryStore
	var service *patients.Service
	var ctx context.Context

	receptionist := patients.Actor{UserID: "staff-1", Role: "receptionist", HospitalID: "h1"}
	otherHospital := patients.Actor{UserID: "staff-2", Role: "doctor", HospitalID: "h2"}

	newParams := func() patients.NewPatientParams {
		return patients.NewPatientParams{
			FirstName:   "Binta",
			LastName:    "Diallo",
			DateOfBirth: time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC),
			Gender:      "female",
			Email:       "binta@example.com",
			Phone:       "+221770000001",
			Address:     "Dakar",
		}
	}

	auditEntries := func(patientID string) []patients.AuditLog {
		trail, err := service.AuditTrail(ctx, patientID)
		Expect(err).ToNot(HaveOccurred())
		return trail
	}

	BeforeEach(func() {
		memory = store.NewMemoryStore()
		service = patients.New(patients.Params{
			Store:  memory,
			Logger: zap.NewNop().Sugar(),
		})
		ctx = context.Background()
	})

	Describe("Create", func() {
		It("writes the record and appends a create audit entry", func() {
			patient, err := service.Create(ctx, receptionist, newParams())
			Expect(err).ToNot(HaveOccurred())
			Expect(patient.OriginHospitalID).To(Equal("h1"))
			Expect(patient.Status).To(Equal(patients.StatusActive))

			_, err = memory.GetDocument(ctx, patients.Collection, patient.ID)
			Expect(err).ToNot(HaveOccurred())

			trail := auditEntries(patient.ID)
			Expect(trail).To(HaveLen(1))
			Expect(trail[0].Action).To(Equal(patients.AuditCreate))
			Expect(trail[0].UserID).To(Equal("staff-1"))
		})

		It("writes the medical data in the same batch when supplied", func() {
			params := newParams()
			params.MedicalData = &patients.MedicalData{BloodGroup: "O+"}

			patient, err := service.Create(ctx, receptionist, params)
			Expect(err).ToNot(HaveOccurred())

			data, err := service.GetMedicalData(ctx, receptionist, patient.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(data.BloodGroup).To(Equal("O+"))
		})

		DescribeTable("rejects actors who may not register patients",
			func(actor patients.Actor) {
				_, err := service.Create(ctx, actor, newParams())
				Expect(err).To(MatchError(patients.ErrActorNotPermitted))

				snapshot, err := memory.Query(ctx, patients.Collection)
				Expect(err).ToNot(HaveOccurred())
				Expect(snapshot).To(BeEmpty())
			},
			Entry("a patient", patients.Actor{UserID: "p1", Role: "patient", HospitalID: "h1"}),
			Entry("a super admin outside any hospital", patients.Actor{UserID: "sa1", Role: "super_admin"}),
			Entry("staff without a hospital assignment", patients.Actor{UserID: "staff-9", Role: "doctor"}),
		)

		DescribeTable("rejects duplicates without writing anything",
			func(mutate func(*patients.NewPatientParams)) {
				_, err := service.Create(ctx, receptionist, newParams())
				Expect(err).ToNot(HaveOccurred())

				params := newParams()
				params.Email = "other@example.com"
				params.Phone = "+221770000099"
				mutate(&params)

				_, err = service.Create(ctx, otherHospital, params)
				Expect(err).To(MatchError(patients.ErrDuplicatePatient))

				snapshot, err := memory.Query(ctx, patients.Collection)
				Expect(err).ToNot(HaveOccurred())
				Expect(snapshot).To(HaveLen(1))
			},
			Entry("same email", func(p *patients.NewPatientParams) { p.Email = "binta@example.com" }),
			Entry("same phone", func(p *patients.NewPatientParams) { p.Phone = "+221770000001" }),
		)

		It("rejects a duplicate rfid card", func() {
			params := newParams()
			params.RFIDCardID = "tag-7"
			_, err := service.Create(ctx, receptionist, params)
			Expect(err).ToNot(HaveOccurred())

			params = newParams()
			params.Email = "other@example.com"
			params.Phone = "+221770000099"
			params.RFIDCardID = "tag-7"
			_, err = service.Create(ctx, receptionist, params)
			Expect(err).To(MatchError(patients.ErrDuplicatePatient))
		})

		It("allows identifiers of inactive patients to be reused", func() {
			patient, err := service.Create(ctx, receptionist, newParams())
			Expect(err).ToNot(HaveOccurred())
			Expect(service.Deactivate(ctx, receptionist, patient.ID)).To(Succeed())

			_, err = service.Create(ctx, receptionist, newParams())
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			_, err := service.Create(ctx, receptionist, newParams())
			Expect(err).ToNot(HaveOccurred())

			params := newParams()
			params.FirstName = "Moussa"
			params.Email = "moussa@example.com"
			params.Phone = "+221770000002"
			_, err = service.Create(ctx, otherHospital, params)
			Expect(err).ToNot(HaveOccurred())
		})

		It("scopes to a hospital unless the search is global", func() {
			found, err := service.Search(ctx, receptionist, patients.SearchFilters{HospitalID: "h1"})
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].OriginHospitalID).To(Equal("h1"))

			found, err = service.Search(ctx, receptionist, patients.SearchFilters{HospitalID: "h1", IsGlobalSearch: true})
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(HaveLen(2))
		})

		It("applies the free-text term as a local substring filter", func() {
			found, err := service.Search(ctx, receptionist, patients.SearchFilters{IsGlobalSearch: true, Query: "MOUS"})
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].FirstName).To(Equal("Moussa"))
		})

		It("audits the search with the serialized filters", func() {
			filters := patients.SearchFilters{IsGlobalSearch: true, Query: "binta"}
			_, err := service.Search(ctx, receptionist, filters)
			Expect(err).ToNot(HaveOccurred())

			snapshot, err := memory.Query(ctx, patients.AuditLogCollection,
				store.Where("action", store.OpEqual, string(patients.AuditView)),
			)
			Expect(err).ToNot(HaveOccurred())
			Expect(snapshot).To(HaveLen(1))

			entry := patients.AuditLog{}
			Expect(snapshot[0].DataTo(&entry)).To(Succeed())
			Expect(entry.Details).To(ContainSubstring("binta"))
		})
	})

	Describe("Medical data gating", func() {
		var patientID string

		BeforeEach(func() {
			params := newParams()
			params.MedicalData = &patients.MedicalData{BloodGroup: "AB-"}
			patient, err := service.Create(ctx, receptionist, params)
			Expect(err).ToNot(HaveOccurred())
			patientID = patient.ID
		})

		It("denies staff of other hospitals while demographics stay visible", func() {
			_, err := service.GetMedicalData(ctx, otherHospital, patientID)
			Expect(err).To(MatchError(patients.ErrMedicalDataDenied))

			patient, err := service.Get(ctx, otherHospital, patientID)
			Expect(err).ToNot(HaveOccurred())
			Expect(patient.FirstName).To(Equal("Binta"))
		})

		It("grants origin hospital staff", func() {
			data, err := service.GetMedicalData(ctx, receptionist, patientID)
			Expect(err).ToNot(HaveOccurred())
			Expect(data.BloodGroup).To(Equal("AB-"))
		})

		It("gates writes the same way", func() {
			err := service.SetMedicalData(ctx, otherHospital, patientID, patients.MedicalData{Notes: "x"})
			Expect(err).To(MatchError(patients.ErrMedicalDataDenied))

			Expect(service.SetMedicalData(ctx, receptionist, patientID, patients.MedicalData{Notes: "allergic to penicillin"})).To(Succeed())
		})
	})

	Describe("Update", func() {
		It("is restricted to the origin hospital and audited", func() {
			patient, err := service.Create(ctx, receptionist, newParams())
			Expect(err).ToNot(HaveOccurred())

			phone := "+221770000042"
			err = service.Update(ctx, otherHospital, patient.ID, patients.Update{Phone: &phone})
			Expect(err).To(MatchError(patients.ErrOriginHospitalOnly))

			Expect(service.Update(ctx, receptionist, patient.ID, patients.Update{Phone: &phone})).To(Succeed())

			trail := auditEntries(patient.ID)
			Expect(trail).To(HaveLen(2))
		})
	})
})
