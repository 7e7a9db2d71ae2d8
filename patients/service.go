package patients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/medipass/hospital-worker/store"
)

var (
	ErrActorNotPermitted  = errors.New("patient registration requires clinical staff assigned to a hospital")
	ErrDuplicatePatient   = errors.New("a patient with the same email, phone or rfid card already exists")
	ErrMedicalDataDenied  = errors.New("medical data is only visible to the patient's origin hospital")
	ErrOriginHospitalOnly = errors.New("only the patient's origin hospital may modify this record")
)

var Module = fx.Provide(New)

type Params struct {
	fx.In

	Store  store.Store
	Logger *zap.SugaredLogger
}

// Service implements the patient registry: system-wide deduplication on
// creation, cross-hospital demographic reads with origin-hospital-only
// medical data, and an append-only audit trail on every access.
type Service struct {
	store  store.Store
	logger *zap.SugaredLogger
}

func New(p Params) *Service {
	return &Service{
		store:  p.Store,
		logger: p.Logger,
	}
}

// CheckExists looks for an active patient matching any of the supplied
// identifiers. Empty identifiers are skipped. The three lookups run
// concurrently; the first hit cancels the rest.
func (s *Service) CheckExists(ctx context.Context, email, phone, rfidCardID string) error {
	group, ctx := errgroup.WithContext(ctx)

	check := func(field, value string) {
		if value == "" {
			return
		}
		group.Go(func() error {
			snapshot, err := s.store.Query(ctx, Collection,
				store.Where(field, store.OpEqual, value),
				store.Where("status", store.OpEqual, string(StatusActive)),
			)
			if err != nil {
				return fmt.Errorf("unable to check %s for duplicates: %w", field, err)
			}
			if len(snapshot) > 0 {
				return ErrDuplicatePatient
			}
			return nil
		})
	}

	check("email", email)
	check("phone", phone)
	check("rfidCardId", rfidCardID)

	return group.Wait()
}

// Create registers a patient for the actor's hospital. The actor check
// runs first, then the dedup check; a passing check is not transactional
// with the write, so two racing creations can both slip through.
func (s *Service) Create(ctx context.Context, actor Actor, params NewPatientParams) (*Patient, error) {
	if !actor.CanRegisterPatients() {
		return nil, ErrActorNotPermitted
	}
	if err := s.CheckExists(ctx, params.Email, params.Phone, params.RFIDCardID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	patient := Patient{
		ID:               uuid.NewString(),
		FirstName:        params.FirstName,
		LastName:         params.LastName,
		DateOfBirth:      params.DateOfBirth,
		Gender:           params.Gender,
		Email:            params.Email,
		Phone:            params.Phone,
		Address:          params.Address,
		RFIDCardID:       params.RFIDCardID,
		OriginHospitalID: actor.HospitalID,
		Status:           StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	batch := s.store.Batch()
	batch.Set(Collection, patient.ID, patient)
	if params.MedicalData != nil {
		data := *params.MedicalData
		data.PatientID = patient.ID
		data.UpdatedAt = now
		batch.Set(MedicalDataCollection, patient.ID, data)
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("unable to create patient: %w", err)
	}

	s.appendAudit(ctx, actor, patient.ID, AuditCreate, "")
	s.logger.Infow("created patient", "patientId", patient.ID, "hospitalId", actor.HospitalID)
	return &patient, nil
}

// Get returns the demographic record. Readable by any hospital's staff.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*Patient, error) {
	document, err := s.store.GetDocument(ctx, Collection, id)
	if err != nil {
		return nil, err
	}
	patient := Patient{}
	if err := document.DataTo(&patient); err != nil {
		return nil, fmt.Errorf("unable to decode patient %s: %w", id, err)
	}

	s.appendAudit(ctx, actor, id, AuditView, "")
	return &patient, nil
}

// Search narrows the patient set with backend predicates, then applies
// the free-text term locally. The backend matches exact and range
// predicates only, so substring search has to run over the already
// narrowed set.
func (s *Service) Search(ctx context.Context, actor Actor, filters SearchFilters) ([]Patient, error) {
	predicates := []store.Predicate{}
	if !filters.IsGlobalSearch && filters.HospitalID != "" {
		predicates = append(predicates, store.Where("originHospitalId", store.OpEqual, filters.HospitalID))
	}
	if filters.Status != "" {
		predicates = append(predicates, store.Where("status", store.OpEqual, string(filters.Status)))
	}
	if filters.CreatedAfter != nil {
		predicates = append(predicates, store.Where("createdAt", store.OpGreaterOrEqual, *filters.CreatedAfter))
	}
	if filters.CreatedBefore != nil {
		predicates = append(predicates, store.Where("createdAt", store.OpLessOrEqual, *filters.CreatedBefore))
	}

	snapshot, err := s.store.Query(ctx, Collection, predicates...)
	if err != nil {
		return nil, fmt.Errorf("unable to search patients: %w", err)
	}
	patients, err := store.DecodeAll[Patient](snapshot)
	if err != nil {
		return nil, fmt.Errorf("unable to decode patients: %w", err)
	}

	if term := strings.ToLower(strings.TrimSpace(filters.Query)); term != "" {
		matched := patients[:0]
		for _, patient := range patients {
			if matchesTerm(patient, term) {
				matched = append(matched, patient)
			}
		}
		patients = matched
	}

	details, _ := json.Marshal(filters)
	s.appendAudit(ctx, actor, "", AuditView, string(details))
	return patients, nil
}

// Update modifies the demographic record. Only staff of the origin
// hospital may write.
func (s *Service) Update(ctx context.Context, actor Actor, id string, update Update) error {
	if err := s.requireOrigin(ctx, actor, id); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.store.UpdateDocument(ctx, Collection, id, update.Fields(now)); err != nil {
		return fmt.Errorf("unable to update patient %s: %w", id, err)
	}

	s.appendAudit(ctx, actor, id, AuditUpdate, "")
	return nil
}

// Deactivate soft-deletes the patient so the identifiers become free for
// reuse by the dedup check.
func (s *Service) Deactivate(ctx context.Context, actor Actor, id string) error {
	if err := s.requireOrigin(ctx, actor, id); err != nil {
		return err
	}

	err := s.store.UpdateDocument(ctx, Collection, id, map[string]interface{}{
		"status":    StatusInactive,
		"updatedAt": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("unable to deactivate patient %s: %w", id, err)
	}

	s.appendAudit(ctx, actor, id, AuditDelete, "")
	return nil
}

// CanAccessMedicalData reports whether the actor may read the patient's
// medical data. A client-side convenience only; the backend enforces
// the same rule.
func (s *Service) CanAccessMedicalData(actor Actor, patient Patient) bool {
	return actor.HospitalID != "" && actor.HospitalID == patient.OriginHospitalID
}

// GetMedicalData returns the clinical record, gated on the origin
// hospital.
func (s *Service) GetMedicalData(ctx context.Context, actor Actor, patientID string) (*MedicalData, error) {
	patient, err := s.lookup(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !s.CanAccessMedicalData(actor, *patient) {
		return nil, ErrMedicalDataDenied
	}

	document, err := s.store.GetDocument(ctx, MedicalDataCollection, patientID)
	if err != nil {
		return nil, err
	}
	data := MedicalData{}
	if err := document.DataTo(&data); err != nil {
		return nil, fmt.Errorf("unable to decode medical data for %s: %w", patientID, err)
	}

	s.appendAudit(ctx, actor, patientID, AuditView, "medicalData")
	return &data, nil
}

// SetMedicalData writes the clinical record, gated on the origin
// hospital.
func (s *Service) SetMedicalData(ctx context.Context, actor Actor, patientID string, data MedicalData) error {
	patient, err := s.lookup(ctx, patientID)
	if err != nil {
		return err
	}
	if !s.CanAccessMedicalData(actor, *patient) {
		return ErrMedicalDataDenied
	}

	data.PatientID = patientID
	data.UpdatedAt = time.Now().UTC()
	if err := s.store.SetDocument(ctx, MedicalDataCollection, patientID, data, store.Merge()); err != nil {
		return fmt.Errorf("unable to store medical data for %s: %w", patientID, err)
	}

	s.appendAudit(ctx, actor, patientID, AuditUpdate, "medicalData")
	return nil
}

// AuditTrail returns the log entries for a patient, newest last.
func (s *Service) AuditTrail(ctx context.Context, patientID string) ([]AuditLog, error) {
	snapshot, err := s.store.Query(ctx, AuditLogCollection, store.Where("patientId", store.OpEqual, patientID))
	if err != nil {
		return nil, fmt.Errorf("unable to fetch audit trail for %s: %w", patientID, err)
	}
	return store.DecodeAll[AuditLog](snapshot)
}

func (s *Service) lookup(ctx context.Context, id string) (*Patient, error) {
	document, err := s.store.GetDocument(ctx, Collection, id)
	if err != nil {
		return nil, err
	}
	patient := Patient{}
	if err := document.DataTo(&patient); err != nil {
		return nil, fmt.Errorf("unable to decode patient %s: %w", id, err)
	}
	return &patient, nil
}

func (s *Service) requireOrigin(ctx context.Context, actor Actor, id string) error {
	patient, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if actor.HospitalID != patient.OriginHospitalID {
		return ErrOriginHospitalOnly
	}
	return nil
}

// appendAudit writes the log entry outside the main operation. A failed
// append is logged and never surfaced to the caller.
func (s *Service) appendAudit(ctx context.Context, actor Actor, patientID string, action AuditAction, details string) {
	entry := AuditLog{
		ID:         uuid.NewString(),
		PatientID:  patientID,
		UserID:     actor.UserID,
		UserRole:   actor.Role,
		HospitalID: actor.HospitalID,
		Action:     action,
		Timestamp:  time.Now().UTC(),
		Details:    details,
	}
	if err := s.store.SetDocument(ctx, AuditLogCollection, entry.ID, entry); err != nil {
		s.logger.Errorw("unable to append audit log", "patientId", patientID, "action", action, zap.Error(err))
	}
}

func matchesTerm(patient Patient, term string) bool {
	for _, field := range []string{patient.FirstName, patient.LastName, patient.Email, patient.Phone} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
