package patients

import (
	"time"

	"github.com/medipass/hospital-worker/users"
)

const (
	Collection            = "patients"
	MedicalDataCollection = "patientMedicalData"
	AuditLogCollection    = "patientAuditLogs"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Patient holds the demographic record, readable by any hospital's
// staff. OriginHospitalID is set at creation and never changes.
type Patient struct {
	ID               string    `bson:"_id" json:"id"`
	FirstName        string    `bson:"firstName" json:"firstName"`
	LastName         string    `bson:"lastName" json:"lastName"`
	DateOfBirth      time.Time `bson:"dateOfBirth" json:"dateOfBirth"`
	Gender           string    `bson:"gender" json:"gender"`
	Email            string    `bson:"email,omitempty" json:"email,omitempty"`
	Phone            string    `bson:"phone" json:"phone"`
	Address          string    `bson:"address" json:"address"`
	RFIDCardID       string    `bson:"rfidCardId,omitempty" json:"rfidCardId,omitempty"`
	OriginHospitalID string    `bson:"originHospitalId" json:"originHospitalId"`
	Status           Status    `bson:"status" json:"status"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}

// MedicalData is the one-to-one clinical record, keyed by patient id,
// visible only to the origin hospital's staff.
type MedicalData struct {
	PatientID       string    `bson:"_id" json:"patientId"`
	BloodGroup      string    `bson:"bloodGroup,omitempty" json:"bloodGroup,omitempty"`
	Allergies       []string  `bson:"allergies,omitempty" json:"allergies,omitempty"`
	ChronicDiseases []string  `bson:"chronicDiseases,omitempty" json:"chronicDiseases,omitempty"`
	Notes           string    `bson:"notes,omitempty" json:"notes,omitempty"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditView   AuditAction = "view"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// AuditLog is append-only. Nothing in this codebase updates or deletes
// entries once written.
type AuditLog struct {
	ID         string      `bson:"_id" json:"id"`
	PatientID  string      `bson:"patientId" json:"patientId"`
	UserID     string      `bson:"userId" json:"userId"`
	UserRole   string      `bson:"userRole" json:"userRole"`
	HospitalID string      `bson:"hospitalId,omitempty" json:"hospitalId,omitempty"`
	Action     AuditAction `bson:"action" json:"action"`
	Timestamp  time.Time   `bson:"timestamp" json:"timestamp"`
	Details    string      `bson:"details,omitempty" json:"details,omitempty"`
}

// Actor identifies the staff member performing an operation.
type Actor struct {
	UserID     string
	Role       string
	HospitalID string
}

var registrationRoles = map[string]struct{}{
	string(users.RoleReceptionist):  {},
	string(users.RoleNurse):         {},
	string(users.RoleDoctor):        {},
	string(users.RoleHospitalAdmin): {},
}

// CanRegisterPatients reports whether the actor is clinical staff
// assigned to a hospital. The hospital requirement matters beyond
// authorization: it becomes the new record's origin hospital.
func (a Actor) CanRegisterPatients() bool {
	if a.HospitalID == "" {
		return false
	}
	_, ok := registrationRoles[a.Role]
	return ok
}

// NewPatientParams is the input for registering a patient.
type NewPatientParams struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Gender      string
	Email       string
	Phone       string
	Address     string
	RFIDCardID  string
	MedicalData *MedicalData
}

// Update is a partial update of the demographic record.
type Update struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Address   *string
	Status    *Status
}

func (u Update) Fields(now time.Time) map[string]interface{} {
	fields := map[string]interface{}{"updatedAt": now}
	if u.FirstName != nil {
		fields["firstName"] = *u.FirstName
	}
	if u.LastName != nil {
		fields["lastName"] = *u.LastName
	}
	if u.Email != nil {
		fields["email"] = *u.Email
	}
	if u.Phone != nil {
		fields["phone"] = *u.Phone
	}
	if u.Address != nil {
		fields["address"] = *u.Address
	}
	if u.Status != nil {
		fields["status"] = *u.Status
	}
	return fields
}

// SearchFilters narrows a patient search. Query is a free-text term
// applied locally over the already-narrowed result set.
type SearchFilters struct {
	HospitalID     string     `json:"hospitalId,omitempty"`
	IsGlobalSearch bool       `json:"isGlobalSearch,omitempty"`
	Status         Status     `json:"status,omitempty"`
	CreatedAfter   *time.Time `json:"createdAfter,omitempty"`
	CreatedBefore  *time.Time `json:"createdBefore,omitempty"`
	Query          string     `json:"query,omitempty"`
}
