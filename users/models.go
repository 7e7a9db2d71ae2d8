package users

import "time"

// Collection is the backing collection for staff and patient identities.
const Collection = "users"

type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleHospitalAdmin Role = "admin_hospital"
	RoleDoctor        Role = "doctor"
	RoleNurse         Role = "nurse"
	RoleReceptionist  Role = "receptionist"
	RolePatient       Role = "patient"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// User is the identity record of an authenticated principal. Staff
// records additionally carry the hospital binding and a status; bare
// identities (auto-provisioned patients) leave those empty.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Role         Role      `bson:"role" json:"role"`
	FirstName    string    `bson:"firstName" json:"firstName"`
	LastName     string    `bson:"lastName" json:"lastName"`
	HospitalID   string    `bson:"hospitalId,omitempty" json:"hospitalId,omitempty"`
	HospitalName string    `bson:"hospitalName,omitempty" json:"hospitalName,omitempty"`
	Status       Status    `bson:"status,omitempty" json:"status,omitempty"`
	RFIDCardID   string    `bson:"rfidCardId,omitempty" json:"rfidCardId,omitempty"`
	IsFirstLogin bool      `bson:"isFirstLogin,omitempty" json:"isFirstLogin,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsActive treats a missing status as active: identities provisioned
// before the status field existed never carry one.
func (u User) IsActive() bool {
	return u.Status == StatusActive || u.Status == ""
}

// NewUserParams is the input for creating a staff account.
type NewUserParams struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Role         Role
	HospitalID   string
	HospitalName string
}

// Update is a partial update of a user record. Nil fields are left
// untouched.
type Update struct {
	Email        *string
	FirstName    *string
	LastName     *string
	Role         *Role
	HospitalID   *string
	HospitalName *string
	Status       *Status
}

// Apply merges the update into a user record.
func (u Update) Apply(user *User) {
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.FirstName != nil {
		user.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		user.LastName = *u.LastName
	}
	if u.Role != nil {
		user.Role = *u.Role
	}
	if u.HospitalID != nil {
		user.HospitalID = *u.HospitalID
	}
	if u.HospitalName != nil {
		user.HospitalName = *u.HospitalName
	}
	if u.Status != nil {
		user.Status = *u.Status
	}
}

// Fields returns the update as document fields for the backend write.
func (u Update) Fields(now time.Time) map[string]interface{} {
	fields := map[string]interface{}{"updatedAt": now}
	if u.Email != nil {
		fields["email"] = *u.Email
	}
	if u.FirstName != nil {
		fields["firstName"] = *u.FirstName
	}
	if u.LastName != nil {
		fields["lastName"] = *u.LastName
	}
	if u.Role != nil {
		fields["role"] = *u.Role
	}
	if u.HospitalID != nil {
		fields["hospitalId"] = *u.HospitalID
	}
	if u.HospitalName != nil {
		fields["hospitalName"] = *u.HospitalName
	}
	if u.Status != nil {
		fields["status"] = *u.Status
	}
	return fields
}
