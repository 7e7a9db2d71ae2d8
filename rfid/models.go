package rfid

import "time"

const Collection = "rfidCards"

// Card binds a physical RFID card to a hospital and, once assigned, to a
// patient or staff member.
type Card struct {
	ID         string    `bson:"_id" json:"id"`
	UID        string    `bson:"uid" json:"uid"`
	IsActive   bool      `bson:"isActive" json:"isActive"`
	PatientID  string    `bson:"patientId,omitempty" json:"patientId,omitempty"`
	UserID     string    `bson:"userId,omitempty" json:"userId,omitempty"`
	HospitalID string    `bson:"hospitalId" json:"hospitalId"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}
