package reception

import "time"

const (
	AppointmentsCollection = "appointments"
	QueueCollection        = "patientQueue"
	MessagesCollection     = "messages"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

type Appointment struct {
	ID         string            `bson:"_id" json:"id"`
	PatientID  string            `bson:"patientId" json:"patientId"`
	DoctorID   string            `bson:"doctorId" json:"doctorId"`
	HospitalID string            `bson:"hospitalId" json:"hospitalId"`
	Date       time.Time         `bson:"date" json:"date"`
	Duration   int               `bson:"duration" json:"duration"`
	Status     AppointmentStatus `bson:"status" json:"status"`
	Type       string            `bson:"type" json:"type"`
	Notes      string            `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedBy  string            `bson:"createdBy" json:"createdBy"`
	CreatedAt  time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// QueueEntry is one patient waiting at the reception desk today.
type QueueEntry struct {
	ID          string    `bson:"_id" json:"id"`
	PatientID   string    `bson:"patientId" json:"patientId"`
	HospitalID  string    `bson:"hospitalId" json:"hospitalId"`
	ArrivalTime time.Time `bson:"arrivalTime" json:"arrivalTime"`
	Status      string    `bson:"status,omitempty" json:"status,omitempty"`
}

type MessageType string

const (
	MessageChat         MessageType = "chat"
	MessageAnnouncement MessageType = "announcement"
)

type Message struct {
	ID        string      `bson:"_id" json:"id"`
	Type      MessageType `bson:"type" json:"type"`
	From      string      `bson:"from,omitempty" json:"from,omitempty"`
	Body      string      `bson:"body" json:"body"`
	Read      bool        `bson:"read" json:"read"`
	CreatedAt time.Time   `bson:"createdAt" json:"createdAt"`
}

// TodayStats is the reception desk summary, recomputed on each feed
// delivery.
type TodayStats struct {
	TotalPatients        int `json:"totalPatients"`
	UpcomingAppointments int `json:"upcomingAppointments"`
	UnreadNotifications  int `json:"unreadNotifications"`
}
