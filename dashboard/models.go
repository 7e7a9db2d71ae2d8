package dashboard

import "time"

const NotificationsCollection = "notifications"

// HospitalsNewWindow is how recently a hospital must have been created
// to count as new on the dashboard.
const HospitalsNewWindow = 30 * 24 * time.Hour

// Stats is the denormalized aggregate fed by three independent
// subscriptions. Each feed owns its own section.
type Stats struct {
	Hospitals HospitalStats `json:"hospitals"`
	Users     UserStats     `json:"users"`
	Cards     CardStats     `json:"cards"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type HospitalStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	New    int `json:"new"`
}

type UserStats struct {
	Total  int            `json:"total"`
	ByRole map[string]int `json:"byRole"`
	Active int            `json:"active"`
}

type CardStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// StatsUpdate is a partial update of the aggregate. A nil section leaves
// the current value in place, so one feed's update never erases the
// others' last-known values.
type StatsUpdate struct {
	Hospitals *HospitalStats
	Users     *UserStats
	Cards     *CardStats
}

func (u StatsUpdate) Apply(stats *Stats, now time.Time) {
	if u.Hospitals != nil {
		stats.Hospitals = *u.Hospitals
	}
	if u.Users != nil {
		stats.Users = *u.Users
	}
	if u.Cards != nil {
		stats.Cards = *u.Cards
	}
	stats.UpdatedAt = now
}

// Notification is a dashboard alert. Only unread ones are subscribed to.
type Notification struct {
	ID        string    `bson:"_id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Body      string    `bson:"body,omitempty" json:"body,omitempty"`
	IsRead    bool      `bson:"isRead" json:"isRead"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
