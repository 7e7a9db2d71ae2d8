package hospitals

import "time"

const Collection = "hospitals"

type Hospital struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Address   string    `bson:"address" json:"address"`
	Phone     string    `bson:"phone" json:"phone"`
	Email     string    `bson:"email" json:"email"`
	IsActive  bool      `bson:"isActive" json:"isActive"`
	UserCount int       `bson:"userCount,omitempty" json:"userCount,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

type NewHospitalParams struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

// Update is a partial update of a hospital record. Nil fields are left
// untouched.
type Update struct {
	Name     *string
	Address  *string
	Phone    *string
	Email    *string
	IsActive *bool
}

func (u Update) Apply(hospital *Hospital) {
	if u.Name != nil {
		hospital.Name = *u.Name
	}
	if u.Address != nil {
		hospital.Address = *u.Address
	}
	if u.Phone != nil {
		hospital.Phone = *u.Phone
	}
	if u.Email != nil {
		hospital.Email = *u.Email
	}
	if u.IsActive != nil {
		hospital.IsActive = *u.IsActive
	}
}

func (u Update) Fields(now time.Time) map[string]interface{} {
	fields := map[string]interface{}{"updatedAt": now}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.Address != nil {
		fields["address"] = *u.Address
	}
	if u.Phone != nil {
		fields["phone"] = *u.Phone
	}
	if u.Email != nil {
		fields["email"] = *u.Email
	}
	if u.IsActive != nil {
		fields["isActive"] = *u.IsActive
	}
	return fields
}
