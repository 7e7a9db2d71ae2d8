package users

import (
	"errors"
	"fmt"
	"regexp"
)

const minPasswordLength = 6

var (
	ErrEmailExists     = errors.New("an account with this email already exists")
	ErrInvalidHospital = errors.New("the selected hospital does not exist or is inactive")
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate checks the creation parameters before any write starts.
// Hospital existence and email uniqueness are checked against the
// backend separately.
func (p NewUserParams) Validate() error {
	if p.Email == "" {
		return errors.New("email is required")
	}
	if !emailPattern.MatchString(p.Email) {
		return errors.New("email address is malformed")
	}
	if len(p.Password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if p.FirstName == "" {
		return errors.New("first name is required")
	}
	if p.LastName == "" {
		return errors.New("last name is required")
	}
	if p.Role == "" {
		return errors.New("role is required")
	}
	if p.HospitalID == "" {
		return errors.New("hospital is required")
	}
	return nil
}
