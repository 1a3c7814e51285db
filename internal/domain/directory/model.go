package directory

import (
	"time"

	"github.com/google/uuid"
)

// Role classifies a registered user of the clinic.
type Role string

const (
	RoleDoctor       Role = "DOCTOR"
	RoleNurse        Role = "NURSE"
	RolePatient      Role = "PATIENT"
	RoleAdmin        Role = "ADMIN"
	RoleReceptionist Role = "RECEPTIONIST"
)

// Clinical reports whether the role can be assigned to an appointment.
func (r Role) Clinical() bool {
	return r == RoleDoctor || r == RoleNurse
}

// PatientCategory determines which rate and fee rules apply to a patient's
// invoices.
type PatientCategory string

const (
	CategoryNHS     PatientCategory = "NHS"
	CategoryPrivate PatientCategory = "PRIVATE"
)

// User is a registered person: clinical staff, administrative staff, or a
// patient. PatientCategory is only set for patients.
type User struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	FullName        string           `json:"full_name" db:"full_name"`
	Email           string           `json:"email" db:"email"`
	Role            Role             `json:"role" db:"role"`
	PatientCategory *PatientCategory `json:"patient_category,omitempty" db:"patient_category"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}
