package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Prescription is medication issued during an appointment.
type Prescription struct {
	ID             uuid.UUID `json:"id" db:"id"`
	AppointmentID  uuid.UUID `json:"appointment_id" db:"appointment_id"`
	PatientID      uuid.UUID `json:"patient_id" db:"patient_id"`
	DoctorID       uuid.UUID `json:"doctor_id" db:"doctor_id"`
	Medication     string    `json:"medication" db:"medication"`
	Dosage         string    `json:"dosage" db:"dosage"`
	Instructions   string    `json:"instructions" db:"instructions"`
	IsRepeatable   bool      `json:"is_repeatable" db:"is_repeatable"`
	DatePrescribed time.Time `json:"date_prescribed" db:"date_prescribed"`
}
