package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentType enumerates the kinds of consultation the clinic offers.
type AppointmentType string

const (
	TypeSurgery         AppointmentType = "SURGERY"
	TypeGeneralCheckup  AppointmentType = "GENERAL_CHECKUP"
	TypeDental          AppointmentType = "DENTAL"
	TypePhysicalTherapy AppointmentType = "PHYSICAL_THERAPY"
	TypeDermatology     AppointmentType = "DERMATOLOGY"
	TypeCardiology      AppointmentType = "CARDIOLOGY"
	TypeNeurology       AppointmentType = "NEUROLOGY"
)

// ValidType reports whether t is a known appointment type.
func ValidType(t AppointmentType) bool {
	switch t {
	case TypeSurgery, TypeGeneralCheckup, TypeDental, TypePhysicalTherapy,
		TypeDermatology, TypeCardiology, TypeNeurology:
		return true
	}
	return false
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCanceled  AppointmentStatus = "CANCELED"
)

// allowedTransitions holds the only legal status moves. Completed and
// canceled are terminal.
var allowedTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusCompleted, StatusCanceled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DefaultDuration applies when a booking request omits the end time.
const DefaultDuration = 10 * time.Minute

// ForwardReasonPrefix is prepended to the reason of an appointment created
// by forwarding a patient to another staff member.
const ForwardReasonPrefix = "Forwarded: "

// Appointment is a booked consultation. Exactly one of DoctorID and NurseID
// is set.
type Appointment struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	PatientID       uuid.UUID         `json:"patient_id" db:"patient_id"`
	DoctorID        *uuid.UUID        `json:"doctor_id,omitempty" db:"doctor_id"`
	NurseID         *uuid.UUID        `json:"nurse_id,omitempty" db:"nurse_id"`
	Type            AppointmentType   `json:"type" db:"type"`
	Date            time.Time         `json:"date" db:"date"`
	StartTime       time.Time         `json:"start_time" db:"start_time"`
	EndTime         time.Time         `json:"end_time" db:"end_time"`
	Reason          string            `json:"reason" db:"reason"`
	Status          AppointmentStatus `json:"status" db:"status"`
	IsForwarded     bool              `json:"is_forwarded" db:"is_forwarded"`
	ForwardedToID   *uuid.UUID        `json:"forwarded_to_id,omitempty" db:"forwarded_to_id"`
	CalendarEventID *string           `json:"calendar_event_id,omitempty" db:"calendar_event_id"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// StaffID returns the assigned staff member's id, or uuid.Nil when the
// appointment is missing its assignment.
func (a *Appointment) StaffID() uuid.UUID {
	if a.DoctorID != nil {
		return *a.DoctorID
	}
	if a.NurseID != nil {
		return *a.NurseID
	}
	return uuid.Nil
}

// DurationMinutes is the consultation length derived from the booked times.
func (a *Appointment) DurationMinutes() int {
	return int(a.EndTime.Sub(a.StartTime) / time.Minute)
}

// Active reports whether the appointment still occupies its slot.
func (a *Appointment) Active() bool {
	return a.Status == StatusScheduled
}

// StatusChangeRecord is an audit entry appended whenever an appointment
// leaves the scheduled state.
type StatusChangeRecord struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	AppointmentID  uuid.UUID         `json:"appointment_id" db:"appointment_id"`
	PreviousStatus AppointmentStatus `json:"previous_status" db:"previous_status"`
	NewStatus      AppointmentStatus `json:"new_status" db:"new_status"`
	ChangedBy      uuid.UUID         `json:"changed_by" db:"changed_by"`
	Reason         string            `json:"reason" db:"reason"`
	ChangedAt      time.Time         `json:"changed_at" db:"changed_at"`
}
