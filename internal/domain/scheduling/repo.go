package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentRepository handles appointment persistence.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID *string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByStaff(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDate(ctx context.Context, date time.Time, limit, offset int) ([]*Appointment, int, error)

	// SlotTaken reports whether another scheduled appointment already holds
	// the same date and start time for the appointment's staff member.
	// excludeID is skipped, so reschedules do not collide with themselves.
	SlotTaken(ctx context.Context, a *Appointment, excludeID uuid.UUID) (bool, error)
}

// StatusChangeRepository handles appointment audit records.
type StatusChangeRepository interface {
	Create(ctx context.Context, rec *StatusChangeRecord) error
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*StatusChangeRecord, error)
}
