package scheduling

import "errors"

var (
	// ErrAppointmentNotFound is returned when no appointment exists for an id.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrPastDate rejects bookings and reschedules dated before today.
	ErrPastDate = errors.New("appointment date cannot be in the past")

	// ErrMissingStaff rejects appointments without exactly one assigned
	// doctor or nurse.
	ErrMissingStaff = errors.New("appointment requires exactly one of doctor or nurse")

	// ErrSlotConflict rejects a booking whose staff member already has a
	// scheduled appointment at the same date and time.
	ErrSlotConflict = errors.New("staff member already has an appointment at this time")

	// ErrInvalidTransition rejects status changes not allowed by the
	// appointment lifecycle.
	ErrInvalidTransition = errors.New("invalid appointment status transition")

	// ErrInvalidTimeRange rejects appointments whose end does not follow
	// their start.
	ErrInvalidTimeRange = errors.New("end_time must be after start_time")
)
