package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smartcare/clinic/internal/platform/clock"
)

// Service implements the appointment lifecycle: booking validation, slot
// conflict checks, status transitions with audit records, and forwarding.
type Service struct {
	appts   AppointmentRepository
	changes StatusChangeRepository
	clock   clock.Clock
}

func NewService(appts AppointmentRepository, changes StatusChangeRepository, clk clock.Clock) *Service {
	return &Service{appts: appts, changes: changes, clock: clk}
}

// validate runs the booking rules shared by create, reschedule and forward.
// excludeID is ignored during the slot check so an appointment can keep its
// own slot when rescheduled.
func (s *Service) validate(ctx context.Context, a *Appointment, excludeID uuid.UUID) error {
	if (a.DoctorID == nil) == (a.NurseID == nil) {
		return ErrMissingStaff
	}
	if !ValidType(a.Type) {
		return fmt.Errorf("invalid appointment type: %s", a.Type)
	}
	if !a.EndTime.After(a.StartTime) {
		return ErrInvalidTimeRange
	}
	if a.Date.Before(clock.Today(s.clock)) {
		return ErrPastDate
	}

	taken, err := s.appts.SlotTaken(ctx, a, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlotConflict
	}
	return nil
}

// Create books a new appointment. A zero end time defaults to ten minutes
// after the start.
func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.Status != StatusScheduled {
		return ErrInvalidTransition
	}
	if a.EndTime.IsZero() {
		a.EndTime = a.StartTime.Add(DefaultDuration)
	}

	if err := s.validate(ctx, a, uuid.Nil); err != nil {
		return err
	}
	return s.appts.Create(ctx, a)
}

// Reschedule moves a scheduled appointment to a new slot and, when staffID
// is set, reassigns it to that staff member in the same update. Switching
// between a doctor and a nurse clears the other reference. The slot check
// excludes the appointment itself and runs against the new assignee.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date, start, end time.Time, staffID *uuid.UUID, staffIsDoctor bool) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}

	a.Date = date
	a.StartTime = start
	if end.IsZero() {
		end = start.Add(DefaultDuration)
	}
	a.EndTime = end

	if staffID != nil {
		if staffIsDoctor {
			a.DoctorID = staffID
			a.NurseID = nil
		} else {
			a.NurseID = staffID
			a.DoctorID = nil
		}
	}

	if err := s.validate(ctx, a, a.ID); err != nil {
		return nil, err
	}
	if err := s.appts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Transition moves an appointment to a terminal status and appends an audit
// record in the same unit of work.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to AppointmentStatus, actor uuid.UUID, reason string) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, to) {
		return nil, ErrInvalidTransition
	}

	prev := a.Status
	a.Status = to
	if err := s.appts.Update(ctx, a); err != nil {
		return nil, err
	}

	rec := &StatusChangeRecord{
		ID:             uuid.New(),
		AppointmentID:  a.ID,
		PreviousStatus: prev,
		NewStatus:      to,
		ChangedBy:      actor,
		Reason:         reason,
		ChangedAt:      s.clock.Now(),
	}
	if err := s.changes.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("record status change: %w", err)
	}
	return a, nil
}

// Forward cancels the original appointment and books a copy of it with the
// target staff member. The new appointment keeps the original's slot and is
// validated against the target's calendar. staffIsDoctor selects which
// assignment field the target occupies.
func (s *Service) Forward(ctx context.Context, id uuid.UUID, staffID uuid.UUID, staffIsDoctor bool, actor uuid.UUID) (*Appointment, *Appointment, error) {
	orig, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if orig.Status != StatusScheduled {
		return nil, nil, ErrInvalidTransition
	}

	forwarded := &Appointment{
		ID:        uuid.New(),
		PatientID: orig.PatientID,
		Type:      orig.Type,
		Date:      orig.Date,
		StartTime: orig.StartTime,
		EndTime:   orig.EndTime,
		Reason:    ForwardReasonPrefix + orig.Reason,
		Status:    StatusScheduled,
	}
	if staffIsDoctor {
		forwarded.DoctorID = &staffID
	} else {
		forwarded.NurseID = &staffID
	}

	// Exclude the original from the slot check: it is canceled below in the
	// same unit of work, so forwarding back to its own staff member must not
	// collide with it.
	if err := s.validate(ctx, forwarded, orig.ID); err != nil {
		return nil, nil, err
	}

	// Cancel the original first so its slot is free if both appointments
	// share a staff member.
	prev := orig.Status
	orig.Status = StatusCanceled
	orig.IsForwarded = true
	orig.ForwardedToID = &forwarded.ID
	if err := s.appts.Update(ctx, orig); err != nil {
		return nil, nil, err
	}

	if err := s.appts.Create(ctx, forwarded); err != nil {
		return nil, nil, err
	}

	rec := &StatusChangeRecord{
		ID:             uuid.New(),
		AppointmentID:  orig.ID,
		PreviousStatus: prev,
		NewStatus:      StatusCanceled,
		ChangedBy:      actor,
		Reason:         "Forwarded",
		ChangedAt:      s.clock.Now(),
	}
	if err := s.changes.Create(ctx, rec); err != nil {
		return nil, nil, fmt.Errorf("record status change: %w", err)
	}

	return forwarded, orig, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

// History returns the appointment's audit trail, newest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*StatusChangeRecord, error) {
	if _, err := s.appts.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.changes.ListByAppointment(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByStaff(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.ListByStaff(ctx, staffID, limit, offset)
}

func (s *Service) ListByDate(ctx context.Context, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.ListByDate(ctx, date, limit, offset)
}

// SetCalendarEventID records (or clears) the external calendar reference.
func (s *Service) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID *string) error {
	return s.appts.SetCalendarEventID(ctx, id, eventID)
}
