// Package booking coordinates the appointment and billing domains: it owns
// the public operations (book, reschedule, cancel, complete, forward,
// invoice management) and runs each one atomically before kicking off
// best-effort calendar sync.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/smartcare/clinic/internal/domain/billing"
	"github.com/smartcare/clinic/internal/domain/directory"
	"github.com/smartcare/clinic/internal/domain/scheduling"
	"github.com/smartcare/clinic/internal/platform/calendar"
	"github.com/smartcare/clinic/internal/platform/db"
)

// ErrInvoiceGeneration marks a completion whose status transition committed
// but whose invoice could not be issued. The appointment stays completed;
// the invoice can be generated manually once the cause is fixed.
var ErrInvoiceGeneration = errors.New("appointment completed but invoice generation failed")

// Scheduler is the slice of the scheduling service the orchestrator uses.
type Scheduler interface {
	Create(ctx context.Context, a *scheduling.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, date, start, end time.Time, staffID *uuid.UUID, staffIsDoctor bool) (*scheduling.Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, to scheduling.AppointmentStatus, actor uuid.UUID, reason string) (*scheduling.Appointment, error)
	Forward(ctx context.Context, id uuid.UUID, staffID uuid.UUID, staffIsDoctor bool, actor uuid.UUID) (*scheduling.Appointment, *scheduling.Appointment, error)
	SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID *string) error
}

// Biller is the slice of the billing service the orchestrator uses.
type Biller interface {
	Generate(ctx context.Context, appointmentID uuid.UUID, pt billing.PatientType, consultationLength int, role billing.StaffRole) (*billing.Invoice, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to billing.PaymentStatus) (*billing.Invoice, error)
	SetRate(ctx context.Context, key billing.RateKey, amount decimal.Decimal) (*billing.RateSetting, error)
}

// Directory is the slice of the user registry the orchestrator uses.
type Directory interface {
	GetStaff(ctx context.Context, id uuid.UUID) (*directory.User, error)
	PatientCategoryOf(ctx context.Context, patientID uuid.UUID) (directory.PatientCategory, error)
}

// TxRunner executes fn atomically. The production runner wraps a pgx
// transaction; tests substitute a pass-through.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// PoolTxRunner returns a TxRunner backed by the connection pool.
func PoolTxRunner(pool *pgxpool.Pool) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
}

// NopTxRunner runs fn directly, for tests without a database.
func NopTxRunner() TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	}
}

// Orchestrator wires the domain services together.
type Orchestrator struct {
	scheduler Scheduler
	biller    Biller
	directory Directory
	calendar  calendar.Client
	inTx      TxRunner
	logger    zerolog.Logger
}

func NewOrchestrator(scheduler Scheduler, biller Biller, dir Directory, cal calendar.Client, inTx TxRunner, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		scheduler: scheduler,
		biller:    biller,
		directory: dir,
		calendar:  cal,
		inTx:      inTx,
		logger:    logger,
	}
}

// BookRequest carries a new appointment. Exactly one of DoctorID and
// NurseID must be set.
type BookRequest struct {
	PatientID uuid.UUID
	DoctorID  *uuid.UUID
	NurseID   *uuid.UUID
	Type      scheduling.AppointmentType
	Date      time.Time
	StartTime time.Time
	EndTime   time.Time
	Reason    string
}

// Book validates the assigned staff member, writes the appointment
// atomically, and then syncs it to the external calendar. Calendar failures
// only log; the appointment keeps a null calendar reference.
func (o *Orchestrator) Book(ctx context.Context, req BookRequest) (*scheduling.Appointment, error) {
	a := &scheduling.Appointment{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		NurseID:   req.NurseID,
		Type:      req.Type,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
	}

	if err := o.checkStaffAssignment(ctx, a); err != nil {
		return nil, err
	}

	err := o.inTx(ctx, func(ctx context.Context) error {
		return o.scheduler.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	o.syncCreate(ctx, a)
	return a, nil
}

// checkStaffAssignment verifies the assigned id refers to a real staff
// member of the matching role. Missing assignments are left for the
// scheduling rules to reject.
func (o *Orchestrator) checkStaffAssignment(ctx context.Context, a *scheduling.Appointment) error {
	if a.DoctorID != nil {
		u, err := o.directory.GetStaff(ctx, *a.DoctorID)
		if err != nil {
			return err
		}
		if u.Role != directory.RoleDoctor {
			return directory.ErrInvalidStaff
		}
	}
	if a.NurseID != nil {
		u, err := o.directory.GetStaff(ctx, *a.NurseID)
		if err != nil {
			return err
		}
		if u.Role != directory.RoleNurse {
			return directory.ErrInvalidStaff
		}
	}
	return nil
}

// Reschedule moves a scheduled appointment, optionally reassigning it to
// another staff member, and updates its calendar event. The new assignee
// must be an existing doctor or nurse; their role decides which assignment
// field the appointment ends up on.
func (o *Orchestrator) Reschedule(ctx context.Context, id uuid.UUID, date, start, end time.Time, newStaffID *uuid.UUID) (*scheduling.Appointment, error) {
	staffIsDoctor := false
	if newStaffID != nil {
		staff, err := o.directory.GetStaff(ctx, *newStaffID)
		if err != nil {
			return nil, err
		}
		staffIsDoctor = staff.Role == directory.RoleDoctor
	}

	var a *scheduling.Appointment
	err := o.inTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = o.scheduler.Reschedule(ctx, id, date, start, end, newStaffID, staffIsDoctor)
		return err
	})
	if err != nil {
		return nil, err
	}

	if a.CalendarEventID != nil {
		if err := o.calendar.UpdateEvent(ctx, *a.CalendarEventID, o.eventFor(a)); err != nil {
			o.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("calendar update failed")
		}
	}
	return a, nil
}

// Cancel transitions a scheduled appointment to canceled, keeping the row
// and audit trail, and removes its calendar event.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID, actor uuid.UUID, reason string) (*scheduling.Appointment, error) {
	var a *scheduling.Appointment
	err := o.inTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = o.scheduler.Transition(ctx, id, scheduling.StatusCanceled, actor, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.dropEvent(ctx, a)
	return a, nil
}

// CompleteResult reports a completion. Invoice is nil when invoicing failed
// after the transition committed.
type CompleteResult struct {
	Appointment *scheduling.Appointment `json:"appointment"`
	Invoice     *billing.Invoice        `json:"invoice,omitempty"`
}

// Complete marks the appointment completed and issues its invoice. The
// transition and its audit record commit first; if invoicing then fails the
// completed state stands and the caller gets ErrInvoiceGeneration alongside
// the appointment, so the invoice can be issued manually later.
func (o *Orchestrator) Complete(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*CompleteResult, error) {
	var a *scheduling.Appointment
	err := o.inTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = o.scheduler.Transition(ctx, id, scheduling.StatusCompleted, actor, "Consultation completed")
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &CompleteResult{Appointment: a}

	inv, err := o.generateInvoice(ctx, a, nil)
	if err != nil {
		o.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("invoice generation failed after completion")
		return res, fmt.Errorf("%w: %v", ErrInvoiceGeneration, err)
	}
	res.Invoice = inv
	return res, nil
}

// generateInvoice derives the invoice inputs from the appointment. When
// override is nil the patient's registered category is used.
func (o *Orchestrator) generateInvoice(ctx context.Context, a *scheduling.Appointment, override *billing.PatientType) (*billing.Invoice, error) {
	var pt billing.PatientType
	if override != nil {
		pt = *override
	} else {
		cat, err := o.directory.PatientCategoryOf(ctx, a.PatientID)
		if err != nil {
			return nil, err
		}
		pt = billing.PatientType(cat)
	}

	role := billing.StaffDoctor
	if a.NurseID != nil {
		role = billing.StaffNurse
	}

	var inv *billing.Invoice
	err := o.inTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = o.biller.Generate(ctx, a.ID, pt, a.DurationMinutes(), role)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Forward re-books the appointment with another staff member. The target
// must be an existing doctor or nurse. The original is canceled with a
// forwarding reference, its calendar event is removed, and the new
// appointment is synced.
func (o *Orchestrator) Forward(ctx context.Context, id uuid.UUID, newStaffID uuid.UUID, actor uuid.UUID) (*scheduling.Appointment, error) {
	staff, err := o.directory.GetStaff(ctx, newStaffID)
	if err != nil {
		return nil, err
	}

	var forwarded, orig *scheduling.Appointment
	err = o.inTx(ctx, func(ctx context.Context) error {
		var err error
		forwarded, orig, err = o.scheduler.Forward(ctx, id, newStaffID, staff.Role == directory.RoleDoctor, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.dropEvent(ctx, orig)
	o.syncCreate(ctx, forwarded)
	return forwarded, nil
}

// GenerateInvoice is the manual invoicing path for completed appointments,
// with an optional patient type override.
func (o *Orchestrator) GenerateInvoice(ctx context.Context, appointmentID uuid.UUID, override *billing.PatientType) (*billing.Invoice, error) {
	a, err := o.scheduler.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != scheduling.StatusCompleted {
		return nil, scheduling.ErrInvalidTransition
	}
	return o.generateInvoice(ctx, a, override)
}

// UpdateInvoiceStatus moves an invoice along the payment flow.
func (o *Orchestrator) UpdateInvoiceStatus(ctx context.Context, invoiceID uuid.UUID, to billing.PaymentStatus) (*billing.Invoice, error) {
	var inv *billing.Invoice
	err := o.inTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = o.biller.UpdateStatus(ctx, invoiceID, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// SetRate updates the rate catalog.
func (o *Orchestrator) SetRate(ctx context.Context, key billing.RateKey, amount decimal.Decimal) (*billing.RateSetting, error) {
	return o.biller.SetRate(ctx, key, amount)
}

// SyncCalendar retries the calendar push for an appointment that has no
// event yet. Unlike the implicit sync after booking, failures surface to
// the caller.
func (o *Orchestrator) SyncCalendar(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	a, err := o.scheduler.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Active() {
		return nil, scheduling.ErrInvalidTransition
	}
	if a.CalendarEventID != nil {
		return a, nil
	}

	eventID, err := o.calendar.CreateEvent(ctx, o.eventFor(a))
	if err != nil {
		return nil, err
	}
	if eventID != "" {
		if err := o.scheduler.SetCalendarEventID(ctx, a.ID, &eventID); err != nil {
			return nil, err
		}
		a.CalendarEventID = &eventID
	}
	return a, nil
}

func (o *Orchestrator) eventFor(a *scheduling.Appointment) calendar.Event {
	return calendar.Event{
		AppointmentID: a.ID,
		StaffID:       a.StaffID(),
		PatientID:     a.PatientID,
		Title:         string(a.Type),
		Start:         a.StartTime,
		End:           a.EndTime,
	}
}

// syncCreate pushes a freshly booked appointment to the calendar. A failure
// is logged and the appointment keeps a null event reference.
func (o *Orchestrator) syncCreate(ctx context.Context, a *scheduling.Appointment) {
	eventID, err := o.calendar.CreateEvent(ctx, o.eventFor(a))
	if err != nil {
		o.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("calendar sync failed")
		return
	}
	if eventID == "" {
		return
	}
	if err := o.scheduler.SetCalendarEventID(ctx, a.ID, &eventID); err != nil {
		o.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("storing calendar event id failed")
		return
	}
	a.CalendarEventID = &eventID
}

func (o *Orchestrator) dropEvent(ctx context.Context, a *scheduling.Appointment) {
	if a.CalendarEventID == nil {
		return
	}
	if err := o.calendar.DeleteEvent(ctx, *a.CalendarEventID); err != nil {
		o.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("calendar delete failed")
		return
	}
	if err := o.scheduler.SetCalendarEventID(ctx, a.ID, nil); err != nil {
		o.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("clearing calendar event id failed")
		return
	}
	a.CalendarEventID = nil
}
