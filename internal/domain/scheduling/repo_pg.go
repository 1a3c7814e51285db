package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartcare/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const appointmentCols = `id, patient_id, doctor_id, nurse_id, type, date, start_time, end_time,
	reason, status, is_forwarded, forwarded_to_id, calendar_event_id, created_at, updated_at`

// PGAppointmentRepository is the PostgreSQL implementation of
// AppointmentRepository.
type PGAppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewPGAppointmentRepository(pool *pgxpool.Pool) *PGAppointmentRepository {
	return &PGAppointmentRepository{pool: pool}
}

func (r *PGAppointmentRepository) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	a := &Appointment{}
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.NurseID, &a.Type, &a.Date,
		&a.StartTime, &a.EndTime, &a.Reason, &a.Status, &a.IsForwarded,
		&a.ForwardedToID, &a.CalendarEventID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// isSlotViolation detects the partial unique indexes guarding one scheduled
// appointment per staff member per slot.
func isSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "_slot")
}

func (r *PGAppointmentRepository) Create(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, nurse_id, type, date,
			start_time, end_time, reason, status, is_forwarded, forwarded_to_id, calendar_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.PatientID, a.DoctorID, a.NurseID, a.Type, a.Date,
		a.StartTime, a.EndTime, a.Reason, a.Status, a.IsForwarded, a.ForwardedToID, a.CalendarEventID)
	if isSlotViolation(err) {
		return ErrSlotConflict
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PGAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return a, nil
}

func (r *PGAppointmentRepository) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET doctor_id = $2, nurse_id = $3, type = $4, date = $5, start_time = $6,
			end_time = $7, reason = $8, status = $9, is_forwarded = $10,
			forwarded_to_id = $11, calendar_event_id = $12, updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.DoctorID, a.NurseID, a.Type, a.Date, a.StartTime, a.EndTime,
		a.Reason, a.Status, a.IsForwarded, a.ForwardedToID, a.CalendarEventID)
	if isSlotViolation(err) {
		return ErrSlotConflict
	}
	if err != nil {
		return fmt.Errorf("update appointment %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PGAppointmentRepository) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID *string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET calendar_event_id = $2, updated_at = NOW() WHERE id = $1`,
		id, eventID)
	if err != nil {
		return fmt.Errorf("set calendar event for appointment %s: %w", id, err)
	}
	return nil
}

func (r *PGAppointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `patient_id = $1`, patientID, limit, offset)
}

func (r *PGAppointmentRepository) ListByStaff(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `(doctor_id = $1 OR nurse_id = $1)`, staffID, limit, offset)
}

func (r *PGAppointmentRepository) ListByDate(ctx context.Context, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `date = $1`, date, limit, offset)
}

func (r *PGAppointmentRepository) list(ctx context.Context, where string, arg any, limit, offset int) ([]*Appointment, int, error) {
	q := r.conn(ctx)

	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE `+where, arg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+appointmentCols+` FROM appointments
		WHERE `+where+`
		ORDER BY date DESC, start_time DESC
		LIMIT $2 OFFSET $3`, arg, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate appointments: %w", err)
	}

	return appts, total, nil
}

func (r *PGAppointmentRepository) SlotTaken(ctx context.Context, a *Appointment, excludeID uuid.UUID) (bool, error) {
	staffCol := "doctor_id"
	staffID := a.DoctorID
	if a.NurseID != nil {
		staffCol = "nurse_id"
		staffID = a.NurseID
	}
	if staffID == nil {
		return false, nil
	}

	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE `+staffCol+` = $1 AND date = $2 AND start_time = $3
				AND status = 'SCHEDULED' AND id <> $4
		)`, staffID, a.Date, a.StartTime, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return exists, nil
}

const statusChangeCols = `id, appointment_id, previous_status, new_status, changed_by, reason, changed_at`

// PGStatusChangeRepository is the PostgreSQL implementation of
// StatusChangeRepository.
type PGStatusChangeRepository struct {
	pool *pgxpool.Pool
}

func NewPGStatusChangeRepository(pool *pgxpool.Pool) *PGStatusChangeRepository {
	return &PGStatusChangeRepository{pool: pool}
}

func (r *PGStatusChangeRepository) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *PGStatusChangeRepository) Create(ctx context.Context, rec *StatusChangeRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment_status_changes
			(id, appointment_id, previous_status, new_status, changed_by, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.AppointmentID, rec.PreviousStatus, rec.NewStatus,
		rec.ChangedBy, rec.Reason, rec.ChangedAt)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	return nil
}

func (r *PGStatusChangeRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*StatusChangeRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+statusChangeCols+` FROM appointment_status_changes
		WHERE appointment_id = $1
		ORDER BY changed_at DESC`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	var recs []*StatusChangeRecord
	for rows.Next() {
		rec := &StatusChangeRecord{}
		if err := rows.Scan(&rec.ID, &rec.AppointmentID, &rec.PreviousStatus,
			&rec.NewStatus, &rec.ChangedBy, &rec.Reason, &rec.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status changes: %w", err)
	}
	return recs, nil
}
