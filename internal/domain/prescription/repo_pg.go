package prescription

import (
	"context"
	"errors"
	"fmt"

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

const prescriptionCols = `id, appointment_id, patient_id, doctor_id, medication,
	dosage, instructions, is_repeatable, date_prescribed`

// PGRepository is the PostgreSQL implementation of Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	p := &Prescription{}
	err := row.Scan(&p.ID, &p.AppointmentID, &p.PatientID, &p.DoctorID,
		&p.Medication, &p.Dosage, &p.Instructions, &p.IsRepeatable, &p.DatePrescribed)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PGRepository) Create(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescriptions (id, appointment_id, patient_id, doctor_id,
			medication, dosage, instructions, is_repeatable, date_prescribed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.AppointmentID, p.PatientID, p.DoctorID, p.Medication,
		p.Dosage, p.Instructions, p.IsRepeatable, p.DatePrescribed)
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id)
	p, err := scanPrescription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prescription %s: %w", id, err)
	}
	return p, nil
}

func (r *PGRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+prescriptionCols+` FROM prescriptions
		WHERE appointment_id = $1
		ORDER BY date_prescribed DESC`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions by appointment: %w", err)
	}
	defer rows.Close()

	return collectPrescriptions(rows)
}

func (r *PGRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	q := r.conn(ctx)

	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM prescriptions WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prescriptions: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+prescriptionCols+` FROM prescriptions
		WHERE patient_id = $1
		ORDER BY date_prescribed DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list prescriptions by patient: %w", err)
	}
	defer rows.Close()

	ps, err := collectPrescriptions(rows)
	if err != nil {
		return nil, 0, err
	}
	return ps, total, nil
}

func collectPrescriptions(rows pgx.Rows) ([]*Prescription, error) {
	var ps []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prescription: %w", err)
		}
		ps = append(ps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prescriptions: %w", err)
	}
	return ps, nil
}
