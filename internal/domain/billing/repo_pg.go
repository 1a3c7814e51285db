package billing

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

const invoiceCols = `id, appointment_id, patient_type, consultation_length, rate, total,
	payment_status, date_issued, date_paid`

// PGInvoiceRepository is the PostgreSQL implementation of InvoiceRepository.
type PGInvoiceRepository struct {
	pool *pgxpool.Pool
}

func NewPGInvoiceRepository(pool *pgxpool.Pool) *PGInvoiceRepository {
	return &PGInvoiceRepository{pool: pool}
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

func (r *PGInvoiceRepository) Create(ctx context.Context, inv *Invoice) error {
	q := connFor(ctx, r.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO invoices (id, appointment_id, patient_type, consultation_length,
			rate, total, payment_status, date_issued, date_paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.AppointmentID, inv.PatientType, inv.ConsultationLength,
		inv.Rate, inv.Total, inv.PaymentStatus, inv.DateIssued, inv.DatePaid)
	if isUniqueViolation(err, "invoices_appointment_id_key") {
		return ErrDuplicateInvoice
	}
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}

	for _, f := range inv.Fees {
		if _, err := q.Exec(ctx, `
			INSERT INTO invoice_fees (id, invoice_id, fee_id, name, amount)
			VALUES ($1, $2, $3, $4, $5)`,
			f.ID, inv.ID, f.FeeID, f.Name, f.Amount); err != nil {
			return fmt.Errorf("insert invoice fee: %w", err)
		}
	}
	return nil
}

func (r *PGInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *PGInvoiceRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	return r.get(ctx, `appointment_id = $1`, appointmentID)
}

func (r *PGInvoiceRepository) get(ctx context.Context, where string, arg any) (*Invoice, error) {
	q := connFor(ctx, r.pool)

	inv := &Invoice{}
	err := q.QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE `+where, arg).Scan(
		&inv.ID, &inv.AppointmentID, &inv.PatientType, &inv.ConsultationLength,
		&inv.Rate, &inv.Total, &inv.PaymentStatus, &inv.DateIssued, &inv.DatePaid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	fees, err := r.feesFor(ctx, q, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Fees = fees
	return inv, nil
}

func (r *PGInvoiceRepository) feesFor(ctx context.Context, q queryable, invoiceID uuid.UUID) ([]InvoiceFee, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, fee_id, name, amount FROM invoice_fees
		WHERE invoice_id = $1 ORDER BY name`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice fees: %w", err)
	}
	defer rows.Close()

	var fees []InvoiceFee
	for rows.Next() {
		var f InvoiceFee
		if err := rows.Scan(&f.ID, &f.InvoiceID, &f.FeeID, &f.Name, &f.Amount); err != nil {
			return nil, fmt.Errorf("scan invoice fee: %w", err)
		}
		fees = append(fees, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice fees: %w", err)
	}
	return fees, nil
}

func (r *PGInvoiceRepository) Update(ctx context.Context, inv *Invoice) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE invoices
		SET consultation_length = $2, rate = $3, total = $4, payment_status = $5, date_paid = $6
		WHERE id = $1`,
		inv.ID, inv.ConsultationLength, inv.Rate, inv.Total, inv.PaymentStatus, inv.DatePaid)
	if err != nil {
		return fmt.Errorf("update invoice %s: %w", inv.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *PGInvoiceRepository) List(ctx context.Context, status PaymentStatus, limit, offset int) ([]*Invoice, int, error) {
	q := connFor(ctx, r.pool)

	where := ``
	args := []any{limit, offset}
	if status != "" {
		where = ` WHERE payment_status = $3`
		args = append(args, status)
	}

	var total int
	countArgs := args[2:]
	countWhere := where
	if status != "" {
		countWhere = ` WHERE payment_status = $1`
	}
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+countWhere, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+invoiceCols+` FROM invoices`+where+`
		ORDER BY date_issued DESC
		LIMIT $1 OFFSET $2`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invs []*Invoice
	for rows.Next() {
		inv := &Invoice{}
		if err := rows.Scan(&inv.ID, &inv.AppointmentID, &inv.PatientType,
			&inv.ConsultationLength, &inv.Rate, &inv.Total, &inv.PaymentStatus,
			&inv.DateIssued, &inv.DatePaid); err != nil {
			return nil, 0, fmt.Errorf("scan invoice: %w", err)
		}
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate invoices: %w", err)
	}

	return invs, total, nil
}

// PGFeeRepository is the PostgreSQL implementation of FeeRepository.
type PGFeeRepository struct {
	pool *pgxpool.Pool
}

func NewPGFeeRepository(pool *pgxpool.Pool) *PGFeeRepository {
	return &PGFeeRepository{pool: pool}
}

func (r *PGFeeRepository) Create(ctx context.Context, f *Fee) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO fees (id, name, amount, applies_to)
		VALUES ($1, $2, $3, $4)`,
		f.ID, f.Name, f.Amount, f.AppliesTo)
	if err != nil {
		return fmt.Errorf("insert fee: %w", err)
	}
	return nil
}

func (r *PGFeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*Fee, error) {
	f := &Fee{}
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, amount, applies_to, created_at FROM fees WHERE id = $1`, id).
		Scan(&f.ID, &f.Name, &f.Amount, &f.AppliesTo, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fee %s: %w", id, err)
	}
	return f, nil
}

func (r *PGFeeRepository) List(ctx context.Context) ([]*Fee, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT id, name, amount, applies_to, created_at FROM fees ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}
	defer rows.Close()

	var fees []*Fee
	for rows.Next() {
		f := &Fee{}
		if err := rows.Scan(&f.ID, &f.Name, &f.Amount, &f.AppliesTo, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fee: %w", err)
		}
		fees = append(fees, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fees: %w", err)
	}
	return fees, nil
}

// PGRateRepository is the PostgreSQL implementation of RateRepository.
type PGRateRepository struct {
	pool *pgxpool.Pool
}

func NewPGRateRepository(pool *pgxpool.Pool) *PGRateRepository {
	return &PGRateRepository{pool: pool}
}

func (r *PGRateRepository) Get(ctx context.Context, key RateKey) (*RateSetting, error) {
	rs := &RateSetting{}
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT key, amount, updated_at FROM rate_settings WHERE key = $1`, key).
		Scan(&rs.Key, &rs.Amount, &rs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRateNotSet
	}
	if err != nil {
		return nil, fmt.Errorf("get rate %s: %w", key, err)
	}
	return rs, nil
}

func (r *PGRateRepository) Upsert(ctx context.Context, rs *RateSetting) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO rate_settings (key, amount, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()`,
		rs.Key, rs.Amount)
	if err != nil {
		return fmt.Errorf("upsert rate %s: %w", rs.Key, err)
	}
	return nil
}

func (r *PGRateRepository) List(ctx context.Context) ([]*RateSetting, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT key, amount, updated_at FROM rate_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer rows.Close()

	var rates []*RateSetting
	for rows.Next() {
		rs := &RateSetting{}
		if err := rows.Scan(&rs.Key, &rs.Amount, &rs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		rates = append(rates, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rates: %w", err)
	}
	return rates, nil
}
