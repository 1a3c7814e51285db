package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PatientType determines which rates and fees apply to an invoice.
type PatientType string

const (
	PatientNHS     PatientType = "NHS"
	PatientPrivate PatientType = "PRIVATE"
)

// ValidPatientType reports whether pt is a known classification.
func ValidPatientType(pt PatientType) bool {
	return pt == PatientNHS || pt == PatientPrivate
}

// PaymentStatus is the settlement state of an invoice.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentSentToNHS PaymentStatus = "SENT_TO_NHS"
)

// RateBlockMinutes is the billing unit: rates are quoted per ten minutes of
// consultation.
const RateBlockMinutes = 10

// Hardcoded fallback rates, used when the catalog has no applicable entry.
var (
	DefaultDoctorRate = decimal.NewFromFloat(20.00)
	DefaultNurseRate  = decimal.NewFromFloat(10.00)
)

// Invoice bills a completed appointment. Total is always derived from the
// consultation length, the rate, and the applied fees; it is recomputed on
// every change and never patched directly.
type Invoice struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	AppointmentID      uuid.UUID       `json:"appointment_id" db:"appointment_id"`
	PatientType        PatientType     `json:"patient_type" db:"patient_type"`
	ConsultationLength int             `json:"consultation_length" db:"consultation_length"`
	Rate               decimal.Decimal `json:"rate" db:"rate"`
	Total              decimal.Decimal `json:"total" db:"total"`
	PaymentStatus      PaymentStatus   `json:"payment_status" db:"payment_status"`
	DateIssued         time.Time       `json:"date_issued" db:"date_issued"`
	DatePaid           *time.Time      `json:"date_paid,omitempty" db:"date_paid"`
	Fees               []InvoiceFee    `json:"fees,omitempty"`
}

// InvoiceFee is a fee snapshot attached to an invoice. The name and amount
// are copied at generation time so later fee edits do not rewrite history.
type InvoiceFee struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	InvoiceID uuid.UUID       `json:"invoice_id" db:"invoice_id"`
	FeeID     uuid.UUID       `json:"fee_id" db:"fee_id"`
	Name      string          `json:"name" db:"name"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
}

// FeeScope selects which patients a fee applies to.
type FeeScope string

const (
	FeeScopeAll     FeeScope = "ALL"
	FeeScopeNHS     FeeScope = "NHS"
	FeeScopePrivate FeeScope = "PRIVATE"
)

// Fee is a configured surcharge added to matching invoices.
type Fee struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	AppliesTo FeeScope        `json:"applies_to" db:"applies_to"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Applies reports whether the fee matches an invoice for the given patient
// type.
func (f *Fee) Applies(pt PatientType) bool {
	switch f.AppliesTo {
	case FeeScopeAll:
		return true
	case FeeScopeNHS:
		return pt == PatientNHS
	case FeeScopePrivate:
		return pt == PatientPrivate
	}
	return false
}

// RateKey identifies a configurable rate in the catalog.
type RateKey string

const (
	RateKeyNHS     RateKey = "NHS"
	RateKeyPrivate RateKey = "PRIVATE"
	RateKeyDoctor  RateKey = "DOCTOR"
	RateKeyNurse   RateKey = "NURSE"
)

// ValidRateKey reports whether k names a configurable rate.
func ValidRateKey(k RateKey) bool {
	switch k {
	case RateKeyNHS, RateKeyPrivate, RateKeyDoctor, RateKeyNurse:
		return true
	}
	return false
}

// RateSetting is a catalog entry: the per-block rate for a key.
type RateSetting struct {
	Key       RateKey         `json:"key" db:"key"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// ComputeTotal derives an invoice total from its parts:
// (length / 10) * rate + sum of fees.
func ComputeTotal(consultationLength int, rate decimal.Decimal, fees []InvoiceFee) decimal.Decimal {
	blocks := decimal.NewFromInt(int64(consultationLength / RateBlockMinutes))
	total := rate.Mul(blocks)
	for _, f := range fees {
		total = total.Add(f.Amount)
	}
	return total
}
