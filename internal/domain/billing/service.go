package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartcare/clinic/internal/platform/clock"
)

// StaffRole restricts rate resolution to the two billable roles.
type StaffRole string

const (
	StaffDoctor StaffRole = "DOCTOR"
	StaffNurse  StaffRole = "NURSE"
)

// Service implements invoice generation, payment status flow, fee
// configuration, and the rate catalog.
type Service struct {
	invoices InvoiceRepository
	fees     FeeRepository
	rates    RateRepository
	clock    clock.Clock
}

func NewService(invoices InvoiceRepository, fees FeeRepository, rates RateRepository, clk clock.Clock) *Service {
	return &Service{invoices: invoices, fees: fees, rates: rates, clock: clk}
}

// ResolveRate finds the per-block rate for an appointment. The catalog is
// consulted in precedence order, staff role before patient type, and the
// hardcoded role defaults close the chain so billing never fails for lack
// of configuration.
func (s *Service) ResolveRate(ctx context.Context, role StaffRole, pt PatientType) (decimal.Decimal, error) {
	roleKey := RateKeyDoctor
	if role == StaffNurse {
		roleKey = RateKeyNurse
	}
	typeKey := RateKeyPrivate
	if pt == PatientNHS {
		typeKey = RateKeyNHS
	}

	for _, key := range []RateKey{roleKey, typeKey} {
		rs, err := s.rates.Get(ctx, key)
		if errors.Is(err, ErrRateNotSet) {
			continue
		}
		if err != nil {
			return decimal.Zero, err
		}
		return rs.Amount, nil
	}

	if role == StaffNurse {
		return DefaultNurseRate, nil
	}
	return DefaultDoctorRate, nil
}

// Generate issues the invoice for an appointment. consultationLength is in
// minutes and must be a positive multiple of ten.
func (s *Service) Generate(ctx context.Context, appointmentID uuid.UUID, pt PatientType, consultationLength int, role StaffRole) (*Invoice, error) {
	if !ValidPatientType(pt) {
		return nil, fmt.Errorf("invalid patient type: %s", pt)
	}
	if consultationLength <= 0 || consultationLength%RateBlockMinutes != 0 {
		return nil, ErrInvalidDuration
	}

	if _, err := s.invoices.GetByAppointment(ctx, appointmentID); err == nil {
		return nil, ErrDuplicateInvoice
	} else if !errors.Is(err, ErrInvoiceNotFound) {
		return nil, err
	}

	rate, err := s.ResolveRate(ctx, role, pt)
	if err != nil {
		return nil, fmt.Errorf("resolve rate: %w", err)
	}

	configured, err := s.fees.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}

	inv := &Invoice{
		ID:                 uuid.New(),
		AppointmentID:      appointmentID,
		PatientType:        pt,
		ConsultationLength: consultationLength,
		Rate:               rate,
		PaymentStatus:      PaymentPending,
		DateIssued:         s.clock.Now(),
	}
	for _, f := range configured {
		if f.Applies(pt) {
			inv.Fees = append(inv.Fees, InvoiceFee{
				ID:        uuid.New(),
				InvoiceID: inv.ID,
				FeeID:     f.ID,
				Name:      f.Name,
				Amount:    f.Amount,
			})
		}
	}
	inv.Total = ComputeTotal(inv.ConsultationLength, inv.Rate, inv.Fees)

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// UpdateAmounts changes an invoice's consultation length and/or rate and
// recomputes the total. Settled invoices are immutable.
func (s *Service) UpdateAmounts(ctx context.Context, id uuid.UUID, consultationLength *int, rate *decimal.Decimal) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.PaymentStatus != PaymentPending {
		return nil, ErrInvalidTransition
	}

	if consultationLength != nil {
		if *consultationLength <= 0 || *consultationLength%RateBlockMinutes != 0 {
			return nil, ErrInvalidDuration
		}
		inv.ConsultationLength = *consultationLength
	}
	if rate != nil {
		if rate.LessThanOrEqual(decimal.Zero) {
			return nil, ErrInvalidRate
		}
		inv.Rate = *rate
	}

	inv.Total = ComputeTotal(inv.ConsultationLength, inv.Rate, inv.Fees)
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// UpdateStatus moves an invoice through the payment flow. Pending invoices
// may become paid, or sent to the NHS when the patient is NHS-funded. Both
// outcomes are terminal.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to PaymentStatus) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.PaymentStatus != PaymentPending {
		return nil, ErrInvalidTransition
	}

	switch to {
	case PaymentPaid:
		now := s.clock.Now()
		inv.DatePaid = &now
	case PaymentSentToNHS:
		if inv.PatientType != PatientNHS {
			return nil, ErrInvalidTransition
		}
	default:
		return nil, ErrInvalidTransition
	}

	inv.PaymentStatus = to
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByAppointment(ctx, appointmentID)
}

func (s *Service) List(ctx context.Context, status PaymentStatus, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.List(ctx, status, limit, offset)
}

// SetRate upserts a catalog entry. Unlike stored settings, which tolerate
// zero, an explicit update must carry a positive amount.
func (s *Service) SetRate(ctx context.Context, key RateKey, amount decimal.Decimal) (*RateSetting, error) {
	if !ValidRateKey(key) {
		return nil, fmt.Errorf("invalid rate key: %s", key)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidRate
	}

	rs := &RateSetting{Key: key, Amount: amount, UpdatedAt: s.clock.Now()}
	if err := s.rates.Upsert(ctx, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *Service) ListRates(ctx context.Context) ([]*RateSetting, error) {
	return s.rates.List(ctx)
}

// CreateFee registers a surcharge. Zero amounts are allowed so a fee can be
// parked without deleting it.
func (s *Service) CreateFee(ctx context.Context, f *Fee) error {
	if f.Name == "" {
		return fmt.Errorf("fee name is required")
	}
	if f.Amount.IsNegative() {
		return fmt.Errorf("fee amount cannot be negative")
	}
	switch f.AppliesTo {
	case FeeScopeAll, FeeScopeNHS, FeeScopePrivate:
	default:
		return fmt.Errorf("invalid fee scope: %s", f.AppliesTo)
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return s.fees.Create(ctx, f)
}

func (s *Service) ListFees(ctx context.Context) ([]*Fee, error) {
	return s.fees.List(ctx)
}
