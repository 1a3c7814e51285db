package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartcare/clinic/internal/platform/clock"
)

type mockInvoiceRepo struct {
	invoices map[uuid.UUID]*Invoice
	byAppt   map[uuid.UUID]uuid.UUID
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{
		invoices: make(map[uuid.UUID]*Invoice),
		byAppt:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *mockInvoiceRepo) Create(ctx context.Context, inv *Invoice) error {
	if _, ok := m.byAppt[inv.AppointmentID]; ok {
		return ErrDuplicateInvoice
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	m.byAppt[inv.AppointmentID] = inv.ID
	return nil
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvoiceRepo) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	id, ok := m.byAppt[appointmentID]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *mockInvoiceRepo) Update(ctx context.Context, inv *Invoice) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrInvoiceNotFound
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) List(ctx context.Context, status PaymentStatus, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		if status == "" || inv.PaymentStatus == status {
			out = append(out, inv)
		}
	}
	return out, len(out), nil
}

type mockFeeRepo struct {
	fees []*Fee
}

func (m *mockFeeRepo) Create(ctx context.Context, f *Fee) error {
	m.fees = append(m.fees, f)
	return nil
}

func (m *mockFeeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Fee, error) {
	for _, f := range m.fees {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, ErrFeeNotFound
}

func (m *mockFeeRepo) List(ctx context.Context) ([]*Fee, error) {
	return m.fees, nil
}

type mockRateRepo struct {
	rates map[RateKey]*RateSetting
}

func newMockRateRepo() *mockRateRepo {
	return &mockRateRepo{rates: make(map[RateKey]*RateSetting)}
}

func (m *mockRateRepo) Get(ctx context.Context, key RateKey) (*RateSetting, error) {
	rs, ok := m.rates[key]
	if !ok {
		return nil, ErrRateNotSet
	}
	return rs, nil
}

func (m *mockRateRepo) Upsert(ctx context.Context, rs *RateSetting) error {
	m.rates[rs.Key] = rs
	return nil
}

func (m *mockRateRepo) List(ctx context.Context) ([]*RateSetting, error) {
	var out []*RateSetting
	for _, rs := range m.rates {
		out = append(out, rs)
	}
	return out, nil
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockInvoiceRepo, *mockFeeRepo, *mockRateRepo) {
	invoices := newMockInvoiceRepo()
	fees := &mockFeeRepo{}
	rates := newMockRateRepo()
	svc := NewService(invoices, fees, rates, clock.Fixed(testNow))
	return svc, invoices, fees, rates
}

func setRate(rates *mockRateRepo, key RateKey, amount string) {
	rates.rates[key] = &RateSetting{Key: key, Amount: decimal.RequireFromString(amount)}
}

func addFee(fees *mockFeeRepo, name, amount string, scope FeeScope) {
	fees.fees = append(fees.fees, &Fee{
		ID:        uuid.New(),
		Name:      name,
		Amount:    decimal.RequireFromString(amount),
		AppliesTo: scope,
	})
}

func TestResolveRate_StaffRoleBeatsPatientType(t *testing.T) {
	svc, _, _, rates := newTestService()
	setRate(rates, RateKeyDoctor, "25.00")
	setRate(rates, RateKeyNHS, "15.00")

	rate, err := svc.ResolveRate(context.Background(), StaffDoctor, PatientNHS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("expected 25.00, got %s", rate)
	}
}

func TestResolveRate_FallsBackToPatientType(t *testing.T) {
	svc, _, _, rates := newTestService()
	setRate(rates, RateKeyNHS, "15.00")

	rate, err := svc.ResolveRate(context.Background(), StaffDoctor, PatientNHS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("15.00")) {
		t.Errorf("expected 15.00, got %s", rate)
	}
}

func TestResolveRate_HardcodedDefaults(t *testing.T) {
	svc, _, _, _ := newTestService()

	doctorRate, err := svc.ResolveRate(context.Background(), StaffDoctor, PatientPrivate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !doctorRate.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("expected doctor default 20.00, got %s", doctorRate)
	}

	nurseRate, err := svc.ResolveRate(context.Background(), StaffNurse, PatientPrivate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !nurseRate.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("expected nurse default 10.00, got %s", nurseRate)
	}
}

func TestGenerate_DoctorDefaultRate(t *testing.T) {
	// 30 minutes at the default doctor rate of 20.00 per 10 minutes.
	svc, _, _, _ := newTestService()

	inv, err := svc.Generate(context.Background(), uuid.New(), PatientPrivate, 30, StaffDoctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !inv.Total.Equal(decimal.RequireFromString("60.00")) {
		t.Errorf("expected total 60.00, got %s", inv.Total)
	}
	if inv.PaymentStatus != PaymentPending {
		t.Errorf("expected PENDING, got %s", inv.PaymentStatus)
	}
	if !inv.DateIssued.Equal(testNow) {
		t.Errorf("expected date issued %v, got %v", testNow, inv.DateIssued)
	}
	if inv.DatePaid != nil {
		t.Error("expected date paid to be unset")
	}
}

func TestGenerate_NHSRateWithFee(t *testing.T) {
	// 20 minutes at an NHS rate of 15.00 plus a 5.00 NHS admin fee.
	svc, _, fees, rates := newTestService()
	setRate(rates, RateKeyNHS, "15.00")
	addFee(fees, "NHS admin fee", "5.00", FeeScopeNHS)

	inv, err := svc.Generate(context.Background(), uuid.New(), PatientNHS, 20, StaffDoctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !inv.Total.Equal(decimal.RequireFromString("35.00")) {
		t.Errorf("expected total 35.00, got %s", inv.Total)
	}
	if len(inv.Fees) != 1 {
		t.Fatalf("expected 1 applied fee, got %d", len(inv.Fees))
	}
}

func TestGenerate_FeeScopeFiltering(t *testing.T) {
	svc, _, fees, _ := newTestService()
	addFee(fees, "Facility fee", "3.00", FeeScopeAll)
	addFee(fees, "Private surcharge", "10.00", FeeScopePrivate)
	addFee(fees, "NHS admin fee", "5.00", FeeScopeNHS)

	inv, err := svc.Generate(context.Background(), uuid.New(), PatientNHS, 10, StaffNurse)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Nurse default 10.00 for one block, plus ALL (3.00) and NHS (5.00) fees.
	if !inv.Total.Equal(decimal.RequireFromString("18.00")) {
		t.Errorf("expected total 18.00, got %s", inv.Total)
	}
	if len(inv.Fees) != 2 {
		t.Errorf("expected 2 applied fees, got %d", len(inv.Fees))
	}
}

func TestGenerate_InvalidDuration(t *testing.T) {
	svc, _, _, _ := newTestService()

	for _, length := range []int{0, -10, 15, 7} {
		_, err := svc.Generate(context.Background(), uuid.New(), PatientPrivate, length, StaffDoctor)
		if !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("length %d: expected ErrInvalidDuration, got %v", length, err)
		}
	}
}

func TestGenerate_DuplicateInvoice(t *testing.T) {
	svc, _, _, _ := newTestService()
	apptID := uuid.New()

	if _, err := svc.Generate(context.Background(), apptID, PatientPrivate, 10, StaffDoctor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Generate(context.Background(), apptID, PatientPrivate, 10, StaffDoctor)
	if !errors.Is(err, ErrDuplicateInvoice) {
		t.Fatalf("expected ErrDuplicateInvoice, got %v", err)
	}
}

func TestUpdateAmounts_RecomputesTotal(t *testing.T) {
	svc, _, _, _ := newTestService()

	inv, err := svc.Generate(context.Background(), uuid.New(), PatientPrivate, 10, StaffDoctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	length := 30
	rate := decimal.RequireFromString("60.00")
	updated, err := svc.UpdateAmounts(context.Background(), inv.ID, &length, &rate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !updated.Total.Equal(decimal.RequireFromString("180.00")) {
		t.Errorf("expected total 180.00, got %s", updated.Total)
	}
}

func TestUpdateAmounts_SettledInvoiceImmutable(t *testing.T) {
	svc, _, _, _ := newTestService()

	inv, err := svc.Generate(context.Background(), uuid.New(), PatientPrivate, 10, StaffDoctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), inv.ID, PaymentPaid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	length := 20
	_, err = svc.UpdateAmounts(context.Background(), inv.ID, &length, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateStatus_PaidSetsTimestamp(t *testing.T) {
	svc, _, _, _ := newTestService()

	inv, err := svc.Generate(context.Background(), uuid.New(), PatientPrivate, 10, StaffDoctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), inv.ID, PaymentPaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PaymentStatus != PaymentPaid {
		t.Errorf("expected PAID, got %s", updated.PaymentStatus)
	}
	if updated.DatePaid == nil || !updated.DatePaid.Equal(testNow) {
		t.Errorf("expected date paid %v, got %v", testNow, updated.DatePaid)
	}
}

func TestUpdateStatus_SentToNHSRequiresNHSPatient(t *testing.T) {
	svc, _, _, _ := newTestService()

	private, err := svc.Generate(context.Background(), uuid.New(), PatientPrivate, 10, StaffDoctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), private.ID, PaymentSentToNHS); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for private invoice, got %v", err)
	}

	nhs, err := svc.Generate(context.Background(), uuid.New(), PatientNHS, 10, StaffDoctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated, err := svc.UpdateStatus(context.Background(), nhs.ID, PaymentSentToNHS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PaymentStatus != PaymentSentToNHS {
		t.Errorf("expected SENT_TO_NHS, got %s", updated.PaymentStatus)
	}
	if updated.DatePaid != nil {
		t.Error("expected no paid timestamp for SENT_TO_NHS")
	}
}

func TestUpdateStatus_TerminalStatesRejectChanges(t *testing.T) {
	svc, _, _, _ := newTestService()

	inv, err := svc.Generate(context.Background(), uuid.New(), PatientNHS, 10, StaffDoctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), inv.ID, PaymentSentToNHS); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), inv.ID, PaymentPaid)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateStatus_PendingIsNotATarget(t *testing.T) {
	svc, _, _, _ := newTestService()

	inv, err := svc.Generate(context.Background(), uuid.New(), PatientPrivate, 10, StaffDoctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), inv.ID, PaymentPending)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSetRate_RejectsNonPositiveAmount(t *testing.T) {
	svc, _, _, _ := newTestService()

	for _, amount := range []string{"0", "-5.00"} {
		_, err := svc.SetRate(context.Background(), RateKeyNHS, decimal.RequireFromString(amount))
		if !errors.Is(err, ErrInvalidRate) {
			t.Errorf("amount %s: expected ErrInvalidRate, got %v", amount, err)
		}
	}
}

func TestSetRate_RejectsUnknownKey(t *testing.T) {
	svc, _, _, _ := newTestService()

	if _, err := svc.SetRate(context.Background(), "WEEKEND", decimal.RequireFromString("5.00")); err == nil {
		t.Fatal("expected error for unknown rate key")
	}
}

func TestSetRate_UpsertFlowsIntoResolution(t *testing.T) {
	svc, _, _, _ := newTestService()

	if _, err := svc.SetRate(context.Background(), RateKeyNurse, decimal.RequireFromString("12.50")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rate, err := svc.ResolveRate(context.Background(), StaffNurse, PatientPrivate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("expected 12.50, got %s", rate)
	}
}

func TestCreateFee_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()

	err := svc.CreateFee(context.Background(), &Fee{
		Name:      "Late cancellation",
		Amount:    decimal.RequireFromString("-1.00"),
		AppliesTo: FeeScopeAll,
	})
	if err == nil {
		t.Fatal("expected error for negative fee amount")
	}

	err = svc.CreateFee(context.Background(), &Fee{
		Name:      "Late cancellation",
		Amount:    decimal.RequireFromString("2.00"),
		AppliesTo: "WEEKENDS",
	})
	if err == nil {
		t.Fatal("expected error for unknown fee scope")
	}

	err = svc.CreateFee(context.Background(), &Fee{
		Name:      "Late cancellation",
		Amount:    decimal.RequireFromString("2.00"),
		AppliesTo: FeeScopeAll,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
