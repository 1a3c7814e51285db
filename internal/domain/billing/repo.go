package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// InvoiceRepository handles invoice persistence, including fee snapshots.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, status PaymentStatus, limit, offset int) ([]*Invoice, int, error)
}

// FeeRepository handles fee configuration.
type FeeRepository interface {
	Create(ctx context.Context, f *Fee) error
	GetByID(ctx context.Context, id uuid.UUID) (*Fee, error)
	List(ctx context.Context) ([]*Fee, error)
}

// RateRepository handles the rate catalog.
type RateRepository interface {
	Get(ctx context.Context, key RateKey) (*RateSetting, error)
	Upsert(ctx context.Context, rs *RateSetting) error
	List(ctx context.Context) ([]*RateSetting, error)
}

// ErrRateNotSet marks a catalog miss; callers fall through to the next
// resolver in the chain.
var ErrRateNotSet = errors.New("rate not set")
