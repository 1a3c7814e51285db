package billing

import "errors"

var (
	// ErrInvoiceNotFound is returned when no invoice exists for an id.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrFeeNotFound is returned when no fee exists for an id.
	ErrFeeNotFound = errors.New("fee not found")

	// ErrDuplicateInvoice rejects a second invoice for the same appointment.
	ErrDuplicateInvoice = errors.New("appointment already has an invoice")

	// ErrInvalidDuration rejects consultation lengths that are not positive
	// multiples of ten minutes.
	ErrInvalidDuration = errors.New("consultation length must be a positive multiple of 10 minutes")

	// ErrInvalidRate rejects rate updates with a non-positive amount.
	ErrInvalidRate = errors.New("rate amount must be greater than zero")

	// ErrInvalidTransition rejects payment status changes outside the
	// allowed flow.
	ErrInvalidTransition = errors.New("invalid payment status transition")
)
