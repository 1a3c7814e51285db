package prescription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/smartcare/clinic/internal/platform/clock"
)

// ErrPrescriptionNotFound is returned when no prescription exists for an id.
var ErrPrescriptionNotFound = errors.New("prescription not found")

// AppointmentChecker verifies the appointment a prescription attaches to.
type AppointmentChecker interface {
	PatientOf(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, error)
}

// Service issues and lists prescriptions.
type Service struct {
	repo  Repository
	appts AppointmentChecker
	clock clock.Clock
}

func NewService(repo Repository, appts AppointmentChecker, clk clock.Clock) *Service {
	return &Service{repo: repo, appts: appts, clock: clk}
}

// Issue records a prescription against an appointment. The patient is taken
// from the appointment so the two can never disagree.
func (s *Service) Issue(ctx context.Context, p *Prescription) error {
	if p.Medication == "" {
		return fmt.Errorf("medication is required")
	}
	if p.Dosage == "" {
		return fmt.Errorf("dosage is required")
	}
	if p.DoctorID == uuid.Nil {
		return fmt.Errorf("prescribing staff member is required")
	}

	patientID, err := s.appts.PatientOf(ctx, p.AppointmentID)
	if err != nil {
		return fmt.Errorf("resolve appointment %s: %w", p.AppointmentID, err)
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.PatientID = patientID
	if p.DatePrescribed.IsZero() {
		p.DatePrescribed = s.clock.Now()
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Prescription, error) {
	return s.repo.ListByAppointment(ctx, appointmentID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
