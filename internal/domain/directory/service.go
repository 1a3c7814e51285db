package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrUserNotFound is returned when no user exists for a given id.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidStaff is returned when an id does not refer to a doctor or
	// nurse able to take appointments.
	ErrInvalidStaff = errors.New("selected staff member does not exist or cannot take appointments")
)

// Service exposes user lookups for the rest of the system.
type Service struct {
	users UserRepository
}

func NewService(users UserRepository) *Service {
	return &Service{users: users}
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// GetStaff resolves an id to a doctor or nurse. Any other role, or a missing
// user, yields ErrInvalidStaff.
func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidStaff
	}
	if err != nil {
		return nil, err
	}
	if !u.Role.Clinical() {
		return nil, ErrInvalidStaff
	}
	return u, nil
}

// PatientCategoryOf returns the NHS/Private classification of a patient.
// Patients without an explicit classification are treated as private.
func (s *Service) PatientCategoryOf(ctx context.Context, patientID uuid.UUID) (PatientCategory, error) {
	u, err := s.users.GetByID(ctx, patientID)
	if err != nil {
		return "", fmt.Errorf("resolve patient %s: %w", patientID, err)
	}
	if u.Role != RolePatient {
		return "", fmt.Errorf("user %s is not a patient", patientID)
	}
	if u.PatientCategory == nil {
		return CategoryPrivate, nil
	}
	return *u.PatientCategory, nil
}

func (s *Service) ListStaff(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.ListStaff(ctx, limit, offset)
}

func (s *Service) ListByRole(ctx context.Context, role Role, limit, offset int) ([]*User, int, error) {
	return s.users.ListByRole(ctx, role, limit, offset)
}

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	if u.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	switch u.Role {
	case RoleDoctor, RoleNurse, RolePatient, RoleAdmin, RoleReceptionist:
	default:
		return fmt.Errorf("invalid role: %s", u.Role)
	}
	if u.Role != RolePatient && u.PatientCategory != nil {
		return fmt.Errorf("patient_category is only valid for patients")
	}
	return s.users.Create(ctx, u)
}
