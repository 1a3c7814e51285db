package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type mockUserRepo struct {
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepo) ListByRole(ctx context.Context, role Role, limit, offset int) ([]*User, int, error) {
	var out []*User
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (m *mockUserRepo) ListStaff(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var out []*User
	for _, u := range m.users {
		if u.Role.Clinical() {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func addUser(repo *mockUserRepo, role Role, cat *PatientCategory) *User {
	u := &User{ID: uuid.New(), FullName: "Test User", Role: role, PatientCategory: cat}
	repo.users[u.ID] = u
	return u
}

func TestGetStaff_Doctor(t *testing.T) {
	repo := newMockUserRepo()
	doc := addUser(repo, RoleDoctor, nil)
	svc := NewService(repo)

	got, err := svc.GetStaff(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != doc.ID {
		t.Errorf("expected %s, got %s", doc.ID, got.ID)
	}
}

func TestGetStaff_MissingUser(t *testing.T) {
	svc := NewService(newMockUserRepo())

	_, err := svc.GetStaff(context.Background(), uuid.New())
	if !errors.Is(err, ErrInvalidStaff) {
		t.Fatalf("expected ErrInvalidStaff, got %v", err)
	}
}

func TestGetStaff_PatientRejected(t *testing.T) {
	repo := newMockUserRepo()
	pat := addUser(repo, RolePatient, nil)
	svc := NewService(repo)

	_, err := svc.GetStaff(context.Background(), pat.ID)
	if !errors.Is(err, ErrInvalidStaff) {
		t.Fatalf("expected ErrInvalidStaff, got %v", err)
	}
}

func TestPatientCategoryOf_DefaultsToPrivate(t *testing.T) {
	repo := newMockUserRepo()
	pat := addUser(repo, RolePatient, nil)
	svc := NewService(repo)

	cat, err := svc.PatientCategoryOf(context.Background(), pat.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat != CategoryPrivate {
		t.Errorf("expected PRIVATE, got %s", cat)
	}
}

func TestPatientCategoryOf_NHS(t *testing.T) {
	repo := newMockUserRepo()
	nhs := CategoryNHS
	pat := addUser(repo, RolePatient, &nhs)
	svc := NewService(repo)

	cat, err := svc.PatientCategoryOf(context.Background(), pat.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat != CategoryNHS {
		t.Errorf("expected NHS, got %s", cat)
	}
}

func TestPatientCategoryOf_NonPatient(t *testing.T) {
	repo := newMockUserRepo()
	doc := addUser(repo, RoleDoctor, nil)
	svc := NewService(repo)

	if _, err := svc.PatientCategoryOf(context.Background(), doc.ID); err == nil {
		t.Fatal("expected error for non-patient user")
	}
}

func TestCreateUser_RejectsCategoryOnStaff(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewService(repo)
	nhs := CategoryNHS

	err := svc.CreateUser(context.Background(), &User{
		FullName:        "Dr Example",
		Role:            RoleDoctor,
		PatientCategory: &nhs,
	})
	if err == nil {
		t.Fatal("expected error when staff user carries a patient category")
	}
}
