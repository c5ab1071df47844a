// Package users manages the accounts that may log into the system.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/dharsanguruparan/CrimeVault/internal/model"
	"github.com/dharsanguruparan/CrimeVault/internal/repository"
)

// DefaultAdminEmail is the seeded administrator account. It can never be
// deleted so the system always has at least one admin.
const DefaultAdminEmail = "admin@crimevault.local"

var (
	// ErrDuplicateEmail rejects a second account with the same email.
	ErrDuplicateEmail = errors.New("user already exists")
	// ErrInvalidRole rejects roles outside admin/special/normal.
	ErrInvalidRole = errors.New("invalid role; valid roles are admin, special, normal")
	// ErrProtectedUser rejects deleting the seeded admin account.
	ErrProtectedUser = errors.New("cannot delete the admin user")
)

// Store is the slice of the user repository the service needs.
type Store interface {
	Insert(ctx context.Context, u model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Delete(ctx context.Context, email string) (int64, error)
	UpdateRole(ctx context.Context, email string, role model.Role) (int64, error)
}

// Service implements user management on top of the repository.
type Service struct {
	store Store
}

// NewService constructs a user service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// AddUser creates an account after checking for duplicates and validating
// the role string. Passwords are stored as given.
func (s *Service) AddUser(ctx context.Context, email, password, role string) error {
	parsed, ok := model.ParseRole(role)
	if !ok {
		return ErrInvalidRole
	}
	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		return ErrDuplicateEmail
	}
	return s.store.Insert(ctx, model.User{Email: email, Password: password, Role: parsed})
}

// List returns every account with passwords masked.
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Password = "***"
	}
	return users, nil
}

// Delete removes an account. The seeded admin is protected; deleting an
// absent account is a (false, nil) outcome.
func (s *Service) Delete(ctx context.Context, email string) (bool, error) {
	if email == DefaultAdminEmail {
		return false, ErrProtectedUser
	}
	deleted, err := s.store.Delete(ctx, email)
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

// UpdateRole changes an account's role. Returns (false, nil) when the
// account does not exist.
func (s *Service) UpdateRole(ctx context.Context, email, role string) (bool, error) {
	parsed, ok := model.ParseRole(role)
	if !ok {
		return false, ErrInvalidRole
	}
	modified, err := s.store.UpdateRole(ctx, email, parsed)
	if err != nil {
		return false, err
	}
	return modified > 0, nil
}

// EnsureDefaultAdmin seeds the admin account on first boot so a fresh stack
// is immediately usable. Existing accounts are left alone.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, password string) error {
	existing, err := s.store.FindByEmail(ctx, DefaultAdminEmail)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check admin account: %w", err)
	}
	if existing != nil {
		return nil
	}
	return s.store.Insert(ctx, model.User{Email: DefaultAdminEmail, Password: password, Role: model.RoleAdmin})
}
