package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/dharsanguruparan/CrimeVault/internal/model"
	"github.com/dharsanguruparan/CrimeVault/internal/repository"
)

// ErrInvalidCredentials is returned when email/password match no account.
// Callers re-prompt; it never terminates anything.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore is the slice of the user repository the service needs.
type UserStore interface {
	FindByCredentials(ctx context.Context, email, password string) (*model.User, error)
}

// Service authenticates callers. The console keeps one logged-in user at a
// time; the web front-end authenticates per request via Authenticate and
// never touches the session state.
type Service struct {
	users UserStore

	mu      sync.Mutex
	current *model.User
}

// NewService constructs an auth service.
func NewService(users UserStore) *Service {
	return &Service{users: users}
}

// Authenticate checks credentials without touching session state. Passwords
// are compared in plaintext against the stored value, reproducing the
// behaviour of the system this replaces.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.users.FindByCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return u, nil
}

// Login authenticates and remembers the user for the console session.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = u
	s.mu.Unlock()
	return u, nil
}

// Logout clears the console session.
func (s *Service) Logout() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// Current returns the logged-in user, or nil.
func (s *Service) Current() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Permitted gates an action on the current session. No session means no
// permissions at all.
func (s *Service) Permitted(action Action) bool {
	u := s.Current()
	if u == nil {
		return false
	}
	return Permitted(u.Role, action)
}
