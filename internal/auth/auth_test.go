package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/dharsanguruparan/CrimeVault/internal/model"
	"github.com/dharsanguruparan/CrimeVault/internal/repository"
)

type fakeUserStore struct {
	users map[string]model.User // email -> user
	err   error
}

func (f *fakeUserStore) FindByCredentials(_ context.Context, email, password string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email]
	if !ok || u.Password != password {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func TestLoginAndLogout(t *testing.T) {
	svc := NewService(&fakeUserStore{users: map[string]model.User{
		"cop@precinct.org": {Email: "cop@precinct.org", Password: "s3cret", Role: model.RoleSpecial},
	}})
	ctx := context.Background()

	if _, err := svc.Login(ctx, "cop@precinct.org", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if svc.Current() != nil {
		t.Fatalf("failed login must not create a session")
	}

	u, err := svc.Login(ctx, "cop@precinct.org", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Role != model.RoleSpecial {
		t.Fatalf("unexpected role %q", u.Role)
	}
	if !svc.Permitted(ActionAddRecord) {
		t.Fatalf("special role should add records")
	}
	if svc.Permitted(ActionManageUsers) {
		t.Fatalf("special role must not manage users")
	}

	svc.Logout()
	if svc.Current() != nil {
		t.Fatalf("logout did not clear the session")
	}
	if svc.Permitted(ActionViewRecords) {
		t.Fatalf("no session means no permissions")
	}
}

func TestAuthenticateIsStateless(t *testing.T) {
	svc := NewService(&fakeUserStore{users: map[string]model.User{
		"viewer@precinct.org": {Email: "viewer@precinct.org", Password: "pw", Role: model.RoleNormal},
	}})

	u, err := svc.Authenticate(context.Background(), "viewer@precinct.org", "pw")
	if err != nil || u == nil {
		t.Fatalf("authenticate: %v", err)
	}
	if svc.Current() != nil {
		t.Fatalf("Authenticate must not create a console session")
	}
}

func TestAuthenticateSurfacesStoreFailure(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(&fakeUserStore{err: boom})
	if _, err := svc.Authenticate(context.Background(), "a@b.c", "pw"); !errors.Is(err, boom) {
		t.Fatalf("expected store failure to surface, got %v", err)
	}
}
