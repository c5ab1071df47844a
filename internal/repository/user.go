package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/CrimeVault/internal/model"
)

// UserRepository persists user accounts keyed by email.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository constructs a repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Insert stores a new account.
func (r *UserRepository) Insert(ctx context.Context, u model.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (email, password, role) VALUES ($1,$2,$3)
	`, u.Email, u.Password, string(u.Role))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByEmail returns one account or ErrNotFound.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT email, password, role FROM users WHERE email=$1`, email)
}

// FindByCredentials matches email and plaintext password in one query, the
// same shape the original system used for login.
func (r *UserRepository) FindByCredentials(ctx context.Context, email, password string) (*model.User, error) {
	return r.findOne(ctx, `SELECT email, password, role FROM users WHERE email=$1 AND password=$2`, email, password)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	row := r.pool.QueryRow(ctx, query, args...)
	if err := row.Scan(&u.Email, &u.Password, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// List returns every account.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT email, password, role FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		var (
			u    model.User
			role string
		)
		if err := rows.Scan(&u.Email, &u.Password, &role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = model.Role(role)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// Delete removes an account and reports how many rows went away.
func (r *UserRepository) Delete(ctx context.Context, email string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE email=$1`, email)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateRole changes an account's role and reports how many rows changed.
func (r *UserRepository) UpdateRole(ctx context.Context, email string, role model.Role) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role=$1 WHERE email=$2`, string(role), email)
	if err != nil {
		return 0, fmt.Errorf("update user role: %w", err)
	}
	return tag.RowsAffected(), nil
}
