// Package repository wraps all SQL used throughout the console, the web
// server and the photo worker.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/CrimeVault/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// CrimeRepository persists crime reports. It is a thin pass-through: the
// in-memory orderings and the search indexes live above it.
type CrimeRepository struct {
	pool *pgxpool.Pool
}

// NewCrimeRepository constructs a repository.
func NewCrimeRepository(pool *pgxpool.Pool) *CrimeRepository {
	return &CrimeRepository{pool: pool}
}

// Insert stores a new report and returns the generated id.
func (r *CrimeRepository) Insert(ctx context.Context, rec model.Record) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crimes (id, name, city, crime_type, details, photo_path, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, id, rec.Name, rec.City, rec.CrimeType, rec.Details, rec.PhotoPath, rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert crime: %w", err)
	}
	return id, nil
}

// FindByID returns one report or ErrNotFound.
func (r *CrimeRepository) FindByID(ctx context.Context, id string) (*model.Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, city, crime_type, details, photo_path, created_at
		FROM crimes WHERE id=$1
	`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select crime: %w", err)
	}
	return rec, nil
}

// Filter describes a case-insensitive contains match per field. Empty fields
// are skipped; the remaining conditions combine with AND.
type Filter struct {
	Name      string
	City      string
	CrimeType string
	Details   string
}

func (f Filter) empty() bool {
	return f.Name == "" && f.City == "" && f.CrimeType == "" && f.Details == ""
}

// FindWhere runs a pattern scan over the crimes table. An empty filter yields
// an empty result rather than the full table.
func (r *CrimeRepository) FindWhere(ctx context.Context, f Filter) ([]model.Record, error) {
	if f.empty() {
		return nil, nil
	}
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, "%"+strings.TrimSpace(value)+"%")
		conds = append(conds, fmt.Sprintf("%s ILIKE $%d", column, len(args)))
	}
	add("name", f.Name)
	add("city", f.City)
	add("crime_type", f.CrimeType)
	add("details", f.Details)

	query := fmt.Sprintf(`
		SELECT id, name, city, crime_type, details, photo_path, created_at
		FROM crimes WHERE %s ORDER BY created_at DESC
	`, strings.Join(conds, " AND "))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search crimes: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// UpdateByID replaces the editable fields and reports how many rows changed.
// created_at is deliberately left untouched.
func (r *CrimeRepository) UpdateByID(ctx context.Context, id string, rec model.Record) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE crimes
		SET name=$1, city=$2, crime_type=$3, details=$4, photo_path=$5
		WHERE id=$6
	`, rec.Name, rec.City, rec.CrimeType, rec.Details, rec.PhotoPath, id)
	if err != nil {
		return 0, fmt.Errorf("update crime: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdatePhotoPath rewrites only the photo reference, used by the archive
// worker once a photo lands in object storage.
func (r *CrimeRepository) UpdatePhotoPath(ctx context.Context, id, photoPath string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE crimes SET photo_path=$1 WHERE id=$2`, photoPath, id)
	if err != nil {
		return 0, fmt.Errorf("update photo path: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByID removes a report and reports how many rows went away.
func (r *CrimeRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM crimes WHERE id=$1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete crime: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindAllSortedByCreatedDesc loads every report newest first. The record
// store uses this to rebuild its in-memory structures at boot.
func (r *CrimeRepository) FindAllSortedByCreatedDesc(ctx context.Context) ([]model.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, city, crime_type, details, photo_path, created_at
		FROM crimes ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("load crimes: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func scanRecord(row pgx.Row) (*model.Record, error) {
	var rec model.Record
	if err := row.Scan(&rec.ID, &rec.Name, &rec.City, &rec.CrimeType, &rec.Details, &rec.PhotoPath, &rec.CreatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]model.Record, error) {
	var out []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crime: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crimes: %w", err)
	}
	return out, nil
}
