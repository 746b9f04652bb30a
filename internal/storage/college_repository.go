package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/campus-sync/internal/models"
	"github.com/jackc/pgx/v5"
)

// CollegeRepository handles college registry persistence
type CollegeRepository struct {
	db *PostgresDB
}

// NewCollegeRepository creates a new college repository
func NewCollegeRepository(db *PostgresDB) *CollegeRepository {
	return &CollegeRepository{db: db}
}

// GetByID retrieves a college by ID
func (r *CollegeRepository) GetByID(ctx context.Context, id string) (*models.College, error) {
	query := `
		SELECT id, slug, name, adapter_id, attendance_threshold, is_active, created_at
		FROM colleges
		WHERE id = $1
	`

	return r.scanCollege(r.db.Pool().QueryRow(ctx, query, id))
}

// GetBySlug retrieves a college by its slug
func (r *CollegeRepository) GetBySlug(ctx context.Context, slug string) (*models.College, error) {
	query := `
		SELECT id, slug, name, adapter_id, attendance_threshold, is_active, created_at
		FROM colleges
		WHERE slug = $1
	`

	return r.scanCollege(r.db.Pool().QueryRow(ctx, query, slug))
}

// ListActive retrieves all active colleges ordered by name
func (r *CollegeRepository) ListActive(ctx context.Context) ([]*models.College, error) {
	query := `
		SELECT id, slug, name, adapter_id, attendance_threshold, is_active, created_at
		FROM colleges
		WHERE is_active = true
		ORDER BY name
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list colleges: %w", err)
	}
	defer rows.Close()

	var colleges []*models.College
	for rows.Next() {
		var college models.College
		err := rows.Scan(
			&college.ID,
			&college.Slug,
			&college.Name,
			&college.AdapterID,
			&college.AttendanceThreshold,
			&college.IsActive,
			&college.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan college: %w", err)
		}
		colleges = append(colleges, &college)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating colleges: %w", err)
	}

	return colleges, nil
}

func (r *CollegeRepository) scanCollege(row pgx.Row) (*models.College, error) {
	var college models.College
	err := row.Scan(
		&college.ID,
		&college.Slug,
		&college.Name,
		&college.AdapterID,
		&college.AttendanceThreshold,
		&college.IsActive,
		&college.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get college: %w", err)
	}
	return &college, nil
}
