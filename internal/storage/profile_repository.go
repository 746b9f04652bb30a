package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campus-sync/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProfileRepository handles student profile persistence
type ProfileRepository struct {
	db *PostgresDB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *PostgresDB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Upsert writes the profile keyed by user id, overwriting in place
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.StudentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	profile.UpdatedAt = time.Now()

	query := `
		INSERT INTO student_profiles (
			id, user_id, account_id, roll_no, student_name, semester,
			programme_name, degree_level, father_name, mobile_no, section,
			student_image, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			roll_no = EXCLUDED.roll_no,
			student_name = EXCLUDED.student_name,
			semester = EXCLUDED.semester,
			programme_name = EXCLUDED.programme_name,
			degree_level = EXCLUDED.degree_level,
			father_name = EXCLUDED.father_name,
			mobile_no = EXCLUDED.mobile_no,
			section = EXCLUDED.section,
			student_image = EXCLUDED.student_image,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		profile.ID,
		profile.UserID,
		profile.AccountID,
		profile.RollNo,
		profile.StudentName,
		profile.Semester,
		profile.ProgrammeName,
		profile.DegreeLevel,
		profile.FatherName,
		profile.MobileNo,
		profile.Section,
		profile.StudentImage,
		profile.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert student profile: %w", err)
	}

	return nil
}

// GetByUser retrieves the profile for a user
func (r *ProfileRepository) GetByUser(ctx context.Context, userID string) (*models.StudentProfile, error) {
	query := `
		SELECT id, user_id, account_id, roll_no, student_name, semester,
		       programme_name, degree_level, father_name, mobile_no, section,
		       student_image, updated_at
		FROM student_profiles
		WHERE user_id = $1
	`

	var profile models.StudentProfile
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.AccountID,
		&profile.RollNo,
		&profile.StudentName,
		&profile.Semester,
		&profile.ProgrammeName,
		&profile.DegreeLevel,
		&profile.FatherName,
		&profile.MobileNo,
		&profile.Section,
		&profile.StudentImage,
		&profile.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get student profile: %w", err)
	}

	return &profile, nil
}

// DeleteByAccount removes the profile rows written by a linked account
func (r *ProfileRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.Pool().Exec(ctx, `DELETE FROM student_profiles WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete student profile: %w", err)
	}
	return nil
}
