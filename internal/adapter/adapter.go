// Package adapter defines the college portal adapter contract and the
// registry that resolves an adapter from an institution's configuration.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// Credentials are the decrypted portal login credentials
type Credentials struct {
	Username string
	Password string
}

// AuthResult carries the session produced by a login or validated from cache
type AuthResult struct {
	Token string
	// ExpiresAt is the token expiry reported by the portal, if any
	ExpiresAt *time.Time
	// PortalUserID is the opaque user id the portal keys its endpoints by
	PortalUserID string
	// Fresh is true when the token was obtained by a login in this attempt,
	// false when a cached token is being reused
	Fresh bool
}

// AttendanceRecord is one per-course attendance summary from the portal
type AttendanceRecord struct {
	CourseCode    string
	CourseName    string
	TotalLectures int
	TotalPresent  int
	TotalAbsent   int
	TotalLOA      int
	TotalOnDuty   int
	Percentage    float64
}

// TimetableRecord is one scheduled lecture slot from the portal
type TimetableRecord struct {
	// Date is the ISO lecture date "YYYY-MM-DD", empty for recurring slots
	Date string
	// DayOfWeek is 0=Sunday through 6=Saturday
	DayOfWeek int
	// StartTime and EndTime are "HH:mm"
	StartTime   string
	EndTime     string
	CourseCode  string
	CourseName  string
	FacultyName string
	Room        string
	Section     string
}

// MarkRecord is one exam/assessment result from the portal
type MarkRecord struct {
	CourseCode    string
	CourseName    string
	ExamType      string
	MaxMarks      *float64
	ObtainedMarks *float64
	Grade         string
	SGPA          *float64
	CGPA          *float64
	Semester      int
}

// CourseRecord is one registered course from the portal
type CourseRecord struct {
	CourseCode string
	CourseName string
	Credits    *float64
	Semester   int
}

// ProfileRecord is the student's profile from the portal
type ProfileRecord struct {
	RollNo        string
	StudentName   string
	Semester      int
	ProgrammeName string
	DegreeLevel   string
	FatherName    string
	MobileNo      string
	Section       string
	StudentImage  string
}

// Capabilities declares which optional operations an adapter supports.
// The sync pipeline checks these flags instead of probing for methods, so
// an adapter that leaves a flag unset is never called for that operation.
type Capabilities struct {
	TokenCheck     bool
	TokenRefresh   bool
	StudentProfile bool
}

// CollegeAdapter is the pluggable, institution-specific portal client.
// Optional operations (IsTokenValid, RefreshToken, GetStudentProfile) must be
// implemented as stubs returning ErrNotSupported when the corresponding
// capability flag is unset.
type CollegeAdapter interface {
	// AdapterID returns the stable identifier stored in the colleges table
	AdapterID() string

	// Capabilities returns the adapter's feature flags
	Capabilities() Capabilities

	// Login authenticates against the portal
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)

	// GetAttendance fetches the per-course attendance summary
	GetAttendance(ctx context.Context, auth *AuthResult) ([]AttendanceRecord, error)

	// GetTimetable fetches the student's schedule
	GetTimetable(ctx context.Context, auth *AuthResult) ([]TimetableRecord, error)

	// GetMarks fetches exam results
	GetMarks(ctx context.Context, auth *AuthResult) ([]MarkRecord, error)

	// GetCourses fetches registered courses
	GetCourses(ctx context.Context, auth *AuthResult) ([]CourseRecord, error)

	// GetStudentProfile fetches profile details (capability: StudentProfile)
	GetStudentProfile(ctx context.Context, auth *AuthResult) (*ProfileRecord, error)

	// IsTokenValid reports whether a cached token is still usable
	// (capability: TokenCheck)
	IsTokenValid(ctx context.Context, auth *AuthResult) (bool, error)

	// RefreshToken exchanges a token for a fresh one (capability: TokenRefresh)
	RefreshToken(ctx context.Context, auth *AuthResult) (*AuthResult, error)
}

// Common adapter errors

var (
	// ErrInvalidCredentials indicates the portal rejected the login
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// ErrNotSupported indicates an optional operation the adapter lacks
	ErrNotSupported = fmt.Errorf("operation not supported by adapter")

	// ErrPortalUnavailable indicates the portal could not be reached
	ErrPortalUnavailable = fmt.Errorf("college portal unavailable")
)

// PortalError wraps portal failures with operation context
type PortalError struct {
	Adapter string
	Op      string
	Status  int
	Err     error
}

func (e *PortalError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("portal error [%s:%s]: HTTP %d: %v", e.Adapter, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("portal error [%s:%s]: %v", e.Adapter, e.Op, e.Err)
}

func (e *PortalError) Unwrap() error {
	return e.Err
}
