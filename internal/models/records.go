package models

import (
	"time"
)

// Attendance is one per-course attendance snapshot row. Attendance rows are
// append-only; every row written by one sync attempt shares the same SyncedAt,
// so the latest snapshot is the set of rows with the maximum SyncedAt.
type Attendance struct {
	ID            string    `json:"id" db:"id"`
	AccountID     string    `json:"accountId" db:"account_id"`
	CourseCode    string    `json:"courseCode" db:"course_code"`
	CourseName    string    `json:"courseName" db:"course_name"`
	TotalLectures int       `json:"totalLectures" db:"total_lectures"`
	TotalPresent  int       `json:"totalPresent" db:"total_present"`
	TotalAbsent   int       `json:"totalAbsent" db:"total_absent"`
	TotalLOA      int       `json:"totalLoa" db:"total_loa"`
	TotalOnDuty   int       `json:"totalOnDuty" db:"total_on_duty"`
	Percentage    *float64  `json:"percentage,omitempty" db:"percentage"`
	SyncedAt      time.Time `json:"syncedAt" db:"synced_at"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// TimetableEntry is one scheduled lecture slot. Timetable rows are a
// full-replace snapshot: each sync replaces the previous set atomically.
type TimetableEntry struct {
	ID          string    `json:"id" db:"id"`
	AccountID   string    `json:"accountId" db:"account_id"`
	DayOfWeek   int       `json:"dayOfWeek" db:"day_of_week"`
	LectureDate *string   `json:"lectureDate,omitempty" db:"lecture_date"`
	StartTime   string    `json:"startTime" db:"start_time"`
	EndTime     string    `json:"endTime" db:"end_time"`
	CourseCode  string    `json:"courseCode" db:"course_code"`
	CourseName  string    `json:"courseName" db:"course_name"`
	FacultyName *string   `json:"facultyName,omitempty" db:"faculty_name"`
	Room        *string   `json:"room,omitempty" db:"room"`
	Section     *string   `json:"section,omitempty" db:"section"`
	SyncedAt    time.Time `json:"syncedAt" db:"synced_at"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Mark is one exam/assessment result row (full-replace snapshot)
type Mark struct {
	ID            string    `json:"id" db:"id"`
	AccountID     string    `json:"accountId" db:"account_id"`
	CourseCode    string    `json:"courseCode" db:"course_code"`
	CourseName    string    `json:"courseName" db:"course_name"`
	ExamType      string    `json:"examType" db:"exam_type"`
	MaxMarks      *float64  `json:"maxMarks,omitempty" db:"max_marks"`
	ObtainedMarks *float64  `json:"obtainedMarks,omitempty" db:"obtained_marks"`
	Grade         *string   `json:"grade,omitempty" db:"grade"`
	SGPA          *float64  `json:"sgpa,omitempty" db:"sgpa"`
	CGPA          *float64  `json:"cgpa,omitempty" db:"cgpa"`
	Semester      *string   `json:"semester,omitempty" db:"semester"`
	SyncedAt      time.Time `json:"syncedAt" db:"synced_at"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// Course is one registered course row (full-replace snapshot)
type Course struct {
	ID         string    `json:"id" db:"id"`
	AccountID  string    `json:"accountId" db:"account_id"`
	CourseCode string    `json:"courseCode" db:"course_code"`
	CourseName string    `json:"courseName" db:"course_name"`
	Credits    *float64  `json:"credits,omitempty" db:"credits"`
	Semester   *string   `json:"semester,omitempty" db:"semester"`
	SyncedAt   time.Time `json:"syncedAt" db:"synced_at"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// StudentProfile is a single upserted row per user, keyed by user id.
// Unlike the snapshot collections it is overwritten in place.
type StudentProfile struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"userId" db:"user_id"`
	AccountID     string    `json:"accountId" db:"account_id"`
	RollNo        string    `json:"rollNo" db:"roll_no"`
	StudentName   string    `json:"studentName" db:"student_name"`
	Semester      int       `json:"semester" db:"semester"`
	ProgrammeName string    `json:"programmeName" db:"programme_name"`
	DegreeLevel   string    `json:"degreeLevel" db:"degree_level"`
	FatherName    *string   `json:"fatherName,omitempty" db:"father_name"`
	MobileNo      *string   `json:"mobileNo,omitempty" db:"mobile_no"`
	Section       *string   `json:"section,omitempty" db:"section"`
	StudentImage  *string   `json:"studentImage,omitempty" db:"student_image"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}
