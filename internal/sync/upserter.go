package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/models"
)

// AttendanceStore is the attendance persistence contract the upserter needs
type AttendanceStore interface {
	BulkInsert(ctx context.Context, records []*models.Attendance) error
}

// TimetableStore is the timetable persistence contract
type TimetableStore interface {
	ReplaceAll(ctx context.Context, accountID string, entries []*models.TimetableEntry) error
}

// MarkStore is the marks persistence contract
type MarkStore interface {
	ReplaceAll(ctx context.Context, accountID string, marks []*models.Mark) error
}

// CourseStore is the courses persistence contract
type CourseStore interface {
	ReplaceAll(ctx context.Context, accountID string, courses []*models.Course) error
}

// ProfileStore is the student profile persistence contract
type ProfileStore interface {
	Upsert(ctx context.Context, profile *models.StudentProfile) error
}

// Upserter writes one fetch pass to storage. Attendance appends, the other
// snapshot categories replace, the profile upserts by user id. Every row
// written by one attempt carries the same syncedAt.
type Upserter struct {
	attendance AttendanceStore
	timetable  TimetableStore
	marks      MarkStore
	courses    CourseStore
	profiles   ProfileStore
}

// NewUpserter creates a new upserter
func NewUpserter(attendance AttendanceStore, timetable TimetableStore, marks MarkStore, courses CourseStore, profiles ProfileStore) *Upserter {
	return &Upserter{
		attendance: attendance,
		timetable:  timetable,
		marks:      marks,
		courses:    courses,
		profiles:   profiles,
	}
}

// Persist writes every non-empty category. Storage errors propagate
// unmodified to the coordinator.
func (u *Upserter) Persist(ctx context.Context, account *models.LinkedAccount, result *FetchResult, syncedAt time.Time) error {
	logger := logging.FromContext(ctx).WithField("accountId", account.ID)

	if !result.Attendance.Empty() {
		records := make([]*models.Attendance, 0, len(result.Attendance.Records))
		for _, r := range result.Attendance.Records {
			records = append(records, attendanceModel(account.ID, r, syncedAt))
		}
		if err := u.attendance.BulkInsert(ctx, records); err != nil {
			return err
		}
		logger.WithField("count", len(records)).Debug("Attendance snapshot appended")
	}

	if !result.Timetable.Empty() {
		entries := make([]*models.TimetableEntry, 0, len(result.Timetable.Records))
		for _, r := range result.Timetable.Records {
			entries = append(entries, timetableModel(account.ID, r, syncedAt))
		}
		if err := u.timetable.ReplaceAll(ctx, account.ID, entries); err != nil {
			return err
		}
		logger.WithField("count", len(entries)).Debug("Timetable snapshot replaced")
	}

	if !result.Marks.Empty() {
		marks := make([]*models.Mark, 0, len(result.Marks.Records))
		for _, r := range result.Marks.Records {
			marks = append(marks, markModel(account.ID, r, syncedAt))
		}
		if err := u.marks.ReplaceAll(ctx, account.ID, marks); err != nil {
			return err
		}
		logger.WithField("count", len(marks)).Debug("Marks snapshot replaced")
	}

	if !result.Courses.Empty() {
		courses := make([]*models.Course, 0, len(result.Courses.Records))
		for _, r := range result.Courses.Records {
			courses = append(courses, courseModel(account.ID, r, syncedAt))
		}
		if err := u.courses.ReplaceAll(ctx, account.ID, courses); err != nil {
			return err
		}
		logger.WithField("count", len(courses)).Debug("Courses snapshot replaced")
	}

	if result.Profile != nil {
		if err := u.profiles.Upsert(ctx, profileModel(account, result.Profile)); err != nil {
			return err
		}
		logger.Debug("Student profile upserted")
	}

	return nil
}

func attendanceModel(accountID string, r adapter.AttendanceRecord, syncedAt time.Time) *models.Attendance {
	percentage := r.Percentage
	return &models.Attendance{
		AccountID:     accountID,
		CourseCode:    r.CourseCode,
		CourseName:    r.CourseName,
		TotalLectures: r.TotalLectures,
		TotalPresent:  r.TotalPresent,
		TotalAbsent:   r.TotalAbsent,
		TotalLOA:      r.TotalLOA,
		TotalOnDuty:   r.TotalOnDuty,
		Percentage:    &percentage,
		SyncedAt:      syncedAt,
	}
}

func timetableModel(accountID string, r adapter.TimetableRecord, syncedAt time.Time) *models.TimetableEntry {
	entry := &models.TimetableEntry{
		AccountID:  accountID,
		DayOfWeek:  r.DayOfWeek,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		CourseCode: r.CourseCode,
		CourseName: r.CourseName,
		SyncedAt:   syncedAt,
	}
	if r.Date != "" {
		entry.LectureDate = &r.Date
	}
	if r.FacultyName != "" {
		entry.FacultyName = &r.FacultyName
	}
	if r.Room != "" {
		entry.Room = &r.Room
	}
	if r.Section != "" {
		entry.Section = &r.Section
	}
	return entry
}

func markModel(accountID string, r adapter.MarkRecord, syncedAt time.Time) *models.Mark {
	mark := &models.Mark{
		AccountID:     accountID,
		CourseCode:    r.CourseCode,
		CourseName:    r.CourseName,
		ExamType:      r.ExamType,
		MaxMarks:      r.MaxMarks,
		ObtainedMarks: r.ObtainedMarks,
		SGPA:          r.SGPA,
		CGPA:          r.CGPA,
		SyncedAt:      syncedAt,
	}
	if r.Grade != "" {
		mark.Grade = &r.Grade
	}
	if r.Semester != 0 {
		semester := fmt.Sprintf("%d", r.Semester)
		mark.Semester = &semester
	}
	return mark
}

func courseModel(accountID string, r adapter.CourseRecord, syncedAt time.Time) *models.Course {
	course := &models.Course{
		AccountID:  accountID,
		CourseCode: r.CourseCode,
		CourseName: r.CourseName,
		Credits:    r.Credits,
		SyncedAt:   syncedAt,
	}
	if r.Semester != 0 {
		semester := fmt.Sprintf("%d", r.Semester)
		course.Semester = &semester
	}
	return course
}

func profileModel(account *models.LinkedAccount, r *adapter.ProfileRecord) *models.StudentProfile {
	profile := &models.StudentProfile{
		UserID:        account.UserID,
		AccountID:     account.ID,
		RollNo:        r.RollNo,
		StudentName:   r.StudentName,
		Semester:      r.Semester,
		ProgrammeName: r.ProgrammeName,
		DegreeLevel:   r.DegreeLevel,
	}
	if r.FatherName != "" {
		profile.FatherName = &r.FatherName
	}
	if r.MobileNo != "" {
		profile.MobileNo = &r.MobileNo
	}
	if r.Section != "" {
		profile.Section = &r.Section
	}
	if r.StudentImage != "" {
		profile.StudentImage = &r.StudentImage
	}
	return profile
}
