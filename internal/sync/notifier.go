package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/campus-sync/internal/errors"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/models"
)

// AttendanceReader loads the latest attendance snapshot
type AttendanceReader interface {
	FindLatest(ctx context.Context, accountID string) ([]*models.Attendance, error)
}

// NotificationStore persists user notifications
type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// NotificationInvalidator drops the cached unread count
type NotificationInvalidator interface {
	InvalidateNotificationCount(ctx context.Context, userID string) error
}

// AttendanceNotifier evaluates the latest attendance snapshot against the
// institution's threshold after a successful sync. All below-threshold
// courses are rolled into a single aggregated notification, never one per
// course.
type AttendanceNotifier struct {
	accounts      AccountStore
	colleges      CollegeStore
	attendance    AttendanceReader
	notifications NotificationStore
	cache         NotificationInvalidator
}

// NewAttendanceNotifier creates a new attendance notifier
func NewAttendanceNotifier(
	accounts AccountStore,
	colleges CollegeStore,
	attendance AttendanceReader,
	notifications NotificationStore,
	cache NotificationInvalidator,
) *AttendanceNotifier {
	return &AttendanceNotifier{
		accounts:      accounts,
		colleges:      colleges,
		attendance:    attendance,
		notifications: notifications,
		cache:         cache,
	}
}

// Check runs the threshold evaluation for one account. Returns whether a
// notification was written.
func (n *AttendanceNotifier) Check(ctx context.Context, accountID, userID string) (bool, error) {
	logger := logging.FromContext(ctx).WithField("accountId", accountID)

	account, err := n.accounts.GetByID(ctx, accountID)
	if err != nil {
		return false, errors.NewDatabaseError("load linked account", err)
	}
	if account == nil {
		return false, errors.NewAccountNotFoundError(accountID)
	}

	college, err := n.colleges.GetByID(ctx, account.CollegeID)
	if err != nil {
		return false, errors.NewDatabaseError("load college", err)
	}
	if college == nil {
		return false, errors.NewNotFoundError("college", account.CollegeID)
	}

	snapshot, err := n.attendance.FindLatest(ctx, accountID)
	if err != nil {
		return false, errors.NewDatabaseError("load attendance snapshot", err)
	}

	var low []*models.Attendance
	for _, record := range snapshot {
		if record.Percentage != nil && *record.Percentage < college.AttendanceThreshold {
			low = append(low, record)
		}
	}

	if len(low) == 0 {
		logger.Debug("No courses below attendance threshold")
		return false, nil
	}

	notification := buildAttendanceAlert(userID, college.AttendanceThreshold, low)
	if err := n.notifications.Create(ctx, notification); err != nil {
		return false, errors.NewDatabaseError("create notification", err)
	}

	if err := n.cache.InvalidateNotificationCount(ctx, userID); err != nil {
		logger.WithError(err).Warn("Failed to invalidate notification count cache")
	}

	logger.WithField("lowCourses", len(low)).Info("Attendance alert created")
	return true, nil
}

func buildAttendanceAlert(userID string, threshold float64, low []*models.Attendance) *models.Notification {
	lines := make([]string, 0, len(low))
	courses := make([]map[string]interface{}, 0, len(low))
	for _, record := range low {
		lines = append(lines, fmt.Sprintf("%s (%s): %.1f%%", record.CourseName, record.CourseCode, *record.Percentage))
		courses = append(courses, map[string]interface{}{
			"courseCode": record.CourseCode,
			"courseName": record.CourseName,
			"percentage": *record.Percentage,
		})
	}

	title := fmt.Sprintf("Attendance below %.0f%% in %d course(s)", threshold, len(low))

	return &models.Notification{
		UserID: userID,
		Type:   models.NotificationAttendanceAlert,
		Title:  title,
		Body:   strings.Join(lines, "\n"),
		Metadata: map[string]interface{}{
			"threshold": threshold,
			"courses":   courses,
		},
	}
}
