package sync

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-sync/internal/errors"
	"github.com/campus-sync/internal/models"
)

func notifierFixture(t *testing.T, records []*models.Attendance) (*AttendanceNotifier, *fakeNotificationStore, *fakeCache) {
	t.Helper()

	accounts := newFakeAccountStore(&models.LinkedAccount{
		ID: "acc-1", UserID: "user-1", CollegeID: "college-1", IsActive: true,
	})
	colleges := newFakeCollegeStore(newTestCollege("fake-portal"))
	notifications := &fakeNotificationStore{}
	cache := &fakeCache{}

	notifier := NewAttendanceNotifier(accounts, colleges, &fakeAttendanceReader{records: records}, notifications, cache)
	return notifier, notifications, cache
}

func TestCheckCreatesSingleAggregatedNotification(t *testing.T) {
	notifier, notifications, cache := notifierFixture(t, []*models.Attendance{
		{AccountID: "acc-1", CourseCode: "CS101", CourseName: "Algorithms", Percentage: floatPtr(62.5)},
		{AccountID: "acc-1", CourseCode: "MA201", CourseName: "Linear Algebra", Percentage: floatPtr(80.0)},
		{AccountID: "acc-1", CourseCode: "PH101", CourseName: "Physics", Percentage: floatPtr(70.0)},
	})

	created, err := notifier.Check(context.Background(), "acc-1", "user-1")
	require.NoError(t, err)
	require.True(t, created)

	require.Len(t, notifications.created, 1, "all low courses roll into one notification")
	n := notifications.created[0]

	assert.Equal(t, "user-1", n.UserID)
	assert.Equal(t, models.NotificationAttendanceAlert, n.Type)
	assert.Equal(t, "Attendance below 75% in 2 course(s)", n.Title)
	assert.Contains(t, n.Body, "Algorithms (CS101): 62.5%")
	assert.Contains(t, n.Body, "Physics (PH101): 70.0%")
	assert.NotContains(t, n.Body, "MA201", "courses at or above the threshold are excluded")
	assert.Len(t, strings.Split(n.Body, "\n"), 2)

	courses, ok := n.Metadata["courses"].([]map[string]interface{})
	require.True(t, ok)
	assert.Len(t, courses, 2)

	assert.Equal(t, []string{"user-1"}, cache.countInvalidations)
}

func TestCheckNoNotificationWhenAllAboveThreshold(t *testing.T) {
	notifier, notifications, cache := notifierFixture(t, []*models.Attendance{
		{AccountID: "acc-1", CourseCode: "CS101", CourseName: "Algorithms", Percentage: floatPtr(90.0)},
		{AccountID: "acc-1", CourseCode: "MA201", CourseName: "Linear Algebra", Percentage: floatPtr(75.0)},
	})

	created, err := notifier.Check(context.Background(), "acc-1", "user-1")
	require.NoError(t, err)

	assert.False(t, created)
	assert.Empty(t, notifications.created)
	assert.Empty(t, cache.countInvalidations)
}

func TestCheckExactThresholdIsNotBelow(t *testing.T) {
	notifier, notifications, _ := notifierFixture(t, []*models.Attendance{
		{AccountID: "acc-1", CourseCode: "CS101", CourseName: "Algorithms", Percentage: floatPtr(75.0)},
	})

	created, err := notifier.Check(context.Background(), "acc-1", "user-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, notifications.created)
}

func TestCheckSkipsRecordsWithoutPercentage(t *testing.T) {
	notifier, notifications, _ := notifierFixture(t, []*models.Attendance{
		{AccountID: "acc-1", CourseCode: "CS101", CourseName: "Algorithms", Percentage: nil},
	})

	created, err := notifier.Check(context.Background(), "acc-1", "user-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, notifications.created)
}

func TestCheckEmptySnapshot(t *testing.T) {
	notifier, notifications, _ := notifierFixture(t, nil)

	created, err := notifier.Check(context.Background(), "acc-1", "user-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, notifications.created)
}

func TestCheckUnknownAccount(t *testing.T) {
	notifier, _, _ := notifierFixture(t, nil)

	_, err := notifier.Check(context.Background(), "missing", "user-1")
	assert.True(t, errors.IsCode(err, "ACCOUNT_NOT_FOUND"))
}
