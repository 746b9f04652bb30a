package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-sync/internal/models"
)

func attendanceRow(accountID, courseCode string, percentage float64, syncedAt time.Time) *models.Attendance {
	return &models.Attendance{
		AccountID:     accountID,
		CourseCode:    courseCode,
		CourseName:    "Course " + courseCode,
		TotalLectures: 40,
		TotalPresent:  30,
		Percentage:    &percentage,
		SyncedAt:      syncedAt,
	}
}

func TestAttendanceRepositorySnapshotsAppend(t *testing.T) {
	db := setupTestDB(t)
	college := seedCollege(t, db)
	account := seedAccount(t, db, college.ID)
	ctx := testContext(t)

	repo := NewAttendanceRepository(db)
	t.Cleanup(func() { _ = repo.DeleteByAccount(context.Background(), account.ID) })

	first := time.Now().Add(-time.Hour).Truncate(time.Microsecond)
	second := time.Now().Truncate(time.Microsecond)

	require.NoError(t, repo.BulkInsert(ctx, []*models.Attendance{
		attendanceRow(account.ID, "CS101", 80.0, first),
		attendanceRow(account.ID, "MA201", 70.0, first),
	}))
	require.NoError(t, repo.BulkInsert(ctx, []*models.Attendance{
		attendanceRow(account.ID, "CS101", 78.5, second),
		attendanceRow(account.ID, "MA201", 72.0, second),
	}))

	// FindLatest serves only the newest snapshot
	latest, err := repo.FindLatest(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	for _, record := range latest {
		assert.WithinDuration(t, second, record.SyncedAt, time.Millisecond)
	}

	// Earlier snapshots remain for trend history
	history, err := repo.FindHistory(ctx, account.ID, "CS101", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].Percentage)
	assert.Equal(t, 78.5, *history[0].Percentage, "newest history entry first")
	assert.Equal(t, 80.0, *history[1].Percentage)
}

func TestAttendanceRepositoryFindLatestEmpty(t *testing.T) {
	db := setupTestDB(t)
	college := seedCollege(t, db)
	account := seedAccount(t, db, college.ID)

	latest, err := NewAttendanceRepository(db).FindLatest(testContext(t), account.ID)
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestNotificationRepositoryLifecycle(t *testing.T) {
	db := setupTestDB(t)
	college := seedCollege(t, db)
	account := seedAccount(t, db, college.ID)
	ctx := testContext(t)

	repo := NewNotificationRepository(db)
	t.Cleanup(func() {
		_, _ = db.Pool().Exec(context.Background(), `DELETE FROM notifications WHERE user_id = $1`, account.UserID)
	})

	notification := &models.Notification{
		UserID: account.UserID,
		Type:   models.NotificationAttendanceAlert,
		Title:  "Attendance below 75% in 1 course(s)",
		Body:   "Algorithms (CS101): 62.5%",
		Metadata: map[string]interface{}{
			"threshold": 75.0,
		},
	}
	require.NoError(t, repo.Create(ctx, notification))
	require.NotEmpty(t, notification.ID)

	unread, err := repo.CountUnread(ctx, account.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	listed, err := repo.ListByUser(ctx, account.UserID, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, notification.Title, listed[0].Title)
	assert.Equal(t, 75.0, listed[0].Metadata["threshold"])

	require.NoError(t, repo.MarkRead(ctx, account.UserID, notification.ID))
	unread, err = repo.CountUnread(ctx, account.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	assert.Error(t, repo.MarkRead(ctx, "someone-else", notification.ID), "marking another user's notification is rejected")
}
