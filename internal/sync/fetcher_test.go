package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-sync/internal/adapter"
)

func sampleAttendance() []adapter.AttendanceRecord {
	return []adapter.AttendanceRecord{
		{CourseCode: "CS101", CourseName: "Algorithms", TotalLectures: 40, TotalPresent: 32, Percentage: 80.0},
	}
}

func TestFetchCollectsAllCategories(t *testing.T) {
	a := newFakeAdapter()
	a.attendanceFn = func(auth *adapter.AuthResult) ([]adapter.AttendanceRecord, error) {
		return sampleAttendance(), nil
	}
	a.timetableFn = func(auth *adapter.AuthResult) ([]adapter.TimetableRecord, error) {
		return []adapter.TimetableRecord{{CourseCode: "CS101", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"}}, nil
	}
	a.marksFn = func(auth *adapter.AuthResult) ([]adapter.MarkRecord, error) {
		return []adapter.MarkRecord{{CourseCode: "CS101", ExamType: "midterm"}}, nil
	}
	a.coursesFn = func(auth *adapter.AuthResult) ([]adapter.CourseRecord, error) {
		return []adapter.CourseRecord{{CourseCode: "CS101", CourseName: "Algorithms"}}, nil
	}

	auth := &adapter.AuthResult{Token: "tok", Fresh: true}
	result, err := NewFetcher().Fetch(context.Background(), a, auth, adapter.Credentials{})
	require.NoError(t, err)

	assert.Len(t, result.Attendance.Records, 1)
	assert.Len(t, result.Timetable.Records, 1)
	assert.Len(t, result.Marks.Records, 1)
	assert.Len(t, result.Courses.Records, 1)
	assert.False(t, result.Recovered)
	assert.Same(t, auth, result.Auth)
}

func TestFetchDegradesFailedCategoryToEmpty(t *testing.T) {
	portalErr := errors.New("HTTP 500")

	a := newFakeAdapter()
	a.attendanceFn = func(auth *adapter.AuthResult) ([]adapter.AttendanceRecord, error) {
		return sampleAttendance(), nil
	}
	a.marksFn = func(auth *adapter.AuthResult) ([]adapter.MarkRecord, error) {
		return nil, portalErr
	}

	result, err := NewFetcher().Fetch(context.Background(), a, &adapter.AuthResult{Token: "tok", Fresh: true}, adapter.Credentials{})
	require.NoError(t, err, "one failed category must not fail the fetch")

	assert.Len(t, result.Attendance.Records, 1, "healthy categories survive")
	assert.True(t, result.Marks.Empty())
	assert.True(t, result.Marks.Recovered)
	assert.ErrorIs(t, result.Marks.Err, portalErr)
}

func TestFetchProfileFailureIsNotFatal(t *testing.T) {
	a := newFakeAdapter()
	a.capabilities = adapter.Capabilities{StudentProfile: true}
	a.attendanceFn = func(auth *adapter.AuthResult) ([]adapter.AttendanceRecord, error) {
		return sampleAttendance(), nil
	}
	a.profileFn = func(auth *adapter.AuthResult) (*adapter.ProfileRecord, error) {
		return nil, errors.New("profile endpoint down")
	}

	result, err := NewFetcher().Fetch(context.Background(), a, &adapter.AuthResult{Token: "tok", Fresh: true}, adapter.Credentials{})
	require.NoError(t, err)
	assert.Nil(t, result.Profile)
}

func TestFetchSkipsProfileWithoutCapability(t *testing.T) {
	a := newFakeAdapter()
	profileCalled := false
	a.profileFn = func(auth *adapter.AuthResult) (*adapter.ProfileRecord, error) {
		profileCalled = true
		return &adapter.ProfileRecord{RollNo: "R1"}, nil
	}

	result, err := NewFetcher().Fetch(context.Background(), a, &adapter.AuthResult{Token: "tok", Fresh: true}, adapter.Credentials{})
	require.NoError(t, err)
	assert.Nil(t, result.Profile)
	assert.False(t, profileCalled, "profile endpoint must not be probed without the capability flag")
}

func TestFetchRecoversFromSilentlyRevokedToken(t *testing.T) {
	a := newFakeAdapter()
	a.attendanceFn = func(auth *adapter.AuthResult) ([]adapter.AttendanceRecord, error) {
		if auth.Token == "stale-token" {
			return nil, nil
		}
		return sampleAttendance(), nil
	}

	cached := &adapter.AuthResult{Token: "stale-token", Fresh: false}
	result, err := NewFetcher().Fetch(context.Background(), a, cached, adapter.Credentials{})
	require.NoError(t, err)

	assert.True(t, result.Recovered)
	assert.Equal(t, 1, a.LoginCalls(), "recovery performs exactly one fresh login")
	assert.Len(t, result.Attendance.Records, 1)
	assert.Equal(t, "fresh-token", result.Auth.Token, "result carries the fresh session")
	assert.True(t, result.Auth.Fresh)
}

func TestFetchAcceptsSecondEmptyPassAsGenuinelyEmpty(t *testing.T) {
	a := newFakeAdapter()

	cached := &adapter.AuthResult{Token: "stale-token", Fresh: false}
	result, err := NewFetcher().Fetch(context.Background(), a, cached, adapter.Credentials{})
	require.NoError(t, err)

	assert.True(t, result.Recovered)
	assert.True(t, result.AllEmpty())
	assert.Equal(t, 1, a.LoginCalls(), "never more than one recovery login per attempt")
}

func TestFetchNoRecoveryOnFreshSession(t *testing.T) {
	a := newFakeAdapter()

	fresh := &adapter.AuthResult{Token: "fresh-token", Fresh: true}
	result, err := NewFetcher().Fetch(context.Background(), a, fresh, adapter.Credentials{})
	require.NoError(t, err)

	assert.False(t, result.Recovered, "an all-empty fresh session is genuinely empty")
	assert.Equal(t, 0, a.LoginCalls())
}

func TestFetchNoRecoveryWhenAnyCategoryHasRecords(t *testing.T) {
	a := newFakeAdapter()
	a.coursesFn = func(auth *adapter.AuthResult) ([]adapter.CourseRecord, error) {
		return []adapter.CourseRecord{{CourseCode: "CS101"}}, nil
	}

	cached := &adapter.AuthResult{Token: "cached-token", Fresh: false}
	result, err := NewFetcher().Fetch(context.Background(), a, cached, adapter.Credentials{})
	require.NoError(t, err)

	assert.False(t, result.Recovered)
	assert.Equal(t, 0, a.LoginCalls())
}

func TestFetchRecoveryLoginFailureIsFatal(t *testing.T) {
	a := newFakeAdapter()
	a.loginFn = func(creds adapter.Credentials) (*adapter.AuthResult, error) {
		return nil, adapter.ErrInvalidCredentials
	}

	cached := &adapter.AuthResult{Token: "stale-token", Fresh: false}
	_, err := NewFetcher().Fetch(context.Background(), a, cached, adapter.Credentials{})
	assert.ErrorIs(t, err, adapter.ErrInvalidCredentials)
}
