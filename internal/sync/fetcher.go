package sync

import (
	"context"
	"sync"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/logging"
)

// CategoryResult is the outcome of one category fetch. Recovered marks a
// category that failed and was degraded to empty instead of aborting the
// attempt; Err carries the recovered error for logging.
type CategoryResult[T any] struct {
	Records   []T
	Recovered bool
	Err       error
}

// Empty reports whether the category produced no records
func (r CategoryResult[T]) Empty() bool {
	return len(r.Records) == 0
}

// FetchResult bundles the outcome of one full fetch pass
type FetchResult struct {
	Attendance CategoryResult[adapter.AttendanceRecord]
	Timetable  CategoryResult[adapter.TimetableRecord]
	Marks      CategoryResult[adapter.MarkRecord]
	Courses    CategoryResult[adapter.CourseRecord]
	Profile    *adapter.ProfileRecord

	// Auth is the session the final pass ran with. After a stale-token
	// recovery it carries the freshly issued token.
	Auth *adapter.AuthResult

	// Recovered is true when the stale-token heuristic fired
	Recovered bool
}

// AllEmpty reports whether the four mandatory categories all came back
// empty. The optional student profile is excluded.
func (fr *FetchResult) AllEmpty() bool {
	return fr.Attendance.Empty() && fr.Timetable.Empty() && fr.Marks.Empty() && fr.Courses.Empty()
}

// Fetcher runs the category fetches concurrently with per-category fault
// isolation and applies the stale-token recovery heuristic.
type Fetcher struct{}

// NewFetcher creates a new fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// Fetch pulls all categories for the account. When every mandatory category
// comes back empty and the session was a cached one, it performs exactly one
// fresh login and refetch; a second empty pass is accepted as genuinely
// empty. The portal is observed to revoke sessions silently, answering with
// empty payloads rather than auth errors, which is what this heuristic
// detects.
func (f *Fetcher) Fetch(ctx context.Context, a adapter.CollegeAdapter, auth *adapter.AuthResult, creds adapter.Credentials) (*FetchResult, error) {
	result := f.fetchAll(ctx, a, auth)

	if result.AllEmpty() && !auth.Fresh {
		logging.FromContext(ctx).WithField("adapter", a.AdapterID()).
			Warn("All categories empty on cached token, retrying with fresh login")

		freshAuth, err := a.Login(ctx, creds)
		if err != nil {
			return nil, err
		}

		result = f.fetchAll(ctx, a, freshAuth)
		result.Recovered = true
	}

	return result, nil
}

// fetchAll runs one concurrent pass over every category. A failed category
// is degraded to an empty recovered result so the other categories survive;
// the portal fails per-endpoint, not globally.
func (f *Fetcher) fetchAll(ctx context.Context, a adapter.CollegeAdapter, auth *adapter.AuthResult) *FetchResult {
	logger := logging.FromContext(ctx).WithField("adapter", a.AdapterID())

	result := &FetchResult{Auth: auth}

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		records, err := a.GetAttendance(ctx, auth)
		result.Attendance = degrade(records, err)
	}()

	go func() {
		defer wg.Done()
		records, err := a.GetTimetable(ctx, auth)
		result.Timetable = degrade(records, err)
	}()

	go func() {
		defer wg.Done()
		records, err := a.GetMarks(ctx, auth)
		result.Marks = degrade(records, err)
	}()

	go func() {
		defer wg.Done()
		records, err := a.GetCourses(ctx, auth)
		result.Courses = degrade(records, err)
	}()

	if a.Capabilities().StudentProfile {
		wg.Add(1)
		go func() {
			defer wg.Done()
			profile, err := a.GetStudentProfile(ctx, auth)
			if err != nil {
				logger.WithError(err).Warn("Student profile fetch failed, skipping")
				return
			}
			result.Profile = profile
		}()
	}

	wg.Wait()

	for name, cr := range map[string]struct {
		recovered bool
		err       error
	}{
		"attendance": {result.Attendance.Recovered, result.Attendance.Err},
		"timetable":  {result.Timetable.Recovered, result.Timetable.Err},
		"marks":      {result.Marks.Recovered, result.Marks.Err},
		"courses":    {result.Courses.Recovered, result.Courses.Err},
	} {
		if cr.recovered {
			logger.WithField("category", name).WithError(cr.err).
				Warn("Category fetch failed, degraded to empty")
		}
	}

	return result
}

// degrade turns a failed fetch into an explicit empty recovered result
func degrade[T any](records []T, err error) CategoryResult[T] {
	if err != nil {
		return CategoryResult[T]{Recovered: true, Err: err}
	}
	return CategoryResult[T]{Records: records}
}
