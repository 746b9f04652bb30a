package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/models"
	"github.com/campus-sync/internal/vault"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// fakeAdapter is a scriptable portal adapter. Unset hooks return empty
// results so each test only scripts the endpoints it cares about.
type fakeAdapter struct {
	mu sync.Mutex

	id           string
	capabilities adapter.Capabilities

	loginFn      func(creds adapter.Credentials) (*adapter.AuthResult, error)
	attendanceFn func(auth *adapter.AuthResult) ([]adapter.AttendanceRecord, error)
	timetableFn  func(auth *adapter.AuthResult) ([]adapter.TimetableRecord, error)
	marksFn      func(auth *adapter.AuthResult) ([]adapter.MarkRecord, error)
	coursesFn    func(auth *adapter.AuthResult) ([]adapter.CourseRecord, error)
	profileFn    func(auth *adapter.AuthResult) (*adapter.ProfileRecord, error)
	tokenValidFn func(auth *adapter.AuthResult) (bool, error)

	loginCalls      int
	attendanceCalls int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{id: "fake-portal"}
}

func (f *fakeAdapter) AdapterID() string { return f.id }

func (f *fakeAdapter) Capabilities() adapter.Capabilities { return f.capabilities }

func (f *fakeAdapter) Login(ctx context.Context, creds adapter.Credentials) (*adapter.AuthResult, error) {
	f.mu.Lock()
	f.loginCalls++
	f.mu.Unlock()
	if f.loginFn != nil {
		return f.loginFn(creds)
	}
	return &adapter.AuthResult{Token: "fresh-token", Fresh: true}, nil
}

func (f *fakeAdapter) GetAttendance(ctx context.Context, auth *adapter.AuthResult) ([]adapter.AttendanceRecord, error) {
	f.mu.Lock()
	f.attendanceCalls++
	f.mu.Unlock()
	if f.attendanceFn != nil {
		return f.attendanceFn(auth)
	}
	return nil, nil
}

func (f *fakeAdapter) GetTimetable(ctx context.Context, auth *adapter.AuthResult) ([]adapter.TimetableRecord, error) {
	if f.timetableFn != nil {
		return f.timetableFn(auth)
	}
	return nil, nil
}

func (f *fakeAdapter) GetMarks(ctx context.Context, auth *adapter.AuthResult) ([]adapter.MarkRecord, error) {
	if f.marksFn != nil {
		return f.marksFn(auth)
	}
	return nil, nil
}

func (f *fakeAdapter) GetCourses(ctx context.Context, auth *adapter.AuthResult) ([]adapter.CourseRecord, error) {
	if f.coursesFn != nil {
		return f.coursesFn(auth)
	}
	return nil, nil
}

func (f *fakeAdapter) GetStudentProfile(ctx context.Context, auth *adapter.AuthResult) (*adapter.ProfileRecord, error) {
	if f.profileFn != nil {
		return f.profileFn(auth)
	}
	return nil, adapter.ErrNotSupported
}

func (f *fakeAdapter) IsTokenValid(ctx context.Context, auth *adapter.AuthResult) (bool, error) {
	if f.tokenValidFn != nil {
		return f.tokenValidFn(auth)
	}
	return false, adapter.ErrNotSupported
}

func (f *fakeAdapter) RefreshToken(ctx context.Context, auth *adapter.AuthResult) (*adapter.AuthResult, error) {
	return nil, adapter.ErrNotSupported
}

func (f *fakeAdapter) LoginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

// fakeAccountStore keeps accounts in a map and records every mutation
type fakeAccountStore struct {
	mu sync.Mutex

	accounts map[string]*models.LinkedAccount

	claimCalls    int
	claimDenied   bool
	updates       []models.SyncUpdate
	deactivated   []string
	claimErr      error
	updateErr     error
	deactivateErr error
}

func newFakeAccountStore(accounts ...*models.LinkedAccount) *fakeAccountStore {
	s := &fakeAccountStore{accounts: make(map[string]*models.LinkedAccount)}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *fakeAccountStore) GetByID(ctx context.Context, id string) (*models.LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	clone := *a
	return &clone, nil
}

func (s *fakeAccountStore) ClaimForSync(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimCalls++
	if s.claimErr != nil {
		return false, s.claimErr
	}
	if s.claimDenied {
		return false, nil
	}
	a, ok := s.accounts[id]
	if !ok || a.SyncStatus == models.SyncStatusSyncing {
		return false, nil
	}
	a.SyncStatus = models.SyncStatusSyncing
	return true, nil
}

func (s *fakeAccountStore) UpdateSync(ctx context.Context, id string, update models.SyncUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, update)
	if a, ok := s.accounts[id]; ok {
		a.SyncStatus = update.Status
		if update.LastSyncAt != nil {
			a.LastSyncAt = update.LastSyncAt
		}
		if update.ClearError {
			a.SyncError = nil
		} else if update.SyncError != nil {
			a.SyncError = update.SyncError
		}
		if update.PortalToken != nil {
			a.PortalToken = update.PortalToken
			a.TokenExpiresAt = update.TokenExpiresAt
		}
		if update.PortalUserID != nil {
			a.PortalUserID = update.PortalUserID
		}
	}
	return nil
}

func (s *fakeAccountStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deactivateErr != nil {
		return s.deactivateErr
	}
	s.deactivated = append(s.deactivated, id)
	if a, ok := s.accounts[id]; ok {
		a.IsActive = false
	}
	return nil
}

func (s *fakeAccountStore) get(id string) *models.LinkedAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

func (s *fakeAccountStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

// fakeSyncLogStore records created and completed sync log rows
type fakeSyncLogStore struct {
	mu sync.Mutex

	created   []*models.SyncLog
	completed map[string]models.SyncLogStatus
	messages  map[string]*string

	consecutiveFailures int
	createErr           error
	countErr            error
}

func newFakeSyncLogStore() *fakeSyncLogStore {
	return &fakeSyncLogStore{
		completed: make(map[string]models.SyncLogStatus),
		messages:  make(map[string]*string),
	}
}

func (s *fakeSyncLogStore) Create(ctx context.Context, accountID string) (*models.SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	row := &models.SyncLog{
		ID:        "log-" + accountID,
		AccountID: accountID,
		Status:    models.SyncLogStarted,
		StartedAt: time.Now(),
	}
	s.created = append(s.created, row)
	return row, nil
}

func (s *fakeSyncLogStore) Complete(ctx context.Context, id string, status models.SyncLogStatus, errorMessage *string, durationMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[id] = status
	s.messages[id] = errorMessage
	return nil
}

func (s *fakeSyncLogStore) CountConsecutiveFailures(ctx context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.consecutiveFailures, nil
}

// fakeCollegeStore serves a fixed set of colleges
type fakeCollegeStore struct {
	colleges map[string]*models.College
}

func newFakeCollegeStore(colleges ...*models.College) *fakeCollegeStore {
	s := &fakeCollegeStore{colleges: make(map[string]*models.College)}
	for _, c := range colleges {
		s.colleges[c.ID] = c
	}
	return s
}

func (s *fakeCollegeStore) GetByID(ctx context.Context, id string) (*models.College, error) {
	return s.colleges[id], nil
}

// fakeCache records invalidations
type fakeCache struct {
	mu sync.Mutex

	accountInvalidations []string
	profileInvalidations []string
	countInvalidations   []string
}

func (c *fakeCache) InvalidateAccount(ctx context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountInvalidations = append(c.accountInvalidations, accountID)
	return nil
}

func (c *fakeCache) InvalidateProfile(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profileInvalidations = append(c.profileInvalidations, userID)
	return nil
}

func (c *fakeCache) InvalidateNotificationCount(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.countInvalidations = append(c.countInvalidations, userID)
	return nil
}

// In-memory persistence fakes for the upserter

type fakeAttendanceStore struct {
	mu      sync.Mutex
	records []*models.Attendance
	err     error
}

func (s *fakeAttendanceStore) BulkInsert(ctx context.Context, records []*models.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, records...)
	return nil
}

type fakeTimetableStore struct {
	mu       sync.Mutex
	replaced [][]*models.TimetableEntry
}

func (s *fakeTimetableStore) ReplaceAll(ctx context.Context, accountID string, entries []*models.TimetableEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced = append(s.replaced, entries)
	return nil
}

type fakeMarkStore struct {
	mu       sync.Mutex
	replaced [][]*models.Mark
}

func (s *fakeMarkStore) ReplaceAll(ctx context.Context, accountID string, marks []*models.Mark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced = append(s.replaced, marks)
	return nil
}

type fakeCourseStore struct {
	mu       sync.Mutex
	replaced [][]*models.Course
}

func (s *fakeCourseStore) ReplaceAll(ctx context.Context, accountID string, courses []*models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced = append(s.replaced, courses)
	return nil
}

type fakeProfileStore struct {
	mu       sync.Mutex
	upserted []*models.StudentProfile
}

func (s *fakeProfileStore) Upsert(ctx context.Context, profile *models.StudentProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, profile)
	return nil
}

type fakeNotificationStore struct {
	mu      sync.Mutex
	created []*models.Notification
}

func (s *fakeNotificationStore) Create(ctx context.Context, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, notification)
	return nil
}

type fakeAttendanceReader struct {
	records []*models.Attendance
	err     error
}

func (r *fakeAttendanceReader) FindLatest(ctx context.Context, accountID string) ([]*models.Attendance, error) {
	return r.records, r.err
}

// newTestVault builds a vault with a fixed test key
func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(testEncryptionKey)
	require.NoError(t, err)
	return v
}

// newTestAccount builds an active linked account with properly encrypted
// credentials and the composite IV/tag columns populated
func newTestAccount(t *testing.T, v *vault.Vault, id string) *models.LinkedAccount {
	t.Helper()

	encUsername, err := v.Encrypt("student-1")
	require.NoError(t, err)
	encPassword, err := v.Encrypt("hunter2")
	require.NoError(t, err)

	return &models.LinkedAccount{
		ID:                id,
		UserID:            "user-1",
		CollegeID:         "college-1",
		EncryptedUsername: encUsername.Ciphertext,
		EncryptedPassword: encPassword.Ciphertext,
		EncryptionIV:      vault.JoinPair(encUsername.IV, encPassword.IV),
		EncryptionAuthTag: vault.JoinPair(encUsername.AuthTag, encPassword.AuthTag),
		SyncStatus:        models.SyncStatusPending,
		IsActive:          true,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
}

func newTestCollege(adapterID string) *models.College {
	return &models.College{
		ID:                  "college-1",
		Slug:                "test-college",
		Name:                "Test College",
		AdapterID:           adapterID,
		AttendanceThreshold: 75.0,
		IsActive:            true,
	}
}

func floatPtr(f float64) *float64 { return &f }

func strPtr(s string) *string { return &s }

func timePtr(tm time.Time) *time.Time { return &tm }
