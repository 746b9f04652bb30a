package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/config"
	"github.com/campus-sync/internal/job"
	"github.com/campus-sync/internal/storage"
	"github.com/campus-sync/internal/vault"
)

const linkTestEncryptionKey = "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"

// stubPortal is a minimal portal adapter for exercising the link flow.
// Login either succeeds with a fixed session or rejects the credentials.
type stubPortal struct {
	id         string
	rejectAll  bool
	loginCalls int
}

func (p *stubPortal) AdapterID() string { return p.id }

func (p *stubPortal) Capabilities() adapter.Capabilities { return adapter.Capabilities{} }

func (p *stubPortal) Login(ctx context.Context, creds adapter.Credentials) (*adapter.AuthResult, error) {
	p.loginCalls++
	if p.rejectAll {
		return nil, adapter.ErrInvalidCredentials
	}
	expires := time.Now().Add(time.Hour)
	return &adapter.AuthResult{
		Token:        "link-token",
		PortalUserID: "enc-link-42",
		ExpiresAt:    &expires,
		Fresh:        true,
	}, nil
}

func (p *stubPortal) GetAttendance(ctx context.Context, auth *adapter.AuthResult) ([]adapter.AttendanceRecord, error) {
	return nil, nil
}

func (p *stubPortal) GetTimetable(ctx context.Context, auth *adapter.AuthResult) ([]adapter.TimetableRecord, error) {
	return nil, nil
}

func (p *stubPortal) GetMarks(ctx context.Context, auth *adapter.AuthResult) ([]adapter.MarkRecord, error) {
	return nil, nil
}

func (p *stubPortal) GetCourses(ctx context.Context, auth *adapter.AuthResult) ([]adapter.CourseRecord, error) {
	return nil, nil
}

func (p *stubPortal) GetStudentProfile(ctx context.Context, auth *adapter.AuthResult) (*adapter.ProfileRecord, error) {
	return nil, adapter.ErrNotSupported
}

func (p *stubPortal) IsTokenValid(ctx context.Context, auth *adapter.AuthResult) (bool, error) {
	return false, adapter.ErrNotSupported
}

func (p *stubPortal) RefreshToken(ctx context.Context, auth *adapter.AuthResult) (*adapter.AuthResult, error) {
	return nil, adapter.ErrNotSupported
}

// linkTestEnv wires a server against a real database with a stub portal
// adapter. The sync service is never started, so queued jobs stay inert.
type linkTestEnv struct {
	server    *Server
	db        *storage.PostgresDB
	accounts  *storage.AccountRepository
	portal    *stubPortal
	collegeID string
}

func setupLinkTest(t *testing.T) *linkTestEnv {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "campus_sync",
		User:           "campus",
		Password:       "campus_dev_password",
		MaxConnections: 10,
	}

	db, err := storage.NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
		return nil
	}
	t.Cleanup(db.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	if err := db.Ping(ctx); err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
		return nil
	}

	databaseURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	if err := storage.RunMigrations(databaseURL, "../../migrations/postgres"); err != nil {
		t.Skipf("Skipping test - migrations failed: %v", err)
		return nil
	}

	portal := &stubPortal{id: "stub-portal"}
	registry := adapter.NewRegistry()
	require.NoError(t, registry.Register(portal))

	collegeID := uuid.New().String()
	_, err = db.Pool().Exec(ctx, `
		INSERT INTO colleges (id, slug, name, adapter_id, attendance_threshold, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, collegeID, "link-"+collegeID[:8], "Link Test College", portal.id, 75.0, true)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = db.Pool().Exec(ctx, `DELETE FROM linked_accounts WHERE college_id = $1`, collegeID)
		_, _ = db.Pool().Exec(ctx, `DELETE FROM colleges WHERE id = $1`, collegeID)
	})

	credentialVault, err := vault.New(linkTestEncryptionKey)
	require.NoError(t, err)

	accounts := storage.NewAccountRepository(db)
	syncs := job.NewSyncService(nil, nil, nil, &config.SyncConfig{
		SyncWorkers:         1,
		NotificationWorkers: 1,
		MaxAttempts:         3,
		RetryDelays:         []time.Duration{time.Minute},
		FailureThreshold:    5,
		ScheduleInterval:    12 * time.Hour,
	})

	server := NewServer(&ServerConfig{
		Host:         "127.0.0.1",
		Port:         "0",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  5 * time.Second,
	}, Repositories{
		Accounts: accounts,
		Colleges: storage.NewCollegeRepository(db),
	}, nil, credentialVault, registry, syncs)

	return &linkTestEnv{
		server:    server,
		db:        db,
		accounts:  accounts,
		portal:    portal,
		collegeID: collegeID,
	}
}

func (e *linkTestEnv) linkRequest(userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestLinkAccountStoresPortalSession(t *testing.T) {
	env := setupLinkTest(t)
	userID := "link-user-" + uuid.New().String()[:8]

	body := fmt.Sprintf(`{"collegeId":%q,"username":"student-1","password":"hunter2"}`, env.collegeID)
	rec := env.linkRequest(userID, body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, env.portal.loginCalls)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	account, err := env.accounts.GetByUserAndCollege(ctx, userID, env.collegeID)
	require.NoError(t, err)
	require.NotNil(t, account)

	// The validating login's session is kept so the first sync can reuse it
	require.NotNil(t, account.PortalUserID)
	assert.Equal(t, "enc-link-42", *account.PortalUserID)
	require.NotNil(t, account.PortalToken)
	assert.Equal(t, "link-token", *account.PortalToken)
	require.NotNil(t, account.TokenExpiresAt)
}

func TestLinkAccountRejectsBadCredentials(t *testing.T) {
	env := setupLinkTest(t)
	env.portal.rejectAll = true
	userID := "link-user-" + uuid.New().String()[:8]

	body := fmt.Sprintf(`{"collegeId":%q,"username":"student-1","password":"wrong"}`, env.collegeID)
	rec := env.linkRequest(userID, body)

	require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, rec).Error.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	account, err := env.accounts.GetByUserAndCollege(ctx, userID, env.collegeID)
	require.NoError(t, err)
	assert.Nil(t, account, "no account row is created for rejected credentials")
}
