package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testJWT builds an unsigned JWT carrying only an exp claim
func testJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix())))
	return header + "." + payload + ".sig"
}

// portalEnvelope writes a MyCampus response wrapper with a stringified
// JSON data payload
func portalEnvelope(t *testing.T, w http.ResponseWriter, data interface{}, succeeded bool, message string) {
	t.Helper()

	var payload string
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		payload = string(raw)
	}

	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
		"Data":       payload,
		"StatusCode": http.StatusOK,
		"Message":    message,
		"Succeeded":  succeeded,
	}))
}

func newTestMyCampus(t *testing.T, handler http.Handler) *MyCampusAdapter {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	a, err := NewMyCampusAdapter(&MyCampusConfig{
		AdapterID:         "mycampus",
		BaseURL:           server.URL,
		Origin:            "https://portal.example.edu",
		RequestsPerSecond: 1000,
		Timeout:           5 * time.Second,
	})
	require.NoError(t, err)
	return a
}

func TestMyCampusConfigValidation(t *testing.T) {
	_, err := NewMyCampusAdapter(&MyCampusConfig{BaseURL: "https://x"})
	assert.Error(t, err, "adapter id is required")

	_, err = NewMyCampusAdapter(&MyCampusConfig{AdapterID: "mycampus"})
	assert.Error(t, err, "base URL is required")
}

func TestMyCampusLogin(t *testing.T) {
	token := testJWT(t, time.Now().Add(time.Hour))

	a := newTestMyCampus(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/Authentication/ValidateUser", r.URL.Path)
		assert.Equal(t, "Bearer null", r.Header.Get("Authorization"), "login carries no session token")
		assert.Equal(t, "https://portal.example.edu", r.Header.Get("Origin"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "student-1", body["UserName"])
		assert.Equal(t, "hunter2", body["Password"])

		portalEnvelope(t, w, map[string]string{
			"Token":         token,
			"EncodedUserId": "enc-42",
			"UserName":      "student-1",
		}, true, "")
	}))

	auth, err := a.Login(context.Background(), Credentials{Username: "student-1", Password: "hunter2"})
	require.NoError(t, err)

	assert.Equal(t, token, auth.Token)
	assert.Equal(t, "enc-42", auth.PortalUserID)
	assert.True(t, auth.Fresh)
	require.NotNil(t, auth.ExpiresAt, "expiry is read from the JWT exp claim")
	assert.WithinDuration(t, time.Now().Add(time.Hour), *auth.ExpiresAt, 5*time.Second)
}

func TestMyCampusLoginRejected(t *testing.T) {
	a := newTestMyCampus(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		portalEnvelope(t, w, nil, false, "Invalid username or password")
	}))

	_, err := a.Login(context.Background(), Credentials{Username: "student-1", Password: "wrong"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	var portalErr *PortalError
	require.ErrorAs(t, err, &portalErr)
	assert.Equal(t, "Login", portalErr.Op)
}

func TestMyCampusLoginEmptyTokenIsRejected(t *testing.T) {
	a := newTestMyCampus(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		portalEnvelope(t, w, map[string]string{"Token": ""}, true, "")
	}))

	_, err := a.Login(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestMyCampusGetAttendance(t *testing.T) {
	a := newTestMyCampus(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Registration/GetAttendanceSummary", r.URL.Path)
		assert.Equal(t, "enc-42", r.URL.Query().Get("userId"))
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))

		portalEnvelope(t, w, []map[string]interface{}{
			{
				"CourseCode":    "CS101",
				"CourseName":    "Algorithms",
				"TotalLectures": 40,
				"Present":       32,
				"Absent":        6,
				"LOA":           1,
				"OnDuty":        1,
				"Percentage":    80.0,
			},
		}, true, "")
	}))

	records, err := a.GetAttendance(context.Background(), &AuthResult{Token: "session-token", PortalUserID: "enc-42"})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "CS101", records[0].CourseCode)
	assert.Equal(t, 32, records[0].TotalPresent)
	assert.Equal(t, 6, records[0].TotalAbsent)
	assert.Equal(t, 80.0, records[0].Percentage)
}

func TestMyCampusEmptyDataPayload(t *testing.T) {
	a := newTestMyCampus(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		portalEnvelope(t, w, nil, true, "")
	}))

	records, err := a.GetCourses(context.Background(), &AuthResult{Token: "session-token"})
	require.NoError(t, err, "an empty Data field is a valid empty result")
	assert.Empty(t, records)
}

func TestMyCampusEndpointFailure(t *testing.T) {
	a := newTestMyCampus(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		portalEnvelope(t, w, nil, false, "session expired")
	}))

	_, err := a.GetMarks(context.Background(), &AuthResult{Token: "stale"})
	require.Error(t, err)

	var portalErr *PortalError
	require.ErrorAs(t, err, &portalErr)
	assert.Equal(t, "GetMarks", portalErr.Op)
}

func TestMyCampusHTTPErrorStatus(t *testing.T) {
	a := newTestMyCampus(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := a.GetTimetable(context.Background(), &AuthResult{Token: "session-token"})
	assert.Error(t, err)
}

func TestMyCampusGetStudentProfile(t *testing.T) {
	a := newTestMyCampus(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Dashboard/GetStudentBasicDetails", r.URL.Path)
		portalEnvelope(t, w, map[string]interface{}{
			"RollNo":        "R42",
			"StudentName":   "Student One",
			"Semester":      3,
			"ProgrammeName": "B.Tech CSE",
			"DegreeLevel":   "UG",
		}, true, "")
	}))

	profile, err := a.GetStudentProfile(context.Background(), &AuthResult{Token: "session-token"})
	require.NoError(t, err)
	assert.Equal(t, "R42", profile.RollNo)
	assert.Equal(t, 3, profile.Semester)
}

func TestMyCampusIsTokenValid(t *testing.T) {
	a := newTestMyCampus(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("token validity is judged locally, no portal call expected")
	}))
	ctx := context.Background()

	valid, err := a.IsTokenValid(ctx, &AuthResult{Token: testJWT(t, time.Now().Add(time.Hour))})
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = a.IsTokenValid(ctx, &AuthResult{Token: testJWT(t, time.Now().Add(-time.Hour))})
	require.NoError(t, err)
	assert.False(t, valid)

	// Inside the expiry buffer counts as invalid
	valid, err = a.IsTokenValid(ctx, &AuthResult{Token: testJWT(t, time.Now().Add(2*time.Minute))})
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = a.IsTokenValid(ctx, &AuthResult{Token: "opaque-token"})
	require.NoError(t, err)
	assert.False(t, valid, "opaque tokens force a fresh login")

	valid, err = a.IsTokenValid(ctx, nil)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestMyCampusRefreshTokenNotSupported(t *testing.T) {
	a := newTestMyCampus(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := a.RefreshToken(context.Background(), &AuthResult{Token: "x"})
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.False(t, a.Capabilities().TokenRefresh)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	a := newTestMyCampus(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	require.NoError(t, registry.Register(a))
	assert.Error(t, registry.Register(a), "duplicate registration fails loudly")

	got, ok := registry.Get("mycampus")
	assert.True(t, ok)
	assert.Same(t, a, got)

	_, err := registry.GetOrError("unknown")
	assert.Error(t, err)

	assert.Equal(t, []string{"mycampus"}, registry.IDs())
}
