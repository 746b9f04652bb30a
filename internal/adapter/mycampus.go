package adapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/campus-sync/internal/circuitbreaker"
	"golang.org/x/time/rate"
)

// tokenExpiryBuffer is subtracted from a token's exp claim so a token about
// to expire mid-sync counts as invalid.
const tokenExpiryBuffer = 5 * time.Minute

// MyCampusConfig configures a MyCampus-style portal adapter
type MyCampusConfig struct {
	AdapterID string
	BaseURL   string
	Origin    string
	// RequestsPerSecond throttles calls to the portal (default 3)
	RequestsPerSecond float64
	// Timeout bounds each HTTP request (default 30s)
	Timeout time.Duration
}

// MyCampusAdapter talks to a MyCampus-style college portal.
//
// API patterns:
//   - Login is a POST; data endpoints are GETs keyed by a userId query param
//   - Auth token goes in "Authorization: Bearer <token>"
//   - Responses wrap data in {Data, StatusCode, Message, Succeeded}
//   - The Data field is a stringified JSON payload, not a direct object
type MyCampusAdapter struct {
	adapterID string
	baseURL   string
	origin    string
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *circuitbreaker.CircuitBreaker
}

// NewMyCampusAdapter creates a MyCampus portal adapter
func NewMyCampusAdapter(cfg *MyCampusConfig) (*MyCampusAdapter, error) {
	if cfg.AdapterID == "" {
		return nil, fmt.Errorf("adapter id cannot be empty")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &MyCampusAdapter{
		adapterID: cfg.AdapterID,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		origin:    cfg.Origin,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		breaker:   circuitbreaker.New(circuitbreaker.DefaultConfig(cfg.AdapterID)),
	}, nil
}

// AdapterID returns the stable adapter identifier
func (a *MyCampusAdapter) AdapterID() string {
	return a.adapterID
}

// Capabilities returns the adapter's feature flags.
// MyCampus issues JWTs, so cached tokens can be checked locally; the portal
// has no refresh endpoint.
func (a *MyCampusAdapter) Capabilities() Capabilities {
	return Capabilities{
		TokenCheck:     true,
		TokenRefresh:   false,
		StudentProfile: true,
	}
}

// envelope is the wire wrapper every MyCampus response uses
type envelope struct {
	Data       string `json:"Data"`
	StatusCode int    `json:"StatusCode"`
	Message    string `json:"Message"`
	Succeeded  bool   `json:"Succeeded"`
}

type loginResponse struct {
	Token         string `json:"Token"`
	EncodedUserID string `json:"EncodedUserId"`
	UserName      string `json:"UserName"`
}

// Login authenticates against the portal
func (a *MyCampusAdapter) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	body, err := json.Marshal(map[string]string{
		"UserName": creds.Username,
		"Password": creds.Password,
	})
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := a.do(ctx, http.MethodPost, "/Authentication/ValidateUser", "", bytes.NewReader(body), &env); err != nil {
		return nil, &PortalError{Adapter: a.adapterID, Op: "Login", Err: err}
	}

	if !env.Succeeded {
		msg := env.Message
		if msg == "" {
			msg = "invalid credentials or unexpected response"
		}
		return nil, &PortalError{Adapter: a.adapterID, Op: "Login", Status: env.StatusCode,
			Err: fmt.Errorf("%w: %s", ErrInvalidCredentials, msg)}
	}

	var login loginResponse
	if err := json.Unmarshal([]byte(env.Data), &login); err != nil {
		return nil, &PortalError{Adapter: a.adapterID, Op: "Login", Err: fmt.Errorf("malformed login payload: %w", err)}
	}
	if login.Token == "" {
		return nil, &PortalError{Adapter: a.adapterID, Op: "Login", Err: ErrInvalidCredentials}
	}

	result := &AuthResult{
		Token:        login.Token,
		PortalUserID: login.EncodedUserID,
		Fresh:        true,
	}
	if exp, ok := jwtExpiry(login.Token); ok {
		result.ExpiresAt = &exp
	}
	return result, nil
}

type attendanceRow struct {
	CourseCode    string  `json:"CourseCode"`
	CourseName    string  `json:"CourseName"`
	TotalLectures int     `json:"TotalLectures"`
	Present       int     `json:"Present"`
	Absent        int     `json:"Absent"`
	LOA           int     `json:"LOA"`
	OnDuty        int     `json:"OnDuty"`
	Percentage    float64 `json:"Percentage"`
}

// GetAttendance fetches the per-course attendance summary
func (a *MyCampusAdapter) GetAttendance(ctx context.Context, auth *AuthResult) ([]AttendanceRecord, error) {
	var rows []attendanceRow
	if err := a.getData(ctx, "/Registration/GetAttendanceSummary", auth, &rows); err != nil {
		return nil, &PortalError{Adapter: a.adapterID, Op: "GetAttendance", Err: err}
	}

	records := make([]AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, AttendanceRecord{
			CourseCode:    r.CourseCode,
			CourseName:    r.CourseName,
			TotalLectures: r.TotalLectures,
			TotalPresent:  r.Present,
			TotalAbsent:   r.Absent,
			TotalLOA:      r.LOA,
			TotalOnDuty:   r.OnDuty,
			Percentage:    r.Percentage,
		})
	}
	return records, nil
}

type scheduleRow struct {
	Date        string `json:"Date"`
	DayOfWeek   int    `json:"DayOfWeek"`
	StartTime   string `json:"StartTime"`
	EndTime     string `json:"EndTime"`
	CourseCode  string `json:"CourseCode"`
	CourseName  string `json:"CourseName"`
	FacultyName string `json:"FacultyName"`
	Room        string `json:"Room"`
	Section     string `json:"Section"`
}

// GetTimetable fetches the student's schedule
func (a *MyCampusAdapter) GetTimetable(ctx context.Context, auth *AuthResult) ([]TimetableRecord, error) {
	var rows []scheduleRow
	if err := a.getData(ctx, "/Student/GetSchedule", auth, &rows); err != nil {
		return nil, &PortalError{Adapter: a.adapterID, Op: "GetTimetable", Err: err}
	}

	records := make([]TimetableRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, TimetableRecord{
			Date:        r.Date,
			DayOfWeek:   r.DayOfWeek,
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			CourseCode:  r.CourseCode,
			CourseName:  r.CourseName,
			FacultyName: r.FacultyName,
			Room:        r.Room,
			Section:     r.Section,
		})
	}
	return records, nil
}

type markRow struct {
	CourseCode    string   `json:"CourseCode"`
	CourseName    string   `json:"CourseName"`
	ExamType      string   `json:"ExamType"`
	MaxMarks      *float64 `json:"MaxMarks"`
	ObtainedMarks *float64 `json:"ObtainedMarks"`
	Grade         string   `json:"Grade"`
	SGPA          *float64 `json:"SGPA"`
	CGPA          *float64 `json:"CGPA"`
	Semester      int      `json:"Semester"`
}

// GetMarks fetches exam results
func (a *MyCampusAdapter) GetMarks(ctx context.Context, auth *AuthResult) ([]MarkRecord, error) {
	var rows []markRow
	if err := a.getData(ctx, "/Examination/GetResultSummary", auth, &rows); err != nil {
		return nil, &PortalError{Adapter: a.adapterID, Op: "GetMarks", Err: err}
	}

	records := make([]MarkRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, MarkRecord{
			CourseCode:    r.CourseCode,
			CourseName:    r.CourseName,
			ExamType:      r.ExamType,
			MaxMarks:      r.MaxMarks,
			ObtainedMarks: r.ObtainedMarks,
			Grade:         r.Grade,
			SGPA:          r.SGPA,
			CGPA:          r.CGPA,
			Semester:      r.Semester,
		})
	}
	return records, nil
}

type courseRow struct {
	CourseCode string   `json:"CourseCode"`
	CourseName string   `json:"CourseName"`
	Credits    *float64 `json:"Credits"`
	Semester   int      `json:"Semester"`
}

// GetCourses fetches registered courses
func (a *MyCampusAdapter) GetCourses(ctx context.Context, auth *AuthResult) ([]CourseRecord, error) {
	var rows []courseRow
	if err := a.getData(ctx, "/Registration/GetCurrentCourses", auth, &rows); err != nil {
		return nil, &PortalError{Adapter: a.adapterID, Op: "GetCourses", Err: err}
	}

	records := make([]CourseRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, CourseRecord{
			CourseCode: r.CourseCode,
			CourseName: r.CourseName,
			Credits:    r.Credits,
			Semester:   r.Semester,
		})
	}
	return records, nil
}

type profileRow struct {
	RollNo        string `json:"RollNo"`
	StudentName   string `json:"StudentName"`
	Semester      int    `json:"Semester"`
	ProgrammeName string `json:"ProgrammeName"`
	DegreeLevel   string `json:"DegreeLevel"`
	FatherName    string `json:"FatherName"`
	MobileNo      string `json:"MobileNo"`
	Section       string `json:"Section"`
	StudentImage  string `json:"StudentImage"`
}

// GetStudentProfile fetches profile details
func (a *MyCampusAdapter) GetStudentProfile(ctx context.Context, auth *AuthResult) (*ProfileRecord, error) {
	var row profileRow
	if err := a.getData(ctx, "/Dashboard/GetStudentBasicDetails", auth, &row); err != nil {
		return nil, &PortalError{Adapter: a.adapterID, Op: "GetStudentProfile", Err: err}
	}

	return &ProfileRecord{
		RollNo:        row.RollNo,
		StudentName:   row.StudentName,
		Semester:      row.Semester,
		ProgrammeName: row.ProgrammeName,
		DegreeLevel:   row.DegreeLevel,
		FatherName:    row.FatherName,
		MobileNo:      row.MobileNo,
		Section:       row.Section,
		StudentImage:  row.StudentImage,
	}, nil
}

// IsTokenValid checks the token's embedded exp claim locally, with a safety
// buffer so a token about to expire is treated as invalid. No network call.
func (a *MyCampusAdapter) IsTokenValid(_ context.Context, auth *AuthResult) (bool, error) {
	if auth == nil || auth.Token == "" {
		return false, nil
	}
	exp, ok := jwtExpiry(auth.Token)
	if !ok {
		// Opaque token: cannot judge locally, force a fresh login
		return false, nil
	}
	return time.Now().Before(exp.Add(-tokenExpiryBuffer)), nil
}

// RefreshToken is not supported by MyCampus portals
func (a *MyCampusAdapter) RefreshToken(_ context.Context, _ *AuthResult) (*AuthResult, error) {
	return nil, ErrNotSupported
}

// getData performs a GET against a data endpoint and decodes the stringified
// Data payload into dest.
func (a *MyCampusAdapter) getData(ctx context.Context, path string, auth *AuthResult, dest interface{}) error {
	endpoint := path
	if auth.PortalUserID != "" {
		endpoint += "?userId=" + url.QueryEscape(auth.PortalUserID)
	}

	var env envelope
	if err := a.do(ctx, http.MethodGet, endpoint, auth.Token, nil, &env); err != nil {
		return err
	}

	if !env.Succeeded {
		return fmt.Errorf("portal reported failure: %s", env.Message)
	}
	if env.Data == "" {
		return nil
	}

	if err := json.Unmarshal([]byte(env.Data), dest); err != nil {
		return fmt.Errorf("malformed data payload: %w", err)
	}
	return nil
}

// do executes one rate-limited HTTP request under the portal's circuit
// breaker and decodes the envelope.
func (a *MyCampusAdapter) do(ctx context.Context, method, path, token string, body io.Reader, env *envelope) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	return a.breaker.Execute(ctx, func() error {
		return a.doRequest(ctx, method, path, token, body, env)
	})
}

func (a *MyCampusAdapter) doRequest(ctx context.Context, method, path, token string, body io.Reader, env *envelope) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("Authorization", "Bearer null")
	}
	if a.origin != "" {
		req.Header.Set("Origin", a.origin)
		req.Header.Set("Referer", a.origin+"/")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPortalUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(env); err != nil {
		return fmt.Errorf("malformed response envelope: %w", err)
	}
	return nil
}

// jwtExpiry extracts the exp claim from a JWT without verifying the
// signature. Verification belongs to the portal; we only need the expiry.
func jwtExpiry(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, false
	}

	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}, false
	}

	return time.Unix(claims.Exp, 0), true
}
