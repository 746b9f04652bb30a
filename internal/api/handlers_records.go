package api

import (
	"net/http"
	"strconv"

	"github.com/campus-sync/internal/errors"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/models"
	"github.com/campus-sync/internal/storage"
)

// handleGetAttendance returns the latest attendance snapshot, cache-first
func (s *Server) handleGetAttendance(w http.ResponseWriter, r *http.Request) {
	account, ok := s.ownedAccount(w, r)
	if !ok {
		return
	}

	ctx := r.Context()

	var cached []*models.Attendance
	if hit, err := s.cache.Get(ctx, storage.CacheAttendance, account.ID, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, map[string]interface{}{"attendance": cached, "cached": true})
		return
	}

	records, err := s.attendance.FindLatest(ctx, account.ID)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load attendance", err))
		return
	}

	if err := s.cache.Set(ctx, storage.CacheAttendance, account.ID, records); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to cache attendance")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"attendance": records, "cached": false})
}

// handleGetAttendanceHistory returns attendance rows across snapshots.
// History reads are not cached; they accept ad hoc filters.
func (s *Server) handleGetAttendanceHistory(w http.ResponseWriter, r *http.Request) {
	account, ok := s.ownedAccount(w, r)
	if !ok {
		return
	}

	courseCode := r.URL.Query().Get("courseCode")
	if courseCode == "" {
		respondServiceError(w, errors.NewValidationError("courseCode", "is required"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondServiceError(w, errors.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	records, err := s.attendance.FindHistory(r.Context(), account.ID, courseCode, limit)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load attendance history", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"history": records})
}

// handleGetTimetable returns the current timetable snapshot, cache-first
func (s *Server) handleGetTimetable(w http.ResponseWriter, r *http.Request) {
	account, ok := s.ownedAccount(w, r)
	if !ok {
		return
	}

	ctx := r.Context()

	var cached []*models.TimetableEntry
	if hit, err := s.cache.Get(ctx, storage.CacheTimetable, account.ID, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, map[string]interface{}{"timetable": cached, "cached": true})
		return
	}

	entries, err := s.timetable.FindByAccount(ctx, account.ID)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load timetable", err))
		return
	}

	if err := s.cache.Set(ctx, storage.CacheTimetable, account.ID, entries); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to cache timetable")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"timetable": entries, "cached": false})
}

// handleGetMarks returns the current marks snapshot, cache-first
func (s *Server) handleGetMarks(w http.ResponseWriter, r *http.Request) {
	account, ok := s.ownedAccount(w, r)
	if !ok {
		return
	}

	ctx := r.Context()

	var cached []*models.Mark
	if hit, err := s.cache.Get(ctx, storage.CacheMarks, account.ID, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, map[string]interface{}{"marks": cached, "cached": true})
		return
	}

	marks, err := s.marks.FindByAccount(ctx, account.ID)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load marks", err))
		return
	}

	if err := s.cache.Set(ctx, storage.CacheMarks, account.ID, marks); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to cache marks")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"marks": marks, "cached": false})
}

// handleGetCourses returns the current registered courses, cache-first
func (s *Server) handleGetCourses(w http.ResponseWriter, r *http.Request) {
	account, ok := s.ownedAccount(w, r)
	if !ok {
		return
	}

	ctx := r.Context()

	var cached []*models.Course
	if hit, err := s.cache.Get(ctx, storage.CacheCourses, account.ID, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, map[string]interface{}{"courses": cached, "cached": true})
		return
	}

	courses, err := s.courses.FindByAccount(ctx, account.ID)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load courses", err))
		return
	}

	if err := s.cache.Set(ctx, storage.CacheCourses, account.ID, courses); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to cache courses")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"courses": courses, "cached": false})
}

// handleGetProfile returns the caller's student profile, cache-first
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-User-ID header", nil)
		return
	}

	ctx := r.Context()

	var cached models.StudentProfile
	if hit, err := s.cache.Get(ctx, storage.CacheProfile, uid, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, map[string]interface{}{"profile": &cached, "cached": true})
		return
	}

	profile, err := s.profiles.GetByUser(ctx, uid)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load student profile", err))
		return
	}
	if profile == nil {
		respondServiceError(w, errors.NewNotFoundError("student profile", uid))
		return
	}

	if err := s.cache.Set(ctx, storage.CacheProfile, uid, profile); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to cache student profile")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"profile": profile, "cached": false})
}
