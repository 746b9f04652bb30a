package api

import (
	stderrors "errors"
	"net/http"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/errors"
)

// defaultAttendanceThreshold applies when the account's college row is gone
const defaultAttendanceThreshold = 75.0

// handleAttendanceProjection projects the latest attendance snapshot
// against the college threshold
func (s *Server) handleAttendanceProjection(w http.ResponseWriter, r *http.Request) {
	account, ok := s.ownedAccount(w, r)
	if !ok {
		return
	}

	ctx := r.Context()

	threshold := defaultAttendanceThreshold
	college, err := s.colleges.GetByID(ctx, account.CollegeID)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load college", err))
		return
	}
	if college != nil {
		threshold = college.AttendanceThreshold
	}

	records, err := s.attendance.FindLatest(ctx, account.ID)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load attendance", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"threshold":   threshold,
		"projections": projectAttendance(records, threshold),
	})
}

// CompareTimetableRequest carries a friend's portal credentials. They are
// used for one ephemeral portal fetch and never stored.
type CompareTimetableRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleCompareTimetable overlays the caller's stored timetable with a
// friend's, fetched live from the portal, and reports the free slots both
// share.
func (s *Server) handleCompareTimetable(w http.ResponseWriter, r *http.Request) {
	account, ok := s.ownedAccount(w, r)
	if !ok {
		return
	}

	var req CompareTimetableRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondServiceError(w, errors.NewValidationError("username/password", "must not be empty"))
		return
	}

	ctx := r.Context()

	college, err := s.colleges.GetByID(ctx, account.CollegeID)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load college", err))
		return
	}
	if college == nil {
		respondServiceError(w, errors.NewNotFoundError("college", account.CollegeID))
		return
	}

	portalAdapter, err := s.adapters.GetOrError(college.AdapterID)
	if err != nil {
		respondServiceError(w, errors.NewInternalError("no adapter for college", err))
		return
	}

	friendAuth, err := portalAdapter.Login(ctx, adapter.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if stderrors.Is(err, adapter.ErrInvalidCredentials) {
			respondServiceError(w, errors.NewInvalidCredentialsError(err))
			return
		}
		respondServiceError(w, errors.NewExternalAPIError("validate friend credentials", err))
		return
	}

	friendEntries, err := portalAdapter.GetTimetable(ctx, friendAuth)
	if err != nil {
		respondServiceError(w, errors.NewExternalAPIError("fetch friend timetable", err))
		return
	}

	userEntries, err := s.timetable.FindByAccount(ctx, account.ID)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load timetable", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"commonBreaks":    commonBreaks(userEntries, friendEntries),
		"friendTimetable": friendEntries,
	})
}
