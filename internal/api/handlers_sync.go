package api

import (
	"net/http"
	"strconv"

	"github.com/campus-sync/internal/errors"
)

// handleTriggerSync queues a sync for the account. Accepted with 202; the
// job identity collapses duplicate requests onto the pending job.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	account, ok := s.ownedAccount(w, r)
	if !ok {
		return
	}

	j, created := s.syncs.EnqueueSync(account.ID)

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobId":    j.ID,
		"state":    j.State,
		"enqueued": created,
	})
}

// handleSyncStatus reports the account's sync state and, when present, the
// queue's view of its job.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	account, ok := s.ownedAccount(w, r)
	if !ok {
		return
	}

	response := map[string]interface{}{
		"accountId":  account.ID,
		"syncStatus": account.SyncStatus,
		"syncError":  account.SyncError,
		"lastSyncAt": account.LastSyncAt,
	}

	if j, exists := s.syncs.SyncJob(account.ID); exists {
		response["job"] = j
	}

	respondJSON(w, http.StatusOK, response)
}

// handleSyncLogs returns recent sync attempts for the account
func (s *Server) handleSyncLogs(w http.ResponseWriter, r *http.Request) {
	account, ok := s.ownedAccount(w, r)
	if !ok {
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

	logs, err := s.syncLogs.ListByAccount(r.Context(), account.ID, limit)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("list sync logs", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs": logs,
	})
}
