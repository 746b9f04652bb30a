package api

import (
	stderrors "errors"
	"net/http"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/errors"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/models"
	"github.com/campus-sync/internal/vault"
	"github.com/gorilla/mux"
)

// handleListColleges returns the active college registry
func (s *Server) handleListColleges(w http.ResponseWriter, r *http.Request) {
	colleges, err := s.colleges.ListActive(r.Context())
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("list colleges", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"colleges": colleges,
	})
}

// LinkAccountRequest is the payload for linking a portal account
type LinkAccountRequest struct {
	CollegeID string `json:"collegeId"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// handleLinkAccount encrypts the submitted credentials and creates the
// linked account, then queues its first sync.
func (s *Server) handleLinkAccount(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-User-ID header", nil)
		return
	}

	var req LinkAccountRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}
	if req.CollegeID == "" || req.Username == "" || req.Password == "" {
		respondServiceError(w, errors.NewValidationError("collegeId/username/password", "must not be empty"))
		return
	}

	ctx := r.Context()

	college, err := s.colleges.GetByID(ctx, req.CollegeID)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load college", err))
		return
	}
	if college == nil || !college.IsActive {
		respondServiceError(w, errors.NewNotFoundError("college", req.CollegeID))
		return
	}

	existing, err := s.accounts.GetByUserAndCollege(ctx, uid, req.CollegeID)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load linked account", err))
		return
	}
	if existing != nil && existing.IsActive {
		respondError(w, http.StatusConflict, "ALREADY_LINKED", "An account for this college is already linked", nil)
		return
	}

	// Validate the credentials against the portal before storing anything.
	// The login result doubles as the account's first session.
	portalAdapter, err := s.adapters.GetOrError(college.AdapterID)
	if err != nil {
		respondServiceError(w, errors.NewInternalError("no adapter for college", err))
		return
	}

	auth, err := portalAdapter.Login(r.Context(), adapter.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if stderrors.Is(err, adapter.ErrInvalidCredentials) {
			respondServiceError(w, errors.NewInvalidCredentialsError(err))
			return
		}
		respondServiceError(w, errors.NewExternalAPIError("validate portal credentials", err))
		return
	}

	encUsername, err := s.vault.Encrypt(req.Username)
	if err != nil {
		respondServiceError(w, errors.NewInternalError("failed to encrypt credentials", err))
		return
	}
	encPassword, err := s.vault.Encrypt(req.Password)
	if err != nil {
		respondServiceError(w, errors.NewInternalError("failed to encrypt credentials", err))
		return
	}

	account := &models.LinkedAccount{
		UserID:            uid,
		CollegeID:         req.CollegeID,
		EncryptedUsername: encUsername.Ciphertext,
		EncryptedPassword: encPassword.Ciphertext,
		EncryptionIV:      vault.JoinPair(encUsername.IV, encPassword.IV),
		EncryptionAuthTag: vault.JoinPair(encUsername.AuthTag, encPassword.AuthTag),
		PortalToken:       &auth.Token,
		TokenExpiresAt:    auth.ExpiresAt,
		SyncStatus:        models.SyncStatusPending,
	}
	if auth.PortalUserID != "" {
		account.PortalUserID = &auth.PortalUserID
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		respondServiceError(w, errors.NewDatabaseError("create linked account", err))
		return
	}

	if _, created := s.syncs.EnqueueSync(account.ID); created {
		logging.FromContext(ctx).WithField("accountId", account.ID).Info("Initial sync enqueued")
	}

	respondJSON(w, http.StatusCreated, account)
}

// handleListAccounts returns the caller's active linked accounts
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-User-ID header", nil)
		return
	}

	accounts, err := s.accounts.ListByUser(r.Context(), uid)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("list linked accounts", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
	})
}

// handleUnlinkAccount deactivates a linked account and drops its cached
// reads. Historical rows are kept.
func (s *Server) handleUnlinkAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := s.ownedAccount(w, r)
	if !ok {
		return
	}

	ctx := r.Context()

	if err := s.accounts.Deactivate(ctx, account.ID); err != nil {
		respondServiceError(w, errors.NewDatabaseError("deactivate linked account", err))
		return
	}

	if err := s.cache.InvalidateAccount(ctx, account.ID); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate account caches")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"unlinked": true,
	})
}

// ownedAccount loads the {id} account and verifies the caller owns it.
// Writes the error response itself when the check fails.
func (s *Server) ownedAccount(w http.ResponseWriter, r *http.Request) (*models.LinkedAccount, bool) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-User-ID header", nil)
		return nil, false
	}

	accountID := mux.Vars(r)["id"]

	account, err := s.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("load linked account", err))
		return nil, false
	}
	if account == nil || account.UserID != uid {
		respondServiceError(w, errors.NewAccountNotFoundError(accountID))
		return nil, false
	}

	return account, true
}
