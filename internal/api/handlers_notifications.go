package api

import (
	"net/http"
	"strconv"

	"github.com/campus-sync/internal/errors"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/storage"
	"github.com/gorilla/mux"
)

// handleListNotifications returns the caller's notifications, newest first
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-User-ID header", nil)
		return
	}

	limit, offset := 0, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondServiceError(w, errors.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondServiceError(w, errors.NewValidationError("offset", "must be a non-negative integer"))
			return
		}
		offset = parsed
	}

	notifications, err := s.notifications.ListByUser(r.Context(), uid, limit, offset)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("list notifications", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
	})
}

// handleUnreadCount returns the unread notification count, cache-first
func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-User-ID header", nil)
		return
	}

	ctx := r.Context()

	var cached int64
	if hit, err := s.cache.Get(ctx, storage.CacheNotificationCount, uid, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, map[string]interface{}{"unread": cached, "cached": true})
		return
	}

	count, err := s.notifications.CountUnread(ctx, uid)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("count unread notifications", err))
		return
	}

	if err := s.cache.Set(ctx, storage.CacheNotificationCount, uid, count); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to cache unread count")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"unread": count, "cached": false})
}

// handleMarkRead marks one notification as read
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-User-ID header", nil)
		return
	}

	notificationID := mux.Vars(r)["id"]
	ctx := r.Context()

	if err := s.notifications.MarkRead(ctx, uid, notificationID); err != nil {
		respondServiceError(w, errors.NewNotFoundError("notification", notificationID))
		return
	}

	if err := s.cache.InvalidateNotificationCount(ctx, uid); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate unread count cache")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"read": true})
}

// handleMarkAllRead marks every notification of the caller as read
func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-User-ID header", nil)
		return
	}

	ctx := r.Context()

	if err := s.notifications.MarkAllRead(ctx, uid); err != nil {
		respondServiceError(w, errors.NewDatabaseError("mark notifications read", err))
		return
	}

	if err := s.cache.InvalidateNotificationCount(ctx, uid); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate unread count cache")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"read": true})
}
