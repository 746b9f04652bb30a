// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/job"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/storage"
	"github.com/campus-sync/internal/vault"
	"github.com/gorilla/mux"
)

// SyncEnqueuer is the queue surface the HTTP layer needs
type SyncEnqueuer interface {
	EnqueueSync(accountID string) (*job.Job, bool)
	SyncJob(accountID string) (*job.Job, bool)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server

	accounts      *storage.AccountRepository
	colleges      *storage.CollegeRepository
	syncLogs      *storage.SyncLogRepository
	attendance    *storage.AttendanceRepository
	timetable     *storage.TimetableRepository
	marks         *storage.MarkRepository
	courses       *storage.CourseRepository
	profiles      *storage.ProfileRepository
	notifications *storage.NotificationRepository

	cache    *storage.CacheService
	vault    *vault.Vault
	adapters *adapter.Registry
	syncs    SyncEnqueuer

	config *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Repositories bundles the storage dependencies of the server
type Repositories struct {
	Accounts      *storage.AccountRepository
	Colleges      *storage.CollegeRepository
	SyncLogs      *storage.SyncLogRepository
	Attendance    *storage.AttendanceRepository
	Timetable     *storage.TimetableRepository
	Marks         *storage.MarkRepository
	Courses       *storage.CourseRepository
	Profiles      *storage.ProfileRepository
	Notifications *storage.NotificationRepository
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	repos Repositories,
	cache *storage.CacheService,
	v *vault.Vault,
	adapters *adapter.Registry,
	syncs SyncEnqueuer,
) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		accounts:      repos.Accounts,
		colleges:      repos.Colleges,
		syncLogs:      repos.SyncLogs,
		attendance:    repos.Attendance,
		timetable:     repos.Timetable,
		marks:         repos.Marks,
		courses:       repos.Courses,
		profiles:      repos.Profiles,
		notifications: repos.Notifications,
		cache:         cache,
		vault:         v,
		adapters:      adapters,
		syncs:         syncs,
		config:        config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// College registry
	api.HandleFunc("/colleges", s.handleListColleges).Methods("GET")

	// Account linking
	api.HandleFunc("/accounts", s.handleLinkAccount).Methods("POST")
	api.HandleFunc("/accounts", s.handleListAccounts).Methods("GET")
	api.HandleFunc("/accounts/{id}", s.handleUnlinkAccount).Methods("DELETE")

	// Sync
	api.HandleFunc("/accounts/{id}/sync", s.handleTriggerSync).Methods("POST")
	api.HandleFunc("/accounts/{id}/sync", s.handleSyncStatus).Methods("GET")
	api.HandleFunc("/accounts/{id}/sync/logs", s.handleSyncLogs).Methods("GET")

	// Academic records
	api.HandleFunc("/accounts/{id}/attendance", s.handleGetAttendance).Methods("GET")
	api.HandleFunc("/accounts/{id}/attendance/history", s.handleGetAttendanceHistory).Methods("GET")
	api.HandleFunc("/accounts/{id}/attendance/projection", s.handleAttendanceProjection).Methods("GET")
	api.HandleFunc("/accounts/{id}/timetable", s.handleGetTimetable).Methods("GET")
	api.HandleFunc("/accounts/{id}/timetable/compare", s.handleCompareTimetable).Methods("POST")
	api.HandleFunc("/accounts/{id}/marks", s.handleGetMarks).Methods("GET")
	api.HandleFunc("/accounts/{id}/courses", s.handleGetCourses).Methods("GET")
	api.HandleFunc("/profile", s.handleGetProfile).Methods("GET")

	// Notifications
	api.HandleFunc("/notifications", s.handleListNotifications).Methods("GET")
	api.HandleFunc("/notifications/unread-count", s.handleUnreadCount).Methods("GET")
	api.HandleFunc("/notifications/{id}/read", s.handleMarkRead).Methods("POST")
	api.HandleFunc("/notifications/read-all", s.handleMarkAllRead).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "campus-sync",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// userID extracts the authenticated user from the request. Authn proper is
// handled upstream by the gateway; this trusts the forwarded header.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
