package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"parkly/internal/billing"
	"parkly/internal/config"
	"parkly/internal/database"
	"parkly/internal/domain"
	"parkly/internal/metrics"
	"parkly/internal/models"
	"parkly/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPServer exposes the JSON API over the parking services. Every endpoint
// except register/login requires a session token; role checks happen here, at
// the boundary, and caller identity is passed into services explicitly.
type HTTPServer struct {
	cfg      config.APIConfig
	parking  *service.ParkingService
	lots     *service.LotService
	users    *service.UserService
	sessions domain.SessionRepository
	reports  ReportBuilder
	logger   *zerolog.Logger
	server   *http.Server
	limiters sync.Map // map[string]*rate.Limiter, keyed by client host
}

// ReportBuilder renders the full history report for the admin download.
type ReportBuilder interface {
	WriteHistory(records []*models.BookingHistory) (string, error)
}

func NewHTTPServer(
	cfg config.APIConfig,
	parking *service.ParkingService,
	lots *service.LotService,
	users *service.UserService,
	sessions domain.SessionRepository,
	reports ReportBuilder,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		parking:  parking,
		lots:     lots,
		users:    users,
		sessions: sessions,
		reports:  reports,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/register", srv.handleRegister)
	mux.HandleFunc("/api/v1/auth/login", srv.handleLogin)
	mux.HandleFunc("/api/v1/auth/logout", srv.handleLogout)
	mux.HandleFunc("/api/v1/lots", srv.handleLots)
	mux.HandleFunc("/api/v1/lots/", srv.handleLotByID)
	mux.HandleFunc("/api/v1/spots", srv.handleSpots)
	mux.HandleFunc("/api/v1/spots/", srv.handleSpotByID)
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/history", srv.handleHistory)
	mux.HandleFunc("/api/v1/users", srv.handleUsers)
	mux.HandleFunc("/api/v1/users/", srv.handleUserByID)
	mux.HandleFunc("/api/v1/profile", srv.handleProfile)
	mux.HandleFunc("/api/v1/dashboard", srv.handleDashboard)
	mux.HandleFunc("/api/v1/reports/history", srv.handleHistoryReport)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(mux)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

const sessionHeader = "X-Session-Token"

// authenticate resolves the caller's session and applies per-session rate
// limiting. It writes the error response itself; callers bail out on !ok.
func (s *HTTPServer) authenticate(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	token := strings.TrimSpace(r.Header.Get(sessionHeader))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing session token")
		return nil, false
	}

	session, err := s.sessions.GetSession(r.Context(), token)
	if err != nil {
		s.logger.Error().Err(err).Msg("session lookup failed")
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return nil, false
	}
	if session == nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired session")
		return nil, false
	}

	if !s.allowSessionRate(r.Context(), token) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return nil, false
	}

	return session, true
}

func (s *HTTPServer) requireRole(w http.ResponseWriter, r *http.Request, role string) (*models.Session, bool) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return nil, false
	}
	if session.Role != role {
		writeError(w, http.StatusForbidden, "insufficient role")
		return nil, false
	}
	return session, true
}

// allowSessionRate counts the request against the session's window in the
// session store, so the limit holds across API instances sharing Redis. A
// store failure lets the request through.
func (s *HTTPServer) allowSessionRate(ctx context.Context, token string) bool {
	if s.cfg.RateLimit.Requests <= 0 {
		return true
	}

	window := time.Duration(s.cfg.RateLimit.Window) * time.Second
	if window <= 0 {
		window = models.RateLimitWindow * time.Second
	}

	allowed, err := s.sessions.CheckRateLimit(ctx, token, s.cfg.RateLimit.Requests, window)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
		return true
	}
	return allowed
}

// allowAuthRate throttles register/login attempts per client host. These
// endpoints have no session yet, so the in-process limiter covers them.
func (s *HTTPServer) allowAuthRate(remoteAddr string) bool {
	if s.cfg.RateLimit.RPS <= 0 {
		return true
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	if v, ok := s.limiters.Load(host); ok {
		return v.(*rate.Limiter).Allow()
	}

	burst := s.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}
	lim := rate.NewLimiter(rate.Limit(s.cfg.RateLimit.RPS), burst)
	actual, _ := s.limiters.LoadOrStore(host, lim)
	return actual.(*rate.Limiter).Allow()
}

// writeServiceError maps service and store errors onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrLotNotFound),
		errors.Is(err, database.ErrSpotNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrSpotAlreadyBooked),
		errors.Is(err, database.ErrNoAvailableSpot),
		errors.Is(err, database.ErrLotOccupied),
		errors.Is(err, database.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrNotSpotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidMaxSpots):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, billing.ErrInvalidTimestamp):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(endpointLabel(r.URL.Path))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// endpointLabel collapses ids out of paths to keep metric cardinality low.
func endpointLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// pathID extracts the numeric id segment after prefix, with an optional
// trailing action: /api/v1/spots/12/release -> (12, "release").
func pathID(path, prefix string) (int64, string, error) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return 0, "", fmt.Errorf("missing id")
	}

	idPart, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid id %q", idPart)
	}
	return id, action, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
