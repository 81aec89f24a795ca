package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"parkly/internal/models"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
	Pincode  int    `json:"pincode"`
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.allowAuthRate(r.RemoteAddr) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	user, err := s.users.Register(r.Context(), req.Name, req.Email, req.Password, req.Address, req.Pincode)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.allowAuthRate(r.RemoteAddr) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token": session.Token,
		"email": session.Email,
		"role":  session.Role,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	if err := s.users.Logout(r.Context(), session.Token); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleLots serves the lot collection: list for any authenticated caller,
// create for admins.
func (s *HTTPServer) handleLots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.authenticate(w, r); !ok {
			return
		}
		lots, err := s.lots.ListLots(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lots)

	case http.MethodPost:
		session, ok := s.requireRole(w, r, models.RoleAdmin)
		if !ok {
			return
		}

		var lot models.ParkingLot
		if err := decodeJSON(r, &lot); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if lot.Name == "" {
			writeError(w, http.StatusBadRequest, "lot name is required")
			return
		}

		if err := s.lots.CreateLot(r.Context(), &lot, session.Email); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, lot)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type updateLotRequest struct {
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Price    float64 `json:"price"`
}

type reserveRequest struct {
	CarNumber string `json:"car_number"`
	CarModel  string `json:"car_model"`
}

// handleLotByID routes /lots/{id}, /lots/{id}/spots and /lots/{id}/reserve.
func (s *HTTPServer) handleLotByID(w http.ResponseWriter, r *http.Request) {
	id, action, err := pathID(r.URL.Path, "/api/v1/lots/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		if _, ok := s.authenticate(w, r); !ok {
			return
		}
		lot, err := s.lots.GetLot(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lot)

	case action == "" && r.Method == http.MethodPut:
		if _, ok := s.requireRole(w, r, models.RoleAdmin); !ok {
			return
		}

		var req updateLotRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.lots.UpdateLot(r.Context(), id, req.Name, req.Location, req.Price); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})

	case action == "" && r.Method == http.MethodDelete:
		session, ok := s.requireRole(w, r, models.RoleAdmin)
		if !ok {
			return
		}
		if err := s.lots.DeleteLot(r.Context(), id, session.Email); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	case action == "spots" && r.Method == http.MethodGet:
		if _, ok := s.authenticate(w, r); !ok {
			return
		}
		spots, err := s.parking.ListSpotsByLot(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, spots)

	case action == "reserve" && r.Method == http.MethodPost:
		session, ok := s.requireRole(w, r, models.RoleUser)
		if !ok {
			return
		}

		var req reserveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		spot, history, err := s.parking.ReserveInLot(r.Context(), id, session.Email, req.CarNumber, req.CarModel)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"spot":    spot,
			"history": history,
		})

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleSpots lists spots: all of them for admins, free ones (optionally
// filtered by lot_id) for everyone else.
func (s *HTTPServer) handleSpots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	if session.Role == models.RoleAdmin && r.URL.Query().Get("all") == "true" {
		spots, err := s.parking.ListAllSpots(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, spots)
		return
	}

	var lotID int64
	if raw := r.URL.Query().Get("lot_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lot_id")
			return
		}
		lotID = id
	}

	spots, err := s.parking.ListFreeSpots(r.Context(), lotID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spots)
}

// handleSpotByID routes /spots/{id}/book and /spots/{id}/release.
func (s *HTTPServer) handleSpotByID(w http.ResponseWriter, r *http.Request) {
	id, action, err := pathID(r.URL.Path, "/api/v1/spots/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	session, ok := s.requireRole(w, r, models.RoleUser)
	if !ok {
		return
	}

	switch action {
	case "book":
		spot, err := s.parking.BookSpot(r.Context(), id, session.Email)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, spot)

	case "release":
		duration, cost, spot, err := s.parking.ReleaseSpot(r.Context(), id, session.Email)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"spot":           spot,
			"duration_hours": duration,
			"cost":           cost,
		})

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleBookings returns the caller's currently booked spots.
func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	spots, err := s.parking.ListBookedByUser(r.Context(), session.Email)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spots)
}

// handleHistory returns the caller's ledger; admins may pass ?all=true.
func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var (
		records []*models.BookingHistory
		err     error
	)
	if session.Role == models.RoleAdmin && r.URL.Query().Get("all") == "true" {
		records, err = s.parking.GetAllHistory(r.Context())
	} else {
		records, err = s.parking.GetHistory(r.Context(), session.Email)
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := s.requireRole(w, r, models.RoleAdmin); !ok {
		return
	}

	users, err := s.users.SearchUsers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *HTTPServer) handleUserByID(w http.ResponseWriter, r *http.Request) {
	id, action, err := pathID(r.URL.Path, "/api/v1/users/")
	if err != nil || action != "" {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if _, ok := s.requireRole(w, r, models.RoleAdmin); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := s.users.GetUserByID(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)

	case http.MethodDelete:
		if err := s.users.DeleteUser(r.Context(), id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type updateProfileRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Pincode int    `json:"pincode"`
}

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := s.users.GetProfile(r.Context(), session.Email)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)

	case http.MethodPut:
		var req updateProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.users.UpdateProfile(r.Context(), session.Email, req.Name, req.Address, req.Pincode); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleDashboard returns per-lot occupancy plus global totals for admins.
func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := s.requireRole(w, r, models.RoleAdmin); !ok {
		return
	}

	lots, totalBooked, totalFree, err := s.lots.Occupancy(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lots":         lots,
		"total_booked": totalBooked,
		"total_free":   totalFree,
	})
}

// handleHistoryReport renders the full ledger as an xlsx file and streams it
// back to the admin.
func (s *HTTPServer) handleHistoryReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := s.requireRole(w, r, models.RoleAdmin); !ok {
		return
	}
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report export is not configured")
		return
	}

	records, err := s.parking.GetAllHistory(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	path, err := s.reports.WriteHistory(records)
	if err != nil {
		s.logger.Error().Err(err).Msg("history report error")
		writeError(w, http.StatusInternalServerError, "report generation failed")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "report read failed")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(path))
	http.ServeContent(w, r, filepath.Base(path), time.Now(), f)
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}
