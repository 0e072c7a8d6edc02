package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// JoinBrew handles POST /brews/join.
// When the body has no location, the caller's IP is looked up in the
// location directory (r.RemoteAddr, already rewritten by chi's RealIP).
func (s *Server) JoinBrew(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRequestError(w, "invalid request body")
		return
	}

	location := req.Location
	if location == "" {
		loc, err := s.locations.GetByIP(r.Context(), remoteIP(r))
		if err != nil {
			writeError(w, err, "no location for caller address")
			return
		}
		location = loc.Name
	}

	brew, err := s.roster.Join(r.Context(), req.toService(location))
	if err != nil {
		writeError(w, err, "brew not found")
		return
	}
	writeJSON(w, http.StatusOK, brew)
}

// LeaveBrew handles POST /brews/leave.
func (s *Server) LeaveBrew(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRequestError(w, "invalid request body")
		return
	}

	location := req.Location
	if location == "" {
		loc, err := s.locations.GetByIP(r.Context(), remoteIP(r))
		if err != nil {
			writeError(w, err, "no location for caller address")
			return
		}
		location = loc.Name
	}

	brew, err := s.roster.Leave(r.Context(), req.UserID, location)
	if err != nil {
		writeError(w, err, "brew not found")
		return
	}
	writeJSON(w, http.StatusOK, brew)
}

// ListBrews handles GET /brews.
func (s *Server) ListBrews(w http.ResponseWriter, r *http.Request) {
	brews, err := s.history.List(r.Context())
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, brews)
}

// NextBrew handles GET /brews/next?location=kitchen.
// Read-only: returns 404 when no round is pending rather than creating one.
func (s *Server) NextBrew(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	brew, err := s.history.Next(r.Context(), location)
	if err != nil {
		writeError(w, err, "no upcoming brew for location")
		return
	}
	writeJSON(w, http.StatusOK, brew)
}

// LastBrewForUser handles GET /users/{userID}/last-brew.
func (s *Server) LastBrewForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	brew, err := s.history.LastForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err, "user has no brew history")
		return
	}
	writeJSON(w, http.StatusOK, brew)
}
