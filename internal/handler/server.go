// Package handler implements the HTTP handlers for the brewbot API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (brew.go, location.go) but all share the same Server struct so they
// can access its dependencies.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kettleworks/brewbot/internal/domain"
	"github.com/kettleworks/brewbot/internal/service"
)

// RosterServicer defines the roster operations the brew handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type RosterServicer interface {
	Join(ctx context.Context, req service.JoinRequest) (domain.Brew, error)
	Leave(ctx context.Context, userID, location string) (domain.Brew, error)
}

// HistoryServicer defines the read-only brew queries the handlers depend on.
type HistoryServicer interface {
	List(ctx context.Context) ([]domain.Brew, error)
	Next(ctx context.Context, location string) (domain.Brew, error)
	LastForUser(ctx context.Context, userID string) (domain.Brew, error)
}

// LocationDirectory resolves a caller's location from their IP address.
type LocationDirectory interface {
	GetByIP(ctx context.Context, ip string) (domain.Location, error)
}

// Server holds the dependencies for all API endpoints.
type Server struct {
	roster    RosterServicer
	history   HistoryServicer
	locations LocationDirectory
}

// NewServer constructs the Server with all its dependencies.
func NewServer(roster RosterServicer, history HistoryServicer, locations LocationDirectory) *Server {
	return &Server{roster: roster, history: history, locations: locations}
}

// Routes returns the router for all API endpoints.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.Health)

	r.Route("/brews", func(r chi.Router) {
		r.Get("/", s.ListBrews)
		r.Get("/next", s.NextBrew)
		r.Post("/join", s.JoinBrew)
		r.Post("/leave", s.LeaveBrew)
	})

	r.Get("/users/{userID}/last-brew", s.LastBrewForUser)
	r.Get("/locations/lookup", s.LookupLocation)

	return r
}

// joinRequest is the POST /brews/join body.
type joinRequest struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"` // resolved from caller IP when omitted
	Brew     string `json:"brew,omitempty"`
	Sugars   string `json:"sugars,omitempty"`
	Milk     string `json:"milk,omitempty"`
	Comments string `json:"comments,omitempty"`

	// LeadMinutes overrides the configured lead time when this join opens
	// the round.
	LeadMinutes int `json:"lead_minutes,omitempty"`
}

// leaveRequest is the POST /brews/leave body.
type leaveRequest struct {
	UserID   string `json:"user_id"`
	Location string `json:"location,omitempty"`
}

func (r joinRequest) toService(location string) service.JoinRequest {
	return service.JoinRequest{
		UserID:   r.UserID,
		Name:     r.Name,
		Location: location,
		Drink:    r.Brew,
		Sugars:   r.Sugars,
		Milk:     r.Milk,
		Comments: r.Comments,
		Lead:     time.Duration(r.LeadMinutes) * time.Minute,
	}
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
