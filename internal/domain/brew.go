// Package domain contains the core data types for the brewbot application.
// This package has no dependencies beyond uuid and is imported by every other
// internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Brew is one round of drinks: a due time, a location, and the roster of
// people who joined. Until it fires, Brewer is nil and users may still join
// or leave; once fired, HasBrewer is true and the roster is frozen in
// practice because the round is no longer upcoming.
//
// The JSON tags double as the storage encoding — the roster lives in a jsonb
// column — so renaming a tag is a data migration, not a cosmetic change.
type Brew struct {
	ID       uuid.UUID `json:"id"`
	DueAt    time.Time `json:"due_at"`
	Location string    `json:"location"`

	// Brewers is the roster in join order.
	Brewers []Brewer `json:"brewers"`

	// Brewer is the chosen brewer once the round has fired, nil before.
	Brewer    *Brewer `json:"brewer,omitempty"`
	HasBrewer bool    `json:"has_brewer"`

	// Version is the optimistic-concurrency token checked by BrewRepo.Update.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Brewer is one roster entry: who is in the round and how they take it.
// The "id" tag carries the full provider-qualified user id, e.g.
// "google-oauth2|abc123".
type Brewer struct {
	UserID   string `json:"id"`
	Name     string `json:"name"`
	Drink    string `json:"brew,omitempty"`
	Sugars   string `json:"sugars,omitempty"`
	Milk     string `json:"milk,omitempty"`
	Comments string `json:"comments,omitempty"`

	// Brewing marks the entry picked to make the round.
	Brewing bool `json:"brewing"`
}

// Upcoming reports whether the brew is still pending at the given instant.
func (b Brew) Upcoming(now time.Time) bool {
	return b.DueAt.After(now)
}

// HasUser reports whether userID is on the roster.
func (b Brew) HasUser(userID string) bool {
	for _, br := range b.Brewers {
		if br.UserID == userID {
			return true
		}
	}
	return false
}
