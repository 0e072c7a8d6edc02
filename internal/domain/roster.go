package domain

import (
	"fmt"
	"strings"
)

// HistoricalRoster maps short user ids to the most recent Brewer record seen
// for that id across a location's recent brews. It is computed on demand to
// drive the pre-round alert and discarded afterwards — never persisted.
//
// Keys are short ids, not full user ids: two providers sharing a short id
// collapse into one entry. Accepted — short ids are unique in practice.
type HistoricalRoster map[string]Brewer

// ShortID extracts the portion of a user id after its provider separator,
// e.g. "google-oauth2|abc123" → "abc123".
// Returns ErrInvalidIdentity when the separator is missing.
func ShortID(userID string) (string, error) {
	_, short, ok := strings.Cut(userID, "|")
	if !ok {
		return "", fmt.Errorf("%w: %q has no provider separator", ErrInvalidIdentity, userID)
	}
	return short, nil
}
