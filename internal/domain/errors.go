package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing user id or location).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrConflict is returned by BrewRepo.Update when the record was modified
// since it was read (stale version token). Callers either retry with a fresh
// read or surface HTTP 409.
var ErrConflict = errors.New("version conflict")

// ErrInvalidIdentity is returned when a user id lacks the "provider|shortid"
// separator the historical roster is keyed by. Failing fast beats silently
// mis-keying the roster.
var ErrInvalidIdentity = errors.New("invalid user identity")
