// Package repo contains all database access logic for the brewbot API.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kettleworks/brewbot/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BrewRepo defines the persistence operations for brews.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows services to be unit-tested with a mock.
//
// Each operation is individually atomic; multi-step sequences (find-then-write)
// are not, which is why Update carries a version token and Create is
// insert-if-absent.
type BrewRepo interface {
	// GetByID retrieves a single brew by its UUID primary key.
	// Returns domain.ErrNotFound if no brew with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Brew, error)

	// FindUpcoming returns the earliest brew for location whose due time is
	// strictly in the future. Returns domain.ErrNotFound if there is none.
	FindUpcoming(ctx context.Context, location string) (domain.Brew, error)

	// List returns every brew, most recent first.
	List(ctx context.Context) ([]domain.Brew, error)

	// ListUpcoming returns all not-yet-fired brews across every location,
	// earliest first. Used to re-arm fire timers after a restart.
	ListUpcoming(ctx context.Context) ([]domain.Brew, error)

	// FindInWindow returns brews for location with due time strictly inside
	// (from, until), ordered by due time ascending so that later rows are the
	// more recent ones.
	FindInWindow(ctx context.Context, location string, from, until time.Time) ([]domain.Brew, error)

	// FindLastForUser returns the most recent brew whose roster contains
	// userID. Returns domain.ErrNotFound if the user never joined a brew.
	FindLastForUser(ctx context.Context, userID string) (domain.Brew, error)

	// Create inserts a new brew unless an upcoming brew already exists for
	// its location, in which case the existing one is returned instead.
	// The boolean reports whether a row was actually inserted.
	Create(ctx context.Context, brew domain.Brew) (domain.Brew, bool, error)

	// Update replaces the mutable fields of a brew (roster and selection;
	// due time and location are immutable) guarded by the version token read
	// with the record. Returns domain.ErrConflict when the stored version no
	// longer matches, domain.ErrNotFound when the brew does not exist.
	Update(ctx context.Context, brew domain.Brew) (domain.Brew, error)
}

// pgBrewRepo is the Postgres implementation of BrewRepo.
// The roster lives in a single jsonb column, so a brew reads and writes as
// one document.
type pgBrewRepo struct {
	db db
}

// NewBrewRepo constructs a BrewRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewBrewRepo(db db) BrewRepo {
	return &pgBrewRepo{db: db}
}

const brewColumns = `id, due_at, location, brewers, brewer, has_brewer, version, created_at, updated_at`

// GetByID retrieves a brew by primary key.
func (r *pgBrewRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Brew, error) {
	const q = `
		SELECT ` + brewColumns + `
		FROM brews
		WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanBrew(row)
	if err != nil {
		return domain.Brew{}, fmt.Errorf("repo.BrewRepo.GetByID: %w", err)
	}
	return result, nil
}

// FindUpcoming returns the single next brew for a location, if any.
func (r *pgBrewRepo) FindUpcoming(ctx context.Context, location string) (domain.Brew, error) {
	const q = `
		SELECT ` + brewColumns + `
		FROM brews
		WHERE location = @location AND due_at > now()
		ORDER BY due_at ASC
		LIMIT 1`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"location": location})
	result, err := scanBrew(row)
	if err != nil {
		return domain.Brew{}, fmt.Errorf("repo.BrewRepo.FindUpcoming: %w", err)
	}
	return result, nil
}

// List returns all brews, most recent first.
func (r *pgBrewRepo) List(ctx context.Context) ([]domain.Brew, error) {
	const q = `
		SELECT ` + brewColumns + `
		FROM brews
		ORDER BY due_at DESC`

	return r.queryBrews(ctx, "List", q, nil)
}

// ListUpcoming returns all future brews across locations, earliest first.
func (r *pgBrewRepo) ListUpcoming(ctx context.Context) ([]domain.Brew, error) {
	const q = `
		SELECT ` + brewColumns + `
		FROM brews
		WHERE due_at > now()
		ORDER BY due_at ASC`

	return r.queryBrews(ctx, "ListUpcoming", q, nil)
}

// FindInWindow returns brews for a location due strictly inside (from, until).
// Ascending order makes "most recent wins" deterministic for the aggregator.
func (r *pgBrewRepo) FindInWindow(ctx context.Context, location string, from, until time.Time) ([]domain.Brew, error) {
	const q = `
		SELECT ` + brewColumns + `
		FROM brews
		WHERE location = @location AND due_at > @from AND due_at < @until
		ORDER BY due_at ASC`

	args := pgx.NamedArgs{"location": location, "from": from, "until": until}
	return r.queryBrews(ctx, "FindInWindow", q, args)
}

// FindLastForUser returns the most recent brew containing userID in its roster.
func (r *pgBrewRepo) FindLastForUser(ctx context.Context, userID string) (domain.Brew, error) {
	// jsonb containment against the roster array; backed by the GIN index
	// on brewers.
	needle, err := json.Marshal([]map[string]string{{"id": userID}})
	if err != nil {
		return domain.Brew{}, fmt.Errorf("repo.BrewRepo.FindLastForUser: marshal needle: %w", err)
	}

	const q = `
		SELECT ` + brewColumns + `
		FROM brews
		WHERE brewers @> @needle
		ORDER BY due_at DESC
		LIMIT 1`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"needle": needle})
	result, err := scanBrew(row)
	if err != nil {
		return domain.Brew{}, fmt.Errorf("repo.BrewRepo.FindLastForUser: %w", err)
	}
	return result, nil
}

// Create inserts a brew only when no upcoming brew exists for the location.
// Two racing first joins both land here; exactly one inserts and the loser
// reads back the winner, so a location never gets duplicate pending brews.
func (r *pgBrewRepo) Create(ctx context.Context, brew domain.Brew) (domain.Brew, bool, error) {
	brewers, err := marshalBrewers(brew.Brewers)
	if err != nil {
		return domain.Brew{}, false, fmt.Errorf("repo.BrewRepo.Create: %w", err)
	}

	const q = `
		INSERT INTO brews (due_at, location, brewers)
		SELECT @due_at, @location, @brewers
		WHERE NOT EXISTS (
			SELECT 1 FROM brews WHERE location = @location AND due_at > now()
		)
		RETURNING ` + brewColumns

	args := pgx.NamedArgs{
		"due_at":   brew.DueAt,
		"location": brew.Location,
		"brewers":  brewers,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanBrew(row)
	if err == nil {
		return result, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Brew{}, false, fmt.Errorf("repo.BrewRepo.Create: %w", err)
	}

	// Lost the insert race (or a brew was already pending): hand back the
	// existing upcoming brew.
	existing, err := r.FindUpcoming(ctx, brew.Location)
	if err != nil {
		return domain.Brew{}, false, fmt.Errorf("repo.BrewRepo.Create: %w", err)
	}
	return existing, false, nil
}

// Update replaces the roster and selection fields, compare-and-swapping on
// the version column. DueAt and Location are deliberately not in the SET
// list — they are immutable after creation.
func (r *pgBrewRepo) Update(ctx context.Context, brew domain.Brew) (domain.Brew, error) {
	brewers, err := marshalBrewers(brew.Brewers)
	if err != nil {
		return domain.Brew{}, fmt.Errorf("repo.BrewRepo.Update: %w", err)
	}

	var chosen []byte
	if brew.Brewer != nil {
		chosen, err = json.Marshal(brew.Brewer)
		if err != nil {
			return domain.Brew{}, fmt.Errorf("repo.BrewRepo.Update: marshal brewer: %w", err)
		}
	}

	const q = `
		UPDATE brews
		SET brewers    = @brewers,
		    brewer     = @brewer,
		    has_brewer = @has_brewer,
		    version    = version + 1,
		    updated_at = now()
		WHERE id = @id AND version = @version
		RETURNING ` + brewColumns

	args := pgx.NamedArgs{
		"id":         brew.ID,
		"version":    brew.Version,
		"brewers":    brewers,
		"brewer":     chosen, // nil becomes NULL
		"has_brewer": brew.HasBrewer,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanBrew(row)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Brew{}, fmt.Errorf("repo.BrewRepo.Update: %w", err)
	}

	// No row matched: either the brew is gone or the version was stale.
	if _, getErr := r.GetByID(ctx, brew.ID); getErr != nil {
		return domain.Brew{}, fmt.Errorf("repo.BrewRepo.Update: %w", domain.ErrNotFound)
	}
	return domain.Brew{}, fmt.Errorf("repo.BrewRepo.Update: %w", domain.ErrConflict)
}

// queryBrews runs a multi-row query and scans every row.
func (r *pgBrewRepo) queryBrews(ctx context.Context, op, q string, args pgx.NamedArgs) ([]domain.Brew, error) {
	var rows pgx.Rows
	var err error
	if args == nil {
		rows, err = r.db.Query(ctx, q)
	} else {
		rows, err = r.db.Query(ctx, q, args)
	}
	if err != nil {
		return nil, fmt.Errorf("repo.BrewRepo.%s: %w", op, err)
	}
	defer rows.Close()

	var brews []domain.Brew
	for rows.Next() {
		b, err := scanBrew(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.BrewRepo.%s: scan: %w", op, err)
		}
		brews = append(brews, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.BrewRepo.%s: rows: %w", op, err)
	}

	return brews, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanBrew to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanBrew maps a single database row into a domain.Brew.
// It handles the UUID, the jsonb roster, and the nullable chosen brewer.
func scanBrew(s scanner) (domain.Brew, error) {
	var (
		b       domain.Brew
		id      pgtype.UUID
		brewers []byte
		chosen  []byte
	)

	err := s.Scan(&id, &b.DueAt, &b.Location, &brewers, &chosen, &b.HasBrewer, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Brew{}, domain.ErrNotFound
		}
		return domain.Brew{}, err
	}

	b.ID = uuid.UUID(id.Bytes)
	if err := json.Unmarshal(brewers, &b.Brewers); err != nil {
		return domain.Brew{}, fmt.Errorf("decode brewers: %w", err)
	}
	if len(chosen) > 0 {
		b.Brewer = &domain.Brewer{}
		if err := json.Unmarshal(chosen, b.Brewer); err != nil {
			return domain.Brew{}, fmt.Errorf("decode brewer: %w", err)
		}
	}

	return b, nil
}

// marshalBrewers encodes the roster for the jsonb column. A nil roster is
// stored as an empty array, never as JSON null.
func marshalBrewers(brewers []domain.Brewer) ([]byte, error) {
	if brewers == nil {
		brewers = []domain.Brewer{}
	}
	out, err := json.Marshal(brewers)
	if err != nil {
		return nil, fmt.Errorf("marshal brewers: %w", err)
	}
	return out, nil
}
