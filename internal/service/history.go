package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kettleworks/brewbot/internal/domain"
	"github.com/kettleworks/brewbot/internal/repo"
	"github.com/kettleworks/brewbot/internal/schedule"
)

// HistoryService answers read-only questions about past and pending brews:
// full history, the pending round for a location, a user's last round, and
// the aggregated alert roster.
type HistoryService struct {
	brews  repo.BrewRepo
	clock  schedule.Clock
	logger *slog.Logger
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(brews repo.BrewRepo, clock schedule.Clock, logger *slog.Logger) *HistoryService {
	return &HistoryService{brews: brews, clock: clock, logger: logger}
}

// List returns every brew, most recent first.
// Always returns a non-nil slice so callers can safely range over it.
func (s *HistoryService) List(ctx context.Context) ([]domain.Brew, error) {
	brews, err := s.brews.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.HistoryService.List: %w", err)
	}
	if brews == nil {
		return []domain.Brew{}, nil
	}
	return brews, nil
}

// Next returns the pending round for a location without creating one.
// Returns domain.ErrNotFound when nothing is pending.
func (s *HistoryService) Next(ctx context.Context, location string) (domain.Brew, error) {
	if strings.TrimSpace(location) == "" {
		return domain.Brew{}, fmt.Errorf("%w: location is required", domain.ErrValidation)
	}
	brew, err := s.brews.FindUpcoming(ctx, location)
	if err != nil {
		return domain.Brew{}, fmt.Errorf("service.HistoryService.Next: %w", err)
	}
	return brew, nil
}

// LastForUser returns the most recent brew a user was on the roster of.
func (s *HistoryService) LastForUser(ctx context.Context, userID string) (domain.Brew, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Brew{}, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	brew, err := s.brews.FindLastForUser(ctx, userID)
	if err != nil {
		return domain.Brew{}, fmt.Errorf("service.HistoryService.LastForUser: %w", err)
	}
	return brew, nil
}

// Roster builds the deduplicated historical roster for a location: every
// brewer seen on a round fired within the lookback window, keyed by short
// id, most recent entry winning. The window query is ordered by due time
// ascending, so "most recent wins" is deterministic.
//
// Returns an empty roster when the window is empty; returns
// domain.ErrInvalidIdentity when a stored user id has no provider separator
// rather than silently mis-keying the roster.
func (s *HistoryService) Roster(ctx context.Context, location string, lookback time.Duration) (domain.HistoricalRoster, error) {
	now := s.clock.Now()
	window, err := s.brews.FindInWindow(ctx, location, now.Add(-lookback), now)
	if err != nil {
		return nil, fmt.Errorf("service.HistoryService.Roster: %w", err)
	}

	roster := domain.HistoricalRoster{}
	for _, brew := range window {
		for _, brewer := range brew.Brewers {
			short, err := domain.ShortID(brewer.UserID)
			if err != nil {
				return nil, fmt.Errorf("service.HistoryService.Roster: %w", err)
			}
			roster[short] = brewer
		}
	}
	return roster, nil
}
