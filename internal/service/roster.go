package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/kettleworks/brewbot/internal/domain"
	"github.com/kettleworks/brewbot/internal/repo"
)

// NextScheduler resolves the upcoming brew for a location, creating one when
// none is pending. SchedulerService is the production implementation.
type NextScheduler interface {
	EnsureNext(ctx context.Context, location string, lead time.Duration) (domain.Brew, error)
}

// JoinRequest carries everything a user supplies when joining the next round.
// Preference fields are free-form and stored as given.
type JoinRequest struct {
	UserID   string
	Name     string
	Location string

	Drink    string
	Sugars   string
	Milk     string
	Comments string

	// Lead overrides the configured lead time when the join creates the
	// round; ignored when a round is already pending. Zero means default.
	Lead time.Duration
}

// RosterService manages a brew's roster: joining and leaving the next round
// for a location.
type RosterService struct {
	scheduler NextScheduler
	brews     repo.BrewRepo
	logger    *slog.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(scheduler NextScheduler, brews repo.BrewRepo, logger *slog.Logger) *RosterService {
	return &RosterService{scheduler: scheduler, brews: brews, logger: logger}
}

// Join adds a user to the next round for their location, creating the round
// if none is pending. A user is on at most one upcoming round per location:
// any existing entry is removed before the new one is appended, so a second
// join supersedes the first.
//
// The roster write is version-checked; concurrent joins retry on conflict
// instead of silently losing each other's entries.
func (s *RosterService) Join(ctx context.Context, req JoinRequest) (domain.Brew, error) {
	if err := validateJoin(req); err != nil {
		return domain.Brew{}, err
	}

	var result domain.Brew
	backoff := retry.WithMaxRetries(5, retry.NewExponential(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		target, err := s.scheduler.EnsureNext(ctx, req.Location, req.Lead)
		if err != nil {
			return err
		}

		target.Brewers = append(removeUser(target.Brewers, req.UserID), domain.Brewer{
			UserID:   req.UserID,
			Name:     req.Name,
			Drink:    req.Drink,
			Sugars:   req.Sugars,
			Milk:     req.Milk,
			Comments: req.Comments,
		})

		updated, err := s.brews.Update(ctx, target)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return domain.Brew{}, fmt.Errorf("service.RosterService.Join: %w", err)
	}
	return result, nil
}

// Leave removes a user from the next round for a location. Removing a user
// who is not enrolled is a no-op and returns the round unchanged.
//
// Leave resolves "the next round" before removing, so calling it with no
// round pending creates one as a side effect. Deliberate: callers rely on
// always getting a round back.
func (s *RosterService) Leave(ctx context.Context, userID, location string) (domain.Brew, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Brew{}, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	var result domain.Brew
	backoff := retry.WithMaxRetries(5, retry.NewExponential(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		target, err := s.scheduler.EnsureNext(ctx, location, 0)
		if err != nil {
			return err
		}

		filtered := removeUser(target.Brewers, userID)
		if len(filtered) == len(target.Brewers) {
			result = target
			return nil
		}
		target.Brewers = filtered

		updated, err := s.brews.Update(ctx, target)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return domain.Brew{}, fmt.Errorf("service.RosterService.Leave: %w", err)
	}
	return result, nil
}

// removeUser returns the roster without any entry for userID, preserving
// join order of everyone else.
func removeUser(brewers []domain.Brewer, userID string) []domain.Brewer {
	out := make([]domain.Brewer, 0, len(brewers))
	for _, b := range brewers {
		if b.UserID != userID {
			out = append(out, b)
		}
	}
	return out
}

// validateJoin enforces the required join fields.
func validateJoin(req JoinRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Location) == "" {
		return fmt.Errorf("%w: location is required", domain.ErrValidation)
	}
	return nil
}
