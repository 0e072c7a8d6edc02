// Package service contains the business logic for the brewbot API.
// Services validate inputs, enforce the slot lifecycle rules, and orchestrate
// repo calls. No SQL lives here — services depend on repo interfaces, not
// implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/kettleworks/brewbot/internal/domain"
	"github.com/kettleworks/brewbot/internal/repo"
	"github.com/kettleworks/brewbot/internal/schedule"
)

// alertLookback is the historical window scanned for the pre-round alert
// audience: everyone seen on a roster at the location in the last 48 hours.
const alertLookback = 48 * time.Hour

// Notifier is the notification gateway consumed by the scheduler.
// Implementations live in internal/notify.
type Notifier interface {
	// Send notifies a fired brew's roster of the chosen brewer.
	Send(ctx context.Context, brew domain.Brew) error
	// SendAlert notifies a historical audience that a round just opened.
	SendAlert(ctx context.Context, roster domain.HistoricalRoster, location string, lead time.Duration) error
}

// TimerQueue arms one-shot callbacks at a due time. *schedule.Queue is the
// production implementation; tests substitute a recording fake.
type TimerQueue interface {
	Schedule(id uuid.UUID, at time.Time, fn schedule.Callback)
}

// RosterBuilder computes the historical alert roster for a location.
// HistoryService is the production implementation.
type RosterBuilder interface {
	Roster(ctx context.Context, location string, lookback time.Duration) (domain.HistoricalRoster, error)
}

// SchedulerService owns the brew lifecycle: finding or creating the next
// round for a location, arming its fire timer, and running the fire sequence
// when the timer elapses.
type SchedulerService struct {
	brews    repo.BrewRepo
	timers   TimerQueue
	notifier Notifier
	history  RosterBuilder
	clock    schedule.Clock
	logger   *slog.Logger

	// defaultLead is the delay between round creation and firing when the
	// caller does not supply one (BREW_LEAD_TIME / BREW_LEAD_UNIT).
	defaultLead time.Duration
}

// NewSchedulerService constructs the scheduler with all its dependencies.
func NewSchedulerService(
	brews repo.BrewRepo,
	timers TimerQueue,
	notifier Notifier,
	history RosterBuilder,
	clock schedule.Clock,
	defaultLead time.Duration,
	logger *slog.Logger,
) *SchedulerService {
	return &SchedulerService{
		brews:       brews,
		timers:      timers,
		notifier:    notifier,
		history:     history,
		clock:       clock,
		defaultLead: defaultLead,
		logger:      logger,
	}
}

// EnsureNext returns the upcoming brew for a location, creating one when
// none is pending. lead <= 0 means the configured default.
//
// On creation the fire timer is armed and the pre-round alert is dispatched
// in the background; neither can fail the returned brew. An already-pending
// brew is returned unchanged — its timer was armed when it was created.
func (s *SchedulerService) EnsureNext(ctx context.Context, location string, lead time.Duration) (domain.Brew, error) {
	if strings.TrimSpace(location) == "" {
		return domain.Brew{}, fmt.Errorf("%w: location is required", domain.ErrValidation)
	}
	if lead <= 0 {
		lead = s.defaultLead
	}

	existing, err := s.brews.FindUpcoming(ctx, location)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Brew{}, fmt.Errorf("service.SchedulerService.EnsureNext: %w", err)
	}

	created, inserted, err := s.brews.Create(ctx, domain.Brew{
		DueAt:    s.clock.Now().Add(lead),
		Location: location,
	})
	if err != nil {
		return domain.Brew{}, fmt.Errorf("service.SchedulerService.EnsureNext: %w", err)
	}

	if inserted {
		s.logger.InfoContext(ctx, "brew scheduled",
			"brew_id", created.ID, "location", location, "due_at", created.DueAt)
		s.timers.Schedule(created.ID, created.DueAt, s.fireCallback(created.ID))

		// Pre-round alert runs after the caller already has its brew; its
		// failure is logged, never surfaced. WithoutCancel detaches it from
		// the request lifetime.
		go s.alert(context.WithoutCancel(ctx), location, lead)
	}

	return created, nil
}

// Rearm re-schedules the fire sequence for every still-future brew.
// Timers are in-memory only, so main calls this once at boot to recover
// rounds armed before the last restart.
func (s *SchedulerService) Rearm(ctx context.Context) error {
	pending, err := s.brews.ListUpcoming(ctx)
	if err != nil {
		return fmt.Errorf("service.SchedulerService.Rearm: %w", err)
	}
	for _, b := range pending {
		s.timers.Schedule(b.ID, b.DueAt, s.fireCallback(b.ID))
	}
	if len(pending) > 0 {
		s.logger.InfoContext(ctx, "re-armed pending brews", "count", len(pending))
	}
	return nil
}

// fireCallback adapts Fire to the timer queue's callback shape.
func (s *SchedulerService) fireCallback(id uuid.UUID) schedule.Callback {
	return func(ctx context.Context) {
		s.Fire(ctx, id)
	}
}

// Fire executes the fire sequence for a due brew:
//
//  1. re-fetch the brew (the roster may have changed since creation),
//  2. pick a brewer at random,
//  3. empty roster → stop, nothing persisted, nobody notified,
//  4. persist the selection (version-checked; a conflicting join triggers a
//     re-fetch and re-pick),
//  5. notify the roster. A notification failure is logged, never retried
//     here, and never rolls back the persisted selection.
//
// Fire runs on the timer goroutine after the creating request has long
// returned, so every error is terminal: logged and swallowed.
func (s *SchedulerService) Fire(ctx context.Context, id uuid.UUID) {
	var fired *domain.Brew

	backoff := retry.WithMaxRetries(3, retry.NewConstant(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		brew, err := s.brews.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if brew.HasBrewer {
			// Already fired (e.g. re-armed twice across restarts).
			return nil
		}

		picked := domain.PickBrewer(brew)
		if !picked.HasBrewer {
			s.logger.InfoContext(ctx, "brew due with empty roster, skipping",
				"brew_id", id, "location", brew.Location)
			return nil
		}

		updated, err := s.brews.Update(ctx, picked)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				// A join slipped in between fetch and update: take the
				// fresh roster and pick again.
				return retry.RetryableError(err)
			}
			return err
		}
		fired = &updated
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "fire sequence failed", "brew_id", id, "error", err)
		return
	}
	if fired == nil {
		return
	}

	s.logger.InfoContext(ctx, "brewer picked",
		"brew_id", fired.ID, "location", fired.Location, "brewer", fired.Brewer.Name)

	if err := s.notifier.Send(ctx, *fired); err != nil {
		// The round happened whether or not anyone was told.
		s.logger.ErrorContext(ctx, "brew notification failed", "brew_id", fired.ID, "error", err)
	}
}

// alert builds the 48h historical roster and sends the round-opened alert.
// Runs in the background; failures are logged only.
func (s *SchedulerService) alert(ctx context.Context, location string, lead time.Duration) {
	roster, err := s.history.Roster(ctx, location, alertLookback)
	if err != nil {
		s.logger.ErrorContext(ctx, "alert roster build failed", "location", location, "error", err)
		return
	}
	if err := s.notifier.SendAlert(ctx, roster, location, lead); err != nil {
		s.logger.ErrorContext(ctx, "alert notification failed", "location", location, "error", err)
	}
}
