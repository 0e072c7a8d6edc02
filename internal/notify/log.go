package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/kettleworks/brewbot/internal/domain"
)

// LogGateway is a Notifier that only writes log lines. It is the default
// when SMTP is not configured, keeping local development and CI working
// without a mail server.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway constructs a LogGateway writing to the given logger.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// Send logs the fired brew instead of delivering mail.
func (g *LogGateway) Send(ctx context.Context, brew domain.Brew) error {
	name := ""
	if brew.Brewer != nil {
		name = brew.Brewer.Name
	}
	g.logger.InfoContext(ctx, "brew fired",
		"brew_id", brew.ID,
		"location", brew.Location,
		"brewer", name,
		"roster_size", len(brew.Brewers),
	)
	return nil
}

// SendAlert logs the opened round instead of delivering mail.
func (g *LogGateway) SendAlert(ctx context.Context, roster domain.HistoricalRoster, location string, lead time.Duration) error {
	g.logger.InfoContext(ctx, "brew round opened",
		"location", location,
		"lead", lead.String(),
		"alert_audience", len(roster),
	)
	return nil
}
