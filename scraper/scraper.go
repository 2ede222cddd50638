package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/coastwatch/config"
	"github.com/use-agent/coastwatch/models"
)

// State is a step in a scrape's lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateSessionOpen  State = "session_open"
	StateLaunchFailed State = "launch_failed"
	StateNavigated    State = "navigated"
	StatePolling      State = "polling"
	StateReady        State = "ready"
	StateTimedOut     State = "timed_out"
	StateClosed       State = "closed"
)

// errNotReady is the cause recorded when the readiness deadline fires.
var errNotReady = errors.New("readings did not leave the placeholder before the deadline")

// Scraper reads the live wind snapshot from the sensor page.
// Every call runs a full browser lifecycle; sessions are never reused.
// It is safe for concurrent use.
type Scraper struct {
	resolver Resolver
	launcher Launcher
	cfg      config.ScraperConfig

	// onState, when set, observes every lifecycle transition.
	onState func(State)
}

// New creates a Scraper. The resolver is chosen once by the caller, see
// NewResolver.
func New(resolver Resolver, launcher Launcher, cfg config.ScraperConfig) *Scraper {
	return &Scraper{
		resolver: resolver,
		launcher: launcher,
		cfg:      cfg,
	}
}

// Scrape drives one session through
//
//	Idle → SessionOpen → Navigated → Polling → {Ready | TimedOut} → Closed
//
// and returns the snapshot as of the moment the readings became ready.
// The session is closed on every path once it has been opened; a close
// failure is logged and never replaces the error being returned.
func (s *Scraper) Scrape(ctx context.Context) (*WindSnapshot, error) {
	s.transition(StateIdle)

	lc := s.resolver.Resolve(ctx)
	slog.Info("launching browser",
		"headless", lc.Headless,
		"hasExecutable", lc.ExecutablePath != "",
		"executablePath", lc.ExecutablePath,
	)

	session, err := s.launcher.Launch(ctx, lc)
	if err != nil {
		s.transition(StateLaunchFailed)
		return nil, models.NewProxyError(models.ErrCodeBrowserLaunch, "browser failed to launch", err)
	}
	s.transition(StateSessionOpen)

	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			slog.Error("error closing browser", "error", closeErr)
		}
		s.transition(StateClosed)
	}()

	// ── Navigate ────────────────────────────────────────────────────
	navCtx, navCancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	err = session.Navigate(navCtx, s.cfg.TargetURL, s.cfg.IdleWindow)
	navCancel()
	if err != nil {
		return nil, categorizeError(err, "navigation to the wind page failed")
	}
	s.transition(StateNavigated)

	// ── Poll until the readings load ────────────────────────────────
	s.transition(StatePolling)
	r, err := s.waitReady(ctx, session)
	if err != nil {
		if errors.Is(err, errNotReady) {
			s.transition(StateTimedOut)
			return nil, models.NewProxyError(models.ErrCodeScrapeTimeout,
				fmt.Sprintf("wind readings not available after %s", s.cfg.ReadyTimeout), err)
		}
		return nil, categorizeError(err, "waiting for wind readings failed")
	}
	s.transition(StateReady)

	// ── Extract ─────────────────────────────────────────────────────
	degrees, err := ParseDegrees(r.direction)
	if err != nil {
		return nil, models.NewProxyError(models.ErrCodeInvalidReading, "wind direction is not numeric", err)
	}

	return &WindSnapshot{
		WindSpeed:        r.speed,
		WindDirection:    r.direction,
		LatestTimestamp:  r.timestamp,
		WindFrom:         CompassFrom(degrees),
		DirectionDegrees: degrees,
	}, nil
}

// waitReady re-reads the rendered DOM every PollInterval until the
// readiness predicate holds. The predicate and the ReadyTimeout deadline
// race in one select; the ticker and deadline timer are released on return.
func (s *Scraper) waitReady(ctx context.Context, session Session) (readings, error) {
	pollCtx, cancel := context.WithTimeoutCause(ctx, s.cfg.ReadyTimeout, errNotReady)
	defer cancel()

	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if r, ok := probe(pollCtx, session); ok {
			return r, nil
		}

		select {
		case <-pollCtx.Done():
			return readings{}, context.Cause(pollCtx)
		case <-ticker.C:
		}
	}
}

// probe evaluates the readiness predicate once. Read and parse errors count
// as not ready; the deadline decides when to give up.
func probe(ctx context.Context, session Session) (readings, bool) {
	rendered, err := session.HTML(ctx)
	if err != nil {
		slog.Debug("readiness probe failed", "error", err)
		return readings{}, false
	}
	r, err := parseReadings(rendered)
	if err != nil {
		slog.Debug("readiness probe failed", "error", err)
		return readings{}, false
	}
	return r, r.ready()
}

func (s *Scraper) transition(st State) {
	slog.Debug("scrape state", "state", string(st))
	if s.onState != nil {
		s.onState(st)
	}
}

// categorizeError wraps raw errors into typed ProxyErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.ProxyError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewProxyError(models.ErrCodeNavigation, msg+": deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return models.NewProxyError(models.ErrCodeNavigation, "request canceled", err)
	default:
		return models.NewProxyError(models.ErrCodeNavigation, msg, err)
	}
}
