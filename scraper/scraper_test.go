package scraper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/coastwatch/config"
	"github.com/use-agent/coastwatch/models"
)

type staticResolver struct{ lc LaunchConfig }

func (r staticResolver) Resolve(context.Context) LaunchConfig { return r.lc }

// fakeSession serves a scripted sequence of pages; the last one repeats.
type fakeSession struct {
	mu       sync.Mutex
	pages    []string
	reads    int
	navErr   error
	navDelay time.Duration
	closeErr error
	closes   atomic.Int32
}

func (f *fakeSession) Navigate(ctx context.Context, _ string, _ time.Duration) error {
	if f.navDelay > 0 {
		select {
		case <-time.After(f.navDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.navErr
}

func (f *fakeSession) HTML(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.reads
	if i >= len(f.pages) {
		i = len(f.pages) - 1
	}
	f.reads++
	return f.pages[i], nil
}

func (f *fakeSession) Close() error {
	f.closes.Add(1)
	return f.closeErr
}

type fakeLauncher struct {
	session  *fakeSession
	err      error
	launched LaunchConfig
}

func (l *fakeLauncher) Launch(_ context.Context, cfg LaunchConfig) (Session, error) {
	l.launched = cfg
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

func testScraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		TargetURL:         "http://sensor.test/",
		NavigationTimeout: time.Second,
		ReadyTimeout:      80 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		IdleWindow:        time.Millisecond,
	}
}

func newTestScraper(l Launcher) (*Scraper, *[]State) {
	var states []State
	s := New(staticResolver{lc: LaunchConfig{ExecutablePath: "/bin/chrome", Headless: true}}, l, testScraperConfig())
	s.onState = func(st State) { states = append(states, st) }
	return s, &states
}

func TestScrape_ReadyAfterPlaceholders(t *testing.T) {
	sess := &fakeSession{pages: []string{
		sensorPage("---", "---", "---"),
		sensorPage("11", "---", "---"),
		sensorPage(" 11.2 ", "270", "12:00:05"),
	}}
	l := &fakeLauncher{session: sess}
	s, states := newTestScraper(l)

	snap, err := s.Scrape(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "11.2", snap.WindSpeed)
	assert.Equal(t, "270", snap.WindDirection)
	assert.Equal(t, "12:00:05", snap.LatestTimestamp)
	assert.Equal(t, Compass("W"), snap.WindFrom)
	assert.Equal(t, 270, snap.DirectionDegrees)
	assert.Equal(t, 3, sess.reads, "extraction should use the first ready snapshot")
	assert.EqualValues(t, 1, sess.closes.Load())
	assert.Equal(t, "/bin/chrome", l.launched.ExecutablePath)
	assert.Equal(t, []State{
		StateIdle, StateSessionOpen, StateNavigated, StatePolling, StateReady, StateClosed,
	}, *states)
}

func TestScrape_ReadyTimeout(t *testing.T) {
	sess := &fakeSession{pages: []string{sensorPage("---", "---", "---")}}
	s, states := newTestScraper(&fakeLauncher{session: sess})

	start := time.Now()
	_, err := s.Scrape(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, models.ErrCodeScrapeTimeout, models.CodeOf(err))
	assert.ErrorIs(t, err, errNotReady)
	assert.EqualValues(t, 1, sess.closes.Load(), "session must be released exactly once")
	assert.Less(t, elapsed, time.Second)
	assert.Contains(t, *states, StateTimedOut)
	assert.NotContains(t, *states, StateReady)
	assert.Equal(t, StateClosed, (*states)[len(*states)-1])
}

func TestScrape_LaunchFailure(t *testing.T) {
	l := &fakeLauncher{err: errors.New("failed to launch the browser: exec: not found")}
	s, states := newTestScraper(l)

	_, err := s.Scrape(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeBrowserLaunch, models.CodeOf(err))
	assert.Contains(t, err.Error(), "failed to launch")
	assert.Equal(t, []State{StateIdle, StateLaunchFailed}, *states)
}

func TestScrape_NavigationFailure(t *testing.T) {
	sess := &fakeSession{navErr: errors.New("net::ERR_CONNECTION_REFUSED"), pages: []string{""}}
	s, states := newTestScraper(&fakeLauncher{session: sess})

	_, err := s.Scrape(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeNavigation, models.CodeOf(err))
	assert.EqualValues(t, 1, sess.closes.Load())
	assert.Equal(t, 0, sess.reads, "polling must not start after a failed navigation")
	assert.NotContains(t, *states, StatePolling)
}

func TestScrape_NavigationDeadline(t *testing.T) {
	sess := &fakeSession{navDelay: time.Second, pages: []string{""}}
	l := &fakeLauncher{session: sess}
	s, _ := newTestScraper(l)
	s.cfg.NavigationTimeout = 20 * time.Millisecond

	_, err := s.Scrape(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeNavigation, models.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 1, sess.closes.Load())
}

func TestScrape_NonNumericDirection(t *testing.T) {
	sess := &fakeSession{pages: []string{sensorPage("5", "calm", "12:00")}}
	s, _ := newTestScraper(&fakeLauncher{session: sess})

	_, err := s.Scrape(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInvalidReading, models.CodeOf(err))
	assert.EqualValues(t, 1, sess.closes.Load())
}

func TestScrape_CloseErrorDoesNotMaskResult(t *testing.T) {
	sess := &fakeSession{
		pages:    []string{sensorPage("---", "---", "---")},
		closeErr: errors.New("browser already gone"),
	}
	s, _ := newTestScraper(&fakeLauncher{session: sess})

	_, err := s.Scrape(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeScrapeTimeout, models.CodeOf(err))
	assert.NotContains(t, err.Error(), "already gone")

	sess2 := &fakeSession{
		pages:    []string{sensorPage("3", "90", "now")},
		closeErr: errors.New("browser already gone"),
	}
	s2, _ := newTestScraper(&fakeLauncher{session: sess2})
	snap, err := s2.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Compass("E"), snap.WindFrom)
}

func TestScrape_ParentCanceled(t *testing.T) {
	sess := &fakeSession{pages: []string{sensorPage("---", "---", "---")}}
	s, _ := newTestScraper(&fakeLauncher{session: sess})
	s.cfg.ReadyTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := s.Scrape(ctx)
	require.Error(t, err)
	assert.NotEqual(t, models.ErrCodeScrapeTimeout, models.CodeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, sess.closes.Load())
}

func TestScrape_SlowBundleDownloadStillLaunches(t *testing.T) {
	sess := &fakeSession{pages: []string{sensorPage("9", "45", "10:00")}}
	l := &fakeLauncher{session: sess}
	resolver := &bundleResolver{
		base: LaunchConfig{Headless: true, Timeout: 50 * time.Millisecond},
		locate: func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	s := New(resolver, l, testScraperConfig())

	start := time.Now()
	snap, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, Compass("NE"), snap.WindFrom)
	assert.Empty(t, l.launched.ExecutablePath, "launcher falls back to its own browser search")
}
