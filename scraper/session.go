package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// Session is one open browser with a single page.
type Session interface {
	// Navigate loads url and waits until the network has been quiet for
	// idle, or ctx is done.
	Navigate(ctx context.Context, url string, idle time.Duration) error

	// HTML returns the current rendered DOM.
	HTML(ctx context.Context) (string, error)

	// Close kills the browser. It is called exactly once per session.
	Close() error
}

// Launcher opens rendering sessions.
type Launcher interface {
	Launch(ctx context.Context, cfg LaunchConfig) (Session, error)
}

// RodLauncher starts a dedicated Chromium process per session via go-rod.
type RodLauncher struct {
	// Stealth masks navigator.webdriver and friends before navigation.
	Stealth bool
}

// Launch starts the browser described by cfg, connects to it, and opens a
// blank page. Start-up is bounded by cfg.Timeout.
func (r *RodLauncher) Launch(ctx context.Context, cfg LaunchConfig) (Session, error) {
	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		Leakless(true)

	if cfg.ExecutablePath != "" {
		l = l.Bin(cfg.ExecutablePath)
	}
	for _, arg := range cfg.Arguments {
		name, values := splitArg(arg)
		if name == "" {
			continue
		}
		l.Set(flags.Flag(name), values...)
	}

	controlURL, err := launchWithTimeout(l, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to launch the browser: %w", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to the browser: %w", err)
	}

	if cfg.IgnoreCertErrors {
		if err := browser.IgnoreCertErrors(true); err != nil {
			slog.Warn("could not disable certificate checks", "error", err)
		}
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open a page: %w", err)
	}

	if r.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	return &rodSession{launcher: l, browser: browser, page: page}, nil
}

// launchWithTimeout bounds l.Launch, which otherwise waits on the browser's
// stdout indefinitely.
func launchWithTimeout(l *launcher.Launcher, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		return l.Launch()
	}

	type launched struct {
		url string
		err error
	}
	done := make(chan launched, 1)
	go func() {
		u, err := l.Launch()
		done <- launched{url: u, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.url, res.err
	case <-timer.C:
		l.Kill()
		return "", fmt.Errorf("browser did not start within %s", timeout)
	}
}

// splitArg turns "--name=value" into its flag name and values.
func splitArg(arg string) (string, []string) {
	arg = strings.TrimLeft(arg, "-")
	name, value, found := strings.Cut(arg, "=")
	if !found {
		return name, nil
	}
	return name, []string{value}
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func (s *rodSession) Navigate(ctx context.Context, url string, idle time.Duration) error {
	p := s.page.Context(ctx)

	// The idle listener must be registered before Navigate, otherwise
	// requests already in flight are missed and the wait returns early.
	waitIdle := p.WaitRequestIdle(idle, nil, nil, nil)

	if err := p.Navigate(url); err != nil {
		return err
	}
	waitIdle()

	if err := ctx.Err(); err != nil {
		return err
	}

	if res, err := p.Eval(`() => document.readyState`); err == nil {
		slog.Debug("page settled", "url", url, "readyState", jsonString(res.Value))
	}
	return nil
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}

func jsonString(v gson.JSON) string {
	if v.Nil() {
		return ""
	}
	return v.Str()
}
