package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/use-agent/coastwatch/config"
)

// LaunchConfig describes how to start one browser process.
type LaunchConfig struct {
	// ExecutablePath is the browser binary. Empty lets rod's launcher
	// search for, or download, a browser on its own.
	ExecutablePath string

	// Arguments are command line switches in "--name" or "--name=value" form.
	Arguments []string

	Headless         bool
	Timeout          time.Duration
	IgnoreCertErrors bool
}

// baselineArgs suit a constrained server: no sandbox, no GPU, no zygote.
var baselineArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--disable-accelerated-2d-canvas",
	"--no-first-run",
	"--no-zygote",
	"--disable-gpu",
}

// bundleArgs ship with the managed Chromium bundle and replace the
// baseline list when the bundle resolves.
var bundleArgs = append(append([]string{}, baselineArgs...),
	"--single-process",
	"--disable-extensions",
	"--disable-background-networking",
	"--disable-default-apps",
	"--hide-scrollbars",
	"--mute-audio",
)

// Resolver produces a fresh LaunchConfig for every scrape.
// Resolve never fails; a resolver that cannot find its browser returns a
// config without an executable path.
type Resolver interface {
	Resolve(ctx context.Context) LaunchConfig
}

// BundleLocator returns the path of a browser from a vendor bundle,
// downloading it first if needed.
type BundleLocator func(ctx context.Context) (string, error)

// RodBundle locates the Chromium revision pinned by go-rod, stored under
// dir (rod's default cache dir when empty).
func RodBundle(dir string) BundleLocator {
	return func(ctx context.Context) (string, error) {
		b := launcher.NewBrowser()
		b.Context = ctx
		if dir != "" {
			b.RootDir = dir
		}
		return b.Get()
	}
}

// NewResolver picks the resolution strategy for the host platform once.
// An explicit BrowserBin wins over both platform strategies.
func NewResolver(goos string, cfg config.BrowserConfig) Resolver {
	base := LaunchConfig{
		Headless:         cfg.Headless,
		Timeout:          cfg.LaunchTimeout,
		IgnoreCertErrors: cfg.IgnoreCertErrors,
	}

	switch {
	case cfg.BrowserBin != "":
		return &fixedResolver{base: base, path: cfg.BrowserBin, extra: cfg.ExtraArgs}
	case goos == "linux":
		return &bundleResolver{base: base, locate: RodBundle(cfg.BundleDir), extra: cfg.ExtraArgs}
	default:
		path := cfg.LocalBin
		if path == "" {
			path = defaultLocalBin(goos)
		}
		return &fixedResolver{base: base, path: path, extra: cfg.ExtraArgs, warnMissing: true}
	}
}

// bundleResolver is used on the linux deployment target.
type bundleResolver struct {
	base   LaunchConfig
	locate BundleLocator
	extra  []string
}

func (r *bundleResolver) Resolve(ctx context.Context) LaunchConfig {
	lc := r.base
	path, err := r.boundedLocate(ctx)
	if err != nil {
		slog.Warn("browser bundle not available, falling back to launcher defaults",
			"error", err,
		)
		lc.Arguments = withExtra(baselineArgs, r.extra)
		return lc
	}
	lc.ExecutablePath = path
	lc.Arguments = withExtra(bundleArgs, r.extra)
	return lc
}

// boundedLocate runs the locator under the launch timeout. A bundle download
// that outlives it is abandoned, even if the locator ignores ctx.
func (r *bundleResolver) boundedLocate(ctx context.Context) (string, error) {
	if r.base.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.base.Timeout)
		defer cancel()
	}

	type located struct {
		path string
		err  error
	}
	done := make(chan located, 1)
	go func() {
		p, err := r.safeLocate(ctx)
		done <- located{path: p, err: err}
	}()

	select {
	case res := <-done:
		return res.path, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("locating browser bundle: %w", context.Cause(ctx))
	}
}

// safeLocate turns a panicking locator into an error.
func (r *bundleResolver) safeLocate(ctx context.Context) (path string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("bundle locator panicked: %v", p)
		}
	}()
	if r.locate == nil {
		return "", fmt.Errorf("no bundle locator configured")
	}
	return r.locate(ctx)
}

// fixedResolver points at a browser provisioned at a known path.
type fixedResolver struct {
	base        LaunchConfig
	path        string
	extra       []string
	warnMissing bool
}

func (r *fixedResolver) Resolve(_ context.Context) LaunchConfig {
	if r.warnMissing {
		if _, err := os.Stat(r.path); err != nil {
			slog.Warn("local browser not found", "path", r.path, "error", err)
		}
	}
	lc := r.base
	lc.ExecutablePath = r.path
	lc.Arguments = withExtra(baselineArgs, r.extra)
	return lc
}

// defaultLocalBin is where the build step installs Chrome for Testing.
func defaultLocalBin(goos string) string {
	switch goos {
	case "windows":
		return filepath.Join("chrome", "chrome-win64", "chrome.exe")
	case "darwin":
		return filepath.Join("chrome", "chrome-mac-x64",
			"Google Chrome for Testing.app", "Contents", "MacOS", "Google Chrome for Testing")
	default:
		return filepath.Join("chrome", "chrome-"+goos+"64", "chrome")
	}
}

func withExtra(args, extra []string) []string {
	out := make([]string, 0, len(args)+len(extra))
	out = append(out, args...)
	return append(out, extra...)
}
