package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Upstream  UpstreamConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how the headless browser is located and launched.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// BrowserBin overrides the Chromium binary path on every platform.
	BrowserBin string

	// BundleDir is where the managed Chromium bundle is stored on linux.
	// Empty means rod's default cache directory.
	BundleDir string

	// LocalBin is the browser provisioned at build time on developer
	// workstations (non-linux hosts).
	LocalBin string // default: chrome/<platform>/chrome[.exe]

	// LaunchTimeout bounds browser start-up.
	LaunchTimeout time.Duration // default: 30s

	// IgnoreCertErrors accepts self-signed certificates on the sensor page.
	IgnoreCertErrors bool // default: true

	// Stealth injects the go-rod stealth script before navigation.
	Stealth bool // default: false

	// ExtraArgs are appended to the resolved browser arguments.
	ExtraArgs []string
}

// ScraperConfig controls the live wind page scrape.
type ScraperConfig struct {
	// TargetURL is the page rendering the live sensor readings.
	TargetURL string // default: "http://88.97.23.70:82/"

	// NavigationTimeout bounds navigation plus the network-idle wait.
	NavigationTimeout time.Duration // default: 30s

	// ReadyTimeout bounds the wait for the readings to leave the placeholder.
	ReadyTimeout time.Duration // default: 10s

	// PollInterval is how often the rendered DOM is re-read while waiting.
	PollInterval time.Duration // default: 100ms

	// IdleWindow is how long the network must be quiet to count as idle.
	IdleWindow time.Duration // default: 500ms
}

// UpstreamConfig describes the JSON REST sources.
type UpstreamConfig struct {
	// TidesURL is a format string taking the station id.
	TidesURL string

	// TidesAPIKey is sent as the subscription key header to the tides API.
	TidesAPIKey string

	// TidesAPIKeyHeader is the header name carrying TidesAPIKey.
	TidesAPIKeyHeader string // default: "Ocp-Apim-Subscription-Key"

	// DefaultStation is used when /api/tides has no station parameter.
	DefaultStation string // default: "0065"

	ForecastURL string
	WavesURL    string

	// Timeout is the per-call upstream deadline.
	Timeout time.Duration // default: 10s

	// Fingerprint dials upstreams with a Chrome TLS fingerprint.
	Fingerprint bool // default: false
}

// CacheConfig controls the upstream response cache.
type CacheConfig struct {
	// TTL is how long a successful upstream response is served from cache.
	TTL time.Duration // default: 10m

	// MaxEntries caps the number of cached responses; 0 means unbounded.
	MaxEntries int // default: 1000

	// CoalesceMisses collapses concurrent misses for one key into a single
	// upstream call.
	CoalesceMisses bool // default: true
}

// RateLimitConfig controls per-client rate limiting.
type RateLimitConfig struct {
	// Enabled toggles the limiter.
	Enabled bool // default: true

	// RequestsPerSecond is the sustained rate per client IP.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per client IP.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("COASTWATCH_HOST", "0.0.0.0"),
			Port: envIntOr("COASTWATCH_PORT", 3000),
			Mode: envOr("COASTWATCH_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:         envBoolOr("COASTWATCH_HEADLESS", true),
			BrowserBin:       os.Getenv("COASTWATCH_BROWSER_BIN"),
			BundleDir:        os.Getenv("COASTWATCH_BROWSER_BUNDLE_DIR"),
			LocalBin:         os.Getenv("COASTWATCH_BROWSER_LOCAL_BIN"),
			LaunchTimeout:    envDurationOr("COASTWATCH_LAUNCH_TIMEOUT", 30*time.Second),
			IgnoreCertErrors: envBoolOr("COASTWATCH_IGNORE_CERT_ERRORS", true),
			Stealth:          envBoolOr("COASTWATCH_STEALTH", false),
			ExtraArgs:        envSliceOr("COASTWATCH_BROWSER_ARGS", nil),
		},
		Scraper: ScraperConfig{
			TargetURL:         envOr("COASTWATCH_WIND_URL", "http://88.97.23.70:82/"),
			NavigationTimeout: envDurationOr("COASTWATCH_NAV_TIMEOUT", 30*time.Second),
			ReadyTimeout:      envDurationOr("COASTWATCH_READY_TIMEOUT", 10*time.Second),
			PollInterval:      envDurationOr("COASTWATCH_POLL_INTERVAL", 100*time.Millisecond),
			IdleWindow:        envDurationOr("COASTWATCH_IDLE_WINDOW", 500*time.Millisecond),
		},
		Upstream: UpstreamConfig{
			TidesURL:          envOr("COASTWATCH_TIDES_URL", "https://admiraltyapi.azure-api.net/uktidalapi/api/V1/Stations/%s/TidalEvents"),
			TidesAPIKey:       os.Getenv("COASTWATCH_TIDES_API_KEY"),
			TidesAPIKeyHeader: envOr("COASTWATCH_TIDES_API_KEY_HEADER", "Ocp-Apim-Subscription-Key"),
			DefaultStation:    envOr("COASTWATCH_DEFAULT_STATION", "0065"),
			ForecastURL: envOr("COASTWATCH_FORECAST_URL",
				"https://api.open-meteo.com/v1/forecast?latitude=50.78&longitude=-1.09&hourly=temperature_2m,wind_speed_10m,wind_direction_10m,wind_gusts_10m&wind_speed_unit=kn&timezone=Europe%2FLondon"),
			WavesURL: envOr("COASTWATCH_WAVES_URL",
				"https://marine-api.open-meteo.com/v1/marine?latitude=50.78&longitude=-1.09&hourly=wave_height,wave_direction,wave_period&timezone=Europe%2FLondon"),
			Timeout:     envDurationOr("COASTWATCH_UPSTREAM_TIMEOUT", 10*time.Second),
			Fingerprint: envBoolOr("COASTWATCH_FETCH_FINGERPRINT", false),
		},
		Cache: CacheConfig{
			TTL:            envDurationOr("COASTWATCH_CACHE_TTL", 10*time.Minute),
			MaxEntries:     envIntOr("COASTWATCH_CACHE_MAX_ENTRIES", 1000),
			CoalesceMisses: envBoolOr("COASTWATCH_COALESCE_MISSES", true),
		},
		RateLimit: RateLimitConfig{
			Enabled:           envBoolOr("COASTWATCH_RATE_LIMIT", true),
			RequestsPerSecond: envFloatOr("COASTWATCH_RATE_RPS", 5.0),
			Burst:             envIntOr("COASTWATCH_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("COASTWATCH_LOG_LEVEL", "info"),
			Format: envOr("COASTWATCH_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
